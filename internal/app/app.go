package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"golang.org/x/sync/errgroup"

	"SoccerSentiment/internal/config"
	"SoccerSentiment/internal/infrastructure/inference"
	"SoccerSentiment/internal/infrastructure/kinesisq"
	"SoccerSentiment/internal/infrastructure/llm"
	"SoccerSentiment/internal/infrastructure/reddit"
	"SoccerSentiment/internal/infrastructure/rediscache"
	"SoccerSentiment/internal/infrastructure/scheduler"
	"SoccerSentiment/internal/infrastructure/storage"
	"SoccerSentiment/internal/ingest"
	"SoccerSentiment/internal/logging"
	"SoccerSentiment/internal/relay"
	"SoccerSentiment/internal/resolver"
	"SoccerSentiment/internal/summarize"
	"SoccerSentiment/internal/transport/httpapi"
	"SoccerSentiment/internal/usecase"
)

const migrationsPath = "migrations"

// Application wires configuration to the ingestion loop, the queue consumer,
// the summarization schedule, and the read API.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	ingestLoop *ingest.Loop
	queue      *kinesisq.Stream
	relay      *relay.Relay
	schedule   *usecase.SummarySchedule
	server     *httpapi.Server
}

// New builds a runnable application instance from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect storage: %w", err)
	}
	if err := storage.ApplyMigrations(cfg.Database.DSN, migrationsPath); err != nil {
		return nil, fmt.Errorf("migrate storage: %w", err)
	}
	repository := storage.NewPostgresRepository(db)

	cache, err := rediscache.New(ctx, rediscache.Options{
		Addr:     cfg.Cache.Addr,
		Username: cfg.Cache.Username,
		UseTLS:   cfg.Cache.TLS,
	}, rediscache.StaticCredentials(cfg.Cache.Password), baseLogger.With("component", "cache"))
	if err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Queue.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	queue := kinesisq.New(kinesis.NewFromConfig(awsCfg), cfg.Queue.StreamName, baseLogger.With("component", "queue"))

	res := resolver.New(
		cfg.Ingestion.AggregateSubreddit,
		cfg.Teams.BySubreddit,
		cfg.Ingestion.DropUnknown(),
		baseLogger.With("component", "resolver"),
	)

	subreddits := []string{cfg.Ingestion.AggregateSubreddit}
	if cfg.Ingestion.IncludeTeams() {
		for name := range cfg.Teams.BySubreddit {
			subreddits = append(subreddits, name)
		}
	}
	source := reddit.NewStream(reddit.Options{
		BaseURL:      cfg.Ingestion.BaseURL,
		UserAgent:    cfg.Ingestion.UserAgent,
		Subreddits:   subreddits,
		PollInterval: cfg.Ingestion.PollInterval(),
	}, baseLogger.With("component", "source"))

	forwarder := ingest.NewForwarder(queue, baseLogger.With("component", "forwarder"))
	ingestLoop := ingest.NewLoop(source, res, forwarder, cfg.Ingestion.ForwardRetryBudget(), baseLogger.With("component", "ingest"))

	classifier := inference.NewClient(cfg.Inference.EndpointURL, cfg.Inference.APIKey)
	commentRelay := relay.New(classifier, repository, cache, baseLogger.With("component", "relay"))

	var schedule *usecase.SummarySchedule
	if cfg.Summarizer.IsEnabled() && cfg.Summarizer.APIKey != "" {
		summarizer := summarize.New(
			cache,
			llm.NewChatGPTSummarizer(cfg.Summarizer.APIKey, cfg.Summarizer.Model),
			cfg.Teams.Names(),
			cfg.Summarizer.Window(),
			baseLogger.With("component", "summarizer"),
		)
		schedule = usecase.NewSummarySchedule(scheduler.NewIntervalScheduler(cfg.Summarizer.Interval()), summarizer)
	}

	var server *httpapi.Server
	if cfg.Server.IsEnabled() {
		server = httpapi.NewServer(cfg.Server.Addr, cache, repository, baseLogger.With("component", "httpapi"))
	}

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		ingestLoop: ingestLoop,
		queue:      queue,
		relay:      commentRelay,
		schedule:   schedule,
		server:     server,
	}, nil
}

// Run starts every enabled component and blocks until ctx is cancelled or a
// component fails.
func (a *Application) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	if a.cfg.Ingestion.IsEnabled() {
		group.Go(func() error {
			return a.ingestLoop.Run(ctx)
		})
	}

	group.Go(func() error {
		return a.queue.Consume(ctx, a.cfg.Queue.IteratorType, a.relay.Handle)
	})

	if a.schedule != nil {
		if err := a.schedule.Start(ctx); err != nil {
			return fmt.Errorf("start summary schedule: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.schedule.Stop(stopCtx)
		}()
	}

	if a.server != nil {
		group.Go(a.server.Run)
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	a.logger.Info("application started")
	return group.Wait()
}
