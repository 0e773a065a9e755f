package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
	"SoccerSentiment/internal/resolver"
)

// Loop is the single continuous consumption loop over the live comment
// stream: one comment is fully resolved, normalized, and forwarded (possibly
// fanned out to several teams) before the next one is pulled.
type Loop struct {
	source      ports.CommentSource
	resolver    *resolver.Resolver
	forwarder   *Forwarder
	retryBudget time.Duration
	logger      *slog.Logger
}

// NewLoop builds the ingestion loop. retryBudget bounds the backoff spent on
// one record's queue put before the record is dropped.
func NewLoop(source ports.CommentSource, res *resolver.Resolver, fwd *Forwarder, retryBudget time.Duration, logger *slog.Logger) *Loop {
	return &Loop{
		source:      source,
		resolver:    res,
		forwarder:   fwd,
		retryBudget: retryBudget,
		logger:      logger,
	}
}

// Run pulls comments until ctx is cancelled. Per-comment errors never
// terminate the loop; the in-flight comment is finished before returning.
func (l *Loop) Run(ctx context.Context) error {
	for {
		event, err := l.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("comment source failed", "error", err)
			continue
		}

		l.process(ctx, event)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *Loop) process(ctx context.Context, event domain.RawCommentEvent) {
	teams := l.resolver.Resolve(event.Subreddit, event.SubmissionTitle)
	if len(teams) == 0 {
		return
	}

	for _, team := range teams {
		record, err := domain.NewQueuedRecord(event, team)
		if err != nil {
			var malformed *domain.MalformedEventError
			if errors.As(err, &malformed) {
				l.logger.Warn("dropping malformed comment", "comment_id", event.ID, "field", malformed.Field)
				continue
			}
			l.logger.Error("normalize comment", "comment_id", event.ID, "error", err)
			continue
		}

		if err := l.forwardWithRetry(ctx, record); err != nil {
			l.logger.Error("dropping record after delivery retries",
				"comment_id", record.ID, "team", record.Team, "error", err)
		}
	}
}

func (l *Loop) forwardWithRetry(ctx context.Context, record domain.QueuedRecord) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = l.retryBudget

	operation := func() error {
		_, err := l.forwarder.Forward(ctx, record)
		if err == nil {
			return nil
		}

		var delivery *domain.DeliveryError
		if errors.As(err, &delivery) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
