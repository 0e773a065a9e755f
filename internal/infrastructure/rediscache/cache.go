package rediscache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
)

// CredentialSource yields the current cache password. Implementations may
// mint short-lived tokens; Token is called again after an auth failure.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredentials returns the same password forever.
type StaticCredentials string

func (s StaticCredentials) Token(context.Context) (string, error) { return string(s), nil }

// ExpiringTokenSource caches a minted token until ttl elapses. Concurrent
// refreshes collapse into one mint call.
type ExpiringTokenSource struct {
	mint func(ctx context.Context) (string, error)
	ttl  time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
	group   singleflight.Group
}

// NewExpiringTokenSource wraps a mint function with ttl-bounded caching.
func NewExpiringTokenSource(mint func(ctx context.Context) (string, error), ttl time.Duration) *ExpiringTokenSource {
	return &ExpiringTokenSource{mint: mint, ttl: ttl}
}

// Token returns the cached token, minting a fresh one when expired.
func (s *ExpiringTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" && time.Now().Before(s.expires) {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("token", func() (any, error) {
		token, err := s.mint(ctx)
		if err != nil {
			return "", fmt.Errorf("mint cache token: %w", err)
		}

		s.mu.Lock()
		s.token = token
		s.expires = time.Now().Add(s.ttl)
		s.mu.Unlock()

		return token, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// Invalidate drops the cached token so the next Token call mints anew.
func (s *ExpiringTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Options configures the cache connection.
type Options struct {
	Addr     string
	Username string
	UseTLS   bool
}

// Cache stores classified comments in per-team sorted sets scored by comment
// timestamp, and summaries in parallel sets scored by window start. When a
// command fails with an auth error the client is rebuilt with fresh
// credentials and the command retried once.
type Cache struct {
	opts  Options
	creds CredentialSource

	mu     sync.Mutex
	client *redis.Client

	logger *slog.Logger
}

var _ ports.CommentCache = (*Cache)(nil)

// New dials the cache with credentials from creds.
func New(ctx context.Context, opts Options, creds CredentialSource, logger *slog.Logger) (*Cache, error) {
	c := &Cache{opts: opts, creds: creds, logger: logger}
	if err := c.reconnect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithClient wires an existing client; used by tests.
func NewWithClient(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, creds: StaticCredentials(""), logger: logger}
}

func (c *Cache) reconnect(ctx context.Context) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return &domain.CacheAuthError{Err: err}
	}

	ropts := &redis.Options{
		Addr:     c.opts.Addr,
		Username: c.opts.Username,
		Password: token,
	}
	if c.opts.UseTLS {
		ropts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(ropts)

	c.mu.Lock()
	old := c.client
	c.client = client
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	return nil
}

func (c *Cache) current() *redis.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "NOAUTH") ||
		strings.Contains(msg, "WRONGPASS") ||
		strings.Contains(msg, "NOPERM") ||
		strings.Contains(msg, "INVALID PASSWORD")
}

// withReconnect runs op, and on an auth failure refreshes credentials,
// rebuilds the client, and retries exactly once.
func (c *Cache) withReconnect(ctx context.Context, op func(client *redis.Client) error) error {
	err := op(c.current())
	if err == nil {
		return nil
	}
	if !isAuthError(err) {
		return err
	}

	c.logger.Warn("cache auth failure, reconnecting", "error", err)
	if src, ok := c.creds.(*ExpiringTokenSource); ok {
		src.Invalidate()
	}
	if rerr := c.reconnect(ctx); rerr != nil {
		return rerr
	}

	if err := op(c.current()); err != nil {
		if isAuthError(err) {
			return &domain.CacheAuthError{Err: err}
		}
		return err
	}
	return nil
}

func commentKey(team string) string { return "team:" + team }
func summaryKey(team string) string { return "team_summary:" + team }

// Append adds one classified-comment payload to the team's set, scored by the
// comment timestamp.
func (c *Cache) Append(ctx context.Context, team string, timestamp int64, payload []byte) error {
	return c.withReconnect(ctx, func(client *redis.Client) error {
		err := client.ZAdd(ctx, commentKey(team), redis.Z{
			Score:  float64(timestamp),
			Member: payload,
		}).Err()
		if err != nil {
			return fmt.Errorf("zadd %s: %w", commentKey(team), err)
		}
		return nil
	})
}

// RangeByScore returns payloads whose timestamps fall inside [start, end],
// both bounds inclusive, oldest first.
func (c *Cache) RangeByScore(ctx context.Context, team string, start, end int64) ([][]byte, error) {
	var members []string
	err := c.withReconnect(ctx, func(client *redis.Client) error {
		var rerr error
		members, rerr = client.ZRangeByScore(ctx, commentKey(team), &redis.ZRangeBy{
			Min: strconv.FormatInt(start, 10),
			Max: strconv.FormatInt(end, 10),
		}).Result()
		if rerr != nil {
			return fmt.Errorf("zrangebyscore %s: %w", commentKey(team), rerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payloads := make([][]byte, len(members))
	for i, m := range members {
		payloads[i] = []byte(m)
	}
	return payloads, nil
}

// AppendSummary stores one summarization result scored by the window start.
func (c *Cache) AppendSummary(ctx context.Context, team string, generatedAt int64, summary string) error {
	return c.withReconnect(ctx, func(client *redis.Client) error {
		err := client.ZAdd(ctx, summaryKey(team), redis.Z{
			Score:  float64(generatedAt),
			Member: summary,
		}).Err()
		if err != nil {
			return fmt.Errorf("zadd %s: %w", summaryKey(team), err)
		}
		return nil
	})
}

// MostRecentSummaries returns up to limit stored summaries, newest first,
// parsed into ranked topics. Unparsable entries keep their raw text with no
// topics rather than being dropped.
func (c *Cache) MostRecentSummaries(ctx context.Context, team string, limit int) ([]domain.SummaryEntry, error) {
	var zs []redis.Z
	err := c.withReconnect(ctx, func(client *redis.Client) error {
		var rerr error
		zs, rerr = client.ZRevRangeByScoreWithScores(ctx, summaryKey(team), &redis.ZRangeBy{
			Min:    "-inf",
			Max:    "+inf",
			Count:  int64(limit),
			Offset: 0,
		}).Result()
		if rerr != nil {
			return fmt.Errorf("zrevrangebyscore %s: %w", summaryKey(team), rerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.SummaryEntry, 0, len(zs))
	for _, z := range zs {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, domain.SummaryEntry{
			Team:        team,
			GeneratedAt: int64(z.Score),
			Topics:      domain.ParseTopicSummaries(raw),
			Raw:         raw,
		})
	}
	return entries, nil
}
