package rediscache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"SoccerSentiment/internal/domain"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewWithClient(client, slog.New(slog.NewTextHandler(io.Discard, nil))), srv
}

func TestAppendAndRangeByScore(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	for ts, payload := range map[int64]string{
		100: `{"id":"a"}`,
		200: `{"id":"b"}`,
		300: `{"id":"c"}`,
	} {
		if err := cache.Append(ctx, "arsenal", ts, []byte(payload)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := cache.RangeByScore(ctx, "arsenal", 100, 200)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	// Both bounds inclusive.
	if len(got) != 2 {
		t.Fatalf("got %d payloads, want 2", len(got))
	}
	if string(got[0]) != `{"id":"a"}` || string(got[1]) != `{"id":"b"}` {
		t.Errorf("unexpected payloads: %q %q", got[0], got[1])
	}
}

func TestRangeByScoreExactTimestamp(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.Append(ctx, "spurs", 150, []byte("hit")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := cache.Append(ctx, "spurs", 151, []byte("miss")); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := cache.RangeByScore(ctx, "spurs", 150, 150)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 1 || string(got[0]) != "hit" {
		t.Fatalf("degenerate window returned %q", got)
	}
}

func TestMostRecentSummariesEmptyNamespace(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)

	entries, err := cache.MostRecentSummaries(context.Background(), "arsenal", 3)
	if err != nil {
		t.Fatalf("expected empty result, got error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRangeByScoreIsolatesTeams(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.Append(ctx, "chelsea", 100, []byte("x")); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := cache.RangeByScore(ctx, "everton", 0, 1000)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty window for other team, got %v", got)
	}
}

func TestMostRecentSummariesNewestFirst(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	older := "1. **Transfer rumors** - Lots of deadline-day talk."
	newer := "1. **Derby win** - Fans celebrating the result.\n2. **Injury news** - Concern about the keeper."

	if err := cache.AppendSummary(ctx, "liverpool", 1000, older); err != nil {
		t.Fatalf("append summary: %v", err)
	}
	if err := cache.AppendSummary(ctx, "liverpool", 2000, newer); err != nil {
		t.Fatalf("append summary: %v", err)
	}

	entries, err := cache.MostRecentSummaries(ctx, "liverpool", 1)
	if err != nil {
		t.Fatalf("most recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry.GeneratedAt != 2000 {
		t.Errorf("generated_at = %d, want newest (2000)", entry.GeneratedAt)
	}
	if len(entry.Topics) != 2 {
		t.Fatalf("parsed %d topics, want 2", len(entry.Topics))
	}
	if entry.Topics[0].Title != "Derby win" {
		t.Errorf("first topic = %q", entry.Topics[0].Title)
	}
}

func TestMostRecentSummariesKeepsUnparsableRaw(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.AppendSummary(ctx, "wolves", 500, "no topics here"); err != nil {
		t.Fatalf("append summary: %v", err)
	}

	entries, err := cache.MostRecentSummaries(ctx, "wolves", 5)
	if err != nil {
		t.Fatalf("most recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Raw != "no topics here" {
		t.Errorf("raw = %q", entries[0].Raw)
	}
	if len(entries[0].Topics) != 0 {
		t.Errorf("expected no parsed topics, got %v", entries[0].Topics)
	}
}

// rotatingCredentials serves tokens in order, repeating the last one.
type rotatingCredentials struct {
	mu     sync.Mutex
	tokens []string
	calls  int
}

func (r *rotatingCredentials) Token(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	token := r.tokens[0]
	if len(r.tokens) > 1 {
		r.tokens = r.tokens[1:]
	}
	return token, nil
}

func (r *rotatingCredentials) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestAuthFailureReconnectsOnceAndRetries(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	srv.RequireAuth("fresh")

	creds := &rotatingCredentials{tokens: []string{"stale", "fresh"}}
	ctx := context.Background()

	cache, err := New(ctx, Options{Addr: srv.Addr()}, creds, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	// The first command fails auth with the stale token; one reconnect with
	// fresh credentials must make the retried command succeed.
	if err := cache.Append(ctx, "arsenal", 100, []byte(`{"id":"a"}`)); err != nil {
		t.Fatalf("append after credential rotation: %v", err)
	}

	got, err := cache.RangeByScore(ctx, "arsenal", 100, 100)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 1 || string(got[0]) != `{"id":"a"}` {
		t.Fatalf("payloads = %q", got)
	}

	if calls := creds.callCount(); calls < 2 {
		t.Errorf("credentials asked %d time(s), want a refresh after the auth failure", calls)
	}
}

func TestAuthFailureAfterReconnectSurfacesCacheAuthError(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	srv.RequireAuth("correct")

	creds := &rotatingCredentials{tokens: []string{"wrong"}}
	ctx := context.Background()

	cache, err := New(ctx, Options{Addr: srv.Addr()}, creds, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	err = cache.Append(ctx, "arsenal", 100, []byte("x"))
	var authErr *domain.CacheAuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected CacheAuthError after failed reconnect, got %v", err)
	}
}

func TestExpiringTokenSourceCachesUntilTTL(t *testing.T) {
	t.Parallel()

	var mints atomic.Int64
	src := NewExpiringTokenSource(func(context.Context) (string, error) {
		mints.Add(1)
		return "token", nil
	}, time.Hour)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := src.Token(ctx); err != nil {
				t.Errorf("token: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := mints.Load(); got != 1 {
		t.Fatalf("mint called %d times, want 1", got)
	}

	src.Invalidate()
	if _, err := src.Token(ctx); err != nil {
		t.Fatalf("token after invalidate: %v", err)
	}
	if got := mints.Load(); got != 2 {
		t.Fatalf("mint called %d times after invalidate, want 2", got)
	}
}

func TestExpiringTokenSourceMintFailure(t *testing.T) {
	t.Parallel()

	src := NewExpiringTokenSource(func(context.Context) (string, error) {
		return "", errors.New("sts unavailable")
	}, time.Hour)

	if _, err := src.Token(context.Background()); err == nil {
		t.Fatal("expected mint error")
	}
}
