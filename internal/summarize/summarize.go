package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SoccerSentiment/internal/ports"
)

// Summarizer batches recent per-team comments from the windowed cache,
// invokes the language-summarization boundary, and writes the result back
// under the summary namespace. One pass fans out one task per tracked team;
// a task failure is logged and never blocks or fails the siblings.
type Summarizer struct {
	cache  ports.CommentCache
	llm    ports.ChatSummarizer
	teams  []string
	window time.Duration
	logger *slog.Logger
}

// New wires the cache and summarization boundaries over the closed team set.
func New(cache ports.CommentCache, llm ports.ChatSummarizer, teams []string, window time.Duration, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		cache:  cache,
		llm:    llm,
		teams:  teams,
		window: window,
		logger: logger,
	}
}

// Run executes one summarization pass over [now-window, now] for every team
// in parallel and returns when all tasks have finished, so a ticker-driven
// caller can never start overlapping passes.
func (s *Summarizer) Run(ctx context.Context, now time.Time) {
	end := now.UTC()
	start := end.Add(-s.window)

	var wg sync.WaitGroup
	for _, team := range s.teams {
		wg.Add(1)
		go func(team string) {
			defer wg.Done()
			if err := s.summarizeTeam(ctx, team, start, end); err != nil {
				s.logger.Error("summarization failed", "team", team, "error", err)
			}
		}(team)
	}
	wg.Wait()
}

func (s *Summarizer) summarizeTeam(ctx context.Context, team string, start, end time.Time) error {
	payloads, err := s.cache.RangeByScore(ctx, team, start.Unix(), end.Unix())
	if err != nil {
		return fmt.Errorf("range query: %w", err)
	}

	bodies := extractBodies(payloads)
	if len(bodies) == 0 {
		s.logger.Debug("no comments in window", "team", team)
		return nil
	}

	summary, err := s.llm.Summarize(ctx, bodies)
	if err != nil {
		return fmt.Errorf("summarize %d comments: %w", len(bodies), err)
	}

	if err := s.cache.AppendSummary(ctx, team, start.Unix(), summary); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}

	s.logger.Info("stored window summary", "team", team, "comments", len(bodies))
	return nil
}

// extractBodies pulls the body field out of each cached payload, skipping
// entries that fail to decode so one bad payload never aborts a pass.
func extractBodies(payloads [][]byte) []string {
	bodies := make([]string, 0, len(payloads))
	for _, payload := range payloads {
		var entry struct {
			Body string `json:"body"`
		}
		if err := json.Unmarshal(payload, &entry); err != nil || entry.Body == "" {
			continue
		}
		bodies = append(bodies, entry.Body)
	}
	return bodies
}
