package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
)

const (
	listingLimit = 100

	// After this many consecutive empty pages the cursor is assumed to point
	// at a deleted comment (a stale anchor yields empty listings forever) and
	// the stream re-primes.
	staleAnchorPolls = 30
)

// Options configures the comment stream.
type Options struct {
	BaseURL      string
	UserAgent    string
	Subreddits   []string
	PollInterval time.Duration
}

// Stream polls the public Reddit JSON listing for new comments across a
// multireddit. The stream is live only: the first non-empty page primes the
// cursor past comments that already existed, so replays never happen. A
// cursor that stops yielding pages is discarded and the stream re-primes.
type Stream struct {
	baseURL      string
	userAgent    string
	multi        string
	pollInterval time.Duration
	staleAfter   int
	httpClient   *http.Client
	logger       *slog.Logger

	primed     bool
	before     string
	emptyPolls int
	pending    []domain.RawCommentEvent
}

var _ ports.CommentSource = (*Stream)(nil)

// NewStream builds a comment stream over the given subreddits.
func NewStream(opts Options, logger *slog.Logger) *Stream {
	return &Stream{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		userAgent:    opts.UserAgent,
		multi:        strings.Join(opts.Subreddits, "+"),
		pollInterval: opts.PollInterval,
		staleAfter:   staleAnchorPolls,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}
}

// Next blocks until a new comment arrives or ctx is cancelled. Poll failures
// are logged and retried after the poll interval; they never surface to the
// caller.
func (s *Stream) Next(ctx context.Context) (domain.RawCommentEvent, error) {
	for {
		if len(s.pending) > 0 {
			event := s.pending[0]
			s.pending = s.pending[1:]
			return event, nil
		}

		if err := ctx.Err(); err != nil {
			return domain.RawCommentEvent{}, err
		}

		events, err := s.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return domain.RawCommentEvent{}, ctx.Err()
			}
			s.logger.Warn("comment poll failed", "error", err)
			if !sleep(ctx, s.pollInterval) {
				return domain.RawCommentEvent{}, ctx.Err()
			}
			continue
		}

		if len(events) == 0 {
			if s.primed {
				s.emptyPolls++
				if s.emptyPolls >= s.staleAfter {
					s.logger.Warn("listing cursor went stale, re-priming", "cursor", s.before)
					s.primed = false
					s.before = ""
					s.emptyPolls = 0
				}
			}
			if !sleep(ctx, s.pollInterval) {
				return domain.RawCommentEvent{}, ctx.Err()
			}
			continue
		}

		s.emptyPolls = 0
		if !s.primed {
			// Everything in the first non-empty page predates this process.
			s.primed = true
			continue
		}

		s.pending = events
	}
}

type listing struct {
	Data struct {
		Children []struct {
			Data comment `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type comment struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Ups        int64   `json:"ups"`
	Downs      int64   `json:"downs"`
	CreatedUTC float64 `json:"created_utc"`
	Subreddit  string  `json:"subreddit"`
	LinkTitle  string  `json:"link_title"`
}

// poll fetches one listing page newer than the cursor and returns its
// comments oldest first.
func (s *Stream) poll(ctx context.Context) ([]domain.RawCommentEvent, error) {
	endpoint := fmt.Sprintf("%s/r/%s/comments.json", s.baseURL, s.multi)

	query := url.Values{}
	query.Set("limit", fmt.Sprint(listingLimit))
	if s.before != "" {
		query.Set("before", s.before)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing: unexpected status %d", resp.StatusCode)
	}

	var page listing
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	children := page.Data.Children
	if len(children) == 0 {
		return nil, nil
	}

	// The listing is newest first; the newest fullname becomes the cursor.
	s.before = children[0].Data.Name

	events := make([]domain.RawCommentEvent, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		c := children[i].Data
		events = append(events, domain.RawCommentEvent{
			ID:              c.ID,
			Name:            c.Name,
			Author:          c.Author,
			Body:            c.Body,
			Subreddit:       c.Subreddit,
			SubmissionTitle: c.LinkTitle,
			Upvotes:         c.Ups,
			Downvotes:       c.Downs,
			CreatedUTC:      int64(c.CreatedUTC),
		})
	}

	return events, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
