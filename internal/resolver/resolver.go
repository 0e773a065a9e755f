package resolver

import (
	"log/slog"
	"sort"
	"strings"
)

// Resolver maps a comment's subreddit (and, for the aggregate channel, its
// parent submission title) to zero or more tracked team names. The team set
// is closed and fixed at construction time.
type Resolver struct {
	aggregate   string
	bySource    map[string]string
	teams       []string
	dropUnknown bool
	logger      *slog.Logger
}

// New builds a resolver over the static subreddit-to-team table.
// aggregate is the channel whose submission titles are scanned for team
// mentions. When dropUnknown is false, comments from unmapped subreddits are
// attributed to the subreddit display name itself instead of being dropped.
func New(aggregate string, bySource map[string]string, dropUnknown bool, logger *slog.Logger) *Resolver {
	sources := make(map[string]string, len(bySource))
	seen := map[string]struct{}{}
	teams := make([]string, 0, len(bySource))

	for sub, team := range bySource {
		sources[strings.ToLower(sub)] = team
		if _, ok := seen[team]; ok {
			continue
		}
		seen[team] = struct{}{}
		teams = append(teams, team)
	}
	sort.Strings(teams)

	return &Resolver{
		aggregate:   strings.ToLower(aggregate),
		bySource:    sources,
		teams:       teams,
		dropUnknown: dropUnknown,
		logger:      logger,
	}
}

// Teams returns the closed set of tracked team names, sorted.
func (r *Resolver) Teams() []string {
	out := make([]string, len(r.teams))
	copy(out, r.teams)
	return out
}

// Resolve returns every tracked team the comment belongs to. Aggregate-channel
// comments match by team-name substring against the submission title and may
// fan out to several teams; channel-specific comments resolve through the
// static table. An empty result means the comment is dropped.
func (r *Resolver) Resolve(sourceID, submissionTitle string) []string {
	source := strings.ToLower(sourceID)

	if source == r.aggregate {
		return r.matchTitle(submissionTitle)
	}

	if team, ok := r.bySource[source]; ok {
		return []string{team}
	}

	if r.dropUnknown {
		if r.logger != nil {
			r.logger.Debug("dropping comment from unmapped subreddit", "subreddit", sourceID)
		}
		return nil
	}

	return []string{sourceID}
}

func (r *Resolver) matchTitle(title string) []string {
	if title == "" {
		return nil
	}

	lowered := strings.ToLower(title)
	var matched []string
	for _, team := range r.teams {
		if strings.Contains(lowered, team) {
			matched = append(matched, team)
		}
	}
	return matched
}
