package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// TopicSummary is one ranked topic extracted from summarizer output.
type TopicSummary struct {
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SummaryEntry is a stored summarization result for one team window.
type SummaryEntry struct {
	Team        string         `json:"team"`
	GeneratedAt int64          `json:"generated_at"`
	Topics      []TopicSummary `json:"topics"`
	Raw         string         `json:"raw"`
}

// topicExpr matches one numbered item header: `<rank>. **<title>** -`.
// The description runs until the next header or end of text.
var topicExpr = regexp.MustCompile(`(\d+)\.\s*\*\*([^*]+)\*\*\s*-\s*`)

// ParseTopicSummaries extracts ranked topics from free-form numbered-list
// text. Items that do not match the pattern are skipped; a fully unparsable
// text yields an empty slice, never an error.
func ParseTopicSummaries(text string) []TopicSummary {
	matches := topicExpr.FindAllStringSubmatchIndex(text, -1)
	topics := make([]TopicSummary, 0, len(matches))

	for i, m := range matches {
		rank, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		topics = append(topics, TopicSummary{
			Rank:        rank,
			Title:       strings.TrimSpace(text[m[4]:m[5]]),
			Description: strings.TrimSpace(text[m[1]:end]),
		})
	}

	return topics
}
