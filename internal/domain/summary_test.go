package domain

import "testing"

func TestParseTopicSummaries(t *testing.T) {
	t.Parallel()

	text := "1. **Title race** - Fans debating the run-in after the draw.\n" +
		"2. **Refereeing** - Widespread frustration with the late penalty call.\n" +
		"3. **Transfers** - Speculation about a January striker signing."

	topics := ParseTopicSummaries(text)
	if len(topics) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(topics))
	}

	if topics[0].Rank != 1 || topics[0].Title != "Title race" {
		t.Fatalf("unexpected first topic: %+v", topics[0])
	}
	if topics[1].Description != "Widespread frustration with the late penalty call." {
		t.Fatalf("unexpected second description: %q", topics[1].Description)
	}
	if topics[2].Rank != 3 {
		t.Fatalf("unexpected third rank: %d", topics[2].Rank)
	}
}

func TestParseTopicSummariesSkipsMalformedItems(t *testing.T) {
	t.Parallel()

	text := "Here are the topics.\n" +
		"1. **Defensive errors** - Two goals conceded from set pieces.\n" +
		"some stray commentary without the pattern\n" +
		"2. **Managerial pressure** - Calls for a change in the dugout."

	topics := ParseTopicSummaries(text)
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	if topics[0].Title != "Defensive errors" || topics[1].Title != "Managerial pressure" {
		t.Fatalf("unexpected topics: %+v", topics)
	}
	// Stray text between items folds into the preceding description.
	if topics[0].Description == "" {
		t.Fatal("expected non-empty description")
	}
}

func TestParseTopicSummariesUnparsableText(t *testing.T) {
	t.Parallel()

	if topics := ParseTopicSummaries("no numbered list here at all"); len(topics) != 0 {
		t.Fatalf("expected no topics, got %+v", topics)
	}
	if topics := ParseTopicSummaries(""); len(topics) != 0 {
		t.Fatalf("expected no topics for empty text, got %+v", topics)
	}
}
