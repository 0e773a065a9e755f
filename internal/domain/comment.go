package domain

import "encoding/json"

// UnknownAuthor is stamped on records whose author was deleted upstream.
const UnknownAuthor = "N/A"

// RawCommentEvent is a single comment as produced by the comment source.
// It lives only for one resolution+normalization pass.
type RawCommentEvent struct {
	ID              string
	Name            string
	Author          string
	Body            string
	Subreddit       string
	SubmissionTitle string
	Upvotes         int64
	Downvotes       int64
	CreatedUTC      int64
}

// QueuedRecord is the normalized, JSON-serializable record forwarded to the
// queue. Team is the partition key; ID is the dedup key.
type QueuedRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	Upvotes   int64  `json:"upvotes"`
	Downvotes int64  `json:"downvotes"`
	Timestamp int64  `json:"timestamp"`
	Subreddit string `json:"subreddit"`
	Team      string `json:"team"`
}

// NewQueuedRecord validates identity fields and builds the canonical record
// for one (event, team) pair. A missing comment id, body, or timestamp makes
// the event unprocessable and yields a MalformedEventError.
func NewQueuedRecord(raw RawCommentEvent, team string) (QueuedRecord, error) {
	switch {
	case raw.ID == "":
		return QueuedRecord{}, &MalformedEventError{Field: "id"}
	case raw.Body == "":
		return QueuedRecord{}, &MalformedEventError{Field: "body"}
	case raw.CreatedUTC <= 0:
		return QueuedRecord{}, &MalformedEventError{Field: "timestamp"}
	case team == "":
		return QueuedRecord{}, &MalformedEventError{Field: "team"}
	}

	author := raw.Author
	if author == "" {
		author = UnknownAuthor
	}

	return QueuedRecord{
		ID:        raw.ID,
		Name:      raw.Name,
		Author:    author,
		Body:      raw.Body,
		Upvotes:   raw.Upvotes,
		Downvotes: raw.Downvotes,
		Timestamp: raw.CreatedUTC,
		Subreddit: raw.Subreddit,
		Team:      team,
	}, nil
}

// Sentiment is the closed label set produced by the inference endpoint.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether the label belongs to the closed set.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Prediction is the raw inference result for one piece of text.
type Prediction struct {
	Label Sentiment `json:"label"`
	Score float64   `json:"score"`
}

// ClassifiedComment is a queued record with its sentiment attached. It is
// persisted keyed by (Team, ID); reprocessing the same pair overwrites.
type ClassifiedComment struct {
	QueuedRecord
	Label Sentiment `json:"label"`
	Score float64   `json:"score"`
}

// Encode serializes the comment for cache membership.
func (c ClassifiedComment) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// DeliveryReceipt is the queue's acknowledgement for one put.
type DeliveryReceipt struct {
	ShardID        string
	SequenceNumber string
}

// Delivery is a single queue-delivered record on the consumer side.
type Delivery struct {
	ID   string
	Data []byte
}
