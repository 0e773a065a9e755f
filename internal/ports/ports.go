package ports

import (
	"context"
	"time"

	"SoccerSentiment/internal/domain"
)

// CommentSource pulls the next event from a live, non-replayable comment
// stream. Next blocks until an event arrives or ctx is cancelled.
type CommentSource interface {
	Next(ctx context.Context) (domain.RawCommentEvent, error)
}

// RecordQueue is the ordered, partitioned queue boundary. Records sharing a
// partition key are delivered to the consumer in producer order.
type RecordQueue interface {
	Put(ctx context.Context, partitionKey string, payload []byte) (domain.DeliveryReceipt, error)
}

// SentimentClassifier is the hosted inference boundary.
type SentimentClassifier interface {
	Predict(ctx context.Context, text string) (domain.Prediction, error)
}

// CommentRepository persists classified comments keyed by (team, comment id).
type CommentRepository interface {
	SaveClassified(ctx context.Context, comment domain.ClassifiedComment) error
	QueryWindow(ctx context.Context, team string, start, end int64) ([]domain.ClassifiedComment, error)
}

// CommentCache is the per-team time-ordered cache used for low-latency reads
// and periodic summarization. Range bounds are inclusive on both ends.
type CommentCache interface {
	Append(ctx context.Context, team string, timestamp int64, payload []byte) error
	RangeByScore(ctx context.Context, team string, start, end int64) ([][]byte, error)
	AppendSummary(ctx context.Context, team string, generatedAt int64, summary string) error
	MostRecentSummaries(ctx context.Context, team string, limit int) ([]domain.SummaryEntry, error)
}

// ChatSummarizer turns a batch of comment bodies into prose topics.
type ChatSummarizer interface {
	Summarize(ctx context.Context, comments []string) (string, error)
}

// Scheduler controls when the summarization pass executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
