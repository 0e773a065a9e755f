package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
)

// Relay is the consumer-side boundary between ingestion and serving: it
// decodes one queue-delivered record, attaches a sentiment prediction, and
// writes the result to durable storage and the windowed cache.
//
// Handle is safe to invoke concurrently for different deliveries; writes are
// keyed by (team, comment id), so mutation serialization is delegated to the
// store's per-key atomicity.
type Relay struct {
	classifier ports.SentimentClassifier
	repository ports.CommentRepository
	cache      ports.CommentCache
	logger     *slog.Logger
}

// New wires the inference, storage, and cache boundaries.
func New(classifier ports.SentimentClassifier, repository ports.CommentRepository, cache ports.CommentCache, logger *slog.Logger) *Relay {
	return &Relay{
		classifier: classifier,
		repository: repository,
		cache:      cache,
		logger:     logger,
	}
}

// Handle processes a single delivery. Any failure aborts that one record and
// returns an error so the consumer's redelivery mechanism can reattempt;
// reprocessing is safe because the durable write is an idempotent upsert.
// The durable write and the cache write are not transactional with each
// other: a durable success followed by a cache failure still returns an
// error, and the dashboard falls back to durable storage until redelivery
// repairs the cache.
func (r *Relay) Handle(ctx context.Context, delivery domain.Delivery) error {
	var record domain.QueuedRecord
	if err := json.Unmarshal(delivery.Data, &record); err != nil {
		return r.fail(delivery, fmt.Errorf("decode record: %w", err))
	}

	prediction, err := r.classifier.Predict(ctx, record.Body)
	if err != nil {
		return r.fail(delivery, err)
	}

	classified := domain.ClassifiedComment{
		QueuedRecord: record,
		Label:        prediction.Label,
		Score:        prediction.Score,
	}

	if err := r.repository.SaveClassified(ctx, classified); err != nil {
		return r.fail(delivery, err)
	}

	payload, err := classified.Encode()
	if err != nil {
		return r.fail(delivery, fmt.Errorf("encode classified comment: %w", err))
	}

	if err := r.cache.Append(ctx, record.Team, record.Timestamp, payload); err != nil {
		r.logger.Warn("durable write succeeded but cache write failed; serving will be stale until redelivery",
			"delivery_id", delivery.ID, "comment_id", record.ID, "team", record.Team)
		return r.fail(delivery, err)
	}

	r.logger.Debug("classified and stored comment",
		"delivery_id", delivery.ID,
		"comment_id", record.ID,
		"team", record.Team,
		"label", string(classified.Label))

	return nil
}

func (r *Relay) fail(delivery domain.Delivery, err error) error {
	r.logger.Error("record processing failed", "delivery_id", delivery.ID, "error", err)
	return err
}
