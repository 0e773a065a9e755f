package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
)

// Forwarder pushes one normalized record per matched team onto the ordered
// queue, partitioned by team name. It carries no retry loop of its own;
// transient failures surface as DeliveryError for the caller to handle.
type Forwarder struct {
	queue  ports.RecordQueue
	logger *slog.Logger
}

// NewForwarder wires the queue boundary.
func NewForwarder(queue ports.RecordQueue, logger *slog.Logger) *Forwarder {
	return &Forwarder{queue: queue, logger: logger}
}

// Forward serializes the record and puts it on the queue using the team name
// as partition key, so all records for one team stay in producer order.
func (f *Forwarder) Forward(ctx context.Context, record domain.QueuedRecord) (domain.DeliveryReceipt, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return domain.DeliveryReceipt{}, fmt.Errorf("marshal record %s: %w", record.ID, err)
	}

	receipt, err := f.queue.Put(ctx, record.Team, payload)
	if err != nil {
		return domain.DeliveryReceipt{}, err
	}

	if f.logger != nil {
		f.logger.Debug("forwarded record",
			"comment_id", record.ID,
			"team", record.Team,
			"shard", receipt.ShardID,
			"sequence", receipt.SequenceNumber)
	}

	return receipt, nil
}
