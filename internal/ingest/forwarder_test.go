package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"SoccerSentiment/internal/domain"
)

type fakeQueue struct {
	puts     []put
	failures int
	err      error
}

type put struct {
	partitionKey string
	payload      []byte
}

func (q *fakeQueue) Put(_ context.Context, partitionKey string, payload []byte) (domain.DeliveryReceipt, error) {
	if q.failures > 0 {
		q.failures--
		return domain.DeliveryReceipt{}, q.err
	}
	q.puts = append(q.puts, put{partitionKey: partitionKey, payload: payload})
	return domain.DeliveryReceipt{ShardID: "shardId-000000000000", SequenceNumber: "49590"}, nil
}

func TestForwardUsesTeamAsPartitionKey(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	fwd := NewForwarder(queue, nil)

	record := domain.QueuedRecord{
		ID: "c1", Body: "great win", Timestamp: 1000, Team: "arsenal", Author: "fan",
	}

	receipt, err := fwd.Forward(context.Background(), record)
	if err != nil {
		t.Fatalf("Forward returned error: %v", err)
	}
	if receipt.SequenceNumber == "" {
		t.Fatal("expected a sequence number in the receipt")
	}

	if len(queue.puts) != 1 {
		t.Fatalf("expected 1 put, got %d", len(queue.puts))
	}
	if queue.puts[0].partitionKey != "arsenal" {
		t.Fatalf("expected partition key arsenal, got %s", queue.puts[0].partitionKey)
	}

	var decoded domain.QueuedRecord
	if err := json.Unmarshal(queue.puts[0].payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded != record {
		t.Fatalf("payload round-trip mismatch: %+v", decoded)
	}
}

func TestForwardSurfacesDeliveryError(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{
		failures: 1,
		err:      &domain.DeliveryError{Stream: "s", Err: errors.New("throttled")},
	}
	fwd := NewForwarder(queue, nil)

	_, err := fwd.Forward(context.Background(), domain.QueuedRecord{ID: "c1", Team: "chelsea"})

	var delivery *domain.DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
}
