package kinesisq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/cenkalti/backoff/v4"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
)

// api is the slice of the Kinesis client this adapter touches.
type api interface {
	PutRecord(ctx context.Context, params *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
	ListShards(ctx context.Context, params *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error)
	GetShardIterator(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error)
}

const (
	recordsPerPoll     = 100
	pollPause          = time.Second
	handlerRetryBudget = 30 * time.Second
)

// Stream adapts one named Kinesis stream to the queue boundary. The partition
// key determines shard placement, which is what gives per-team ordering.
type Stream struct {
	client      api
	name        string
	retryBudget time.Duration
	logger      *slog.Logger
}

var _ ports.RecordQueue = (*Stream)(nil)

// New wires a Kinesis client to a stream name.
func New(client *kinesis.Client, name string, logger *slog.Logger) *Stream {
	return &Stream{client: client, name: name, retryBudget: handlerRetryBudget, logger: logger}
}

// Put sends one payload keyed by partitionKey. Failures surface as
// DeliveryError so the calling loop applies its own retry policy.
func (s *Stream) Put(ctx context.Context, partitionKey string, payload []byte) (domain.DeliveryReceipt, error) {
	out, err := s.client.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(s.name),
		PartitionKey: aws.String(partitionKey),
		Data:         payload,
	})
	if err != nil {
		return domain.DeliveryReceipt{}, &domain.DeliveryError{Stream: s.name, Err: err}
	}

	return domain.DeliveryReceipt{
		ShardID:        aws.ToString(out.ShardId),
		SequenceNumber: aws.ToString(out.SequenceNumber),
	}, nil
}

// Consume walks every shard of the stream and invokes handler once per
// delivered record until ctx is cancelled. A transiently-failing record is
// retried in place with bounded backoff before the shard advances, so an
// inference or storage blip does not lose the comment; a record that still
// fails after the budget is logged with its sequence number and skipped.
// Reattempts are safe because the relay's durable write is an idempotent
// upsert.
func (s *Stream) Consume(ctx context.Context, iteratorType string, handler func(context.Context, domain.Delivery) error) error {
	shards, err := s.client.ListShards(ctx, &kinesis.ListShardsInput{
		StreamName: aws.String(s.name),
	})
	if err != nil {
		return fmt.Errorf("list shards for %s: %w", s.name, err)
	}

	var wg sync.WaitGroup
	for _, shard := range shards.Shards {
		wg.Add(1)
		go func(shardID string) {
			defer wg.Done()
			s.consumeShard(ctx, shardID, iteratorType, handler)
		}(aws.ToString(shard.ShardId))
	}
	wg.Wait()

	return nil
}

func (s *Stream) consumeShard(ctx context.Context, shardID, iteratorType string, handler func(context.Context, domain.Delivery) error) {
	iterator, err := s.shardIterator(ctx, shardID, iteratorType)
	if err != nil {
		s.logger.Error("get shard iterator", "shard", shardID, "error", err)
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		out, err := s.client.GetRecords(ctx, &kinesis.GetRecordsInput{
			ShardIterator: aws.String(iterator),
			Limit:         aws.Int32(recordsPerPoll),
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("get records", "shard", shardID, "error", err)
			if !sleep(ctx, pollPause) {
				return
			}
			// A stale iterator cannot be reused; rebuild it.
			iterator, err = s.shardIterator(ctx, shardID, iteratorType)
			if err != nil {
				s.logger.Error("rebuild shard iterator", "shard", shardID, "error", err)
				return
			}
			continue
		}

		for _, record := range out.Records {
			delivery := domain.Delivery{
				ID:   aws.ToString(record.SequenceNumber),
				Data: record.Data,
			}
			if err := s.handleWithRetry(ctx, handler, delivery); err != nil {
				s.logger.Error("record handler failed", "shard", shardID, "sequence", delivery.ID, "error", err)
			}
		}

		if out.NextShardIterator == nil {
			return
		}
		iterator = aws.ToString(out.NextShardIterator)

		if len(out.Records) == 0 {
			if !sleep(ctx, pollPause) {
				return
			}
		}
	}
}

// handleWithRetry retries inference, storage, and cache failures with
// exponential backoff bounded by the retry budget. Undecodable records and
// other handler errors are permanent and fail immediately.
func (s *Stream) handleWithRetry(ctx context.Context, handler func(context.Context, domain.Delivery) error, delivery domain.Delivery) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = s.retryBudget

	operation := func() error {
		err := handler(ctx, delivery)
		if err == nil {
			return nil
		}

		var inference *domain.InferenceError
		var storage *domain.StorageError
		var cacheAuth *domain.CacheAuthError
		if errors.As(err, &inference) || errors.As(err, &storage) || errors.As(err, &cacheAuth) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func (s *Stream) shardIterator(ctx context.Context, shardID, iteratorType string) (string, error) {
	out, err := s.client.GetShardIterator(ctx, &kinesis.GetShardIteratorInput{
		StreamName:        aws.String(s.name),
		ShardId:           aws.String(shardID),
		ShardIteratorType: types.ShardIteratorType(iteratorType),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.ShardIterator), nil
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
