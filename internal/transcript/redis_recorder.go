package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	transcriptKeyPrefix = "ivr:transcript:"
	transcriptTTL       = 24 * time.Hour
)

// RedisRecorder stores transcripts as Redis lists, so transcripts survive a
// process restart and can be read by the console while a call is live.
type RedisRecorder struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisRecorder creates a recorder over the given Redis client.
func NewRedisRecorder(redisClient *redis.Client) *RedisRecorder {
	if redisClient == nil {
		return nil
	}
	return &RedisRecorder{
		redis:  redisClient,
		tracer: otel.Tracer("ivr.internal.transcript"),
		ttl:    transcriptTTL,
	}
}

// Append pushes the entry onto the call's list and refreshes the TTL.
func (r *RedisRecorder) Append(ctx context.Context, callID string, entry Entry) error {
	if callID == "" {
		return errors.New("transcript: callID required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("transcript: marshal entry: %w", err)
	}

	ctx, span := r.tracer.Start(ctx, "transcript.append")
	defer span.End()

	key := transcriptKey(callID)
	pipe := r.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: append entry: %w", err)
	}
	return nil
}

// Entries reads the whole transcript in insertion order.
func (r *RedisRecorder) Entries(ctx context.Context, callID string) ([]Entry, error) {
	if callID == "" {
		return nil, errors.New("transcript: callID required")
	}

	ctx, span := r.tracer.Start(ctx, "transcript.entries")
	defer span.End()

	raw, err := r.redis.LRange(ctx, transcriptKey(callID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Entry{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: read entries: %w", err)
	}

	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func transcriptKey(callID string) string {
	return transcriptKeyPrefix + callID
}
