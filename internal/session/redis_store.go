package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps session attributes in Redis with per-key expiry.
type RedisStore struct {
	rdb    *redis.Client
	tracer trace.Tracer
}

// NewRedisStore creates a session store backed by Redis.
func NewRedisStore(rdb *redis.Client, tracer trace.Tracer) *RedisStore {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("bakame.internal.session.redis")
	}
	return &RedisStore{rdb: rdb, tracer: tracer}
}

func (s *RedisStore) Get(ctx context.Context, sessionID, key string, dst any) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.get", trace.WithAttributes(
		attribute.String("ivr.call_sid", sessionID),
		attribute.String("ivr.session_key", key),
	))
	defer span.End()

	data, err := s.rdb.Get(ctx, namespacedKey(sessionID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("%w: get %s: %v", ErrStoreUnavailable, key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "session.set", trace.WithAttributes(
		attribute.String("ivr.call_sid", sessionID),
		attribute.String("ivr.session_key", key),
	))
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, namespacedKey(sessionID, key), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: set %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "session.append", trace.WithAttributes(
		attribute.String("ivr.call_sid", sessionID),
		attribute.String("ivr.session_key", key),
	))
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal %s: %w", key, err)
	}
	k := namespacedKey(sessionID, key)
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, k, data)
	pipe.Expire(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: append %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, sessionID, key string) ([][]byte, error) {
	ctx, span := s.tracer.Start(ctx, "session.list", trace.WithAttributes(
		attribute.String("ivr.call_sid", sessionID),
		attribute.String("ivr.session_key", key),
	))
	defer span.End()

	data, err := s.rdb.LRange(ctx, namespacedKey(sessionID, key), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: list %s: %v", ErrStoreUnavailable, key, err)
	}
	out := make([][]byte, 0, len(data))
	for _, d := range data {
		out = append(out, []byte(d))
	}
	return out, nil
}
