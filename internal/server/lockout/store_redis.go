package lockout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lockout:"

// RedisStore persists lockout records in Redis so multiple gateway instances
// share lockout state. Records carry a TTL of the failure window (or the
// lock duration when longer), so stale state expires on its own.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed lockout store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, identifier string) (*Record, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+identifier).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lockout record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode lockout record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, identifier string, now time.Time, window time.Duration) (*Record, error) {
	record, err := s.Get(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if record == nil || record.WindowExpired(now, window) {
		record = &Record{Identifier: identifier}
	}
	record.FailureCount++
	record.LastFailureAt = now

	if err := s.write(ctx, record, window); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *RedisStore) Update(ctx context.Context, record *Record) error {
	ttl := 15 * time.Minute
	if record.LockedUntil != nil {
		if until := time.Until(*record.LockedUntil); until > ttl {
			ttl = until
		}
	}
	return s.write(ctx, record, ttl)
}

func (s *RedisStore) Clear(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("clear lockout record: %w", err)
	}
	return nil
}

func (s *RedisStore) write(ctx context.Context, record *Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode lockout record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+record.Identifier, raw, ttl).Err(); err != nil {
		return fmt.Errorf("write lockout record: %w", err)
	}
	return nil
}
