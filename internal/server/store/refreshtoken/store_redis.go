package refreshtoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sterihub/pkg/sentinel"
)

const (
	tokenKeyPrefix = "rt:token:"
	userKeyPrefix  = "rt:user:"

	// Consumed tokens are kept briefly so replays are detected instead of
	// reading as "not found".
	usedRetention = 24 * time.Hour
)

// RedisStore persists refresh tokens in Redis with TTLs matching token
// expiry, shared across gateway instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed refresh token store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, record *Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode refresh token: %w", err)
	}

	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired: %w", sentinel.ErrInvalidState)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKeyPrefix+record.Token, raw, ttl)
	pipe.SAdd(ctx, userKeyPrefix+record.UserID.String(), record.Token)
	pipe.Expire(ctx, userKeyPrefix+record.UserID.String(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, token string, now time.Time) (*Record, error) {
	key := tokenKeyPrefix + token

	// GETDEL makes the claim atomic: of two concurrent consumes, exactly one
	// reads the live record. The loser sees either the re-written used record
	// or, in the narrow gap before the re-write, nothing at all; both reject.
	raw, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("claim refresh token: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}

	if err := record.ValidateForConsume(now); err != nil {
		if record.Used {
			// Put the used marker back so later replays stay detectable.
			// Best effort: a failed write still leaves the token rejected.
			_ = s.put(ctx, key, &record, usedRetention)
		}
		return &record, translateConsumeError(err)
	}

	record.MarkUsed(now)
	if err := s.put(ctx, key, &record, usedRetention); err != nil {
		return nil, fmt.Errorf("mark refresh token used: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) put(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode refresh token: %w", err)
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, tokenKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	userKey := userKeyPrefix + userID.String()
	tokens, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list user refresh tokens: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, token := range tokens {
		pipe.Del(ctx, tokenKeyPrefix+token)
	}
	pipe.Del(ctx, userKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}
