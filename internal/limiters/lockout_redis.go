package limiters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLockoutStore keeps lockout records as JSON values under "alo:<id>".
type RedisLockoutStore struct {
	redis redis.UniversalClient
}

// NewRedisLockoutStore creates a Redis-backed store.
func NewRedisLockoutStore(redisClient redis.UniversalClient) *RedisLockoutStore {
	return &RedisLockoutStore{redis: redisClient}
}

func (s *RedisLockoutStore) key(identifier string) string {
	return "alo:" + identifier
}

func (s *RedisLockoutStore) Load(ctx context.Context, identifier string) (LockoutRecord, bool, error) {
	raw, err := s.redis.Get(ctx, s.key(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return LockoutRecord{}, false, nil
		}
		return LockoutRecord{}, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	var rec LockoutRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt record must not lock anyone out.
		return LockoutRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *RedisLockoutStore) Save(ctx context.Context, record LockoutRecord, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(record.Identifier), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

func (s *RedisLockoutStore) Delete(ctx context.Context, identifier string) error {
	if err := s.redis.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}
