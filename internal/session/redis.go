package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "nasiya:session:"

// RedisStore keeps sessions in Redis so pending flows survive restarts. Idle sessions
// expire after ttl.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(accountID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, accountID)
}

func (r *RedisStore) Get(ctx context.Context, accountID int64) (*Session, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("error reading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("error decoding session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Set(ctx context.Context, accountID int64, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, sessionKey(accountID), data, r.ttl).Err()
}

func (r *RedisStore) Clear(ctx context.Context, accountID int64) error {
	return r.rdb.Del(ctx, sessionKey(accountID)).Err()
}
