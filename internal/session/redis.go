package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conakrylabs/ticket-bot/internal/model"
)

// RedisStore persists sessions as JSON values in Redis so multiple
// bot instances can share them. Expiry, when configured, is delegated
// to Redis key TTLs.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore using the given client. ttl of
// zero means keys never expire.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "session:", ttl: ttl}
}

// Get loads and decodes the session, or returns (nil, nil) when the
// key does not exist.
func (r *RedisStore) Get(ctx context.Context, key Key) (*model.Session, error) {
	raw, err := r.rdb.Get(ctx, r.prefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Set encodes and stores the session, stamping UpdatedAt and
// refreshing the TTL.
func (r *RedisStore) Set(ctx context.Context, key Key, s *model.Session) error {
	s.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+key.String(), raw, r.ttl).Err()
}

// Delete removes the session key.
func (r *RedisStore) Delete(ctx context.Context, key Key) error {
	return r.rdb.Del(ctx, r.prefix+key.String()).Err()
}
