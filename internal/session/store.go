// Package session provides the per-user, per-channel purchase session
// store and the per-key serialization primitive used by the purchase
// flow. Sessions are ephemeral: losing them across a restart is an
// accepted trade-off, so both an in-memory and a Redis-backed store
// satisfy the same interface.
package session

import (
	"context"
	"time"

	"github.com/conakrylabs/ticket-bot/internal/model"
)

// Key identifies one conversation: one user on one channel.
type Key struct {
	Channel string
	UserID  string
}

// String renders the key in the "channel:user" form used for Redis
// keys and mutex sharding.
func (k Key) String() string { return k.Channel + ":" + k.UserID }

// Store is the keyed session store. Get returns (nil, nil) when no
// session exists for the key; callers create one lazily. Set
// overwrites the stored session and refreshes any expiry.
// Implementations must be safe for concurrent use; the flow layer
// additionally serializes all access to a single key through KeyMutex,
// so Get/Set/Delete for one key never race with each other.
type Store interface {
	Get(ctx context.Context, key Key) (*model.Session, error)
	Set(ctx context.Context, key Key, s *model.Session) error
	Delete(ctx context.Context, key Key) error
}

// expired reports whether a session is stale under the given TTL. A
// zero TTL disables expiry entirely, matching the default behavior.
func expired(s *model.Session, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || s.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}
