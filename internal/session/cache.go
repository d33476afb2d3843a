package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusKey = "rollcall:session-status"

// StatusCache holds the active-session list in redis for the public
// session-status poll endpoint. Misses and redis errors fall through to the
// store; the cache is never authoritative.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache creates a cache with the given TTL.
func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &StatusCache{client: client, ttl: ttl}
}

// Get returns the cached active sessions and whether the cache hit.
func (c *StatusCache) Get(ctx context.Context) ([]Session, bool) {
	raw, err := c.client.Get(ctx, statusKey).Bytes()
	if err != nil {
		return nil, false
	}
	var sessions []Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, false
	}
	return sessions, true
}

// Set stores the active-session list.
func (c *StatusCache) Set(ctx context.Context, sessions []Session) {
	raw, err := json.Marshal(sessions)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, statusKey, raw, c.ttl).Err()
}

// Invalidate drops the cached list after a session mutation.
func (c *StatusCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, statusKey).Err()
}
