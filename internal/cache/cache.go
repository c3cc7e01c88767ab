// Package cache holds the active session state in a TTL cache. Expired
// entries are indistinguishable from never-written ones, which is exactly
// the session layer's contract.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/MikeSquared-Agency/recall/internal/memory"
)

// SessionCache is a ristretto-backed ephemeral store keyed by user_id.
// Writes are best-effort: ristretto may decline admission under pressure,
// which the session layer treats as a cache miss on the next turn.
type SessionCache struct {
	cache *ristretto.Cache
}

func New(maxSessions int64) (*SessionCache, error) {
	if maxSessions <= 0 {
		maxSessions = 4096
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxSessions * 10,
		MaxCost:     maxSessions,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &SessionCache{cache: c}, nil
}

// Get returns the cached conversation for a user, if present and unexpired.
func (s *SessionCache) Get(userID string) (*memory.Conversation, bool) {
	v, ok := s.cache.Get(userID)
	if !ok {
		return nil, false
	}
	conv, ok := v.(*memory.Conversation)
	return conv, ok
}

// Set stores the conversation with a fresh TTL. Each session costs one unit
// regardless of length; MaxCost therefore bounds the session count.
func (s *SessionCache) Set(userID string, conv *memory.Conversation, ttl time.Duration) error {
	if !s.cache.SetWithTTL(userID, conv, 1, ttl) {
		return fmt.Errorf("session cache declined write for user %s", userID)
	}
	return nil
}

// Wait blocks until buffered writes are applied. Tests need it; the serving
// path does not.
func (s *SessionCache) Wait() {
	s.cache.Wait()
}

// Close releases the cache's internal goroutines.
func (s *SessionCache) Close() {
	s.cache.Close()
}
