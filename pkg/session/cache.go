package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matzehuels/tractstory/pkg/cache"
)

const keyPrefix = "session:"

// CacheStore keeps sessions in a cache backend. With a redis cache, sessions
// are shared across server instances and expire natively.
type CacheStore struct {
	c cache.Cache
}

// NewCacheStore stores sessions in c. The store owns c and closes it.
func NewCacheStore(c cache.Cache) *CacheStore {
	return &CacheStore{c: c}
}

func (s *CacheStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, ok, err := s.c.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if sess.IsExpired() {
		return nil, nil
	}
	return &sess, nil
}

func (s *CacheStore) Set(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.c.Set(ctx, keyPrefix+sess.ID, data, ttl)
}

func (s *CacheStore) Delete(ctx context.Context, sessionID string) error {
	return s.c.Delete(ctx, keyPrefix+sessionID)
}

// Cleanup is a no-op; entries expire with their cache TTL.
func (s *CacheStore) Cleanup(ctx context.Context) error { return nil }

func (s *CacheStore) Close() error { return s.c.Close() }

var _ Store = (*CacheStore)(nil)
