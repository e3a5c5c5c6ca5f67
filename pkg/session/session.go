// Package session tracks the viewers of serve mode.
//
// Each websocket connection gets a viewer session that records where in the
// narrative the viewer is, so a reconnecting browser resumes at the same
// chart state. Sessions expire after a TTL. Backends:
//   - memory: in-process storage for a single server
//   - file: JSON files in a directory, for local use across restarts
//   - cache: any [cache.Cache], typically redis, for multi-instance deployments
//
// # Usage
//
//	store := session.NewMemoryStore()
//
//	sess := session.New(datasetHash, session.DefaultTTL)
//	store.Set(ctx, sess)
//
//	sess, err := store.Get(ctx, id)
//	if err != nil {
//	    return err
//	}
//	if sess == nil {
//	    // unknown or expired
//	}
//
// [cache.Cache]: github.com/matzehuels/tractstory/pkg/cache
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is one viewer's position in the narrative.
type Session struct {
	ID        string    `json:"id"`
	Dataset   string    `json:"dataset"` // hash of the dataset being viewed
	Step      int       `json:"step"`    // last scrolled step, -1 before the first
	Progress  float64   `json:"progress"`
	Scrolls   int       `json:"scrolls"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Touch records a scroll position and extends the session by ttl.
func (s *Session) Touch(step int, progress float64, ttl time.Duration) {
	now := time.Now()
	s.Step = step
	s.Progress = progress
	s.Scrolls++
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, session *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup removes expired sessions (may be a no-op for self-expiring backends).
	Cleanup(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// DefaultTTL is the default session duration.
const DefaultTTL = 24 * time.Hour

// GenerateID creates a random session ID.
func GenerateID() string {
	return uuid.NewString()
}

// New creates a session positioned before the first step.
func New(datasetHash string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        GenerateID(),
		Dataset:   datasetHash,
		Step:      -1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
