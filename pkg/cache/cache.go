// Package cache provides the byte-level caches used by the tractstory pipeline.
//
// Two things are cached: raw dataset bodies fetched from remote sources, and
// rendered frame artifacts (SVG, JSON, PNG, PDF) keyed by the dataset content
// hash and the render options. Backends:
//   - [FileCache]: one JSON envelope per key under a directory (CLI)
//   - [RedisCache]: shared cache for serve mode across instances
//   - [NullCache]: disables caching
//
// Keys are produced by a [Keyer] so callers never build key strings by hand.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional time-to-live.
type Cache interface {
	// Get returns the value for key. A miss returns (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default time-to-live values per cached artifact kind.
const (
	// TTLDataset bounds how long a fetched dataset body is reused.
	TTLDataset = 24 * time.Hour

	// TTLFrame bounds how long a rendered frame is reused. Frames are a pure
	// function of the dataset hash and options, so this only limits disk use.
	TTLFrame = 7 * 24 * time.Hour
)
