// Package cache stores rendered diagram artifacts between runs.
//
// Rendering a workbook with a few hundred calculated fields means a few
// hundred Graphviz invocations. The scenes are deterministic, so the pipeline
// hashes each DOT document and keeps the resulting SVG/PNG bytes here.
//
// Three backends are provided:
//   - [NullCache]: stores nothing; used with --no-cache and in tests
//   - [FileCache]: JSON entries on disk, used by the CLI
//   - [MemoryCache]: bounded LRU, used by the HTTP service
//
// Keys are produced by a [Keyer] so that callers never build key strings by
// hand. [ScopedKeyer] prefixes keys, e.g. with the build version, so stale
// artifacts from older renderers are never served.
package cache

import (
	"context"
	"time"
)

// TTLArtifact is how long rendered artifacts stay valid.
const TTLArtifact = 30 * 24 * time.Hour

// Cache is a byte-oriented key/value store with optional expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the data for key and whether it was found. A missing or
	// expired entry is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
