// Package cache defines the payload cache used by archives opened with
// blobpack.WithCache.
//
// Archives never cache on their own; a cache is something a caller opts into
// when the same payloads are looked up repeatedly across handles or processes.
package cache

import (
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
)

// Cache stores payload bytes under a digest key.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns a reader for cached content.
	// Returns nil, false if the key is not cached.
	Get(key digest.Digest) (io.ReadCloser, bool)

	// Put stores content by reading r to completion.
	Put(key digest.Digest, r io.Reader) error

	// Delete removes cached content for the given key.
	// Implementations should treat missing entries as a no-op.
	Delete(key digest.Digest) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}

// Key derives the cache key for one payload of one data source.
//
// The source ID changes whenever the data file is rebuilt, and the offset and
// length pin the exact byte range, so a key never matches stale content.
func Key(sourceID, name string, offset, length int64) digest.Digest {
	return digest.FromString(fmt.Sprintf("%s\x00%s\x00%d\x00%d", sourceID, name, offset, length))
}
