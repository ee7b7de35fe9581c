package blobpack

import (
	"log/slog"

	"github.com/meigma/blobpack/cache"
	"github.com/meigma/blobpack/internal/file"
)

// DefaultMaxPayloadSize is the largest payload Lookup will allocate by default.
const DefaultMaxPayloadSize = file.DefaultMaxPayloadSize

type readConfig struct {
	logger         *slog.Logger
	maxPayloadSize int64
	cache          cache.Cache
}

// Option configures an Archive.
type Option func(*readConfig)

// WithLogger sets the logger used by the archive.
// A nil logger discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *readConfig) {
		cfg.logger = logger
	}
}

// WithMaxPayloadSize limits the size of a payload Lookup will read into memory.
// Larger payloads fail with ErrSizeOverflow; use Section to stream them.
// Set limit to 0 to disable the limit.
func WithMaxPayloadSize(limit int64) Option {
	return func(cfg *readConfig) {
		cfg.maxPayloadSize = limit
	}
}

// WithCache enables a payload cache for Lookup.
//
// Archives never cache payload bytes on their own. When a cache is supplied,
// payloads are stored after their first read and served from the cache
// afterwards; concurrent misses for the same payload are collapsed into a
// single read.
func WithCache(c cache.Cache) Option {
	return func(cfg *readConfig) {
		cfg.cache = c
	}
}

func newReadConfig(opts []Option) readConfig {
	cfg := readConfig{maxPayloadSize: DefaultMaxPayloadSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
