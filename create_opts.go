package blobpack

import "log/slog"

// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
const DefaultMaxFiles = 200_000

// createConfig holds configuration for archive creation.
type createConfig struct {
	extension string
	base      string
	maxFiles  int
	logger    *slog.Logger
	progress  ProgressFunc
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithExtension sets the payload file extension, including the dot.
// Matching is case-insensitive. Defaults to DefaultExtension.
func CreateWithExtension(ext string) CreateOption {
	return func(cfg *createConfig) {
		cfg.extension = ext
	}
}

// CreateWithBase sets the archive base name. A candidate whose stem equals
// base (case-insensitive) is the archive's own stub and is not indexed.
// Build sets this automatically.
func CreateWithBase(base string) CreateOption {
	return func(cfg *createConfig) {
		cfg.base = base
	}
}

// CreateWithMaxFiles limits the number of payloads included in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func CreateWithMaxFiles(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFiles = n
	}
}

// CreateWithLogger sets the logger used during creation.
// A nil logger discards all output.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}

// CreateWithProgress sets a callback that receives progress updates.
func CreateWithProgress(fn ProgressFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.progress = fn
	}
}

func newCreateConfig(opts []CreateOption) createConfig {
	cfg := createConfig{extension: DefaultExtension}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxFiles == 0 {
		cfg.maxFiles = DefaultMaxFiles
	}
	return cfg
}
