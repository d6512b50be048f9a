package asset

import (
	"log/slog"
)

// DiskLoaderBuilderOption is a functional option for configuring a DiskLoader.
type DiskLoaderBuilderOption func(*diskLoader)

// WithLogger sets the logger used for load failures and watcher events.
//
// Parameters:
//   - logger: the logger; nil keeps the silent default
//
// Returns:
//   - DiskLoaderBuilderOption: a function that applies the logger
func WithLogger(logger *slog.Logger) DiskLoaderBuilderOption {
	return func(l *diskLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithWorkers sets the number of preload workers. Values below 1 are ignored.
func WithWorkers(n int) DiskLoaderBuilderOption {
	return func(l *diskLoader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithCache replaces the in-memory store decoded assets are kept in. Useful for seeding assets
// that have no file on disk.
func WithCache(lib Library) DiskLoaderBuilderOption {
	return func(l *diskLoader) {
		if lib != nil {
			l.cache = lib
		}
	}
}
