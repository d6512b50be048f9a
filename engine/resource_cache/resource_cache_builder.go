package resource_cache

import (
	"log/slog"
)

// CacheBuilderOption is a functional option for configuring a Cache.
type CacheBuilderOption func(*cache)

// WithLogger sets the logger used for asset failures and lifecycle events.
//
// Parameters:
//   - logger: the logger; nil keeps the silent default
//
// Returns:
//   - CacheBuilderOption: a function that applies the logger
func WithLogger(logger *slog.Logger) CacheBuilderOption {
	return func(c *cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetireFrames sets how many frames a replaced or evicted GPU object is kept alive before it
// is released. It should be at least the number of frames the device keeps in flight.
//
// Parameters:
//   - frames: frames to wait; 0 releases at the end of the frame the entry was retired in
//
// Returns:
//   - CacheBuilderOption: a function that applies the retire window
func WithRetireFrames(frames int) CacheBuilderOption {
	return func(c *cache) {
		if frames >= 0 {
			c.retireFrames = uint64(frames)
		}
	}
}

// WithEvictAfterFrames sets how many frames an entry may go without being acquired before it is
// evicted. 0 disables eviction.
func WithEvictAfterFrames(frames int) CacheBuilderOption {
	return func(c *cache) {
		if frames >= 0 {
			c.evictAfterFrames = uint64(frames)
		}
	}
}
