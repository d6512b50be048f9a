package render_world

import (
	"log/slog"
)

// WorldBuilderOption is a functional option for configuring a World.
type WorldBuilderOption func(*world)

// WithLogger sets the logger used for skipped nodes.
//
// Parameters:
//   - logger: the logger; nil keeps the silent default
//
// Returns:
//   - WorldBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) WorldBuilderOption {
	return func(w *world) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithCapacity preallocates room for n proxies.
func WithCapacity(n int) WorldBuilderOption {
	return func(w *world) {
		if n > 0 {
			w.proxies = make([]RenderProxy, 0, n)
		}
	}
}
