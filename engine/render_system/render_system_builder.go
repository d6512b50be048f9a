package render_system

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/engine/render_pass"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
)

// RenderSystemBuilderOption is a functional option for configuring a RenderSystem.
// Use the With* functions to create options.
type RenderSystemBuilderOption func(*renderSystem)

// WithLogger sets the logger shared by the render system, its cache, its world, its graphs and
// its passes. A nil logger is ignored.
//
// Parameters:
//   - logger: the structured logger
//
// Returns:
//   - RenderSystemBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCacheOptions forwards options to the resource cache the render system creates.
//
// Parameters:
//   - options: resource cache options, applied after the shared logger
//
// Returns:
//   - RenderSystemBuilderOption: option function to apply
func WithCacheOptions(options ...resource_cache.CacheBuilderOption) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.cacheOptions = append(s.cacheOptions, options...)
	}
}

// WithPassOptions forwards options, such as tints, to every render pass.
func WithPassOptions(options ...render_pass.PassBuilderOption) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.passOptions = append(s.passOptions, options...)
	}
}
