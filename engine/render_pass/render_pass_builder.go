package render_pass

import "log/slog"

// passConfig collects the options shared by every pass constructor.
type passConfig struct {
	logger *slog.Logger
	tint   *[4]float32
}

// PassBuilderOption is a functional option for configuring a render pass.
type PassBuilderOption func(*passConfig)

// WithLogger sets the logger the pass reports through.
//
// Parameters:
//   - logger: the logger; nil keeps the silent default
//
// Returns:
//   - PassBuilderOption: a function that applies the logger
func WithLogger(logger *slog.Logger) PassBuilderOption {
	return func(c *passConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTint overrides the flat colour of the outline, debug bounds, fluid and voxel passes.
// Other passes ignore it.
func WithTint(rgba [4]float32) PassBuilderOption {
	return func(c *passConfig) {
		c.tint = &rgba
	}
}

func (c *passConfig) tintOr(fallback [4]float32) [4]float32 {
	if c.tint != nil {
		return *c.tint
	}
	return fallback
}
