package render_graph

import (
	"log/slog"
)

// GraphBuilderOption is a functional option for configuring a Graph.
type GraphBuilderOption func(*graph)

// WithLogger sets the logger used for compile results and lifecycle events.
//
// Parameters:
//   - logger: the logger; nil keeps the silent default
//
// Returns:
//   - GraphBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) GraphBuilderOption {
	return func(g *graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}
