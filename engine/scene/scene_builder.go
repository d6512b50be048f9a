package scene

import (
	"github.com/Carmen-Shannon/oxy-render/common"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithNodes attaches initial nodes under the root.
// Nodes without IDs will be assigned new IDs.
//
// Parameters:
//   - nodes: the top-level nodes to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithNodes(nodes ...*Node) SceneBuilderOption {
	return func(s *scene) {
		for _, n := range nodes {
			s.register(n)
			s.root.Children = append(s.root.Children, n)
		}
	}
}

// WithRootTransform sets the transform applied to the whole hierarchy.
//
// Parameters:
//   - t: the root transform
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRootTransform(t common.Transform) SceneBuilderOption {
	return func(s *scene) {
		s.root.Local = t
	}
}
