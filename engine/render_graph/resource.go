package render_graph

import (
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
)

// Lifetime says who owns a graph resource's GPU texture.
type Lifetime uint8

const (
	// LifetimeTransient textures are created at their first use in a frame and released after
	// their last use.
	LifetimeTransient Lifetime = iota
	// LifetimeExternal textures are owned outside the graph and bound by name from
	// Context.Externals every frame.
	LifetimeExternal
	// LifetimePersistent textures are created at their first use and kept across frames until
	// the graph is reset.
	LifetimePersistent
)

func (l Lifetime) String() string {
	switch l {
	case LifetimeTransient:
		return "transient"
	case LifetimeExternal:
		return "external"
	case LifetimePersistent:
		return "persistent"
	}
	return "unknown"
}

// Resource is a named texture declared by tasks. Tasks hold the pointer returned by the builder
// in their payload and resolve the GPU texture with Handle during execution.
type Resource struct {
	id       int
	name     string
	desc     gpu.TextureDesc
	lifetime Lifetime

	creator int
	writers []int
	readers []int

	// compiled timeline positions, -1 when unused
	firstUse int
	lastUse  int

	handle gpu.Handle
}

func (r *Resource) Name() string { return r.name }

func (r *Resource) Desc() gpu.TextureDesc { return r.desc }

func (r *Resource) Lifetime() Lifetime { return r.lifetime }

// Handle returns the GPU texture backing the resource. It is only valid while the tasks that
// declared the resource execute; outside that window it is the nil handle.
func (r *Resource) Handle() gpu.Handle { return r.handle }

// Uses returns the first and last compiled step that touch the resource, or -1, -1 when no task
// uses it or the graph is not compiled.
func (r *Resource) Uses() (first, last int) { return r.firstUse, r.lastUse }
