package render_graph

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
)

// TaskBuilder declares the resources of one task during setup. Declarations only take effect if
// setup succeeds.
type TaskBuilder struct {
	g    *graph
	task int

	created []*Resource
	reads   []*Resource
	writes  []*Resource
	err     error
}

func (b *TaskBuilder) fail(err error) {
	b.err = errors.Join(b.err, err)
}

func (b *TaskBuilder) lookup(name string) *Resource {
	if r, ok := b.g.byName[name]; ok {
		return r
	}
	for _, r := range b.created {
		if r.name == name {
			return r
		}
	}
	return nil
}

func (b *TaskBuilder) declare(name string, desc gpu.TextureDesc, lifetime Lifetime) *Resource {
	if desc.Label == "" {
		desc.Label = name
	}
	r := &Resource{
		id:       len(b.g.resources) + len(b.created),
		name:     name,
		desc:     desc,
		lifetime: lifetime,
		creator:  b.task,
		firstUse: -1,
		lastUse:  -1,
	}
	b.created = append(b.created, r)
	return r
}

// Create declares a new texture written by this task.
//
// Parameters:
//   - name: the resource name, unique within the graph
//   - desc: the texture to allocate; its label defaults to name
//   - lifetime: LifetimeTransient or LifetimePersistent
//
// Returns:
//   - *Resource: the resource, or nil when the name is taken or the lifetime is external
func (b *TaskBuilder) Create(name string, desc gpu.TextureDesc, lifetime Lifetime) *Resource {
	if lifetime == LifetimeExternal {
		b.fail(fmt.Errorf("create %q: use Import for external resources", name))
		return nil
	}
	if b.lookup(name) != nil {
		b.fail(fmt.Errorf("create %q: resource already declared", name))
		return nil
	}
	r := b.declare(name, desc, lifetime)
	b.writes = append(b.writes, r)
	return r
}

// Import declares an externally owned texture bound at execution time from Context.Externals
// under the same name. Importing a name twice returns the same resource.
//
// Parameters:
//   - name: the external binding name
//   - desc: what the external texture is expected to be
//
// Returns:
//   - *Resource: the resource, or nil when a non-external resource already has the name
func (b *TaskBuilder) Import(name string, desc gpu.TextureDesc) *Resource {
	if r := b.lookup(name); r != nil {
		if r.lifetime != LifetimeExternal {
			b.fail(fmt.Errorf("import %q: a %s resource has that name", name, r.lifetime))
			return nil
		}
		return r
	}
	return b.declare(name, desc, LifetimeExternal)
}

// Read declares that this task reads r.
func (b *TaskBuilder) Read(r *Resource) *Resource {
	if r == nil {
		b.fail(errors.New("read of a nil resource"))
		return nil
	}
	b.reads = append(b.reads, r)
	return r
}

// Write declares that this task writes r.
func (b *TaskBuilder) Write(r *Resource) *Resource {
	if r == nil {
		b.fail(errors.New("write of a nil resource"))
		return nil
	}
	b.writes = append(b.writes, r)
	return r
}

// commit links the declarations into the graph.
func (b *TaskBuilder) commit() {
	for _, r := range b.created {
		b.g.resources = append(b.g.resources, r)
		b.g.byName[r.name] = r
	}
	for _, r := range b.writes {
		r.writers = append(r.writers, b.task)
	}
	for _, r := range b.reads {
		r.readers = append(r.readers, b.task)
	}
}
