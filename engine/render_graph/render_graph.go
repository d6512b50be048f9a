// Package render_graph schedules render tasks by the resources they declare. Tasks register a
// setup callback that declares reads and writes and an execute callback that records GPU work.
// Compile orders the tasks once; Execute replays that order every frame and manages the
// lifetimes of the textures the tasks declared.
package render_graph

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
)

var (
	// ErrCycle is wrapped by the *CycleError Compile returns for cyclic dependencies.
	ErrCycle = errors.New("render graph dependency cycle")

	// ErrNotCompiled is returned by Execute when the graph cannot be compiled.
	ErrNotCompiled = errors.New("render graph not compiled")
)

// CycleError lists the tasks left unordered by a dependency cycle.
type CycleError struct {
	Tasks []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v among tasks %s", ErrCycle, strings.Join(e.Tasks, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// State is the graph's compile state.
type State uint8

const (
	StateUninitialized State = iota
	StateCompiling
	StateCompiled
	// StateDirty means tasks were added after the last compile.
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCompiling:
		return "compiling"
	case StateCompiled:
		return "compiled"
	case StateDirty:
		return "dirty"
	}
	return "unknown"
}

// Context is handed to every task's execute callback for one frame.
type Context struct {
	// Recorder receives the GPU commands of every task.
	Recorder gpu.Recorder
	// Allocator creates and releases transient and persistent textures.
	Allocator gpu.Allocator
	// Externals binds imported resources by name.
	Externals map[string]gpu.Handle
	// Frame is the index of the frame being executed.
	Frame  uint64
	Logger *slog.Logger
}

type step struct {
	task      runner
	realize   []*Resource
	derealize []*Resource
}

// graph is the implementation of the Graph interface.
type graph struct {
	logger *slog.Logger

	tasks     []runner
	resources []*Resource
	byName    map[string]*Resource
	names     map[string]bool

	state    State
	order    []int
	timeline []step

	// allocator that created the live persistent textures
	persistentAlloc gpu.Allocator
}

// Graph orders render tasks by their declared resources and runs them every frame.
// Register tasks with AddTask. Not safe for concurrent use.
type Graph interface {
	// Compile resolves one execution order consistent with every declared dependency: each
	// writer of a resource runs before later writers (by registration) and before every reader.
	// Among tasks that are ready at the same time, the first registered runs first. It also
	// works out where each resource is first and last used.
	//
	// Returns:
	//   - error: a *CycleError wrapping ErrCycle when the dependencies contain a cycle; the
	//     graph then stays uncompiled
	Compile() error

	// Execute runs every task in compiled order. Transient textures are created before the
	// first task that uses them and released after the last one; external textures are bound
	// from ctx.Externals. An uncompiled graph is compiled first.
	//
	// Parameters:
	//   - ctx: the frame's execution context
	//
	// Returns:
	//   - error: the first task or resource error, wrapped with the task name; the rest of the
	//     frame is skipped
	Execute(ctx *Context) error

	// Order returns the task names in compiled order, or nil when the graph is not compiled.
	Order() []string

	// State returns the compile state.
	State() State

	// Resource looks up a declared resource by name.
	Resource(name string) (*Resource, bool)

	// Reset removes every task and resource and releases persistent textures.
	Reset()

	addTask(t runner, setup func(b *TaskBuilder) error) error
}

var _ Graph = &graph{}

// New creates an empty render graph.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Graph: the graph
func New(options ...GraphBuilderOption) Graph {
	g := &graph{
		logger: common.NopLogger(),
		byName: make(map[string]*Resource),
		names:  make(map[string]bool),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *graph) addTask(t runner, setup func(b *TaskBuilder) error) error {
	tb := t.base()
	if tb.name == "" {
		return errors.New("add task: empty name")
	}
	if g.names[tb.name] {
		return fmt.Errorf("add task %q: name already registered", tb.name)
	}
	tb.id = len(g.tasks)

	b := &TaskBuilder{g: g, task: tb.id}
	if err := setup(b); err != nil {
		return fmt.Errorf("add task %q: setup: %w", tb.name, err)
	}
	if b.err != nil {
		return fmt.Errorf("add task %q: %w", tb.name, b.err)
	}
	b.commit()
	g.tasks = append(g.tasks, t)
	g.names[tb.name] = true

	if g.state == StateCompiled {
		g.state = StateDirty
	}
	g.logger.Debug("[RenderGraph] task added", "task", tb.name, "id", tb.id, "reads", len(b.reads), "writes", len(b.writes))
	return nil
}

// readyQueue pops the lowest task id first.
type readyQueue []int

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(int)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	v := old[n-1]
	*q = old[:n-1]
	return v
}

func (g *graph) Compile() error {
	prev := g.state
	g.state = StateCompiling

	n := len(g.tasks)
	adj := make([][]int, n)
	indegree := make([]int, n)
	edge := func(from, to int) {
		if from == to {
			return
		}
		adj[from] = append(adj[from], to)
		indegree[to]++
	}

	for _, r := range g.resources {
		writers := uniqueSorted(r.writers)
		for i := 1; i < len(writers); i++ {
			edge(writers[i-1], writers[i])
		}
		for _, w := range writers {
			for _, rd := range r.readers {
				edge(w, rd)
			}
		}
	}

	ready := &readyQueue{}
	for id := range n {
		if indegree[id] == 0 {
			heap.Push(ready, id)
		}
	}
	order := make([]int, 0, n)
	for ready.Len() > 0 {
		u := heap.Pop(ready).(int)
		order = append(order, u)
		for _, v := range adj[u] {
			indegree[v]--
			if indegree[v] == 0 {
				heap.Push(ready, v)
			}
		}
	}

	if len(order) != n {
		cyc := &CycleError{}
		for id, d := range indegree {
			if d > 0 {
				cyc.Tasks = append(cyc.Tasks, g.tasks[id].base().name)
			}
		}
		if prev == StateCompiled {
			prev = StateDirty
		}
		g.state = prev
		g.logger.Error("[RenderGraph] compile failed", "error", cyc)
		return cyc
	}

	position := make([]int, n)
	for i, id := range order {
		position[id] = i
	}
	timeline := make([]step, n)
	for i, id := range order {
		timeline[i].task = g.tasks[id]
	}
	for _, r := range g.resources {
		r.firstUse, r.lastUse = -1, -1
		for _, users := range [][]int{r.writers, r.readers} {
			for _, id := range users {
				p := position[id]
				if r.firstUse < 0 || p < r.firstUse {
					r.firstUse = p
				}
				if p > r.lastUse {
					r.lastUse = p
				}
			}
		}
		if r.firstUse < 0 {
			g.logger.Debug("[RenderGraph] resource not used by any task", "resource", r.name)
			continue
		}
		timeline[r.firstUse].realize = append(timeline[r.firstUse].realize, r)
		timeline[r.lastUse].derealize = append(timeline[r.lastUse].derealize, r)
	}

	g.order = order
	g.timeline = timeline
	g.state = StateCompiled

	if g.logger.Enabled(context.Background(), slog.LevelDebug) {
		g.logger.Debug("[RenderGraph] compile done", "order", g.Order())
		for _, r := range g.resources {
			g.logger.Debug("[RenderGraph] resource lifetime", "resource", r.name, "lifetime", r.lifetime.String(), "firstUse", r.firstUse, "lastUse", r.lastUse)
		}
	}
	return nil
}

func uniqueSorted(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func (g *graph) Execute(ctx *Context) error {
	if ctx == nil {
		return errors.New("execute render graph: nil context")
	}
	if ctx.Logger == nil {
		ctx.Logger = g.logger
	}
	if g.state != StateCompiled {
		g.logger.Warn("[RenderGraph] executing before compile, compiling now", "state", g.state.String())
		if err := g.Compile(); err != nil {
			return fmt.Errorf("%w: %w", ErrNotCompiled, err)
		}
	}

	var live []*Resource
	defer func() {
		for _, r := range live {
			g.derealize(r, ctx)
		}
	}()

	for _, s := range g.timeline {
		for _, r := range s.realize {
			if err := g.realize(r, ctx); err != nil {
				return fmt.Errorf("task %q: %w", s.task.base().name, err)
			}
			live = append(live, r)
		}
		if err := s.task.run(ctx); err != nil {
			return fmt.Errorf("task %q: %w", s.task.base().name, err)
		}
		for _, r := range s.derealize {
			g.derealize(r, ctx)
			live = removeResource(live, r)
		}
	}
	return nil
}

func removeResource(list []*Resource, r *Resource) []*Resource {
	for i, v := range list {
		if v == r {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (g *graph) realize(r *Resource, ctx *Context) error {
	switch r.lifetime {
	case LifetimeExternal:
		h, ok := ctx.Externals[r.name]
		if !ok || h.IsNil() {
			return fmt.Errorf("external resource %q is not bound", r.name)
		}
		r.handle = h
	case LifetimePersistent:
		if !r.handle.IsNil() {
			return nil
		}
		fallthrough
	default:
		if ctx.Allocator == nil {
			return fmt.Errorf("resource %q: no allocator", r.name)
		}
		h, err := ctx.Allocator.CreateTexture(r.desc)
		if err != nil {
			return fmt.Errorf("realize %q: %w", r.name, err)
		}
		r.handle = h
		if r.lifetime == LifetimePersistent {
			g.persistentAlloc = ctx.Allocator
		}
	}
	return nil
}

func (g *graph) derealize(r *Resource, ctx *Context) {
	switch r.lifetime {
	case LifetimePersistent:
		return
	case LifetimeTransient:
		if !r.handle.IsNil() && ctx.Allocator != nil {
			ctx.Allocator.ReleaseTexture(r.handle)
		}
	}
	r.handle = 0
}

func (g *graph) Order() []string {
	if g.state != StateCompiled {
		return nil
	}
	out := make([]string, len(g.order))
	for i, id := range g.order {
		out[i] = g.tasks[id].base().name
	}
	return out
}

func (g *graph) State() State { return g.state }

func (g *graph) Resource(name string) (*Resource, bool) {
	r, ok := g.byName[name]
	return r, ok
}

func (g *graph) Reset() {
	for _, r := range g.resources {
		if r.lifetime == LifetimePersistent && !r.handle.IsNil() && g.persistentAlloc != nil {
			g.persistentAlloc.ReleaseTexture(r.handle)
		}
		r.handle = 0
	}
	g.tasks = nil
	g.resources = nil
	g.order = nil
	g.timeline = nil
	g.persistentAlloc = nil
	clear(g.byName)
	clear(g.names)
	g.state = StateUninitialized
}
