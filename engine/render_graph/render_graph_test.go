package render_graph

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passData struct {
	in  *Resource
	out *Resource
}

var target = gpu.TextureDesc{
	Extent: common.Extent2D{Width: 64, Height: 64},
	Format: gpu.FormatRGBA8Unorm,
	Usage:  gpu.UsageRenderTarget | gpu.UsageSampled,
}

// recordTask adds a task that appends its name to log when executed.
func recordTask(t *testing.T, g Graph, name string, log *[]string, setup func(*passData, *TaskBuilder) error) *Task[passData] {
	t.Helper()
	task, err := AddTask(g, name, setup, func(_ *passData, _ *Context) error {
		*log = append(*log, name)
		return nil
	})
	require.NoError(t, err)
	return task
}

func TestWriterRunsBeforeReaderRegardlessOfRegistration(t *testing.T) {
	g := New()
	var log []string

	recordTask(t, g, "B", &log, nil)
	recordTask(t, g, "C", &log, func(d *passData, b *TaskBuilder) error {
		d.in = b.Read(b.Import("x", target))
		return nil
	})
	recordTask(t, g, "A", &log, func(d *passData, b *TaskBuilder) error {
		d.out = b.Write(b.Import("x", target))
		return nil
	})

	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"B", "A", "C"}, g.Order())

	require.NoError(t, g.Execute(&Context{Externals: map[string]gpu.Handle{"x": 7}}))
	assert.Equal(t, []string{"B", "A", "C"}, log)
}

func TestIndependentTasksKeepRegistrationOrder(t *testing.T) {
	g := New()
	var log []string
	for _, name := range []string{"first", "second", "third"} {
		recordTask(t, g, name, &log, nil)
	}
	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"first", "second", "third"}, g.Order())
}

func TestWritersAreChainedInRegistrationOrder(t *testing.T) {
	g := New()
	var log []string
	recordTask(t, g, "present", &log, func(d *passData, b *TaskBuilder) error {
		b.Read(b.Import("color", target))
		return nil
	})
	recordTask(t, g, "opaque", &log, func(d *passData, b *TaskBuilder) error {
		b.Write(b.Import("color", target))
		return nil
	})
	recordTask(t, g, "overlay", &log, func(d *passData, b *TaskBuilder) error {
		b.Write(b.Import("color", target))
		return nil
	})
	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"opaque", "overlay", "present"}, g.Order())
}

func TestCompileDetectsCycle(t *testing.T) {
	g := New()
	var log []string
	recordTask(t, g, "independent", &log, nil)
	recordTask(t, g, "ping", &log, func(d *passData, b *TaskBuilder) error {
		b.Read(b.Import("y", target))
		b.Write(b.Import("x", target))
		return nil
	})
	recordTask(t, g, "pong", &log, func(d *passData, b *TaskBuilder) error {
		b.Read(b.Import("x", target))
		b.Write(b.Import("y", target))
		return nil
	})

	err := g.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	var cyc *CycleError
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, []string{"ping", "pong"}, cyc.Tasks)
	assert.Equal(t, StateUninitialized, g.State())
	assert.Nil(t, g.Order())

	err = g.Execute(&Context{})
	assert.ErrorIs(t, err, ErrNotCompiled)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Empty(t, log)
}

func TestTransientLifetimes(t *testing.T) {
	dev := gputest.NewDevice()
	g := New()
	seen := map[string]gpu.Handle{}

	_, err := AddTask(g, "produce", func(d *passData, b *TaskBuilder) error {
		d.out = b.Create("scratch", target, LifetimeTransient)
		return nil
	}, func(d *passData, ctx *Context) error {
		seen["produce"] = d.out.Handle()
		assert.True(t, dev.IsLive(d.out.Handle()))
		return nil
	})
	require.NoError(t, err)
	_, err = AddTask(g, "consume", func(d *passData, b *TaskBuilder) error {
		d.in = b.Read(b.Import("scratch", target))
		return nil
	}, nil)
	assert.Error(t, err, "a created resource cannot be imported")

	_, err = AddTask(g, "consume", func(d *passData, b *TaskBuilder) error {
		r, ok := g.Resource("scratch")
		require.True(t, ok)
		d.in = b.Read(r)
		d.out = b.Write(b.Import("backbuffer", target))
		return nil
	}, func(d *passData, ctx *Context) error {
		seen["consume"] = d.in.Handle()
		seen["backbuffer"] = d.out.Handle()
		return nil
	})
	require.NoError(t, err)
	_, err = AddTask[passData](g, "late", nil, nil)
	require.NoError(t, err)

	require.NoError(t, g.Compile())
	scratch, _ := g.Resource("scratch")
	first, last := scratch.Uses()
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, last)
	assert.Equal(t, "scratch", scratch.Desc().Label)

	ctx := &Context{Allocator: dev, Externals: map[string]gpu.Handle{"backbuffer": dev.Import("swapchain")}}
	require.NoError(t, g.Execute(ctx))

	assert.False(t, seen["produce"].IsNil())
	assert.Equal(t, seen["produce"], seen["consume"])
	assert.Equal(t, ctx.Externals["backbuffer"], seen["backbuffer"])
	assert.True(t, scratch.Handle().IsNil())
	assert.False(t, dev.IsLive(seen["produce"]), "released after its last use")
	assert.Empty(t, dev.Textures)
}

func TestPersistentResourceSurvivesFrames(t *testing.T) {
	dev := gputest.NewDevice()
	g := New()
	var handles []gpu.Handle
	_, err := AddTask(g, "history", func(d *passData, b *TaskBuilder) error {
		d.out = b.Create("history", target, LifetimePersistent)
		return nil
	}, func(d *passData, ctx *Context) error {
		handles = append(handles, d.out.Handle())
		return nil
	})
	require.NoError(t, err)

	ctx := &Context{Allocator: dev}
	require.NoError(t, g.Execute(ctx))
	require.NoError(t, g.Execute(ctx))
	require.Len(t, handles, 2)
	assert.Equal(t, handles[0], handles[1])
	assert.Len(t, dev.Textures, 1)

	g.Reset()
	assert.Empty(t, dev.Textures)
	assert.Equal(t, StateUninitialized, g.State())
	_, ok := g.Resource("history")
	assert.False(t, ok)
}

func TestExecuteReleasesOnError(t *testing.T) {
	dev := gputest.NewDevice()
	g := New()
	var log []string
	recordTask(t, g, "scratch", &log, func(d *passData, b *TaskBuilder) error {
		d.out = b.Create("scratch", target, LifetimeTransient)
		return nil
	})
	recordTask(t, g, "composite", &log, func(d *passData, b *TaskBuilder) error {
		r, _ := g.Resource("scratch")
		b.Read(r)
		b.Write(b.Import("backbuffer", target))
		return nil
	})

	err := g.Execute(&Context{Allocator: dev})
	require.Error(t, err)
	assert.ErrorContains(t, err, `task "composite"`)
	assert.ErrorContains(t, err, "not bound")
	assert.Equal(t, []string{"scratch"}, log)
	assert.Empty(t, dev.Textures, "transient textures are released when the frame aborts")
}

func TestTaskErrorAbortsFrame(t *testing.T) {
	g := New()
	var log []string
	boom := errors.New("boom")
	recordTask(t, g, "before", &log, nil)
	_, err := AddTask[passData](g, "failing", nil, func(*passData, *Context) error { return boom })
	require.NoError(t, err)
	recordTask(t, g, "after", &log, nil)

	err = g.Execute(&Context{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, `task "failing"`)
	assert.Equal(t, []string{"before"}, log)
}

func TestLazyCompileAndDirtyState(t *testing.T) {
	g := New()
	var log []string
	assert.Equal(t, StateUninitialized, g.State())
	recordTask(t, g, "one", &log, nil)

	require.NoError(t, g.Execute(&Context{}))
	assert.Equal(t, StateCompiled, g.State())
	assert.Equal(t, []string{"one"}, log)

	recordTask(t, g, "two", &log, nil)
	assert.Equal(t, StateDirty, g.State())
	assert.Nil(t, g.Order())

	require.NoError(t, g.Execute(&Context{}))
	assert.Equal(t, []string{"one", "one", "two"}, log)
	assert.Equal(t, StateCompiled, g.State())
}

func TestPayloadsArePerTask(t *testing.T) {
	type counter struct{ n int }
	g := New()
	got := map[string]int{}
	for i, name := range []string{"a", "b"} {
		task, err := AddTask(g, name, func(c *counter, _ *TaskBuilder) error {
			c.n = (i + 1) * 10
			return nil
		}, func(c *counter, _ *Context) error {
			got[name] = c.n
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, (i+1)*10, task.Data().n)
		assert.Equal(t, name, task.Name())
	}
	require.NoError(t, g.Execute(&Context{}))
	assert.Equal(t, map[string]int{"a": 10, "b": 20}, got)
}

func TestAddTaskRejectsBadDeclarations(t *testing.T) {
	g := New()
	_, err := AddTask[passData](g, "", nil, nil)
	assert.Error(t, err)

	_, err = AddTask(g, "dup", func(d *passData, b *TaskBuilder) error {
		b.Create("r", target, LifetimeTransient)
		b.Create("r", target, LifetimeTransient)
		return nil
	}, nil)
	assert.ErrorContains(t, err, "already declared")

	_, err = AddTask(g, "nil read", func(d *passData, b *TaskBuilder) error {
		b.Read(nil)
		return nil
	}, nil)
	assert.Error(t, err)

	_, err = AddTask(g, "external create", func(d *passData, b *TaskBuilder) error {
		b.Create("e", target, LifetimeExternal)
		return nil
	}, nil)
	assert.Error(t, err)

	setupErr := errors.New("setup failed")
	_, err = AddTask(g, "failing setup", func(d *passData, b *TaskBuilder) error {
		b.Create("orphan", target, LifetimeTransient)
		return setupErr
	}, nil)
	assert.ErrorIs(t, err, setupErr)
	_, ok := g.Resource("orphan")
	assert.False(t, ok, "failed setup leaves the graph unchanged")
	_, ok = g.Resource("r")
	assert.False(t, ok)

	_, err = AddTask[passData](g, "ok", nil, nil)
	require.NoError(t, err)
	_, err = AddTask[passData](g, "ok", nil, nil)
	assert.ErrorContains(t, err, "already registered")
	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"ok"}, g.Order())
}

func TestLifetimeAndStateNames(t *testing.T) {
	assert.Equal(t, "transient", LifetimeTransient.String())
	assert.Equal(t, "external", LifetimeExternal.String())
	assert.Equal(t, "persistent", LifetimePersistent.String())
	assert.Equal(t, "compiled", StateCompiled.String())
	assert.Equal(t, "dirty", StateDirty.String())
}
