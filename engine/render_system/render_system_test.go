package render_system

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/render_pass"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	colorFormat = gpu.FormatBGRA8Unorm
	depthFormat = gpu.FormatDepth24Plus
)

var viewport = common.Extent2D{Width: 800, Height: 600}

type fixture struct {
	lib asset.Library
	dev *gputest.Device
	sys RenderSystem
	ctx *render_graph.Context

	crate *scene.Node
	glass *scene.Node
	ghost *scene.Node
	scene scene.Scene
}

func meshNode(name string, mesh, material asset.ID, pos common.Vec3) *scene.Node {
	n := scene.NewNode(name)
	n.Local.Position = pos
	n.Mesh = &scene.MeshInstance{Mesh: mesh, Material: material}
	return n
}

func newFixture(t *testing.T, options ...RenderSystemBuilderOption) *fixture {
	t.Helper()
	lib := asset.NewLibrary()
	lib.PutMesh("cube", asset.Cube(0.5))
	red := asset.DefaultMaterialData()
	red.BaseColor = [4]float32{1, 0, 0, 1}
	lib.PutMaterial("red", &red)
	glass := asset.DefaultMaterialData()
	glass.BaseColor = [4]float32{0.6, 0.8, 1, 0.3}
	lib.PutMaterial("glass", &glass)

	dev := gputest.NewDevice()
	f := &fixture{
		lib:   lib,
		dev:   dev,
		sys:   NewRenderSystem(lib, dev, options...),
		crate: meshNode("crate", "cube", "red", common.Vec3{0, 0, 0}),
		glass: meshNode("glass", "cube", "glass", common.Vec3{2, 0, 0}),
		ghost: meshNode("ghost", "missing", "red", common.Vec3{-2, 0, 0}),
	}
	f.scene = scene.NewScene("test", scene.WithNodes(f.crate, f.glass, f.ghost))
	f.ctx = &render_graph.Context{
		Recorder:  dev,
		Allocator: dev,
		Externals: map[string]gpu.Handle{
			render_pass.SceneColor: dev.Import("color"),
			render_pass.SceneDepth: dev.Import("depth"),
		},
	}
	return f
}

// frame prepares and executes one frame seen from +z.
func (f *fixture) frame(t *testing.T) {
	t.Helper()
	eye := common.Vec3{0, 0, 10}
	view := common.LookAt(eye, common.Vec3{}, common.Vec3{0, 1, 0})
	proj := common.Perspective(math32.Pi/3, viewport.Aspect(), 0.1, 100)
	require.NoError(t, f.sys.PrepareFrame(f.scene, view, proj, eye, viewport))
	f.dev.ResetCommands()
	require.NoError(t, f.sys.Execute(f.ctx))
	f.ctx.Frame++
}

func (f *fixture) passLabels() []string {
	var labels []string
	for _, c := range f.dev.Filter(gputest.OpBeginPass) {
		labels = append(labels, c.Pass.Label)
	}
	return labels
}

func TestInitRegistersPassesInOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))

	s := f.sys.(*renderSystem)
	assert.Equal(t, []string{"opaque", "outline", "debug aabb", "transparent", "fluid volume", "voxel"}, s.graph.Order())
	assert.Len(t, f.dev.Pipelines, 6)
	assert.Equal(t, 1, f.dev.Layouts)

	require.NoError(t, f.sys.Init(colorFormat, depthFormat))
	assert.Len(t, s.graph.Order(), 6)
	assert.Equal(t, 1, f.dev.Layouts)
}

func TestExecuteBeforeInit(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.sys.Execute(f.ctx), ErrNotInitialized)
}

func TestPrepareFrameBeforeInitReportsLayout(t *testing.T) {
	f := newFixture(t)
	err := f.sys.PrepareFrame(f.scene, common.Identity(), common.Identity(), common.Vec3{}, viewport)
	assert.ErrorIs(t, err, resource_cache.ErrMaterialLayoutUnset)
	assert.Empty(t, f.sys.DrawLists().Opaque)
	assert.Equal(t, 0, f.sys.Stats().TotalProxies)
}

func TestFrameDrawsOpaqueAndTransparent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))

	f.frame(t)

	stats := f.sys.Stats()
	assert.Equal(t, 2, stats.TotalProxies)
	assert.Equal(t, 2, stats.VisibleProxies)
	assert.Equal(t, 1, stats.OpaqueDraws)
	assert.Equal(t, 1, stats.TransparentDraws)
	assert.Equal(t, 0, stats.OutlineDraws)

	assert.Equal(t, []string{"opaque", "transparent"}, f.passLabels())
	assert.Len(t, f.dev.Filter(gputest.OpDrawIndexed), 2)

	lists := f.sys.DrawLists()
	require.Len(t, lists.Opaque, 1)
	require.Len(t, lists.Transparent, 1)
	assert.Equal(t, common.Translation(common.Vec3{2, 0, 0}), lists.Transparent[0].World)
}

func TestTransparentFlagOverridesOpaqueMaterial(t *testing.T) {
	f := newFixture(t)
	f.crate.Flags |= scene.NodeFlagTransparent
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))

	f.frame(t)

	assert.Equal(t, 0, f.sys.Stats().OpaqueDraws)
	assert.Equal(t, 2, f.sys.Stats().TransparentDraws)
}

func TestSelectedNodeIsOutlined(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))
	f.sys.SetSelectedNode(f.crate.ID)

	f.frame(t)

	assert.Equal(t, 1, f.sys.Stats().OutlineDraws)
	assert.Equal(t, []string{"opaque", "outline", "transparent"}, f.passLabels())

	f.sys.SetSelectedNode(0)
	f.frame(t)
	assert.Equal(t, 0, f.sys.Stats().OutlineDraws)
}

func TestDebugAABBToggle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))

	f.sys.SetDebugDrawAABB(true)
	f.frame(t)
	lines := f.dev.Filter(gputest.OpDrawLines)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0].Points, 48)

	f.sys.SetDebugDrawAABB(false)
	f.frame(t)
	assert.Empty(t, f.dev.Filter(gputest.OpDrawLines))
}

func TestOverlaysLastOneFrame(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))

	f.sys.SetFluidData(&render_pass.FluidRenderData{
		Bounds: common.AABB{Min: common.Vec3{-1, -1, -1}, Max: common.Vec3{1, 1, 1}},
	})
	f.sys.SetVoxelData(&render_pass.VoxelRenderData{
		Bounds:   common.AABB{Min: common.Vec3{0, 0, 0}, Max: common.Vec3{2, 1, 1}},
		Dims:     [3]uint32{2, 1, 1},
		Occupied: []bool{true, true},
	})
	f.frame(t)
	assert.Equal(t, []string{"opaque", "transparent", "fluid volume", "voxel"}, f.passLabels())

	f.frame(t)
	assert.Equal(t, []string{"opaque", "transparent"}, f.passLabels())
}

func TestInvalidateReloadsMesh(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))
	f.frame(t)
	assert.InDelta(t, 2.5, f.sys.World().Bounds().Max[0], 1e-5)
	uploads := f.dev.MeshUploads

	f.lib.PutMesh("cube", asset.Cube(1))
	f.sys.Invalidate("cube")
	f.frame(t)

	assert.Equal(t, uploads+1, f.dev.MeshUploads)
	assert.InDelta(t, 3, f.sys.World().Bounds().Max[0], 1e-5)
	assert.Len(t, f.dev.Filter(gputest.OpDrawIndexed), 2)
}

func TestHiddenNodesAreEvicted(t *testing.T) {
	f := newFixture(t, WithCacheOptions(resource_cache.WithEvictAfterFrames(2), resource_cache.WithRetireFrames(0)))
	f.lib.PutMesh("ball", asset.Sphere(0.5, 8, 6))
	ball := meshNode("ball", "ball", "red", common.Vec3{0, 2, 0})
	_, ok := f.scene.Attach(0, ball)
	require.True(t, ok)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))

	f.frame(t)
	assert.Equal(t, 2, f.sys.Cache().Stats().Meshes)

	ball.Visible = false
	for i := 0; i < 3; i++ {
		f.frame(t)
	}
	stats := f.sys.Cache().Stats()
	assert.Equal(t, 1, stats.Meshes)
	assert.GreaterOrEqual(t, stats.Evictions, uint64(1))
	assert.Equal(t, 0, stats.PendingReleases)
}

func TestAbortFrameEndsCacheFrame(t *testing.T) {
	f := newFixture(t, WithCacheOptions(resource_cache.WithEvictAfterFrames(2), resource_cache.WithRetireFrames(0)))
	f.lib.PutMesh("ball", asset.Sphere(0.5, 8, 6))
	ball := meshNode("ball", "ball", "red", common.Vec3{0, 2, 0})
	_, ok := f.scene.Attach(0, ball)
	require.True(t, ok)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))
	f.frame(t)

	ball.Visible = false
	eye := common.Vec3{0, 0, 10}
	view := common.LookAt(eye, common.Vec3{}, common.Vec3{0, 1, 0})
	proj := common.Perspective(math32.Pi/3, viewport.Aspect(), 0.1, 100)
	for i := 0; i < 3; i++ {
		f.sys.SetFluidData(&render_pass.FluidRenderData{
			Bounds: common.AABB{Min: common.Vec3{-1, -1, -1}, Max: common.Vec3{1, 1, 1}},
		})
		require.NoError(t, f.sys.PrepareFrame(f.scene, view, proj, eye, viewport))
		f.sys.AbortFrame()
		f.sys.AbortFrame()
	}
	stats := f.sys.Cache().Stats()
	assert.Equal(t, 1, stats.Meshes)
	assert.Equal(t, 0, stats.PendingReleases)

	f.frame(t)
	assert.Equal(t, []string{"opaque", "transparent"}, f.passLabels(), "aborted overlays are dropped")
}

func TestPostProcess(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))
	target := f.dev.Import("swapchain")

	f.dev.ResetCommands()
	require.NoError(t, f.sys.ExecutePostProcess(f.ctx, target, viewport, colorFormat))
	assert.Empty(t, f.dev.Ops(), "disabled post-process records nothing")

	f.sys.SetPostProcessSettings(render_pass.PostProcessSettings{EnableBlur: true})
	require.NoError(t, f.sys.ExecutePostProcess(f.ctx, target, viewport, colorFormat))
	assert.Len(t, f.dev.Filter(gputest.OpDrawFullscreen), 3)
	copies := f.dev.Filter(gputest.OpCopyTexture)
	require.Len(t, copies, 1)
	assert.Equal(t, target, copies[0].Handle)

	f.dev.ResetCommands()
	f.sys.SetPostProcessSettings(render_pass.PostProcessSettings{EnableBlur: true, EnableDistortion: true})
	require.NoError(t, f.sys.ExecutePostProcess(f.ctx, target, viewport, colorFormat))
	assert.Len(t, f.dev.Filter(gputest.OpDrawFullscreen), 4)
	assert.True(t, f.sys.PostProcessSettings().EnableDistortion)

	blit := f.dev.Filter(gputest.OpBeginPass)
	assert.Equal(t, target, blit[len(blit)-1].Pass.Color)
	assert.NotContains(t, f.ctx.Externals, render_pass.PostTarget)
}

func TestReleaseFreesGPUObjects(t *testing.T) {
	f := newFixture(t)
	live := f.dev.Live()
	require.NoError(t, f.sys.Init(colorFormat, depthFormat))
	f.frame(t)
	require.Greater(t, f.dev.Live(), live)

	f.sys.Release()
	assert.ErrorIs(t, f.sys.Execute(f.ctx), ErrNotInitialized)
	assert.Empty(t, f.sys.DrawLists().Opaque)
}
