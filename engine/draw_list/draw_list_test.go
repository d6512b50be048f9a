package draw_list

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/render_world"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func camera(eye common.Vec3, far float32) FrameContext {
	view := common.LookAt(eye, common.Vec3{}, common.Vec3{0, 1, 0})
	proj := common.Perspective(math32.Pi/3, 1, 0.1, far)
	return NewFrameContext(view, proj, eye, common.Extent2D{Width: 800, Height: 800})
}

func proxyAt(node scene.NodeID, mesh, material uint64, pos common.Vec3) render_world.RenderProxy {
	world := common.Translation(pos)
	local := common.AABB{Min: common.Vec3{-0.5, -0.5, -0.5}, Max: common.Vec3{0.5, 0.5, 0.5}}
	return render_world.RenderProxy{
		NodeID:      node,
		World:       world,
		WorldBounds: local.Transform(world),
		Mesh:        resource_cache.MeshHandle(mesh),
		Material:    resource_cache.MaterialHandle(material),
	}
}

type key struct {
	material resource_cache.MaterialHandle
	mesh     resource_cache.MeshHandle
}

func keys(items []DrawItem) []key {
	out := make([]key, len(items))
	for i, it := range items {
		out[i] = key{it.Material, it.Mesh}
	}
	return out
}

func TestFrameContextViewProj(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	assert.Equal(t, fc.Proj.Mul(fc.View), fc.ViewProj)
	assert.Equal(t, uint32(800), fc.Viewport.Width)
}

func TestBuildSingleVisibleProxy(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	proxies := []render_world.RenderProxy{proxyAt(1, 1, 1, common.Vec3{})}

	var lists DrawLists
	stats := (&Builder{}).Build(proxies, &fc, 0, &lists)

	require.Len(t, lists.Opaque, 1)
	assert.Equal(t, uint32(0), lists.Opaque[0].ProxyIndex)
	assert.InDelta(t, -5, lists.Opaque[0].Depth, 1e-4)
	assert.Empty(t, lists.Outline)
	assert.Empty(t, lists.Transparent)
	assert.Equal(t, FrameStats{TotalProxies: 1, VisibleProxies: 1, OpaqueDraws: 1}, stats)
}

func TestBuildCullsBeyondFarPlane(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5000}, 100)
	proxies := []render_world.RenderProxy{proxyAt(1, 1, 1, common.Vec3{})}

	var lists DrawLists
	stats := (&Builder{}).Build(proxies, &fc, 0, &lists)

	assert.Empty(t, lists.Opaque)
	assert.Equal(t, 1, stats.TotalProxies)
	assert.Equal(t, 0, stats.VisibleProxies)
	assert.Equal(t, 0, stats.OpaqueDraws)
}

func TestBuildGroupsByMaterialThenMesh(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	a := proxyAt(1, 7, 5, common.Vec3{-1, 0, 0})
	b := proxyAt(2, 3, 5, common.Vec3{1, 0, 0})
	c := proxyAt(3, 9, 2, common.Vec3{0, 1, 0})
	want := []key{{2, 9}, {5, 3}, {5, 7}}

	var lists DrawLists
	(&Builder{}).Build([]render_world.RenderProxy{a, b, c}, &fc, 0, &lists)
	assert.Equal(t, want, keys(lists.Opaque))

	(&Builder{}).Build([]render_world.RenderProxy{c, b, a}, &fc, 0, &lists)
	assert.Equal(t, want, keys(lists.Opaque))
}

func TestBuildKeepsExtractionOrderForEqualKeys(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	proxies := []render_world.RenderProxy{
		proxyAt(1, 4, 4, common.Vec3{-1, 0, 0}),
		proxyAt(2, 4, 4, common.Vec3{1, 0, 0}),
	}
	var lists DrawLists
	(&Builder{}).Build(proxies, &fc, 0, &lists)
	require.Len(t, lists.Opaque, 2)
	assert.Equal(t, uint32(0), lists.Opaque[0].ProxyIndex)
	assert.Equal(t, uint32(1), lists.Opaque[1].ProxyIndex)
}

func TestBuildIsIdempotent(t *testing.T) {
	fc := camera(common.Vec3{3, 2, 5}, 100)
	proxies := []render_world.RenderProxy{
		proxyAt(1, 2, 9, common.Vec3{0, 0, 0}),
		proxyAt(2, 1, 9, common.Vec3{2, 0, -3}),
		proxyAt(3, 5, 1, common.Vec3{-2, 1, 0}),
		proxyAt(4, 5, 1, common.Vec3{0, 0, 500}),
	}
	b := &Builder{}

	var first, second DrawLists
	s1 := b.Build(proxies, &fc, 3, &first)
	s2 := b.Build(proxies, &fc, 3, &second)
	assert.Equal(t, s1, s2)
	assert.Equal(t, first, second)

	s3 := b.Build(proxies, &fc, 3, &first)
	assert.Equal(t, s1, s3)
	assert.Equal(t, second, first, "reusing lists gives the same result")
}

func TestBuildDropsUnresolvedMesh(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	unresolved := proxyAt(1, 0, 1, common.Vec3{})
	proxies := []render_world.RenderProxy{unresolved, proxyAt(2, 1, 1, common.Vec3{1, 0, 0})}

	var lists DrawLists
	b := &Builder{IsTransparent: func(*render_world.RenderProxy) bool { return true }}
	stats := b.Build(proxies, &fc, 1, &lists)
	b.CollectTransparent(proxies, &fc, &lists)
	for _, items := range [][]DrawItem{lists.Opaque, lists.Outline, lists.Transparent} {
		for _, it := range items {
			assert.NotEqual(t, uint32(0), it.ProxyIndex)
		}
	}
	assert.Equal(t, 1, stats.VisibleProxies)
}

func TestBuildDropsUnresolvedMaterial(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	broken := proxyAt(1, 1, 0, common.Vec3{})
	proxies := []render_world.RenderProxy{broken, proxyAt(2, 1, 1, common.Vec3{1, 0, 0})}

	var lists DrawLists
	stats := (&Builder{}).Build(proxies, &fc, 1, &lists)
	require.Len(t, lists.Opaque, 1)
	assert.Equal(t, uint32(1), lists.Opaque[0].ProxyIndex)
	assert.Empty(t, lists.Outline)
	assert.Equal(t, 1, stats.OpaqueDraws)
	assert.Equal(t, 1, stats.VisibleProxies)

	b := &Builder{IsTransparent: func(p *render_world.RenderProxy) bool { return p.NodeID == 1 }}
	assert.Equal(t, 0, b.CollectTransparent(proxies, &fc, &lists))
}

func TestBuildNeverCullsInvalidBounds(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	p := proxyAt(1, 1, 1, common.Vec3{0, 0, 1000})
	p.WorldBounds = common.EmptyAABB()

	var lists DrawLists
	stats := (&Builder{}).Build([]render_world.RenderProxy{p}, &fc, 0, &lists)
	require.Len(t, lists.Opaque, 1)
	assert.Equal(t, 1, stats.VisibleProxies)
	assert.InDelta(t, 995, lists.Opaque[0].Depth, 1e-2, "depth falls back to the world origin")
}

func TestBuildOutlineForSelectedNode(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	proxies := []render_world.RenderProxy{
		proxyAt(10, 1, 1, common.Vec3{}),
		proxyAt(11, 2, 1, common.Vec3{1, 0, 0}),
		proxyAt(12, 3, 1, common.Vec3{0, 0, 900}),
	}
	var lists DrawLists
	b := &Builder{}

	stats := b.Build(proxies, &fc, 11, &lists)
	require.Len(t, lists.Outline, 1)
	assert.Equal(t, uint32(1), lists.Outline[0].ProxyIndex)
	assert.Len(t, lists.Opaque, 2)
	assert.Equal(t, 1, stats.OutlineDraws)

	b.Build(proxies, &fc, 12, &lists)
	assert.Empty(t, lists.Outline, "a culled selection has no outline")
}

func TestTransparentProxiesStayOutOfOpaque(t *testing.T) {
	fc := camera(common.Vec3{0, 0, 5}, 100)
	near := proxyAt(1, 1, 1, common.Vec3{0, 0, 2})
	far := proxyAt(2, 1, 1, common.Vec3{0, 0, -10})
	mid := proxyAt(3, 1, 1, common.Vec3{0, 0, -1})
	solid := proxyAt(4, 2, 2, common.Vec3{})
	for _, p := range []*render_world.RenderProxy{&near, &far, &mid} {
		p.Flags = scene.NodeFlagTransparent
	}
	proxies := []render_world.RenderProxy{near, far, mid, solid}

	var lists DrawLists
	b := &Builder{}
	stats := b.Build(proxies, &fc, 0, &lists)
	assert.Equal(t, 4, stats.VisibleProxies)
	require.Len(t, lists.Opaque, 1)
	assert.Equal(t, uint32(3), lists.Opaque[0].ProxyIndex)
	assert.Empty(t, lists.Transparent, "the builder never fills the transparent list")

	assert.Equal(t, 3, b.CollectTransparent(proxies, &fc, &lists))
	lists.SortTransparentBackToFront()
	var order []uint32
	for _, it := range lists.Transparent {
		order = append(order, it.ProxyIndex)
	}
	assert.Equal(t, []uint32{1, 2, 0}, order)
}

func TestDrawListsResetKeepsCapacity(t *testing.T) {
	var lists DrawLists
	lists.Opaque = append(lists.Opaque, DrawItem{}, DrawItem{})
	lists.AppendTransparent(DrawItem{})
	c := cap(lists.Opaque)

	lists.Reset()
	assert.Empty(t, lists.Opaque)
	assert.Empty(t, lists.Transparent)
	assert.Equal(t, c, cap(lists.Opaque))
}
