package render_world

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	lib   asset.Library
	dev   *gputest.Device
	cache resource_cache.Cache
}

func newFixture(t *testing.T, withLayout bool) *fixture {
	t.Helper()
	lib := asset.NewLibrary()
	lib.PutMesh("cube", asset.Cube(0.5))
	red := asset.DefaultMaterialData()
	red.BaseColor = [4]float32{1, 0, 0, 1}
	lib.PutMaterial("red", &red)

	dev := gputest.NewDevice()
	c := resource_cache.NewCache(lib, dev)
	if withLayout {
		layout, err := dev.CreateMaterialLayout("material")
		require.NoError(t, err)
		c.SetMaterialDescriptorLayout(layout)
	}
	return &fixture{lib: lib, dev: dev, cache: c}
}

func meshNode(name string, mesh asset.ID, pos common.Vec3) *scene.Node {
	n := scene.NewNode(name)
	n.Local.Position = pos
	n.Mesh = &scene.MeshInstance{Mesh: mesh, Material: "red"}
	return n
}

func nodeIDs(w World) []scene.NodeID {
	var out []scene.NodeID
	for _, p := range w.Proxies() {
		out = append(out, p.NodeID)
	}
	return out
}

func TestExtractPreOrder(t *testing.T) {
	f := newFixture(t, true)
	a1 := meshNode("a1", "cube", common.Vec3{})
	a := meshNode("a", "cube", common.Vec3{}).Add(a1)
	b := meshNode("b", "cube", common.Vec3{})
	sc := scene.NewScene("s", scene.WithNodes(a, b))

	w := NewWorld()
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	assert.Equal(t, []scene.NodeID{a.ID, a1.ID, b.ID}, nodeIDs(w))

	i, ok := w.FindProxy(a1.ID)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	assert.Len(t, w.Proxies(), 3, "extraction rebuilds from scratch")
	assert.Equal(t, 1, f.dev.MeshUploads)
}

func TestExtractComposesTransforms(t *testing.T) {
	f := newFixture(t, true)
	child := meshNode("child", "cube", common.Vec3{0, 1, 0})
	parent := scene.NewNode("parent").Add(child)
	parent.Local.Position = common.Vec3{10, 0, 0}
	sc := scene.NewScene("s", scene.WithNodes(parent))

	w := NewWorld()
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	require.Len(t, w.Proxies(), 1)

	p := w.Proxies()[0]
	assert.Equal(t, common.Vec3{10, 1, 0}, p.World.TransformPoint(common.Vec3{}))
	assert.Equal(t, common.AABB{Min: common.Vec3{9.5, 0.5, -0.5}, Max: common.Vec3{10.5, 1.5, 0.5}}, p.WorldBounds)
	assert.Equal(t, asset.ID("cube"), p.MeshAsset)
	assert.Equal(t, asset.ID("red"), p.MaterialAsset)
	assert.False(t, p.Mesh.IsNil())
	assert.False(t, p.Material.IsNil())
}

func TestExtractHiddenSubtree(t *testing.T) {
	f := newFixture(t, true)
	inner := meshNode("inner", "cube", common.Vec3{})
	hidden := meshNode("hidden", "cube", common.Vec3{}).Add(inner)
	hidden.Visible = false
	shown := meshNode("shown", "cube", common.Vec3{})
	sc := scene.NewScene("s", scene.WithNodes(hidden, shown))

	w := NewWorld()
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	assert.Equal(t, []scene.NodeID{shown.ID}, nodeIDs(w))
	_, ok := w.FindProxy(inner.ID)
	assert.False(t, ok)
}

func TestExtractSkipsUnresolvedContent(t *testing.T) {
	f := newFixture(t, true)
	f.lib.PutMesh("broken upload", asset.Cube(1))
	f.dev.FailLabel("broken upload")

	empty := scene.NewNode("group")
	missing := meshNode("missing", "nope", common.Vec3{})
	failed := meshNode("failed", "broken upload", common.Vec3{})
	sc := scene.NewScene("s", scene.WithNodes(empty, missing, failed))

	w := NewWorld()
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	require.Equal(t, []scene.NodeID{failed.ID}, nodeIDs(w))
	assert.True(t, w.Proxies()[0].Mesh.IsNil(), "upload failure keeps the proxy with a null mesh")
}

func TestExtractRequiresMaterialLayout(t *testing.T) {
	f := newFixture(t, false)
	sc := scene.NewScene("s", scene.WithNodes(meshNode("a", "cube", common.Vec3{})))

	w := NewWorld()
	err := w.ExtractFromScene(sc, f.lib, f.cache)
	assert.ErrorIs(t, err, resource_cache.ErrMaterialLayoutUnset)
	assert.Empty(t, w.Proxies())
}

func TestExtractCopiesFlags(t *testing.T) {
	f := newFixture(t, true)
	glass := meshNode("glass", "cube", common.Vec3{})
	glass.Flags = scene.NodeFlagTransparent
	sc := scene.NewScene("s", scene.WithNodes(glass))

	w := NewWorld()
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	require.Len(t, w.Proxies(), 1)
	assert.Equal(t, scene.NodeFlagTransparent, w.Proxies()[0].Flags)
}

func TestBounds(t *testing.T) {
	f := newFixture(t, true)
	w := NewWorld(WithCapacity(4))
	assert.False(t, w.Bounds().Valid())
	require.NoError(t, w.ExtractFromScene(nil, f.lib, f.cache))

	sc := scene.NewScene("s", scene.WithNodes(
		meshNode("a", "cube", common.Vec3{-2, 0, 0}),
		meshNode("b", "cube", common.Vec3{3, 0, 0}),
	))
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	assert.Equal(t, common.AABB{Min: common.Vec3{-2.5, -0.5, -0.5}, Max: common.Vec3{3.5, 0.5, 0.5}}, w.Bounds())
}

func TestMeshBoundsAreMemoised(t *testing.T) {
	f := newFixture(t, true)
	sc := scene.NewScene("s", scene.WithNodes(meshNode("a", "cube", common.Vec3{})))
	w := NewWorld()
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))

	f.lib.PutMesh("cube", asset.Cube(2))
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	assert.Equal(t, common.Vec3{0.5, 0.5, 0.5}, w.Proxies()[0].WorldBounds.Max)

	w.InvalidateBounds("cube")
	require.NoError(t, w.ExtractFromScene(sc, f.lib, f.cache))
	assert.Equal(t, common.Vec3{2, 2, 2}, w.Proxies()[0].WorldBounds.Max)
}
