package resource_cache

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenLoader reports configured identities as malformed.
type brokenLoader struct {
	asset.Library
	broken map[asset.ID]error
}

func (l *brokenLoader) LoadMaterial(id asset.ID) (*asset.MaterialData, error) {
	if err, ok := l.broken[id]; ok {
		return nil, err
	}
	return l.Library.LoadMaterial(id)
}

func checker() *asset.TextureData {
	px := make([]byte, 2*2*4)
	for i := range px {
		px[i] = 200
	}
	return &asset.TextureData{Name: "checker", Pixels: common.TextureStagingData{Pixels: px, Width: 2, Height: 2}}
}

func newTestCache(t *testing.T, options ...CacheBuilderOption) (Cache, asset.Library, *gputest.Device) {
	t.Helper()
	lib := asset.NewLibrary()
	lib.PutMesh("cube", asset.Cube(0.5))
	lib.PutMesh("plane", asset.Plane(1))
	lib.PutTexture("checker", checker())

	red := asset.DefaultMaterialData()
	red.BaseColor = [4]float32{1, 0, 0, 1}
	red.BaseColorTexture = "checker"
	lib.PutMaterial("red", &red)

	glass := asset.DefaultMaterialData()
	glass.BaseColor = [4]float32{1, 1, 1, 0.3}
	glass.BaseColorTexture = "checker"
	lib.PutMaterial("glass", &glass)

	dev := gputest.NewDevice()
	return NewCache(lib, dev, options...), lib, dev
}

func withLayout(t *testing.T, c Cache, dev *gputest.Device) gpu.Handle {
	t.Helper()
	layout, err := dev.CreateMaterialLayout("material")
	require.NoError(t, err)
	c.SetMaterialDescriptorLayout(layout)
	return layout
}

func TestAcquireMeshDeduplicates(t *testing.T) {
	c, _, dev := newTestCache(t)

	a := c.AcquireMesh("cube")
	b := c.AcquireMesh("cube")
	require.False(t, a.IsNil())
	assert.Equal(t, a, b)
	assert.Equal(t, 1, dev.MeshUploads)

	m, ok := c.Mesh(a)
	require.True(t, ok)
	assert.Equal(t, asset.ID("cube"), m.ID)
	assert.Equal(t, uint32(36), m.Buffers.IndexCount)
	assert.Equal(t, common.Vec3{-0.5, -0.5, -0.5}, m.Bounds.Min)
	assert.Equal(t, common.Vec3{0.5, 0.5, 0.5}, m.Bounds.Max)

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, uint64(1), s.Uploads)
	assert.Equal(t, 1, s.Meshes)
}

func TestAcquireMissingMeshIsNull(t *testing.T) {
	c, _, dev := newTestCache(t)

	assert.True(t, c.AcquireMesh("nope").IsNil())
	assert.True(t, c.AcquireMesh("nope").IsNil())
	assert.True(t, c.AcquireMesh("").IsNil())
	assert.Equal(t, 0, dev.MeshUploads)

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Failures, "a known-missing identity is not retried")
	assert.Equal(t, uint64(1), s.Misses)
}

func TestAcquireMalformedMeshIsNull(t *testing.T) {
	c, lib, dev := newTestCache(t)
	lib.PutMesh("bad", &asset.MeshData{
		Vertices: []asset.Vertex{{}, {}, {}},
		Indices:  []uint32{0, 1, 7},
	})
	dev.FailLabel("cube")

	assert.True(t, c.AcquireMesh("bad").IsNil())
	assert.True(t, c.AcquireMesh("cube").IsNil(), "upload failure")
	assert.Equal(t, uint64(2), c.Stats().Failures)
}

func TestResolveNullAndForeignHandles(t *testing.T) {
	c, _, _ := newTestCache(t)

	_, ok := c.Mesh(0)
	assert.False(t, ok)
	_, ok = c.Material(0)
	assert.False(t, ok)
	_, ok = c.Texture(0)
	assert.False(t, ok)
	_, ok = c.Mesh(MeshHandle(packHandle(40, 0)))
	assert.False(t, ok)
}

func TestAcquireMaterialRequiresLayout(t *testing.T) {
	c, _, _ := newTestCache(t)

	h, err := c.AcquireMaterial("red")
	assert.True(t, h.IsNil())
	assert.ErrorIs(t, err, ErrMaterialLayoutUnset)
}

func TestAcquireMaterialSharesTextures(t *testing.T) {
	c, _, dev := newTestCache(t)
	withLayout(t, c, dev)

	red, err := c.AcquireMaterial("red")
	require.NoError(t, err)
	glass, err := c.AcquireMaterial("glass")
	require.NoError(t, err)
	again, err := c.AcquireMaterial("red")
	require.NoError(t, err)

	assert.Equal(t, red, again)
	assert.NotEqual(t, red, glass)
	assert.Equal(t, 1, dev.TextureUploads)
	assert.Equal(t, 2, dev.Bindings)

	r, ok := c.Material(red)
	require.True(t, ok)
	g, ok := c.Material(glass)
	require.True(t, ok)
	assert.Equal(t, r.Texture, g.Texture)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, r.Params.BaseColor)
	assert.False(t, r.Transparent())
	assert.True(t, g.Transparent())
}

func TestMissingMaterialUsesDefault(t *testing.T) {
	c, _, dev := newTestCache(t)
	withLayout(t, c, dev)

	a, err := c.AcquireMaterial("ghost")
	require.NoError(t, err)
	b, err := c.AcquireMaterial("phantom")
	require.NoError(t, err)
	require.False(t, a.IsNil())
	assert.Equal(t, a, b)

	m, ok := c.Material(a)
	require.True(t, ok)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, m.Params.BaseColor)
	tex, ok := c.Texture(m.Texture)
	require.True(t, ok)
	assert.Equal(t, uint32(1), tex.Binding.Width)
	assert.Equal(t, 1, dev.TextureUploads, "default white texture")
}

func TestMaterialWithMissingTextureUsesWhite(t *testing.T) {
	c, lib, dev := newTestCache(t)
	withLayout(t, c, dev)
	m := asset.DefaultMaterialData()
	m.BaseColorTexture = "missing"
	lib.PutMaterial("untextured", &m)

	h, err := c.AcquireMaterial("untextured")
	require.NoError(t, err)
	mat, ok := c.Material(h)
	require.True(t, ok)
	tex, ok := c.Texture(mat.Texture)
	require.True(t, ok)
	assert.True(t, tex.ID.IsNil(), "default texture has no identity")
}

func TestMalformedMaterialIsNull(t *testing.T) {
	lib := asset.NewLibrary()
	loader := &brokenLoader{Library: lib, broken: map[asset.ID]error{"broken": errors.New("bad json")}}
	dev := gputest.NewDevice()
	c := NewCache(loader, dev)
	withLayout(t, c, dev)

	h, err := c.AcquireMaterial("broken")
	require.NoError(t, err)
	assert.True(t, h.IsNil())
	assert.Equal(t, uint64(1), c.Stats().Failures)
}

func TestInvalidateReplacesAndDefersRelease(t *testing.T) {
	c, _, dev := newTestCache(t, WithRetireFrames(2))

	c.BeginFrame()
	old := c.AcquireMesh("cube")
	oldMesh, _ := c.Mesh(old)
	oldBuffers := oldMesh.Buffers
	c.Invalidate("cube")

	_, ok := c.Mesh(old)
	assert.False(t, ok, "invalidated handle is stale")

	fresh := c.AcquireMesh("cube")
	require.False(t, fresh.IsNil())
	assert.NotEqual(t, old, fresh)
	assert.Equal(t, 2, dev.MeshUploads)
	assert.Equal(t, uint64(1), c.Stats().Invalidations)

	c.EndFrame()
	assert.True(t, dev.IsLive(oldBuffers.VertexBuffer))
	c.BeginFrame()
	c.EndFrame()
	assert.True(t, dev.IsLive(oldBuffers.VertexBuffer))
	assert.Equal(t, 2, c.Stats().PendingReleases)
	c.BeginFrame()
	c.EndFrame()
	assert.False(t, dev.IsLive(oldBuffers.VertexBuffer))
	assert.False(t, dev.IsLive(oldBuffers.IndexBuffer))
	assert.Equal(t, 0, c.Stats().PendingReleases)
}

func TestAcquireMaterialFallsBackToWhiteTexture(t *testing.T) {
	c, lib, dev := newTestCache(t)
	withLayout(t, c, dev)

	plain := asset.DefaultMaterialData()
	lib.PutMaterial("plain", &plain)
	lost := asset.DefaultMaterialData()
	lost.BaseColorTexture = "missing"
	lib.PutMaterial("lost", &lost)

	p, err := c.AcquireMaterial("plain")
	require.NoError(t, err)
	l, err := c.AcquireMaterial("lost")
	require.NoError(t, err)
	assert.Equal(t, 1, dev.TextureUploads, "only the white texture")

	pm, ok := c.Material(p)
	require.True(t, ok)
	lm, ok := c.Material(l)
	require.True(t, ok)
	assert.Equal(t, pm.Texture, lm.Texture)

	red, err := c.AcquireMaterial("red")
	require.NoError(t, err)
	rm, ok := c.Material(red)
	require.True(t, ok)
	assert.NotEqual(t, pm.Texture, rm.Texture)
	assert.Equal(t, 2, dev.TextureUploads)
}

func TestInvalidateRetriesFailedIdentity(t *testing.T) {
	c, lib, _ := newTestCache(t)

	assert.True(t, c.AcquireMesh("late").IsNil())
	lib.PutMesh("late", asset.Cube(1))
	assert.True(t, c.AcquireMesh("late").IsNil(), "still negatively cached")
	c.Invalidate("late")
	assert.False(t, c.AcquireMesh("late").IsNil())
}

func TestInvalidateTextureRetiresMaterials(t *testing.T) {
	c, _, dev := newTestCache(t)
	withLayout(t, c, dev)

	red, err := c.AcquireMaterial("red")
	require.NoError(t, err)
	c.Invalidate("checker")

	_, ok := c.Material(red)
	assert.False(t, ok)

	again, err := c.AcquireMaterial("red")
	require.NoError(t, err)
	assert.NotEqual(t, red, again)
	assert.Equal(t, 2, dev.TextureUploads)
}

func TestEvictUnusedEntries(t *testing.T) {
	c, _, dev := newTestCache(t, WithEvictAfterFrames(3), WithRetireFrames(0))

	c.BeginFrame()
	cube := c.AcquireMesh("cube")
	plane := c.AcquireMesh("plane")
	c.EndFrame()

	for range 3 {
		c.BeginFrame()
		c.AcquireMesh("plane")
		c.EndFrame()
	}

	_, ok := c.Mesh(cube)
	assert.False(t, ok, "cube was not acquired for three frames")
	_, ok = c.Mesh(plane)
	assert.True(t, ok)

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Evictions)
	assert.Equal(t, 1, s.Meshes)
	assert.Equal(t, 0, s.PendingReleases)
	assert.Equal(t, 2, dev.Live())
}

func TestEvictionSparesDefaults(t *testing.T) {
	c, _, dev := newTestCache(t, WithEvictAfterFrames(1), WithRetireFrames(0))
	withLayout(t, c, dev)

	c.BeginFrame()
	def, err := c.AcquireMaterial("ghost")
	require.NoError(t, err)
	c.EndFrame()
	c.BeginFrame()
	c.EndFrame()

	_, ok := c.Material(def)
	assert.True(t, ok)
}

func TestChangingLayoutRetiresMaterials(t *testing.T) {
	c, _, dev := newTestCache(t)
	layout := withLayout(t, c, dev)

	red, err := c.AcquireMaterial("red")
	require.NoError(t, err)

	c.SetMaterialDescriptorLayout(layout)
	_, ok := c.Material(red)
	assert.True(t, ok, "same layout keeps bindings")

	other, err := dev.CreateMaterialLayout("other")
	require.NoError(t, err)
	c.SetMaterialDescriptorLayout(other)
	_, ok = c.Material(red)
	assert.False(t, ok)

	again, err := c.AcquireMaterial("red")
	require.NoError(t, err)
	assert.False(t, again.IsNil())
	assert.Equal(t, 2, dev.Bindings)
}

func TestReleaseFreesEverything(t *testing.T) {
	c, _, dev := newTestCache(t)
	layout := withLayout(t, c, dev)

	c.BeginFrame()
	c.AcquireMesh("cube")
	_, err := c.AcquireMaterial("red")
	require.NoError(t, err)
	_, err = c.AcquireMaterial("ghost")
	require.NoError(t, err)
	c.Invalidate("cube")
	c.AcquireMesh("cube")

	c.Release()
	assert.Equal(t, 1, dev.Live())
	assert.True(t, dev.IsLive(layout))

	s := c.Stats()
	assert.Zero(t, s.Meshes)
	assert.Zero(t, s.Materials)
	assert.Zero(t, s.Textures)
	assert.Zero(t, s.PendingReleases)
}

func TestArenaGenerations(t *testing.T) {
	a := newArena[int]()
	one, two := 1, 2

	h1 := a.insert("a", &one, 0, false)
	v, ok := a.remove(h1)
	require.True(t, ok)
	assert.Equal(t, 1, *v)

	h2 := a.insert("b", &two, 0, false)
	assert.NotEqual(t, h1, h2, "reused slot gets a new generation")
	_, ok = a.get(h1)
	assert.False(t, ok)
	got, ok := a.get(h2)
	require.True(t, ok)
	assert.Equal(t, 2, *got)

	_, ok = a.remove(h1)
	assert.False(t, ok)
	assert.Equal(t, 1, a.count())
}
