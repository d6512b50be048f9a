package resource_cache

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
)

// ErrMaterialLayoutUnset is returned by AcquireMaterial before SetMaterialDescriptorLayout.
var ErrMaterialLayoutUnset = errors.New("material descriptor layout not set")

// MeshHandle refers to a cached GPU mesh. The zero handle is null.
type MeshHandle uint64

// MaterialHandle refers to a cached GPU material. The zero handle is null.
type MaterialHandle uint64

// TextureHandle refers to a cached GPU texture. The zero handle is null.
type TextureHandle uint64

func (h MeshHandle) IsNil() bool     { return h == 0 }
func (h MaterialHandle) IsNil() bool { return h == 0 }
func (h TextureHandle) IsNil() bool  { return h == 0 }

// GPUMesh is a resident mesh and its local-space bounds.
type GPUMesh struct {
	ID      asset.ID
	Buffers gpu.MeshBuffers
	Bounds  common.AABB
}

// GPUTexture is a resident sampled texture.
type GPUTexture struct {
	ID      asset.ID
	Binding gpu.TextureBinding
}

// GPUMaterial is a resident material binding and the parameters it was built from.
type GPUMaterial struct {
	ID      asset.ID
	Binding gpu.Handle
	Texture TextureHandle
	Params  gpu.MaterialParams
}

// Transparent reports whether the material's base colour is not fully opaque.
func (m *GPUMaterial) Transparent() bool {
	return m.Params.BaseColor[3] < 1
}

// CacheStats is a snapshot of cache activity.
type CacheStats struct {
	Hits          uint64
	Misses        uint64
	Uploads       uint64
	Failures      uint64
	Evictions     uint64
	Invalidations uint64

	Meshes          int
	Materials       int
	Textures        int
	PendingReleases int
}

// Cache maps CPU asset identities to GPU-resident meshes, materials and textures. Each identity is
// uploaded once and shared until it is invalidated or evicted. Not safe for concurrent use; call it
// from the render thread only.
type Cache interface {
	// AcquireMesh returns the GPU mesh for id, uploading it on first use.
	//
	// Parameters:
	//   - id: the CPU asset identity
	//
	// Returns:
	//   - MeshHandle: the handle, or the null handle when the asset is missing or malformed
	AcquireMesh(id asset.ID) MeshHandle

	// AcquireMaterial returns the GPU material for id, creating its binding on first use.
	// A material that does not exist resolves to the default material; a malformed one yields the
	// null handle.
	//
	// Parameters:
	//   - id: the CPU asset identity
	//
	// Returns:
	//   - MaterialHandle: the handle, or the null handle when the material is malformed
	//   - error: ErrMaterialLayoutUnset when no descriptor layout has been set
	AcquireMaterial(id asset.ID) (MaterialHandle, error)

	// AcquireTexture returns the GPU texture for id, uploading it on first use.
	//
	// Parameters:
	//   - id: the CPU asset identity
	//
	// Returns:
	//   - TextureHandle: the handle, or the null handle when the asset is missing or malformed
	AcquireTexture(id asset.ID) TextureHandle

	// SetMaterialDescriptorLayout sets the layout material bindings are created against.
	// Changing it retires every existing material so it is rebuilt against the new layout.
	//
	// Parameters:
	//   - layout: a layout handle from gpu.Device.CreateMaterialLayout
	SetMaterialDescriptorLayout(layout gpu.Handle)

	// Mesh resolves a mesh handle. Null and stale handles report false.
	Mesh(h MeshHandle) (*GPUMesh, bool)

	// Material resolves a material handle. Null and stale handles report false.
	Material(h MaterialHandle) (*GPUMaterial, bool)

	// Texture resolves a texture handle. Null and stale handles report false.
	Texture(h TextureHandle) (*GPUTexture, bool)

	// Invalidate drops every entry for id so the next acquisition uploads it again. Handles issued
	// for the old entries go stale immediately; their GPU objects are released once they can no
	// longer be in flight. Invalidating a texture also invalidates the materials sampling it.
	//
	// Parameters:
	//   - id: the CPU asset identity
	Invalidate(id asset.ID)

	// BeginFrame advances the frame counter used for eviction and deferred release.
	BeginFrame()

	// EndFrame releases retired GPU objects older than the retire window and evicts entries that
	// have not been acquired within the eviction window.
	EndFrame()

	// Stats returns a snapshot of cache activity.
	Stats() CacheStats

	// Release frees every GPU object the cache owns, including those pending release.
	Release()
}

type retired struct {
	frame   uint64
	handles []gpu.Handle
}

// cache is the implementation of the Cache interface.
type cache struct {
	loader   asset.Loader
	transfer gpu.TransferContext
	logger   *slog.Logger

	layout    gpu.Handle
	layoutSet bool

	meshes    arena[GPUMesh]
	materials arena[GPUMaterial]
	textures  arena[GPUTexture]

	// identities known to be missing or malformed, so they are not reloaded every frame
	failed map[asset.ID]struct{}
	// material identities that resolved to the default material
	aliases map[asset.ID]struct{}

	defaultTexture  TextureHandle
	defaultMaterial MaterialHandle

	frame            uint64
	retireFrames     uint64
	evictAfterFrames uint64
	pending          []retired

	stats CacheStats
}

var _ Cache = &cache{}

// NewCache creates a cache that loads CPU data through loader and uploads through transfer.
//
// Parameters:
//   - loader: the CPU asset loader
//   - transfer: the GPU transfer context
//   - options: functional options
//
// Returns:
//   - Cache: the cache
func NewCache(loader asset.Loader, transfer gpu.TransferContext, options ...CacheBuilderOption) Cache {
	if loader == nil || transfer == nil {
		panic("resource_cache: loader and transfer context are required")
	}
	c := &cache{
		loader:           loader,
		transfer:         transfer,
		logger:           common.NopLogger(),
		meshes:           newArena[GPUMesh](),
		materials:        newArena[GPUMaterial](),
		textures:         newArena[GPUTexture](),
		failed:           make(map[asset.ID]struct{}),
		aliases:          make(map[asset.ID]struct{}),
		retireFrames:     2,
		evictAfterFrames: 300,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func failKey(kind string, id asset.ID) asset.ID {
	return asset.ID(kind+":") + id
}

// loadFailed records a failed load and logs it once per identity.
func (c *cache) loadFailed(kind string, id asset.ID, err error) {
	c.stats.Failures++
	c.failed[failKey(kind, id)] = struct{}{}
	c.logger.Warn("[ResourceCache] asset unavailable, skipping", "kind", kind, "id", id, "notFound", errors.Is(err, asset.ErrNotFound), "error", err)
}

func (c *cache) AcquireMesh(id asset.ID) MeshHandle {
	if id.IsNil() {
		return 0
	}
	if h, ok := c.meshes.lookup(id, c.frame); ok {
		c.stats.Hits++
		return MeshHandle(h)
	}
	if _, bad := c.failed[failKey("mesh", id)]; bad {
		return 0
	}
	c.stats.Misses++

	data, err := c.loader.LoadMesh(id)
	if err == nil {
		err = data.Validate()
	}
	if err != nil {
		c.loadFailed("mesh", id, err)
		return 0
	}
	buffers, err := c.transfer.UploadMesh(string(id), common.SliceToBytes(data.Vertices), uint32(len(data.Vertices)), data.Indices)
	if err != nil {
		c.loadFailed("mesh", id, err)
		return 0
	}
	c.stats.Uploads++
	return MeshHandle(c.meshes.insert(id, &GPUMesh{ID: id, Buffers: buffers, Bounds: data.Bounds()}, c.frame, false))
}

func (c *cache) AcquireTexture(id asset.ID) TextureHandle {
	if id.IsNil() {
		return 0
	}
	if h, ok := c.textures.lookup(id, c.frame); ok {
		c.stats.Hits++
		return TextureHandle(h)
	}
	if _, bad := c.failed[failKey("texture", id)]; bad {
		return 0
	}
	c.stats.Misses++

	data, err := c.loader.LoadTexture(id)
	if err != nil {
		c.loadFailed("texture", id, err)
		return 0
	}
	binding, err := c.transfer.UploadTexture(string(id), data.Pixels, data.Sampler)
	if err != nil {
		c.loadFailed("texture", id, err)
		return 0
	}
	c.stats.Uploads++
	return TextureHandle(c.textures.insert(id, &GPUTexture{ID: id, Binding: binding}, c.frame, false))
}

func (c *cache) AcquireMaterial(id asset.ID) (MaterialHandle, error) {
	if !c.layoutSet {
		return 0, fmt.Errorf("acquire material %q: %w", id, ErrMaterialLayoutUnset)
	}
	if id.IsNil() {
		return c.defaultMaterialHandle(), nil
	}
	if h, ok := c.materials.lookup(id, c.frame); ok {
		c.stats.Hits++
		if m, ok := c.materials.get(h); ok {
			c.textures.touch(uint64(m.Texture), c.frame)
		}
		return MaterialHandle(h), nil
	}
	if _, ok := c.aliases[id]; ok {
		c.stats.Hits++
		return c.defaultMaterialHandle(), nil
	}
	if _, bad := c.failed[failKey("material", id)]; bad {
		return 0, nil
	}
	c.stats.Misses++

	data, err := c.loader.LoadMaterial(id)
	if errors.Is(err, asset.ErrNotFound) {
		c.aliases[id] = struct{}{}
		c.logger.Warn("[ResourceCache] material not found, using default", "id", id)
		return c.defaultMaterialHandle(), nil
	}
	if err != nil {
		c.loadFailed("material", id, err)
		return 0, nil
	}

	var tex TextureHandle
	if !data.BaseColorTexture.IsNil() {
		tex = c.AcquireTexture(data.BaseColorTexture)
	}
	if tex.IsNil() {
		tex = c.defaultTextureHandle()
	}
	h := c.createMaterial(id, data, tex, false)
	if h.IsNil() {
		c.failed[failKey("material", id)] = struct{}{}
	}
	return h, nil
}

func (c *cache) createMaterial(id asset.ID, data *asset.MaterialData, tex TextureHandle, pinned bool) MaterialHandle {
	t, ok := c.textures.get(uint64(tex))
	if !ok {
		c.stats.Failures++
		c.logger.Warn("[ResourceCache] material texture unavailable", "id", id)
		return 0
	}
	params := gpu.MaterialParams{
		BaseColor: data.BaseColor,
		Metallic:  data.Metallic,
		Roughness: data.Roughness,
	}
	binding, err := c.transfer.CreateMaterialBinding(string(id), c.layout, common.StructToBytes(&params), t.Binding)
	if err != nil {
		c.stats.Failures++
		c.logger.Warn("[ResourceCache] material binding failed", "id", id, "error", err)
		return 0
	}
	c.stats.Uploads++
	m := &GPUMaterial{ID: id, Binding: binding, Texture: tex, Params: params}
	return MaterialHandle(c.materials.insert(id, m, c.frame, pinned))
}

// defaultTextureHandle returns the 1x1 white texture, uploading it on first use.
func (c *cache) defaultTextureHandle() TextureHandle {
	if _, ok := c.textures.get(uint64(c.defaultTexture)); ok {
		return c.defaultTexture
	}
	binding, err := c.transfer.UploadTexture("default white", common.WhitePixel(), common.SamplerStagingData{})
	if err != nil {
		c.logger.Error("[ResourceCache] default texture upload failed", "error", err)
		return 0
	}
	c.stats.Uploads++
	c.defaultTexture = TextureHandle(c.textures.insert("", &GPUTexture{Binding: binding}, c.frame, true))
	return c.defaultTexture
}

// defaultMaterialHandle returns the white default material, creating it on first use.
func (c *cache) defaultMaterialHandle() MaterialHandle {
	if _, ok := c.materials.get(uint64(c.defaultMaterial)); ok {
		return c.defaultMaterial
	}
	data := asset.DefaultMaterialData()
	c.defaultMaterial = c.createMaterial("default", &data, c.defaultTextureHandle(), true)
	return c.defaultMaterial
}

func (c *cache) SetMaterialDescriptorLayout(layout gpu.Handle) {
	if c.layoutSet && c.layout == layout {
		return
	}
	if c.layoutSet {
		n := 0
		c.materials.each(func(h uint64, _ *slot[GPUMaterial]) {
			c.retireMaterial(h)
			n++
		})
		c.logger.Debug("[ResourceCache] material layout changed", "retired", n)
	}
	c.layout = layout
	c.layoutSet = true
}

func (c *cache) Mesh(h MeshHandle) (*GPUMesh, bool) {
	return c.meshes.get(uint64(h))
}

func (c *cache) Material(h MaterialHandle) (*GPUMaterial, bool) {
	return c.materials.get(uint64(h))
}

func (c *cache) Texture(h TextureHandle) (*GPUTexture, bool) {
	return c.textures.get(uint64(h))
}

// retire queues GPU objects for release once the current frame can no longer be in flight.
func (c *cache) retire(handles ...gpu.Handle) {
	c.pending = append(c.pending, retired{frame: c.frame, handles: handles})
}

func (c *cache) retireMesh(h uint64) {
	if m, ok := c.meshes.remove(h); ok {
		c.retire(m.Buffers.Handles()...)
	}
}

func (c *cache) retireMaterial(h uint64) {
	if m, ok := c.materials.remove(h); ok {
		c.retire(m.Binding)
	}
}

// retireTexture removes a texture and every material sampling it.
func (c *cache) retireTexture(h uint64) {
	t, ok := c.textures.remove(h)
	if !ok {
		return
	}
	c.retire(t.Binding.Handles()...)
	c.materials.each(func(mh uint64, s *slot[GPUMaterial]) {
		if uint64(s.value.Texture) == h {
			c.retireMaterial(mh)
		}
	})
}

func (c *cache) Invalidate(id asset.ID) {
	if id.IsNil() {
		return
	}
	for _, kind := range []string{"mesh", "material", "texture"} {
		delete(c.failed, failKey(kind, id))
	}
	delete(c.aliases, id)

	n := 0
	if h, ok := c.meshes.lookup(id, c.frame); ok {
		c.retireMesh(h)
		n++
	}
	if h, ok := c.materials.lookup(id, c.frame); ok {
		c.retireMaterial(h)
		n++
	}
	if h, ok := c.textures.lookup(id, c.frame); ok {
		c.retireTexture(h)
		n++
	}
	if n > 0 {
		c.stats.Invalidations++
		c.logger.Debug("[ResourceCache] invalidated", "id", id, "entries", n)
	}
}

func (c *cache) BeginFrame() {
	c.frame++
}

func (c *cache) EndFrame() {
	if c.evictAfterFrames > 0 {
		c.evict()
	}

	kept := c.pending[:0]
	for _, r := range c.pending {
		if c.frame-r.frame >= c.retireFrames {
			c.transfer.Release(r.handles...)
			continue
		}
		kept = append(kept, r)
	}
	clear(c.pending[len(kept):])
	c.pending = kept
}

// evict retires unpinned entries not acquired within the eviction window. Textures go last so
// materials evicted in the same pass retire their own binding first.
func (c *cache) evict() {
	stale := func(s interface{ used() (uint64, bool) }) bool {
		last, pinned := s.used()
		return !pinned && c.frame-last >= c.evictAfterFrames
	}
	before := c.stats.Evictions
	c.meshes.each(func(h uint64, s *slot[GPUMesh]) {
		if stale(s) {
			c.retireMesh(h)
			c.stats.Evictions++
		}
	})
	c.materials.each(func(h uint64, s *slot[GPUMaterial]) {
		if stale(s) {
			c.retireMaterial(h)
			c.stats.Evictions++
		}
	})
	c.textures.each(func(h uint64, s *slot[GPUTexture]) {
		if stale(s) {
			c.retireTexture(h)
			c.stats.Evictions++
		}
	})
	if n := c.stats.Evictions - before; n > 0 {
		c.logger.Debug("[ResourceCache] evicted unused entries", "count", n, "frame", c.frame)
	}
}

func (c *cache) Stats() CacheStats {
	s := c.stats
	s.Meshes = c.meshes.count()
	s.Materials = c.materials.count()
	s.Textures = c.textures.count()
	for _, r := range c.pending {
		s.PendingReleases += len(r.handles)
	}
	return s
}

func (c *cache) Release() {
	c.meshes.each(func(h uint64, _ *slot[GPUMesh]) { c.retireMesh(h) })
	c.materials.each(func(h uint64, _ *slot[GPUMaterial]) { c.retireMaterial(h) })
	c.textures.each(func(h uint64, _ *slot[GPUTexture]) { c.retireTexture(h) })
	for _, r := range c.pending {
		c.transfer.Release(r.handles...)
	}
	c.pending = nil
	c.defaultMaterial, c.defaultTexture = 0, 0
	clear(c.failed)
	clear(c.aliases)
	c.logger.Debug("[ResourceCache] released")
}
