package render_world

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// RenderProxy is one renderable instance for the current frame. Proxies are value types rebuilt
// by every extraction; their index is only stable within a frame.
type RenderProxy struct {
	NodeID        scene.NodeID
	World         common.Mat4
	WorldBounds   common.AABB
	MeshAsset     asset.ID
	MaterialAsset asset.ID
	Mesh          resource_cache.MeshHandle
	Material      resource_cache.MaterialHandle
	Flags         scene.NodeFlags
}

// world is the implementation of the World interface.
type world struct {
	logger *slog.Logger

	proxies    []RenderProxy
	nodeIndex  map[scene.NodeID]int
	meshBounds map[asset.ID]common.AABB
	stack      []frame
}

type frame struct {
	node    *scene.Node
	parent  common.Mat4
	visible bool
}

// World flattens a scene into render proxies once per frame.
type World interface {
	// ExtractFromScene rebuilds the proxy list from scratch. Nodes are visited depth-first in
	// pre-order with children in declaration order. Hidden nodes hide their subtree. A node whose
	// CPU mesh cannot be loaded is skipped; a node whose GPU mesh failed to upload keeps a null
	// mesh handle and is dropped by culling.
	//
	// Parameters:
	//   - sc: the scene to read
	//   - loader: the CPU asset loader
	//   - cache: the GPU resource cache
	//
	// Returns:
	//   - error: a cache configuration error, such as resource_cache.ErrMaterialLayoutUnset
	ExtractFromScene(sc scene.Scene, loader asset.Loader, cache resource_cache.Cache) error

	// Proxies returns the proxies of the last extraction. The slice is reused by the next one.
	Proxies() []RenderProxy

	// FindProxy returns the proxy index of a node.
	//
	// Parameters:
	//   - id: the scene node
	//
	// Returns:
	//   - int: the proxy index
	//   - bool: false when the node produced no proxy this frame
	FindProxy(id scene.NodeID) (int, bool)

	// Bounds returns the union of all proxy world bounds. The box is invalid when there are no
	// proxies.
	Bounds() common.AABB

	// InvalidateBounds forgets the memoised local bounds of a mesh so the next extraction
	// recomputes them from the loader.
	//
	// Parameters:
	//   - id: the mesh identity
	InvalidateBounds(id asset.ID)
}

var _ World = &world{}

// NewWorld creates an empty render world.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - World: the render world
func NewWorld(options ...WorldBuilderOption) World {
	w := &world{
		logger:     common.NopLogger(),
		nodeIndex:  make(map[scene.NodeID]int),
		meshBounds: make(map[asset.ID]common.AABB),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

func (w *world) ExtractFromScene(sc scene.Scene, loader asset.Loader, cache resource_cache.Cache) error {
	w.proxies = w.proxies[:0]
	clear(w.nodeIndex)
	if sc == nil || sc.Root() == nil {
		return nil
	}

	w.stack = append(w.stack[:0], frame{node: sc.Root(), parent: common.Identity(), visible: true})
	for len(w.stack) > 0 {
		f := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		n := f.node
		worldM := f.parent.Mul(n.Local.Matrix())
		visible := f.visible && n.Visible

		if visible && n.Mesh != nil {
			if err := w.extractNode(n, worldM, loader, cache); err != nil {
				w.proxies = w.proxies[:0]
				clear(w.nodeIndex)
				return err
			}
		}

		for i := len(n.Children) - 1; i >= 0; i-- {
			if c := n.Children[i]; c != nil {
				w.stack = append(w.stack, frame{node: c, parent: worldM, visible: visible})
			}
		}
	}
	clear(w.stack[:cap(w.stack)])
	return nil
}

func (w *world) extractNode(n *scene.Node, worldM common.Mat4, loader asset.Loader, cache resource_cache.Cache) error {
	inst := n.Mesh
	data, err := loader.LoadMesh(inst.Mesh)
	if err != nil {
		w.logger.Debug("[RenderWorld] skipping node, mesh unavailable", "node", n.ID, "mesh", inst.Mesh, "error", err)
		return nil
	}

	material, err := cache.AcquireMaterial(inst.Material)
	if err != nil {
		return fmt.Errorf("extract node %d: %w", n.ID, err)
	}
	local, ok := w.meshBounds[inst.Mesh]
	if !ok {
		local = data.Bounds()
		w.meshBounds[inst.Mesh] = local
	}

	w.nodeIndex[n.ID] = len(w.proxies)
	w.proxies = append(w.proxies, RenderProxy{
		NodeID:        n.ID,
		World:         worldM,
		WorldBounds:   local.Transform(worldM),
		MeshAsset:     inst.Mesh,
		MaterialAsset: inst.Material,
		Mesh:          cache.AcquireMesh(inst.Mesh),
		Material:      material,
		Flags:         n.Flags,
	})
	return nil
}

func (w *world) Proxies() []RenderProxy { return w.proxies }

func (w *world) FindProxy(id scene.NodeID) (int, bool) {
	i, ok := w.nodeIndex[id]
	return i, ok
}

func (w *world) Bounds() common.AABB {
	b := common.EmptyAABB()
	for i := range w.proxies {
		b.Merge(w.proxies[i].WorldBounds)
	}
	return b
}

func (w *world) InvalidateBounds(id asset.ID) {
	delete(w.meshBounds, id)
}
