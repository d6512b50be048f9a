package draw_list

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/render_world"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// Builder culls render proxies against the camera frustum and fills draw lists. It keeps no
// state between calls, so the same inputs always produce the same lists.
type Builder struct {
	// IsTransparent decides which proxies stay out of the opaque list. Nil means proxies flagged
	// scene.NodeFlagTransparent.
	IsTransparent func(p *render_world.RenderProxy) bool
}

func (b *Builder) transparent(p *render_world.RenderProxy) bool {
	if b.IsTransparent != nil {
		return b.IsTransparent(p)
	}
	return p.Flags&scene.NodeFlagTransparent != 0
}

// item builds the draw item for proxy i, or reports false when it is culled.
func item(proxies []render_world.RenderProxy, i int, fc *FrameContext, f *common.Frustum) (DrawItem, bool) {
	p := &proxies[i]
	if p.Mesh.IsNil() || p.Material.IsNil() || !f.Contains(p.WorldBounds) {
		return DrawItem{}, false
	}
	center := p.World.TransformPoint(common.Vec3{})
	if p.WorldBounds.Valid() {
		center = p.WorldBounds.Center()
	}
	return DrawItem{
		ProxyIndex: uint32(i),
		Mesh:       p.Mesh,
		Material:   p.Material,
		World:      p.World,
		Depth:      fc.View.TransformPoint(center)[2],
	}, true
}

// Build resets lists and fills the opaque and outline lists from proxies. Proxies without a GPU
// mesh or material, or outside the frustum, are dropped; invalid bounds always count as visible. The opaque
// list is ordered by material handle, then mesh handle. The transparent list is left empty.
//
// Parameters:
//   - proxies: the frame's render proxies
//   - fc: the frame context
//   - selected: the node drawn into the outline list, or zero for none
//   - lists: the lists to fill
//
// Returns:
//   - FrameStats: proxy and draw counts for the frame
func (b *Builder) Build(proxies []render_world.RenderProxy, fc *FrameContext, selected scene.NodeID, lists *DrawLists) FrameStats {
	lists.Reset()
	stats := FrameStats{TotalProxies: len(proxies)}
	frustum := common.ExtractFrustum(fc.ViewProj)

	for i := range proxies {
		it, ok := item(proxies, i, fc, &frustum)
		if !ok {
			continue
		}
		stats.VisibleProxies++
		if selected != 0 && proxies[i].NodeID == selected {
			lists.Outline = append(lists.Outline, it)
		}
		if b.transparent(&proxies[i]) {
			continue
		}
		lists.Opaque = append(lists.Opaque, it)
	}

	sort.SliceStable(lists.Opaque, func(i, j int) bool {
		a, c := lists.Opaque[i], lists.Opaque[j]
		if a.Material != c.Material {
			return a.Material < c.Material
		}
		return a.Mesh < c.Mesh
	})

	stats.OpaqueDraws = len(lists.Opaque)
	stats.OutlineDraws = len(lists.Outline)
	return stats
}

// CollectTransparent appends every visible proxy that Build kept out of the opaque list to the
// transparent list, unsorted. It is for the owner of the lists; Build never calls it.
//
// Parameters:
//   - proxies: the frame's render proxies
//   - fc: the frame context
//   - lists: the lists to append to
//
// Returns:
//   - int: the number of items appended
func (b *Builder) CollectTransparent(proxies []render_world.RenderProxy, fc *FrameContext, lists *DrawLists) int {
	frustum := common.ExtractFrustum(fc.ViewProj)
	n := 0
	for i := range proxies {
		if !b.transparent(&proxies[i]) {
			continue
		}
		if it, ok := item(proxies, i, fc, &frustum); ok {
			lists.AppendTransparent(it)
			n++
		}
	}
	return n
}
