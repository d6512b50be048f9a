// Package draw_list holds the per-frame data handed to render passes and the builder that
// culls render proxies into draw lists.
package draw_list

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
)

// FrameContext is the camera state for one frame. It is overwritten wholesale by the next frame.
type FrameContext struct {
	View           common.Mat4
	Proj           common.Mat4
	ViewProj       common.Mat4
	CameraPosition common.Vec3
	Viewport       common.Extent2D
}

// NewFrameContext fills a FrameContext and derives ViewProj as proj * view.
//
// Parameters:
//   - view: the world-to-view matrix
//   - proj: the view-to-clip matrix
//   - cameraPosition: the camera position in world space
//   - viewport: the render target size in pixels
//
// Returns:
//   - FrameContext: the frame context
func NewFrameContext(view, proj common.Mat4, cameraPosition common.Vec3, viewport common.Extent2D) FrameContext {
	return FrameContext{
		View:           view,
		Proj:           proj,
		ViewProj:       proj.Mul(view),
		CameraPosition: cameraPosition,
		Viewport:       viewport,
	}
}

// DrawItem is one resolved unit of GPU work. Depth is the view-space Z of the item's bounds
// centre; the camera looks down -Z so farther items have smaller depth.
type DrawItem struct {
	ProxyIndex uint32
	Mesh       resource_cache.MeshHandle
	Material   resource_cache.MaterialHandle
	World      common.Mat4
	Depth      float32
}

// DrawLists are the per-category draw items for one frame.
type DrawLists struct {
	Opaque      []DrawItem
	Outline     []DrawItem
	Transparent []DrawItem
}

// Reset empties every list and keeps the allocated capacity.
func (l *DrawLists) Reset() {
	l.Opaque = l.Opaque[:0]
	l.Outline = l.Outline[:0]
	l.Transparent = l.Transparent[:0]
}

// AppendTransparent adds items to the transparent list. The list is filled by its owner, not by
// the builder.
func (l *DrawLists) AppendTransparent(items ...DrawItem) {
	l.Transparent = append(l.Transparent, items...)
}

// SortTransparentBackToFront orders the transparent list farthest first. Items at equal depth
// keep their insertion order.
func (l *DrawLists) SortTransparentBackToFront() {
	sort.SliceStable(l.Transparent, func(i, j int) bool {
		return l.Transparent[i].Depth < l.Transparent[j].Depth
	})
}

// FrameStats counts the work of one frame. TotalProxies and VisibleProxies come from culling.
type FrameStats struct {
	TotalProxies     int
	VisibleProxies   int
	OpaqueDraws      int
	OutlineDraws     int
	TransparentDraws int
}
