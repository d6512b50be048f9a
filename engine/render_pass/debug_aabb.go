package render_pass

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/draw_list"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
)

// debugAABBPass is the implementation of the DebugAABBPass interface.
type debugAABBPass struct {
	scenePass
	enabled bool
	points  []common.Vec3
}

// DebugAABBPass draws the world bounds of every drawn item as a wireframe box on top of the
// scene. It is disabled by default.
type DebugAABBPass interface {
	Pass

	// SetEnabled turns the bounds overlay on or off.
	SetEnabled(enabled bool)

	// Enabled reports whether the overlay is on.
	Enabled() bool
}

var _ DebugAABBPass = &debugAABBPass{}

// NewDebugAABBPass creates the debug bounds pass.
func NewDebugAABBPass(device gpu.Device, cache resource_cache.Cache, options ...PassBuilderOption) DebugAABBPass {
	return &debugAABBPass{scenePass: newScenePass("debug aabb", device, cache, aabbTint, options)}
}

func (p *debugAABBPass) Init(color, depth gpu.Format) error {
	if err := p.setFormats(color, depth); err != nil {
		return err
	}
	return p.createPipeline(gpu.PipelineDesc{
		Shader:   shaderSource(linesShader),
		Topology: gpu.TopologyLines,
		Vertex:   gpu.VertexLayoutLines,
		Blend:    gpu.BlendAlpha,
	})
}

func (p *debugAABBPass) SetEnabled(enabled bool) { p.enabled = enabled }

func (p *debugAABBPass) Enabled() bool { return p.enabled }

func (p *debugAABBPass) RegisterToGraph(g render_graph.Graph) error {
	return p.register(g, false, p.execute)
}

// boxEdges lists the corner pairs of the twelve box edges, indexing AABB.Corners.
var boxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// AppendBoxLines appends the twelve edges of b to points as a line list. Invalid boxes append
// nothing.
//
// Parameters:
//   - points: the line list to extend
//   - b: the box
//
// Returns:
//   - []common.Vec3: the extended line list
func AppendBoxLines(points []common.Vec3, b common.AABB) []common.Vec3 {
	if !b.Valid() {
		return points
	}
	c := b.Corners()
	for _, e := range boxEdges {
		points = append(points, c[e[0]], c[e[1]])
	}
	return points
}

func (p *debugAABBPass) collect(items []draw_list.DrawItem) {
	for _, item := range items {
		mesh, ok := p.cache.Mesh(item.Mesh)
		if !ok {
			continue
		}
		p.points = AppendBoxLines(p.points, mesh.Bounds.Transform(item.World))
	}
}

func (p *debugAABBPass) execute(d *sceneData, ctx *render_graph.Context) error {
	if !p.enabled || p.fc == nil || p.lists == nil {
		return nil
	}
	p.points = p.points[:0]
	p.collect(p.lists.Opaque)
	p.collect(p.lists.Transparent)
	if len(p.points) == 0 {
		return nil
	}
	if err := p.begin(ctx.Recorder, d, false); err != nil {
		return err
	}
	defer ctx.Recorder.EndPass()
	ctx.Recorder.DrawLines(p.points, p.tint)
	return nil
}
