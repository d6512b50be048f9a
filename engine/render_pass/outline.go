package render_pass

import (
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
)

// outlinePass draws the outline list as a flat shell extruded along the vertex normals. Front
// faces are culled so only the rim around the selected mesh shows.
type outlinePass struct {
	scenePass
}

var _ Pass = &outlinePass{}

// NewOutlinePass creates the selection outline pass.
func NewOutlinePass(device gpu.Device, cache resource_cache.Cache, options ...PassBuilderOption) Pass {
	return &outlinePass{scenePass: newScenePass("outline", device, cache, outlineTint, options)}
}

func (p *outlinePass) Init(color, depth gpu.Format) error {
	if err := p.setFormats(color, depth); err != nil {
		return err
	}
	return p.createPipeline(gpu.PipelineDesc{
		Shader:    shaderSource(outlineShader),
		Topology:  gpu.TopologyTriangles,
		Vertex:    gpu.VertexLayoutMesh,
		Blend:     gpu.BlendAlpha,
		DepthTest: true,
		CullFront: true,
	})
}

func (p *outlinePass) RegisterToGraph(g render_graph.Graph) error {
	return p.register(g, false, p.execute)
}

func (p *outlinePass) execute(d *sceneData, ctx *render_graph.Context) error {
	if p.fc == nil || p.lists == nil || len(p.lists.Outline) == 0 {
		return nil
	}
	if err := p.begin(ctx.Recorder, d, false); err != nil {
		return err
	}
	defer ctx.Recorder.EndPass()
	p.drawItems(ctx.Recorder, p.lists.Outline, p.tint, false)
	return nil
}
