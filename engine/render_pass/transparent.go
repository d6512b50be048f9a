package render_pass

import (
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
)

// transparentPass sorts the transparent list back to front and alpha-blends it over the scene
// without writing depth.
type transparentPass struct {
	scenePass
	layout func() gpu.Handle
}

var _ Pass = &transparentPass{}

// NewTransparentPass creates the transparent geometry pass. It shares the opaque pass material
// layout, so Init must run after the opaque pass Init.
//
// Parameters:
//   - device: creates the pipeline
//   - cache: resolves the mesh and material handles of draw items
//   - layout: returns the material layout, usually OpaquePass.MaterialLayout
//   - options: functional options
//
// Returns:
//   - Pass: the pass
func NewTransparentPass(device gpu.Device, cache resource_cache.Cache, layout func() gpu.Handle, options ...PassBuilderOption) Pass {
	p := &transparentPass{scenePass: newScenePass("transparent", device, cache, whiteTint, options)}
	p.layout = layout
	return p
}

func (p *transparentPass) Init(color, depth gpu.Format) error {
	if err := p.setFormats(color, depth); err != nil {
		return err
	}
	var layout gpu.Handle
	if p.layout != nil {
		layout = p.layout()
	}
	return p.createPipeline(gpu.PipelineDesc{
		Shader:         shaderSource(meshShader),
		Topology:       gpu.TopologyTriangles,
		Vertex:         gpu.VertexLayoutMesh,
		Blend:          gpu.BlendAlpha,
		DepthTest:      true,
		Group1:         gpu.GroupMaterial,
		MaterialLayout: layout,
	})
}

func (p *transparentPass) RegisterToGraph(g render_graph.Graph) error {
	return p.register(g, false, p.execute)
}

func (p *transparentPass) execute(d *sceneData, ctx *render_graph.Context) error {
	if p.fc == nil || p.lists == nil || len(p.lists.Transparent) == 0 {
		return nil
	}
	p.lists.SortTransparentBackToFront()
	if err := p.begin(ctx.Recorder, d, false); err != nil {
		return err
	}
	defer ctx.Recorder.EndPass()
	p.drawItems(ctx.Recorder, p.lists.Transparent, whiteTint, true)
	return nil
}
