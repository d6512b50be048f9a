package render_pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
)

// opaquePass is the implementation of the OpaquePass interface.
type opaquePass struct {
	scenePass
	layout gpu.Handle
}

// OpaquePass clears the scene targets and draws the opaque list with depth writes. It owns the
// material binding layout every material in the cache is created against.
type OpaquePass interface {
	Pass

	// MaterialLayout returns the material binding layout created by Init, or the nil handle
	// before Init.
	MaterialLayout() gpu.Handle
}

var _ OpaquePass = &opaquePass{}

// NewOpaquePass creates the opaque geometry pass.
//
// Parameters:
//   - device: creates the pipeline and material layout
//   - cache: resolves the mesh and material handles of draw items
//   - options: functional options
//
// Returns:
//   - OpaquePass: the pass
func NewOpaquePass(device gpu.Device, cache resource_cache.Cache, options ...PassBuilderOption) OpaquePass {
	return &opaquePass{scenePass: newScenePass("opaque", device, cache, whiteTint, options)}
}

func (p *opaquePass) Init(color, depth gpu.Format) error {
	if err := p.setFormats(color, depth); err != nil {
		return err
	}
	if p.layout.IsNil() {
		layout, err := p.device.CreateMaterialLayout("material layout")
		if err != nil {
			return fmt.Errorf("opaque: material layout: %w", err)
		}
		p.layout = layout
	}
	return p.createPipeline(gpu.PipelineDesc{
		Shader:         shaderSource(meshShader),
		Topology:       gpu.TopologyTriangles,
		Vertex:         gpu.VertexLayoutMesh,
		Blend:          gpu.BlendOpaque,
		DepthTest:      true,
		DepthWrite:     true,
		CullBack:       true,
		Group1:         gpu.GroupMaterial,
		MaterialLayout: p.layout,
	})
}

func (p *opaquePass) MaterialLayout() gpu.Handle { return p.layout }

func (p *opaquePass) Release() {
	if !p.layout.IsNil() {
		p.device.Release(p.layout)
	}
	p.layout = 0
	p.ready = false
}

func (p *opaquePass) RegisterToGraph(g render_graph.Graph) error {
	return p.register(g, true, p.execute)
}

func (p *opaquePass) execute(d *sceneData, ctx *render_graph.Context) error {
	if p.fc == nil || p.lists == nil {
		return nil
	}
	if err := p.begin(ctx.Recorder, d, true); err != nil {
		return err
	}
	defer ctx.Recorder.EndPass()
	p.drawItems(ctx.Recorder, p.lists.Opaque, whiteTint, true)
	return nil
}
