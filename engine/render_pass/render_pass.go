// Package render_pass holds the concrete render passes the render system registers into its
// frame graph: opaque geometry, selection outline, transparent geometry, debug bounds, the fluid
// and voxel overlays, and the post-process chain.
package render_pass

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/draw_list"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
)

// Names of the frame targets every scene pass imports. The owner binds them in
// render_graph.Context.Externals before executing the graph.
const (
	SceneColor = "scene color"
	SceneDepth = "scene depth"
)

// ErrNotInitialized is returned by RegisterToGraph when Init has not succeeded.
var ErrNotInitialized = errors.New("render pass not initialized")

// Pass is a unit of rendering that registers one or more tasks into a render graph.
type Pass interface {
	// Name returns the pass name, also used as its task name.
	Name() string

	// Init creates the pass pipelines for the given target formats. It may be called again when
	// the formats change.
	//
	// Parameters:
	//   - color: the colour target format
	//   - depth: the depth target format
	//
	// Returns:
	//   - error: error if a pipeline or a pass-owned buffer could not be created
	Init(color, depth gpu.Format) error

	// RegisterToGraph adds the pass tasks to g. The tasks import SceneColor and SceneDepth.
	//
	// Parameters:
	//   - g: the frame graph
	//
	// Returns:
	//   - error: ErrNotInitialized before Init, or the graph's declaration error
	RegisterToGraph(g render_graph.Graph) error

	// SetFrameData hands the pass the current frame's camera and draw lists. Both stay owned by
	// the caller and must outlive the next graph execution. A pass with no frame data records
	// nothing.
	SetFrameData(fc *draw_list.FrameContext, lists *draw_list.DrawLists)

	// Release frees the GPU objects the pass owns.
	Release()
}

// sceneData is the payload of every task that draws into the scene targets.
type sceneData struct {
	color *render_graph.Resource
	depth *render_graph.Resource
}

// scenePass carries what every scene pass shares: collaborators, formats and frame data.
type scenePass struct {
	name   string
	device gpu.Device
	cache  resource_cache.Cache
	logger *slog.Logger
	tint   [4]float32

	color gpu.Format
	depth gpu.Format
	key   string
	ready bool

	fc    *draw_list.FrameContext
	lists *draw_list.DrawLists
}

func newScenePass(name string, device gpu.Device, cache resource_cache.Cache, tint [4]float32, options []PassBuilderOption) scenePass {
	if device == nil {
		panic(fmt.Sprintf("render pass %q: nil device", name))
	}
	cfg := passConfig{logger: common.NopLogger()}
	for _, opt := range options {
		opt(&cfg)
	}
	return scenePass{name: name, device: device, cache: cache, logger: cfg.logger, tint: cfg.tintOr(tint)}
}

func (p *scenePass) Name() string { return p.name }

func (p *scenePass) SetFrameData(fc *draw_list.FrameContext, lists *draw_list.DrawLists) {
	p.fc = fc
	p.lists = lists
}

func (p *scenePass) Release() {}

// createPipeline fills in the formats and key shared by every pipeline of the pass.
func (p *scenePass) createPipeline(desc gpu.PipelineDesc) error {
	desc.Key = pipelineKey(p.name, p.color, p.depth)
	desc.ColorFormat = p.color
	desc.DepthFormat = p.depth
	if err := p.device.CreatePipeline(desc); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	p.key = desc.Key
	p.ready = true
	p.logger.Debug("[RenderPass] pipeline ready", "pass", p.name, "key", p.key)
	return nil
}

func (p *scenePass) setFormats(color, depth gpu.Format) error {
	if color == gpu.FormatUndefined || color.IsDepth() {
		return fmt.Errorf("%s: invalid colour format %s", p.name, color)
	}
	if depth != gpu.FormatUndefined && !depth.IsDepth() {
		return fmt.Errorf("%s: invalid depth format %s", p.name, depth)
	}
	p.color, p.depth = color, depth
	return nil
}

// register adds the pass as one task that writes the colour target and either writes or reads
// the depth target.
func (p *scenePass) register(g render_graph.Graph, writesDepth bool, exec func(d *sceneData, ctx *render_graph.Context) error) error {
	if !p.ready {
		return fmt.Errorf("%s: %w", p.name, ErrNotInitialized)
	}
	_, err := render_graph.AddTask(g, p.name, func(d *sceneData, b *render_graph.TaskBuilder) error {
		d.color = b.Write(b.Import(SceneColor, gpu.TextureDesc{Format: p.color, Usage: gpu.UsageRenderTarget}))
		if p.depth == gpu.FormatUndefined {
			return nil
		}
		depth := b.Import(SceneDepth, gpu.TextureDesc{Format: p.depth, Usage: gpu.UsageRenderTarget})
		if writesDepth {
			d.depth = b.Write(depth)
		} else {
			d.depth = b.Read(depth)
		}
		return nil
	}, exec)
	return err
}

// begin opens a pass over the scene targets and binds the pass pipeline and camera.
func (p *scenePass) begin(rec gpu.Recorder, d *sceneData, clearTargets bool) error {
	if rec == nil {
		return fmt.Errorf("%s: no recorder", p.name)
	}
	desc := gpu.PassDesc{Label: p.name, Color: d.color.Handle()}
	if d.depth != nil {
		desc.Depth = d.depth.Handle()
		desc.ClearDepth = clearTargets
	}
	if clearTargets {
		desc.ClearColor = &[4]float64{0.08, 0.09, 0.11, 1}
	}
	if err := rec.BeginPass(desc); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	if err := rec.SetPipeline(p.key); err != nil {
		rec.EndPass()
		return fmt.Errorf("%s: %w", p.name, err)
	}
	rec.SetCamera(CameraUniform(p.fc))
	return nil
}

// CameraUniform packs a frame context into the camera uniform block.
//
// Parameters:
//   - fc: the frame context
//
// Returns:
//   - gpu.CameraUniform: the uniform block
func CameraUniform(fc *draw_list.FrameContext) gpu.CameraUniform {
	inv, ok := fc.ViewProj.Invert()
	if !ok {
		inv = common.Identity()
	}
	u := gpu.CameraUniform{
		ViewProj:    fc.ViewProj,
		InvViewProj: inv,
		Position:    [4]float32{fc.CameraPosition[0], fc.CameraPosition[1], fc.CameraPosition[2], 1},
	}
	if fc.Viewport.Width > 0 && fc.Viewport.Height > 0 {
		w, h := float32(fc.Viewport.Width), float32(fc.Viewport.Height)
		u.Viewport = [4]float32{w, h, 1 / w, 1 / h}
	}
	return u
}

// drawItems records every item whose mesh and material still resolve. Items whose handles went
// stale since the lists were built are skipped. Material bindings are only rebound on change.
func (p *scenePass) drawItems(rec gpu.Recorder, items []draw_list.DrawItem, tint [4]float32, bindMaterial bool) int {
	var bound gpu.Handle
	drawn := 0
	for _, item := range items {
		mesh, ok := p.cache.Mesh(item.Mesh)
		if !ok || !mesh.Buffers.Valid() {
			continue
		}
		if bindMaterial {
			mat, ok := p.cache.Material(item.Material)
			if !ok {
				continue
			}
			if mat.Binding != bound {
				rec.SetMaterial(mat.Binding)
				bound = mat.Binding
			}
		}
		rec.PushTransform(item.World, tint)
		rec.DrawIndexed(mesh.Buffers)
		drawn++
	}
	return drawn
}
