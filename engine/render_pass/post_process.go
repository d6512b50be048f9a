package render_pass

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/chewxy/math32"
)

// Names of the external resources of the post-process graph. Both must be bound to the same
// texture: PostSource is read once into a transient copy and PostTarget receives the result.
const (
	PostSource = "post source"
	PostTarget = "post target"
)

const (
	defaultDistortionStrength  float32 = 0.035
	defaultDistortionFrequency float32 = 24
	defaultBlurRadius          float32 = 1
)

// PostProcessSettings selects the post-process effects. Zero tuning values take the defaults.
type PostProcessSettings struct {
	EnableDistortion    bool
	EnableBlur          bool
	DistortionStrength  float32
	DistortionFrequency float32
	// BlurRadius is the spacing between blur taps in texels.
	BlurRadius float32
}

// Enabled reports whether any effect is on.
func (s PostProcessSettings) Enabled() bool {
	return s.EnableDistortion || s.EnableBlur
}

func (s PostProcessSettings) normalized() PostProcessSettings {
	s.DistortionStrength = common.Coalesce(s.DistortionStrength, defaultDistortionStrength)
	s.DistortionFrequency = common.Coalesce(s.DistortionFrequency, defaultDistortionFrequency)
	s.BlurRadius = common.Coalesce(s.BlurRadius, defaultBlurRadius)
	return s
}

// postProcess is the implementation of the PostProcess interface.
type postProcess struct {
	device gpu.Device
	logger *slog.Logger
}

// PostProcess builds the post-process chain into a graph: copy the target, distort, blur
// horizontally then vertically, and blit the result back into the target. Disabled effects are
// left out of the chain.
type PostProcess interface {
	// Build registers the enabled effects into g, creating the pipelines they need.
	//
	// Parameters:
	//   - g: an empty graph dedicated to post-processing
	//   - settings: the effects to apply
	//   - extent: the target size in pixels
	//   - format: the target format
	//
	// Returns:
	//   - error: error if a pipeline could not be created or a task could not be registered
	Build(g render_graph.Graph, settings PostProcessSettings, extent common.Extent2D, format gpu.Format) error
}

var _ PostProcess = &postProcess{}

// NewPostProcess creates the post-process chain builder.
func NewPostProcess(device gpu.Device, options ...PassBuilderOption) PostProcess {
	if device == nil {
		panic("post process: nil device")
	}
	cfg := passConfig{logger: common.NopLogger()}
	for _, opt := range options {
		opt(&cfg)
	}
	return &postProcess{device: device, logger: cfg.logger}
}

// fullscreenData is the payload of a full-screen effect task.
type fullscreenData struct {
	in  *render_graph.Resource
	out *render_graph.Resource
}

func (p *postProcess) pipeline(name, fragment string, format gpu.Format) (string, error) {
	key := pipelineKey(name, format, gpu.FormatUndefined)
	err := p.device.CreatePipeline(gpu.PipelineDesc{
		Key:         key,
		Shader:      shaderSource(fullscreenShader, fragment),
		ColorFormat: format,
		Topology:    gpu.TopologyTriangles,
		Vertex:      gpu.VertexLayoutNone,
		Blend:       gpu.BlendOpaque,
		Group1:      gpu.GroupInput,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return key, nil
}

// addEffect registers a full-screen task sampling in and writing out.
func (p *postProcess) addEffect(g render_graph.Graph, name, key string, in string, out string, desc gpu.TextureDesc, params func(ctx *render_graph.Context) [4]float32) error {
	_, err := render_graph.AddTask(g, name, func(d *fullscreenData, b *render_graph.TaskBuilder) error {
		r, ok := g.Resource(in)
		if !ok {
			return fmt.Errorf("input %q not declared", in)
		}
		d.in = b.Read(r)
		if out == PostTarget {
			d.out = b.Write(b.Import(PostTarget, desc))
		} else {
			d.out = b.Create(out, desc, render_graph.LifetimeTransient)
		}
		return nil
	}, func(d *fullscreenData, ctx *render_graph.Context) error {
		rec := ctx.Recorder
		if err := rec.BeginPass(gpu.PassDesc{Label: name, Color: d.out.Handle()}); err != nil {
			return err
		}
		defer rec.EndPass()
		if err := rec.SetPipeline(key); err != nil {
			return err
		}
		rec.SetInput(d.in.Handle())
		rec.DrawFullscreen(params(ctx))
		return nil
	})
	return err
}

func (p *postProcess) Build(g render_graph.Graph, settings PostProcessSettings, extent common.Extent2D, format gpu.Format) error {
	if !settings.Enabled() {
		return nil
	}
	if extent.Width == 0 || extent.Height == 0 {
		return fmt.Errorf("post process: zero extent %dx%d", extent.Width, extent.Height)
	}
	s := settings.normalized()
	target := gpu.TextureDesc{Extent: extent, Format: format, Usage: gpu.UsageRenderTarget | gpu.UsageCopySrc | gpu.UsageCopyDst}
	temp := gpu.TextureDesc{Extent: extent, Format: format, Usage: gpu.UsageRenderTarget | gpu.UsageSampled | gpu.UsageCopyDst}

	_, err := render_graph.AddTask(g, "post copy", func(d *fullscreenData, b *render_graph.TaskBuilder) error {
		d.in = b.Read(b.Import(PostSource, target))
		d.out = b.Create("post copy", temp, render_graph.LifetimeTransient)
		return nil
	}, func(d *fullscreenData, ctx *render_graph.Context) error {
		return ctx.Recorder.CopyTexture(d.in.Handle(), d.out.Handle())
	})
	if err != nil {
		return fmt.Errorf("post process: %w", err)
	}
	current := "post copy"

	if s.EnableDistortion {
		key, err := p.pipeline("post distortion", distortionShader, format)
		if err != nil {
			return err
		}
		aspect := extent.Aspect()
		params := func(ctx *render_graph.Context) [4]float32 {
			phase := math32.Mod(float32(ctx.Frame)*0.05, 2*math32.Pi)
			return [4]float32{s.DistortionStrength, s.DistortionFrequency, phase, aspect}
		}
		if err := p.addEffect(g, "post distortion", key, current, "post distorted", temp, params); err != nil {
			return fmt.Errorf("post process: %w", err)
		}
		current = "post distorted"
	}

	if s.EnableBlur {
		key, err := p.pipeline("post blur", blurShader, format)
		if err != nil {
			return err
		}
		horizontal := func(*render_graph.Context) [4]float32 { return [4]float32{1, 0, s.BlurRadius, 0} }
		vertical := func(*render_graph.Context) [4]float32 { return [4]float32{0, 1, s.BlurRadius, 0} }
		if err := p.addEffect(g, "post blur horizontal", key, current, "post blur temp", temp, horizontal); err != nil {
			return fmt.Errorf("post process: %w", err)
		}
		if err := p.addEffect(g, "post blur vertical", key, "post blur temp", "post blurred", temp, vertical); err != nil {
			return fmt.Errorf("post process: %w", err)
		}
		current = "post blurred"
	}

	key, err := p.pipeline("post blit", blitShader, format)
	if err != nil {
		return err
	}
	none := func(*render_graph.Context) [4]float32 { return [4]float32{} }
	if err := p.addEffect(g, "post blit", key, current, PostTarget, target, none); err != nil {
		return fmt.Errorf("post process: %w", err)
	}
	p.logger.Debug("[PostProcess] chain built", "distortion", s.EnableDistortion, "blur", s.EnableBlur, "extent", extent, "format", format)
	return nil
}
