package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// uniformSlotSize is the dynamic offset alignment for the camera and draw uniform blocks.
const uniformSlotSize = 256

const materialParamsSize = uint64(unsafe.Sizeof(MaterialParams{}))

// SurfaceDevice is a Device that presents to a window surface.
type SurfaceDevice interface {
	Device

	// ConfigureSurface (re)configures the swapchain. Call it on start-up and whenever the window
	// is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SurfaceFormat returns the swapchain colour format chosen by ConfigureSurface.
	SurfaceFormat() Format

	// SetPresentMode changes the present mode; it applies at the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the next swapchain texture and opens a command encoder.
	// Must be paired with EndFrame and Present.
	//
	// Returns:
	//   - Recorder: the recorder for this frame
	//   - Handle: the swapchain texture, valid until Present
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() (Recorder, Handle, error)

	// EndFrame closes any open pass, uploads the frame's uniform data and submits the recorded
	// commands. Does not present.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	EndFrame() error

	// Present presents the swapchain texture and releases it.
	Present()

	// Destroy releases every device object, the device and the surface.
	Destroy()
}

type objectKind int

const (
	kindBuffer objectKind = iota + 1
	kindTexture
	kindView
	kindSampler
	kindBindGroup
	kindLayout
	kindTarget
)

// wgpuObject is one registry entry. Targets carry both the texture and its default view.
type wgpuObject struct {
	kind     objectKind
	buffer   *wgpu.Buffer
	texture  *wgpu.Texture
	view     *wgpu.TextureView
	sampler  *wgpu.Sampler
	group    *wgpu.BindGroup
	layout   *wgpu.BindGroupLayout
	extent   common.Extent2D
	format   Format
	borrowed bool
}

func (o *wgpuObject) release() {
	if o.borrowed {
		return
	}
	if o.group != nil {
		o.group.Release()
	}
	if o.buffer != nil {
		o.buffer.Release()
	}
	if o.view != nil {
		o.view.Release()
	}
	if o.texture != nil {
		o.texture.Release()
	}
	if o.sampler != nil {
		o.sampler.Release()
	}
	if o.layout != nil {
		o.layout.Release()
	}
}

type wgpuPipeline struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	group1   GroupBinding
}

// wgpuDevice is the implementation of the SurfaceDevice interface on cogentcore/webgpu.
type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat Format
	surfaceExtent common.Extent2D
	presentMode   PresentMode
	forceFallback bool
	logger        *slog.Logger

	objects map[Handle]*wgpuObject
	next    Handle

	pipelines map[string]*wgpuPipeline

	// shared layouts: the dynamic uniform layout serves groups 0 and 2
	uniformLayout *wgpu.BindGroupLayout
	inputLayout   *wgpu.BindGroupLayout
	emptyLayout   *wgpu.BindGroupLayout
	emptyGroup    *wgpu.BindGroup
	inputSampler  *wgpu.Sampler
	inputGroups   map[Handle]*wgpu.BindGroup

	maxUniformSlots int
	maxLineVertices int
	uniformBuffer   *wgpu.Buffer
	uniformGroup    *wgpu.BindGroup
	lineBuffer      *wgpu.Buffer

	frame        *wgpuRecorder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	frameHandle  Handle
}

var _ SurfaceDevice = &wgpuDevice{}

// NewWGPUDevice creates an instance, adapter, device and queue for the given surface.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, usually from window.Window
//   - options: functional options
//
// Returns:
//   - SurfaceDevice: the device
//   - error: an error if no adapter or device could be obtained
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...DeviceBuilderOption) (SurfaceDevice, error) {
	if surfaceDescriptor == nil {
		return nil, errors.New("gpu: nil surface descriptor")
	}
	runtime.LockOSThread()

	d := &wgpuDevice{
		mu:              &sync.Mutex{},
		logger:          common.NopLogger(),
		objects:         make(map[Handle]*wgpuObject),
		pipelines:       make(map[string]*wgpuPipeline),
		inputGroups:     make(map[Handle]*wgpu.BindGroup),
		maxUniformSlots: 8192,
		maxLineVertices: 1 << 16,
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-render device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.initShared(); err != nil {
		return nil, err
	}
	d.logger.Info("[GPU] device ready", "uniformSlots", d.maxUniformSlots, "lineVertices", d.maxLineVertices)
	return d, nil
}

// initShared creates the layouts, buffers and groups every pipeline and frame relies on.
func (d *wgpuDevice) initShared() error {
	uniformEntry := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	}
	uniformEntry.Buffer.Type = wgpu.BufferBindingTypeUniform
	uniformEntry.Buffer.HasDynamicOffset = true
	uniformEntry.Buffer.MinBindingSize = uniformSlotSize

	var err error
	d.uniformLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "uniform layout",
		Entries: []wgpu.BindGroupLayoutEntry{uniformEntry},
	})
	if err != nil {
		return fmt.Errorf("create uniform layout: %w", err)
	}

	d.inputLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "input layout",
		Entries: sampledEntries(0),
	})
	if err != nil {
		return fmt.Errorf("create input layout: %w", err)
	}

	d.emptyLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "empty layout"})
	if err != nil {
		return fmt.Errorf("create empty layout: %w", err)
	}
	d.emptyGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{Label: "empty group", Layout: d.emptyLayout})
	if err != nil {
		return fmt.Errorf("create empty group: %w", err)
	}

	d.inputSampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "input sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("create input sampler: %w", err)
	}

	d.uniformBuffer, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "frame uniforms",
		Size:  uint64(d.maxUniformSlots * uniformSlotSize),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	d.uniformGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "frame uniforms",
		Layout: d.uniformLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: d.uniformBuffer, Offset: 0, Size: uniformSlotSize},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform group: %w", err)
	}

	d.lineBuffer, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "frame lines",
		Size:  uint64(d.maxLineVertices * lineVertexSize),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create line buffer: %w", err)
	}
	return nil
}

// sampledEntries returns a 2D float texture at binding first and its filtering sampler at first+1.
func sampledEntries(first uint32) []wgpu.BindGroupLayoutEntry {
	tex := wgpu.BindGroupLayoutEntry{Binding: first, Visibility: wgpu.ShaderStageFragment}
	tex.Texture.SampleType = wgpu.TextureSampleTypeFloat
	tex.Texture.ViewDimension = wgpu.TextureViewDimension2D
	samp := wgpu.BindGroupLayoutEntry{Binding: first + 1, Visibility: wgpu.ShaderStageFragment}
	samp.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	return []wgpu.BindGroupLayoutEntry{tex, samp}
}

// register stores obj and returns its new handle. Callers hold d.mu.
func (d *wgpuDevice) register(obj *wgpuObject) Handle {
	d.next++
	d.objects[d.next] = obj
	return d.next
}

func (d *wgpuDevice) lookup(h Handle) (*wgpuObject, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := d.objects[h]
	return obj, ok
}

func (d *wgpuDevice) UploadMesh(label string, vertices []byte, vertexCount uint32, indices []uint32) (MeshBuffers, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return MeshBuffers{}, fmt.Errorf("upload mesh %q: empty vertex or index data", label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	vb, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label + " Vertex Buffer",
		Size:             uint64(len(vertices)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return MeshBuffers{}, fmt.Errorf("upload mesh %q: %w", label, err)
	}
	d.queue.WriteBuffer(vb, 0, vertices)

	indexData := common.SliceToBytes(indices)
	ib, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label + " Index Buffer",
		Size:             uint64(len(indexData)),
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		vb.Release()
		return MeshBuffers{}, fmt.Errorf("upload mesh %q: %w", label, err)
	}
	d.queue.WriteBuffer(ib, 0, indexData)

	return MeshBuffers{
		VertexBuffer: d.register(&wgpuObject{kind: kindBuffer, buffer: vb}),
		IndexBuffer:  d.register(&wgpuObject{kind: kindBuffer, buffer: ib}),
		VertexCount:  vertexCount,
		IndexCount:   uint32(len(indices)),
	}, nil
}

func (d *wgpuDevice) UploadTexture(label string, pixels common.TextureStagingData, sampler common.SamplerStagingData) (TextureBinding, error) {
	if pixels.Width == 0 || pixels.Height == 0 || len(pixels.Pixels) != int(pixels.Width*pixels.Height*4) {
		return TextureBinding{}, fmt.Errorf("upload texture %q: %dx%d with %d bytes is not RGBA8", label, pixels.Width, pixels.Height, len(pixels.Pixels))
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	extent := wgpu.Extent3D{Width: pixels.Width, Height: pixels.Height, DepthOrArrayLayers: 1}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label + " Texture",
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return TextureBinding{}, fmt.Errorf("upload texture %q: %w", label, err)
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  pixels.Width * 4,
			RowsPerImage: pixels.Height,
		},
		&extent,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return TextureBinding{}, fmt.Errorf("upload texture %q: %w", label, err)
	}

	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label + " Sampler",
		AddressModeU:  common.Coalesce(sampler.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(sampler.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(sampler.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(sampler.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(sampler.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(sampler.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(sampler.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(sampler.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(sampler.MaxAnisotropy, 1),
		Compare:       sampler.Compare,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return TextureBinding{}, fmt.Errorf("upload texture %q: %w", label, err)
	}

	size := common.Extent2D{Width: pixels.Width, Height: pixels.Height}
	return TextureBinding{
		Texture: d.register(&wgpuObject{kind: kindTexture, texture: tex, extent: size, format: FormatRGBA8UnormSrgb}),
		View:    d.register(&wgpuObject{kind: kindView, view: view, extent: size, format: FormatRGBA8UnormSrgb}),
		Sampler: d.register(&wgpuObject{kind: kindSampler, sampler: samp}),
		Width:   pixels.Width,
		Height:  pixels.Height,
	}, nil
}

func (d *wgpuDevice) CreateMaterialLayout(label string) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	params := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	}
	params.Buffer.Type = wgpu.BufferBindingTypeUniform
	params.Buffer.MinBindingSize = materialParamsSize

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: append([]wgpu.BindGroupLayoutEntry{params}, sampledEntries(1)...),
	})
	if err != nil {
		return 0, fmt.Errorf("create material layout %q: %w", label, err)
	}
	return d.register(&wgpuObject{kind: kindLayout, layout: layout}), nil
}

func (d *wgpuDevice) CreateMaterialBinding(label string, layout Handle, params []byte, texture TextureBinding) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lo, ok := d.objects[layout]
	if !ok || lo.kind != kindLayout {
		return 0, fmt.Errorf("material binding %q: unknown layout %d", label, layout)
	}
	view, okView := d.objects[texture.View]
	samp, okSamp := d.objects[texture.Sampler]
	if !okView || !okSamp {
		return 0, fmt.Errorf("material binding %q: texture is not resident", label)
	}

	size := max(uint64(len(params)), materialParamsSize)
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Params",
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("material binding %q: %w", label, err)
	}
	if len(params) > 0 {
		d.queue.WriteBuffer(buf, 0, params)
	}

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: lo.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Offset: 0, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: view.view},
			{Binding: 2, Sampler: samp.sampler},
		},
	})
	if err != nil {
		buf.Release()
		return 0, fmt.Errorf("material binding %q: %w", label, err)
	}
	return d.register(&wgpuObject{kind: kindBindGroup, group: group, buffer: buf}), nil
}

func (d *wgpuDevice) Release(handles ...Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range handles {
		d.releaseLocked(h)
	}
}

func (d *wgpuDevice) releaseLocked(h Handle) {
	obj, ok := d.objects[h]
	if !ok {
		return
	}
	delete(d.objects, h)
	if g, ok := d.inputGroups[h]; ok {
		g.Release()
		delete(d.inputGroups, h)
	}
	obj.release()
}

func (d *wgpuDevice) CreateTexture(desc TextureDesc) (Handle, error) {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return 0, fmt.Errorf("create texture %q: zero extent", desc.Label)
	}
	format := toWGPUFormat(desc.Format)
	if format == wgpu.TextureFormatUndefined {
		return 0, fmt.Errorf("create texture %q: unsupported format %s", desc.Label, desc.Format)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Extent.Width,
			Height:             desc.Extent.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         toWGPUUsage(desc.Usage, desc.Format),
	})
	if err != nil {
		return 0, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	return d.register(&wgpuObject{
		kind:    kindTarget,
		texture: tex,
		view:    view,
		extent:  desc.Extent,
		format:  desc.Format,
	}), nil
}

func (d *wgpuDevice) ReleaseTexture(h Handle) {
	d.Release(h)
}

func (d *wgpuDevice) CreatePipeline(desc PipelineDesc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pipelines[desc.Key]; ok {
		return nil
	}
	if desc.Key == "" || desc.Shader == "" {
		return errors.New("pipeline key and shader source must be set")
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Shader,
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: shader: %w", desc.Key, err)
	}
	defer module.Release()

	group1 := d.emptyLayout
	switch desc.Group1 {
	case GroupMaterial:
		lo, ok := d.objects[desc.MaterialLayout]
		if !ok || lo.kind != kindLayout {
			return fmt.Errorf("pipeline %q: material layout %d is unknown", desc.Key, desc.MaterialLayout)
		}
		group1 = lo.layout
	case GroupInput:
		group1 = d.inputLayout
	}

	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Key,
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.uniformLayout, group1, d.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: layout: %w", desc.Key, err)
	}

	topology := wgpu.PrimitiveTopologyTriangleList
	if desc.Topology == TopologyLines {
		topology = wgpu.PrimitiveTopologyLineList
	}
	cull := wgpu.CullModeNone
	if desc.CullBack {
		cull = wgpu.CullModeBack
	} else if desc.CullFront {
		cull = wgpu.CullModeFront
	}

	var depth *wgpu.DepthStencilState
	if desc.DepthFormat != FormatUndefined {
		compare := wgpu.CompareFunctionAlways
		if desc.DepthTest {
			compare = wgpu.CompareFunctionLess
			if !desc.DepthWrite {
				compare = wgpu.CompareFunctionLessEqual
			}
		}
		depth = &wgpu.DepthStencilState{
			Format:            toWGPUFormat(desc.DepthFormat),
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Key + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    vertexBuffers(desc.Vertex),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    toWGPUFormat(desc.ColorFormat),
				Blend:     blendState(desc.Blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depth,
	})
	if err != nil {
		layout.Release()
		return fmt.Errorf("pipeline %q: %w", desc.Key, err)
	}

	d.pipelines[desc.Key] = &wgpuPipeline{pipeline: created, layout: layout, group1: desc.Group1}
	d.logger.Debug("[GPU] pipeline created", "key", desc.Key, "color", desc.ColorFormat, "depth", desc.DepthFormat)
	return nil
}

// inputGroup returns the sampled-input bind group for a texture, creating it on first use.
// Callers hold d.mu.
func (d *wgpuDevice) inputGroup(h Handle) (*wgpu.BindGroup, error) {
	if g, ok := d.inputGroups[h]; ok {
		return g, nil
	}
	obj, ok := d.objects[h]
	if !ok || obj.view == nil {
		return nil, fmt.Errorf("input %d has no texture view", h)
	}
	g, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "input",
		Layout: d.inputLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: obj.view},
			{Binding: 1, Sampler: d.inputSampler},
		},
	})
	if err != nil {
		return nil, err
	}
	d.inputGroups[h] = g
	return g, nil
}

func (d *wgpuDevice) ConfigureSurface(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	capabilities := d.surface.GetCapabilities(d.adapter)
	format := capabilities.Formats[0]
	d.surfaceFormat = fromWGPUFormat(format)
	d.surfaceExtent = common.Extent2D{Width: uint32(width), Height: uint32(height)}

	present := wgpu.PresentModeFifo
	switch d.presentMode {
	case PresentModeUncapped:
		present = wgpu.PresentModeImmediate
	case PresentModeMailbox:
		present = wgpu.PresentModeMailbox
	}

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: present,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	d.logger.Debug("[GPU] surface configured", "width", width, "height", height, "format", d.surfaceFormat)
}

func (d *wgpuDevice) SurfaceFormat() Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaceFormat
}

func (d *wgpuDevice) SetPresentMode(mode PresentMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentMode = mode
}

func (d *wgpuDevice) BeginFrame() (Recorder, Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// a surface texture still held means the previous frame was never presented
	if d.frameSurface != nil {
		return nil, 0, errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return nil, 0, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, 0, err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, 0, err
	}

	d.frameSurface = surfaceTexture
	d.frameView = view
	d.frameHandle = d.register(&wgpuObject{
		kind:     kindTarget,
		texture:  surfaceTexture,
		view:     view,
		extent:   d.surfaceExtent,
		format:   d.surfaceFormat,
		borrowed: true,
	})
	if d.frame == nil {
		d.frame = newWGPURecorder(d)
	}
	d.frame.begin(encoder)
	return d.frame, d.frameHandle, nil
}

func (d *wgpuDevice) EndFrame() error {
	if d.frame == nil || d.frame.encoder == nil {
		return errors.New("no frame in progress")
	}
	d.frame.EndPass()

	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.frame
	if len(r.uniforms) > 0 {
		d.queue.WriteBuffer(d.uniformBuffer, 0, r.uniforms)
	}
	if len(r.lines) > 0 {
		d.queue.WriteBuffer(d.lineBuffer, 0, r.lines)
	}
	if r.dropped > 0 {
		d.logger.Warn("[GPU] frame capacity exceeded, work dropped", "dropped", r.dropped)
	}

	encoder := r.encoder
	r.encoder = nil
	defer encoder.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish frame: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (d *wgpuDevice) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface == nil {
		return
	}
	d.surface.Present()

	if g, ok := d.inputGroups[d.frameHandle]; ok {
		g.Release()
		delete(d.inputGroups, d.frameHandle)
	}
	delete(d.objects, d.frameHandle)
	d.frameView.Release()
	d.frameSurface.Release()
	d.frameView = nil
	d.frameSurface = nil
	d.frameHandle = 0
}

func (d *wgpuDevice) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for h := range d.objects {
		d.releaseLocked(h)
	}
	for key, p := range d.pipelines {
		p.pipeline.Release()
		p.layout.Release()
		delete(d.pipelines, key)
	}
	for _, g := range []*wgpu.BindGroup{d.uniformGroup, d.emptyGroup} {
		if g != nil {
			g.Release()
		}
	}
	for _, b := range []*wgpu.Buffer{d.uniformBuffer, d.lineBuffer} {
		if b != nil {
			b.Release()
		}
	}
	for _, l := range []*wgpu.BindGroupLayout{d.uniformLayout, d.inputLayout, d.emptyLayout} {
		if l != nil {
			l.Release()
		}
	}
	if d.inputSampler != nil {
		d.inputSampler.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
	d.logger.Debug("[GPU] device destroyed")
}
