// Package render_system drives one frame of rendering: it extracts render proxies from a scene,
// culls them into draw lists, hands the lists to the render passes and executes the frame graph
// and the optional post-process graph.
package render_system

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/draw_list"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/render_pass"
	"github.com/Carmen-Shannon/oxy-render/engine/render_world"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// ErrNotInitialized is returned by Execute before a successful Init.
var ErrNotInitialized = errors.New("render system not initialized")

// renderSystem is the implementation of the RenderSystem interface.
type renderSystem struct {
	logger *slog.Logger

	loader  asset.Loader
	device  gpu.Device
	cache   resource_cache.Cache
	world   render_world.World
	builder draw_list.Builder

	cacheOptions []resource_cache.CacheBuilderOption
	passOptions  []render_pass.PassBuilderOption

	opaque      render_pass.OpaquePass
	outline     render_pass.Pass
	debugAABB   render_pass.DebugAABBPass
	transparent render_pass.Pass
	fluid       render_pass.FluidPass
	voxel       render_pass.VoxelPass
	passes      []render_pass.Pass

	graph       render_graph.Graph
	initialized bool
	frameOpen   bool

	fc       draw_list.FrameContext
	lists    draw_list.DrawLists
	stats    draw_list.FrameStats
	selected scene.NodeID
	drawAABB bool

	fluidData *render_pass.FluidRenderData
	voxelData *render_pass.VoxelRenderData

	post         render_pass.PostProcess
	postGraph    render_graph.Graph
	postSettings render_pass.PostProcessSettings
	postDirty    bool
	postExtent   common.Extent2D
	postFormat   gpu.Format
}

// RenderSystem turns a scene into GPU work once per frame. Call PrepareFrame, then Execute, then
// optionally ExecutePostProcess, from the render thread. Not safe for concurrent use.
type RenderSystem interface {
	// Init creates the passes for the given target formats, points the resource cache at the
	// opaque pass material layout, registers every pass into the frame graph and compiles it.
	// Calling Init again rebuilds the passes and the graph for new formats.
	//
	// Parameters:
	//   - colorFormat: the scene colour target format
	//   - depthFormat: the scene depth target format
	//
	// Returns:
	//   - error: error if a pass cannot be created or the graph does not compile
	Init(colorFormat, depthFormat gpu.Format) error

	// PrepareFrame rebuilds the frame context, the render proxies and the draw lists, and hands
	// them to the passes.
	//
	// Parameters:
	//   - sc: the scene to draw
	//   - view: the world-to-view matrix
	//   - proj: the view-to-clip matrix
	//   - cameraPosition: the camera position in world space
	//   - viewport: the render target size in pixels
	//
	// Returns:
	//   - error: a configuration error from the resource cache, such as an unset material layout
	PrepareFrame(sc scene.Scene, view, proj common.Mat4, cameraPosition common.Vec3, viewport common.Extent2D) error

	// Execute runs the frame graph, compiling it first if needed, and then ends the cache frame.
	// The frame overlays set since the last Execute are consumed and cleared. ctx.Externals must
	// bind render_pass.SceneColor and render_pass.SceneDepth.
	//
	// Parameters:
	//   - ctx: the frame's execution context
	//
	// Returns:
	//   - error: ErrNotInitialized before Init, or the first pass error
	Execute(ctx *render_graph.Context) error

	// ExecutePostProcess runs the post-process chain over target. It does nothing when every effect
	// is disabled. The chain is rebuilt when the settings, the extent or the format change.
	//
	// Parameters:
	//   - ctx: the frame's execution context; its externals are left untouched
	//   - target: the texture to post-process in place
	//   - extent: the target size in pixels
	//   - format: the target format
	//
	// Returns:
	//   - error: error if the chain cannot be built or a pass fails
	ExecutePostProcess(ctx *render_graph.Context, target gpu.Handle, extent common.Extent2D, format gpu.Format) error

	// AbortFrame ends a prepared frame that will not be executed, for example when the swapchain
	// image could not be acquired. The frame overlays are dropped and the cache frame is ended so
	// eviction and deferred releases keep their schedule. It does nothing when no frame is open.
	AbortFrame()

	// SetFluidData sets the fluid overlay for the next Execute; nil clears it.
	SetFluidData(data *render_pass.FluidRenderData)

	// SetVoxelData sets the voxel overlay for the next Execute; nil clears it.
	SetVoxelData(data *render_pass.VoxelRenderData)

	// SetDebugDrawAABB toggles the debug bounds overlay from the next PrepareFrame on.
	SetDebugDrawAABB(enabled bool)

	// SetSelectedNode sets the node drawn into the outline list; zero selects nothing.
	SetSelectedNode(id scene.NodeID)

	// SetPostProcessSettings replaces the post-process settings.
	SetPostProcessSettings(settings render_pass.PostProcessSettings)

	// PostProcessSettings returns the current post-process settings.
	PostProcessSettings() render_pass.PostProcessSettings

	// Invalidate drops the cached GPU objects and memoised bounds of an asset so the next frame
	// reloads it.
	Invalidate(id asset.ID)

	// Stats returns the counts of the last prepared frame.
	Stats() draw_list.FrameStats

	World() render_world.World

	DrawLists() *draw_list.DrawLists

	FrameContext() *draw_list.FrameContext

	Cache() resource_cache.Cache

	// Release frees every GPU object owned by the passes, the graphs and the cache. The render
	// system must not be used afterwards.
	Release()
}

var _ RenderSystem = &renderSystem{}

// NewRenderSystem creates a render system with its own resource cache and render world.
// Panics when loader or device is nil.
//
// Parameters:
//   - loader: resolves CPU assets for extraction and uploads
//   - device: uploads assets, creates pipelines and allocates transient targets
//   - options: functional options
//
// Returns:
//   - RenderSystem: the render system, ready for Init
func NewRenderSystem(loader asset.Loader, device gpu.Device, options ...RenderSystemBuilderOption) RenderSystem {
	if loader == nil || device == nil {
		panic("render system: nil loader or device")
	}
	s := &renderSystem{
		logger: common.NopLogger(),
		loader: loader,
		device: device,
	}
	for _, opt := range options {
		opt(s)
	}

	s.cache = resource_cache.NewCache(loader, device, append([]resource_cache.CacheBuilderOption{resource_cache.WithLogger(s.logger)}, s.cacheOptions...)...)
	s.world = render_world.NewWorld(render_world.WithLogger(s.logger))
	s.graph = render_graph.New(render_graph.WithLogger(s.logger))
	s.postGraph = render_graph.New(render_graph.WithLogger(s.logger))
	s.builder.IsTransparent = s.isTransparent

	passOptions := append([]render_pass.PassBuilderOption{render_pass.WithLogger(s.logger)}, s.passOptions...)
	s.opaque = render_pass.NewOpaquePass(device, s.cache, passOptions...)
	s.outline = render_pass.NewOutlinePass(device, s.cache, passOptions...)
	s.debugAABB = render_pass.NewDebugAABBPass(device, s.cache, passOptions...)
	s.transparent = render_pass.NewTransparentPass(device, s.cache, s.opaque.MaterialLayout, passOptions...)
	s.fluid = render_pass.NewFluidPass(device, passOptions...)
	s.voxel = render_pass.NewVoxelPass(device, passOptions...)
	s.passes = []render_pass.Pass{s.opaque, s.outline, s.debugAABB, s.transparent, s.fluid, s.voxel}
	s.post = render_pass.NewPostProcess(device, passOptions...)
	return s
}

// isTransparent keeps flagged nodes and materials with a translucent base colour out of the
// opaque list.
func (s *renderSystem) isTransparent(p *render_world.RenderProxy) bool {
	if p.Flags&scene.NodeFlagTransparent != 0 {
		return true
	}
	m, ok := s.cache.Material(p.Material)
	return ok && m.Transparent()
}

func (s *renderSystem) Init(colorFormat, depthFormat gpu.Format) error {
	s.initialized = false
	s.graph.Reset()

	if err := s.opaque.Init(colorFormat, depthFormat); err != nil {
		return fmt.Errorf("init render system: %w", err)
	}
	s.cache.SetMaterialDescriptorLayout(s.opaque.MaterialLayout())

	for _, p := range s.passes[1:] {
		if err := p.Init(colorFormat, depthFormat); err != nil {
			return fmt.Errorf("init render system: %w", err)
		}
	}
	for _, p := range s.passes {
		if err := p.RegisterToGraph(s.graph); err != nil {
			return fmt.Errorf("init render system: register %s: %w", p.Name(), err)
		}
	}
	if err := s.graph.Compile(); err != nil {
		return fmt.Errorf("init render system: %w", err)
	}
	s.initialized = true
	s.logger.Info("[RenderSystem] initialized", "color", colorFormat, "depth", depthFormat, "order", s.graph.Order())
	return nil
}

func (s *renderSystem) PrepareFrame(sc scene.Scene, view, proj common.Mat4, cameraPosition common.Vec3, viewport common.Extent2D) error {
	s.fc = draw_list.NewFrameContext(view, proj, cameraPosition, viewport)
	// A frame prepared twice without Execute still ends its cache frame once.
	s.endFrame()
	s.cache.BeginFrame()
	s.frameOpen = true

	if err := s.world.ExtractFromScene(sc, s.loader, s.cache); err != nil {
		s.lists.Reset()
		s.stats = draw_list.FrameStats{}
		return fmt.Errorf("prepare frame: %w", err)
	}

	proxies := s.world.Proxies()
	s.stats = s.builder.Build(proxies, &s.fc, s.selected, &s.lists)
	s.stats.TransparentDraws = s.builder.CollectTransparent(proxies, &s.fc, &s.lists)

	s.debugAABB.SetEnabled(s.drawAABB)
	for _, p := range s.passes {
		p.SetFrameData(&s.fc, &s.lists)
	}
	return nil
}

func (s *renderSystem) Execute(ctx *render_graph.Context) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	defer func() {
		s.clearOverlays()
		s.endFrame()
	}()
	if s.graph.State() != render_graph.StateCompiled {
		if err := s.graph.Compile(); err != nil {
			return fmt.Errorf("execute frame: %w", err)
		}
	}

	s.fluid.SetData(s.fluidData)
	s.voxel.SetData(s.voxelData)
	if err := s.graph.Execute(ctx); err != nil {
		return fmt.Errorf("execute frame: %w", err)
	}
	return nil
}

func (s *renderSystem) AbortFrame() {
	s.clearOverlays()
	s.endFrame()
}

func (s *renderSystem) clearOverlays() {
	s.fluidData, s.voxelData = nil, nil
	s.fluid.SetData(nil)
	s.voxel.SetData(nil)
}

// endFrame ends the open cache frame, if any.
func (s *renderSystem) endFrame() {
	if !s.frameOpen {
		return
	}
	s.frameOpen = false
	s.cache.EndFrame()
}

func (s *renderSystem) ExecutePostProcess(ctx *render_graph.Context, target gpu.Handle, extent common.Extent2D, format gpu.Format) error {
	if !s.postSettings.Enabled() {
		return nil
	}
	if ctx == nil {
		return errors.New("execute post process: nil context")
	}
	if s.postDirty || s.postGraph.State() == render_graph.StateUninitialized || extent != s.postExtent || format != s.postFormat {
		s.postGraph.Reset()
		if err := s.post.Build(s.postGraph, s.postSettings, extent, format); err != nil {
			s.postGraph.Reset()
			return fmt.Errorf("execute post process: %w", err)
		}
		if err := s.postGraph.Compile(); err != nil {
			return fmt.Errorf("execute post process: %w", err)
		}
		s.postDirty = false
		s.postExtent, s.postFormat = extent, format
		s.logger.Debug("[RenderSystem] post-process graph rebuilt", "order", s.postGraph.Order())
	}

	pctx := *ctx
	pctx.Externals = map[string]gpu.Handle{
		render_pass.PostSource: target,
		render_pass.PostTarget: target,
	}
	if err := s.postGraph.Execute(&pctx); err != nil {
		return fmt.Errorf("execute post process: %w", err)
	}
	return nil
}

func (s *renderSystem) SetFluidData(data *render_pass.FluidRenderData) { s.fluidData = data }

func (s *renderSystem) SetVoxelData(data *render_pass.VoxelRenderData) { s.voxelData = data }

func (s *renderSystem) SetDebugDrawAABB(enabled bool) { s.drawAABB = enabled }

func (s *renderSystem) SetSelectedNode(id scene.NodeID) { s.selected = id }

func (s *renderSystem) SetPostProcessSettings(settings render_pass.PostProcessSettings) {
	if settings != s.postSettings {
		s.postDirty = true
	}
	s.postSettings = settings
}

func (s *renderSystem) PostProcessSettings() render_pass.PostProcessSettings { return s.postSettings }

func (s *renderSystem) Invalidate(id asset.ID) {
	s.cache.Invalidate(id)
	s.world.InvalidateBounds(id)
}

func (s *renderSystem) Stats() draw_list.FrameStats { return s.stats }

func (s *renderSystem) World() render_world.World { return s.world }

func (s *renderSystem) DrawLists() *draw_list.DrawLists { return &s.lists }

func (s *renderSystem) FrameContext() *draw_list.FrameContext { return &s.fc }

func (s *renderSystem) Cache() resource_cache.Cache { return s.cache }

func (s *renderSystem) Release() {
	s.graph.Reset()
	s.postGraph.Reset()
	s.cache.Release()
	for _, p := range s.passes {
		p.Release()
	}
	s.lists.Reset()
	s.initialized = false
	s.frameOpen = false
	s.logger.Debug("[RenderSystem] released")
}
