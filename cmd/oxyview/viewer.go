package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/render_pass"
	"github.com/Carmen-Shannon/oxy-render/engine/render_system"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/chewxy/math32"
)

// voxelDims is the grid resolution of the voxel overlay toggled with V.
const voxelDims = 8

type viewer struct {
	cfg    config.Config
	logger *slog.Logger

	loader asset.DiskLoader
	scene  scene.Scene
	win    window.Window
	device gpu.SurfaceDevice
	rs     render_system.RenderSystem
	cam    camera.Camera
	prof   *profiler.Profiler

	depth   gpu.Handle
	size    common.Extent2D
	frame   uint64
	fitted  bool
	post    bool
	fluid   bool
	voxels  bool
	nodes   []scene.NodeID
	current int
}

func newViewer(cfg config.Config, loader asset.DiskLoader, sc scene.Scene, logger *slog.Logger) (*viewer, error) {
	v := &viewer{
		cfg:     cfg,
		logger:  logger,
		loader:  loader,
		scene:   sc,
		nodes:   meshNodes(sc),
		current: -1,
		post:    cfg.PostProcess().Enabled(),
	}

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	v.win = win

	device, err := gpu.NewWGPUDevice(win.SurfaceDescriptor(),
		gpu.WithLogger(logger),
		gpu.WithPresentMode(cfg.PresentMode()),
		gpu.WithForceFallbackAdapter(cfg.Render.FallbackAdapter),
	)
	if err != nil {
		win.Close()
		return nil, err
	}
	v.device = device
	v.size = win.Size()
	device.ConfigureSurface(int(v.size.Width), int(v.size.Height))

	v.rs = render_system.NewRenderSystem(loader, device,
		render_system.WithLogger(logger),
		render_system.WithCacheOptions(
			resource_cache.WithRetireFrames(cfg.Cache.RetireFrames),
			resource_cache.WithEvictAfterFrames(cfg.Cache.EvictAfterFrames),
		),
	)
	if err := v.rs.Init(device.SurfaceFormat(), cfg.DepthFormat()); err != nil {
		v.close()
		return nil, err
	}
	v.rs.SetDebugDrawAABB(cfg.Render.DebugBounds)
	v.applyPost()
	if err := v.resize(v.size); err != nil {
		v.close()
		return nil, err
	}

	v.cam = camera.NewCamera(camera.WithPerspective(cfg.Render.FieldOfView*math32.Pi/180, cfg.Render.Near, cfg.Render.Far))
	v.cam.SetAspect(v.size.Aspect())
	v.prof = profiler.NewProfiler(profiler.WithLogger(logger))

	win.SetResizeCallback(func(size common.Extent2D) {
		if err := v.resize(size); err != nil {
			logger.Error("[Viewer] resize failed", "error", err)
		}
	})
	win.SetKeyCallback(v.key)
	win.SetDragCallback(func(dx, dy float32, button window.MouseButton) {
		if button == window.MouseLeft {
			v.cam.Drag(dx, dy)
			return
		}
		scale := v.cam.Radius() * 0.002
		v.cam.Pan(-dx*scale, dy*scale)
	})
	win.SetScrollCallback(v.cam.Zoom)
	return v, nil
}

// resize reconfigures the swapchain and recreates the depth target for the new framebuffer size.
func (v *viewer) resize(size common.Extent2D) error {
	if size.Width == 0 || size.Height == 0 {
		return nil
	}
	v.size = size
	v.device.ConfigureSurface(int(size.Width), int(size.Height))
	if !v.depth.IsNil() {
		v.device.ReleaseTexture(v.depth)
		v.depth = 0
	}
	depth, err := v.device.CreateTexture(gpu.TextureDesc{
		Label:  render_pass.SceneDepth,
		Extent: size,
		Format: v.cfg.DepthFormat(),
		Usage:  gpu.UsageRenderTarget,
	})
	if err != nil {
		return fmt.Errorf("depth target: %w", err)
	}
	v.depth = depth
	if v.cam != nil {
		v.cam.SetAspect(size.Aspect())
	}
	return nil
}

func (v *viewer) applyPost() {
	settings := v.cfg.PostProcess()
	if v.post && !settings.Enabled() {
		settings.EnableBlur = true
	}
	if !v.post {
		settings.EnableBlur, settings.EnableDistortion = false, false
	}
	v.rs.SetPostProcessSettings(settings)
}

func (v *viewer) key(key int, pressed bool) {
	if !pressed {
		return
	}
	switch key {
	case common.KeyW:
		v.cam.Step(0, 1)
	case common.KeyS:
		v.cam.Step(0, -1)
	case common.KeyA:
		v.cam.Step(-1, 0)
	case common.KeyD:
		v.cam.Step(1, 0)
	case common.KeyQ:
		v.cam.Zoom(-1)
	case common.KeyE:
		v.cam.Zoom(1)
	case common.KeyB:
		v.cfg.Render.DebugBounds = !v.cfg.Render.DebugBounds
		v.rs.SetDebugDrawAABB(v.cfg.Render.DebugBounds)
	case common.KeyP:
		v.post = !v.post
		v.applyPost()
	case common.KeyF:
		v.fluid = !v.fluid
	case common.KeyV:
		v.voxels = !v.voxels
	case common.KeyN, common.KeyRight:
		v.selectNext(1)
	case common.KeyTab, common.KeyLeft:
		v.selectNext(-1)
	case common.KeyR:
		v.reload()
	}
}

func (v *viewer) selectNext(step int) {
	if len(v.nodes) == 0 {
		return
	}
	v.current = ((v.current+step)%len(v.nodes) + len(v.nodes)) % len(v.nodes)
	id := v.nodes[v.current]
	v.rs.SetSelectedNode(id)
	if n, ok := v.scene.Node(id); ok {
		v.logger.Info("[Viewer] selected", "node", id, "name", n.Name)
	}
}

// reload feeds changed asset identities to the render system so their GPU copies are rebuilt.
func (v *viewer) reload() {
	for _, id := range v.loader.DrainChanged() {
		v.rs.Invalidate(id)
		v.logger.Info("[Viewer] reloaded asset", "id", id)
	}
}

// overlays sets this frame's fluid and voxel overlays from the world bounds.
func (v *viewer) overlays() {
	bounds := v.rs.World().Bounds()
	if !bounds.Valid() {
		return
	}
	if v.fluid {
		v.rs.SetFluidData(&render_pass.FluidRenderData{Bounds: bounds})
	}
	if v.voxels {
		grid := &render_pass.VoxelRenderData{Bounds: bounds, Dims: [3]uint32{voxelDims, voxelDims, voxelDims}}
		grid.Occupied = make([]bool, voxelDims*voxelDims*voxelDims)
		for i := range grid.Occupied {
			x, y, z := i%voxelDims, (i/voxelDims)%voxelDims, i/(voxelDims*voxelDims)
			grid.Occupied[i] = y == 0 || (x+y+z)%5 == 0
		}
		v.rs.SetVoxelData(grid)
	}
}

func (v *viewer) run() error {
	return v.win.Run(func(float32) error {
		return v.drawFrame()
	})
}

func (v *viewer) drawFrame() error {
	v.reload()

	start := time.Now()
	if err := v.rs.PrepareFrame(v.scene, v.cam.View(), v.cam.Projection(), v.cam.Position(), v.size); err != nil {
		return err
	}
	if !v.fitted {
		v.cam.Fit(v.rs.World().Bounds())
		v.fitted = true
	}
	v.overlays()
	prepared := time.Now()

	rec, target, err := v.device.BeginFrame()
	if err != nil {
		// Outdated or lost surfaces recover after a reconfigure.
		v.logger.Warn("[Viewer] skipping frame", "error", err)
		v.rs.AbortFrame()
		v.device.ConfigureSurface(int(v.size.Width), int(v.size.Height))
		return nil
	}
	ctx := &render_graph.Context{
		Recorder:  rec,
		Allocator: v.device,
		Externals: map[string]gpu.Handle{
			render_pass.SceneColor: target,
			render_pass.SceneDepth: v.depth,
		},
		Frame:  v.frame,
		Logger: v.logger,
	}
	err = v.rs.Execute(ctx)
	if err == nil {
		err = v.rs.ExecutePostProcess(ctx, target, v.size, v.device.SurfaceFormat())
	}
	err = errors.Join(err, v.device.EndFrame())
	v.device.Present()
	v.frame++
	if err != nil {
		return err
	}

	v.prof.Frame(prepared.Sub(start), time.Since(prepared), v.rs.Stats(), v.rs.Cache().Stats())
	return nil
}

func (v *viewer) close() {
	if v.rs != nil {
		v.rs.Release()
	}
	if v.device != nil {
		if !v.depth.IsNil() {
			v.device.ReleaseTexture(v.depth)
		}
		v.device.Destroy()
	}
	if v.win != nil {
		v.win.Close()
	}
}
