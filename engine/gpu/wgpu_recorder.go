package gpu

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuRecorder records one frame into a command encoder. Camera and draw uniforms are staged in a
// CPU-side ring of 256-byte slots that EndFrame uploads before submission; draws address their
// slot through dynamic offsets.
type wgpuRecorder struct {
	d       *wgpuDevice
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder

	pipeline *wgpuPipeline

	uniforms []byte
	lines    []byte
	dropped  int

	cameraOffset uint32
	hasCamera    bool
	drawOffset   uint32
	hasDraw      bool
}

var _ Recorder = &wgpuRecorder{}

func newWGPURecorder(d *wgpuDevice) *wgpuRecorder {
	return &wgpuRecorder{
		d:        d,
		uniforms: make([]byte, 0, 64*uniformSlotSize),
	}
}

func (r *wgpuRecorder) begin(encoder *wgpu.CommandEncoder) {
	r.encoder = encoder
	r.pass = nil
	r.pipeline = nil
	r.uniforms = r.uniforms[:0]
	r.lines = r.lines[:0]
	r.dropped = 0
	r.hasCamera = false
	r.hasDraw = false
}

// allocSlot copies data into the next uniform slot and returns its byte offset.
func (r *wgpuRecorder) allocSlot(data []byte) (uint32, bool) {
	if len(r.uniforms)/uniformSlotSize >= r.d.maxUniformSlots {
		r.dropped++
		return 0, false
	}
	offset := uint32(len(r.uniforms))
	r.uniforms = append(r.uniforms, data...)
	r.uniforms = append(r.uniforms, make([]byte, uniformSlotSize-len(data))...)
	return offset, true
}

func (r *wgpuRecorder) BeginPass(desc PassDesc) error {
	if r.encoder == nil {
		return errors.New("no frame in progress")
	}
	if r.pass != nil {
		return fmt.Errorf("pass %q: previous pass still open", desc.Label)
	}

	color, ok := r.d.lookup(desc.Color)
	if !ok || color.view == nil {
		return fmt.Errorf("pass %q: unknown colour attachment %d", desc.Label, desc.Color)
	}
	colorAttachment := wgpu.RenderPassColorAttachment{
		View:    color.view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if desc.ClearColor != nil {
		c := desc.ClearColor
		colorAttachment.LoadOp = wgpu.LoadOpClear
		colorAttachment.ClearValue = wgpu.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
	}

	rp := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{colorAttachment},
	}
	if !desc.Depth.IsNil() {
		depth, ok := r.d.lookup(desc.Depth)
		if !ok || depth.view == nil {
			return fmt.Errorf("pass %q: unknown depth attachment %d", desc.Label, desc.Depth)
		}
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
		if desc.ClearDepth {
			rp.DepthStencilAttachment.DepthLoadOp = wgpu.LoadOpClear
		}
	}

	r.pass = r.encoder.BeginRenderPass(rp)
	r.pipeline = nil
	return nil
}

func (r *wgpuRecorder) SetPipeline(key string) error {
	if r.pass == nil {
		return fmt.Errorf("pipeline %q: no pass open", key)
	}
	r.d.mu.Lock()
	p, ok := r.d.pipelines[key]
	r.d.mu.Unlock()
	if !ok {
		return fmt.Errorf("pipeline %q: not created", key)
	}

	r.pass.SetPipeline(p.pipeline)
	r.pipeline = p
	if !r.hasCamera {
		// every layout declares group 0, so full-screen passes get an identity camera
		ident := common.Identity()
		r.SetCamera(CameraUniform{ViewProj: ident, InvViewProj: ident})
	}
	r.pass.SetBindGroup(0, r.d.uniformGroup, []uint32{r.cameraOffset})
	if p.group1 == GroupNone {
		r.pass.SetBindGroup(1, r.d.emptyGroup, nil)
	}
	return nil
}

func (r *wgpuRecorder) SetCamera(camera CameraUniform) {
	offset, ok := r.allocSlot(common.StructToBytes(&camera))
	if !ok {
		return
	}
	r.cameraOffset, r.hasCamera = offset, true
	if r.pass != nil && r.pipeline != nil {
		r.pass.SetBindGroup(0, r.d.uniformGroup, []uint32{offset})
	}
}

func (r *wgpuRecorder) SetMaterial(binding Handle) {
	if r.pass == nil {
		return
	}
	obj, ok := r.d.lookup(binding)
	if !ok || obj.group == nil {
		r.d.logger.Warn("[GPU] unknown material binding", "handle", binding)
		return
	}
	r.pass.SetBindGroup(1, obj.group, nil)
}

func (r *wgpuRecorder) SetInput(texture Handle) {
	if r.pass == nil {
		return
	}
	r.d.mu.Lock()
	group, err := r.d.inputGroup(texture)
	r.d.mu.Unlock()
	if err != nil {
		r.d.logger.Warn("[GPU] cannot bind input", "handle", texture, "error", err)
		return
	}
	r.pass.SetBindGroup(1, group, nil)
}

func (r *wgpuRecorder) PushTransform(world common.Mat4, tint [4]float32) {
	u := DrawUniform{World: world, Tint: tint}
	offset, ok := r.allocSlot(common.StructToBytes(&u))
	r.drawOffset, r.hasDraw = offset, ok
}

// bindDraw binds the current draw slot, allocating an identity transform when none was pushed.
func (r *wgpuRecorder) bindDraw() bool {
	if !r.hasDraw {
		r.PushTransform(common.Identity(), [4]float32{1, 1, 1, 1})
		if !r.hasDraw {
			return false
		}
	}
	r.pass.SetBindGroup(2, r.d.uniformGroup, []uint32{r.drawOffset})
	r.hasDraw = false
	return true
}

func (r *wgpuRecorder) DrawIndexed(mesh MeshBuffers) {
	if r.pass == nil || r.pipeline == nil || !mesh.Valid() {
		return
	}
	vb, okV := r.d.lookup(mesh.VertexBuffer)
	ib, okI := r.d.lookup(mesh.IndexBuffer)
	if !okV || !okI {
		r.d.logger.Warn("[GPU] draw with released mesh buffers", "vertex", mesh.VertexBuffer, "index", mesh.IndexBuffer)
		return
	}
	if !r.bindDraw() {
		return
	}
	r.pass.SetVertexBuffer(0, vb.buffer, 0, wgpu.WholeSize)
	r.pass.SetIndexBuffer(ib.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	r.pass.DrawIndexed(mesh.IndexCount, 1, 0, 0, 0)
}

func (r *wgpuRecorder) DrawLines(points []common.Vec3, color [4]float32) {
	if r.pass == nil || r.pipeline == nil || len(points) < 2 {
		return
	}
	if len(r.lines)/lineVertexSize+len(points) > r.d.maxLineVertices {
		r.dropped++
		return
	}
	r.PushTransform(common.Identity(), color)
	if !r.bindDraw() {
		return
	}
	offset := uint64(len(r.lines))
	r.lines = append(r.lines, common.SliceToBytes(points)...)
	size := uint64(len(points) * lineVertexSize)
	r.pass.SetVertexBuffer(0, r.d.lineBuffer, offset, size)
	r.pass.Draw(uint32(len(points)), 1, 0, 0)
}

func (r *wgpuRecorder) DrawFullscreen(params [4]float32) {
	if r.pass == nil || r.pipeline == nil {
		return
	}
	r.PushTransform(common.Identity(), params)
	if !r.bindDraw() {
		return
	}
	r.pass.Draw(3, 1, 0, 0)
}

func (r *wgpuRecorder) EndPass() {
	if r.pass == nil {
		return
	}
	r.pass.End()
	r.pass.Release()
	r.pass = nil
	r.pipeline = nil
}

func (r *wgpuRecorder) CopyTexture(src, dst Handle) error {
	if r.encoder == nil {
		return errors.New("no frame in progress")
	}
	if r.pass != nil {
		return errors.New("copy texture: a pass is open")
	}
	s, okS := r.d.lookup(src)
	t, okT := r.d.lookup(dst)
	if !okS || !okT || s.texture == nil || t.texture == nil {
		return fmt.Errorf("copy texture: unknown texture %d or %d", src, dst)
	}
	if s.extent != t.extent || s.format != t.format {
		return fmt.Errorf("copy texture: %v %s does not match %v %s", s.extent, s.format, t.extent, t.format)
	}
	r.encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: s.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: t.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.Extent3D{Width: s.extent.Width, Height: s.extent.Height, DepthOrArrayLayers: 1},
	)
	return nil
}
