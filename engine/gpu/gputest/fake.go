// package gputest provides an in-memory gpu.Device and gpu.Recorder that record every call, for
// testing the renderer core without a GPU.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
)

// Op names a recorded command.
type Op string

const (
	OpBeginPass      Op = "begin_pass"
	OpSetPipeline    Op = "set_pipeline"
	OpSetCamera      Op = "set_camera"
	OpSetMaterial    Op = "set_material"
	OpSetInput       Op = "set_input"
	OpPushTransform  Op = "push_transform"
	OpDrawIndexed    Op = "draw_indexed"
	OpDrawLines      Op = "draw_lines"
	OpDrawFullscreen Op = "draw_fullscreen"
	OpEndPass        Op = "end_pass"
	OpCopyTexture    Op = "copy_texture"
)

// Command is one recorded Recorder call. Only the fields relevant to Op are set.
type Command struct {
	Op     Op
	Pass   gpu.PassDesc
	Key    string
	Camera gpu.CameraUniform
	Handle gpu.Handle
	Dst    gpu.Handle
	World  common.Mat4
	Tint   [4]float32
	Mesh   gpu.MeshBuffers
	Points []common.Vec3
	Params [4]float32
}

// ErrInjected is returned by uploads whose label was registered with FailLabel.
var ErrInjected = errors.New("gputest: injected failure")

// Device is a fake gpu.Device that also implements gpu.Recorder.
type Device struct {
	mu *sync.Mutex

	next     gpu.Handle
	live     map[gpu.Handle]string
	released []gpu.Handle
	fail     map[string]bool

	Pipelines      map[string]gpu.PipelineDesc
	Textures       map[gpu.Handle]gpu.TextureDesc
	MeshUploads    int
	TextureUploads int
	Bindings       int
	Layouts        int

	Commands []Command
	open     bool
}

var (
	_ gpu.Device   = &Device{}
	_ gpu.Recorder = &Device{}
)

// NewDevice returns an empty fake device.
func NewDevice() *Device {
	return &Device{
		mu:        &sync.Mutex{},
		live:      make(map[gpu.Handle]string),
		fail:      make(map[string]bool),
		Pipelines: make(map[string]gpu.PipelineDesc),
		Textures:  make(map[gpu.Handle]gpu.TextureDesc),
	}
}

// FailLabel makes every upload or binding with the given label fail with ErrInjected.
func (d *Device) FailLabel(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[label] = true
}

// Import registers an externally owned handle, such as a swapchain image, and returns it.
func (d *Device) Import(label string) gpu.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.issue("import:" + label)
}

func (d *Device) issue(kind string) gpu.Handle {
	d.next++
	d.live[d.next] = kind
	return d.next
}

// Live returns the number of handles issued and not yet released.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// IsLive reports whether h was issued and not yet released.
func (d *Device) IsLive(h gpu.Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.live[h]
	return ok
}

// Released returns the handles released so far, in release order.
func (d *Device) Released() []gpu.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.Handle(nil), d.released...)
}

// Ops returns the recorded command names in order.
func (d *Device) Ops() []Op {
	out := make([]Op, len(d.Commands))
	for i, c := range d.Commands {
		out[i] = c.Op
	}
	return out
}

// Filter returns the recorded commands with the given op.
func (d *Device) Filter(op Op) []Command {
	var out []Command
	for _, c := range d.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCommands clears the recorded commands.
func (d *Device) ResetCommands() {
	d.Commands = d.Commands[:0]
	d.open = false
}

func (d *Device) UploadMesh(label string, vertices []byte, vertexCount uint32, indices []uint32) (gpu.MeshBuffers, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[label] {
		return gpu.MeshBuffers{}, fmt.Errorf("upload mesh %q: %w", label, ErrInjected)
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return gpu.MeshBuffers{}, fmt.Errorf("upload mesh %q: empty vertex or index data", label)
	}
	d.MeshUploads++
	return gpu.MeshBuffers{
		VertexBuffer: d.issue("vertex:" + label),
		IndexBuffer:  d.issue("index:" + label),
		VertexCount:  vertexCount,
		IndexCount:   uint32(len(indices)),
	}, nil
}

func (d *Device) UploadTexture(label string, pixels common.TextureStagingData, sampler common.SamplerStagingData) (gpu.TextureBinding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[label] {
		return gpu.TextureBinding{}, fmt.Errorf("upload texture %q: %w", label, ErrInjected)
	}
	if len(pixels.Pixels) != int(pixels.Width*pixels.Height*4) || pixels.Width == 0 {
		return gpu.TextureBinding{}, fmt.Errorf("upload texture %q: bad pixel data", label)
	}
	d.TextureUploads++
	return gpu.TextureBinding{
		Texture: d.issue("texture:" + label),
		View:    d.issue("view:" + label),
		Sampler: d.issue("sampler:" + label),
		Width:   pixels.Width,
		Height:  pixels.Height,
	}, nil
}

func (d *Device) CreateMaterialBinding(label string, layout gpu.Handle, params []byte, texture gpu.TextureBinding) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[label] {
		return 0, fmt.Errorf("material binding %q: %w", label, ErrInjected)
	}
	if _, ok := d.live[layout]; !ok {
		return 0, fmt.Errorf("material binding %q: unknown layout %d", label, layout)
	}
	if _, ok := d.live[texture.View]; !ok {
		return 0, fmt.Errorf("material binding %q: texture is not resident", label)
	}
	d.Bindings++
	return d.issue("binding:" + label), nil
}

func (d *Device) Release(handles ...gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range handles {
		if _, ok := d.live[h]; !ok {
			continue
		}
		delete(d.live, h)
		delete(d.Textures, h)
		d.released = append(d.released, h)
	}
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Handle, error) {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return 0, fmt.Errorf("create texture %q: zero extent", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.issue("target:" + desc.Label)
	d.Textures[h] = desc
	return h, nil
}

func (d *Device) ReleaseTexture(h gpu.Handle) {
	d.Release(h)
}

func (d *Device) CreateMaterialLayout(label string) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Layouts++
	return d.issue("layout:" + label), nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.Pipelines[desc.Key]; ok {
		return nil
	}
	if desc.Key == "" || desc.Shader == "" {
		return errors.New("pipeline key and shader source must be set")
	}
	if desc.Group1 == gpu.GroupMaterial {
		if _, ok := d.live[desc.MaterialLayout]; !ok {
			return fmt.Errorf("pipeline %q: material layout %d is unknown", desc.Key, desc.MaterialLayout)
		}
	}
	d.Pipelines[desc.Key] = desc
	return nil
}

func (d *Device) BeginPass(desc gpu.PassDesc) error {
	if d.open {
		return fmt.Errorf("pass %q: previous pass still open", desc.Label)
	}
	if desc.Color.IsNil() {
		return fmt.Errorf("pass %q: nil colour attachment", desc.Label)
	}
	d.open = true
	d.Commands = append(d.Commands, Command{Op: OpBeginPass, Pass: desc})
	return nil
}

func (d *Device) SetPipeline(key string) error {
	if !d.open {
		return fmt.Errorf("pipeline %q: no pass open", key)
	}
	d.mu.Lock()
	_, ok := d.Pipelines[key]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("pipeline %q: not created", key)
	}
	d.Commands = append(d.Commands, Command{Op: OpSetPipeline, Key: key})
	return nil
}

func (d *Device) SetCamera(camera gpu.CameraUniform) {
	d.Commands = append(d.Commands, Command{Op: OpSetCamera, Camera: camera})
}

func (d *Device) SetMaterial(binding gpu.Handle) {
	d.Commands = append(d.Commands, Command{Op: OpSetMaterial, Handle: binding})
}

func (d *Device) SetInput(texture gpu.Handle) {
	d.Commands = append(d.Commands, Command{Op: OpSetInput, Handle: texture})
}

func (d *Device) PushTransform(world common.Mat4, tint [4]float32) {
	d.Commands = append(d.Commands, Command{Op: OpPushTransform, World: world, Tint: tint})
}

func (d *Device) DrawIndexed(mesh gpu.MeshBuffers) {
	d.Commands = append(d.Commands, Command{Op: OpDrawIndexed, Mesh: mesh})
}

func (d *Device) DrawLines(points []common.Vec3, color [4]float32) {
	pts := append([]common.Vec3(nil), points...)
	d.Commands = append(d.Commands, Command{Op: OpDrawLines, Points: pts, Tint: color})
}

func (d *Device) DrawFullscreen(params [4]float32) {
	d.Commands = append(d.Commands, Command{Op: OpDrawFullscreen, Params: params})
}

func (d *Device) EndPass() {
	if !d.open {
		return
	}
	d.open = false
	d.Commands = append(d.Commands, Command{Op: OpEndPass})
}

func (d *Device) CopyTexture(src, dst gpu.Handle) error {
	if d.open {
		return errors.New("copy texture: a pass is open")
	}
	d.Commands = append(d.Commands, Command{Op: OpCopyTexture, Handle: src, Dst: dst})
	return nil
}
