// Package gpu defines the services the renderer core calls into: uploads, transient texture
// allocation and command recording. Objects cross the boundary as opaque handles so the core never
// touches a graphics API type.
package gpu

import (
	"github.com/Carmen-Shannon/oxy-render/common"
)

// Handle identifies a device object owned by a Device. The zero handle is never issued.
type Handle uint64

// IsNil reports whether h is the zero handle.
func (h Handle) IsNil() bool { return h == 0 }

// MeshBuffers is an uploaded vertex/index buffer pair.
type MeshBuffers struct {
	VertexBuffer Handle
	IndexBuffer  Handle
	VertexCount  uint32
	IndexCount   uint32
}

// Valid reports whether the buffers can be drawn.
func (m MeshBuffers) Valid() bool {
	return !m.VertexBuffer.IsNil() && !m.IndexBuffer.IsNil() && m.IndexCount > 0
}

// Handles returns the device objects backing the mesh, for Release.
func (m MeshBuffers) Handles() []Handle {
	return []Handle{m.VertexBuffer, m.IndexBuffer}
}

// TextureBinding is a sampled texture: the image, a view over it and its sampler.
type TextureBinding struct {
	Texture Handle
	View    Handle
	Sampler Handle
	Width   uint32
	Height  uint32
}

// Valid reports whether the binding can be sampled.
func (t TextureBinding) Valid() bool {
	return !t.View.IsNil() && !t.Sampler.IsNil()
}

// Handles returns the device objects backing the binding, for Release.
func (t TextureBinding) Handles() []Handle {
	return []Handle{t.Texture, t.View, t.Sampler}
}

// TransferContext moves CPU data into device memory. Returned handles are usable as soon as the
// call returns; the implementation owns any synchronisation with in-flight work.
type TransferContext interface {
	// UploadMesh creates a vertex and an index buffer and fills them.
	//
	// Parameters:
	//   - label: debug label for the buffers
	//   - vertices: packed vertex data
	//   - vertexCount: the number of vertices in vertices
	//   - indices: triangle list indices
	//
	// Returns:
	//   - MeshBuffers: the uploaded buffers
	//   - error: error if either buffer could not be created
	UploadMesh(label string, vertices []byte, vertexCount uint32, indices []uint32) (MeshBuffers, error)

	// UploadTexture creates an RGBA8 sRGB texture, a view and a sampler from staging data.
	//
	// Parameters:
	//   - label: debug label for the texture
	//   - pixels: the RGBA8 pixel data and its size
	//   - sampler: sampler configuration; zero fields take linear/repeat defaults
	//
	// Returns:
	//   - TextureBinding: the uploaded texture
	//   - error: error if the texture or sampler could not be created
	UploadTexture(label string, pixels common.TextureStagingData, sampler common.SamplerStagingData) (TextureBinding, error)

	// CreateMaterialBinding creates the per-material binding described by a layout from
	// CreateMaterialLayout: a uniform block holding params plus one sampled texture.
	//
	// Parameters:
	//   - label: debug label
	//   - layout: the material layout handle
	//   - params: the uniform block contents, see MaterialParams
	//   - texture: the base colour texture
	//
	// Returns:
	//   - Handle: the binding handle to pass to Recorder.SetMaterial
	//   - error: error if the layout is unknown or the binding could not be created
	CreateMaterialBinding(label string, layout Handle, params []byte, texture TextureBinding) (Handle, error)

	// Release frees device objects. Nil and unknown handles are ignored.
	Release(handles ...Handle)
}

// Allocator creates and frees the transient textures a render graph realises between first and
// last use.
type Allocator interface {
	// CreateTexture creates a 2D texture and returns a handle usable as a pass attachment, a
	// sampled input or a copy source/destination.
	CreateTexture(desc TextureDesc) (Handle, error)

	// ReleaseTexture frees a texture created by CreateTexture.
	ReleaseTexture(h Handle)
}

// Device is the full service surface: transfers, transient allocation and pipeline creation.
type Device interface {
	TransferContext
	Allocator

	// CreateMaterialLayout creates the binding layout shared by every material: a uniform block at
	// binding 0, a texture at binding 1 and its sampler at binding 2.
	//
	// Parameters:
	//   - label: debug label
	//
	// Returns:
	//   - Handle: the layout handle
	//   - error: error if the layout could not be created
	CreateMaterialLayout(label string) (Handle, error)

	// CreatePipeline compiles and caches a render pipeline under desc.Key. Creating a key that
	// already exists is a no-op.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - error: error if the shader or pipeline could not be created
	CreatePipeline(desc PipelineDesc) error
}

// Recorder records GPU commands for one frame. Draw state follows a fixed binding scheme:
// group 0 holds the camera, group 1 the material or sampled input, group 2 the per-draw
// transform.
type Recorder interface {
	// BeginPass starts a render pass over the given attachments.
	//
	// Parameters:
	//   - desc: attachments and load operations
	//
	// Returns:
	//   - error: error if a pass is already open or an attachment handle is unknown
	BeginPass(desc PassDesc) error

	// SetPipeline binds the pipeline created under key.
	//
	// Returns:
	//   - error: error if no pass is open or the key is unknown
	SetPipeline(key string) error

	// SetCamera sets the camera uniform used by subsequent draws.
	SetCamera(camera CameraUniform)

	// SetMaterial binds a material binding from TransferContext.CreateMaterialBinding at group 1.
	SetMaterial(binding Handle)

	// SetInput binds a texture at group 1 for sampling by a full-screen pipeline.
	SetInput(texture Handle)

	// PushTransform sets the world transform and tint applied to the next draw.
	PushTransform(world common.Mat4, tint [4]float32)

	// DrawIndexed draws a mesh with the current pipeline, bindings and transform.
	DrawIndexed(mesh MeshBuffers)

	// DrawLines draws a line list in world space with a flat colour.
	DrawLines(points []common.Vec3, color [4]float32)

	// DrawFullscreen draws one full-screen triangle; params reach the shader as the draw tint.
	DrawFullscreen(params [4]float32)

	// EndPass ends the open pass. It is a no-op when no pass is open.
	EndPass()

	// CopyTexture copies the full extent of src into dst. Both must have the same size and
	// format, and no pass may be open.
	CopyTexture(src, dst Handle) error
}
