// Package asset holds the CPU-side asset descriptors the renderer consumes and the loaders that
// produce them. Assets are addressed by a stable ID; the GPU cache keys on that identity.
package asset

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// ErrNotFound is returned by a Loader when no asset exists for the requested ID.
// Any other error means the asset exists but could not be decoded.
var ErrNotFound = errors.New("asset not found")

// ID identifies a CPU asset. The empty ID is the null identity.
type ID string

// IsNil reports whether id is the null identity.
func (id ID) IsNil() bool { return id == "" }

// Vertex is the interleaved static vertex layout uploaded to vertex buffers.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// MeshData is an indexed triangle mesh in object space.
type MeshData struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// Bounds returns the object-space box of all vertex positions. A mesh without vertices has
// invalid bounds.
func (m *MeshData) Bounds() common.AABB {
	b := common.EmptyAABB()
	for i := range m.Vertices {
		b.Expand(common.Vec3(m.Vertices[i].Position))
	}
	return b
}

// Validate reports the first structural problem with the mesh, if any.
func (m *MeshData) Validate() error {
	if len(m.Vertices) == 0 {
		return errors.New("mesh has no vertices")
	}
	if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
		return errors.New("mesh index count is not a positive multiple of 3")
	}
	n := uint32(len(m.Vertices))
	for _, i := range m.Indices {
		if i >= n {
			return errors.New("mesh index out of range")
		}
	}
	return nil
}

// MaterialData describes a metallic-roughness material.
type MaterialData struct {
	Name      string
	BaseColor [4]float32
	Metallic  float32
	Roughness float32
	// BaseColorTexture references a texture asset; the null ID means untextured.
	BaseColorTexture ID
}

// DefaultMaterialData returns a white, fully rough, non-metallic material.
func DefaultMaterialData() MaterialData {
	return MaterialData{
		Name:      "default",
		BaseColor: [4]float32{1, 1, 1, 1},
		Roughness: 1,
	}
}

// TextureData is a decoded RGBA8 image plus its sampler configuration.
type TextureData struct {
	Name    string
	Pixels  common.TextureStagingData
	Sampler common.SamplerStagingData
}

// Loader resolves asset IDs into CPU descriptors. Implementations return ErrNotFound (possibly
// wrapped) for unknown IDs.
type Loader interface {
	// LoadMesh resolves a mesh asset.
	//
	// Parameters:
	//   - id: the mesh identity
	//
	// Returns:
	//   - *MeshData: the mesh, owned by the loader and not to be mutated
	//   - error: ErrNotFound or a decode error
	LoadMesh(id ID) (*MeshData, error)

	// LoadMaterial resolves a material asset.
	//
	// Parameters:
	//   - id: the material identity
	//
	// Returns:
	//   - *MaterialData: the material, owned by the loader and not to be mutated
	//   - error: ErrNotFound or a decode error
	LoadMaterial(id ID) (*MaterialData, error)

	// LoadTexture resolves a texture asset.
	//
	// Parameters:
	//   - id: the texture identity
	//
	// Returns:
	//   - *TextureData: the texture, owned by the loader and not to be mutated
	//   - error: ErrNotFound or a decode error
	LoadTexture(id ID) (*TextureData, error)
}
