package asset

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Built-in primitive names accepted by manifests.
const (
	PrimitiveCube   = "cube"
	PrimitivePlane  = "plane"
	PrimitiveSphere = "sphere"
)

// Primitive builds a named built-in mesh.
//
// Parameters:
//   - name: one of PrimitiveCube, PrimitivePlane or PrimitiveSphere
//
// Returns:
//   - *MeshData: the generated mesh
//   - error: error if the name is unknown
func Primitive(name string) (*MeshData, error) {
	switch name {
	case PrimitiveCube:
		return Cube(1), nil
	case PrimitivePlane:
		return Plane(1), nil
	case PrimitiveSphere:
		return Sphere(1, 24, 16), nil
	default:
		return nil, fmt.Errorf("unknown primitive %q", name)
	}
}

// Cube returns an axis-aligned cube centred on the origin with the given half extent.
// Each face has its own four vertices so normals stay flat.
func Cube(half float32) *MeshData {
	type face struct {
		n, u, v [3]float32
	}
	faces := []face{
		{n: [3]float32{1, 0, 0}, u: [3]float32{0, 0, -1}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{-1, 0, 0}, u: [3]float32{0, 0, 1}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{0, 1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, -1}},
		{n: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
		{n: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
	}

	m := &MeshData{Name: PrimitiveCube}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for _, c := range corners {
			var p [3]float32
			for i := 0; i < 3; i++ {
				p[i] = (f.n[i] + c[0]*f.u[i] + c[1]*f.v[i]) * half
			}
			m.Vertices = append(m.Vertices, Vertex{
				Position: p,
				Normal:   f.n,
				TexCoord: [2]float32{(c[0] + 1) / 2, 1 - (c[1]+1)/2},
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// Plane returns a square in the XZ plane facing +Y with the given half extent.
func Plane(half float32) *MeshData {
	return &MeshData{
		Name: PrimitivePlane,
		Vertices: []Vertex{
			{Position: [3]float32{-half, 0, half}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{0, 1}},
			{Position: [3]float32{half, 0, half}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{1, 1}},
			{Position: [3]float32{half, 0, -half}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{1, 0}},
			{Position: [3]float32{-half, 0, -half}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{0, 0}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// Sphere returns a UV sphere centred on the origin.
func Sphere(radius float32, segments, rings int) *MeshData {
	m := &MeshData{Name: PrimitiveSphere}
	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		phi := v * math32.Pi
		for s := 0; s <= segments; s++ {
			u := float32(s) / float32(segments)
			theta := u * 2 * math32.Pi
			n := [3]float32{
				math32.Sin(phi) * math32.Cos(theta),
				math32.Cos(phi),
				math32.Sin(phi) * math32.Sin(theta),
			}
			m.Vertices = append(m.Vertices, Vertex{
				Position: [3]float32{n[0] * radius, n[1] * radius, n[2] * radius},
				Normal:   n,
				TexCoord: [2]float32{u, v},
			})
		}
	}
	stride := uint32(segments + 1)
	for r := uint32(0); r < uint32(rings); r++ {
		for s := uint32(0); s < uint32(segments); s++ {
			a := r*stride + s
			b := a + stride
			m.Indices = append(m.Indices, a, a+1, b, a+1, b+1, b)
		}
	}
	return m
}
