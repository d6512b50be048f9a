package asset

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary()
	_, err := lib.LoadMesh("cube")
	assert.ErrorIs(t, err, ErrNotFound)

	lib.PutMesh("cube", Cube(1))
	m, err := lib.LoadMesh("cube")
	require.NoError(t, err)
	assert.Len(t, m.Indices, 36)
	assert.True(t, lib.Has("cube"))

	lib.Remove("cube")
	assert.False(t, lib.Has("cube"))
	_, err = lib.LoadMaterial("cube")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = lib.LoadTexture("cube")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrimitives(t *testing.T) {
	for _, name := range []string{PrimitiveCube, PrimitivePlane, PrimitiveSphere} {
		m, err := Primitive(name)
		require.NoError(t, err, name)
		assert.NoError(t, m.Validate(), name)
	}
	_, err := Primitive("teapot")
	assert.Error(t, err)

	b := Cube(2).Bounds()
	assert.Equal(t, common.Vec3{-2, -2, -2}, b.Min)
	assert.Equal(t, common.Vec3{2, 2, 2}, b.Max)

	assert.False(t, (&MeshData{}).Bounds().Valid())
}

func TestMeshValidate(t *testing.T) {
	assert.Error(t, (&MeshData{}).Validate())
	bad := &MeshData{Vertices: make([]Vertex, 3), Indices: []uint32{0, 1, 3}}
	assert.Error(t, bad.Validate())
	short := &MeshData{Vertices: make([]Vertex, 3), Indices: []uint32{0, 1}}
	assert.Error(t, short.Validate())
}

func TestDecodeImage(t *testing.T) {
	px, err := DecodeImage(pngBytes(t, 2, 3, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), px.Width)
	assert.Equal(t, uint32(3), px.Height)
	assert.Len(t, px.Pixels, 2*3*4)
	assert.Equal(t, []byte{255, 0, 0, 255}, px.Pixels[:4])

	_, err = DecodeImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, errNotAnImage)
}

func TestParseManifestDefaultsAndValidation(t *testing.T) {
	m, err := ParseManifest([]byte(`
meshes:
  cube: {primitive: cube}
textures:
  checker: {path: checker.png}
materials:
  red:
    base_color: [1, 0, 0, 1]
    texture: checker
`), "/assets")
	require.NoError(t, err)
	assert.Equal(t, "/assets", m.Root)
	assert.Equal(t, "linear", m.Textures["checker"].Filter)
	assert.Equal(t, "repeat", m.Textures["checker"].Wrap)
	assert.Equal(t, []ID{"checker"}, m.SourcesOf("/assets/checker.png"))
	assert.Equal(t, []string{"/assets/checker.png"}, m.Files())

	_, err = ParseManifest([]byte(`meshes: {a: {}}`), "/")
	assert.Error(t, err)
	_, err = ParseManifest([]byte(`materials: {a: {texture: missing}}`), "/")
	assert.Error(t, err)
	_, err = ParseManifest([]byte(`textures: {a: {filter: nearest}}`), "/")
	assert.Error(t, err)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

// triangleGLTF builds a one-triangle glTF document with an embedded buffer and no normals.
func triangleGLTF() []byte {
	var buf bytes.Buffer
	for _, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	for _, i := range []uint16{0, 1, 2, 0} { // last index is padding
		_ = binary.Write(&buf, binary.LittleEndian, i)
	}
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return []byte(fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "buffers": [{"uri": %q, "byteLength": %d}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 6}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ],
  "materials": [{"name": "green", "pbrMetallicRoughness": {"baseColorFactor": [0, 1, 0, 1], "roughnessFactor": 0.25}}],
  "meshes": [{"name": "tri", "primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}]}]
}`, uri, buf.Len()))
}

func TestGLTFMeshAndMaterial(t *testing.T) {
	f, err := parseGLTF(triangleGLTF(), t.TempDir())
	require.NoError(t, err)

	m, err := f.mesh(0)
	require.NoError(t, err)
	assert.Equal(t, "tri", m.Name)
	assert.Equal(t, []uint32{0, 1, 2}, m.Indices)
	require.Len(t, m.Vertices, 3)
	assert.Equal(t, [3]float32{1, 0, 0}, m.Vertices[1].Position)
	assert.InDelta(t, 1, m.Vertices[0].Normal[2], 1e-6, "generated normal faces +Z")

	mat, tex, err := f.material(0)
	require.NoError(t, err)
	assert.Nil(t, tex)
	assert.Equal(t, [4]float32{0, 1, 0, 1}, mat.BaseColor)
	assert.Equal(t, float32(0.25), mat.Roughness)
	assert.Equal(t, float32(1), mat.Metallic)

	_, err = f.mesh(3)
	assert.Error(t, err)
	_, err = parseGLTF([]byte(`{"asset": {"version": "1.0"}}`), "")
	assert.ErrorIs(t, err, errInvalidGLTFVersion)
}

func TestGLTFRejectsMalformedAccessors(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
	}{
		{"negative count", `"count": 3, "type": "VEC3"`, `"count": -1, "type": "VEC3"`},
		{"huge count", `"count": 3, "type": "VEC3"`, `"count": 4611686018427387904, "type": "VEC3"`},
		{"negative bufferView", `{"bufferView": 0, "componentType": 5126`, `{"bufferView": -1, "componentType": 5126`},
		{"negative accessor offset", `{"bufferView": 0, "componentType": 5126`, `{"bufferView": 0, "byteOffset": -8, "componentType": 5126`},
		{"accessor past view", `{"bufferView": 0, "componentType": 5126`, `{"bufferView": 0, "byteOffset": 28, "componentType": 5126`},
		{"negative view offset", `"byteOffset": 0, "byteLength": 36`, `"byteOffset": -4, "byteLength": 36`},
		{"view past buffer", `"byteOffset": 0, "byteLength": 36`, `"byteOffset": 0, "byteLength": 4000`},
		{"index past vertices", `{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}`,
			`{"bufferView": 0, "byteOffset": 12, "componentType": 5125, "count": 3, "type": "SCALAR"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := string(triangleGLTF())
			require.Contains(t, doc, tt.old)
			doc = strings.Replace(doc, tt.old, tt.new, 1)

			f, err := parseGLTF([]byte(doc), t.TempDir())
			require.NoError(t, err)
			assert.NotPanics(t, func() {
				m, err := f.mesh(0)
				assert.Error(t, err)
				assert.Nil(t, m)
			})
		})
	}
}

func TestGLBRejectsOversizedChunk(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: 20})
	_ = binary.Write(&buf, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: 1 << 30, ChunkType: gltfGLBChunkJSON})

	var f gltfFile
	assert.NotPanics(t, func() {
		_, err := f.splitGLB(buf.Bytes())
		assert.Error(t, err)
	})
}

func TestSamplerFromGLTF(t *testing.T) {
	nearest, clamp := gltfFilterNearest, gltfWrapClampToEdge
	s := samplerFromGLTF(&gltfSampler{MagFilter: &nearest, MinFilter: &nearest, WrapS: &clamp})
	assert.Equal(t, wgpu.FilterModeNearest, s.MagFilter)
	assert.Equal(t, wgpu.FilterModeNearest, s.MinFilter)
	assert.Equal(t, wgpu.MipmapFilterModeNearest, s.MipmapFilter)
	assert.Equal(t, wgpu.AddressModeClampToEdge, s.AddressModeU)
	assert.Equal(t, wgpu.AddressModeRepeat, s.AddressModeV)
}

func newTestDiskLoader(t *testing.T) (DiskLoader, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "checker.png", pngBytes(t, 4, 4, color.White))
	writeFile(t, dir, "broken.png", []byte("not a png"))
	writeFile(t, dir, "tri.gltf", triangleGLTF())
	manifest := writeFile(t, dir, ManifestFilename, []byte(`
meshes:
  cube: {primitive: cube}
  tri: {gltf: tri.gltf}
textures:
  checker: {path: checker.png, filter: nearest}
  broken: {path: broken.png}
  gone: {path: gone.png}
materials:
  red: {base_color: [1, 0, 0, 1], texture: checker}
  green: {gltf: tri.gltf}
`))
	l, err := NewDiskLoader(manifest, WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, dir
}

func TestDiskLoaderResolves(t *testing.T) {
	l, _ := newTestDiskLoader(t)

	cube, err := l.LoadMesh("cube")
	require.NoError(t, err)
	again, err := l.LoadMesh("cube")
	require.NoError(t, err)
	assert.Same(t, cube, again, "decoded assets are kept")

	tri, err := l.LoadMesh("tri")
	require.NoError(t, err)
	assert.Len(t, tri.Indices, 3)

	tex, err := l.LoadTexture("checker")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), tex.Pixels.Width)
	assert.Equal(t, wgpu.FilterModeNearest, tex.Sampler.MagFilter)

	red, err := l.LoadMaterial("red")
	require.NoError(t, err)
	assert.Equal(t, ID("checker"), red.BaseColorTexture)
	assert.Equal(t, float32(1), red.Roughness)

	green, err := l.LoadMaterial("green")
	require.NoError(t, err)
	assert.Equal(t, [4]float32{0, 1, 0, 1}, green.BaseColor)
}

func TestDiskLoaderFailures(t *testing.T) {
	l, _ := newTestDiskLoader(t)

	_, err := l.LoadMesh("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.LoadTexture("gone")
	assert.ErrorIs(t, err, ErrNotFound, "a missing file is a missing asset")

	_, err = l.LoadTexture("broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound, "an undecodable file is malformed")
}

func TestDiskLoaderPreload(t *testing.T) {
	l, _ := newTestDiskLoader(t)

	var calls atomic.Int32
	var lastTotal atomic.Int32
	err := l.Preload(func(done, total int) {
		calls.Add(1)
		lastTotal.Store(int32(total))
	})
	// broken.png and gone.png fail; everything else is cached
	require.Error(t, err)
	assert.Equal(t, int32(7), calls.Load())
	assert.Equal(t, int32(7), lastTotal.Load())
}

func TestDiskLoaderWatchQueuesChangedSources(t *testing.T) {
	l, dir := newTestDiskLoader(t)
	first, err := l.LoadTexture("checker")
	require.NoError(t, err)
	require.NoError(t, l.Watch())

	writeFile(t, dir, "checker.png", pngBytes(t, 8, 8, color.Black))

	var changed []ID
	require.Eventually(t, func() bool {
		changed = append(changed, l.DrainChanged()...)
		return len(changed) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, changed, ID("checker"))

	second, err := l.LoadTexture("checker")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, uint32(8), second.Pixels.Width)
}
