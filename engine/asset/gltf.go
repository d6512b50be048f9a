package asset

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidDataURI     = errors.New("invalid data URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
)

// gltfFile is a parsed glTF or GLB document with all buffers resident in memory.
type gltfFile struct {
	baseDir string
	doc     gltfDocument
	bin     []byte
}

// openGLTF reads and parses a .gltf or .glb file. External buffers resolve relative to the file.
func openGLTF(path string) (*gltfFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return parseGLTF(data, filepath.Dir(path))
}

// parseGLTF parses glTF JSON or GLB bytes, detecting GLB by its magic number.
func parseGLTF(data []byte, baseDir string) (*gltfFile, error) {
	f := &gltfFile{baseDir: baseDir}
	jsonData := data
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic {
		var err error
		if jsonData, err = f.splitGLB(data); err != nil {
			return nil, err
		}
	}

	if err := json.Unmarshal(jsonData, &f.doc); err != nil {
		return nil, fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	if !strings.HasPrefix(f.doc.Asset.Version, "2.") {
		return nil, errInvalidGLTFVersion
	}
	if err := f.loadBuffers(); err != nil {
		return nil, fmt.Errorf("failed to load buffers: %w", err)
	}
	return f, nil
}

// splitGLB walks the GLB chunks, keeps the BIN chunk and returns the JSON chunk.
func (f *gltfFile) splitGLB(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, errors.New("GLB file too small")
	}
	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != gltfGLBMagic {
		return nil, errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return nil, errInvalidGLBVersion
	}

	var jsonData []byte
	for {
		var ch gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(ch.ChunkLength) > int64(r.Len()) {
			return nil, fmt.Errorf("chunk length %d exceeds file size", ch.ChunkLength)
		}
		chunk := make([]byte, ch.ChunkLength)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("failed to read chunk data: %w", err)
		}
		switch ch.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = chunk
		case gltfGLBChunkBIN:
			f.bin = chunk
		}
	}
	if jsonData == nil {
		return nil, errMissingJSONChunk
	}
	return jsonData, nil
}

func (f *gltfFile) loadBuffers() error {
	for i := range f.doc.Buffers {
		buf := &f.doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && f.bin != nil:
			buf.data = f.bin
		case buf.URI == "":
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		case strings.HasPrefix(buf.URI, "data:"):
			data, _, err := decodeDataURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.data = data
		default:
			data, err := os.ReadFile(filepath.Join(f.baseDir, buf.URI))
			if err != nil {
				return fmt.Errorf("buffer %d: failed to load %q: %w", i, buf.URI, err)
			}
			buf.data = data
		}
		if len(buf.data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}
	return nil
}

// decodeDataURI decodes a base64 data URI of the form data:[<mediatype>][;base64],<data>.
func decodeDataURI(uri string) ([]byte, string, error) {
	comma := strings.Index(uri, ",")
	if !strings.HasPrefix(uri, "data:") || comma < 0 {
		return nil, "", errInvalidDataURI
	}
	header := uri[5:comma]
	if !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("unsupported data URI encoding: %s", header)
	}
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}

// bufferView returns the bytes a buffer view covers, rejecting negative or out-of-range fields.
func (f *gltfFile) bufferView(index int) (*gltfBufferView, []byte, error) {
	if index < 0 || index >= len(f.doc.BufferViews) {
		return nil, nil, fmt.Errorf("bufferView index %d out of range", index)
	}
	bv := &f.doc.BufferViews[index]
	if bv.Buffer < 0 || bv.Buffer >= len(f.doc.Buffers) {
		return nil, nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}
	buf := f.doc.Buffers[bv.Buffer].data
	if bv.ByteOffset < 0 || bv.ByteLength < 0 || bv.ByteOffset > len(buf) || bv.ByteLength > len(buf)-bv.ByteOffset {
		return nil, nil, fmt.Errorf("bufferView %d exceeds buffer bounds", index)
	}
	return bv, buf[bv.ByteOffset : bv.ByteOffset+bv.ByteLength], nil
}

// accessorBytes gathers an accessor's elements into a tightly packed byte slice, honouring
// the buffer view stride.
func (f *gltfFile) accessorBytes(index int, wantType string) (*gltfAccessor, []byte, error) {
	if index < 0 || index >= len(f.doc.Accessors) {
		return nil, nil, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &f.doc.Accessors[index]
	if acc.Type != wantType {
		return nil, nil, fmt.Errorf("accessor %d is %s, want %s", index, acc.Type, wantType)
	}
	if acc.Sparse != nil {
		return nil, nil, errors.New("sparse accessors are not supported")
	}
	if acc.BufferView == nil {
		return nil, nil, fmt.Errorf("accessor %d has no bufferView", index)
	}
	if acc.Count < 0 || acc.ByteOffset < 0 {
		return nil, nil, fmt.Errorf("accessor %d has negative count or offset", index)
	}
	bv, view, err := f.bufferView(*acc.BufferView)
	if err != nil {
		return nil, nil, fmt.Errorf("accessor %d: %w", index, err)
	}

	elem := componentSize(acc.ComponentType) * componentCount(acc.Type)
	if elem == 0 {
		return nil, nil, fmt.Errorf("accessor %d has unsupported component type %d", index, acc.ComponentType)
	}
	stride := elem
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	if acc.Count > 0 {
		// Division keeps a huge count from overflowing the bound.
		if acc.ByteOffset > len(view)-elem || acc.Count-1 > (len(view)-acc.ByteOffset-elem)/stride {
			return nil, nil, fmt.Errorf("accessor %d exceeds buffer bounds", index)
		}
	}

	out := make([]byte, acc.Count*elem)
	for i := 0; i < acc.Count; i++ {
		src := acc.ByteOffset + i*stride
		copy(out[i*elem:(i+1)*elem], view[src:src+elem])
	}
	return acc, out, nil
}

// readFloatAccessor reads a FLOAT accessor of the given type into a slice of fixed-size arrays.
func readFloatAccessor[T [2]float32 | [3]float32](f *gltfFile, index int, wantType string) ([]T, error) {
	acc, data, err := f.accessorBytes(index, wantType)
	if err != nil {
		return nil, err
	}
	if acc.ComponentType != gltfComponentTypeFloat {
		return nil, fmt.Errorf("accessor %d is not FLOAT", index)
	}
	out := make([]T, acc.Count)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *gltfFile) readIndices(index int) ([]uint32, error) {
	acc, data, err := f.accessorBytes(index, gltfAccessorTypeScalar)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i, b := range data {
			out[i] = uint32(b)
		}
	case gltfComponentTypeUnsignedShort:
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}
	return out, nil
}

// mesh flattens every triangle primitive of a glTF mesh into one MeshData.
func (f *gltfFile) mesh(index int) (*MeshData, error) {
	if index < 0 || index >= len(f.doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", index)
	}
	gm := &f.doc.Meshes[index]
	out := &MeshData{Name: gm.Name}
	if out.Name == "" {
		out.Name = fmt.Sprintf("mesh_%d", index)
	}

	for p := range gm.Primitives {
		prim := &gm.Primitives[p]
		if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
			return nil, fmt.Errorf("primitive %d: unsupported mode %d (only triangles supported)", p, *prim.Mode)
		}
		posIndex, ok := prim.Attributes["POSITION"]
		if !ok {
			return nil, fmt.Errorf("primitive %d has no POSITION attribute", p)
		}
		positions, err := readFloatAccessor[[3]float32](f, posIndex, gltfAccessorTypeVec3)
		if err != nil {
			return nil, fmt.Errorf("primitive %d: positions: %w", p, err)
		}

		base := uint32(len(out.Vertices))
		verts := make([]Vertex, len(positions))
		for i, pos := range positions {
			verts[i].Position = pos
		}

		hasNormals := false
		if ni, ok := prim.Attributes["NORMAL"]; ok {
			normals, err := readFloatAccessor[[3]float32](f, ni, gltfAccessorTypeVec3)
			if err != nil {
				return nil, fmt.Errorf("primitive %d: normals: %w", p, err)
			}
			for i := range normals {
				if i < len(verts) {
					verts[i].Normal = normals[i]
				}
			}
			hasNormals = true
		}
		if ti, ok := prim.Attributes["TEXCOORD_0"]; ok {
			uvs, err := readFloatAccessor[[2]float32](f, ti, gltfAccessorTypeVec2)
			if err != nil {
				return nil, fmt.Errorf("primitive %d: texcoords: %w", p, err)
			}
			for i := range uvs {
				if i < len(verts) {
					verts[i].TexCoord = uvs[i]
				}
			}
		}

		var indices []uint32
		if prim.Indices != nil {
			if indices, err = f.readIndices(*prim.Indices); err != nil {
				return nil, fmt.Errorf("primitive %d: indices: %w", p, err)
			}
		} else {
			indices = make([]uint32, len(verts))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		for _, i := range indices {
			if int(i) >= len(verts) {
				return nil, fmt.Errorf("primitive %d: index %d out of range for %d vertices", p, i, len(verts))
			}
		}
		if !hasNormals {
			generateNormals(verts, indices)
		}

		out.Vertices = append(out.Vertices, verts...)
		for _, i := range indices {
			out.Indices = append(out.Indices, base+i)
		}
	}
	return out, nil
}

// material reads a glTF material. The base colour texture, when present, is returned separately
// so the caller can register it under its own identity.
func (f *gltfFile) material(index int) (*MaterialData, *TextureData, error) {
	if index < 0 || index >= len(f.doc.Materials) {
		return nil, nil, fmt.Errorf("material index %d out of range", index)
	}
	gm := &f.doc.Materials[index]
	out := DefaultMaterialData()
	out.Name = gm.Name
	// glTF defaults metallic to 1
	out.Metallic = 1

	pbr := gm.PbrMetallicRoughness
	if pbr == nil {
		return &out, nil, nil
	}
	if pbr.BaseColorFactor != nil {
		out.BaseColor = *pbr.BaseColorFactor
	}
	if pbr.MetallicFactor != nil {
		out.Metallic = *pbr.MetallicFactor
	}
	if pbr.RoughnessFactor != nil {
		out.Roughness = *pbr.RoughnessFactor
	}
	if pbr.BaseColorTexture == nil {
		return &out, nil, nil
	}
	tex, err := f.texture(pbr.BaseColorTexture.Index)
	if err != nil {
		return nil, nil, fmt.Errorf("material %q: base color texture: %w", gm.Name, err)
	}
	return &out, tex, nil
}

// texture resolves a glTF texture from a buffer view, a data URI or a sibling file, and decodes it.
func (f *gltfFile) texture(index int) (*TextureData, error) {
	if index < 0 || index >= len(f.doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", index)
	}
	gt := &f.doc.Textures[index]
	if gt.Source == nil || *gt.Source < 0 || *gt.Source >= len(f.doc.Images) {
		return nil, fmt.Errorf("texture %d has no valid image source", index)
	}
	img := &f.doc.Images[*gt.Source]

	var raw []byte
	switch {
	case img.BufferView != nil:
		_, view, err := f.bufferView(*img.BufferView)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", *gt.Source, err)
		}
		raw = view
	case strings.HasPrefix(img.URI, "data:"):
		data, _, err := decodeDataURI(img.URI)
		if err != nil {
			return nil, err
		}
		raw = data
	case img.URI != "":
		data, err := os.ReadFile(filepath.Join(f.baseDir, img.URI))
		if err != nil {
			return nil, err
		}
		raw = data
	default:
		return nil, fmt.Errorf("image %d has neither bufferView nor URI", *gt.Source)
	}

	pixels, err := DecodeImage(raw)
	if err != nil {
		return nil, err
	}
	out := &TextureData{Name: img.Name, Pixels: pixels, Sampler: DefaultSampler()}
	if gt.Sampler != nil && *gt.Sampler >= 0 && *gt.Sampler < len(f.doc.Samplers) {
		out.Sampler = samplerFromGLTF(&f.doc.Samplers[*gt.Sampler])
	}
	return out, nil
}

// DefaultSampler returns linear filtering with repeat addressing.
func DefaultSampler() common.SamplerStagingData {
	return common.SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

func samplerFromGLTF(s *gltfSampler) common.SamplerStagingData {
	out := DefaultSampler()
	if s.MagFilter != nil && *s.MagFilter == gltfFilterNearest {
		out.MagFilter = wgpu.FilterModeNearest
	}
	if s.MinFilter != nil {
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterNearestMipmapNearest, gltfFilterNearestMipmapLinear:
			out.MinFilter = wgpu.FilterModeNearest
		}
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterLinear, gltfFilterNearestMipmapNearest, gltfFilterLinearMipmapNearest:
			out.MipmapFilter = wgpu.MipmapFilterModeNearest
		}
	}
	if s.WrapS != nil {
		out.AddressModeU = wrapToAddressMode(*s.WrapS)
	}
	if s.WrapT != nil {
		out.AddressModeV = wrapToAddressMode(*s.WrapT)
	}
	return out
}

func wrapToAddressMode(wrap int) wgpu.AddressMode {
	switch wrap {
	case gltfWrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltfWrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

func componentSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

func componentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	default:
		return 0
	}
}

// generateNormals accumulates area-weighted face normals onto each vertex and normalizes them.
// Vertices touched by no triangle point up.
func generateNormals(verts []Vertex, indices []uint32) {
	n := uint32(len(verts))
	accum := make([]common.Vec3, n)
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if i0 >= n || i1 >= n || i2 >= n {
			continue
		}
		p0 := common.Vec3(verts[i0].Position)
		e1 := common.Vec3(verts[i1].Position).Sub(p0)
		e2 := common.Vec3(verts[i2].Position).Sub(p0)
		face := e1.Cross(e2)
		accum[i0] = accum[i0].Add(face)
		accum[i1] = accum[i1].Add(face)
		accum[i2] = accum[i2].Add(face)
	}
	for i := range verts {
		if accum[i].Length() < 1e-6 {
			verts[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		verts[i].Normal = accum[i].Normalize()
	}
}
