package gpu

import (
	"github.com/Carmen-Shannon/oxy-render/common"
)

// Format is a texture format understood by both the core and the device.
type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatBGRA8Unorm
	FormatBGRA8UnormSrgb
	FormatRGBA16Float
	FormatDepth24Plus
	FormatDepth32Float
)

var formatNames = map[Format]string{
	FormatUndefined:      "undefined",
	FormatRGBA8Unorm:     "rgba8unorm",
	FormatRGBA8UnormSrgb: "rgba8unorm-srgb",
	FormatBGRA8Unorm:     "bgra8unorm",
	FormatBGRA8UnormSrgb: "bgra8unorm-srgb",
	FormatRGBA16Float:    "rgba16float",
	FormatDepth24Plus:    "depth24plus",
	FormatDepth32Float:   "depth32float",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "unknown"
}

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatDepth24Plus || f == FormatDepth32Float
}

// ParseFormat returns the format with the given name, as printed by Format.String.
func ParseFormat(name string) (Format, bool) {
	for f, n := range formatNames {
		if n == name && f != FormatUndefined {
			return f, true
		}
	}
	return FormatUndefined, false
}

// TextureUsage is a bit set of the ways a transient texture will be used.
type TextureUsage uint32

const (
	UsageRenderTarget TextureUsage = 1 << iota
	UsageSampled
	UsageCopySrc
	UsageCopyDst
)

// TextureDesc describes a texture for Allocator.CreateTexture.
type TextureDesc struct {
	Label  string
	Extent common.Extent2D
	Format Format
	Usage  TextureUsage
}

// Topology is the primitive topology of a pipeline.
type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyLines
)

// VertexLayout selects the vertex buffer layout a pipeline consumes.
type VertexLayout int

const (
	// VertexLayoutMesh is position, normal and texcoord interleaved (asset.Vertex).
	VertexLayoutMesh VertexLayout = iota
	// VertexLayoutLines is a bare position per vertex.
	VertexLayoutLines
	// VertexLayoutNone generates vertices in the shader.
	VertexLayoutNone
)

// BlendMode is the colour blend applied by a pipeline.
type BlendMode int

const (
	BlendOpaque BlendMode = iota
	BlendAlpha
	BlendAdditive
)

// GroupBinding describes what a pipeline expects at bind group 1.
type GroupBinding int

const (
	GroupNone GroupBinding = iota
	GroupMaterial
	GroupInput
)

// PipelineDesc describes a render pipeline. Shaders use the entry points vs_main and fs_main.
type PipelineDesc struct {
	Key            string
	Shader         string
	ColorFormat    Format
	DepthFormat    Format // FormatUndefined for passes without a depth attachment
	Topology       Topology
	Vertex         VertexLayout
	Blend          BlendMode
	DepthTest      bool
	DepthWrite     bool
	CullBack       bool
	CullFront      bool
	Group1         GroupBinding
	MaterialLayout Handle // required when Group1 is GroupMaterial
}

// PassDesc describes the attachments of a render pass.
type PassDesc struct {
	Label string
	Color Handle
	Depth Handle
	// ClearColor clears the colour attachment when set; otherwise its contents are loaded.
	ClearColor *[4]float64
	// ClearDepth clears the depth attachment to 1; otherwise its contents are loaded.
	ClearDepth bool
}

// CameraUniform is the group 0 uniform block.
type CameraUniform struct {
	ViewProj    common.Mat4
	InvViewProj common.Mat4
	Position    [4]float32
	Viewport    [4]float32
}

// DrawUniform is the group 2 uniform block.
type DrawUniform struct {
	World common.Mat4
	Tint  [4]float32
}

// MaterialParams is the material uniform block laid out for WGSL uniform rules.
type MaterialParams struct {
	BaseColor [4]float32
	Metallic  float32
	Roughness float32
	_         [2]float32
}
