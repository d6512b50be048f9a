package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
)

var wgpuFormats = map[Format]wgpu.TextureFormat{
	FormatRGBA8Unorm:     wgpu.TextureFormatRGBA8Unorm,
	FormatRGBA8UnormSrgb: wgpu.TextureFormatRGBA8UnormSrgb,
	FormatBGRA8Unorm:     wgpu.TextureFormatBGRA8Unorm,
	FormatBGRA8UnormSrgb: wgpu.TextureFormatBGRA8UnormSrgb,
	FormatRGBA16Float:    wgpu.TextureFormatRGBA16Float,
	FormatDepth24Plus:    wgpu.TextureFormatDepth24Plus,
	FormatDepth32Float:   wgpu.TextureFormatDepth32Float,
}

func toWGPUFormat(f Format) wgpu.TextureFormat {
	if tf, ok := wgpuFormats[f]; ok {
		return tf
	}
	return wgpu.TextureFormatUndefined
}

func fromWGPUFormat(tf wgpu.TextureFormat) Format {
	for f, w := range wgpuFormats {
		if w == tf {
			return f
		}
	}
	return FormatUndefined
}

func toWGPUUsage(u TextureUsage, format Format) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&UsageRenderTarget != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&UsageSampled != 0 && !format.IsDepth() {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&UsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&UsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

var (
	alphaBlend = &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
	}
	additiveBlend = &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOne,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorZero,
			DstFactor: wgpu.BlendFactorOne,
			Operation: wgpu.BlendOperationAdd,
		},
	}
)

func blendState(m BlendMode) *wgpu.BlendState {
	switch m {
	case BlendAlpha:
		return alphaBlend
	case BlendAdditive:
		return additiveBlend
	default:
		return nil
	}
}

// meshVertexLayout matches asset.Vertex: position, normal, texcoord.
var meshVertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: 32,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
	},
}

const lineVertexSize = 12

var lineVertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: lineVertexSize,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
	},
}

func vertexBuffers(l VertexLayout) []wgpu.VertexBufferLayout {
	switch l {
	case VertexLayoutMesh:
		return []wgpu.VertexBufferLayout{meshVertexLayout}
	case VertexLayoutLines:
		return []wgpu.VertexBufferLayout{lineVertexLayout}
	default:
		return nil
	}
}
