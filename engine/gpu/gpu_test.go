package gpu

import (
	"testing"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestFormatNames(t *testing.T) {
	for f, name := range formatNames {
		assert.Equal(t, name, f.String())
		if f == FormatUndefined {
			continue
		}
		parsed, ok := ParseFormat(name)
		assert.True(t, ok, name)
		assert.Equal(t, f, parsed)
	}
	_, ok := ParseFormat("undefined")
	assert.False(t, ok)
	_, ok = ParseFormat("r11g11b10")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Format(99).String())
}

func TestFormatIsDepth(t *testing.T) {
	assert.True(t, FormatDepth24Plus.IsDepth())
	assert.True(t, FormatDepth32Float.IsDepth())
	assert.False(t, FormatBGRA8UnormSrgb.IsDepth())
	assert.False(t, FormatUndefined.IsDepth())
}

func TestWGPUFormatMapping(t *testing.T) {
	for f := range wgpuFormats {
		assert.Equal(t, f, fromWGPUFormat(toWGPUFormat(f)))
	}
	assert.Equal(t, wgpu.TextureFormatUndefined, toWGPUFormat(FormatUndefined))
}

func TestDepthTexturesAreNeverSampled(t *testing.T) {
	usage := toWGPUUsage(UsageRenderTarget|UsageSampled, FormatDepth24Plus)
	assert.Equal(t, wgpu.TextureUsageRenderAttachment, usage)

	usage = toWGPUUsage(UsageRenderTarget|UsageSampled|UsageCopySrc, FormatRGBA16Float)
	assert.Equal(t, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopySrc, usage)
}

func TestUniformBlocksFitSlots(t *testing.T) {
	assert.LessOrEqual(t, int(unsafe.Sizeof(CameraUniform{})), uniformSlotSize)
	assert.LessOrEqual(t, int(unsafe.Sizeof(DrawUniform{})), uniformSlotSize)
	assert.Equal(t, uint64(32), materialParamsSize)
}

func TestMeshBuffersValid(t *testing.T) {
	assert.False(t, MeshBuffers{}.Valid())
	assert.False(t, MeshBuffers{VertexBuffer: 1, IndexBuffer: 2}.Valid())
	assert.True(t, MeshBuffers{VertexBuffer: 1, IndexBuffer: 2, IndexCount: 3}.Valid())
	assert.Equal(t, []Handle{1, 2}, MeshBuffers{VertexBuffer: 1, IndexBuffer: 2}.Handles())
}

func TestTextureBindingValid(t *testing.T) {
	assert.False(t, TextureBinding{Texture: 1}.Valid())
	assert.True(t, TextureBinding{Texture: 1, View: 2, Sampler: 3}.Valid())
}

func TestParsePresentMode(t *testing.T) {
	assert.Equal(t, PresentModeVSync, ParsePresentMode("vsync"))
	assert.Equal(t, PresentModeVSync, ParsePresentMode(""))
	assert.Equal(t, PresentModeUncapped, ParsePresentMode("immediate"))
	assert.Equal(t, PresentModeMailbox, ParsePresentMode("mailbox"))
}

func TestVertexBuffers(t *testing.T) {
	assert.Len(t, vertexBuffers(VertexLayoutMesh), 1)
	assert.Equal(t, uint64(32), vertexBuffers(VertexLayoutMesh)[0].ArrayStride)
	assert.Equal(t, uint64(lineVertexSize), vertexBuffers(VertexLayoutLines)[0].ArrayStride)
	assert.Nil(t, vertexBuffers(VertexLayoutNone))
	assert.Nil(t, blendState(BlendOpaque))
	assert.NotNil(t, blendState(BlendAlpha))
}
