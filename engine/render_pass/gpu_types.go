package render_pass

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
)

//go:embed assets/common.wgsl
var commonShader string

//go:embed assets/mesh.wgsl
var meshShader string

//go:embed assets/outline.wgsl
var outlineShader string

//go:embed assets/lines.wgsl
var linesShader string

//go:embed assets/volume.wgsl
var volumeShader string

//go:embed assets/fullscreen.wgsl
var fullscreenShader string

//go:embed assets/blit.wgsl
var blitShader string

//go:embed assets/blur.wgsl
var blurShader string

//go:embed assets/distortion.wgsl
var distortionShader string

// shaderSource prefixes the shared camera and draw bindings to the given WGSL sections.
func shaderSource(sections ...string) string {
	src := commonShader
	for _, s := range sections {
		src += "\n" + s
	}
	return src
}

// pipelineKey names a pipeline by pass and target formats so passes initialised for different
// targets never share a cached pipeline.
func pipelineKey(name string, color, depth gpu.Format) string {
	return fmt.Sprintf("%s/%s/%s", name, color, depth)
}

var (
	whiteTint   = [4]float32{1, 1, 1, 1}
	outlineTint = [4]float32{1.0, 0.62, 0.1, 1.0}
	aabbTint    = [4]float32{0.2, 0.9, 0.3, 1.0}
	fluidTint   = [4]float32{0.2, 0.45, 0.9, 0.35}
	voxelTint   = [4]float32{0.75, 0.6, 0.45, 1.0}
)
