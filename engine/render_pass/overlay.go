package render_pass

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/render_graph"
)

// FluidRenderData describes the fluid volume to overlay for one frame.
type FluidRenderData struct {
	// Bounds is the world-space box of the simulation domain.
	Bounds common.AABB
	// Color overrides the pass tint when its alpha is non-zero.
	Color [4]float32
}

// VoxelRenderData describes an occupancy grid spanning Bounds.
type VoxelRenderData struct {
	Bounds common.AABB
	// Dims is the number of cells along each axis.
	Dims [3]uint32
	// Occupied holds one flag per cell, x fastest then y then z. An empty slice draws Bounds as
	// a single solid box.
	Occupied []bool
	// Color overrides the pass tint when its alpha is non-zero.
	Color [4]float32
}

// Cells returns the world-space box of every occupied cell. Malformed grids, where Occupied
// does not match Dims, yield no cells.
//
// Returns:
//   - []common.AABB: the occupied cell boxes
func (v *VoxelRenderData) Cells() []common.AABB {
	if !v.Bounds.Valid() {
		return nil
	}
	if len(v.Occupied) == 0 {
		return []common.AABB{v.Bounds}
	}
	nx, ny, nz := int(v.Dims[0]), int(v.Dims[1]), int(v.Dims[2])
	if nx*ny*nz != len(v.Occupied) {
		return nil
	}
	size := v.Bounds.Max.Sub(v.Bounds.Min)
	cell := common.Vec3{size[0] / float32(nx), size[1] / float32(ny), size[2] / float32(nz)}
	var out []common.AABB
	for i, occupied := range v.Occupied {
		if !occupied {
			continue
		}
		x, y, z := i%nx, (i/nx)%ny, i/(nx*ny)
		lo := v.Bounds.Min.Add(common.Vec3{float32(x) * cell[0], float32(y) * cell[1], float32(z) * cell[2]})
		out = append(out, common.AABB{Min: lo, Max: lo.Add(cell)})
	}
	return out
}

// boxTransform maps the unit cube (half extent 1) onto b.
func boxTransform(b common.AABB) common.Mat4 {
	return common.Transform{
		Position: b.Center(),
		Rotation: common.IdentityQuat(),
		Scale:    b.Extents(),
	}.Matrix()
}

// volumePass draws boxes with the flat volume shader through a unit cube the pass uploads itself.
type volumePass struct {
	scenePass
	blend gpu.BlendMode
	cube  gpu.MeshBuffers
}

func (p *volumePass) Init(color, depth gpu.Format) error {
	if err := p.setFormats(color, depth); err != nil {
		return err
	}
	if !p.cube.Valid() {
		cube := asset.Cube(1)
		buffers, err := p.device.UploadMesh(p.name+" cube", common.SliceToBytes(cube.Vertices), uint32(len(cube.Vertices)), cube.Indices)
		if err != nil {
			return fmt.Errorf("%s: upload cube: %w", p.name, err)
		}
		p.cube = buffers
	}
	return p.createPipeline(gpu.PipelineDesc{
		Shader:    shaderSource(volumeShader),
		Topology:  gpu.TopologyTriangles,
		Vertex:    gpu.VertexLayoutMesh,
		Blend:     p.blend,
		DepthTest: true,
		CullBack:  true,
	})
}

func (p *volumePass) Release() {
	if p.cube.Valid() {
		p.device.Release(p.cube.Handles()...)
	}
	p.cube = gpu.MeshBuffers{}
}

// drawBoxes records one cube per box, farthest from the camera first so boxes drawn without
// depth writes still overlap correctly.
func (p *volumePass) drawBoxes(d *sceneData, ctx *render_graph.Context, boxes []common.AABB, tint [4]float32) error {
	if len(boxes) == 0 {
		return nil
	}
	eye := p.fc.CameraPosition
	sort.SliceStable(boxes, func(i, j int) bool {
		di := boxes[i].Center().Sub(eye)
		dj := boxes[j].Center().Sub(eye)
		return di.Dot(di) > dj.Dot(dj)
	})
	if err := p.begin(ctx.Recorder, d, false); err != nil {
		return err
	}
	defer ctx.Recorder.EndPass()
	for _, b := range boxes {
		ctx.Recorder.PushTransform(boxTransform(b), tint)
		ctx.Recorder.DrawIndexed(p.cube)
	}
	return nil
}

func (p *volumePass) tintFor(color [4]float32) [4]float32 {
	if color[3] > 0 {
		return color
	}
	return p.tint
}

// fluidPass is the implementation of the FluidPass interface.
type fluidPass struct {
	volumePass
	data *FluidRenderData
}

// FluidPass draws the fluid simulation domain as a translucent volume box.
type FluidPass interface {
	Pass

	// SetData sets the fluid volume for the next execution; nil hides it.
	SetData(data *FluidRenderData)
}

var _ FluidPass = &fluidPass{}

// NewFluidPass creates the fluid volume pass.
func NewFluidPass(device gpu.Device, options ...PassBuilderOption) FluidPass {
	return &fluidPass{volumePass: volumePass{
		scenePass: newScenePass("fluid volume", device, nil, fluidTint, options),
		blend:     gpu.BlendAlpha,
	}}
}

func (p *fluidPass) SetData(data *FluidRenderData) { p.data = data }

func (p *fluidPass) RegisterToGraph(g render_graph.Graph) error {
	return p.register(g, false, p.execute)
}

func (p *fluidPass) execute(d *sceneData, ctx *render_graph.Context) error {
	if p.data == nil || p.fc == nil || !p.data.Bounds.Valid() {
		return nil
	}
	return p.drawBoxes(d, ctx, []common.AABB{p.data.Bounds}, p.tintFor(p.data.Color))
}

// voxelPass is the implementation of the VoxelPass interface.
type voxelPass struct {
	volumePass
	data *VoxelRenderData
}

// VoxelPass draws the occupied cells of a voxel grid as solid boxes.
type VoxelPass interface {
	Pass

	// SetData sets the voxel grid for the next execution; nil hides it.
	SetData(data *VoxelRenderData)
}

var _ VoxelPass = &voxelPass{}

// NewVoxelPass creates the voxel pass.
func NewVoxelPass(device gpu.Device, options ...PassBuilderOption) VoxelPass {
	return &voxelPass{volumePass: volumePass{
		scenePass: newScenePass("voxel", device, nil, voxelTint, options),
		blend:     gpu.BlendOpaque,
	}}
}

func (p *voxelPass) SetData(data *VoxelRenderData) { p.data = data }

func (p *voxelPass) RegisterToGraph(g render_graph.Graph) error {
	return p.register(g, false, p.execute)
}

func (p *voxelPass) execute(d *sceneData, ctx *render_graph.Context) error {
	if p.data == nil || p.fc == nil {
		return nil
	}
	return p.drawBoxes(d, ctx, p.data.Cells(), p.tintFor(p.data.Color))
}
