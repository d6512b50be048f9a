// Package camera provides the viewer's orbit camera, producing the view and projection matrices
// the render system consumes.
package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/chewxy/math32"
)

// orbitCamera is the implementation of the Camera interface.
type orbitCamera struct {
	mu *sync.Mutex

	target    common.Vec3
	radius    float32
	azimuth   float32 // around +Y, zero looks down -Z
	elevation float32 // above the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	sensitivity float32
	zoomStep    float32
	keyStep     float32

	fovY   float32
	aspect float32
	near   float32
	far    float32
}

// Camera orbits a target point at a given distance. Angles are in radians.
// Safe for concurrent use.
type Camera interface {
	// Position returns the eye position in world space.
	Position() common.Vec3

	// Target returns the point the camera orbits and looks at.
	Target() common.Vec3

	// View returns the world-to-view matrix.
	View() common.Mat4

	// Projection returns the right-handed perspective projection with depth in [0, 1].
	Projection() common.Mat4

	// Orbit rotates around the target. Elevation is clamped short of the poles.
	//
	// Parameters:
	//   - dAzimuth: change in azimuth in radians
	//   - dElevation: change in elevation in radians
	Orbit(dAzimuth, dElevation float32)

	// Drag orbits by a cursor delta in pixels, scaled by the mouse sensitivity.
	Drag(dx, dy float32)

	// Step orbits by a fixed keyboard step in each direction; each argument is -1, 0 or 1.
	Step(horizontal, vertical int)

	// Zoom moves towards the target by a multiplicative step per unit of delta. The radius
	// stays within its bounds.
	Zoom(delta float32)

	// Pan moves the target and the eye together along the view plane.
	//
	// Parameters:
	//   - dx: movement along the camera right axis, in world units
	//   - dy: movement along the camera up axis, in world units
	Pan(dx, dy float32)

	// SetTarget moves the orbit centre.
	SetTarget(target common.Vec3)

	// SetAspect sets the projection aspect ratio (width / height). Non-positive values are ignored.
	SetAspect(aspect float32)

	// Fit centres the camera on bounds and moves out until they fill the vertical field of
	// view. Invalid bounds are ignored.
	//
	// Parameters:
	//   - bounds: the world-space box to frame
	Fit(bounds common.AABB)

	Radius() float32
	Azimuth() float32
	Elevation() float32
}

var _ Camera = &orbitCamera{}

// NewCamera creates an orbit camera looking at the origin from the front and slightly above.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &orbitCamera{
		mu:           &sync.Mutex{},
		radius:       10,
		elevation:    math32.Pi / 8,
		minRadius:    0.1,
		maxRadius:    10000,
		minElevation: -math32.Pi/2 + 0.05,
		maxElevation: math32.Pi/2 - 0.05,
		sensitivity:  0.005,
		zoomStep:     0.1,
		keyStep:      0.05,
		fovY:         math32.Pi / 3,
		aspect:       16.0 / 9.0,
		near:         0.1,
		far:          1000,
	}
	for _, opt := range options {
		opt(c)
	}
	c.radius = common.Clamp(c.radius, c.minRadius, c.maxRadius)
	c.elevation = common.Clamp(c.elevation, c.minElevation, c.maxElevation)
	return c
}

// offset returns eye minus target. Caller holds the mutex.
func (c *orbitCamera) offset() common.Vec3 {
	ce, se := math32.Cos(c.elevation), math32.Sin(c.elevation)
	ca, sa := math32.Cos(c.azimuth), math32.Sin(c.azimuth)
	return common.Vec3{c.radius * ce * sa, c.radius * se, c.radius * ce * ca}
}

func (c *orbitCamera) Position() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target.Add(c.offset())
}

func (c *orbitCamera) Target() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *orbitCamera) View() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.LookAt(c.target.Add(c.offset()), c.target, common.Vec3{0, 1, 0})
}

func (c *orbitCamera) Projection() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.Perspective(c.fovY, c.aspect, c.near, c.far)
}

func (c *orbitCamera) Orbit(dAzimuth, dElevation float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth = math32.Mod(c.azimuth+dAzimuth, 2*math32.Pi)
	c.elevation = common.Clamp(c.elevation+dElevation, c.minElevation, c.maxElevation)
}

func (c *orbitCamera) Drag(dx, dy float32) {
	c.Orbit(-dx*c.sensitivity, dy*c.sensitivity)
}

func (c *orbitCamera) Step(horizontal, vertical int) {
	c.Orbit(float32(horizontal)*c.keyStep, float32(vertical)*c.keyStep)
}

func (c *orbitCamera) Zoom(delta float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radius = common.Clamp(c.radius*math32.Pow(1-c.zoomStep, delta), c.minRadius, c.maxRadius)
}

func (c *orbitCamera) Pan(dx, dy float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	back := c.offset().Normalize()
	right := common.Vec3{0, 1, 0}.Cross(back).Normalize()
	up := back.Cross(right)
	c.target = c.target.Add(right.Scale(dx)).Add(up.Scale(dy))
}

func (c *orbitCamera) SetTarget(target common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
}

func (c *orbitCamera) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
}

func (c *orbitCamera) Fit(bounds common.AABB) {
	if !bounds.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = bounds.Center()
	r := bounds.Extents().Length()
	if r == 0 {
		r = 1
	}
	c.radius = common.Clamp(r/math32.Sin(c.fovY/2), c.minRadius, c.maxRadius)
	if c.far < c.radius+2*r {
		c.far = c.radius + 2*r
	}
}

func (c *orbitCamera) Radius() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.radius
}

func (c *orbitCamera) Azimuth() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.azimuth
}

func (c *orbitCamera) Elevation() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elevation
}
