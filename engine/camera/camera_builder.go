package camera

import (
	"github.com/Carmen-Shannon/oxy-render/common"
)

// CameraBuilderOption is a functional option for configuring a Camera.
// Use the With* functions to create options.
type CameraBuilderOption func(*orbitCamera)

// WithPerspective sets the projection parameters. Invalid values are ignored.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - near: near plane distance
//   - far: far plane distance, greater than near
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithPerspective(fovY, near, far float32) CameraBuilderOption {
	return func(c *orbitCamera) {
		if fovY > 0 && near > 0 && far > near {
			c.fovY, c.near, c.far = fovY, near, far
		}
	}
}

// WithOrbit sets the starting orbit.
//
// Parameters:
//   - target: the orbit centre
//   - radius: distance from the target
//   - azimuth: angle around +Y in radians
//   - elevation: angle above the horizontal plane in radians
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithOrbit(target common.Vec3, radius, azimuth, elevation float32) CameraBuilderOption {
	return func(c *orbitCamera) {
		c.target = target
		c.radius = radius
		c.azimuth = azimuth
		c.elevation = elevation
	}
}

// WithRadiusBounds limits how close and how far the camera may zoom.
func WithRadiusBounds(min, max float32) CameraBuilderOption {
	return func(c *orbitCamera) {
		if min > 0 && max >= min {
			c.minRadius, c.maxRadius = min, max
		}
	}
}

// WithSensitivity sets the radians per dragged pixel.
func WithSensitivity(radiansPerPixel float32) CameraBuilderOption {
	return func(c *orbitCamera) {
		if radiansPerPixel > 0 {
			c.sensitivity = radiansPerPixel
		}
	}
}

// WithZoomStep sets the fraction of the radius removed per unit of zoom, in (0, 1).
func WithZoomStep(step float32) CameraBuilderOption {
	return func(c *orbitCamera) {
		if step > 0 && step < 1 {
			c.zoomStep = step
		}
	}
}

// WithKeyStep sets the radians turned per keyboard step.
func WithKeyStep(step float32) CameraBuilderOption {
	return func(c *orbitCamera) {
		if step > 0 {
			c.keyStep = step
		}
	}
}
