package common

// Plane represents a plane in 3D space using the equation: dot(Normal, p) + Distance = 0.
// Points with a positive signed distance lie on the inner side.
type Plane struct {
	Normal   Vec3
	Distance float32
}

// SignedDistance returns dot(Normal, p) + Distance.
func (p Plane) SignedDistance(v Vec3) float32 {
	return p.Normal.Dot(v) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustum extracts frustum planes from a combined view-projection matrix (Proj * View)
// using the Gribb/Hartmann method.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the column-major view-projection matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(viewProj Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	var f Frustum
	f.Planes[FrustumLeft] = planeFrom(r3, r0, 1)
	f.Planes[FrustumRight] = planeFrom(r3, r0, -1)
	f.Planes[FrustumBottom] = planeFrom(r3, r1, 1)
	f.Planes[FrustumTop] = planeFrom(r3, r1, -1)
	// With 0..1 clip depth this plane lies nearer the eye than the real near plane.
	f.Planes[FrustumNear] = planeFrom(r3, r2, 1)
	f.Planes[FrustumFar] = planeFrom(r3, r2, -1)
	return f
}

// planeFrom builds the plane a + sign*b and normalizes it so the normal has unit length.
// Degenerate planes with a zero normal are kept unnormalized.
func planeFrom(a, b [4]float32, sign float32) Plane {
	p := Plane{
		Normal:   Vec3{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]},
		Distance: a[3] + sign*b[3],
	}
	if length := p.Normal.Length(); length > 0 {
		inv := 1 / length
		p.Normal = p.Normal.Scale(inv)
		p.Distance *= inv
	}
	return p
}

// Contains reports whether box is at least partially inside the frustum, using the
// positive-vertex test against each plane. Invalid boxes are always reported as inside.
//
// Parameters:
//   - box: the world-space box to test
//
// Returns:
//   - bool: false only when the box lies entirely outside one of the planes
func (f *Frustum) Contains(box AABB) bool {
	if !box.Valid() {
		return true
	}
	for i := range f.Planes {
		p := &f.Planes[i]
		var v Vec3
		for axis := 0; axis < 3; axis++ {
			if p.Normal[axis] >= 0 {
				v[axis] = box.Max[axis]
			} else {
				v[axis] = box.Min[axis]
			}
		}
		if p.SignedDistance(v) < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether the sphere at center with the given radius touches the frustum.
func (f *Frustum) IntersectsSphere(center Vec3, radius float32) bool {
	for i := range f.Planes {
		if f.Planes[i].SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p lies on the inner side of every plane.
func (f *Frustum) ContainsPoint(p Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].SignedDistance(p) < 0 {
			return false
		}
	}
	return true
}
