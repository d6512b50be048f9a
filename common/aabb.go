package common

import "github.com/chewxy/math32"

// AABB is an axis-aligned bounding box. A box whose Min exceeds Max on any axis is invalid
// and stands for "unknown bounds".
type AABB struct {
	Min Vec3
	Max Vec3
}

// EmptyAABB returns an invalid box ready to be grown with Expand.
func EmptyAABB() AABB {
	return AABB{
		Min: Vec3{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32},
		Max: Vec3{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32},
	}
}

// Valid reports whether Min <= Max on every axis.
func (b AABB) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

func (b AABB) Center() Vec3 { return b.Min.Add(b.Max).Scale(0.5) }

func (b AABB) Extents() Vec3 { return b.Max.Sub(b.Min).Scale(0.5) }

// Expand grows the box to include p.
func (b *AABB) Expand(p Vec3) {
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}

// Merge grows the box to include o. Invalid boxes are ignored.
func (b *AABB) Merge(o AABB) {
	if !o.Valid() {
		return
	}
	b.Expand(o.Min)
	b.Expand(o.Max)
}

// Corners returns the eight corner points of the box.
func (b AABB) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min[0], b.Min[1], b.Min[2]},
		{b.Max[0], b.Min[1], b.Min[2]},
		{b.Min[0], b.Max[1], b.Min[2]},
		{b.Max[0], b.Max[1], b.Min[2]},
		{b.Min[0], b.Min[1], b.Max[2]},
		{b.Max[0], b.Min[1], b.Max[2]},
		{b.Min[0], b.Max[1], b.Max[2]},
		{b.Max[0], b.Max[1], b.Max[2]},
	}
}

// Transform returns the axis-aligned box enclosing the eight transformed corners.
// An invalid box stays invalid.
//
// Parameters:
//   - m: the transform to apply
//
// Returns:
//   - AABB: the enclosing box in the target space
func (b AABB) Transform(m Mat4) AABB {
	if !b.Valid() {
		return EmptyAABB()
	}
	out := EmptyAABB()
	for _, c := range b.Corners() {
		out.Expand(m.TransformPoint(c))
	}
	return out
}

// BoundsOf computes the box enclosing a list of positions. An empty list yields an invalid box.
func BoundsOf(points []Vec3) AABB {
	b := EmptyAABB()
	for _, p := range points {
		b.Expand(p)
	}
	return b
}
