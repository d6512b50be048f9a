package common

// Transform is a local translation, rotation and scale relative to a parent node.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// IdentityTransform returns a transform with no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: IdentityQuat(),
		Scale:    Vec3{1, 1, 1},
	}
}

// Matrix composes the transform as T * R * S. A zero rotation quaternion is treated as identity.
//
// Returns:
//   - Mat4: the local-to-parent matrix
func (t Transform) Matrix() Mat4 {
	q := t.Rotation
	if q == (Quat{}) {
		q = IdentityQuat()
	}
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	sx, sy, sz := t.Scale[0], t.Scale[1], t.Scale[2]

	return Mat4{
		(1 - 2*(yy+zz)) * sx, 2 * (xy + wz) * sx, 2 * (xz - wy) * sx, 0,
		2 * (xy - wz) * sy, (1 - 2*(xx+zz)) * sy, 2 * (yz + wx) * sy, 0,
		2 * (xz + wy) * sz, 2 * (yz - wx) * sz, (1 - 2*(xx+yy)) * sz, 0,
		t.Position[0], t.Position[1], t.Position[2], 1,
	}
}
