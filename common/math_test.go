package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

const tol = 1e-5

func assertVec3(t *testing.T, want, got Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], tol, "component %d", i)
	}
}

func TestMat4Mul(t *testing.T) {
	tr := Translation(Vec3{1, 2, 3})
	assert.Equal(t, tr, Identity().Mul(tr))
	assert.Equal(t, tr, tr.Mul(Identity()))

	// scale then translate: b is applied first
	s := IdentityTransform()
	s.Scale = Vec3{2, 2, 2}
	m := tr.Mul(s.Matrix())
	assertVec3(t, Vec3{3, 4, 5}, m.TransformPoint(Vec3{1, 1, 1}))
}

func TestTransformMatrix(t *testing.T) {
	tf := IdentityTransform()
	tf.Rotation = QuatFromAxisAngle(Vec3{0, 1, 0}, math32.Pi/2)
	assertVec3(t, Vec3{0, 0, -1}, tf.Matrix().TransformPoint(Vec3{1, 0, 0}))

	tf.Position = Vec3{10, 0, 0}
	tf.Scale = Vec3{3, 3, 3}
	assertVec3(t, Vec3{10, 0, -3}, tf.Matrix().TransformPoint(Vec3{1, 0, 0}))

	// zero-value rotation behaves like identity
	zero := Transform{Scale: Vec3{1, 1, 1}}
	assert.Equal(t, Identity(), zero.Matrix())
}

func TestInvert(t *testing.T) {
	tf := Transform{Position: Vec3{1, -2, 3}, Rotation: QuatFromAxisAngle(Vec3{1, 1, 0}, 0.7), Scale: Vec3{2, 1, 0.5}}
	m := tf.Matrix()
	inv, ok := m.Invert()
	assert.True(t, ok)
	p := Vec3{4, 5, 6}
	assertVec3(t, p, inv.TransformPoint(m.TransformPoint(p)))

	_, ok = Mat4{}.Invert()
	assert.False(t, ok)
}

func TestLookAt(t *testing.T) {
	view := LookAt(Vec3{0, 0, 5}, Vec3{}, Vec3{0, 1, 0})
	// the origin lies 5 units down the -Z view axis
	assertVec3(t, Vec3{0, 0, -5}, view.TransformPoint(Vec3{}))
	assertVec3(t, Vec3{1, 0, -5}, view.TransformPoint(Vec3{1, 0, 0}))
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, "", Coalesce("", ""))
}

func TestQuatFromEulerDegrees(t *testing.T) {
	rotate := func(e Vec3, p Vec3) Vec3 {
		tf := IdentityTransform()
		tf.Rotation = QuatFromEulerDegrees(e)
		return tf.Matrix().TransformPoint(p)
	}
	assertVec3(t, Vec3{0, 0, -1}, rotate(Vec3{0, 90, 0}, Vec3{1, 0, 0}))
	assertVec3(t, Vec3{0, 0, 1}, rotate(Vec3{90, 0, 0}, Vec3{0, 1, 0}))
	assertVec3(t, Vec3{0, 1, 0}, rotate(Vec3{0, 0, 90}, Vec3{1, 0, 0}))

	q := QuatFromAxisAngle(Vec3{0, 1, 0}, 1)
	assert.Equal(t, q, IdentityQuat().Mul(q))
	assert.Equal(t, q, q.Mul(IdentityQuat()))
}

func TestClampAndCoalesce(t *testing.T) {
	assert.Equal(t, float32(1), Clamp(float32(3), 0, 1))
	assert.Equal(t, -2, Clamp(-5, -2, 2))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}
