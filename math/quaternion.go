package math

import "github.com/chewxy/math32"

type Quaternion struct {
	X, Y, Z, W float32
}

func QuaternionIdentity() Quaternion {
	return Quaternion{X: 0, Y: 0, Z: 0, W: 1}
}

func QuaternionFromAxisAngle(axis Vec3, angle float32) Quaternion {
	s := math32.Sin(angle / 2)
	c := math32.Cos(angle / 2)

	axis = axis.Normalize()
	return Quaternion{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: c,
	}
}

// QuaternionFromMat4 extracts the rotation of a pure rotation matrix
// (row-vector convention, as produced by ToMat4).
func QuaternionFromMat4(m Mat4) Quaternion {
	// c(i, j) reads the column-vector form of m.
	c := func(i, j int) float32 { return m[j][i] }

	var q Quaternion
	tr := c(0, 0) + c(1, 1) + c(2, 2)
	switch {
	case tr > 0:
		s := math32.Sqrt(tr+1) * 2
		q.W = 0.25 * s
		q.X = (c(2, 1) - c(1, 2)) / s
		q.Y = (c(0, 2) - c(2, 0)) / s
		q.Z = (c(1, 0) - c(0, 1)) / s
	case c(0, 0) > c(1, 1) && c(0, 0) > c(2, 2):
		s := math32.Sqrt(1+c(0, 0)-c(1, 1)-c(2, 2)) * 2
		q.W = (c(2, 1) - c(1, 2)) / s
		q.X = 0.25 * s
		q.Y = (c(0, 1) + c(1, 0)) / s
		q.Z = (c(0, 2) + c(2, 0)) / s
	case c(1, 1) > c(2, 2):
		s := math32.Sqrt(1+c(1, 1)-c(0, 0)-c(2, 2)) * 2
		q.W = (c(0, 2) - c(2, 0)) / s
		q.X = (c(0, 1) + c(1, 0)) / s
		q.Y = 0.25 * s
		q.Z = (c(1, 2) + c(2, 1)) / s
	default:
		s := math32.Sqrt(1+c(2, 2)-c(0, 0)-c(1, 1)) * 2
		q.W = (c(1, 0) - c(0, 1)) / s
		q.X = (c(0, 2) + c(2, 0)) / s
		q.Y = (c(1, 2) + c(2, 1)) / s
		q.Z = 0.25 * s
	}
	return q.Normalize()
}

func (q Quaternion) Mul(other Quaternion) Quaternion {
	return Quaternion{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

func (q Quaternion) Normalize() Quaternion {
	length := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if length > 0 {
		inv := 1 / length
		return Quaternion{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
	}
	return q
}

func (q Quaternion) Dot(other Quaternion) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Aligned returns q or -q, whichever lies in the same hemisphere as ref.
// Both represent the same rotation.
func (q Quaternion) Aligned(ref Quaternion) Quaternion {
	if q.Dot(ref) < 0 {
		return Quaternion{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
	}
	return q
}

func (q Quaternion) RotateVector(v Vec3) Vec3 {
	qVec := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := qVec.Cross(v).Mul(2)
	return v.Add(t.Mul(q.W)).Add(qVec.Cross(t))
}

// ToMat4 returns the rotation in row-vector form.
func (q Quaternion) ToMat4() Mat4 {
	xx := q.X * q.X
	yy := q.Y * q.Y
	zz := q.Z * q.Z
	xy := q.X * q.Y
	xz := q.X * q.Z
	yz := q.Y * q.Z
	wx := q.W * q.X
	wy := q.W * q.Y
	wz := q.W * q.Z

	return Mat4{
		{1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0},
		{2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0},
		{2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0},
		{0, 0, 0, 1},
	}
}
