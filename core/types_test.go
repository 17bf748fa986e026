package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scene-optimizer/math"
)

func TestBoundsMinMax(t *testing.T) {
	b := BoundsFromMinMax(math.NewVec3(-1, 0, 2), math.NewVec3(1, 4, 6))
	assert.Equal(t, math.NewVec3(0, 2, 4), b.Center)
	assert.Equal(t, math.NewVec3(2, 4, 4), b.Size)
	assert.Equal(t, math.NewVec3(-1, 0, 2), b.Min())
	assert.Equal(t, math.NewVec3(1, 4, 6), b.Max())
}

func TestBoundsEncapsulate(t *testing.T) {
	a := BoundsFromMinMax(math.NewVec3(0, 0, 0), math.NewVec3(1, 1, 1))
	b := BoundsFromMinMax(math.NewVec3(2, -1, 0), math.NewVec3(3, 0, 1))
	u := a.Encapsulate(b)
	assert.Equal(t, math.NewVec3(0, -1, 0), u.Min())
	assert.Equal(t, math.NewVec3(3, 1, 1), u.Max())
}

func TestBoundsSurfaceArea(t *testing.T) {
	b := Bounds{Size: math.NewVec3(1, 2, 3)}
	assert.Equal(t, float32(22), b.SurfaceArea())

	flat := Bounds{Size: math.NewVec3(1, 1, 0)}
	assert.Equal(t, float32(2), flat.SurfaceArea())
}

func TestBoundsTransform(t *testing.T) {
	b := BoundsFromMinMax(math.NewVec3(0, 0, 0), math.NewVec3(1, 1, 1))
	moved := b.Transform(math.Mat4Translation(math.NewVec3(5, 0, 0)))
	assert.True(t, moved.ApproxEqual(BoundsFromMinMax(math.NewVec3(5, 0, 0), math.NewVec3(6, 1, 1)), 1e-6))

	assert.Equal(t, Bounds{}, BoundsOf(nil))
}
