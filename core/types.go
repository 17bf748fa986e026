package core

import (
	"scene-optimizer/math"
)

type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite = Color{1, 1, 1, 1}
	ColorBlack = Color{0, 0, 0, 1}
)

// Vec4 returns the color as an RGBA vector.
func (c Color) Vec4() math.Vec4 {
	return math.Vec4{X: c.R, Y: c.G, Z: c.B, W: c.A}
}

// Bounds is an axis-aligned bounding volume stored as center and size.
type Bounds struct {
	Center math.Vec3
	Size   math.Vec3
}

// BoundsFromMinMax builds Bounds spanning min..max.
func BoundsFromMinMax(min, max math.Vec3) Bounds {
	return Bounds{
		Center: min.Add(max).Mul(0.5),
		Size:   max.Sub(min),
	}
}

// BoundsOf returns the tight bounds of points; the zero Bounds when empty.
func BoundsOf(points []math.Vec3) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	min, max := points[0], points[0]
	for _, p := range points[1:] {
		min = min.Min(p)
		max = max.Max(p)
	}
	return BoundsFromMinMax(min, max)
}

func (b Bounds) Min() math.Vec3 { return b.Center.Sub(b.Size.Mul(0.5)) }
func (b Bounds) Max() math.Vec3 { return b.Center.Add(b.Size.Mul(0.5)) }

// Encapsulate grows b to contain other.
func (b Bounds) Encapsulate(other Bounds) Bounds {
	return BoundsFromMinMax(b.Min().Min(other.Min()), b.Max().Max(other.Max()))
}

// SurfaceArea is the area of the box surface, 2(xy + yz + zx).
func (b Bounds) SurfaceArea() float32 {
	s := b.Size
	return 2 * (s.X*s.Y + s.Y*s.Z + s.Z*s.X)
}

// Corners returns the eight box corners.
func (b Bounds) Corners() [8]math.Vec3 {
	lo, hi := b.Min(), b.Max()
	var c [8]math.Vec3
	for i := range c {
		p := lo
		if i&1 != 0 {
			p.X = hi.X
		}
		if i&2 != 0 {
			p.Y = hi.Y
		}
		if i&4 != 0 {
			p.Z = hi.Z
		}
		c[i] = p
	}
	return c
}

// Transform returns the axis-aligned bounds of b after applying m.
func (b Bounds) Transform(m math.Mat4) Bounds {
	corners := b.Corners()
	pts := make([]math.Vec3, len(corners))
	for i, c := range corners {
		pts[i] = m.MulPoint(c)
	}
	return BoundsOf(pts)
}

// ApproxEqual compares center and size component-wise.
func (b Bounds) ApproxEqual(other Bounds, eps float32) bool {
	return b.Center.ApproxEqual(other.Center, eps) && b.Size.ApproxEqual(other.Size, eps)
}
