package scene

import (
	"github.com/chewxy/math32"

	"scene-optimizer/math"
)

// CreateQuad generates a unit quad in the XY plane with corners at
// (0,0,0) and (1,1,0): two triangles sharing an edge.
func CreateQuad(name string) *Mesh {
	vertices := []math.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
	m := NewMesh(name, vertices, []uint32{0, 1, 2, 1, 3, 2})
	m.UVs = []math.Vec2{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	m.Normals = []math.Vec3{math.Vec3Front, math.Vec3Front, math.Vec3Front, math.Vec3Front}
	return m
}

// CreatePlane generates a flat plane on XZ with subdivisions² cells, two
// triangles per cell.
func CreatePlane(name string, width, depth float32, subdivisions int) *Mesh {
	if subdivisions < 1 {
		subdivisions = 1
	}

	n := subdivisions + 1
	vertices := make([]math.Vec3, 0, n*n)
	uvs := make([]math.Vec2, 0, n*n)
	normals := make([]math.Vec3, 0, n*n)
	indices := make([]uint32, 0, subdivisions*subdivisions*6)

	halfW := width / 2
	halfD := depth / 2
	for z := 0; z <= subdivisions; z++ {
		for x := 0; x <= subdivisions; x++ {
			u := float32(x) / float32(subdivisions)
			v := float32(z) / float32(subdivisions)
			vertices = append(vertices, math.Vec3{X: -halfW + u*width, Z: -halfD + v*depth})
			uvs = append(uvs, math.Vec2{X: u, Y: v})
			normals = append(normals, math.Vec3Up)
		}
	}

	for z := 0; z < subdivisions; z++ {
		for x := 0; x < subdivisions; x++ {
			topLeft := uint32(z*n + x)
			topRight := topLeft + 1
			bottomLeft := topLeft + uint32(n)
			bottomRight := bottomLeft + 1

			indices = append(indices, topLeft, bottomLeft, topRight)
			indices = append(indices, topRight, bottomLeft, bottomRight)
		}
	}

	m := NewMesh(name, vertices, indices)
	m.UVs = uvs
	m.Normals = normals
	return m
}

// CreateSphere generates a UV sphere.
func CreateSphere(name string, radius float32, segments, rings int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	var vertices, normals []math.Vec3
	var uvs []math.Vec2
	var indices []uint32

	for ring := 0; ring <= rings; ring++ {
		phi := float32(ring) * math32.Pi / float32(rings)
		sinPhi, cosPhi := math32.Sin(phi), math32.Cos(phi)
		for seg := 0; seg <= segments; seg++ {
			theta := float32(seg) * 2 * math32.Pi / float32(segments)
			normal := math.Vec3{X: sinPhi * math32.Cos(theta), Y: cosPhi, Z: sinPhi * math32.Sin(theta)}
			vertices = append(vertices, normal.Mul(radius))
			normals = append(normals, normal)
			uvs = append(uvs, math.Vec2{X: float32(seg) / float32(segments), Y: float32(ring) / float32(rings)})
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)
			indices = append(indices, current, next, current+1)
			indices = append(indices, current+1, next, next+1)
		}
	}

	m := NewMesh(name, vertices, indices)
	m.UVs = uvs
	m.Normals = normals
	return m
}
