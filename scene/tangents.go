package scene

import "scene-optimizer/math"

// ComputeTangents fills m.Tangents from positions, normals and UVs. W holds
// the bitangent sign. Meshes without UVs or normals are left untouched;
// triangles with a degenerate UV area are skipped.
func ComputeTangents(m *Mesh) {
	nv := len(m.Vertices)
	if nv == 0 || len(m.UVs) != nv || len(m.Normals) != nv {
		return
	}

	tan := make([]math.Vec3, nv)
	bit := make([]math.Vec3, nv)

	for i := 0; i+2 < len(m.Indices); i += 3 {
		i0, i1, i2 := m.Indices[i], m.Indices[i+1], m.Indices[i+2]

		e1 := m.Vertices[i1].Sub(m.Vertices[i0])
		e2 := m.Vertices[i2].Sub(m.Vertices[i0])

		du1 := m.UVs[i1].X - m.UVs[i0].X
		dv1 := m.UVs[i1].Y - m.UVs[i0].Y
		du2 := m.UVs[i2].X - m.UVs[i0].X
		dv2 := m.UVs[i2].Y - m.UVs[i0].Y

		denom := du1*dv2 - du2*dv1
		if denom == 0 {
			continue
		}
		r := 1 / denom

		t := e1.Mul(dv2 * r).Sub(e2.Mul(dv1 * r))
		b := e2.Mul(du1 * r).Sub(e1.Mul(du2 * r))
		for _, idx := range [3]uint32{i0, i1, i2} {
			tan[idx] = tan[idx].Add(t)
			bit[idx] = bit[idx].Add(b)
		}
	}

	m.Tangents = make([]math.Vec4, nv)
	for i := range m.Tangents {
		n := m.Normals[i]
		// Gram-Schmidt: T = normalize(T - N*(N·T))
		t := tan[i].Sub(n.Mul(n.Dot(tan[i])))
		if t.Dot(t) < 1e-8 {
			if abs(n.X) < 0.9 {
				t = math.Vec3{X: 1}.Sub(n.Mul(n.X))
			} else {
				t = math.Vec3{Y: 1}.Sub(n.Mul(n.Y))
			}
		}
		t = t.Normalize()
		w := float32(1)
		if n.Cross(t).Dot(bit[i]) < 0 {
			w = -1
		}
		m.Tangents[i] = math.Vec4{X: t.X, Y: t.Y, Z: t.Z, W: w}
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
