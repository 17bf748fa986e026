package optimize

import (
	"fmt"
	"slices"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
)

// maxGridResolution is the finest clustering grid tried by Simplify.
const maxGridResolution = 256

// Simplify returns a copy of m with at most target triangles. Vertices are
// merged on a progressively coarser grid; when a grid step overshoots, the
// smallest triangles of the previous step are dropped instead. Indices are
// compacted against the surviving vertices, and Bounds keep the source
// bounds.
func Simplify(m *scene.Mesh, target int) (*scene.Mesh, error) {
	if m == nil {
		return nil, fmt.Errorf("simplify: %w", core.ErrNullReference)
	}
	if target < 0 {
		return nil, fmt.Errorf("simplify %q: target %d is negative: %w", m.Name, target, core.ErrInvalidArgument)
	}
	if target >= m.PolygonCount() {
		return m.Clone(), nil
	}

	prev := fromMesh(m)
	for res := maxGridResolution; res >= 1; res /= 2 {
		next := prev.cluster(m.Bounds, res)
		if next.triangles() > target {
			prev = next
			continue
		}
		if next.triangles()*2 < target {
			next = prev.keepLargest(target)
		}
		return next.toMesh(m), nil
	}
	return prev.keepLargest(target).toMesh(m), nil
}

// geometry is the working form of a mesh during simplification.
type geometry struct {
	positions []math.Vec3
	uvs       []math.Vec2
	normals   []math.Vec3
	tangents  []math.Vec4
	indices   []uint32
}

func fromMesh(m *scene.Mesh) *geometry {
	return &geometry{
		positions: m.Vertices,
		uvs:       m.UVs,
		normals:   m.Normals,
		tangents:  m.Tangents,
		indices:   m.Indices,
	}
}

func (g *geometry) triangles() int { return len(g.indices) / 3 }

// cluster snaps every vertex to a res³ grid over bounds. A cell's position is
// the average of its vertices; other attributes come from the first one.
func (g *geometry) cluster(bounds core.Bounds, res int) *geometry {
	lo, size := bounds.Min(), bounds.Size
	cellOf := func(v, origin, extent float32) int {
		if extent <= 0 {
			return 0
		}
		c := int((v - origin) / extent * float32(res))
		return max(0, min(c, res-1))
	}

	out := &geometry{}
	cells := make(map[[3]int]uint32)
	sums := []math.Vec3{}
	counts := []int{}
	remap := make([]uint32, len(g.positions))
	for i, p := range g.positions {
		key := [3]int{cellOf(p.X, lo.X, size.X), cellOf(p.Y, lo.Y, size.Y), cellOf(p.Z, lo.Z, size.Z)}
		idx, ok := cells[key]
		if !ok {
			idx = uint32(len(sums))
			cells[key] = idx
			sums = append(sums, math.Vec3{})
			counts = append(counts, 0)
			out.copyAttributes(g, i)
		}
		sums[idx] = sums[idx].Add(p)
		counts[idx]++
		remap[i] = idx
	}
	out.positions = make([]math.Vec3, len(sums))
	for i, s := range sums {
		out.positions[i] = s.Mul(1 / float32(counts[i]))
	}

	seen := make(map[[3]uint32]bool)
	for t := 0; t+2 < len(g.indices); t += 3 {
		a, b, c := remap[g.indices[t]], remap[g.indices[t+1]], remap[g.indices[t+2]]
		if a == b || b == c || a == c {
			continue
		}
		key := canonical(a, b, c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.indices = append(out.indices, a, b, c)
	}
	return out
}

// copyAttributes appends the non-position attributes of vertex i of src.
func (g *geometry) copyAttributes(src *geometry, i int) {
	if len(src.uvs) > 0 {
		g.uvs = append(g.uvs, src.uvs[i])
	}
	if len(src.normals) > 0 {
		g.normals = append(g.normals, src.normals[i])
	}
	if len(src.tangents) > 0 {
		g.tangents = append(g.tangents, src.tangents[i])
	}
}

// canonical rotates a triangle so its smallest index comes first, keeping
// the winding.
func canonical(a, b, c uint32) [3]uint32 {
	switch {
	case a <= b && a <= c:
		return [3]uint32{a, b, c}
	case b <= a && b <= c:
		return [3]uint32{b, c, a}
	default:
		return [3]uint32{c, a, b}
	}
}

// keepLargest keeps the target triangles with the largest area, in their
// original order.
func (g *geometry) keepLargest(target int) *geometry {
	n := g.triangles()
	order := make([]int, n)
	area := make([]float32, n)
	for t := range n {
		order[t] = t
		p0, p1, p2 := g.positions[g.indices[3*t]], g.positions[g.indices[3*t+1]], g.positions[g.indices[3*t+2]]
		area[t] = p1.Sub(p0).Cross(p2.Sub(p0)).Length()
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case area[a] > area[b]:
			return -1
		case area[a] < area[b]:
			return 1
		}
		return 0
	})
	kept := order[:min(target, n)]
	slices.Sort(kept)

	out := *g
	out.indices = make([]uint32, 0, 3*len(kept))
	for _, t := range kept {
		out.indices = append(out.indices, g.indices[3*t:3*t+3]...)
	}
	return &out
}

// toMesh compacts the vertices down to the ones still indexed and builds
// a mesh named and bounded like src.
func (g *geometry) toMesh(src *scene.Mesh) *scene.Mesh {
	remap := make(map[uint32]uint32)
	out := &scene.Mesh{Name: src.Name, Bounds: src.Bounds, LODs: slices.Clone(src.LODs)}
	out.Indices = make([]uint32, len(g.indices))
	for i, idx := range g.indices {
		n, ok := remap[idx]
		if !ok {
			n = uint32(len(out.Vertices))
			remap[idx] = n
			out.Vertices = append(out.Vertices, g.positions[idx])
			if len(g.uvs) > 0 {
				out.UVs = append(out.UVs, g.uvs[idx])
			}
			if len(g.normals) > 0 {
				out.Normals = append(out.Normals, g.normals[idx])
			}
			if len(g.tangents) > 0 {
				out.Tangents = append(out.Tangents, g.tangents[idx])
			}
		}
		out.Indices[i] = n
	}
	return out
}

// GenerateLODs simplifies m into levels meshes named "<name>_LOD<i>".
// Level i targets floor(count of level i-1 · factors[i]), level 0
// counting against m itself.
func GenerateLODs(m *scene.Mesh, levels int, factors []float32) ([]*scene.Mesh, error) {
	if m == nil {
		return nil, fmt.Errorf("generate lods: %w", core.ErrNullReference)
	}
	if levels <= 0 {
		return nil, fmt.Errorf("generate lods %q: levels %d must be positive: %w", m.Name, levels, core.ErrInvalidArgument)
	}
	if len(factors) != levels {
		return nil, fmt.Errorf("generate lods %q: %d factors for %d levels: %w", m.Name, len(factors), levels, core.ErrInvalidArgument)
	}
	for i, f := range factors {
		if !(f > 0 && f <= 1) {
			return nil, fmt.Errorf("generate lods %q: factor %d = %v outside (0,1]: %w", m.Name, i, f, core.ErrInvalidArgument)
		}
	}

	out := make([]*scene.Mesh, levels)
	prev := m
	for i, f := range factors {
		target := int(float32(prev.PolygonCount()) * f)
		lod, err := Simplify(prev, target)
		if err != nil {
			return nil, err
		}
		lod.Name = fmt.Sprintf("%s_LOD%d", m.Name, i)
		lod.LODs = nil
		out[i] = lod
		prev = lod
	}
	return out, nil
}

// MergeMeshes concatenates meshes into one, offsetting each source's
// indices by the vertices before it. An attribute present in any source is
// zero-filled for the sources that lack it. A single mesh is returned as
// is.
func MergeMeshes(meshes []*scene.Mesh) (*scene.Mesh, error) {
	if len(meshes) == 0 {
		return nil, fmt.Errorf("merge meshes: no input: %w", core.ErrInvalidArgument)
	}
	var uvs, normals, tangents bool
	for i, m := range meshes {
		if m == nil {
			return nil, fmt.Errorf("merge meshes: mesh %d: %w", i, core.ErrNullReference)
		}
		uvs = uvs || len(m.UVs) > 0
		normals = normals || len(m.Normals) > 0
		tangents = tangents || len(m.Tangents) > 0
	}
	if len(meshes) == 1 {
		return meshes[0], nil
	}

	out := &scene.Mesh{Name: meshes[0].Name + "_merged", Bounds: meshes[0].Bounds}
	for i, m := range meshes {
		base := uint32(len(out.Vertices))
		out.Vertices = append(out.Vertices, m.Vertices...)
		out.UVs = appendOrZero(out.UVs, m.UVs, uvs, len(m.Vertices))
		out.Normals = appendOrZero(out.Normals, m.Normals, normals, len(m.Vertices))
		out.Tangents = appendOrZero(out.Tangents, m.Tangents, tangents, len(m.Vertices))
		for _, idx := range m.Indices {
			out.Indices = append(out.Indices, base+idx)
		}
		if i > 0 {
			out.Bounds = out.Bounds.Encapsulate(m.Bounds)
		}
	}
	return out, nil
}

func appendOrZero[T any](dst, src []T, want bool, n int) []T {
	if !want {
		return dst
	}
	if len(src) > 0 {
		return append(dst, src...)
	}
	return append(dst, make([]T, n)...)
}
