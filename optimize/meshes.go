package optimize

import (
	"fmt"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
	"scene-optimizer/settings"
)

// minLODPolygons is the smallest mesh that gets levels of detail.
const minLODPolygons = 32

// OptimizeMeshes returns a copy of g with its meshes batched, simplified
// and given levels of detail as configured by s.
func OptimizeMeshes(g *scene.Graph, s *settings.Settings) (*scene.Graph, error) {
	if err := checkArgs("optimize meshes", g, s); err != nil {
		return nil, err
	}
	out := g.Clone()
	if _, err := optimizeMeshes(out, s); err != nil {
		return nil, err
	}
	return out, nil
}

func optimizeMeshes(g *scene.Graph, s *settings.Settings) (int, error) {
	changed := 0
	if s.TargetDrawCallCount > 0 && g.DrawCalls() > s.TargetDrawCallCount {
		n, err := batchDrawCalls(g)
		if err != nil {
			return changed, err
		}
		changed += n
	}
	n, err := simplifyMeshes(g, s.TargetPolygonCount)
	if err != nil {
		return changed, err
	}
	changed += n
	if s.LODLevels > 1 {
		n, err := generateLODs(g, s.LODLevels, s.ReductionFactors())
		if err != nil {
			return changed, err
		}
		changed += n
	}
	return changed, nil
}

// batchDrawCalls merges leaf mesh siblings sharing a material into one
// node per material, baking each member's local transform into its
// vertices. It returns the number of nodes removed.
func batchDrawCalls(g *scene.Graph) (int, error) {
	type batch struct {
		material string
		members  []scene.NodeID
	}
	var parents []scene.NodeID
	g.Walk(func(id scene.NodeID, _ int) bool {
		if g.ChildCount(id) > 1 {
			parents = append(parents, id)
		}
		return true
	})

	removed := 0
	var replaced []string
	for _, parent := range parents {
		var batches []*batch
		byMaterial := make(map[string]*batch)
		for _, c := range g.Children(parent) {
			n := g.Node(c)
			if n.IsInstance || !n.HasMesh() || g.ChildCount(c) > 0 {
				continue
			}
			b, ok := byMaterial[n.Material]
			if !ok {
				b = &batch{material: n.Material}
				byMaterial[n.Material] = b
				batches = append(batches, b)
			}
			b.members = append(b.members, c)
		}

		for _, b := range batches {
			if len(b.members) < 2 {
				continue
			}
			baked := make([]*scene.Mesh, 0, len(b.members))
			for _, id := range b.members {
				n := g.Node(id)
				src, ok := g.Meshes.Get(n.Mesh)
				if !ok {
					return removed, fmt.Errorf("batch %q: node %q references missing mesh %q: %w", g.Name, n.Name, n.Mesh, core.ErrInvariant)
				}
				baked = append(baked, bake(src, n.Transform))
				replaced = append(replaced, n.Mesh)
			}
			merged, err := MergeMeshes(baked)
			if err != nil {
				return removed, err
			}
			merged.Name = g.Meshes.FreeName(merged.Name)
			g.Meshes.Put(merged.Name, merged)

			first := g.Node(b.members[0])
			node := scene.NewNode(first.Name + "_batch")
			node.Mesh = merged.Name
			node.Material = b.material
			for _, id := range b.members {
				g.Remove(id)
			}
			g.AddChild(parent, node)
			removed += len(b.members) - 1
		}
	}
	pruneMeshes(g, replaced)
	return removed, nil
}

// bake returns a copy of m with the transform applied to its geometry.
func bake(m *scene.Mesh, t math.Mat4) *scene.Mesh {
	out := m.Clone()
	out.LODs = nil
	if t.IsIdentity(0) {
		return out
	}
	for i, v := range out.Vertices {
		out.Vertices[i] = t.MulPoint(v)
	}
	for i, n := range out.Normals {
		out.Normals[i] = t.MulDirection(n).Normalize()
	}
	for i, tan := range out.Tangents {
		d := t.MulDirection(tan.ToVec3()).Normalize()
		out.Tangents[i] = d.ToVec4(tan.W)
	}
	out.Bounds = m.Bounds.Transform(t)
	return out
}

// pruneMeshes deletes the named meshes, and their levels of detail, once
// no node references them.
func pruneMeshes(g *scene.Graph, names []string) {
	used := make(map[string]bool)
	for _, id := range g.MeshNodes() {
		n := g.Node(id)
		used[n.Mesh] = true
		if n.Prototype != "" {
			used[n.Prototype] = true
		}
	}
	for _, name := range names {
		if used[name] {
			continue
		}
		m, ok := g.Meshes.Get(name)
		if !ok {
			continue
		}
		for _, lod := range m.LODs {
			if !used[lod] {
				g.Meshes.Delete(lod)
			}
		}
		g.Meshes.Delete(name)
	}
}

// referencedMeshes lists, in registry order, the meshes drawn by a node.
func referencedMeshes(g *scene.Graph) []*scene.Mesh {
	used := make(map[string]bool)
	for _, id := range g.MeshNodes() {
		used[g.Node(id).Mesh] = true
	}
	var out []*scene.Mesh
	for _, m := range g.Meshes.Values() {
		if used[m.Name] {
			out = append(out, m)
		}
	}
	return out
}

func simplifyMeshes(g *scene.Graph, target int) (int, error) {
	n := 0
	for _, m := range referencedMeshes(g) {
		if m.PolygonCount() <= target {
			continue
		}
		s, err := Simplify(m, target)
		if err != nil {
			return n, err
		}
		g.Meshes.Put(m.Name, s)
		n++
	}
	return n, nil
}

// generateLODs gives every drawn mesh without levels of detail a chain of
// them. Level 0 replaces the mesh itself; the coarser levels are
// registered under their own names.
func generateLODs(g *scene.Graph, levels int, factors []float32) (int, error) {
	n := 0
	for _, m := range referencedMeshes(g) {
		if len(m.LODs) > 0 || m.PolygonCount() < minLODPolygons {
			continue
		}
		lods, err := GenerateLODs(m, levels, factors)
		if err != nil {
			return n, err
		}
		if collides(g, lods[1:]) {
			continue
		}
		base := lods[0]
		base.Name = m.Name
		for _, lod := range lods[1:] {
			g.Meshes.Put(lod.Name, lod)
			base.LODs = append(base.LODs, lod.Name)
		}
		g.Meshes.Put(base.Name, base)
		n++
	}
	return n, nil
}

func collides(g *scene.Graph, meshes []*scene.Mesh) bool {
	for _, m := range meshes {
		if g.Meshes.Has(m.Name) {
			return true
		}
	}
	return false
}
