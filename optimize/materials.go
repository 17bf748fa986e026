package optimize

import (
	"fmt"

	"scene-optimizer/analysis"
	"scene-optimizer/core"
	"scene-optimizer/scene"
)

// MergeMaterials returns a copy of g in which every group of materials at
// least threshold similar is collapsed onto its first member.
func MergeMaterials(g *scene.Graph, threshold float32) (*scene.Graph, error) {
	if g == nil {
		return nil, fmt.Errorf("merge materials: %w", core.ErrNullReference)
	}
	out := g.Clone()
	if _, err := mergeMaterials(out, threshold); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeMaterials rewrites g in place and returns the number of materials
// removed.
func mergeMaterials(g *scene.Graph, threshold float32) (int, error) {
	if threshold < 0 || threshold > 1 {
		return 0, fmt.Errorf("material similarity threshold %v outside [0,1]: %w", threshold, core.ErrInvalidArgument)
	}
	alias := make(map[string]string)
	for _, group := range analysis.RedundantMaterials(g.Materials.Values(), threshold) {
		for _, name := range group[1:] {
			alias[name] = group[0]
		}
	}
	if len(alias) == 0 {
		return 0, nil
	}
	g.Walk(func(id scene.NodeID, _ int) bool {
		n := g.Node(id)
		if anchor, ok := alias[n.Material]; ok {
			n.Material = anchor
		}
		return true
	})
	for name := range alias {
		g.Materials.Delete(name)
	}
	return len(alias), nil
}
