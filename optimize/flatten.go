package optimize

import (
	"fmt"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
)

// FlattenHierarchy returns a copy of g where no mesh node sits deeper than
// maxDepth. Mesh nodes below that are lifted to be direct children of their
// depth maxDepth-1 ancestor (the scene root when maxDepth is 0), with the
// in-between transforms folded in. Intermediate nodes that end up without
// meshes are discarded.
func FlattenHierarchy(g *scene.Graph, maxDepth int) (*scene.Graph, error) {
	if g == nil {
		return nil, fmt.Errorf("flatten hierarchy: %w", core.ErrNullReference)
	}
	out := g.Clone()
	if _, err := flatten(out, maxDepth); err != nil {
		return nil, err
	}
	return out, nil
}

// flatten rewrites g in place and returns the number of nodes removed.
func flatten(g *scene.Graph, maxDepth int) (int, error) {
	if maxDepth < 0 {
		return 0, fmt.Errorf("flatten depth %d is negative: %w", maxDepth, core.ErrInvalidArgument)
	}
	before := g.NodeCount()

	var collapseAt []scene.NodeID
	g.Walk(func(id scene.NodeID, depth int) bool {
		if depth == maxDepth-1 {
			collapseAt = append(collapseAt, id)
			return false
		}
		return true
	})
	for _, id := range collapseAt {
		collapse(g, id)
	}
	return before - g.NodeCount(), nil
}

// collapse replaces the subtree below id with its mesh nodes, each a
// direct child of id.
func collapse(g *scene.Graph, id scene.NodeID) {
	children := g.Children(id)
	if len(children) == 0 {
		return
	}

	type lifted struct {
		node  scene.Node
		local math.Mat4
	}
	var keep []lifted
	for _, d := range g.Descendants(id) {
		n := g.Node(d)
		if n.HasMesh() {
			keep = append(keep, lifted{node: n.Clone(), local: g.RelativeTransform(d, id)})
		}
	}
	if len(keep) == len(children) && allLeafMeshes(g, children) {
		return // already flat
	}

	for _, c := range children {
		g.Remove(c)
	}
	for _, k := range keep {
		k.node.Transform = k.local
		g.AddChild(id, k.node)
	}
}

func allLeafMeshes(g *scene.Graph, ids []scene.NodeID) bool {
	for _, id := range ids {
		if g.ChildCount(id) > 0 || !g.Node(id).HasMesh() {
			return false
		}
	}
	return true
}
