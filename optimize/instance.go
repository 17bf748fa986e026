package optimize

import (
	"fmt"

	"scene-optimizer/analysis"
	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
)

// DeduplicateInstances returns a copy of g in which every group of nodes
// drawing the same mesh and material with similar world transforms is
// replaced by one instance node. threshold must lie in [0,1].
func DeduplicateInstances(g *scene.Graph, threshold float32) (*scene.Graph, error) {
	if g == nil {
		return nil, fmt.Errorf("deduplicate instances: %w", core.ErrNullReference)
	}
	out := g.Clone()
	if _, err := dedupInstances(out, threshold); err != nil {
		return nil, err
	}
	return out, nil
}

// dedupInstances rewrites g in place and returns the number of groups
// collapsed.
func dedupInstances(g *scene.Graph, threshold float32) (int, error) {
	if threshold < 0 || threshold > 1 {
		return 0, fmt.Errorf("instance similarity threshold %v outside [0,1]: %w", threshold, core.ErrInvalidArgument)
	}

	var nodes []scene.NodeID
	for _, id := range g.MeshNodes() {
		if id != g.Root() && !g.Node(id).IsInstance {
			nodes = append(nodes, id)
		}
	}
	world := make([]math.Mat4, len(nodes))
	for i, id := range nodes {
		world[i] = g.WorldTransform(id)
	}

	groups := analysis.Clusters(len(nodes), threshold, func(i, j int) float32 {
		a, b := g.Node(nodes[i]), g.Node(nodes[j])
		if a.Mesh != b.Mesh || a.Material != b.Material {
			return -1 // never eligible, whatever the threshold
		}
		return analysis.TransformSimilarity(world[i], world[j])
	})

	for _, idx := range groups {
		members := make([]scene.NodeID, len(idx))
		transforms := make([]math.Mat4, len(idx))
		for k, i := range idx {
			members[k] = nodes[i]
			transforms[k] = world[i]
		}
		collapseGroup(g, members, transforms)
	}
	return len(groups), nil
}

// collapseGroup adds the instance node for members and splices the members
// out of the tree.
func collapseGroup(g *scene.Graph, members []scene.NodeID, world []math.Mat4) {
	isMember := make(map[scene.NodeID]bool, len(members))
	for _, id := range members {
		isMember[id] = true
	}
	parent := g.Parent(members[0])
	for isMember[parent] {
		parent = g.Parent(parent)
	}
	toLocal := g.WorldTransform(parent).Inverse()

	anchor := g.Node(members[0])
	rep := scene.NewNode(anchor.Mesh + "_instances")
	rep.Mesh = anchor.Mesh
	rep.Material = anchor.Material
	rep.IsInstance = true
	rep.Prototype = anchor.Mesh

	var bounds core.Bounds
	mesh, hasMesh := g.Meshes.Get(anchor.Mesh)
	for i, w := range world {
		rep.InstanceTransforms = append(rep.InstanceTransforms, w.Mul(toLocal))
		if !hasMesh {
			continue
		}
		b := mesh.Bounds.Transform(w)
		if i == 0 {
			bounds = b
		} else {
			bounds = bounds.Encapsulate(b)
		}
	}
	if hasMesh {
		rep.Bounds = &bounds
	}

	for _, id := range members {
		g.Splice(id)
	}
	g.AddChild(parent, rep)
}
