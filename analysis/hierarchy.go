package analysis

import (
	"fmt"

	"scene-optimizer/core"
	"scene-optimizer/scene"
)

// NodeInfo is the per-node part of HierarchyMetrics.
type NodeInfo struct {
	ID       scene.NodeID `yaml:"id"`
	Name     string       `yaml:"name"`
	Depth    int          `yaml:"depth"`
	Children int          `yaml:"children"`
}

// InstanceGroup is a set of sibling nodes drawing the same mesh and
// material with similar transforms.
type InstanceGroup struct {
	Mesh     string         `yaml:"mesh"`
	Material string         `yaml:"material"`
	Nodes    []scene.NodeID `yaml:"nodes"`
}

// HierarchyMetrics describes the shape of a scene tree. The graph root is
// the scene container and is not counted; its children have depth 0.
type HierarchyMetrics struct {
	TotalNodes        int            `yaml:"totalNodes"`
	LeafNodes         int            `yaml:"leafNodes"`
	IntermediateNodes int            `yaml:"intermediateNodes"`
	MaxDepth          int            `yaml:"maxDepth"`
	AverageChildren   float64        `yaml:"averageChildren"` // over intermediate nodes
	EmptyNodes        int            `yaml:"emptyNodes"`
	TypeCounts        map[string]int `yaml:"typeCounts"`
	Nodes             []NodeInfo     `yaml:"-"`

	Removable      []scene.NodeID  `yaml:"removable,omitempty"`
	Mergeable      []scene.NodeID  `yaml:"mergeable,omitempty"`
	InstanceGroups []InstanceGroup `yaml:"instanceGroups,omitempty"`
}

// AnalyzeHierarchy walks g once and collects HierarchyMetrics.
func AnalyzeHierarchy(g *scene.Graph) (*HierarchyMetrics, error) {
	if g == nil {
		return nil, fmt.Errorf("analyze hierarchy: %w", core.ErrNullReference)
	}
	hm := &HierarchyMetrics{TypeCounts: make(map[string]int)}
	childSum := 0

	g.Walk(func(id scene.NodeID, depth int) bool {
		children := g.ChildCount(id)
		if children > 1 {
			hm.InstanceGroups = append(hm.InstanceGroups, siblingGroups(g, g.Children(id))...)
		}
		if id == g.Root() {
			return true
		}
		n := g.Node(id)
		hm.TotalNodes++
		hm.Nodes = append(hm.Nodes, NodeInfo{ID: id, Name: n.Name, Depth: depth, Children: children})
		hm.TypeCounts[n.Type().String()]++
		hm.MaxDepth = max(hm.MaxDepth, depth)

		if n.IsEmpty() {
			hm.EmptyNodes++
		}
		if children == 0 {
			hm.LeafNodes++
			if n.IsEmpty() {
				hm.Removable = append(hm.Removable, id)
			}
		} else {
			hm.IntermediateNodes++
			childSum += children
			if children == 1 && n.Transform.IsIdentity(0) {
				hm.Mergeable = append(hm.Mergeable, id)
			}
		}
		return true
	})

	if hm.IntermediateNodes > 0 {
		hm.AverageChildren = float64(childSum) / float64(hm.IntermediateNodes)
	}
	return hm, nil
}

// siblingGroups clusters siblings that could share one instanced draw.
func siblingGroups(g *scene.Graph, siblings []scene.NodeID) []InstanceGroup {
	clusters := Clusters(len(siblings), 1, func(i, j int) float32 {
		a, b := g.Node(siblings[i]), g.Node(siblings[j])
		return InstanceSimilarity(a, b, a.Transform, b.Transform)
	})
	out := make([]InstanceGroup, 0, len(clusters))
	for _, idx := range clusters {
		anchor := g.Node(siblings[idx[0]])
		grp := InstanceGroup{Mesh: anchor.Mesh, Material: anchor.Material}
		for _, i := range idx {
			grp.Nodes = append(grp.Nodes, siblings[i])
		}
		out = append(out, grp)
	}
	return out
}
