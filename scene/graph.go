package scene

import (
	"fmt"

	"scene-optimizer/math"
)

type slot struct {
	node     Node
	parent   NodeID
	children []NodeID
	alive    bool
}

// Graph is a scene: a tree of nodes stored in an arena and addressed by
// NodeID, plus the registries its nodes refer to.
//
// The pipeline never mutates a caller's Graph; passes operate on a Clone.
type Graph struct {
	Name      string
	Meshes    *Registry[*Mesh]
	Materials *Registry[*Material]
	Textures  *Registry[*Texture]

	slots []slot
	root  NodeID
	live  int
}

// New creates an empty graph holding only the root node.
func New(name string) *Graph {
	g := &Graph{
		Name:      name,
		Meshes:    NewRegistry[*Mesh](),
		Materials: NewRegistry[*Material](),
		Textures:  NewRegistry[*Texture](),
	}
	g.root = g.alloc(NewNode("Root"), Nil)
	return g
}

func (g *Graph) alloc(n Node, parent NodeID) NodeID {
	id := NodeID(len(g.slots))
	g.slots = append(g.slots, slot{node: n, parent: parent, alive: true})
	g.live++
	return id
}

func (g *Graph) Root() NodeID { return g.root }

// Valid reports whether id names a live node.
func (g *Graph) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.slots) && g.slots[id].alive
}

func (g *Graph) mustSlot(id NodeID) *slot {
	if !g.Valid(id) {
		panic(fmt.Sprintf("scene: invalid node id %d", id))
	}
	return &g.slots[id]
}

// Node returns the node stored under id. The pointer stays valid until the
// next AddChild.
func (g *Graph) Node(id NodeID) *Node { return &g.mustSlot(id).node }

func (g *Graph) Parent(id NodeID) NodeID { return g.mustSlot(id).parent }

// Children returns a copy of the child list of id, in order.
func (g *Graph) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), g.mustSlot(id).children...)
}

func (g *Graph) ChildCount(id NodeID) int { return len(g.mustSlot(id).children) }

// NodeCount returns the number of live nodes, root included.
func (g *Graph) NodeCount() int { return g.live }

// AddChild appends n as the last child of parent.
func (g *Graph) AddChild(parent NodeID, n Node) NodeID {
	g.mustSlot(parent)
	id := g.alloc(n, parent)
	g.slots[parent].children = append(g.slots[parent].children, id)
	return id
}

func (g *Graph) detach(id NodeID) {
	s := g.mustSlot(id)
	if s.parent == Nil {
		return
	}
	p := &g.slots[s.parent]
	for i, c := range p.children {
		if c == id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	s.parent = Nil
}

// Remove detaches id and deletes its whole subtree.
func (g *Graph) Remove(id NodeID) {
	if id == g.root {
		panic("scene: cannot remove the root")
	}
	g.detach(id)
	g.kill(id)
}

func (g *Graph) kill(id NodeID) {
	s := &g.slots[id]
	for _, c := range s.children {
		g.kill(c)
	}
	s.children = nil
	s.alive = false
	g.live--
}

// IsAncestor reports whether a is a proper ancestor of b.
func (g *Graph) IsAncestor(a, b NodeID) bool {
	for p := g.Parent(b); p != Nil; p = g.slots[p].parent {
		if p == a {
			return true
		}
	}
	return false
}

// SetParent moves id (with its subtree) to the end of parent's children.
// The local transform is kept as is.
func (g *Graph) SetParent(id, parent NodeID) {
	if id == g.root {
		panic("scene: cannot reparent the root")
	}
	g.mustSlot(parent)
	if id == parent || g.IsAncestor(id, parent) {
		panic(fmt.Sprintf("scene: reparenting %d under %d creates a cycle", id, parent))
	}
	g.detach(id)
	g.slots[id].parent = parent
	g.slots[parent].children = append(g.slots[parent].children, id)
}

// Splice removes id alone: its children take its place in the parent's
// child list, with id's transform folded into theirs so that their world
// placement is unchanged.
func (g *Graph) Splice(id NodeID) {
	if id == g.root {
		panic("scene: cannot splice the root")
	}
	s := g.mustSlot(id)
	parent := s.parent
	local := s.node.Transform
	kids := s.children

	p := &g.slots[parent]
	pos := 0
	for i, c := range p.children {
		if c == id {
			pos = i
			break
		}
	}
	for _, c := range kids {
		cs := &g.slots[c]
		cs.parent = parent
		cs.node.Transform = cs.node.Transform.Mul(local)
	}
	merged := make([]NodeID, 0, len(p.children)-1+len(kids))
	merged = append(merged, p.children[:pos]...)
	merged = append(merged, kids...)
	merged = append(merged, p.children[pos+1:]...)
	p.children = merged

	s.children = nil
	s.parent = Nil
	s.alive = false
	g.live--
}

// RootDepth is the depth of the scene container. Its children, the scene's
// top-level nodes, have depth 0.
const RootDepth = -1

// Depth returns how many levels id sits below the scene's top level.
func (g *Graph) Depth(id NodeID) int {
	d := RootDepth
	for p := g.Parent(id); p != Nil; p = g.slots[p].parent {
		d++
	}
	return d
}

// WorldTransform composes the local transforms from id up to the root.
func (g *Graph) WorldTransform(id NodeID) math.Mat4 {
	m := g.Node(id).Transform
	for p := g.Parent(id); p != Nil; p = g.slots[p].parent {
		m = m.Mul(g.slots[p].node.Transform)
	}
	return m
}

// RelativeTransform composes the transforms from id up to, but excluding,
// ancestor.
func (g *Graph) RelativeTransform(id, ancestor NodeID) math.Mat4 {
	m := g.Node(id).Transform
	for p := g.Parent(id); p != Nil && p != ancestor; p = g.slots[p].parent {
		m = m.Mul(g.slots[p].node.Transform)
	}
	return m
}

// Walk visits every node depth-first, parents before children, passing
// the same depth Depth reports. Returning false from fn skips the node's
// subtree.
func (g *Graph) Walk(fn func(id NodeID, depth int) bool) {
	g.WalkFrom(g.root, RootDepth, fn)
}

// WalkFrom is Walk restricted to the subtree rooted at id.
func (g *Graph) WalkFrom(id NodeID, depth int, fn func(id NodeID, depth int) bool) {
	if !fn(id, depth) {
		return
	}
	for _, c := range g.Children(id) {
		if g.Valid(c) {
			g.WalkFrom(c, depth+1, fn)
		}
	}
}

// Descendants lists the subtree of id in pre-order, id excluded.
func (g *Graph) Descendants(id NodeID) []NodeID {
	var out []NodeID
	g.WalkFrom(id, 0, func(n NodeID, _ int) bool {
		if n != id {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Find returns the first node named name in pre-order, or Nil.
func (g *Graph) Find(name string) NodeID {
	found := Nil
	g.Walk(func(id NodeID, _ int) bool {
		if found != Nil {
			return false
		}
		if g.slots[id].node.Name == name {
			found = id
			return false
		}
		return true
	})
	return found
}

// MeshNodes lists the live nodes that reference a mesh, in pre-order.
func (g *Graph) MeshNodes() []NodeID {
	var out []NodeID
	g.Walk(func(id NodeID, _ int) bool {
		if g.slots[id].node.HasMesh() {
			out = append(out, id)
		}
		return true
	})
	return out
}

// DrawCalls estimates draw calls: one per mesh-bearing node, or one per
// instance batch for instance nodes.
func (g *Graph) DrawCalls() int {
	return len(g.MeshNodes())
}

// PolygonCount sums the triangles drawn by the tree, counting a mesh once
// per node (and once per instance) that references it.
func (g *Graph) PolygonCount() int {
	total := 0
	for _, id := range g.MeshNodes() {
		n := g.Node(id)
		m, ok := g.Meshes.Get(n.Mesh)
		if !ok {
			continue
		}
		k := 1
		if n.IsInstance && len(n.InstanceTransforms) > 0 {
			k = len(n.InstanceTransforms)
		}
		total += k * m.PolygonCount()
	}
	return total
}
