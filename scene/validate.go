package scene

import (
	"fmt"

	"scene-optimizer/core"
)

// Validate checks the graph invariants: the tree is acyclic and its parent
// links agree with the child lists, every referenced mesh, material and
// texture exists, every mesh is a well-formed triangle list, and material
// keywords are sorted without repeats. Errors
// wrap core.ErrInvariant.
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("validate: %w", core.ErrNullReference)
	}
	if !g.Valid(g.root) {
		return fmt.Errorf("validate %q: missing root: %w", g.Name, core.ErrInvariant)
	}

	visited := make([]bool, len(g.slots))
	stack := []NodeID{g.root}
	seen := 0
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			return fmt.Errorf("validate %q: node %d reached twice (cycle or shared child): %w", g.Name, id, core.ErrInvariant)
		}
		visited[id] = true
		seen++

		s := &g.slots[id]
		if err := g.checkRefs(&s.node); err != nil {
			return err
		}
		for _, c := range s.children {
			if !g.Valid(c) {
				return fmt.Errorf("validate %q: node %q has dead child %d: %w", g.Name, s.node.Name, c, core.ErrInvariant)
			}
			if g.slots[c].parent != id {
				return fmt.Errorf("validate %q: node %d parent link mismatch: %w", g.Name, c, core.ErrInvariant)
			}
			stack = append(stack, c)
		}
	}
	if seen != g.live {
		return fmt.Errorf("validate %q: %d live nodes unreachable from root: %w", g.Name, g.live-seen, core.ErrInvariant)
	}

	for _, m := range g.Meshes.Values() {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("validate %q: %w", g.Name, err)
		}
	}
	for _, m := range g.Materials.Values() {
		if !m.keywordsCanonical() {
			return fmt.Errorf("validate %q: material %q keywords %v are unsorted or repeated: %w", g.Name, m.Name, m.Keywords, core.ErrInvariant)
		}
		for _, t := range m.Textures() {
			if !g.Textures.Has(t) {
				return fmt.Errorf("validate %q: material %q references missing texture %q: %w", g.Name, m.Name, t, core.ErrInvariant)
			}
		}
	}
	return nil
}

func (g *Graph) checkRefs(n *Node) error {
	if n.Mesh != "" && !g.Meshes.Has(n.Mesh) {
		return fmt.Errorf("validate %q: node %q references missing mesh %q: %w", g.Name, n.Name, n.Mesh, core.ErrInvariant)
	}
	if n.Material != "" && !g.Materials.Has(n.Material) {
		return fmt.Errorf("validate %q: node %q references missing material %q: %w", g.Name, n.Name, n.Material, core.ErrInvariant)
	}
	return nil
}
