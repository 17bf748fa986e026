package optimize

import (
	"fmt"

	"github.com/chewxy/math32"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
)

const (
	// identityEpsilon is the per-element tolerance for snapping a matrix
	// to the identity.
	identityEpsilon = 1e-4
	// scaleEpsilon bounds the scale error a fold may introduce.
	scaleEpsilon = 1e-3
)

// OptimizeTransforms returns a copy of g with near-identity transforms
// snapped to the identity and single-child parents folded into their
// child. World placement of every node is preserved and the pass is
// idempotent.
func OptimizeTransforms(g *scene.Graph) (*scene.Graph, error) {
	if g == nil {
		return nil, fmt.Errorf("optimize transforms: %w", core.ErrNullReference)
	}
	out := g.Clone()
	optimizeTransforms(out)
	return out, nil
}

// optimizeTransforms rewrites g in place and returns the number of
// transforms changed.
func optimizeTransforms(g *scene.Graph) int {
	changed := snapIdentities(g)
	for {
		folded := 0
		g.Walk(func(id scene.NodeID, _ int) bool {
			if foldIntoChild(g, id) {
				folded++
			}
			return true
		})
		if folded == 0 {
			break
		}
		changed += folded
		changed += snapIdentities(g)
	}
	return changed
}

func snapIdentities(g *scene.Graph) int {
	n := 0
	g.Walk(func(id scene.NodeID, _ int) bool {
		node := g.Node(id)
		if node.Transform.IsIdentity(identityEpsilon) && !node.Transform.IsIdentity(0) {
			node.Transform = math.Mat4Identity()
			n++
		}
		return true
	})
	return n
}

// foldIntoChild moves the transform of id into its only child when id
// draws nothing itself and the composition keeps scale within
// scaleEpsilon.
func foldIntoChild(g *scene.Graph, id scene.NodeID) bool {
	parent := g.Node(id)
	if g.ChildCount(id) != 1 || parent.HasMesh() || parent.Transform.IsIdentity(0) {
		return false
	}
	child := g.Node(g.Children(id)[0])
	composed := child.Transform.Mul(parent.Transform)
	if !scalePreserved(parent.Transform, child.Transform, composed) {
		return false
	}
	child.Transform = composed
	parent.Transform = math.Mat4Identity()
	return true
}

// scalePreserved reports whether the scale decomposed from composed matches
// the product of the parent and child scales. Rotated non-uniform scale
// produces shear, which a TRS transform cannot hold.
func scalePreserved(parent, child, composed math.Mat4) bool {
	_, _, sp := parent.Decompose()
	_, _, sc := child.Decompose()
	_, _, s := composed.Decompose()
	want := sp.MulVec(sc)
	return math32.Abs(s.X-want.X) <= scaleEpsilon &&
		math32.Abs(s.Y-want.Y) <= scaleEpsilon &&
		math32.Abs(s.Z-want.Z) <= scaleEpsilon
}
