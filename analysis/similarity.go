package analysis

import (
	"github.com/chewxy/math32"

	"scene-optimizer/math"
	"scene-optimizer/scene"
)

// TransformTolerance bounds the per-component difference of position,
// rotation and scale for two transforms to count as similar.
const TransformTolerance = 0.1

// TransformSimilarity is 1 when every translation, rotation and scale
// component of a and b differs by at most TransformTolerance, else 0.
func TransformSimilarity(a, b math.Mat4) float32 {
	ta, qa, sa := a.Decompose()
	tb, qb, sb := b.Decompose()
	qb = qb.Aligned(qa)

	diffs := [...]float32{
		ta.X - tb.X, ta.Y - tb.Y, ta.Z - tb.Z,
		qa.X - qb.X, qa.Y - qb.Y, qa.Z - qb.Z, qa.W - qb.W,
		sa.X - sb.X, sa.Y - sb.Y, sa.Z - sb.Z,
	}
	for _, d := range diffs {
		if math32.Abs(d) > TransformTolerance {
			return 0
		}
	}
	return 1
}

// InstanceSimilarity scores two nodes as candidates for instancing. Nodes
// without a mesh, or with different meshes or materials, score 0.
func InstanceSimilarity(a, b *scene.Node, ta, tb math.Mat4) float32 {
	if !a.HasMesh() || a.Mesh != b.Mesh || a.Material != b.Material {
		return 0
	}
	return TransformSimilarity(ta, tb)
}

// Weights of the material similarity categories.
const (
	textureWeight  = 0.4
	propertyWeight = 0.4
	keywordWeight  = 0.2
)

// MaterialSimilarity returns a score in [0,1]. Materials on different
// shaders score 0; otherwise it is the weighted fraction of matching
// texture bindings, property values and keywords. A category neither
// material uses counts as a full match.
func MaterialSimilarity(a, b *scene.Material) float32 {
	if a.Shader != b.Shader {
		return 0
	}
	var texUnion, texMatch, propUnion, propMatch int
	for k, va := range a.Properties {
		vb, ok := b.Properties[k]
		if va.Kind == scene.KindTexture || (ok && vb.Kind == scene.KindTexture) {
			texUnion++
			if ok && va.Equal(vb) {
				texMatch++
			}
			continue
		}
		propUnion++
		if ok && va.Equal(vb) {
			propMatch++
		}
	}
	for k, vb := range b.Properties {
		if _, ok := a.Properties[k]; ok {
			continue
		}
		if vb.Kind == scene.KindTexture {
			texUnion++
		} else {
			propUnion++
		}
	}

	kwUnion := len(a.Keywords)
	kwMatch := 0
	for _, kw := range b.Keywords {
		if a.HasKeyword(kw) {
			kwMatch++
		} else {
			kwUnion++
		}
	}

	return textureWeight*fraction(texMatch, texUnion) +
		propertyWeight*fraction(propMatch, propUnion) +
		keywordWeight*fraction(kwMatch, kwUnion)
}

func fraction(match, union int) float32 {
	if union == 0 {
		return 1
	}
	return float32(match) / float32(union)
}

// Clusters groups items greedily around anchors: in input order, each
// unassigned item claims every later unassigned item scoring at least
// threshold against it. Only clusters of two or more are returned, as
// index lists.
func Clusters(n int, threshold float32, similarity func(i, j int) float32) [][]int {
	assigned := make([]bool, n)
	var out [][]int
	for i := 0; i < n; i++ {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []int{i}
		for j := i + 1; j < n; j++ {
			if !assigned[j] && similarity(i, j) >= threshold {
				assigned[j] = true
				group = append(group, j)
			}
		}
		if len(group) > 1 {
			out = append(out, group)
		}
	}
	return out
}

// RedundantMaterials clusters mats at threshold and returns the groups
// by name, anchor first.
func RedundantMaterials(mats []*scene.Material, threshold float32) [][]string {
	groups := Clusters(len(mats), threshold, func(i, j int) float32 {
		return MaterialSimilarity(mats[i], mats[j])
	})
	out := make([][]string, len(groups))
	for gi, idx := range groups {
		names := make([]string, len(idx))
		for k, i := range idx {
			names[k] = mats[i].Name
		}
		out[gi] = names
	}
	return out
}
