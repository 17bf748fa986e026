package analysis

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
	"scene-optimizer/settings"
)

func TestAnalyzeMeshQuad(t *testing.T) {
	m := scene.NewMesh("quad",
		[]math.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}},
		[]uint32{0, 1, 2, 1, 3, 2})

	mm, err := AnalyzeMesh(m)
	require.NoError(t, err)
	assert.Equal(t, 2, mm.Polygons)
	assert.Equal(t, 4, mm.Vertices)
	assert.InDelta(t, 2.0, mm.SurfaceArea, 1e-6)
	assert.InDelta(t, 2.0, mm.VertexDensity, 1e-6)
	assert.False(t, mm.HasUVs)
	assert.False(t, mm.HighPoly)

	m.UVs = []math.Vec2{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	mm, err = AnalyzeMesh(m)
	require.NoError(t, err)
	assert.True(t, mm.HasOverlappingUVs)

	m.UVs = []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	mm, err = AnalyzeMesh(m)
	require.NoError(t, err)
	assert.False(t, mm.HasOverlappingUVs)
	assert.Equal(t, 6, mm.UVSeams)
	assert.False(t, mm.ValidUVLayout, "a full unit square covers more than 0.9")

	m.UVs = []math.Vec2{{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.25}, {X: 0.25, Y: 0.75}, {X: 0.75, Y: 0.75}}
	mm, err = AnalyzeMesh(m)
	require.NoError(t, err)
	assert.True(t, mm.ValidUVLayout)
	assert.Equal(t, 2, mm.UVSeams, "only the diagonals exceed 0.5")

	m.UVs[3] = math.NewVec2(1.2, 0.75)
	mm, err = AnalyzeMesh(m)
	require.NoError(t, err)
	assert.False(t, mm.ValidUVLayout)

	_, err = AnalyzeMesh(nil)
	assert.ErrorIs(t, err, core.ErrNullReference)
}

func TestAnalyzeMeshesHighPoly(t *testing.T) {
	g := scene.New("dense")
	plane := scene.CreatePlane("plane", 1, 1, 224) // 100352 triangles
	g.Meshes.Put(plane.Name, plane)
	flat := scene.NewMesh("flat", []math.Vec3{{}, {}, {}}, []uint32{0, 1, 2})
	g.Meshes.Put(flat.Name, flat)

	n := scene.NewNode("p")
	n.Mesh = "plane"
	g.AddChild(g.Root(), n)

	st, err := AnalyzeMeshes(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"plane"}, st.HighPoly)
	assert.Equal(t, []string{"plane"}, st.HighDensity)
	assert.Equal(t, 100353, st.TotalPolygons)
	assert.Equal(t, 100352, st.DrawnPolygons)
	// the degenerate mesh has no area and is left out of the average
	assert.InDelta(t, st.Meshes[0].VertexDensity, st.AverageDensity, 1e-6)
}

func hierarchyScene() *scene.Graph {
	g := scene.New("tree")
	g.Meshes.Put("quad", scene.CreateQuad("quad"))
	g.Materials.Put("m", scene.NewMaterial("m", "Standard"))

	a := g.AddChild(g.Root(), scene.NewNode("a"))
	b := scene.NewNode("b")
	b.Mesh, b.Material = "quad", "m"
	g.AddChild(a, b)

	g.AddChild(g.Root(), scene.NewNode("c"))

	d := scene.NewNode("d")
	d.Mesh, d.Material = "quad", "m"
	d.Transform = math.Mat4Translation(math.NewVec3(1, 0, 0))
	g.AddChild(g.Root(), d)

	e := d
	e.Name = "e"
	e.Transform = math.Mat4Translation(math.NewVec3(1.05, 0, 0))
	g.AddChild(g.Root(), e)

	f := d
	f.Name = "f"
	f.Transform = math.Mat4Translation(math.NewVec3(3, 0, 0))
	g.AddChild(g.Root(), f)
	return g
}

func TestAnalyzeHierarchy(t *testing.T) {
	g := hierarchyScene()
	hm, err := AnalyzeHierarchy(g)
	require.NoError(t, err)

	assert.Equal(t, 6, hm.TotalNodes)
	assert.Equal(t, 5, hm.LeafNodes)
	assert.Equal(t, 1, hm.IntermediateNodes)
	assert.Equal(t, 1, hm.MaxDepth)
	assert.InDelta(t, 1.0, hm.AverageChildren, 1e-9)
	assert.Equal(t, 2, hm.EmptyNodes)
	assert.Equal(t, map[string]int{"Transform": 2, "Mesh": 4}, hm.TypeCounts)
	assert.Equal(t, []scene.NodeID{g.Find("c")}, hm.Removable)
	assert.Equal(t, []scene.NodeID{g.Find("a")}, hm.Mergeable)

	require.Len(t, hm.InstanceGroups, 1)
	grp := hm.InstanceGroups[0]
	assert.Equal(t, "quad", grp.Mesh)
	assert.Equal(t, []scene.NodeID{g.Find("d"), g.Find("e")}, grp.Nodes)

	_, err = AnalyzeHierarchy(nil)
	assert.ErrorIs(t, err, core.ErrNullReference)

	empty, err := AnalyzeHierarchy(scene.New("empty"))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalNodes)
	assert.Zero(t, empty.MaxDepth)
	assert.Empty(t, empty.Removable)
}

func TestTransformSimilarity(t *testing.T) {
	base := math.Mat4TRS(math.NewVec3(1, 2, 3), math.QuaternionFromAxisAngle(math.Vec3Up, 0.3), math.Vec3One)
	near := math.Mat4TRS(math.NewVec3(1.05, 2, 3), math.QuaternionFromAxisAngle(math.Vec3Up, 0.32), math.Vec3One)
	far := math.Mat4TRS(math.NewVec3(1.5, 2, 3), math.QuaternionFromAxisAngle(math.Vec3Up, 0.3), math.Vec3One)
	big := math.Mat4TRS(math.NewVec3(1, 2, 3), math.QuaternionFromAxisAngle(math.Vec3Up, 0.3), math.NewVec3(1.2, 1, 1))

	assert.Equal(t, float32(1), TransformSimilarity(base, base))
	assert.Equal(t, float32(1), TransformSimilarity(base, near))
	assert.Equal(t, float32(0), TransformSimilarity(base, far))
	assert.Equal(t, float32(0), TransformSimilarity(base, big))

	a := scene.NewNode("a")
	a.Mesh, a.Material = "m", "x"
	b := a
	b.Material = "y"
	assert.Equal(t, float32(0), InstanceSimilarity(&a, &b, base, base))
	empty := scene.NewNode("e")
	assert.Equal(t, float32(0), InstanceSimilarity(&empty, &empty, base, base))
}

func TestClassifyTexture(t *testing.T) {
	tests := map[string]TextureType{
		"Brick_Albedo":        TextureAlbedo,
		"wood_BaseColor.png":  TextureAlbedo,
		"rock_NORMAL":         TextureNormal,
		"metal_Metallic":      TextureMetallic,
		"floor_roughness":     TextureRoughness,
		"wall_Occlusion":      TextureOcclusion,
		"lamp_emissive":       TextureEmission,
		"terrain_height":      TextureHeight,
		"cloth_DetailNormal":  TextureDetailNormal,
		"cloth_detail_albedo": TextureDetailAlbedo,
		"lut_0":               TextureCustom,
	}
	for name, want := range tests {
		assert.Equal(t, want, ClassifyTexture(name), name)
	}
}

func texturedMaterial(name string, textures int) *scene.Material {
	m := scene.NewMaterial(name, "Standard")
	for i := range textures {
		m.Set(fmt.Sprintf("_Tex%d", i), scene.TextureRef(fmt.Sprintf("tex%d", i)))
	}
	return m
}

func TestAnalyzeMaterial(t *testing.T) {
	textures := scene.NewRegistry[*scene.Texture]()
	textures.Put("albedo", &scene.Texture{Name: "albedo", Width: 1024, Height: 1024, Format: scene.FormatRGBA32})

	m := scene.NewMaterial("m", "Standard").
		Set("_MainTex", scene.TextureRef("albedo")).
		Set("_DetailTex", scene.TextureRef("albedo")).
		Set("_Color", scene.Vector(math.NewVec4(1, 1, 1, 1))).
		Set("_Glossiness", scene.Scalar(0.5)).
		AddKeyword("A").AddKeyword("B").AddKeyword("C")

	mm, err := AnalyzeMaterial(m, textures)
	require.NoError(t, err)
	assert.Equal(t, 1, mm.TextureCount)
	assert.Equal(t, int64(4<<20), mm.TextureMemory)
	assert.Equal(t, 2, mm.Samplers)
	assert.Equal(t, 2, mm.Properties)
	assert.Equal(t, 3, mm.Keywords)
	assert.Equal(t, 7, mm.Complexity)
	assert.Equal(t, int64(8), mm.Variants)
	assert.Equal(t, map[string]int{"Albedo": 2}, mm.TextureTypes)
	assert.False(t, mm.HighComplexity)
	assert.False(t, mm.Excessive)

	for _, kw := range []string{"D", "E", "F"} {
		m.AddKeyword(kw)
	}
	mm, _ = AnalyzeMaterial(m, textures)
	assert.True(t, mm.HighComplexity)

	mm, _ = AnalyzeMaterial(texturedMaterial("heavy", 9), textures)
	assert.True(t, mm.Excessive)

	_, err = AnalyzeMaterial(nil, textures)
	assert.ErrorIs(t, err, core.ErrNullReference)
}

func TestMaterialSimilarity(t *testing.T) {
	a := scene.NewMaterial("a", "Standard").Set("_Color", scene.Scalar(1)).Set("_MainTex", scene.TextureRef("t"))
	b := a.Clone()
	b.Name = "b"
	assert.InDelta(t, 1, MaterialSimilarity(a, b), 1e-6)

	b.Set("_Color", scene.Scalar(0.5))
	// textures 1, properties 0, keywords (none) 1
	assert.InDelta(t, 0.6, MaterialSimilarity(a, b), 1e-6)

	c := a.Clone()
	c.Shader = "Unlit"
	assert.Zero(t, MaterialSimilarity(a, c))

	empty1, empty2 := scene.NewMaterial("x", "S"), scene.NewMaterial("y", "S")
	assert.InDelta(t, 1, MaterialSimilarity(empty1, empty2), 1e-6)
}

func TestRedundantMaterials(t *testing.T) {
	a := scene.NewMaterial("a", "Standard").Set("_Color", scene.Scalar(1))
	b := scene.NewMaterial("b", "Standard").Set("_Color", scene.Scalar(0.2))
	c := scene.NewMaterial("c", "Standard").Set("_Color", scene.Scalar(1))
	d := scene.NewMaterial("d", "Standard").Set("_Color", scene.Scalar(0.2))
	e := scene.NewMaterial("e", "Unlit")

	groups := RedundantMaterials([]*scene.Material{a, b, c, d, e}, RedundancyThreshold)
	assert.Equal(t, [][]string{{"a", "c"}, {"b", "d"}}, groups)
}

func TestScore(t *testing.T) {
	assert.Zero(t, Score(ScoreInputs{}))
	assert.Equal(t, 10, Score(ScoreInputs{Polygons: 60_000}))
	assert.Equal(t, 100, Score(ScoreInputs{Polygons: 1e9, Depth: 1e9, Materials: 1e9, Textures: 1e9, MemoryMB: 1e9}))

	// monotonic in every input
	levels := []float64{0, 5, 10, 11, 25, 26, 50, 51, 100, 101, 250, 251, 500, 501, 1e4, 1e5 + 1, 5e5 + 1}
	inputs := func(i int, v float64) ScoreInputs {
		in := ScoreInputs{Polygons: 20_000, Depth: 7, Materials: 30, Textures: 12, MemoryMB: 120}
		switch i {
		case 0:
			in.Polygons = int(v)
		case 1:
			in.Depth = int(v)
		case 2:
			in.Materials = int(v)
		case 3:
			in.Textures = int(v)
		case 4:
			in.MemoryMB = v
		}
		return in
	}
	for factor := range 5 {
		prev := -1
		for _, v := range levels {
			s := Score(inputs(factor, v))
			assert.GreaterOrEqual(t, s, prev, "factor %d at %v", factor, v)
			assert.LessOrEqual(t, s, 100)
			prev = s
		}
	}
}

func TestAnalyzeEmptyScene(t *testing.T) {
	r, err := Analyze(context.Background(), scene.New("empty"))
	require.NoError(t, err)
	assert.Zero(t, r.Score)
	assert.Empty(t, r.Recommendations)
	assert.Zero(t, r.MemoryBytes)
}

func TestAnalyze(t *testing.T) {
	g := hierarchyScene()
	g.Textures.Put("big", &scene.Texture{Name: "big", Width: 8192, Height: 8192, Format: scene.FormatRGBAFloat}) // 1 GiB
	for i := range 3 {
		m := scene.NewMaterial(fmt.Sprintf("dup%d", i), "Standard").Set("_Color", scene.Scalar(1))
		g.Materials.Put(m.Name, m)
	}

	r, err := AnalyzeWithSettings(context.Background(), g, &settings.Settings{TargetDrawCallCount: 2, TargetMemoryUsageMB: 100})
	require.NoError(t, err)
	assert.Equal(t, "tree", r.Scene)
	assert.Equal(t, 4, r.DrawCalls)
	assert.Equal(t, 4, r.MaterialCount)
	assert.Greater(t, r.MemoryMB(), 1024.0)
	assert.Equal(t, 20, r.Score, "only memory crosses its thresholds")
	require.NotEmpty(t, r.Recommendations)

	cats := make(map[Category]bool)
	for i, rec := range r.Recommendations {
		cats[rec.Category] = true
		if i > 0 {
			prev := r.Recommendations[i-1]
			assert.True(t, prev.Priority > rec.Priority || (prev.Priority == rec.Priority && prev.Impact >= rec.Impact))
		}
		assert.True(t, rec.Impact >= 1 && rec.Impact <= 100)
	}
	assert.Equal(t, Critical, r.Recommendations[0].Priority)
	for _, c := range []Category{CategoryMemory, CategoryDrawCalls, CategoryHierarchy, CategoryMaterial} {
		assert.True(t, cats[c], c)
	}

	_, err = Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrNullReference)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Analyze(ctx, g)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteReport(t *testing.T) {
	r, err := Analyze(context.Background(), hierarchyScene())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "scene: tree")
	assert.Contains(t, out, "score:")
	assert.Contains(t, out, "priority: High")
	assert.Contains(t, out, "totalNodes: 6")
}
