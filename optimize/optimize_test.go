package optimize

import (
	"context"
	"fmt"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-optimizer/analysis"
	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
	"scene-optimizer/settings"
)

func meshNode(name, mesh, material string, x, y, z float32) scene.Node {
	n := scene.NewNode(name)
	n.Mesh = mesh
	n.Material = material
	n.Transform = math.Mat4Translation(math.NewVec3(x, y, z))
	return n
}

func newScene(name string) *scene.Graph {
	g := scene.New(name)
	g.Meshes.Put("quad", scene.CreateQuad("quad"))
	g.Materials.Put("stone", scene.NewMaterial("stone", "Standard"))
	g.Materials.Put("wood", scene.NewMaterial("wood", "Unlit"))
	return g
}

type nodeShape struct {
	depth     int
	name      string
	mesh      string
	material  string
	transform math.Mat4
}

func shapeOf(g *scene.Graph) []nodeShape {
	var out []nodeShape
	g.Walk(func(id scene.NodeID, depth int) bool {
		n := g.Node(id)
		out = append(out, nodeShape{depth, n.Name, n.Mesh, n.Material, n.Transform})
		return true
	})
	return out
}

func disabled() *settings.Settings {
	s := settings.Default()
	s.OptimizeInstances = false
	s.FlattenHierarchy = false
	s.OptimizeTransforms = false
	s.OptimizeMeshes = false
	s.OptimizeMaterials = false
	s.OptimizeTextures = false
	return s
}

func TestPipelineDisabledKeepsGraph(t *testing.T) {
	g := newScene("off")
	group := g.AddChild(g.Root(), meshNode("group", "", "stone", 1, 0, 0))
	g.AddChild(group, meshNode("a", "quad", "stone", 0, 0, 0))
	g.AddChild(group, meshNode("b", "quad", "stone", 0.01, 0, 0))

	out, results, err := New(disabled()).Run(context.Background(), g)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotSame(t, g, out)
	assert.Equal(t, g.NodeCount(), out.NodeCount())
	assert.Equal(t, shapeOf(g), shapeOf(out))
}

func TestDeduplicateInstances(t *testing.T) {
	g := newScene("dupes")
	g.AddChild(g.Root(), meshNode("a", "quad", "stone", 0, 0, 0))
	g.AddChild(g.Root(), meshNode("b", "quad", "stone", 0.05, 0, 0))
	g.AddChild(g.Root(), meshNode("c", "quad", "stone", 0.08, 0, 0))
	g.AddChild(g.Root(), meshNode("far", "quad", "stone", 5, 0, 0))
	g.AddChild(g.Root(), meshNode("other", "quad", "wood", 0, 0, 0))

	out, err := DeduplicateInstances(g, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 6, g.NodeCount(), "input untouched")
	assert.Equal(t, 6-3+1, out.NodeCount())
	assert.Equal(t, g.PolygonCount(), out.PolygonCount())
	require.NoError(t, out.Validate())

	rep := out.Find("quad_instances")
	require.NotEqual(t, scene.Nil, rep)
	n := out.Node(rep)
	assert.True(t, n.IsInstance)
	assert.Equal(t, "quad", n.Prototype)
	assert.True(t, n.Transform.IsIdentity(0))
	require.Len(t, n.InstanceTransforms, 3)
	assert.True(t, n.InstanceTransforms[1].Translation().ApproxEqual(math.NewVec3(0.05, 0, 0), 1e-6))
	require.NotNil(t, n.Bounds)
	assert.InDelta(t, 0, n.Bounds.Min().X, 1e-6)
	assert.InDelta(t, 1.08, n.Bounds.Max().X, 1e-6)

	for _, name := range []string{"a", "b", "c"} {
		assert.Equal(t, scene.Nil, out.Find(name))
	}
	assert.NotEqual(t, scene.Nil, out.Find("far"))
	assert.NotEqual(t, scene.Nil, out.Find("other"))
}

func TestDeduplicateInstancesKeepsPlacement(t *testing.T) {
	g := newScene("nested")
	group := g.AddChild(g.Root(), meshNode("group", "", "", 10, 0, 0))
	g.AddChild(group, meshNode("a", "quad", "stone", 0, 0, 0))
	b := g.AddChild(group, meshNode("b", "quad", "stone", 0, 0.05, 0))
	g.AddChild(b, meshNode("child", "", "wood", 0, 3, 0))

	out, err := DeduplicateInstances(g, 1)
	require.NoError(t, err)

	rep := out.Find("quad_instances")
	require.NotEqual(t, scene.Nil, rep)
	assert.Equal(t, out.Find("group"), out.Parent(rep))
	world := out.WorldTransform(rep)
	n := out.Node(rep)
	assert.True(t, n.InstanceTransforms[0].Mul(world).Translation().ApproxEqual(math.NewVec3(10, 0, 0), 1e-5))
	assert.True(t, n.InstanceTransforms[1].Mul(world).Translation().ApproxEqual(math.NewVec3(10, 0.05, 0), 1e-5))

	// The spliced member's child keeps its world position.
	child := out.Find("child")
	require.NotEqual(t, scene.Nil, child)
	assert.True(t, out.WorldTransform(child).Translation().ApproxEqual(math.NewVec3(10, 3.05, 0), 1e-5))
}

func TestDeduplicateInstancesErrors(t *testing.T) {
	_, err := DeduplicateInstances(nil, 0.5)
	assert.ErrorIs(t, err, core.ErrNullReference)
	for _, th := range []float32{-0.1, 1.5} {
		_, err = DeduplicateInstances(newScene("bad"), th)
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
	}
}

// chain builds Root -> a -> b -> c(mesh) -> d(mesh), each step translated.
func chain() *scene.Graph {
	g := newScene("chain")
	a := g.AddChild(g.Root(), meshNode("a", "", "", 1, 0, 0))
	b := g.AddChild(a, meshNode("b", "", "", 0, 1, 0))
	c := g.AddChild(b, meshNode("c", "quad", "stone", 0, 0, 1))
	g.AddChild(c, meshNode("d", "quad", "stone", 1, 0, 0))
	return g
}

func maxMeshDepth(g *scene.Graph) int {
	deepest := 0
	g.Walk(func(id scene.NodeID, depth int) bool {
		if g.Node(id).HasMesh() {
			deepest = max(deepest, depth)
		}
		return true
	})
	return deepest
}

func TestFlattenHierarchy(t *testing.T) {
	g := chain()
	want := map[string]math.Vec3{"c": {X: 1, Y: 1, Z: 1}, "d": {X: 2, Y: 1, Z: 1}}

	for _, depth := range []int{0, 1, 2, 5} {
		out, err := FlattenHierarchy(g, depth)
		require.NoError(t, err)
		require.NoError(t, out.Validate())
		assert.LessOrEqual(t, maxMeshDepth(out), depth, "depth %d", depth)
		hm, err := analysis.AnalyzeHierarchy(out)
		require.NoError(t, err)
		assert.LessOrEqual(t, hm.MaxDepth, depth, "depth %d", depth)
		for name, pos := range want {
			id := out.Find(name)
			require.NotEqual(t, scene.Nil, id, "depth %d: %s", depth, name)
			assert.True(t, out.WorldTransform(id).Translation().ApproxEqual(pos, 1e-5), "depth %d: %s", depth, name)
		}
	}

	out, err := FlattenHierarchy(g, 1)
	require.NoError(t, err)
	a := out.Find("a")
	assert.Equal(t, 4, out.NodeCount())
	assert.Equal(t, a, out.Parent(out.Find("c")))
	assert.Equal(t, a, out.Parent(out.Find("d")))
	assert.Equal(t, scene.Nil, out.Find("b"))

	out, err = FlattenHierarchy(g, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NodeCount())
	assert.Equal(t, scene.Nil, out.Find("a"))

	assert.Equal(t, 5, g.NodeCount(), "input untouched")
}

func TestFlattenHierarchyAnalyzedDepth(t *testing.T) {
	g := newScene("deep")
	parent := g.Root()
	for i := range 5 {
		parent = g.AddChild(parent, meshNode(fmt.Sprintf("m%d", i), "quad", "stone", 1, 0, 0))
	}
	hm, err := analysis.AnalyzeHierarchy(g)
	require.NoError(t, err)
	require.Equal(t, 4, hm.MaxDepth)

	for depth := range 5 {
		out, err := FlattenHierarchy(g, depth)
		require.NoError(t, err)
		hm, err := analysis.AnalyzeHierarchy(out)
		require.NoError(t, err)
		assert.Equal(t, depth, hm.MaxDepth, "depth %d", depth)
		assert.Equal(t, 5, hm.TotalNodes, "depth %d", depth)
		for i := range 5 {
			id := out.Find(fmt.Sprintf("m%d", i))
			require.NotEqual(t, scene.Nil, id)
			assert.InDelta(t, float32(i+1), out.WorldTransform(id).Translation().X, 1e-5, "depth %d: m%d", depth, i)
		}
	}
}

func TestFlattenHierarchyErrors(t *testing.T) {
	_, err := FlattenHierarchy(chain(), -1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = FlattenHierarchy(nil, 1)
	assert.ErrorIs(t, err, core.ErrNullReference)
}

func TestOptimizeTransforms(t *testing.T) {
	g := newScene("transforms")
	p := g.AddChild(g.Root(), meshNode("p", "", "", 1, 2, 3))
	c := scene.NewNode("c")
	c.Mesh, c.Material = "quad", "stone"
	c.Transform = math.Mat4Scale(math.NewVec3(2, 2, 2))
	g.AddChild(p, c)
	g.AddChild(g.Root(), meshNode("nearly", "quad", "stone", 1e-5, 0, 0))

	before := g.WorldTransform(g.Find("c"))
	out, err := OptimizeTransforms(g)
	require.NoError(t, err)

	assert.True(t, out.Node(out.Find("nearly")).Transform.IsIdentity(0))
	assert.True(t, out.Node(out.Find("p")).Transform.IsIdentity(0))
	assert.True(t, out.WorldTransform(out.Find("c")).ApproxEqual(before, 1e-5))

	again, err := OptimizeTransforms(out)
	require.NoError(t, err)
	assert.Equal(t, shapeOf(out), shapeOf(again))
}

func TestOptimizeTransformsRefusesShear(t *testing.T) {
	g := newScene("shear")
	parent := scene.NewNode("parent")
	parent.Transform = math.Mat4Scale(math.NewVec3(2, 1, 1))
	p := g.AddChild(g.Root(), parent)
	child := scene.NewNode("child")
	child.Mesh, child.Material = "quad", "stone"
	child.Transform = math.QuaternionFromAxisAngle(math.Vec3Front, math32.Pi/4).ToMat4()
	g.AddChild(p, child)

	out, err := OptimizeTransforms(g)
	require.NoError(t, err)
	assert.Equal(t, shapeOf(g), shapeOf(out))
}

func TestSimplify(t *testing.T) {
	plane := scene.CreatePlane("plane", 10, 10, 32)
	require.Equal(t, 2048, plane.PolygonCount())

	out, err := Simplify(plane, 500)
	require.NoError(t, err)
	assert.LessOrEqual(t, out.PolygonCount(), 500)
	assert.GreaterOrEqual(t, out.PolygonCount(), 250)
	assert.Less(t, out.VertexCount(), plane.VertexCount())
	require.NoError(t, out.Validate())
	assert.Equal(t, plane.Bounds, out.Bounds)
	assert.Equal(t, "plane", out.Name)
	assert.Equal(t, 2048, plane.PolygonCount(), "input untouched")

	same, err := Simplify(plane, 5000)
	require.NoError(t, err)
	assert.NotSame(t, plane, same)
	assert.Equal(t, plane.Indices, same.Indices)

	empty, err := Simplify(plane, 0)
	require.NoError(t, err)
	assert.Zero(t, empty.PolygonCount())
	require.NoError(t, empty.Validate())

	_, err = Simplify(plane, -1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = Simplify(nil, 10)
	assert.ErrorIs(t, err, core.ErrNullReference)
}

func TestGenerateLODs(t *testing.T) {
	for _, m := range []*scene.Mesh{
		scene.CreatePlane("plane", 10, 10, 32),
		scene.CreateSphere("sphere", 2, 32, 16),
	} {
		lods, err := GenerateLODs(m, 3, []float32{1, 0.5, 0.25})
		require.NoError(t, err)
		require.Len(t, lods, 3)

		prev := m.PolygonCount() + 1
		for i, lod := range lods {
			require.NoError(t, lod.Validate(), "%s level %d", m.Name, i)
			assert.Less(t, lod.PolygonCount(), prev, "%s level %d", m.Name, i)
			prev = lod.PolygonCount()
		}
		assert.Equal(t, m.Name+"_LOD0", lods[0].Name)
		assert.Equal(t, m.Name+"_LOD2", lods[2].Name)
		assert.Equal(t, m.PolygonCount(), lods[0].PolygonCount())
		assert.LessOrEqual(t, lods[1].PolygonCount(), m.PolygonCount()/2)
	}
}

func TestGenerateLODsErrors(t *testing.T) {
	plane := scene.CreatePlane("plane", 1, 1, 4)
	cases := []struct {
		levels  int
		factors []float32
	}{
		{0, nil},
		{2, []float32{1}},
		{2, []float32{1, 0}},
		{1, []float32{1.5}},
	}
	for _, c := range cases {
		_, err := GenerateLODs(plane, c.levels, c.factors)
		assert.ErrorIs(t, err, core.ErrInvalidArgument, "%d %v", c.levels, c.factors)
	}
	_, err := GenerateLODs(nil, 1, []float32{1})
	assert.ErrorIs(t, err, core.ErrNullReference)
}

func TestMergeMeshes(t *testing.T) {
	_, err := MergeMeshes(nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = MergeMeshes([]*scene.Mesh{scene.CreateQuad("a"), nil})
	assert.ErrorIs(t, err, core.ErrNullReference)

	a := scene.CreateQuad("a")
	single, err := MergeMeshes([]*scene.Mesh{a})
	require.NoError(t, err)
	assert.Same(t, a, single)

	b := scene.CreateQuad("b")
	b.UVs = nil
	for i := range b.Vertices {
		b.Vertices[i] = b.Vertices[i].Add(math.NewVec3(2, 0, 0))
	}
	b.RecalculateBounds()

	merged, err := MergeMeshes([]*scene.Mesh{a, b})
	require.NoError(t, err)
	require.NoError(t, merged.Validate())
	assert.Equal(t, "a_merged", merged.Name)
	assert.Equal(t, 8, merged.VertexCount())
	assert.Equal(t, 4, merged.PolygonCount())
	assert.Equal(t, []uint32{4, 5, 6, 5, 7, 6}, merged.Indices[6:])
	require.Len(t, merged.UVs, 8)
	assert.Equal(t, math.Vec2{}, merged.UVs[5])
	assert.InDelta(t, 0, merged.Bounds.Min().X, 1e-6)
	assert.InDelta(t, 3, merged.Bounds.Max().X, 1e-6)
}

func TestOptimizeMeshesBatchesDrawCalls(t *testing.T) {
	g := newScene("batch")
	for i, x := range []float32{0, 2, 4} {
		g.AddChild(g.Root(), meshNode(string(rune('a'+i)), "quad", "stone", x, 0, 0))
	}
	g.AddChild(g.Root(), meshNode("lone", "quad", "wood", 0, 5, 0))

	s := settings.Default()
	s.TargetDrawCallCount = 1
	s.LODLevels = 1
	out, err := OptimizeMeshes(g, s)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, 2, out.DrawCalls())
	assert.Equal(t, g.PolygonCount(), out.PolygonCount())
	id := out.Find("a_batch")
	require.NotEqual(t, scene.Nil, id)
	n := out.Node(id)
	assert.Equal(t, "quad_merged", n.Mesh)
	assert.Equal(t, "stone", n.Material)
	m, ok := out.Meshes.Get(n.Mesh)
	require.True(t, ok)
	assert.InDelta(t, 5, m.Bounds.Max().X, 1e-6)
	assert.True(t, out.Meshes.Has("quad"), "still drawn by lone")
}

func TestOptimizeMeshesSimplifiesAndAddsLODs(t *testing.T) {
	g := scene.New("lods")
	g.Meshes.Put("plane", scene.CreatePlane("plane", 10, 10, 16))
	g.Materials.Put("stone", scene.NewMaterial("stone", "Standard"))
	g.AddChild(g.Root(), meshNode("ground", "plane", "stone", 0, 0, 0))

	s := settings.Default()
	s.TargetPolygonCount = 300
	out, err := OptimizeMeshes(g, s)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	base, ok := out.Meshes.Get("plane")
	require.True(t, ok)
	assert.LessOrEqual(t, base.PolygonCount(), 300)
	require.Equal(t, []string{"plane_LOD1", "plane_LOD2"}, base.LODs)
	prev := base.PolygonCount()
	for _, name := range base.LODs {
		lod, ok := out.Meshes.Get(name)
		require.True(t, ok, name)
		assert.Less(t, lod.PolygonCount(), prev, name)
		prev = lod.PolygonCount()
	}

	again, err := OptimizeMeshes(out, s)
	require.NoError(t, err)
	assert.Equal(t, out.Meshes.Names(), again.Meshes.Names())
}

func TestMergeMaterials(t *testing.T) {
	g := newScene("materials")
	g.Materials.Put("stone2", scene.NewMaterial("stone2", "Standard"))
	g.AddChild(g.Root(), meshNode("a", "quad", "stone", 0, 0, 0))
	g.AddChild(g.Root(), meshNode("b", "quad", "stone2", 1, 0, 0))
	g.AddChild(g.Root(), meshNode("c", "quad", "wood", 2, 0, 0))

	out, err := MergeMaterials(g, 0.95)
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	assert.Equal(t, []string{"stone", "wood"}, out.Materials.Names())
	assert.Equal(t, "stone", out.Node(out.Find("b")).Material)
	assert.Equal(t, "wood", out.Node(out.Find("c")).Material)

	_, err = MergeMaterials(g, 2)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestOptimizeTextures(t *testing.T) {
	g := scene.New("textures")
	g.Textures.Put("big", &scene.Texture{Name: "big", Width: 4096, Height: 4096, Format: scene.FormatRGBA32})
	g.Textures.Put("small", &scene.Texture{Name: "small", Width: 2, Height: 2, Format: scene.FormatRGBA32})
	g.Textures.Put("unused", &scene.Texture{Name: "unused", Width: 64, Height: 64, Format: scene.FormatRGBA32})
	m := scene.NewMaterial("m", "Standard").
		Set("_MainTex", scene.TextureRef("big")).
		Set("_BumpMap", scene.TextureRef("small"))
	g.Materials.Put("m", m)

	out, err := OptimizeTextures(g, 1024, 1<<20)
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	assert.Equal(t, []string{"big", "small"}, out.Textures.Names())
	big, _ := out.Textures.Get("big")
	assert.Equal(t, 256, big.Width)
	assert.Equal(t, 256, big.Height)
	small, _ := out.Textures.Get("small")
	assert.Equal(t, 2, small.Width)

	orig, _ := g.Textures.Get("big")
	assert.Equal(t, 4096, orig.Width, "input untouched")

	_, err = OptimizeTextures(g, -1, 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestPipelineRunsPassesInOrder(t *testing.T) {
	g := newScene("full")
	group := g.AddChild(g.Root(), meshNode("group", "", "", 0, 1, 0))
	g.AddChild(group, meshNode("a", "quad", "stone", 0, 0, 0))
	g.AddChild(group, meshNode("b", "quad", "stone", 0.01, 0, 0))
	before := shapeOf(g)

	out, results, err := New(settings.Default()).Run(context.Background(), g)
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	assert.Equal(t, before, shapeOf(g), "input untouched")

	var names []string
	for _, r := range results {
		names = append(names, r.Pass)
	}
	assert.Equal(t, []string{PassInstances, PassFlatten, PassTransforms, PassMeshes, PassMaterials, PassTextures}, names)
	assert.Equal(t, 1, results[0].Changed)
	assert.Equal(t, 2, results[0].DrawCallsBefore)
	assert.Equal(t, 1, results[0].DrawCallsAfter)
	assert.Equal(t, results[0].NodesAfter, results[1].NodesBefore)
}

func TestPipelineErrors(t *testing.T) {
	ctx := context.Background()
	_, _, err := New(nil).Run(ctx, newScene("x"))
	assert.ErrorIs(t, err, core.ErrNullReference)
	_, _, err = New(settings.Default()).Run(ctx, nil)
	assert.ErrorIs(t, err, core.ErrNullReference)

	s := settings.Default()
	s.InstanceSimilarityThreshold = 3
	_, _, err = New(s).Run(ctx, newScene("x"))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	broken := newScene("broken")
	broken.AddChild(broken.Root(), meshNode("ghost", "missing", "", 0, 0, 0))
	_, _, err = New(settings.Default()).Run(ctx, broken)
	assert.ErrorIs(t, err, core.ErrInvariant)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	out, _, err := New(settings.Default()).Run(cancelled, newScene("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}
