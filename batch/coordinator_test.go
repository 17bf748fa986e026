package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
	"scene-optimizer/settings"
)

func testScene(name string) *scene.Graph {
	g := scene.New(name)
	g.Meshes.Put("quad", scene.CreateQuad("quad"))
	g.Materials.Put("stone", scene.NewMaterial("stone", "Standard"))
	for i := range 3 {
		n := scene.NewNode(fmt.Sprintf("copy%d", i))
		n.Mesh, n.Material = "quad", "stone"
		n.Transform = math.Mat4Translation(math.NewVec3(float32(i)*0.01, 0, 0))
		g.AddChild(g.Root(), n)
	}
	return g
}

// memScenes imports scenes from a map; missing paths fail like missing
// files.
type memScenes struct {
	scenes map[string]*scene.Graph
	// block, when set, is received from before every import.
	block   chan struct{}
	entered chan struct{}
}

func (m *memScenes) Import(_ context.Context, path string) (*scene.Graph, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	g, ok := m.scenes[path]
	if !ok {
		return nil, fmt.Errorf("import %q: %w", path, core.ErrNotFound)
	}
	return g, nil
}

type memSink struct {
	mu       sync.Mutex
	exported map[string]*scene.Graph
}

func (m *memSink) Export(_ context.Context, path string, g *scene.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exported == nil {
		m.exported = make(map[string]*scene.Graph)
	}
	m.exported[path] = g
	return nil
}

func balanced(t *testing.T) *settings.Profile {
	p, ok := settings.Preset(settings.Balanced)
	require.True(t, ok)
	return p
}

func TestRunIsolatesFailures(t *testing.T) {
	supplier := &memScenes{scenes: map[string]*scene.Graph{
		"one.glb":   testScene("one"),
		"three.glb": testScene("three"),
	}}
	sink := &memSink{}
	c := &Coordinator{Supplier: supplier, Sink: sink, Output: OutputDir("out")}

	var progress []float64
	var done []string
	var batchErr error
	var final *Summary
	c.Hooks = Hooks{
		OnProgress:   func(f float64) { progress = append(progress, f) },
		OnItemDone:   func(s string) { done = append(done, s) },
		OnBatchError: func(err error) { batchErr = err },
		OnBatchDone:  func(s *Summary) { final = s },
	}

	sum, err := c.Run(context.Background(), []string{"one.glb", "two.glb", "three.glb"}, balanced(t))
	require.NoError(t, err)
	assert.Equal(t, Completed, c.State())
	assert.Same(t, sum, final)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.False(t, sum.Cancelled)
	assert.Equal(t, []string{"one.glb", "two.glb", "three.glb"}, done)
	require.Len(t, progress, 3)
	assert.InDelta(t, 1.0, progress[2], 1e-9)
	assert.ErrorIs(t, batchErr, core.ErrNotFound)
	assert.ErrorIs(t, sum.Err, core.ErrNotFound)

	require.Len(t, sum.Results, 3)
	assert.True(t, sum.Results[0].Success)
	assert.False(t, sum.Results[1].Success)
	assert.NotEmpty(t, sum.Results[1].Error)
	assert.NotEmpty(t, sum.Results[2].Passes)

	require.Len(t, sink.exported, 2)
	out := sink.exported[filepath.Join("out", "one.glb")]
	require.NotNil(t, out)
	assert.Equal(t, 1, out.DrawCalls(), "near copies collapse to one instance node")
	assert.Equal(t, 3, supplier.scenes["one.glb"].DrawCalls(), "input untouched")
}

func TestRunCancelBetweenScenes(t *testing.T) {
	supplier := &memScenes{scenes: map[string]*scene.Graph{
		"a.json": testScene("a"), "b.json": testScene("b"), "c.json": testScene("c"),
	}}
	c := &Coordinator{Supplier: supplier, Sink: &memSink{}}
	var final *Summary
	c.Hooks.OnItemDone = func(string) { c.Cancel() }
	c.Hooks.OnBatchDone = func(s *Summary) { final = s }

	sum, err := c.Run(context.Background(), []string{"a.json", "b.json", "c.json"}, balanced(t))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, c.State())
	require.NotNil(t, final)
	assert.True(t, sum.Cancelled)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 2, sum.Skipped)

	// A cancelled coordinator runs again from scratch.
	c.Hooks.OnItemDone = nil
	sum, err = c.Run(context.Background(), []string{"a.json", "b.json"}, balanced(t))
	require.NoError(t, err)
	assert.Equal(t, Completed, c.State())
	assert.Equal(t, 2, sum.Succeeded)
}

func TestRunCancelledContext(t *testing.T) {
	c := &Coordinator{Supplier: &memScenes{}, Sink: &memSink{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := c.Run(ctx, []string{"a.glb"}, balanced(t))
	require.NoError(t, err)
	assert.True(t, sum.Cancelled)
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, sum.Results)
	assert.Equal(t, Cancelled, c.State())
}

func TestRunBusy(t *testing.T) {
	supplier := &memScenes{
		scenes:  map[string]*scene.Graph{"a.glb": testScene("a")},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := &Coordinator{Supplier: supplier, Sink: &memSink{}}

	profile := balanced(t)
	errc := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background(), []string{"a.glb"}, profile)
		errc <- err
	}()
	<-supplier.entered
	assert.Equal(t, Running, c.State())

	_, err := c.Run(context.Background(), []string{"a.glb"}, balanced(t))
	assert.ErrorIs(t, err, core.ErrBusy)

	close(supplier.block)
	require.NoError(t, <-errc)
	assert.Equal(t, Completed, c.State())
}

func TestRunArguments(t *testing.T) {
	c := &Coordinator{Supplier: &memScenes{}, Sink: &memSink{}}
	ctx := context.Background()

	_, err := c.Run(ctx, nil, balanced(t))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = c.Run(ctx, []string{"a.glb"}, nil)
	assert.ErrorIs(t, err, core.ErrNullReference)
	_, err = c.Run(ctx, []string{"a.glb"}, &settings.Profile{Name: "empty"})
	assert.ErrorIs(t, err, core.ErrNullReference)

	bad := balanced(t)
	bad.Settings.LODLevels = 0
	_, err = c.Run(ctx, []string{"a.glb"}, bad)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = (&Coordinator{}).Run(ctx, []string{"a.glb"}, balanced(t))
	assert.ErrorIs(t, err, core.ErrNullReference)
	assert.Equal(t, Idle, c.State())
}

func TestOptimizedPath(t *testing.T) {
	assert.Equal(t, "city.optimized.glb", OptimizedPath("city.glb"))
	assert.Equal(t, filepath.Join("a", "b.optimized.sceneopt.json"), OptimizedPath(filepath.Join("a", "b.sceneopt.json")))
	assert.Equal(t, filepath.Join("out", "city.obj"), OutputDir("out")(filepath.Join("in", "city.obj")))
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "manifest.json")
	sum := &Summary{
		Profile: "balanced", Total: 2, Succeeded: 1, Failed: 1,
		Results: []Result{
			{Scene: "a.glb", Output: "out/a.glb", Success: true},
			{Scene: "b.glb", Error: "import: not found"},
		},
	}
	require.NoError(t, WriteManifest(path, sum))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, sum, got)

	_, err = ReadManifest(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, WriteManifest(path, nil), core.ErrNullReference)
}
