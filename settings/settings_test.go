package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scene-optimizer/core"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	for _, p := range Presets() {
		assert.NoError(t, p.Validate(), p.Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Settings)
	}{
		{"instance threshold", func(s *Settings) { s.InstanceSimilarityThreshold = 1.5 }},
		{"material threshold", func(s *Settings) { s.MaterialSimilarityThreshold = -0.1 }},
		{"flatten depth", func(s *Settings) { s.MaxFlattenDepth = -1 }},
		{"polygon target", func(s *Settings) { s.TargetPolygonCount = 0 }},
		{"lod levels", func(s *Settings) { s.LODLevels = 0 }},
		{"lod factor count", func(s *Settings) { s.LODReductionFactors = []float32{1, 0.5} }},
		{"lod factor range", func(s *Settings) { s.LODReductionFactors = []float32{1, 0.5, 0} }},
		{"memory target", func(s *Settings) { s.TargetMemoryUsageMB = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(s)
			assert.ErrorIs(t, s.Validate(), core.ErrInvalidArgument)
		})
	}

	var nilSettings *Settings
	assert.ErrorIs(t, nilSettings.Validate(), core.ErrNullReference)
}

func TestReductionFactors(t *testing.T) {
	s := Default()
	s.LODLevels = 4
	assert.Equal(t, []float32{1, 0.5, 0.5, 0.5}, s.ReductionFactors())

	s.LODReductionFactors = []float32{1, 0.6, 0.3, 0.1}
	f := s.ReductionFactors()
	f[0] = 0
	assert.Equal(t, float32(1), s.LODReductionFactors[0], "returned slice must be a copy")
}

func TestClone(t *testing.T) {
	s := Default()
	s.LODReductionFactors = []float32{1, 0.5, 0.25}
	c := s.Clone()
	assert.Equal(t, s, c)

	c.LODReductionFactors[1] = 0.9
	c.OptimizeMeshes = false
	assert.Equal(t, float32(0.5), s.LODReductionFactors[1])
	assert.True(t, s.OptimizeMeshes)
}

func TestAnyPass(t *testing.T) {
	s := Default()
	assert.True(t, s.AnyPass())
	*s = Settings{TargetPolygonCount: 1, LODLevels: 1}
	assert.False(t, s.AnyPass())
}

func testStores(t *testing.T) map[string]Store {
	toml, err := NewFileStore(filepath.Join(t.TempDir(), "toml"), TOML)
	require.NoError(t, err)
	yml, err := NewFileStore(filepath.Join(t.TempDir(), "yaml"), YAML)
	require.NoError(t, err)
	return map[string]Store{"memory": NewMemoryStore(), "toml": toml, "yaml": yml}
}

func TestStores(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			names, err := store.List()
			require.NoError(t, err)
			assert.Empty(t, names)

			_, err = store.Load("missing")
			assert.ErrorIs(t, err, core.ErrNotFound)
			assert.ErrorIs(t, store.Delete("missing"), core.ErrNotFound)

			for _, p := range Presets() {
				require.NoError(t, store.Save(p))
			}
			names, err = store.List()
			require.NoError(t, err)
			assert.Equal(t, []string{Balanced, Performance, Quality}, names)

			want, _ := Preset(Quality)
			got, err := store.Load(Quality)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			require.NoError(t, store.Delete(Quality))
			_, err = store.Load(Quality)
			assert.ErrorIs(t, err, core.ErrNotFound)

			bad := &Profile{Name: "bad", Settings: Default()}
			bad.Settings.LODLevels = 0
			assert.ErrorIs(t, store.Save(bad), core.ErrInvalidArgument)
			assert.ErrorIs(t, store.Save(&Profile{Name: "a/b", Settings: Default()}), core.ErrInvalidArgument)
			assert.ErrorIs(t, store.Save(&Profile{Name: "nil"}), core.ErrNullReference)
		})
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, TOML)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("name = [unterminated"), 0o644))

	_, err = store.Load("broken")
	assert.ErrorIs(t, err, core.ErrIOFailure)
}

func TestFileStorePartialFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, YAML)
	require.NoError(t, err)
	data := "name: tiny\nsettings:\n  maxFlattenDepth: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.yaml"), []byte(data), 0o644))

	p, err := store.Load("tiny")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Settings.MaxFlattenDepth)
	assert.Equal(t, Default().TargetPolygonCount, p.Settings.TargetPolygonCount)
}

func TestNewFileStoreDefaultDir(t *testing.T) {
	store, err := NewFileStore("", TOML)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(store.Dir))
	assert.Equal(t, "profiles", filepath.Base(store.Dir))
}

func TestResolve(t *testing.T) {
	custom := &Profile{Name: Balanced, Description: "override", Settings: Default()}
	store := NewMemoryStore(custom)

	p, err := Resolve(store, Balanced)
	require.NoError(t, err)
	assert.Equal(t, "override", p.Description)

	p, err = Resolve(store, Performance)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Settings.MaxFlattenDepth)

	_, err = Resolve(nil, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
