// Package analysis measures a scene graph and recommends optimizations.
package analysis

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"scene-optimizer/core"
	"scene-optimizer/scene"
	"scene-optimizer/settings"
)

// Results is the joined output of the hierarchy, mesh and material
// analyzers. It is a snapshot and is not updated when the graph changes.
type Results struct {
	Scene     string            `yaml:"scene"`
	Hierarchy *HierarchyMetrics `yaml:"hierarchy"`
	Meshes    *MeshStats        `yaml:"meshes"`
	Materials *MaterialStats    `yaml:"materials"`

	MaterialCount int   `yaml:"materialCount"`
	TextureCount  int   `yaml:"textureCount"`
	DrawCalls     int   `yaml:"drawCalls"`
	MemoryBytes   int64 `yaml:"memoryBytes"` // textures plus mesh buffers

	Score           int              `yaml:"score"`
	Recommendations []Recommendation `yaml:"recommendations"`
}

// MemoryMB is MemoryBytes in mebibytes.
func (r *Results) MemoryMB() float64 { return float64(r.MemoryBytes) / (1 << 20) }

// Analyze runs the three analyzers concurrently over g, then scores the
// scene and derives recommendations.
func Analyze(ctx context.Context, g *scene.Graph) (*Results, error) {
	return AnalyzeWithSettings(ctx, g, nil)
}

// AnalyzeWithSettings is Analyze plus recommendations against the draw
// call and memory targets of s. A nil s skips those rules.
func AnalyzeWithSettings(ctx context.Context, g *scene.Graph, s *settings.Settings) (*Results, error) {
	if g == nil {
		return nil, fmt.Errorf("analyze: %w", core.ErrNullReference)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := &Results{
		Scene:         g.Name,
		MaterialCount: g.Materials.Len(),
		TextureCount:  g.Textures.Len(),
		DrawCalls:     g.DrawCalls(),
	}

	var eg errgroup.Group
	eg.Go(func() (err error) {
		r.Hierarchy, err = AnalyzeHierarchy(g)
		return err
	})
	eg.Go(func() (err error) {
		r.Meshes, err = AnalyzeMeshes(g)
		return err
	})
	eg.Go(func() (err error) {
		r.Materials, err = AnalyzeMaterials(g)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.MemoryBytes = r.Materials.TextureMemory + r.Meshes.MemoryBytes
	r.Score = Score(r.ScoreInputs())
	r.Recommendations = Recommend(r, s)
	return r, nil
}
