// Package optimize rewrites scene graphs to lower their rendering cost.
// Every exported entry point works on a copy; the caller's graph is never
// modified.
package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scene-optimizer/core"
	"scene-optimizer/scene"
	"scene-optimizer/settings"
)

// Pass names, in the order the pipeline runs them.
const (
	PassInstances  = "instances"
	PassFlatten    = "flatten"
	PassTransforms = "transforms"
	PassMeshes     = "meshes"
	PassMaterials  = "materials"
	PassTextures   = "textures"
)

// PassResult records what one pass did to the graph.
type PassResult struct {
	Pass string `json:"pass" yaml:"pass"`
	// Changed counts the nodes, meshes, materials or textures the pass
	// rewrote or removed.
	Changed         int           `json:"changed" yaml:"changed"`
	NodesBefore     int           `json:"nodesBefore" yaml:"nodesBefore"`
	NodesAfter      int           `json:"nodesAfter" yaml:"nodesAfter"`
	PolygonsBefore  int           `json:"polygonsBefore" yaml:"polygonsBefore"`
	PolygonsAfter   int           `json:"polygonsAfter" yaml:"polygonsAfter"`
	DrawCallsBefore int           `json:"drawCallsBefore" yaml:"drawCallsBefore"`
	DrawCallsAfter  int           `json:"drawCallsAfter" yaml:"drawCallsAfter"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
}

type pass struct {
	name    string
	enabled func(s *settings.Settings) bool
	run     func(g *scene.Graph, s *settings.Settings) (int, error)
}

var passes = []pass{
	{
		name:    PassInstances,
		enabled: func(s *settings.Settings) bool { return s.OptimizeInstances },
		run: func(g *scene.Graph, s *settings.Settings) (int, error) {
			return dedupInstances(g, s.InstanceSimilarityThreshold)
		},
	},
	{
		name:    PassFlatten,
		enabled: func(s *settings.Settings) bool { return s.FlattenHierarchy },
		run: func(g *scene.Graph, s *settings.Settings) (int, error) {
			return flatten(g, s.MaxFlattenDepth)
		},
	},
	{
		name:    PassTransforms,
		enabled: func(s *settings.Settings) bool { return s.OptimizeTransforms },
		run: func(g *scene.Graph, _ *settings.Settings) (int, error) {
			return optimizeTransforms(g), nil
		},
	},
	{
		name:    PassMeshes,
		enabled: func(s *settings.Settings) bool { return s.OptimizeMeshes },
		run:     optimizeMeshes,
	},
	{
		name:    PassMaterials,
		enabled: func(s *settings.Settings) bool { return s.OptimizeMaterials },
		run: func(g *scene.Graph, s *settings.Settings) (int, error) {
			return mergeMaterials(g, s.MaterialSimilarityThreshold)
		},
	},
	{
		name:    PassTextures,
		enabled: func(s *settings.Settings) bool { return s.OptimizeTextures },
		run: func(g *scene.Graph, s *settings.Settings) (int, error) {
			budget := int64(s.TargetMemoryUsageMB * (1 << 20))
			return optimizeTextures(g, s.MaxTextureSize, budget), nil
		},
	},
}

// Pipeline runs the enabled passes of Settings in order, each on the
// output of the previous one.
type Pipeline struct {
	Settings *settings.Settings
	Logger   *slog.Logger
}

// New returns a pipeline for s logging to the default logger.
func New(s *settings.Settings) *Pipeline {
	return &Pipeline{Settings: s}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Run optimizes a copy of g and returns it with one result per pass run.
// The context is checked between passes. On error no graph is returned,
// but the results of the passes completed so far are.
func (p *Pipeline) Run(ctx context.Context, g *scene.Graph) (*scene.Graph, []PassResult, error) {
	if err := checkArgs("optimize", g, p.Settings); err != nil {
		return nil, nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, nil, fmt.Errorf("optimize: input: %w", err)
	}
	s := p.Settings
	log := p.logger().With("scene", g.Name)

	out := g.Clone()
	var results []PassResult
	for _, ps := range passes {
		if !ps.enabled(s) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, results, fmt.Errorf("optimize %q: before %s: %w", g.Name, ps.name, err)
		}
		r := PassResult{
			Pass:            ps.name,
			NodesBefore:     out.NodeCount(),
			PolygonsBefore:  out.PolygonCount(),
			DrawCallsBefore: out.DrawCalls(),
		}
		start := time.Now()
		n, err := ps.run(out, s)
		if err != nil {
			log.Error("pass failed", "pass", ps.name, "err", err)
			return nil, results, fmt.Errorf("optimize %q: %s pass: %w", g.Name, ps.name, err)
		}
		r.Changed = n
		r.Duration = time.Since(start)
		r.NodesAfter = out.NodeCount()
		r.PolygonsAfter = out.PolygonCount()
		r.DrawCallsAfter = out.DrawCalls()
		results = append(results, r)
		log.Debug("pass done",
			"pass", r.Pass,
			"changed", r.Changed,
			"nodes", r.NodesAfter,
			"polygons", r.PolygonsAfter,
			"drawCalls", r.DrawCallsAfter,
			"duration", r.Duration)
	}

	if err := out.Validate(); err != nil {
		return nil, results, fmt.Errorf("optimize %q: output: %w", g.Name, err)
	}
	log.Info("optimized", "passes", len(results), "nodes", out.NodeCount(), "drawCalls", out.DrawCalls())
	return out, results, nil
}

func checkArgs(op string, g *scene.Graph, s *settings.Settings) error {
	if g == nil {
		return fmt.Errorf("%s: graph: %w", op, core.ErrNullReference)
	}
	if s == nil {
		return fmt.Errorf("%s: settings: %w", op, core.ErrNullReference)
	}
	return s.Validate()
}
