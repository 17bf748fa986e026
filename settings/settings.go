// Package settings holds the optimization parameters and the named
// profiles that bundle them.
package settings

import (
	"errors"
	"fmt"

	"github.com/jinzhu/copier"

	"scene-optimizer/core"
)

// Settings selects the optimization passes to run and tunes them.
type Settings struct {
	OptimizeInstances  bool `toml:"optimizeInstances" yaml:"optimizeInstances"`
	FlattenHierarchy   bool `toml:"flattenHierarchy" yaml:"flattenHierarchy"`
	OptimizeTransforms bool `toml:"optimizeTransforms" yaml:"optimizeTransforms"`
	OptimizeMeshes     bool `toml:"optimizeMeshes" yaml:"optimizeMeshes"`
	OptimizeMaterials  bool `toml:"optimizeMaterials" yaml:"optimizeMaterials"`
	OptimizeTextures   bool `toml:"optimizeTextures" yaml:"optimizeTextures"`

	// InstanceSimilarityThreshold in [0,1] gates instance grouping.
	InstanceSimilarityThreshold float32 `toml:"instanceSimilarityThreshold" yaml:"instanceSimilarityThreshold"`
	MaxFlattenDepth             int     `toml:"maxFlattenDepth" yaml:"maxFlattenDepth"`
	// TargetPolygonCount caps the polygons of each mesh.
	TargetPolygonCount int `toml:"targetPolygonCount" yaml:"targetPolygonCount"`
	LODLevels          int `toml:"lodLevels" yaml:"lodLevels"`
	// LODReductionFactors has one factor in (0,1] per level. When empty
	// the levels default to [1, 0.5, 0.5, ...].
	LODReductionFactors []float32 `toml:"lodReductionFactors,omitempty" yaml:"lodReductionFactors,omitempty"`
	// Zero targets disable the matching budget.
	TargetMemoryUsageMB float64 `toml:"targetMemoryUsageMB" yaml:"targetMemoryUsageMB"`
	TargetDrawCallCount int     `toml:"targetDrawCallCount" yaml:"targetDrawCallCount"`

	MaterialSimilarityThreshold float32 `toml:"materialSimilarityThreshold" yaml:"materialSimilarityThreshold"`
	// MaxTextureSize is the largest allowed texture edge in pixels; 0
	// means unlimited.
	MaxTextureSize int `toml:"maxTextureSize" yaml:"maxTextureSize"`
}

// Default returns the balanced settings with every pass enabled.
func Default() *Settings {
	return &Settings{
		OptimizeInstances:           true,
		FlattenHierarchy:            true,
		OptimizeTransforms:          true,
		OptimizeMeshes:              true,
		OptimizeMaterials:           true,
		OptimizeTextures:            true,
		InstanceSimilarityThreshold: 0.95,
		MaxFlattenDepth:             5,
		TargetPolygonCount:          100000,
		LODLevels:                   3,
		TargetMemoryUsageMB:         512,
		TargetDrawCallCount:         1000,
		MaterialSimilarityThreshold: 0.95,
		MaxTextureSize:              2048,
	}
}

// Validate reports every out-of-range parameter, joined, as
// core.ErrInvalidArgument.
func (s *Settings) Validate() error {
	if s == nil {
		return fmt.Errorf("settings: %w", core.ErrNullReference)
	}
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("settings: "+format+": %w", append(args, core.ErrInvalidArgument)...))
		}
	}
	check(s.InstanceSimilarityThreshold >= 0 && s.InstanceSimilarityThreshold <= 1,
		"instanceSimilarityThreshold %v outside [0,1]", s.InstanceSimilarityThreshold)
	check(s.MaterialSimilarityThreshold >= 0 && s.MaterialSimilarityThreshold <= 1,
		"materialSimilarityThreshold %v outside [0,1]", s.MaterialSimilarityThreshold)
	check(s.MaxFlattenDepth >= 0, "maxFlattenDepth %d is negative", s.MaxFlattenDepth)
	check(s.TargetPolygonCount > 0, "targetPolygonCount %d must be positive", s.TargetPolygonCount)
	check(s.LODLevels > 0, "lodLevels %d must be positive", s.LODLevels)
	check(s.TargetMemoryUsageMB >= 0, "targetMemoryUsageMB %v is negative", s.TargetMemoryUsageMB)
	check(s.TargetDrawCallCount >= 0, "targetDrawCallCount %d is negative", s.TargetDrawCallCount)
	check(s.MaxTextureSize >= 0, "maxTextureSize %d is negative", s.MaxTextureSize)
	if len(s.LODReductionFactors) > 0 {
		check(len(s.LODReductionFactors) == s.LODLevels,
			"%d lodReductionFactors for %d lodLevels", len(s.LODReductionFactors), s.LODLevels)
		for i, f := range s.LODReductionFactors {
			check(f > 0 && f <= 1, "lodReductionFactors[%d] = %v outside (0,1]", i, f)
		}
	}
	return errors.Join(errs...)
}

// ReductionFactors returns the LOD factors to use, one per level.
func (s *Settings) ReductionFactors() []float32 {
	if len(s.LODReductionFactors) > 0 {
		return append([]float32(nil), s.LODReductionFactors...)
	}
	factors := make([]float32, s.LODLevels)
	for i := range factors {
		factors[i] = 0.5
	}
	if len(factors) > 0 {
		factors[0] = 1
	}
	return factors
}

// AnyPass reports whether at least one optimization pass is enabled.
func (s *Settings) AnyPass() bool {
	return s.OptimizeInstances || s.FlattenHierarchy || s.OptimizeTransforms ||
		s.OptimizeMeshes || s.OptimizeMaterials || s.OptimizeTextures
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	out := &Settings{}
	if err := copier.CopyWithOption(out, s, copier.Option{DeepCopy: true}); err != nil {
		panic(fmt.Sprintf("settings: clone: %v", err))
	}
	return out
}
