package settings

import (
	"fmt"
	"strings"

	"scene-optimizer/core"
)

// Profile is a named, persisted bundle of Settings.
type Profile struct {
	Name        string    `toml:"name" yaml:"name"`
	Description string    `toml:"description,omitempty" yaml:"description,omitempty"`
	Settings    *Settings `toml:"settings" yaml:"settings"`
}

// Validate checks the name and the settings.
func (p *Profile) Validate() error {
	if p == nil || p.Settings == nil {
		return fmt.Errorf("profile: %w", core.ErrNullReference)
	}
	if err := ValidName(p.Name); err != nil {
		return err
	}
	return p.Settings.Validate()
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	out := *p
	if p.Settings != nil {
		out.Settings = p.Settings.Clone()
	}
	return &out
}

// ValidName rejects names that cannot be stored as a single file.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\:`) {
		return fmt.Errorf("profile name %q: %w", name, core.ErrInvalidArgument)
	}
	return nil
}

// Preset names.
const (
	Performance = "performance"
	Balanced    = "balanced"
	Quality     = "quality"
)

// Presets returns the built-in profiles.
func Presets() []*Profile {
	perf := Default()
	perf.InstanceSimilarityThreshold = 0.9
	perf.MaxFlattenDepth = 3
	perf.TargetPolygonCount = 50000
	perf.LODLevels = 4
	perf.TargetMemoryUsageMB = 256
	perf.TargetDrawCallCount = 500
	perf.MaterialSimilarityThreshold = 0.9
	perf.MaxTextureSize = 1024

	quality := Default()
	quality.FlattenHierarchy = false
	quality.OptimizeMaterials = false
	quality.TargetPolygonCount = 500000
	quality.LODLevels = 2
	quality.LODReductionFactors = []float32{1, 0.75}
	quality.TargetMemoryUsageMB = 2048
	quality.TargetDrawCallCount = 0
	quality.MaterialSimilarityThreshold = 0.99
	quality.MaxTextureSize = 4096

	return []*Profile{
		{Name: Performance, Description: "Aggressive reduction for low-end targets", Settings: perf},
		{Name: Balanced, Description: "Default trade-off between fidelity and cost", Settings: Default()},
		{Name: Quality, Description: "Conservative passes with generous budgets", Settings: quality},
	}
}

// Preset returns the built-in profile called name.
func Preset(name string) (*Profile, bool) {
	for _, p := range Presets() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
