package analysis

import (
	"fmt"
	"sort"
	"strings"

	"scene-optimizer/settings"
)

// ScoreInputs are the five metrics the optimization score is built from.
type ScoreInputs struct {
	Polygons  int
	Depth     int
	Materials int
	Textures  int
	MemoryMB  float64
}

// ScoreInputs extracts the scoring metrics from r.
func (r *Results) ScoreInputs() ScoreInputs {
	return ScoreInputs{
		Polygons:  r.Meshes.DrawnPolygons,
		Depth:     r.Hierarchy.MaxDepth,
		Materials: r.MaterialCount,
		Textures:  r.TextureCount,
		MemoryMB:  r.MemoryMB(),
	}
}

// Each factor earns pointsPerStep for every threshold it exceeds.
const pointsPerStep = 5

var (
	polygonSteps  = [4]float64{10_000, 50_000, 100_000, 500_000}
	depthSteps    = [4]float64{5, 10, 15, 20}
	materialSteps = [4]float64{10, 25, 50, 100}
	textureSteps  = [4]float64{10, 25, 50, 100}
	memorySteps   = [4]float64{50, 100, 250, 500} // MB
)

// Score rates the optimization potential of a scene from 0 to 100. Every
// factor is bucketed by four ascending thresholds, so the score never
// decreases when any input grows.
func Score(in ScoreInputs) int {
	total := bucket(float64(in.Polygons), polygonSteps) +
		bucket(float64(in.Depth), depthSteps) +
		bucket(float64(in.Materials), materialSteps) +
		bucket(float64(in.Textures), textureSteps) +
		bucket(in.MemoryMB, memorySteps)
	return min(total, 100)
}

func bucket(v float64, steps [4]float64) int {
	points := 0
	for _, s := range steps {
		if v > s {
			points += pointsPerStep
		}
	}
	return points
}

// Priority orders recommendations.
type Priority int

const (
	Low Priority = iota
	Medium
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case Critical:
		return "Critical"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Category groups recommendations by the part of the scene they address.
type Category string

const (
	CategoryMesh      Category = "mesh"
	CategoryHierarchy Category = "hierarchy"
	CategoryMaterial  Category = "material"
	CategoryTexture   Category = "texture"
	CategoryMemory    Category = "memory"
	CategoryDrawCalls Category = "drawCalls"
)

// Recommendation is one suggested optimization. Impact is 0 to 100.
type Recommendation struct {
	Category    Category `yaml:"category"`
	Priority    Priority `yaml:"priority"`
	Impact      int      `yaml:"impact"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Targets     []string `yaml:"targets,omitempty"`
}

const (
	maxSceneDepth        = 10
	maxScenePolygons     = 500_000
	maxSceneMaterials    = 50
	maxSceneTextures     = 50
	highMemoryMB         = 256
	criticalMemoryMB     = 512
	maxListedTargetNames = 20
)

// Recommend applies the threshold rules to r, most urgent first. s may be
// nil.
func Recommend(r *Results, s *settings.Settings) []Recommendation {
	var out []Recommendation
	add := func(c Category, p Priority, impact int, title, desc string, targets []string) {
		if len(targets) > maxListedTargetNames {
			targets = targets[:maxListedTargetNames]
		}
		out = append(out, Recommendation{
			Category: c, Priority: p, Impact: clampImpact(impact),
			Title: title, Description: desc, Targets: targets,
		})
	}

	ms := r.Meshes
	if n := len(ms.HighPoly); n > 0 {
		add(CategoryMesh, High, 50+5*n, "Simplify high-polygon meshes",
			fmt.Sprintf("%d meshes exceed %d polygons; generate LODs or simplify them.", n, HighPolyThreshold), ms.HighPoly)
	}
	if ms.DrawnPolygons > maxScenePolygons {
		add(CategoryMesh, Critical, 90, "Reduce scene polygon count",
			fmt.Sprintf("The scene draws %d polygons (limit %d).", ms.DrawnPolygons, maxScenePolygons), nil)
	}
	if n := len(ms.HighDensity); n > 0 {
		add(CategoryMesh, Medium, 30+5*n, "Reduce vertex density",
			fmt.Sprintf("%d meshes exceed %d vertices per square unit.", n, HighDensityThreshold), ms.HighDensity)
	}
	if n := len(ms.OverlappingUVs); n > 0 {
		add(CategoryMesh, Low, 10+2*n, "Fix overlapping UVs",
			fmt.Sprintf("%d meshes have overlapping UV coordinates, which breaks lightmapping.", n), ms.OverlappingUVs)
	}

	h := r.Hierarchy
	if h.MaxDepth > maxSceneDepth {
		add(CategoryHierarchy, Medium, 40+2*(h.MaxDepth-maxSceneDepth), "Flatten deep hierarchy",
			fmt.Sprintf("Maximum depth %d exceeds %d; deep trees cost transform updates.", h.MaxDepth, maxSceneDepth), nil)
	}
	if n := len(h.Removable); n > 0 {
		add(CategoryHierarchy, Low, 5+n, "Remove empty nodes",
			fmt.Sprintf("%d leaf nodes carry neither mesh nor material.", n), nil)
	}
	if n := len(h.InstanceGroups); n > 0 {
		nodes := 0
		var meshes []string
		for _, g := range h.InstanceGroups {
			nodes += len(g.Nodes)
			meshes = append(meshes, g.Mesh)
		}
		add(CategoryHierarchy, High, 40+2*nodes, "Use GPU instancing",
			fmt.Sprintf("%d groups (%d nodes) repeat the same mesh and material.", n, nodes), meshes)
	}

	mats := r.Materials
	if n := len(mats.RedundancyGroups); n > 0 {
		var names []string
		for _, g := range mats.RedundancyGroups {
			names = append(names, strings.Join(g, "="))
		}
		add(CategoryMaterial, Medium, 30+5*n, "Merge redundant materials",
			fmt.Sprintf("%d groups of materials are near-identical.", n), names)
	}
	if n := len(mats.HighComplexity); n > 0 {
		add(CategoryMaterial, Medium, 25+5*n, "Simplify complex shaders",
			fmt.Sprintf("%d materials exceed property, sampler or keyword limits.", n), mats.HighComplexity)
	}
	if r.MaterialCount > maxSceneMaterials {
		add(CategoryMaterial, High, 55, "Reduce material count",
			fmt.Sprintf("%d materials (limit %d) prevent batching.", r.MaterialCount, maxSceneMaterials), nil)
	}

	if n := len(mats.Excessive); n > 0 {
		add(CategoryTexture, Medium, 30+5*n, "Reduce per-material textures",
			fmt.Sprintf("%d materials use too many or too large textures.", n), mats.Excessive)
	}
	if r.TextureCount > maxSceneTextures {
		add(CategoryTexture, High, 50, "Atlas or drop textures",
			fmt.Sprintf("%d textures (limit %d).", r.TextureCount, maxSceneTextures), nil)
	}

	mb := r.MemoryMB()
	switch {
	case mb > criticalMemoryMB:
		add(CategoryMemory, Critical, 95, "Cut memory usage",
			fmt.Sprintf("Scene uses %.1f MB (limit %d MB).", mb, criticalMemoryMB), nil)
	case mb > highMemoryMB:
		add(CategoryMemory, High, 70, "Reduce memory usage",
			fmt.Sprintf("Scene uses %.1f MB (recommended below %d MB).", mb, highMemoryMB), nil)
	}

	if s != nil {
		if t := s.TargetDrawCallCount; t > 0 && r.DrawCalls > t {
			add(CategoryDrawCalls, High, 100*(r.DrawCalls-t)/r.DrawCalls, "Batch draw calls",
				fmt.Sprintf("%d draw calls exceed the target of %d.", r.DrawCalls, t), nil)
		}
		if t := s.TargetMemoryUsageMB; t > 0 && mb > t {
			p := High
			if mb > 2*t {
				p = Critical
			}
			add(CategoryMemory, p, int(100*(mb-t)/mb), "Meet memory budget",
				fmt.Sprintf("Scene uses %.1f MB, target is %.1f MB.", mb, t), nil)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Impact > out[j].Impact
	})
	return out
}

func clampImpact(v int) int {
	return min(max(v, 1), 100)
}
