package analysis

import (
	"fmt"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
)

const (
	// HighPolyThreshold is the polygon count above which a mesh is flagged.
	HighPolyThreshold = 100000
	// HighDensityThreshold is in vertices per square unit of bounds area.
	HighDensityThreshold = 1000

	uvGridSize      = 100
	uvSeamThreshold = 0.5
	minUVArea       = 0.1
	maxUVArea       = 0.9
)

// MeshMetrics describes one mesh. SurfaceArea is the area of the bounding
// box, used as a cheap stand-in for true mesh area.
type MeshMetrics struct {
	Name          string  `yaml:"name"`
	Polygons      int     `yaml:"polygons"`
	Vertices      int     `yaml:"vertices"`
	SurfaceArea   float64 `yaml:"surfaceArea"`
	VertexDensity float64 `yaml:"vertexDensity"`
	MemoryBytes   int64   `yaml:"memoryBytes"`
	HighPoly      bool    `yaml:"highPoly"`
	HighDensity   bool    `yaml:"highDensity"`

	HasUVs            bool `yaml:"hasUVs"`
	HasOverlappingUVs bool `yaml:"overlappingUVs"`
	UVSeams           int  `yaml:"uvSeams"`
	ValidUVLayout     bool `yaml:"validUVLayout"`
}

// MeshStats aggregates MeshMetrics over a mesh registry.
type MeshStats struct {
	Meshes []MeshMetrics `yaml:"meshes"`

	TotalPolygons  int     `yaml:"totalPolygons"`
	TotalVertices  int     `yaml:"totalVertices"`
	DrawnPolygons  int     `yaml:"drawnPolygons"` // counting every node and instance
	AverageDensity float64 `yaml:"averageDensity"`
	MemoryBytes    int64   `yaml:"memoryBytes"`

	HighPoly       []string `yaml:"highPoly,omitempty"`
	HighDensity    []string `yaml:"highDensity,omitempty"`
	OverlappingUVs []string `yaml:"overlappingUVs,omitempty"`
}

// AnalyzeMesh computes MeshMetrics for m.
func AnalyzeMesh(m *scene.Mesh) (MeshMetrics, error) {
	if m == nil {
		return MeshMetrics{}, fmt.Errorf("analyze mesh: %w", core.ErrNullReference)
	}
	mm := MeshMetrics{
		Name:        m.Name,
		Polygons:    m.PolygonCount(),
		Vertices:    m.VertexCount(),
		SurfaceArea: float64(m.Bounds.SurfaceArea()),
		MemoryBytes: m.MemoryBytes(),
	}
	if mm.SurfaceArea > 0 {
		mm.VertexDensity = float64(mm.Vertices) / mm.SurfaceArea
	}
	mm.HighPoly = mm.Polygons > HighPolyThreshold
	mm.HighDensity = mm.VertexDensity > HighDensityThreshold

	if len(m.UVs) > 0 {
		mm.HasUVs = true
		mm.HasOverlappingUVs = overlappingUVs(m.UVs)
		mm.UVSeams = uvSeams(m)
		mm.ValidUVLayout = validUVLayout(m.UVs)
	}
	return mm, nil
}

// overlappingUVs buckets coordinates into a fixed grid and reports whether
// any cell is hit twice.
func overlappingUVs(uvs []math.Vec2) bool {
	var grid [uvGridSize * uvGridSize]bool
	for _, uv := range uvs {
		cell := uvCell(uv.Y)*uvGridSize + uvCell(uv.X)
		if grid[cell] {
			return true
		}
		grid[cell] = true
	}
	return false
}

func uvCell(f float32) int {
	return min(max(int(f*uvGridSize), 0), uvGridSize-1)
}

// uvSeams counts triangle edges that span more than uvSeamThreshold in UV
// space.
func uvSeams(m *scene.Mesh) int {
	seams := 0
	for i := 0; i+2 < len(m.Indices); i += 3 {
		tri := [3]uint32{m.Indices[i], m.Indices[i+1], m.Indices[i+2]}
		for e := 0; e < 3; e++ {
			a, b := tri[e], tri[(e+1)%3]
			if int(a) >= len(m.UVs) || int(b) >= len(m.UVs) {
				continue
			}
			if m.UVs[a].Distance(m.UVs[b]) > uvSeamThreshold {
				seams++
			}
		}
	}
	return seams
}

func validUVLayout(uvs []math.Vec2) bool {
	lo, hi := uvs[0], uvs[0]
	for _, uv := range uvs {
		if !uv.InUnitSquare() {
			return false
		}
		lo = math.NewVec2(min(lo.X, uv.X), min(lo.Y, uv.Y))
		hi = math.NewVec2(max(hi.X, uv.X), max(hi.Y, uv.Y))
	}
	area := (hi.X - lo.X) * (hi.Y - lo.Y)
	return area >= minUVArea && area <= maxUVArea
}

// AnalyzeMeshes computes MeshStats over every mesh registered in g.
func AnalyzeMeshes(g *scene.Graph) (*MeshStats, error) {
	if g == nil {
		return nil, fmt.Errorf("analyze meshes: %w", core.ErrNullReference)
	}
	st := &MeshStats{DrawnPolygons: g.PolygonCount()}

	var densitySum float64
	densityCount := 0
	for _, m := range g.Meshes.Values() {
		mm, err := AnalyzeMesh(m)
		if err != nil {
			return nil, err
		}
		st.Meshes = append(st.Meshes, mm)
		st.TotalPolygons += mm.Polygons
		st.TotalVertices += mm.Vertices
		st.MemoryBytes += mm.MemoryBytes
		if mm.SurfaceArea > 0 {
			densitySum += mm.VertexDensity
			densityCount++
		}
		if mm.HighPoly {
			st.HighPoly = append(st.HighPoly, mm.Name)
		}
		if mm.HighDensity {
			st.HighDensity = append(st.HighDensity, mm.Name)
		}
		if mm.HasOverlappingUVs {
			st.OverlappingUVs = append(st.OverlappingUVs, mm.Name)
		}
	}
	if densityCount > 0 {
		st.AverageDensity = densitySum / float64(densityCount)
	}
	return st, nil
}
