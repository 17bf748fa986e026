package scene

import (
	"fmt"

	"github.com/jinzhu/copier"

	"scene-optimizer/core"
	"scene-optimizer/math"
)

// Mesh holds triangle-list geometry. UVs, Normals and Tangents are either
// empty or as long as Vertices.
type Mesh struct {
	Name     string
	Vertices []math.Vec3
	UVs      []math.Vec2
	Normals  []math.Vec3
	Tangents []math.Vec4
	Indices  []uint32

	// Bounds is the local-space bounding volume.
	Bounds core.Bounds

	// LODs names the registry meshes generated as levels of detail for
	// this mesh, finest first.
	LODs []string
}

// NewMesh builds a Mesh and computes its bounds.
func NewMesh(name string, vertices []math.Vec3, indices []uint32) *Mesh {
	m := &Mesh{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
	}
	m.RecalculateBounds()
	return m
}

func (m *Mesh) PolygonCount() int { return len(m.Indices) / 3 }

func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// RecalculateBounds sets Bounds to the tight box around Vertices.
func (m *Mesh) RecalculateBounds() {
	m.Bounds = core.BoundsOf(m.Vertices)
}

// MemoryBytes estimates the vertex and index buffer footprint.
func (m *Mesh) MemoryBytes() int64 {
	const (
		position = 12
		uv       = 8
		normal   = 12
		tangent  = 16
		index    = 4
	)
	n := int64(len(m.Vertices)) * position
	n += int64(len(m.UVs)) * uv
	n += int64(len(m.Normals)) * normal
	n += int64(len(m.Tangents)) * tangent
	n += int64(len(m.Indices)) * index
	return n
}

// Validate checks the triangle-list and attribute-length invariants.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh %q: index count %d is not a multiple of 3: %w", m.Name, len(m.Indices), core.ErrInvariant)
	}
	nv := len(m.Vertices)
	for i, idx := range m.Indices {
		if int(idx) >= nv {
			return fmt.Errorf("mesh %q: index %d at %d out of range (%d vertices): %w", m.Name, idx, i, nv, core.ErrInvariant)
		}
	}
	check := func(attr string, n int) error {
		if n != 0 && n != nv {
			return fmt.Errorf("mesh %q: %d %s for %d vertices: %w", m.Name, n, attr, nv, core.ErrInvariant)
		}
		return nil
	}
	if err := check("uvs", len(m.UVs)); err != nil {
		return err
	}
	if err := check("normals", len(m.Normals)); err != nil {
		return err
	}
	return check("tangents", len(m.Tangents))
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{}
	if err := copier.CopyWithOption(out, m, copier.Option{DeepCopy: true}); err != nil {
		panic(fmt.Sprintf("scene: clone mesh %q: %v", m.Name, err))
	}
	return out
}
