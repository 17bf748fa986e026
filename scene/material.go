package scene

import (
	"fmt"
	"slices"
	"sort"

	"github.com/chewxy/math32"
	"github.com/jinzhu/copier"

	"scene-optimizer/math"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindVector
	KindTexture
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindTexture:
		return "texture"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is a material property: a scalar, a vector or a texture reference.
// Only the field selected by Kind is meaningful.
type Value struct {
	Kind    ValueKind
	Scalar  float32
	Vector  math.Vec4
	Texture string
}

// valueEpsilon is the tolerance used when comparing numeric properties.
const valueEpsilon = 1e-4

func Scalar(f float32) Value       { return Value{Kind: KindScalar, Scalar: f} }
func Vector(v math.Vec4) Value     { return Value{Kind: KindVector, Vector: v} }
func TextureRef(name string) Value { return Value{Kind: KindTexture, Texture: name} }

// Equal reports whether v and o hold the same variant and value.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindScalar:
		return math32.Abs(v.Scalar-o.Scalar) <= valueEpsilon
	case KindVector:
		return v.Vector.ApproxEqual(o.Vector, valueEpsilon)
	case KindTexture:
		return v.Texture == o.Texture
	}
	panic(fmt.Sprintf("scene: unknown value kind %d", v.Kind))
}

func (v Value) String() string {
	switch v.Kind {
	case KindScalar:
		return fmt.Sprintf("%g", v.Scalar)
	case KindVector:
		return fmt.Sprintf("(%g, %g, %g, %g)", v.Vector.X, v.Vector.Y, v.Vector.Z, v.Vector.W)
	case KindTexture:
		return "texture:" + v.Texture
	}
	return v.Kind.String()
}

// Material describes surface shading: a shader, its typed properties and
// enabled shader keywords.
type Material struct {
	Name       string
	Shader     string
	Properties map[string]Value
	// Keywords is kept sorted and free of duplicates by AddKeyword;
	// Graph.Validate rejects literals that break this.
	Keywords []string
}

func NewMaterial(name, shader string) *Material {
	return &Material{
		Name:       name,
		Shader:     shader,
		Properties: make(map[string]Value),
	}
}

// Set stores a property, returning m for chaining.
func (m *Material) Set(key string, v Value) *Material {
	if m.Properties == nil {
		m.Properties = make(map[string]Value)
	}
	m.Properties[key] = v
	return m
}

func (m *Material) Property(key string) (Value, bool) {
	v, ok := m.Properties[key]
	return v, ok
}

// AddKeyword enables a shader keyword.
func (m *Material) AddKeyword(kw string) *Material {
	if slices.Contains(m.Keywords, kw) {
		return m
	}
	m.Keywords = append(m.Keywords, kw)
	slices.Sort(m.Keywords)
	return m
}

// HasKeyword does not rely on Keywords being sorted.
func (m *Material) HasKeyword(kw string) bool {
	return slices.Contains(m.Keywords, kw)
}

// keywordsCanonical reports whether Keywords is strictly ascending.
func (m *Material) keywordsCanonical() bool {
	for i := 1; i < len(m.Keywords); i++ {
		if m.Keywords[i-1] >= m.Keywords[i] {
			return false
		}
	}
	return true
}

// PropertyNames returns the property keys in sorted order.
func (m *Material) PropertyNames() []string {
	names := make([]string, 0, len(m.Properties))
	for k := range m.Properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// TextureSlots returns the property keys holding texture references, sorted.
func (m *Material) TextureSlots() []string {
	var slots []string
	for _, k := range m.PropertyNames() {
		if m.Properties[k].Kind == KindTexture {
			slots = append(slots, k)
		}
	}
	return slots
}

// Textures returns the distinct texture names referenced by m, in slot
// order.
func (m *Material) Textures() []string {
	var names []string
	seen := make(map[string]bool)
	for _, k := range m.TextureSlots() {
		t := m.Properties[k].Texture
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		names = append(names, t)
	}
	return names
}

// Clone returns a deep copy of m.
func (m *Material) Clone() *Material {
	out := &Material{}
	if err := copier.CopyWithOption(out, m, copier.Option{DeepCopy: true}); err != nil {
		panic(fmt.Sprintf("scene: clone material %q: %v", m.Name, err))
	}
	return out
}
