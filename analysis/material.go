package analysis

import (
	"fmt"
	"strings"

	"scene-optimizer/core"
	"scene-optimizer/scene"
)

// TextureType is the role a texture plays, guessed from its name.
type TextureType int

const (
	TextureCustom TextureType = iota
	TextureAlbedo
	TextureNormal
	TextureMetallic
	TextureRoughness
	TextureOcclusion
	TextureEmission
	TextureHeight
	TextureDetailAlbedo
	TextureDetailNormal
)

var textureTypeNames = [...]string{
	TextureCustom:       "Custom",
	TextureAlbedo:       "Albedo",
	TextureNormal:       "Normal",
	TextureMetallic:     "Metallic",
	TextureRoughness:    "Roughness",
	TextureOcclusion:    "Occlusion",
	TextureEmission:     "Emission",
	TextureHeight:       "Height",
	TextureDetailAlbedo: "DetailAlbedo",
	TextureDetailNormal: "DetailNormal",
}

func (t TextureType) String() string {
	if t < 0 || int(t) >= len(textureTypeNames) {
		return fmt.Sprintf("TextureType(%d)", int(t))
	}
	return textureTypeNames[t]
}

// textureVocabulary is matched in order; detail variants come first so
// "detail_normal" does not classify as a plain normal map.
var textureVocabulary = []struct {
	typ  TextureType
	keys []string
}{
	{TextureDetailNormal, []string{"detailnormal", "detail_normal", "detailbump", "detail_bump"}},
	{TextureDetailAlbedo, []string{"detailalbedo", "detail_albedo", "detailalbedomap", "detail"}},
	{TextureNormal, []string{"normal", "bump", "nrm"}},
	{TextureMetallic, []string{"metallic", "metalness", "metal"}},
	{TextureRoughness, []string{"roughness", "rough", "gloss", "smoothness"}},
	{TextureOcclusion, []string{"occlusion", "_ao", "ambient"}},
	{TextureEmission, []string{"emission", "emissive", "emit"}},
	{TextureHeight, []string{"height", "displacement", "parallax", "disp"}},
	{TextureAlbedo, []string{"albedo", "diffuse", "basecolor", "base_color", "maintex", "color", "diff"}},
}

// ClassifyTexture infers a texture's role from a case-insensitive
// substring match on name.
func ClassifyTexture(name string) TextureType {
	lower := strings.ToLower(name)
	for _, v := range textureVocabulary {
		for _, k := range v.keys {
			if strings.Contains(lower, k) {
				return v.typ
			}
		}
	}
	return TextureCustom
}

const (
	maxTexturesPerMaterial = 8
	maxTextureMemory       = 100 << 20

	maxProperties = 20
	maxSamplers   = 8
	maxKeywords   = 5

	// RedundancyThreshold is the similarity at which the analyzer reports
	// materials as redundant.
	RedundancyThreshold = 0.95
)

// MaterialMetrics describes one material.
type MaterialMetrics struct {
	Name          string         `yaml:"name"`
	Shader        string         `yaml:"shader"`
	TextureCount  int            `yaml:"textureCount"`
	TextureTypes  map[string]int `yaml:"textureTypes,omitempty"`
	TextureMemory int64          `yaml:"textureMemory"`
	Excessive     bool           `yaml:"excessiveTextures"`

	Properties     int   `yaml:"properties"` // non-texture properties
	Samplers       int   `yaml:"samplers"`
	Keywords       int   `yaml:"keywords"`
	Complexity     int   `yaml:"complexity"`
	Variants       int64 `yaml:"variants"`
	HighComplexity bool  `yaml:"highComplexity"`
}

// MaterialStats aggregates MaterialMetrics over a material registry.
type MaterialStats struct {
	Materials []MaterialMetrics `yaml:"materials"`

	UniqueTextures   int        `yaml:"uniqueTextures"`
	TextureMemory    int64      `yaml:"textureMemory"` // all registered textures
	RedundancyGroups [][]string `yaml:"redundancyGroups,omitempty"`
	HighComplexity   []string   `yaml:"highComplexity,omitempty"`
	Excessive        []string   `yaml:"excessiveTextures,omitempty"`
}

// AnalyzeMaterial computes MaterialMetrics for m, resolving texture sizes
// through textures. Unknown textures count as zero bytes.
func AnalyzeMaterial(m *scene.Material, textures *scene.Registry[*scene.Texture]) (MaterialMetrics, error) {
	if m == nil {
		return MaterialMetrics{}, fmt.Errorf("analyze material: %w", core.ErrNullReference)
	}
	mm := MaterialMetrics{
		Name:         m.Name,
		Shader:       m.Shader,
		TextureTypes: make(map[string]int),
		Keywords:     len(m.Keywords),
	}

	names := m.Textures()
	mm.TextureCount = len(names)
	for _, name := range names {
		if textures == nil {
			break
		}
		if t, ok := textures.Get(name); ok {
			mm.TextureMemory += t.ByteSize()
		}
	}
	for _, slot := range m.TextureSlots() {
		name := m.Properties[slot].Texture
		typ := ClassifyTexture(name)
		if typ == TextureCustom {
			typ = ClassifyTexture(slot)
		}
		mm.TextureTypes[typ.String()]++
	}
	mm.Samplers = len(m.TextureSlots())
	mm.Properties = len(m.Properties) - mm.Samplers
	mm.Complexity = mm.Properties + mm.Samplers + mm.Keywords
	mm.Variants = shaderVariants(mm.Keywords)

	mm.Excessive = mm.TextureCount > maxTexturesPerMaterial || mm.TextureMemory > maxTextureMemory
	mm.HighComplexity = mm.Properties > maxProperties || mm.Samplers > maxSamplers || mm.Keywords > maxKeywords
	return mm, nil
}

// shaderVariants estimates 2^keywords, saturating rather than overflowing.
func shaderVariants(keywords int) int64 {
	if keywords >= 62 {
		return 1 << 62
	}
	return 1 << keywords
}

// AnalyzeMaterials computes MaterialStats over every material in g.
func AnalyzeMaterials(g *scene.Graph) (*MaterialStats, error) {
	if g == nil {
		return nil, fmt.Errorf("analyze materials: %w", core.ErrNullReference)
	}
	st := &MaterialStats{}
	used := make(map[string]bool)

	mats := g.Materials.Values()
	for _, m := range mats {
		mm, err := AnalyzeMaterial(m, g.Textures)
		if err != nil {
			return nil, err
		}
		st.Materials = append(st.Materials, mm)
		for _, t := range m.Textures() {
			used[t] = true
		}
		if mm.HighComplexity {
			st.HighComplexity = append(st.HighComplexity, mm.Name)
		}
		if mm.Excessive {
			st.Excessive = append(st.Excessive, mm.Name)
		}
	}
	st.UniqueTextures = len(used)
	for _, t := range g.Textures.Values() {
		st.TextureMemory += t.ByteSize()
	}
	st.RedundancyGroups = RedundantMaterials(mats, RedundancyThreshold)
	return st, nil
}
