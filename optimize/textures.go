package optimize

import (
	"fmt"

	"scene-optimizer/core"
	"scene-optimizer/scene"
)

// minTextureSize is the edge below which textures are never halved.
const minTextureSize = 4

// OptimizeTextures returns a copy of g without unreferenced textures, with
// no texture edge above maxSize, and with total texture memory within
// budget bytes. Zero disables either limit. Textures only ever shrink by
// halving, and never below 4×4.
func OptimizeTextures(g *scene.Graph, maxSize int, budget int64) (*scene.Graph, error) {
	if g == nil {
		return nil, fmt.Errorf("optimize textures: %w", core.ErrNullReference)
	}
	if maxSize < 0 || budget < 0 {
		return nil, fmt.Errorf("optimize textures: negative limit: %w", core.ErrInvalidArgument)
	}
	out := g.Clone()
	optimizeTextures(out, maxSize, budget)
	return out, nil
}

// optimizeTextures rewrites g in place and returns the number of textures
// dropped or resized.
func optimizeTextures(g *scene.Graph, maxSize int, budget int64) int {
	changed := 0
	used := make(map[string]bool)
	for _, m := range g.Materials.Values() {
		for _, t := range m.Textures() {
			used[t] = true
		}
	}
	for _, name := range g.Textures.Names() {
		if !used[name] {
			g.Textures.Delete(name)
			changed++
		}
	}

	resized := make(map[string]bool)
	if maxSize > 0 {
		for _, t := range g.Textures.Values() {
			for max(t.Width, t.Height) > maxSize && halve(t) {
				resized[t.Name] = true
			}
		}
	}
	if budget > 0 {
		for textureMemory(g) > budget {
			t := largestShrinkable(g)
			if t == nil {
				break
			}
			halve(t)
			resized[t.Name] = true
		}
	}
	return changed + len(resized)
}

// halve halves both edges of t, clamped at minTextureSize. It reports
// whether t got smaller.
func halve(t *scene.Texture) bool {
	w, h := max(t.Width/2, minTextureSize), max(t.Height/2, minTextureSize)
	w, h = min(w, t.Width), min(h, t.Height)
	if w == t.Width && h == t.Height {
		return false
	}
	t.Width, t.Height = w, h
	return true
}

func shrinkable(t *scene.Texture) bool {
	return t.Width > minTextureSize || t.Height > minTextureSize
}

func largestShrinkable(g *scene.Graph) *scene.Texture {
	var best *scene.Texture
	for _, t := range g.Textures.Values() {
		if shrinkable(t) && (best == nil || t.ByteSize() > best.ByteSize()) {
			best = t
		}
	}
	return best
}

func textureMemory(g *scene.Graph) int64 {
	var n int64
	for _, t := range g.Textures.Values() {
		n += t.ByteSize()
	}
	return n
}
