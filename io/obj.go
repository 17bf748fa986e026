package io

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scene-optimizer/math"
	"scene-optimizer/scene"
)

// objShader tags materials read from .mtl files.
const objShader = "Legacy/Wavefront"

type objGroup struct {
	name     string
	material string
	vertices []math.Vec3
	uvs      []math.Vec2
	normals  []math.Vec3
	indices  []uint32
	hasUV    bool
	hasNorm  bool
	lookup   map[string]uint32 // "v/vt/vn" -> vertex index
}

func newOBJGroup(name, material string) *objGroup {
	return &objGroup{name: name, material: material, lookup: make(map[string]uint32)}
}

// readOBJ parses a Wavefront .obj file. Every object or group becomes one
// mesh node under the root.
func readOBJ(path string, log *slog.Logger) (*scene.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr("import", path, err)
	}
	defer f.Close()

	base := filepath.Base(path)
	g := scene.New(strings.TrimSuffix(base, filepath.Ext(base)))

	var (
		positions []math.Vec3
		normals   []math.Vec3
		uvs       []math.Vec2
		groups    []*objGroup
	)
	current := newOBJGroup("default", "")
	flush := func() {
		if len(current.indices) > 0 {
			groups = append(groups, current)
		}
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "v":
			if len(parts) >= 4 {
				positions = append(positions, parseVec3(parts[1:4]))
			}
		case "vn":
			if len(parts) >= 4 {
				normals = append(normals, parseVec3(parts[1:4]))
			}
		case "vt":
			if len(parts) >= 3 {
				uvs = append(uvs, math.NewVec2(parseFloat(parts[1]), parseFloat(parts[2])))
			}
		case "f":
			face := make([]uint32, 0, len(parts)-1)
			for _, spec := range parts[1:] {
				if idx, ok := current.lookup[spec]; ok {
					face = append(face, idx)
					continue
				}
				idx := uint32(len(current.vertices))
				current.addVertex(spec, positions, uvs, normals)
				current.lookup[spec] = idx
				face = append(face, idx)
			}
			// fan triangulation for n-gons
			for i := 2; i < len(face); i++ {
				current.indices = append(current.indices, face[0], face[i-1], face[i])
			}
		case "o", "g":
			flush()
			name := "unnamed"
			if len(parts) > 1 {
				name = parts[1]
			}
			current = newOBJGroup(name, current.material)
		case "usemtl":
			if len(parts) > 1 {
				if len(current.indices) > 0 && current.material != parts[1] {
					flush()
					current = newOBJGroup(current.name+"_"+parts[1], parts[1])
				}
				current.material = parts[1]
			}
		case "mtllib":
			if len(parts) > 1 {
				mtlPath := filepath.Join(filepath.Dir(path), parts[1])
				if err := readMTL(mtlPath, g, log); err != nil {
					log.Warn("failed to load MTL file", "path", mtlPath, "err", err)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, ioErr("import", path, err)
	}
	flush()

	for _, grp := range groups {
		name := g.Meshes.FreeName(grp.name)
		m := scene.NewMesh(name, grp.vertices, grp.indices)
		if grp.hasUV {
			m.UVs = grp.uvs
		}
		if grp.hasNorm {
			m.Normals = grp.normals
		}
		scene.ComputeTangents(m)
		g.Meshes.Put(name, m)

		if grp.material != "" && !g.Materials.Has(grp.material) {
			log.Warn("material not defined, using default", "material", grp.material)
			g.Materials.Put(grp.material, scene.NewMaterial(grp.material, objShader))
		}
		n := scene.NewNode(name)
		n.Mesh = name
		n.Material = grp.material
		g.AddChild(g.Root(), n)
	}
	return g, nil
}

// addVertex appends the vertex described by a "v/vt/vn" spec.
func (grp *objGroup) addVertex(spec string, positions []math.Vec3, uvs []math.Vec2, normals []math.Vec3) {
	parts := strings.Split(spec, "/")

	var (
		pos  math.Vec3
		uv   math.Vec2
		norm math.Vec3
	)
	if i, ok := objIndex(parts, 0, len(positions)); ok {
		pos = positions[i]
	}
	if i, ok := objIndex(parts, 1, len(uvs)); ok {
		uv = uvs[i]
		grp.hasUV = true
	}
	if i, ok := objIndex(parts, 2, len(normals)); ok {
		norm = normals[i]
		grp.hasNorm = true
	}
	grp.vertices = append(grp.vertices, pos)
	grp.uvs = append(grp.uvs, uv)
	grp.normals = append(grp.normals, norm)
}

// objIndex resolves a 1-based or negative OBJ reference to a slice index.
func objIndex(parts []string, field, n int) (int, bool) {
	if field >= len(parts) || parts[field] == "" {
		return 0, false
	}
	idx, err := strconv.Atoi(parts[field])
	if err != nil {
		return 0, false
	}
	if idx < 0 {
		idx = n + idx + 1
	}
	if idx <= 0 || idx > n {
		return 0, false
	}
	return idx - 1, true
}

// readMTL adds the materials of a .mtl file, and the textures they
// reference, to g.
func readMTL(path string, g *scene.Graph, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var current *scene.Material
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if parts[0] == "newmtl" {
			if len(parts) > 1 {
				current = scene.NewMaterial(parts[1], objShader)
				g.Materials.Put(current.Name, current)
			}
			continue
		}
		if current == nil {
			continue
		}

		switch parts[0] {
		case "Kd", "Ks", "Ke":
			if len(parts) >= 4 {
				c := parseVec3(parts[1:4])
				slot := map[string]string{"Kd": "_Color", "Ks": "_SpecColor", "Ke": "_EmissionColor"}[parts[0]]
				current.Set(slot, scene.Vector(c.ToVec4(1)))
			}
		case "Ns":
			if len(parts) >= 2 {
				// shininess is 0-1000
				current.Set("_Glossiness", scene.Scalar(clamp01(parseFloat(parts[1])/1000)))
			}
		case "d", "Tr":
			if len(parts) >= 2 {
				d := parseFloat(parts[1])
				if parts[0] == "Tr" {
					d = 1 - d
				}
				current.Set("_Alpha", scene.Scalar(d))
				if d < 1 {
					current.AddKeyword("_ALPHABLEND_ON")
				}
			}
		case "map_Kd", "map_Ks", "map_Ke", "map_Bump", "bump", "map_d":
			if len(parts) < 2 {
				continue
			}
			slot := map[string]string{
				"map_Kd": "_MainTex", "map_Ks": "_SpecGlossMap", "map_Ke": "_EmissionMap",
				"map_Bump": "_BumpMap", "bump": "_BumpMap", "map_d": "_AlphaMap",
			}[parts[0]]
			file := parts[len(parts)-1] // options precede the file name
			current.Set(slot, scene.TextureRef(objTexture(g, filepath.Join(filepath.Dir(path), file), log)))
			if slot == "_BumpMap" {
				current.AddKeyword("_NORMALMAP")
			}
		}
	}
	return scanner.Err()
}

// objTexture registers the image at path once and returns its name.
func objTexture(g *scene.Graph, path string, log *slog.Logger) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if t, ok := g.Textures.Get(name); ok && t.Source == path {
		return name
	}
	name = g.Textures.FreeName(name)
	t, err := probeTextureFile(name, path)
	if err != nil {
		log.Warn("texture unreadable, size unknown", "path", path, "err", err)
		t = &scene.Texture{Name: name, Source: path}
	}
	g.Textures.Put(name, t)
	return name
}

// writeOBJ writes every mesh node with its world transform baked in.
// Instance nodes emit one object per instance.
func writeOBJ(path string, g *scene.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return ioErr("export", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# scene-optimizer")
	fmt.Fprintln(w)

	var (
		offs   objOffsets
		object int
	)
	for _, id := range g.MeshNodes() {
		n := g.Node(id)
		m, ok := g.Meshes.Get(n.Mesh)
		if !ok {
			continue
		}
		world := g.WorldTransform(id)
		placements := []math.Mat4{world}
		if n.IsInstance && len(n.InstanceTransforms) > 0 {
			placements = placements[:0]
			for _, it := range n.InstanceTransforms {
				placements = append(placements, it.Mul(world))
			}
		}
		for _, place := range placements {
			object++
			fmt.Fprintf(w, "o %s_%d\n", n.Name, object)
			if n.Material != "" {
				fmt.Fprintf(w, "usemtl %s\n", n.Material)
			}
			writeOBJMesh(w, m, place, &offs)
			fmt.Fprintln(w)
		}
	}
	if err := w.Flush(); err != nil {
		return ioErr("export", path, err)
	}
	return nil
}

// objOffsets counts the v, vt and vn lines written so far.
type objOffsets struct{ v, vt, vn int }

func writeOBJMesh(w *bufio.Writer, m *scene.Mesh, world math.Mat4, offs *objOffsets) {
	for _, v := range m.Vertices {
		p := world.MulPoint(v)
		fmt.Fprintf(w, "v %f %f %f\n", p.X, p.Y, p.Z)
	}
	for _, uv := range m.UVs {
		fmt.Fprintf(w, "vt %f %f\n", uv.X, uv.Y)
	}
	for _, nrm := range m.Normals {
		d := world.MulDirection(nrm).Normalize()
		fmt.Fprintf(w, "vn %f %f %f\n", d.X, d.Y, d.Z)
	}

	hasUV, hasNorm := len(m.UVs) > 0, len(m.Normals) > 0
	for i := 0; i+2 < len(m.Indices); i += 3 {
		fmt.Fprint(w, "f")
		for _, idx := range m.Indices[i : i+3] {
			k := int(idx) + 1
			switch {
			case hasUV && hasNorm:
				fmt.Fprintf(w, " %d/%d/%d", k+offs.v, k+offs.vt, k+offs.vn)
			case hasUV:
				fmt.Fprintf(w, " %d/%d", k+offs.v, k+offs.vt)
			case hasNorm:
				fmt.Fprintf(w, " %d//%d", k+offs.v, k+offs.vn)
			default:
				fmt.Fprintf(w, " %d", k+offs.v)
			}
		}
		fmt.Fprintln(w)
	}
	offs.v += len(m.Vertices)
	offs.vt += len(m.UVs)
	offs.vn += len(m.Normals)
}

func parseFloat(s string) float32 {
	f, _ := strconv.ParseFloat(s, 32)
	return float32(f)
}

func parseVec3(parts []string) math.Vec3 {
	return math.NewVec3(parseFloat(parts[0]), parseFloat(parts[1]), parseFloat(parts[2]))
}

func clamp01(f float32) float32 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
