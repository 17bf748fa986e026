package io

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
)

// Extras keys written on glTF objects so a scene survives a round trip.
const (
	extraShader     = "shader"
	extraKeywords   = "keywords"
	extraProperties = "properties"
	extraMesh       = "sceneMesh"
	extraMaterial   = "material"
	extraLODs       = "lods"
	extraInstance   = "isInstance"
	extraPrototype  = "prototype"
	extraInstances  = "instanceTransforms"
	extraBounds     = "bounds"
	extraWidth      = "width"
	extraHeight     = "height"
	extraFormat     = "format"
)

const gltfShader = "glTF/PBR"

// Standard glTF texture bindings mapped onto material property slots.
const (
	slotBaseColor  = "_BaseColorMap"
	slotMetalRough = "_MetallicRoughnessMap"
	slotNormal     = "_NormalMap"
	slotOcclusion  = "_OcclusionMap"
	slotEmissive   = "_EmissiveMap"
)

// ── Import ───────────────────────────────────────────────────────────────────

type gltfReader struct {
	doc      *gltf.Document
	dir      string
	log      *slog.Logger
	g        *scene.Graph
	textures []string   // glTF texture index -> registry name
	mats     []string   // glTF material index -> registry name
	prims    [][]string // glTF mesh index -> registry mesh per primitive
	primMats [][]string // glTF mesh index -> material per primitive
	visited  []bool
}

// readGLTF loads a .gltf or .glb file into a graph. Scene roots become
// children of the graph root.
func readGLTF(path string, log *slog.Logger) (*scene.Graph, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, ioErr("import", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) && doc.Scenes[*doc.Scene].Name != "" {
		name = doc.Scenes[*doc.Scene].Name
	}
	r := &gltfReader{
		doc:     doc,
		dir:     filepath.Dir(path),
		log:     log,
		g:       scene.New(name),
		visited: make([]bool, len(doc.Nodes)),
	}

	r.readTextures()
	r.readMaterials()
	if err := r.readMeshes(); err != nil {
		return nil, fmt.Errorf("import %q: %w", path, err)
	}
	for _, idx := range r.sceneRoots() {
		if err := r.addNode(r.g.Root(), idx); err != nil {
			return nil, fmt.Errorf("import %q: %w", path, err)
		}
	}
	return r.g, nil
}

func (r *gltfReader) readTextures() {
	r.textures = make([]string, len(r.doc.Textures))
	for i, gt := range r.doc.Textures {
		name := gt.Name
		var img *gltf.Image
		if gt.Source != nil && *gt.Source < len(r.doc.Images) {
			img = r.doc.Images[*gt.Source]
			if name == "" {
				name = img.Name
			}
		}
		if name == "" {
			name = fmt.Sprintf("texture_%d", i)
		}
		name = r.g.Textures.FreeName(name)

		tex, ok := textureFromExtras(name, gt.Extras)
		if !ok {
			var err error
			tex, err = r.probeImage(name, img)
			if err != nil {
				r.log.Warn("texture unreadable, size unknown", "texture", name, "err", err)
				tex = &scene.Texture{Name: name}
			}
		}
		if img != nil && tex.Source == "" && img.URI != "" && !img.IsEmbeddedResource() {
			tex.Source = img.URI
		}
		r.g.Textures.Put(name, tex)
		r.textures[i] = name
	}
}

func (r *gltfReader) probeImage(name string, img *gltf.Image) (*scene.Texture, error) {
	switch {
	case img == nil:
		return nil, fmt.Errorf("no image source")
	case img.BufferView != nil:
		if *img.BufferView >= len(r.doc.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", *img.BufferView)
		}
		raw, err := modeler.ReadBufferView(r.doc, r.doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, err
		}
		return probeTexture(name, raw)
	case img.IsEmbeddedResource():
		raw, err := img.MarshalData()
		if err != nil {
			return nil, err
		}
		return probeTexture(name, raw)
	case img.URI != "":
		t, err := probeTextureFile(name, filepath.Join(r.dir, img.URI))
		if err != nil {
			return nil, err
		}
		t.Source = img.URI
		return t, nil
	}
	return nil, fmt.Errorf("image has no data")
}

func (r *gltfReader) textureName(idx int) string {
	if idx < 0 || idx >= len(r.textures) {
		return ""
	}
	return r.textures[idx]
}

func (r *gltfReader) readMaterials() {
	r.mats = make([]string, len(r.doc.Materials))
	for i, gm := range r.doc.Materials {
		name := gm.Name
		if name == "" {
			name = fmt.Sprintf("material_%d", i)
		}
		name = r.g.Materials.FreeName(name)

		extras, _ := gm.Extras.(map[string]any)
		shader, _ := extras[extraShader].(string)
		if shader == "" {
			shader = gltfShader
		}
		m := scene.NewMaterial(name, shader)

		if props, ok := extras[extraProperties].(map[string]any); ok {
			for k, raw := range props {
				if v, ok := valueFromExtra(raw, r.g); ok {
					m.Set(k, v)
				} else {
					r.log.Warn("ignoring material property", "material", name, "property", k)
				}
			}
		} else {
			r.readPBR(m, gm)
		}
		for _, kw := range stringList(extras[extraKeywords]) {
			m.AddKeyword(kw)
		}
		r.g.Materials.Put(name, m)
		r.mats[i] = name
	}
}

// readPBR maps the core glTF material model onto properties.
func (r *gltfReader) readPBR(m *scene.Material, gm *gltf.Material) {
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		cf := pbr.BaseColorFactorOrDefault()
		m.Set("_BaseColor", scene.Vector(math.NewVec4(float32(cf[0]), float32(cf[1]), float32(cf[2]), float32(cf[3]))))
		m.Set("_Metallic", scene.Scalar(float32(pbr.MetallicFactorOrDefault())))
		m.Set("_Roughness", scene.Scalar(float32(pbr.RoughnessFactorOrDefault())))
		if pbr.BaseColorTexture != nil {
			r.setTexture(m, slotBaseColor, pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			r.setTexture(m, slotMetalRough, pbr.MetallicRoughnessTexture.Index)
		}
	}
	if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
		r.setTexture(m, slotNormal, *gm.NormalTexture.Index)
	}
	if gm.OcclusionTexture != nil && gm.OcclusionTexture.Index != nil {
		r.setTexture(m, slotOcclusion, *gm.OcclusionTexture.Index)
	}
	if gm.EmissiveTexture != nil {
		r.setTexture(m, slotEmissive, gm.EmissiveTexture.Index)
	}
	if e := gm.EmissiveFactor; e != [3]float64{} {
		m.Set("_EmissiveColor", scene.Vector(math.NewVec4(float32(e[0]), float32(e[1]), float32(e[2]), 1)))
	}
}

func (r *gltfReader) setTexture(m *scene.Material, slot string, idx int) {
	if name := r.textureName(idx); name != "" {
		m.Set(slot, scene.TextureRef(name))
	}
}

func (r *gltfReader) readMeshes() error {
	r.prims = make([][]string, len(r.doc.Meshes))
	r.primMats = make([][]string, len(r.doc.Meshes))
	for i, gm := range r.doc.Meshes {
		extras, _ := gm.Extras.(map[string]any)
		base, _ := extras[extraMesh].(string)
		shared := base != ""
		if base == "" {
			base = gm.Name
		}
		if base == "" {
			base = fmt.Sprintf("mesh_%d", i)
		}

		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				r.log.Warn("skipping non-triangle primitive", "mesh", base, "primitive", pi)
				continue
			}
			name := base
			if len(gm.Primitives) > 1 {
				name = fmt.Sprintf("%s_%d", base, pi)
			}
			switch {
			case shared && r.g.Meshes.Has(name):
				// several glTF meshes share one registry mesh under different materials
			default:
				name = r.g.Meshes.FreeName(name)
				m, err := r.readPrimitive(name, prim)
				if err != nil {
					return fmt.Errorf("mesh %q: %w", name, err)
				}
				m.LODs = stringList(extras[extraLODs])
				r.g.Meshes.Put(name, m)
			}

			mat := ""
			if prim.Material != nil && *prim.Material < len(r.mats) {
				mat = r.mats[*prim.Material]
			}
			r.prims[i] = append(r.prims[i], name)
			r.primMats[i] = append(r.primMats[i], mat)
		}
	}
	return nil
}

func (r *gltfReader) readPrimitive(name string, prim *gltf.Primitive) (*scene.Mesh, error) {
	accessor := func(attr string) (*gltf.Accessor, bool) {
		idx, ok := prim.Attributes[attr]
		if !ok || idx >= len(r.doc.Accessors) {
			return nil, false
		}
		return r.doc.Accessors[idx], true
	}

	acr, ok := accessor(gltf.POSITION)
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute: %w", core.ErrInvariant)
	}
	positions, err := modeler.ReadPosition(r.doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %v: %w", err, core.ErrIOFailure)
	}
	m := &scene.Mesh{Name: name, Vertices: make([]math.Vec3, len(positions))}
	for i, p := range positions {
		m.Vertices[i] = math.NewVec3(p[0], p[1], p[2])
	}

	if acr, ok := accessor(gltf.NORMAL); ok {
		if normals, err := modeler.ReadNormal(r.doc, acr, nil); err == nil && len(normals) == len(positions) {
			m.Normals = make([]math.Vec3, len(normals))
			for i, n := range normals {
				m.Normals[i] = math.NewVec3(n[0], n[1], n[2])
			}
		}
	}
	if acr, ok := accessor(gltf.TEXCOORD_0); ok {
		if uvs, err := modeler.ReadTextureCoord(r.doc, acr, nil); err == nil && len(uvs) == len(positions) {
			m.UVs = make([]math.Vec2, len(uvs))
			for i, uv := range uvs {
				m.UVs[i] = math.NewVec2(uv[0], uv[1])
			}
		}
	}
	if acr, ok := accessor(gltf.TANGENT); ok {
		if tangents, err := modeler.ReadTangent(r.doc, acr, nil); err == nil && len(tangents) == len(positions) {
			m.Tangents = make([]math.Vec4, len(tangents))
			for i, t := range tangents {
				m.Tangents[i] = math.NewVec4(t[0], t[1], t[2], t[3])
			}
		}
	}

	if prim.Indices != nil && *prim.Indices < len(r.doc.Accessors) {
		m.Indices, err = modeler.ReadIndices(r.doc, r.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %v: %w", err, core.ErrIOFailure)
		}
	} else {
		m.Indices = make([]uint32, len(positions))
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}
	m.RecalculateBounds()
	return m, nil
}

// sceneRoots returns the root nodes of the default scene, or every
// parentless node when the document has none.
func (r *gltfReader) sceneRoots() []int {
	if r.doc.Scene != nil && *r.doc.Scene < len(r.doc.Scenes) {
		return r.doc.Scenes[*r.doc.Scene].Nodes
	}
	hasParent := make([]bool, len(r.doc.Nodes))
	for _, gn := range r.doc.Nodes {
		for _, c := range gn.Children {
			if c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i := range r.doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func (r *gltfReader) addNode(parent scene.NodeID, idx int) error {
	if idx < 0 || idx >= len(r.doc.Nodes) {
		return fmt.Errorf("node index %d out of range: %w", idx, core.ErrInvariant)
	}
	if r.visited[idx] {
		return fmt.Errorf("node %d reached twice: %w", idx, core.ErrInvariant)
	}
	r.visited[idx] = true

	gn := r.doc.Nodes[idx]
	name := gn.Name
	if name == "" {
		name = fmt.Sprintf("node_%d", idx)
	}
	n := scene.NewNode(name)
	n.Transform = nodeTransform(gn)
	readNodeExtras(&n, gn.Extras)

	var prims, mats []string
	if gn.Mesh != nil && *gn.Mesh < len(r.prims) {
		prims, mats = r.prims[*gn.Mesh], r.primMats[*gn.Mesh]
	}
	if len(prims) == 1 {
		n.Mesh, n.Material = prims[0], mats[0]
	}
	if extras, ok := gn.Extras.(map[string]any); ok && n.Material == "" {
		if mat, ok := extras[extraMaterial].(string); ok && r.g.Materials.Has(mat) {
			n.Material = mat
		}
	}
	id := r.g.AddChild(parent, n)

	if len(prims) > 1 {
		// one child node per primitive
		for pi, p := range prims {
			child := scene.NewNode(fmt.Sprintf("%s_prim%d", name, pi))
			child.Mesh, child.Material = p, mats[pi]
			r.g.AddChild(id, child)
		}
	}
	for _, c := range gn.Children {
		if err := r.addNode(id, c); err != nil {
			return err
		}
	}
	return nil
}

func nodeTransform(gn *gltf.Node) math.Mat4 {
	if gn.Matrix != [16]float64{} && gn.Matrix != gltf.DefaultMatrix {
		return math.Mat4FromArray(gn.Matrix)
	}
	t := gn.TranslationOrDefault()
	s := gn.ScaleOrDefault()
	q := gn.RotationOrDefault() // [x, y, z, w]
	return math.Mat4TRS(
		math.NewVec3(float32(t[0]), float32(t[1]), float32(t[2])),
		math.Quaternion{X: float32(q[0]), Y: float32(q[1]), Z: float32(q[2]), W: float32(q[3])},
		math.NewVec3(float32(s[0]), float32(s[1]), float32(s[2])),
	)
}

func readNodeExtras(n *scene.Node, raw any) {
	extras, ok := raw.(map[string]any)
	if !ok {
		return
	}
	n.IsInstance, _ = extras[extraInstance].(bool)
	n.Prototype, _ = extras[extraPrototype].(string)
	if list, ok := extras[extraInstances].([]any); ok {
		for _, item := range list {
			if a, ok := floatArray(item, 16); ok {
				var m [16]float64
				copy(m[:], a)
				n.InstanceTransforms = append(n.InstanceTransforms, math.Mat4FromArray(m))
			}
		}
	}
	if b, ok := extras[extraBounds].(map[string]any); ok {
		c, okC := floatArray(b["center"], 3)
		s, okS := floatArray(b["size"], 3)
		if okC && okS {
			n.Bounds = &core.Bounds{
				Center: math.NewVec3(float32(c[0]), float32(c[1]), float32(c[2])),
				Size:   math.NewVec3(float32(s[0]), float32(s[1]), float32(s[2])),
			}
		}
	}
}

func textureFromExtras(name string, raw any) (*scene.Texture, bool) {
	extras, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	w, okW := extras[extraWidth].(float64)
	h, okH := extras[extraHeight].(float64)
	if !okW || !okH {
		return nil, false
	}
	t := &scene.Texture{Name: name, Width: int(w), Height: int(h)}
	if f, ok := extras[extraFormat].(string); ok {
		if format, err := scene.ParseFormat(f); err == nil {
			t.Format = format
		}
	}
	return t, true
}

// valueFromExtra decodes a material property written by propertyExtra.
func valueFromExtra(raw any, g *scene.Graph) (scene.Value, bool) {
	switch v := raw.(type) {
	case float64:
		return scene.Scalar(float32(v)), true
	case []any:
		if a, ok := floatArray(v, 4); ok {
			return scene.Vector(math.NewVec4(float32(a[0]), float32(a[1]), float32(a[2]), float32(a[3]))), true
		}
	case map[string]any:
		if t, ok := v["texture"].(string); ok && g.Textures.Has(t) {
			return scene.TextureRef(t), true
		}
	}
	return scene.Value{}, false
}

func floatArray(raw any, n int) ([]float64, bool) {
	list, ok := raw.([]any)
	if !ok || len(list) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func stringList(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ── Export ───────────────────────────────────────────────────────────────────

type gltfWriter struct {
	doc      *gltf.Document
	g        *scene.Graph
	textures map[string]int // registry name -> glTF texture index
	mats     map[string]int
	geometry map[string]gltf.PrimitiveAttributes // mesh name -> written accessors
	indices  map[string]int
	meshes   map[[2]string]int // (mesh, material) -> glTF mesh index
}

// writeGLTF stores g as .gltf with an embedded buffer, or as .glb.
func writeGLTF(path string, g *scene.Graph) error {
	w := &gltfWriter{
		doc:      gltf.NewDocument(),
		g:        g,
		textures: make(map[string]int),
		mats:     make(map[string]int),
		geometry: make(map[string]gltf.PrimitiveAttributes),
		indices:  make(map[string]int),
		meshes:   make(map[[2]string]int),
	}
	w.doc.Scenes[0].Name = g.Name

	w.writeTextures()
	w.writeMaterials()
	for _, name := range g.Meshes.Names() {
		w.mesh(name, "")
	}

	root := g.Node(g.Root())
	if root.Transform.IsIdentity(0) && root.IsEmpty() && !root.IsInstance {
		for _, c := range g.Children(g.Root()) {
			w.doc.Scenes[0].Nodes = append(w.doc.Scenes[0].Nodes, w.writeNode(c))
		}
	} else {
		w.doc.Scenes[0].Nodes = append(w.doc.Scenes[0].Nodes, w.writeNode(g.Root()))
	}

	var err error
	if strings.EqualFold(filepath.Ext(path), ".glb") {
		err = gltf.SaveBinary(w.doc, path)
	} else {
		for _, b := range w.doc.Buffers {
			b.URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.Data)
		}
		err = gltf.Save(w.doc, path)
	}
	if err != nil {
		return ioErr("export", path, err)
	}
	return nil
}

func (w *gltfWriter) writeTextures() {
	for _, t := range w.g.Textures.Values() {
		img := &gltf.Image{Name: t.Name}
		if t.Source != "" && !filepath.IsAbs(t.Source) {
			img.URI = filepath.ToSlash(t.Source)
		}
		w.doc.Images = append(w.doc.Images, img)
		w.doc.Textures = append(w.doc.Textures, &gltf.Texture{
			Name:   t.Name,
			Source: gltf.Index(len(w.doc.Images) - 1),
			Extras: map[string]any{
				extraWidth:  t.Width,
				extraHeight: t.Height,
				extraFormat: t.Format.String(),
			},
		})
		w.textures[t.Name] = len(w.doc.Textures) - 1
	}
}

func (w *gltfWriter) writeMaterials() {
	for _, m := range w.g.Materials.Values() {
		gm := &gltf.Material{Name: m.Name}
		pbr := &gltf.PBRMetallicRoughness{}
		if v, ok := m.Property("_BaseColor"); ok && v.Kind == scene.KindVector {
			pbr.BaseColorFactor = &[4]float64{float64(v.Vector.X), float64(v.Vector.Y), float64(v.Vector.Z), float64(v.Vector.W)}
		}
		if v, ok := m.Property("_Metallic"); ok && v.Kind == scene.KindScalar {
			f := float64(v.Scalar)
			pbr.MetallicFactor = &f
		}
		if v, ok := m.Property("_Roughness"); ok && v.Kind == scene.KindScalar {
			f := float64(v.Scalar)
			pbr.RoughnessFactor = &f
		}
		if idx, ok := w.slotTexture(m, slotBaseColor); ok {
			pbr.BaseColorTexture = &gltf.TextureInfo{Index: idx}
		}
		if idx, ok := w.slotTexture(m, slotMetalRough); ok {
			pbr.MetallicRoughnessTexture = &gltf.TextureInfo{Index: idx}
		}
		gm.PBRMetallicRoughness = pbr
		if idx, ok := w.slotTexture(m, slotNormal); ok {
			gm.NormalTexture = &gltf.NormalTexture{Index: gltf.Index(idx)}
		}
		if idx, ok := w.slotTexture(m, slotOcclusion); ok {
			gm.OcclusionTexture = &gltf.OcclusionTexture{Index: gltf.Index(idx)}
		}
		if idx, ok := w.slotTexture(m, slotEmissive); ok {
			gm.EmissiveTexture = &gltf.TextureInfo{Index: idx}
		}
		if v, ok := m.Property("_EmissiveColor"); ok && v.Kind == scene.KindVector {
			gm.EmissiveFactor = [3]float64{float64(v.Vector.X), float64(v.Vector.Y), float64(v.Vector.Z)}
		}

		props := make(map[string]any, len(m.Properties))
		for _, k := range m.PropertyNames() {
			props[k] = propertyExtra(m.Properties[k])
		}
		extras := map[string]any{
			extraShader:     m.Shader,
			extraProperties: props,
		}
		if len(m.Keywords) > 0 {
			extras[extraKeywords] = m.Keywords
		}
		gm.Extras = extras
		w.doc.Materials = append(w.doc.Materials, gm)
		w.mats[m.Name] = len(w.doc.Materials) - 1
	}
}

func (w *gltfWriter) slotTexture(m *scene.Material, slot string) (int, bool) {
	v, ok := m.Property(slot)
	if !ok || v.Kind != scene.KindTexture {
		return 0, false
	}
	idx, ok := w.textures[v.Texture]
	return idx, ok
}

func propertyExtra(v scene.Value) any {
	switch v.Kind {
	case scene.KindVector:
		return []float64{float64(v.Vector.X), float64(v.Vector.Y), float64(v.Vector.Z), float64(v.Vector.W)}
	case scene.KindTexture:
		return map[string]any{"texture": v.Texture}
	default:
		return float64(v.Scalar)
	}
}

// mesh returns the glTF mesh drawing the registry mesh with the given
// material, writing geometry accessors once per registry mesh.
func (w *gltfWriter) mesh(name, material string) int {
	key := [2]string{name, material}
	if idx, ok := w.meshes[key]; ok {
		return idx
	}
	m, _ := w.g.Meshes.Get(name)
	attrs, ok := w.geometry[name]
	if !ok {
		attrs = w.writeGeometry(m)
		w.geometry[name] = attrs
		w.indices[name] = modeler.WriteIndices(w.doc, m.Indices)
	}

	prim := &gltf.Primitive{Attributes: attrs, Indices: gltf.Index(w.indices[name])}
	if idx, ok := w.mats[material]; ok {
		prim.Material = gltf.Index(idx)
	}
	extras := map[string]any{extraMesh: name}
	if len(m.LODs) > 0 {
		extras[extraLODs] = m.LODs
	}
	w.doc.Meshes = append(w.doc.Meshes, &gltf.Mesh{
		Name:       name,
		Primitives: []*gltf.Primitive{prim},
		Extras:     extras,
	})
	idx := len(w.doc.Meshes) - 1
	w.meshes[key] = idx
	return idx
}

func (w *gltfWriter) writeGeometry(m *scene.Mesh) gltf.PrimitiveAttributes {
	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{v.X, v.Y, v.Z}
	}
	attrs := gltf.PrimitiveAttributes{gltf.POSITION: modeler.WritePosition(w.doc, positions)}
	if len(m.Normals) > 0 {
		normals := make([][3]float32, len(m.Normals))
		for i, n := range m.Normals {
			normals[i] = [3]float32{n.X, n.Y, n.Z}
		}
		attrs[gltf.NORMAL] = modeler.WriteNormal(w.doc, normals)
	}
	if len(m.UVs) > 0 {
		uvs := make([][2]float32, len(m.UVs))
		for i, uv := range m.UVs {
			uvs[i] = [2]float32{uv.X, uv.Y}
		}
		attrs[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(w.doc, uvs)
	}
	if len(m.Tangents) > 0 {
		tangents := make([][4]float32, len(m.Tangents))
		for i, t := range m.Tangents {
			tangents[i] = [4]float32{t.X, t.Y, t.Z, t.W}
		}
		attrs[gltf.TANGENT] = modeler.WriteTangent(w.doc, tangents)
	}
	return attrs
}

func (w *gltfWriter) writeNode(id scene.NodeID) int {
	n := w.g.Node(id)
	gn := &gltf.Node{Name: n.Name}
	if !n.Transform.IsIdentity(0) {
		gn.Matrix = n.Transform.Array()
	}
	if n.Mesh != "" {
		gn.Mesh = gltf.Index(w.mesh(n.Mesh, n.Material))
	}

	extras := map[string]any{}
	if n.Mesh == "" && n.Material != "" {
		extras[extraMaterial] = n.Material
	}
	if n.IsInstance {
		extras[extraInstance] = true
		extras[extraPrototype] = n.Prototype
	}
	if len(n.InstanceTransforms) > 0 {
		list := make([][16]float64, len(n.InstanceTransforms))
		for i, m := range n.InstanceTransforms {
			list[i] = m.Array()
		}
		extras[extraInstances] = list
	}
	if n.Bounds != nil {
		extras[extraBounds] = map[string]any{
			"center": []float32{n.Bounds.Center.X, n.Bounds.Center.Y, n.Bounds.Center.Z},
			"size":   []float32{n.Bounds.Size.X, n.Bounds.Size.Y, n.Bounds.Size.Z},
		}
	}
	if len(extras) > 0 {
		gn.Extras = extras
	}

	w.doc.Nodes = append(w.doc.Nodes, gn)
	idx := len(w.doc.Nodes) - 1
	for _, c := range w.g.Children(id) {
		gn.Children = append(gn.Children, w.writeNode(c))
	}
	return idx
}
