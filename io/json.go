package io

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"scene-optimizer/core"
	"scene-optimizer/math"
	"scene-optimizer/scene"
)

// Version of the JSON scene format written by writeJSON.
const formatVersion = 1

// ── JSON data structures ──────────────────────────────────────────────────────

type sceneFile struct {
	Version   int            `json:"version"`
	Name      string         `json:"name"`
	Textures  []textureJSON  `json:"textures,omitempty"`
	Materials []materialJSON `json:"materials,omitempty"`
	Meshes    []meshJSON     `json:"meshes,omitempty"`
	Root      nodeJSON       `json:"root"`
}

type textureJSON struct {
	Name   string       `json:"name"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Format scene.Format `json:"format"`
	Source string       `json:"source,omitempty"`
}

type valueJSON struct {
	Kind    string      `json:"kind"` // "scalar", "vector" or "texture"
	Scalar  float32     `json:"scalar,omitempty"`
	Vector  *[4]float32 `json:"vector,omitempty"`
	Texture string      `json:"texture,omitempty"`
}

type materialJSON struct {
	Name       string               `json:"name"`
	Shader     string               `json:"shader"`
	Properties map[string]valueJSON `json:"properties,omitempty"`
	Keywords   []string             `json:"keywords,omitempty"`
}

type meshJSON struct {
	Name     string       `json:"name"`
	Vertices [][3]float32 `json:"vertices"`
	UVs      [][2]float32 `json:"uvs,omitempty"`
	Normals  [][3]float32 `json:"normals,omitempty"`
	Tangents [][4]float32 `json:"tangents,omitempty"`
	Indices  []uint32     `json:"indices"`
	Bounds   boundsJSON   `json:"bounds"`
	LODs     []string     `json:"lods,omitempty"`
}

type boundsJSON struct {
	Center [3]float32 `json:"center"`
	Size   [3]float32 `json:"size"`
}

type nodeJSON struct {
	Name               string        `json:"name"`
	Transform          *[16]float64  `json:"transform,omitempty"` // omitted when identity
	Mesh               string        `json:"mesh,omitempty"`
	Material           string        `json:"material,omitempty"`
	IsInstance         bool          `json:"isInstance,omitempty"`
	Prototype          string        `json:"prototype,omitempty"`
	InstanceTransforms [][16]float64 `json:"instanceTransforms,omitempty"`
	Bounds             *boundsJSON   `json:"bounds,omitempty"`
	Children           []nodeJSON    `json:"children,omitempty"`
}

// ── Encoding ─────────────────────────────────────────────────────────────────

func writeJSON(path string, g *scene.Graph) error {
	data, err := json.MarshalIndent(encodeScene(g), "", "  ")
	if err != nil {
		return fmt.Errorf("export %q: marshal: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ioErr("export", path, err)
	}
	return nil
}

func encodeScene(g *scene.Graph) sceneFile {
	f := sceneFile{Version: formatVersion, Name: g.Name}
	for _, t := range g.Textures.Values() {
		f.Textures = append(f.Textures, textureJSON{
			Name: t.Name, Width: t.Width, Height: t.Height, Format: t.Format, Source: t.Source,
		})
	}
	for _, m := range g.Materials.Values() {
		mj := materialJSON{Name: m.Name, Shader: m.Shader, Keywords: m.Keywords}
		if len(m.Properties) > 0 {
			mj.Properties = make(map[string]valueJSON, len(m.Properties))
			for k, v := range m.Properties {
				mj.Properties[k] = encodeValue(v)
			}
		}
		f.Materials = append(f.Materials, mj)
	}
	for _, m := range g.Meshes.Values() {
		f.Meshes = append(f.Meshes, encodeMesh(m))
	}
	f.Root = encodeNode(g, g.Root())
	return f
}

func encodeValue(v scene.Value) valueJSON {
	switch v.Kind {
	case scene.KindVector:
		vec := [4]float32{v.Vector.X, v.Vector.Y, v.Vector.Z, v.Vector.W}
		return valueJSON{Kind: "vector", Vector: &vec}
	case scene.KindTexture:
		return valueJSON{Kind: "texture", Texture: v.Texture}
	default:
		return valueJSON{Kind: "scalar", Scalar: v.Scalar}
	}
}

func encodeMesh(m *scene.Mesh) meshJSON {
	mj := meshJSON{
		Name:     m.Name,
		Vertices: vec3Array(m.Vertices),
		Normals:  vec3Array(m.Normals),
		Indices:  m.Indices,
		Bounds:   encodeBounds(m.Bounds),
		LODs:     m.LODs,
	}
	if mj.Indices == nil {
		mj.Indices = []uint32{}
	}
	for _, uv := range m.UVs {
		mj.UVs = append(mj.UVs, [2]float32{uv.X, uv.Y})
	}
	for _, t := range m.Tangents {
		mj.Tangents = append(mj.Tangents, [4]float32{t.X, t.Y, t.Z, t.W})
	}
	return mj
}

func encodeBounds(b core.Bounds) boundsJSON {
	return boundsJSON{
		Center: [3]float32{b.Center.X, b.Center.Y, b.Center.Z},
		Size:   [3]float32{b.Size.X, b.Size.Y, b.Size.Z},
	}
}

func encodeNode(g *scene.Graph, id scene.NodeID) nodeJSON {
	n := g.Node(id)
	nj := nodeJSON{
		Name:       n.Name,
		Mesh:       n.Mesh,
		Material:   n.Material,
		IsInstance: n.IsInstance,
		Prototype:  n.Prototype,
	}
	if !n.Transform.IsIdentity(0) {
		a := n.Transform.Array()
		nj.Transform = &a
	}
	for _, m := range n.InstanceTransforms {
		nj.InstanceTransforms = append(nj.InstanceTransforms, m.Array())
	}
	if n.Bounds != nil {
		b := encodeBounds(*n.Bounds)
		nj.Bounds = &b
	}
	for _, c := range g.Children(id) {
		nj.Children = append(nj.Children, encodeNode(g, c))
	}
	return nj
}

func vec3Array(vs []math.Vec3) [][3]float32 {
	if len(vs) == 0 {
		return nil
	}
	out := make([][3]float32, len(vs))
	for i, v := range vs {
		out[i] = [3]float32{v.X, v.Y, v.Z}
	}
	return out
}

// ── Decoding ─────────────────────────────────────────────────────────────────

func readJSON(path string) (*scene.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr("import", path, err)
	}
	var f sceneFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ioErr("import", path, fmt.Errorf("parse: %w", err))
	}
	if f.Version > formatVersion {
		return nil, fmt.Errorf("import %q: format version %d is newer than %d: %w", path, f.Version, formatVersion, core.ErrInvalidArgument)
	}
	g, err := decodeScene(&f)
	if err != nil {
		return nil, fmt.Errorf("import %q: %w", path, err)
	}
	return g, nil
}

func decodeScene(f *sceneFile) (*scene.Graph, error) {
	g := scene.New(f.Name)
	for _, t := range f.Textures {
		g.Textures.Put(t.Name, &scene.Texture{
			Name: t.Name, Width: t.Width, Height: t.Height, Format: t.Format, Source: t.Source,
		})
	}
	for _, mj := range f.Materials {
		m := scene.NewMaterial(mj.Name, mj.Shader)
		keys := make([]string, 0, len(mj.Properties))
		for k := range mj.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := decodeValue(mj.Properties[k])
			if err != nil {
				return nil, fmt.Errorf("material %q property %q: %w", mj.Name, k, err)
			}
			m.Set(k, v)
		}
		for _, kw := range mj.Keywords {
			m.AddKeyword(kw)
		}
		g.Materials.Put(m.Name, m)
	}
	for _, mj := range f.Meshes {
		g.Meshes.Put(mj.Name, decodeMesh(mj))
	}

	root := g.Node(g.Root())
	decodeNodeInto(root, &f.Root)
	for i := range f.Root.Children {
		decodeChildren(g, g.Root(), &f.Root.Children[i])
	}
	return g, nil
}

func decodeValue(vj valueJSON) (scene.Value, error) {
	switch vj.Kind {
	case "scalar", "":
		return scene.Scalar(vj.Scalar), nil
	case "vector":
		if vj.Vector == nil {
			return scene.Value{}, fmt.Errorf("vector value without components: %w", core.ErrInvalidArgument)
		}
		v := vj.Vector
		return scene.Vector(math.NewVec4(v[0], v[1], v[2], v[3])), nil
	case "texture":
		return scene.TextureRef(vj.Texture), nil
	default:
		return scene.Value{}, fmt.Errorf("unknown value kind %q: %w", vj.Kind, core.ErrInvalidArgument)
	}
}

func decodeMesh(mj meshJSON) *scene.Mesh {
	m := &scene.Mesh{
		Name:    mj.Name,
		Indices: mj.Indices,
		Bounds:  decodeBounds(mj.Bounds),
		LODs:    mj.LODs,
	}
	m.Vertices = vec3Slice(mj.Vertices)
	m.Normals = vec3Slice(mj.Normals)
	for _, uv := range mj.UVs {
		m.UVs = append(m.UVs, math.NewVec2(uv[0], uv[1]))
	}
	for _, t := range mj.Tangents {
		m.Tangents = append(m.Tangents, math.NewVec4(t[0], t[1], t[2], t[3]))
	}
	return m
}

func decodeBounds(b boundsJSON) core.Bounds {
	return core.Bounds{
		Center: math.NewVec3(b.Center[0], b.Center[1], b.Center[2]),
		Size:   math.NewVec3(b.Size[0], b.Size[1], b.Size[2]),
	}
}

func decodeNodeInto(n *scene.Node, nj *nodeJSON) {
	n.Name = nj.Name
	n.Transform = math.Mat4Identity()
	if nj.Transform != nil {
		n.Transform = math.Mat4FromArray(*nj.Transform)
	}
	n.Mesh = nj.Mesh
	n.Material = nj.Material
	n.IsInstance = nj.IsInstance
	n.Prototype = nj.Prototype
	for _, a := range nj.InstanceTransforms {
		n.InstanceTransforms = append(n.InstanceTransforms, math.Mat4FromArray(a))
	}
	if nj.Bounds != nil {
		b := decodeBounds(*nj.Bounds)
		n.Bounds = &b
	}
}

func decodeChildren(g *scene.Graph, parent scene.NodeID, nj *nodeJSON) {
	var n scene.Node
	decodeNodeInto(&n, nj)
	id := g.AddChild(parent, n)
	for i := range nj.Children {
		decodeChildren(g, id, &nj.Children[i])
	}
}

func vec3Slice(vs [][3]float32) []math.Vec3 {
	if len(vs) == 0 {
		return nil
	}
	out := make([]math.Vec3, len(vs))
	for i, v := range vs {
		out[i] = math.NewVec3(v[0], v[1], v[2])
	}
	return out
}
