package scene

// Clone returns an independent deep copy of g. Dead arena slots are
// dropped, so node IDs of the copy follow a pre-order numbering.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Name:      g.Name,
		Meshes:    NewRegistry[*Mesh](),
		Materials: NewRegistry[*Material](),
		Textures:  NewRegistry[*Texture](),
	}
	out.slots = make([]slot, 0, g.live)

	var copyNode func(id, parent NodeID) NodeID
	copyNode = func(id, parent NodeID) NodeID {
		src := &g.slots[id]
		nid := out.alloc(src.node.Clone(), parent)
		for _, c := range src.children {
			if !g.slots[c].alive {
				continue
			}
			cid := copyNode(c, nid)
			out.slots[nid].children = append(out.slots[nid].children, cid)
		}
		return nid
	}
	out.root = copyNode(g.root, Nil)

	for _, name := range g.Meshes.Names() {
		m, _ := g.Meshes.Get(name)
		out.Meshes.Put(name, m.Clone())
	}
	for _, name := range g.Materials.Names() {
		m, _ := g.Materials.Get(name)
		out.Materials.Put(name, m.Clone())
	}
	for _, name := range g.Textures.Names() {
		t, _ := g.Textures.Get(name)
		tc := *t
		out.Textures.Put(name, &tc)
	}
	return out
}
