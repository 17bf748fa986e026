package scene

import (
	"scene-optimizer/core"
	"scene-optimizer/math"
)

// NodeID identifies a node in a Graph.
type NodeID int

// Nil represents an invalid NodeID.
const Nil NodeID = -1

// NodeType classifies a node for hierarchy statistics.
type NodeType int

const (
	NodeTypeTransform NodeType = iota // neither mesh nor material
	NodeTypeMesh
	NodeTypeMaterial
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeMesh:
		return "Mesh"
	case NodeTypeMaterial:
		return "Material"
	default:
		return "Transform"
	}
}

// Node is one object of the scene graph. Mesh and Material hold registry
// names; an empty string means no reference.
type Node struct {
	Name      string
	Transform math.Mat4
	Mesh      string
	Material  string

	// Instance metadata. A node produced by instance deduplication draws its
	// prototype once per entry of InstanceTransforms; instance i sits at
	// InstanceTransforms[i] composed with the node's world transform.
	IsInstance         bool
	Prototype          string
	InstanceTransforms []math.Mat4
	// Bounds is the world-space volume covered by all instances, if known.
	Bounds *core.Bounds
}

// NewNode returns a node with an identity transform.
func NewNode(name string) Node {
	return Node{Name: name, Transform: math.Mat4Identity()}
}

func (n *Node) HasMesh() bool { return n.Mesh != "" }

// IsEmpty reports whether the node carries neither mesh nor material.
func (n *Node) IsEmpty() bool { return n.Mesh == "" && n.Material == "" }

func (n *Node) Type() NodeType {
	switch {
	case n.Mesh != "":
		return NodeTypeMesh
	case n.Material != "":
		return NodeTypeMaterial
	default:
		return NodeTypeTransform
	}
}

// Clone copies n including its instance data.
func (n Node) Clone() Node {
	if n.InstanceTransforms != nil {
		n.InstanceTransforms = append([]math.Mat4(nil), n.InstanceTransforms...)
	}
	if n.Bounds != nil {
		b := *n.Bounds
		n.Bounds = &b
	}
	return n
}
