package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
)

// NodeID identifies a node within a scene. Zero means "no node".
type NodeID uint64

// NodeFlags holds per-node render hints.
type NodeFlags uint32

const (
	// NodeFlagTransparent keeps the node out of the opaque list.
	NodeFlagTransparent NodeFlags = 1 << iota
)

// MeshInstance references the CPU mesh and material a node draws with.
type MeshInstance struct {
	Mesh     asset.ID
	Material asset.ID
}

// Node is one element of the scene hierarchy. Local is relative to the parent node.
// A node with Visible set to false hides itself and its whole subtree.
type Node struct {
	ID       NodeID
	Name     string
	Local    common.Transform
	Visible  bool
	Flags    NodeFlags
	Mesh     *MeshInstance
	Children []*Node
}

// NewNode returns a visible node with an identity transform.
func NewNode(name string) *Node {
	return &Node{Name: name, Local: common.IdentityTransform(), Visible: true}
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Has reports whether every bit of f is set on the node.
func (n *Node) Has(f NodeFlags) bool {
	return n.Flags&f == f
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu     *sync.RWMutex
	name   string
	root   *Node
	byID   map[NodeID]*Node
	nextID NodeID
}

// Scene is a named node hierarchy. The renderer only reads it; the hierarchy belongs to whoever
// built the scene. Lookups are safe for concurrent use.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Root returns the root node. The root itself carries no content but its transform and
	// visibility apply to the whole hierarchy.
	//
	// Returns:
	//   - *Node: the root node, never nil
	Root() *Node

	// Node looks up a node by ID.
	//
	// Parameters:
	//   - id: the node ID
	//
	// Returns:
	//   - *Node: the node
	//   - bool: false when no node has that ID
	Node(id NodeID) (*Node, bool)

	// Count returns the number of nodes below the root.
	Count() int

	// Attach adds a node and its subtree under parent and assigns IDs to any node whose ID is
	// zero. A zero parent attaches to the root.
	//
	// Parameters:
	//   - parent: the parent node ID
	//   - node: the node to attach
	//
	// Returns:
	//   - NodeID: the ID of node
	//   - bool: false when parent does not exist
	Attach(parent NodeID, node *Node) (NodeID, bool)
}

var _ Scene = &scene{}

// NewScene creates an empty scene with the given name.
//
// Parameters:
//   - name: the scene's identifier
//   - options: functional options
//
// Returns:
//   - Scene: the scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:     &sync.RWMutex{},
		name:   name,
		root:   NewNode("root"),
		byID:   make(map[NodeID]*Node),
		nextID: 1,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *scene) Name() string { return s.name }

func (s *scene) Root() *Node { return s.root }

func (s *scene) Node(id NodeID) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	return n, ok
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *scene) Attach(parent NodeID, node *Node) (NodeID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.root
	if parent != 0 {
		var ok bool
		if p, ok = s.byID[parent]; !ok {
			return 0, false
		}
	}
	s.register(node)
	p.Children = append(p.Children, node)
	return node.ID, true
}

// register assigns IDs through the subtree rooted at n. Caller holds the write lock.
func (s *scene) register(n *Node) {
	if n.ID == 0 {
		for s.byID[s.nextID] != nil {
			s.nextID++
		}
		n.ID = s.nextID
		s.nextID++
	}
	s.byID[n.ID] = n
	for _, c := range n.Children {
		s.register(c)
	}
}
