package event

// Node is a plain Target for callers without their own control tree.
type Node struct {
	id     string
	role   Role
	parent *Node
}

// NewNode returns a node with the given id and role nested under parent,
// which may be nil.
func NewNode(id string, role Role, parent *Node) *Node {
	return &Node{id: id, role: role, parent: parent}
}

func (n *Node) EffectiveID() string { return n.id }

func (n *Node) Role() Role { return n.role }

// Enclosing implements Parented.
func (n *Node) Enclosing() Target {
	if n.parent == nil {
		return nil
	}
	return n.parent
}
