package hlod

import (
	"errors"
	"fmt"

	"hlod-engine/internal/arena"
	"hlod-engine/internal/space"
)

// ErrInvalidTree wraps every structural error found in a TreeSpec.
var ErrInvalidTree = errors.New("hlod: invalid tree")

// NodeSpec is the build-time description of one node. Children are indices into TreeSpec.Nodes.
type NodeSpec struct {
	Bounds   space.Bounds `yaml:"bounds" json:"bounds"`
	High     []int        `yaml:"high,omitempty" json:"high,omitempty"`
	Low      []int        `yaml:"low,omitempty" json:"low,omitempty"`
	Children []int        `yaml:"children,omitempty" json:"children,omitempty"`
}

// TreeSpec is a pre-built hierarchy: a flat node list and the index of its root.
// Levels are the depth below the root.
type TreeSpec struct {
	Root  int        `yaml:"root" json:"root"`
	Nodes []NodeSpec `yaml:"nodes" json:"nodes"`
}

// Validate rejects trees a controller cannot stream: a missing root, dangling child
// indices, nodes reached twice (cycles or shared children), unreachable nodes, and
// negative or repeated content ids within one node.
func (t *TreeSpec) Validate() error {
	if t == nil || len(t.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidTree)
	}
	if t.Root < 0 || t.Root >= len(t.Nodes) {
		return fmt.Errorf("%w: root %d out of range", ErrInvalidTree, t.Root)
	}

	seen := make([]bool, len(t.Nodes))
	stack := []int{t.Root}
	seen[t.Root] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[i]
		if err := checkIDs(i, "high", n.High); err != nil {
			return err
		}
		if err := checkIDs(i, "low", n.Low); err != nil {
			return err
		}
		for _, c := range n.Children {
			if c < 0 || c >= len(t.Nodes) {
				return fmt.Errorf("%w: node %d has dangling child %d", ErrInvalidTree, i, c)
			}
			if seen[c] {
				return fmt.Errorf("%w: node %d is reached twice (cycle or shared child)", ErrInvalidTree, c)
			}
			seen[c] = true
			stack = append(stack, c)
		}
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: node %d is not reachable from root", ErrInvalidTree, i)
		}
	}
	return nil
}

func checkIDs(node int, set string, ids []int) error {
	dup := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if id < 0 {
			return fmt.Errorf("%w: node %d has negative %s id %d", ErrInvalidTree, node, set, id)
		}
		if _, ok := dup[id]; ok {
			return fmt.Errorf("%w: node %d lists %s id %d twice", ErrInvalidTree, node, set, id)
		}
		dup[id] = struct{}{}
	}
	return nil
}

// Depth returns the number of levels of a valid tree.
func (t *TreeSpec) Depth() int {
	var depth func(i int) int
	depth = func(i int) int {
		d := 0
		for _, c := range t.Nodes[i].Children {
			d = max(d, depth(c))
		}
		return d + 1
	}
	return depth(t.Root)
}

// attach adds the subtree of t rooted at index i to the store, parents first, and
// returns the new node's id.
func (c *Controller) attach(parent arena.ID, t *TreeSpec, i, level int) arena.ID {
	spec := &t.Nodes[i]
	n := newTreeNode(c, parent, level, spec.Bounds, append([]int(nil), spec.High...), append([]int(nil), spec.Low...))
	n.id = c.store.Add(n)
	n.children = make([]arena.ID, 0, len(spec.Children))
	for _, ci := range spec.Children {
		n.children = append(n.children, c.attach(n.id, t, ci, level+1))
	}
	return n.id
}

// detach removes the subtree below n from the store; n itself stays.
func (c *Controller) detach(n *TreeNode) {
	for _, id := range n.children {
		child := c.store.MustGet(id)
		c.detach(child)
		c.store.Remove(id)
	}
	n.children = nil
}

// ReplaceChildren swaps the subtree below node for the children of sub's root. The node and
// everything below it must be released first; sub is validated like a full tree.
func (c *Controller) ReplaceChildren(node arena.ID, sub *TreeSpec) error {
	n, ok := c.store.Get(node)
	if !ok {
		return fmt.Errorf("hlod: unknown node %s", node)
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	if !c.subtreeReleased(n, false) {
		return ErrBusy
	}
	c.detach(n)
	for _, ci := range sub.Nodes[sub.Root].Children {
		n.children = append(n.children, c.attach(n.id, sub, ci, n.level+1))
	}
	return nil
}

// ClearChildren removes every node below node. The subtree must be released.
func (c *Controller) ClearChildren(node arena.ID) error {
	n, ok := c.store.Get(node)
	if !ok {
		return fmt.Errorf("hlod: unknown node %s", node)
	}
	if !c.subtreeReleased(n, false) {
		return ErrBusy
	}
	c.detach(n)
	return nil
}

// subtreeReleased reports whether the nodes below n, and n itself when self is set, hold
// no content and expect none.
func (c *Controller) subtreeReleased(n *TreeNode, self bool) bool {
	if self && (n.fsm.Current() != Release || n.fsm.Pending()) {
		return false
	}
	if n.fsm.Current() == High || n.fsm.Target() == High {
		return false
	}
	for _, id := range n.children {
		if !c.subtreeReleased(c.store.MustGet(id), true) {
			return false
		}
	}
	return true
}
