package hlod

import (
	"errors"
	"fmt"

	"hlod-engine/internal/arena"
)

// CheckInvariants walks the hierarchy and reports every broken parent/child rule. Callers
// run it between ticks; within a tick the rules hold only once the pass reached every node.
func CheckInvariants(c *Controller) error {
	var errs []error
	c.Walk(func(n *TreeNode) bool {
		errs = append(errs, checkNode(c, n)...)
		return true
	})
	return errors.Join(errs...)
}

func checkNode(c *Controller, n *TreeNode) []error {
	var errs []error
	state := n.fsm.Current()
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("node %s (level %d, %s): %s", n.id, n.level, state, fmt.Sprintf(format, args...)))
	}

	if state != High && len(n.high) > 0 {
		fail("%d high objects resident", len(n.high))
	}
	if state != Low && len(n.low) > 0 {
		fail("%d low objects resident", len(n.low))
	}

	for _, id := range n.children {
		child := c.store.MustGet(id)
		if state == High && child.fsm.Current() == Release {
			fail("child %s released under a high parent", id)
		}
		if state == Release && !releasedSubtree(c, child) {
			fail("descendant of released node is resident")
		}
	}

	want := n.visible
	if n.parent != arena.None {
		want = want && c.store.MustGet(n.parent).visibleHierarchy
	}
	if n.visibleHierarchy != want {
		fail("hierarchy visibility %t, want %t", n.visibleHierarchy, want)
	}
	return errs
}

func releasedSubtree(c *Controller, n *TreeNode) bool {
	if n.fsm.Current() != Release {
		return false
	}
	for _, id := range n.children {
		if !releasedSubtree(c, c.store.MustGet(id)) {
			return false
		}
	}
	return true
}
