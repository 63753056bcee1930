package hlod

import (
	"hlod-engine/internal/arena"
	"hlod-engine/internal/fsm"
	"hlod-engine/internal/space"
)

// entry collects the loads of one pending entry into Low or High.
type entry struct {
	requested []*Handle
	resolved  map[int]*Handle
}

func (e *entry) complete() bool {
	return len(e.resolved) == len(e.requested)
}

// TreeNode is one spatial cell of the hierarchy. Nodes reference each other only through
// ids of their controller's store; the parent id is a back-reference, not ownership.
type TreeNode struct {
	id       arena.ID
	parent   arena.ID
	level    int
	bounds   space.Bounds
	children []arena.ID
	highIDs  []int
	lowIDs   []int

	ctrl     *Controller
	fsm      *fsm.Machine[State]
	expected State

	high        map[int]*Handle
	low         map[int]*Handle
	loadingHigh *entry
	loadingLow  *entry

	radiusSq         float32
	distance         float32
	visible          bool
	visibleHierarchy bool
}

func newTreeNode(c *Controller, parent arena.ID, level int, bounds space.Bounds, high, low []int) *TreeNode {
	n := &TreeNode{
		parent:           parent,
		level:            level,
		bounds:           bounds,
		highIDs:          high,
		lowIDs:           low,
		ctrl:             c,
		fsm:              fsm.New(Release),
		high:             make(map[int]*Handle),
		low:              make(map[int]*Handle),
		radiusSq:         bounds.PlanarRadiusSquared(),
		visible:          true,
		visibleHierarchy: true,
	}
	n.registerStates()
	return n
}

func (n *TreeNode) registerStates() {
	n.fsm.Register(Release, fsm.Hooks{
		IsReadyToEnter: n.readyRelease,
		Entered:        n.enteredRelease,
	})
	n.fsm.Register(Low, fsm.Hooks{
		Entering:       n.enteringLow,
		IsReadyToEnter: n.readyLow,
		Entered:        n.enteredLow,
		Exited:         n.exitedLow,
		Cancelled:      n.cancelledLow,
	})
	n.fsm.Register(High, fsm.Hooks{
		Entering:       n.enteringHigh,
		IsReadyToEnter: n.readyHigh,
		Entered:        n.enteredHigh,
		Exited:         n.exitedHigh,
		Cancelled:      n.cancelledHigh,
	})
}

func (n *TreeNode) ID() arena.ID { return n.id }
func (n *TreeNode) Parent() arena.ID { return n.parent }
func (n *TreeNode) Level() int { return n.level }
func (n *TreeNode) Bounds() space.Bounds { return n.bounds }
func (n *TreeNode) Children() []arena.ID { return n.children }
func (n *TreeNode) HighObjectIDs() []int { return n.highIDs }
func (n *TreeNode) LowObjectIDs() []int { return n.lowIDs }
func (n *TreeNode) ExpectedState() State { return n.expected }
func (n *TreeNode) CurrentState() State { return n.fsm.Current() }
func (n *TreeNode) TargetState() State { return n.fsm.Target() }
func (n *TreeNode) Status() fsm.Status[State] { return n.fsm.Status() }
func (n *TreeNode) Visible() bool { return n.visible }
func (n *TreeNode) VisibleHierarchy() bool { return n.visibleHierarchy }

// Distance is the squared planar camera distance minus the cell's squared planar radius,
// as of the last tick.
func (n *TreeNode) Distance() float32 { return n.distance }

// ResidentHigh returns the number of active high-detail objects.
func (n *TreeNode) ResidentHigh() int { return len(n.high) }

// ResidentLow returns the number of active low-detail objects.
func (n *TreeNode) ResidentLow() int { return len(n.low) }

// HighHandles returns the active high-detail handles.
func (n *TreeNode) HighHandles() []*Handle { return handles(n.high) }

// LowHandles returns the active low-detail handles.
func (n *TreeNode) LowHandles() []*Handle { return handles(n.low) }

func handles(m map[int]*Handle) []*Handle {
	out := make([]*Handle, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	return out
}

func (n *TreeNode) parentNode() *TreeNode {
	if n.parent == arena.None {
		return nil
	}
	return n.ctrl.store.MustGet(n.parent)
}

func (n *TreeNode) eachChild(fn func(*TreeNode)) {
	for _, id := range n.children {
		fn(n.ctrl.store.MustGet(id))
	}
}

func (n *TreeNode) release() {
	n.fsm.Request(Release)
}

// Cull is the hard veto applied to the root before its update: true releases the node,
// false gives a released node a Low state to progress from.
func (n *TreeNode) Cull(cull bool) {
	if cull {
		n.release()
		return
	}
	if n.fsm.Target() == Release {
		n.fsm.Request(Low)
	}
}

// IsLoadDone reports whether the node and the subtree it shows are fully resident.
// A root that has not left Release has nothing to show and is never done.
func (n *TreeNode) IsLoadDone() bool {
	if n.parent == arena.None && n.fsm.Current() == Release {
		return false
	}
	if n.fsm.Pending() {
		return false
	}
	switch n.fsm.Current() {
	case High:
		for _, id := range n.children {
			if !n.ctrl.store.MustGet(id).IsLoadDone() {
				return false
			}
		}
		return len(n.high) == len(n.highIDs)
	case Low:
		return len(n.low) == len(n.lowIDs)
	}
	return true
}

// IsReady reports whether the node rests in its state with all of that state's content resident.
func (n *TreeNode) IsReady() bool {
	if n.fsm.Pending() {
		return false
	}
	switch n.fsm.Current() {
	case High:
		return len(n.high) == len(n.highIDs)
	case Low:
		return len(n.low) == len(n.lowIDs)
	}
	return true
}

func (n *TreeNode) readyRelease() bool {
	p := n.parentNode()
	return p == nil || p.fsm.Current() != High
}

func (n *TreeNode) enteredRelease() {
	n.eachChild(func(child *TreeNode) {
		child.visible = false
		child.release()
	})
}

func (n *TreeNode) enteringLow() {
	e := &entry{resolved: make(map[int]*Handle)}
	n.loadingLow = e
	for _, id := range n.lowIDs {
		if _, ok := n.low[id]; ok {
			continue
		}
		h := n.ctrl.GetLowObject(id, n.level, n.distance, func(h *Handle) {
			if n.loadingLow != e {
				return
			}
			h.Object.SetActive(false)
			e.resolved[id] = h
		})
		e.requested = append(e.requested, h)
	}
}

func (n *TreeNode) readyLow() bool {
	return n.loadingLow == nil || n.loadingLow.complete()
}

func (n *TreeNode) enteredLow() {
	for id, h := range n.loadingLow.resolved {
		n.low[id] = h
	}
	n.loadingLow = nil
	n.eachChild((*TreeNode).release)
}

func (n *TreeNode) exitedLow() {
	for id, h := range n.low {
		h.Object.SetActive(false)
		n.ctrl.ReleaseLowObject(h)
		delete(n.low, id)
	}
}

func (n *TreeNode) cancelledLow() {
	e := n.loadingLow
	n.loadingLow = nil
	if e == nil {
		return
	}
	for _, h := range e.requested {
		if h.Loaded() {
			h.Object.SetActive(false)
		}
		n.ctrl.ReleaseLowObject(h)
	}
}

func (n *TreeNode) enteringHigh() {
	// children must have their coarse content before this node can hand detail over to them
	n.eachChild(func(child *TreeNode) {
		child.visible = false
		// the child has not been updated yet this tick, or ever
		child.measure()
		child.fsm.Request(Low)
	})

	e := &entry{resolved: make(map[int]*Handle)}
	n.loadingHigh = e
	for _, id := range n.highIDs {
		if _, ok := n.high[id]; ok {
			continue
		}
		h := n.ctrl.GetHighObject(id, n.level, n.distance, func(h *Handle) {
			if n.loadingHigh != e {
				return
			}
			h.Object.SetActive(false)
			if ud := n.ctrl.userData; ud != nil {
				ud.DeserializeUserData(n.ctrl, id, h.Object)
			}
			e.resolved[id] = h
		})
		e.requested = append(e.requested, h)
	}
}

func (n *TreeNode) readyHigh() bool {
	e := n.loadingHigh
	if e == nil {
		return true
	}
	if !e.complete() {
		return false
	}
	for _, id := range n.children {
		if n.ctrl.store.MustGet(id).fsm.Current() == Release {
			return false
		}
	}
	return true
}

func (n *TreeNode) enteredHigh() {
	n.eachChild(func(child *TreeNode) {
		child.visible = true
	})
	for id, h := range n.loadingHigh.resolved {
		n.high[id] = h
	}
	n.loadingHigh = nil
}

func (n *TreeNode) exitedHigh() {
	for id, h := range n.high {
		h.Object.SetActive(false)
		n.ctrl.ReleaseHighObject(h)
		delete(n.high, id)
	}
	n.eachChild(func(child *TreeNode) {
		child.release()
		child.visible = false
	})
}

func (n *TreeNode) cancelledHigh() {
	e := n.loadingHigh
	n.loadingHigh = nil
	if e != nil {
		for _, h := range e.requested {
			if h.Loaded() {
				h.Object.SetActive(false)
			}
			n.ctrl.ReleaseHighObject(h)
		}
	}
	n.eachChild(func(child *TreeNode) {
		child.release()
		child.visible = false
	})
}

type updateParams struct {
	mode         Mode
	manualLevel  int
	lodThreshold float32
}

func (n *TreeNode) computeExpected(p updateParams) State {
	switch p.mode {
	case DisableHLOD:
		return High
	case ManualControl:
		switch {
		case p.manualLevel >= 0 && n.level < p.manualLevel:
			return High
		case n.level == p.manualLevel:
			return Low
		}
		return Release
	}
	expected := Low
	if n.ctrl.space.IsHigh(p.lodThreshold, n.bounds) {
		expected = High
	}
	// a child can never out-rank a parent that is coarse or gone
	if parent := n.parentNode(); parent != nil && parent.expected != High {
		expected = Release
	}
	return expected
}

// measure refreshes the load priority from the current camera.
func (n *TreeNode) measure() {
	n.distance = n.ctrl.space.DistanceSquared(n.bounds) - n.radiusSq
}

// update runs the node's per-tick pass and then its children's, strictly top-down.
// The node settles at most one state per tick; after settling it may start entering the
// next state, whose loads then resolve while the tick goes on.
func (n *TreeNode) update(p updateParams) {
	n.measure()
	n.expected = n.computeExpected(p)

	hopped := false
	for {
		before := n.fsm.Current()
		if n.fsm.Target() != Release {
			if n.expected == High {
				// an invisible Low node was loaded by its parent and is not shown yet;
				// it may only refine once the parent settles High and shows it
				if n.fsm.Current() == Low && n.visible {
					n.fsm.Request(High)
				}
			} else {
				n.fsm.Request(Low)
			}
		}
		if !hopped {
			hopped = n.fsm.Update()
		}
		if n.fsm.Current() == before {
			break
		}
	}

	n.updateVisible()
	for _, id := range n.children {
		n.ctrl.store.MustGet(id).update(p)
	}
}

func (n *TreeNode) updateVisible() {
	if p := n.parentNode(); p != nil {
		n.visibleHierarchy = n.visible && p.visibleHierarchy
	} else {
		n.visibleHierarchy = n.visible
	}
	for _, h := range n.high {
		h.Object.SetActive(n.visibleHierarchy)
	}
	for _, h := range n.low {
		h.Object.SetActive(n.visibleHierarchy)
	}
}

// teardown gives every handle the node holds or waits for back to the controller.
func (n *TreeNode) teardown() {
	n.cancelledLow()
	if e := n.loadingHigh; e != nil {
		n.loadingHigh = nil
		for _, h := range e.requested {
			n.ctrl.ReleaseHighObject(h)
		}
	}
	for id, h := range n.low {
		h.Object.SetActive(false)
		n.ctrl.ReleaseLowObject(h)
		delete(n.low, id)
	}
	for id, h := range n.high {
		h.Object.SetActive(false)
		n.ctrl.ReleaseHighObject(h)
		delete(n.high, id)
	}
	n.fsm = fsm.New(Release)
	n.registerStates()
}
