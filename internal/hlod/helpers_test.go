package hlod

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/space"
)

type testObject struct {
	key      loadmgr.Key
	active   bool
	userData string
}

func (o *testObject) SetActive(active bool) { o.active = active }

// pendingLoad is a held load; the same key may be held more than once.
type pendingLoad struct {
	key  loadmgr.Key
	done func(loadmgr.Object, error)
}

// testSource resolves loads inline unless their key is held.
type testSource struct {
	holdAll  bool
	hold     map[loadmgr.Key]bool
	loads    map[loadmgr.Key]int
	unloads  map[loadmgr.Key]int
	priority map[loadmgr.Key]float32
	waiting  []pendingLoad
	order    []loadmgr.Key
}

func newTestSource() *testSource {
	return &testSource{
		hold:     make(map[loadmgr.Key]bool),
		loads:    make(map[loadmgr.Key]int),
		unloads:  make(map[loadmgr.Key]int),
		priority: make(map[loadmgr.Key]float32),
	}
}

func (s *testSource) Load(req loadmgr.Request, done func(loadmgr.Object, error)) {
	s.loads[req.Key]++
	s.priority[req.Key] = req.Priority
	s.order = append(s.order, req.Key)
	if s.holdAll || s.hold[req.Key] {
		s.waiting = append(s.waiting, pendingLoad{key: req.Key, done: done})
		return
	}
	done(&testObject{key: req.Key}, nil)
}

func (s *testSource) Unload(req loadmgr.Request, _ loadmgr.Object) {
	s.unloads[req.Key]++
}

// take removes the oldest held load of k.
func (s *testSource) take(t *testing.T, k loadmgr.Key) func(loadmgr.Object, error) {
	t.Helper()
	for i, p := range s.waiting {
		if p.key == k {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			return p.done
		}
	}
	require.FailNow(t, "no load waiting", "key %s", k)
	return nil
}

// held counts the outstanding loads of k.
func (s *testSource) held(k loadmgr.Key) int {
	n := 0
	for _, p := range s.waiting {
		if p.key == k {
			n++
		}
	}
	return n
}

// resolve completes the oldest held load of k.
func (s *testSource) resolve(t *testing.T, k loadmgr.Key) *testObject {
	t.Helper()
	obj := &testObject{key: k}
	s.take(t, k)(obj, nil)
	return obj
}

func (s *testSource) resolveAll(t *testing.T) {
	t.Helper()
	waiting := s.waiting
	s.waiting = nil
	for _, p := range waiting {
		p.done(&testObject{key: p.key}, nil)
	}
}

func (s *testSource) totalLoads() int {
	n := 0
	for _, c := range s.loads {
		n += c
	}
	return n
}

func (s *testSource) totalUnloads() int {
	n := 0
	for _, c := range s.unloads {
		n += c
	}
	return n
}

func highKey(id int) loadmgr.Key { return loadmgr.Key{Controller: 1, ID: id, Category: loadmgr.High} }
func lowKey(id int) loadmgr.Key { return loadmgr.Key{Controller: 1, ID: id, Category: loadmgr.Low} }

// camAt is a 90 degree perspective camera: relative size = size.x * 0.5 / planar distance.
func camAt(x, z float32) space.Camera {
	return space.Camera{Position: space.Vec3{x, 10, z}, Fov: 90, LODBias: 1}
}

func box(x, z, size float32) space.Bounds {
	return space.NewBounds(space.Vec3{x, 0, z}, space.Vec3{size, size, size})
}

func singleNode() *TreeSpec {
	return &TreeSpec{Nodes: []NodeSpec{{Bounds: box(0, 0, 10), High: []int{0}, Low: []int{0}}}}
}

// twoLevel is a root with one child in its +X+Z quadrant.
func twoLevel() *TreeSpec {
	return &TreeSpec{Nodes: []NodeSpec{
		{Bounds: box(0, 0, 10), High: []int{0}, Low: []int{0}, Children: []int{1}},
		{Bounds: box(2.5, 2.5, 5), High: []int{1}, Low: []int{1}},
	}}
}

// quad builds a full quadtree of the given depth over a square of size centered at the origin.
// Every node gets one high and one low id equal to its index.
func quad(depth int, size float32) *TreeSpec {
	t := &TreeSpec{}
	var add func(x, z, s float32, d int) int
	add = func(x, z, s float32, d int) int {
		i := len(t.Nodes)
		t.Nodes = append(t.Nodes, NodeSpec{Bounds: box(x, z, s), High: []int{i}, Low: []int{i}})
		if d+1 < depth {
			q := s / 4
			var children []int
			for _, off := range [][2]float32{{-q, -q}, {q, -q}, {-q, q}, {q, q}} {
				children = append(children, add(x+off[0], z+off[1], s/2, d+1))
			}
			t.Nodes[i].Children = children
		}
		return i
	}
	add(0, 0, size, 0)
	return t
}

func newInlineController(t *testing.T, tree *TreeSpec, src *testSource, opts ...ControllerOption) *Controller {
	t.Helper()
	c, err := NewController(1, tree, loadmgr.New(loadmgr.WithInline()), src, opts...)
	require.NoError(t, err)
	c.Start()
	return c
}

func tick(t *testing.T, c *Controller, cam space.Camera) {
	t.Helper()
	c.Tick(cam)
	require.NoError(t, CheckInvariants(c))
}

func child(c *Controller, n *TreeNode, i int) *TreeNode {
	return c.store.MustGet(n.children[i])
}
