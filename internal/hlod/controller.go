package hlod

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hlod-engine/internal/arena"
	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/space"
)

// Defaults taken by controllers built without explicit thresholds.
const (
	DefaultLODThreshold  float32 = 0.3
	DefaultCullThreshold float32 = 0.01
)

// ErrBusy is returned for structural edits on a subtree that still holds content.
var ErrBusy = errors.New("hlod: subtree is not released")

// pendingRequest collapses every request for one content id into a single underlying load.
type pendingRequest struct {
	handle    *Handle
	waiters   []func(*Handle)
	refs      int
	ticket    loadmgr.Ticket
	level     int
	distance  float32
	failed    error
	abandoned bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(log *zap.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// WithEvaluator replaces the default QuadTree space evaluator.
func WithEvaluator(e space.Evaluator) ControllerOption {
	return func(c *Controller) { c.space = e }
}

// WithUserData installs the hook run on every freshly loaded high-detail object.
func WithUserData(u UserDataDeserializer) ControllerOption {
	return func(c *Controller) { c.userData = u }
}

// WithMode sets the initial operating mode.
func WithMode(m Mode) ControllerOption {
	return func(c *Controller) { c.mode = m }
}

// WithManualLevel sets the level shown in ManualControl mode.
func WithManualLevel(level int) ControllerOption {
	return func(c *Controller) { c.manualLevel = level }
}

// WithThresholds sets the screen-relative sizes above which a node refines to High and
// below which the whole hierarchy is culled.
func WithThresholds(lod, cull float32) ControllerOption {
	return func(c *Controller) {
		c.lodThreshold = lod
		c.cullThreshold = cull
	}
}

// WithOrigin places the hierarchy in the world; node bounds are relative to it.
func WithOrigin(origin space.Vec3) ControllerOption {
	return func(c *Controller) { c.origin = origin }
}

// Controller streams one hierarchy: it owns the node store, drives the per-tick update from
// the root and proxies every content request to the load manager, deduplicating requests
// for the same content id.
// A Controller belongs to the update goroutine and is not safe for concurrent use.
type Controller struct {
	id       int
	log      *zap.Logger
	loads    *loadmgr.Manager
	source   loadmgr.Source
	space    space.Evaluator
	userData UserDataDeserializer

	store *arena.Store[*TreeNode]
	root  arena.ID

	origin        space.Vec3
	mode          Mode
	manualLevel   int
	lodThreshold  float32
	cullThreshold float32

	high    map[int]*pendingRequest
	low     map[int]*pendingRequest
	started bool
}

// NewController validates tree and builds the controller's node store. The controller id
// must be unique among the controllers sharing loads.
func NewController(id int, tree *TreeSpec, loads *loadmgr.Manager, src loadmgr.Source, opts ...ControllerOption) (*Controller, error) {
	if loads == nil || src == nil {
		return nil, errors.New("hlod: controller needs a load manager and a source")
	}
	c := &Controller{
		id:            id,
		log:           zap.NewNop(),
		loads:         loads,
		source:        src,
		space:         space.NewQuadTree(),
		mode:          AutoControl,
		lodThreshold:  DefaultLODThreshold,
		cullThreshold: DefaultCullThreshold,
		high:          make(map[int]*pendingRequest),
		low:           make(map[int]*pendingRequest),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	c.store = arena.New[*TreeNode](len(tree.Nodes))
	c.root = c.attach(arena.None, tree, tree.Root, 0)
	c.log = c.log.With(zap.Int("controller", id))
	return c, nil
}

func (c *Controller) ID() int { return c.id }
func (c *Controller) Mode() Mode { return c.mode }
func (c *Controller) ManualLevel() int { return c.manualLevel }
func (c *Controller) Source() loadmgr.Source { return c.source }
func (c *Controller) Evaluator() space.Evaluator { return c.space }
func (c *Controller) Origin() space.Vec3 { return c.origin }

// Root returns the root node.
func (c *Controller) Root() *TreeNode { return c.store.MustGet(c.root) }

// Node resolves a node id of this controller.
func (c *Controller) Node(id arena.ID) (*TreeNode, bool) { return c.store.Get(id) }

// SetMode switches the operating mode; it applies from the next tick.
func (c *Controller) SetMode(m Mode) { c.mode = m }

// SetManualLevel sets the level shown in ManualControl mode. A negative level hides everything.
func (c *Controller) SetManualLevel(level int) { c.manualLevel = level }

// SetThresholds changes the LOD and cull thresholds.
func (c *Controller) SetThresholds(lod, cull float32) {
	c.lodThreshold = lod
	c.cullThreshold = cull
}

// Thresholds returns the LOD and cull thresholds.
func (c *Controller) Thresholds() (lod, cull float32) { return c.lodThreshold, c.cullThreshold }

// Start registers the controller's source with the load manager.
func (c *Controller) Start() {
	if c.started {
		return
	}
	c.loads.Register(c.id, c.source)
	c.started = true
	c.log.Info("controller started", zap.Int("nodes", c.store.Len()))
}

// Stop gives back every handle, resets all nodes to Release and unregisters the source.
// The controller can be started again.
func (c *Controller) Stop() {
	if !c.started {
		return
	}
	c.store.Each(func(_ arena.ID, n *TreeNode) bool {
		n.teardown()
		return true
	})
	c.drop(loadmgr.High, c.high)
	c.drop(loadmgr.Low, c.low)
	c.loads.Unregister(c.id)
	c.started = false
	c.log.Info("controller stopped")
}

// drop forgets records no node references any more.
func (c *Controller) drop(cat loadmgr.Category, records map[int]*pendingRequest) {
	for id, r := range records {
		delete(records, id)
		c.finish(cat, r)
	}
}

// Tick refreshes the camera, applies the cull veto to the root and updates the whole tree.
func (c *Controller) Tick(cam space.Camera) {
	if !c.started {
		return
	}
	c.space.UpdateCamera(c.origin, cam)
	root := c.Root()
	switch c.mode {
	case AutoControl:
		root.Cull(c.space.IsCull(c.cullThreshold, root.bounds))
	case ManualControl:
		root.Cull(c.manualLevel < 0)
	default:
		root.Cull(false)
	}
	root.update(updateParams{
		mode:         c.mode,
		manualLevel:  c.manualLevel,
		lodThreshold: c.lodThreshold,
	})
}

// GetHighObject asks for the high-detail object id on behalf of a node at level and distance.
// Concurrent requests for the same id share one load; cb runs inline when the object is
// already resolved, otherwise once the load completes, in request order.
func (c *Controller) GetHighObject(id, level int, distance float32, cb func(*Handle)) *Handle {
	return c.get(loadmgr.High, c.high, id, level, distance, cb)
}

// GetLowObject is GetHighObject for low-detail objects.
func (c *Controller) GetLowObject(id, level int, distance float32, cb func(*Handle)) *Handle {
	return c.get(loadmgr.Low, c.low, id, level, distance, cb)
}

// ReleaseHighObject gives a handle back. Releasing a handle with no outstanding request is a no-op.
func (c *Controller) ReleaseHighObject(h *Handle) {
	c.release(loadmgr.High, c.high, h)
}

// ReleaseLowObject is ReleaseHighObject for low-detail objects.
func (c *Controller) ReleaseLowObject(h *Handle) {
	c.release(loadmgr.Low, c.low, h)
}

func (c *Controller) request(cat loadmgr.Category, id, level int, distance float32) loadmgr.Request {
	return loadmgr.Request{
		Key:      loadmgr.Key{Controller: c.id, ID: id, Category: cat},
		Level:    level,
		Priority: distance,
	}
}

func (c *Controller) get(cat loadmgr.Category, records map[int]*pendingRequest, id, level int, distance float32, cb func(*Handle)) *Handle {
	if r, ok := records[id]; ok {
		r.refs++
		if r.handle.Loaded() {
			cb(r.handle)
		} else {
			r.waiters = append(r.waiters, cb)
		}
		return r.handle
	}

	r := &pendingRequest{
		handle:   &Handle{ID: id, Category: cat, Controller: c},
		waiters:  []func(*Handle){cb},
		refs:     1,
		level:    level,
		distance: distance,
	}
	records[id] = r
	r.ticket = c.loads.Load(c.request(cat, id, level, distance), func(obj Object, err error) {
		c.loadDone(cat, r, obj, err)
	})
	return r.handle
}

func (c *Controller) loadDone(cat loadmgr.Category, r *pendingRequest, obj Object, err error) {
	if r.abandoned {
		if err == nil && obj != nil {
			c.unload(c.request(cat, r.handle.ID, r.level, r.distance), obj)
		}
		return
	}
	if err == nil && obj == nil {
		err = fmt.Errorf("hlod: source returned no object for %s %d", cat, r.handle.ID)
	}
	if err != nil {
		r.failed = err
		r.waiters = nil
		c.log.Warn("content load failed",
			zap.Stringer("category", cat),
			zap.Int("id", r.handle.ID),
			zap.Error(err))
		return
	}
	obj.SetActive(false)
	r.handle.Object = obj
	waiters := r.waiters
	r.waiters = nil
	for _, cb := range waiters {
		cb(r.handle)
	}
}

func (c *Controller) release(cat loadmgr.Category, records map[int]*pendingRequest, h *Handle) {
	if h == nil {
		return
	}
	r, ok := records[h.ID]
	if !ok || r.handle != h {
		return
	}
	r.refs--
	if r.refs > 0 {
		return
	}
	delete(records, h.ID)
	c.finish(cat, r)
}

// finish ends a record nobody references: resolved objects go back to the source, queued
// loads are cancelled and in-flight ones are unloaded as soon as they arrive.
func (c *Controller) finish(cat loadmgr.Category, r *pendingRequest) {
	r.waiters = nil
	switch {
	case r.handle.Loaded():
		r.handle.Object.SetActive(false)
		c.unload(c.request(cat, r.handle.ID, r.level, r.distance), r.handle.Object)
	case r.failed != nil:
	case !c.loads.Cancel(r.ticket):
		r.abandoned = true
	}
}

// unload goes through the load manager while the controller is registered with it and
// straight to the source for loads that complete after Stop.
func (c *Controller) unload(req loadmgr.Request, obj Object) {
	if c.started {
		c.loads.Unload(req, obj)
		return
	}
	c.source.Unload(req, obj)
}

// NodeCount returns the number of nodes in the hierarchy.
func (c *Controller) NodeCount() int { return c.store.Len() }

// ReadyNodeCount returns how many nodes rest in their state with its content fully resident.
func (c *Controller) ReadyNodeCount() int {
	count := 0
	c.store.Each(func(_ arena.ID, n *TreeNode) bool {
		if n.IsReady() {
			count++
		}
		return true
	})
	return count
}

// ExpectedNodeCount returns how many nodes are in the state the last tick expected for them.
func (c *Controller) ExpectedNodeCount() int {
	count := 0
	c.store.Each(func(_ arena.ID, n *TreeNode) bool {
		if n.expected == n.fsm.Current() {
			count++
		}
		return true
	})
	return count
}

// IsLoadDone reports whether everything the hierarchy currently shows is resident.
func (c *Controller) IsLoadDone() bool { return c.Root().IsLoadDone() }

// OutstandingRequests returns the number of high and low content ids with a live record.
func (c *Controller) OutstandingRequests() (high, low int) { return len(c.high), len(c.low) }

// Walk visits nodes depth first from the root, parents before children, until fn returns false.
func (c *Controller) Walk(fn func(*TreeNode) bool) {
	var walk func(id arena.ID) bool
	walk = func(id arena.ID) bool {
		n := c.store.MustGet(id)
		if !fn(n) {
			return false
		}
		for _, child := range n.children {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	walk(c.root)
}
