package hlod

import (
	"slices"

	"go.uber.org/zap"

	"hlod-engine/internal/fsm"
	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/space"
)

// Runtime drives every active controller of the application from one camera per frame.
// It pumps the shared load manager first, so completions reach nodes before they update.
type Runtime struct {
	log         *zap.Logger
	loads       *loadmgr.Manager
	controllers []*Controller
}

// NewRuntime returns a runtime bound to loads.
func NewRuntime(loads *loadmgr.Manager, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{log: log, loads: loads}
}

// Loads returns the shared load manager.
func (r *Runtime) Loads() *loadmgr.Manager { return r.loads }

// Register starts c and adds it to the frame loop. Registering twice is a no-op.
func (r *Runtime) Register(c *Controller) {
	if slices.Contains(r.controllers, c) {
		return
	}
	c.Start()
	r.controllers = append(r.controllers, c)
	r.log.Debug("runtime registered controller", zap.Int("controller", c.ID()))
}

// Unregister stops c and removes it from the frame loop.
func (r *Runtime) Unregister(c *Controller) {
	i := slices.Index(r.controllers, c)
	if i < 0 {
		return
	}
	c.Stop()
	r.controllers = slices.Delete(r.controllers, i, i+1)
}

// Controllers returns the registered controllers in registration order.
func (r *Runtime) Controllers() []*Controller { return slices.Clone(r.controllers) }

// Tick runs one frame.
func (r *Runtime) Tick(cam space.Camera) {
	r.loads.Pump()
	for _, c := range r.controllers {
		c.Tick(cam)
	}
}

// IsLoadDone reports whether every registered controller is fully loaded.
func (r *Runtime) IsLoadDone() bool {
	for _, c := range r.controllers {
		if !c.IsLoadDone() {
			return false
		}
	}
	return true
}

// Stats sums node counts over all controllers.
func (r *Runtime) Stats() Stats {
	var s Stats
	for _, c := range r.controllers {
		s.Nodes += c.NodeCount()
		s.Ready += c.ReadyNodeCount()
		c.Walk(func(n *TreeNode) bool {
			switch n.CurrentState() {
			case High:
				s.High++
			case Low:
				s.Low++
			default:
				s.Released++
			}
			if n.Status().Phase == fsm.Entering {
				s.Pending++
			}
			return true
		})
	}
	s.Queued, s.InFlight = r.loads.Pending()
	return s
}

// Stats is a snapshot of streaming progress.
type Stats struct {
	Nodes    int
	Ready    int
	High     int
	Low      int
	Released int
	Pending  int
	Queued   int
	InFlight int
}

// Close stops every controller.
func (r *Runtime) Close() {
	for _, c := range r.controllers {
		c.Stop()
	}
	r.controllers = nil
}
