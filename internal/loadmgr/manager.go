// Package loadmgr is the single entry point for starting and cancelling content loads of
// every controller in the process. Queued loads are started nearest first under an in-flight
// budget, and completions are handed back on the goroutine that calls Pump.
package loadmgr

import (
	"container/heap"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultBudget is the number of loads a queued Manager keeps in flight.
const DefaultBudget = 8

// ErrUnregistered completes queued loads whose controller was unregistered before they started.
var ErrUnregistered = errors.New("loadmgr: controller not registered")

// ErrClosed completes loads still queued when the Manager is closed.
var ErrClosed = errors.New("loadmgr: manager closed")

// Ticket identifies an accepted load so it can be cancelled. Inline loads get NoTicket.
type Ticket uint64

// NoTicket is never cancellable.
const NoTicket Ticket = 0

type completion struct {
	req  Request
	obj  Object
	err  error
	done func(Object, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithBudget sets how many queued loads may be in flight at once.
func WithBudget(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.budget = int64(n)
		}
	}
}

// WithInline makes the Manager a pass-through: loads go straight to the source and
// complete wherever the source calls back. Pump has nothing to do in this mode.
func WithInline() Option {
	return func(m *Manager) { m.inline = true }
}

// WithMetrics records queue and load counters.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// Manager schedules loads for all registered controllers.
// Load, Unload, Cancel and Pump belong to the update goroutine; sources may complete from anywhere.
type Manager struct {
	log     *zap.Logger
	inline  bool
	budget  int64
	sem     *semaphore.Weighted
	metrics *Metrics

	inFlight atomic.Int64

	mu      sync.Mutex
	sources map[int]Source
	queue   jobQueue
	queued  map[Ticket]*job
	mailbox []completion
	seq     Ticket
	closed  bool
}

// New returns a Manager. Call Close when the application shuts down.
func New(opts ...Option) *Manager {
	m := &Manager{
		log:     zap.NewNop(),
		budget:  DefaultBudget,
		sources: make(map[int]Source),
		queued:  make(map[Ticket]*job),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sem = semaphore.NewWeighted(m.budget)
	return m
}

// Inline reports whether the Manager passes loads straight through.
func (m *Manager) Inline() bool { return m.inline }

// Register binds a controller id to the source its loads go to.
func (m *Manager) Register(controller int, src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[controller] = src
	m.log.Debug("controller registered", zap.Int("controller", controller))
}

// Unregister forgets a controller. Its queued loads complete with ErrUnregistered before
// Unregister returns; in-flight loads still complete normally.
func (m *Manager) Unregister(controller int) {
	m.mu.Lock()
	delete(m.sources, controller)
	var dropped []*job
	for t, j := range m.queued {
		if j.req.Controller == controller {
			heap.Remove(&m.queue, j.index)
			delete(m.queued, t)
			m.metrics.queued(-1)
			dropped = append(dropped, j)
		}
	}
	m.mu.Unlock()
	m.log.Debug("controller unregistered", zap.Int("controller", controller), zap.Int("dropped", len(dropped)))
	sort.Slice(dropped, func(a, b int) bool { return dropped[a].ticket < dropped[b].ticket })
	for _, j := range dropped {
		j.done(nil, ErrUnregistered)
	}
}

// Load starts or queues a load. done runs exactly once for an accepted load unless the
// returned ticket is cancelled first or the Manager is closed while the load is in flight.
// Loads are refused, and done never runs, once the Manager is closed or, inline, when the
// controller is not registered.
func (m *Manager) Load(req Request, done func(Object, error)) Ticket {
	if m.inline {
		src := m.source(req.Controller)
		if src == nil {
			m.log.Warn("load dropped", zap.Stringer("key", req.Key), zap.Error(ErrUnregistered))
			return NoTicket
		}
		m.metrics.started(req.Category)
		src.Load(req, m.once(req, func(obj Object, err error) {
			m.metrics.completed(req.Category, err)
			done(obj, err)
		}))
		return NoTicket
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return NoTicket
	}
	m.seq++
	j := &job{ticket: m.seq, req: req, done: done}
	heap.Push(&m.queue, j)
	m.queued[j.ticket] = j
	m.metrics.queued(1)
	return j.ticket
}

// Cancel drops a queued load and reports whether it was still queued. A load already handed
// to its source cannot be cancelled and will complete normally.
func (m *Manager) Cancel(t Ticket) bool {
	if t == NoTicket {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.queued[t]
	if !ok {
		return false
	}
	heap.Remove(&m.queue, j.index)
	delete(m.queued, t)
	m.metrics.queued(-1)
	m.metrics.cancelled()
	return true
}

// Unload hands obj back to the source of req's controller.
func (m *Manager) Unload(req Request, obj Object) {
	src := m.source(req.Controller)
	if src == nil {
		m.log.Warn("unload dropped", zap.Stringer("key", req.Key), zap.Error(ErrUnregistered))
		return
	}
	m.metrics.unloaded(req.Category)
	src.Unload(req, obj)
}

// Pump delivers finished loads on the calling goroutine, then starts queued loads nearest
// first until the in-flight budget is used. Loads requested by delivered callbacks start on
// the next Pump.
func (m *Manager) Pump() {
	if m.inline {
		return
	}
	m.deliver()
	m.dispatch()
	// sources that complete inline are delivered within the same Pump
	m.deliver()
}

// Pending returns the number of queued loads and of loads handed to sources.
func (m *Manager) Pending() (queued, inFlight int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue), int(m.inFlight.Load())
}

// Close refuses new loads and completes every queued one with ErrClosed. Completions of
// in-flight loads still arriving are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.metrics.queued(-float64(len(m.queue)))
	dropped := m.queue
	m.queue = nil
	m.queued = make(map[Ticket]*job)
	m.mailbox = nil
	m.mu.Unlock()
	sort.Slice(dropped, func(a, b int) bool { return dropped[a].ticket < dropped[b].ticket })
	for _, j := range dropped {
		j.done(nil, ErrClosed)
	}
}

func (m *Manager) source(controller int) Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources[controller]
}

func (m *Manager) dispatch() {
	for m.sem.TryAcquire(1) {
		m.mu.Lock()
		if m.closed || len(m.queue) == 0 {
			m.mu.Unlock()
			m.sem.Release(1)
			return
		}
		j := heap.Pop(&m.queue).(*job)
		delete(m.queued, j.ticket)
		m.metrics.queued(-1)
		src := m.sources[j.req.Controller]
		m.mu.Unlock()

		if src == nil {
			m.sem.Release(1)
			m.log.Warn("load dropped", zap.Stringer("key", j.req.Key), zap.Error(ErrUnregistered))
			j.done(nil, ErrUnregistered)
			continue
		}
		m.inFlight.Add(1)
		m.metrics.started(j.req.Category)
		m.log.Debug("load started", zap.Stringer("key", j.req.Key), zap.Float32("priority", j.req.Priority))
		req, done := j.req, j.done
		src.Load(req, m.once(req, func(obj Object, err error) {
			m.mu.Lock()
			if !m.closed {
				m.mailbox = append(m.mailbox, completion{req: req, obj: obj, err: err, done: done})
			}
			m.mu.Unlock()
			m.inFlight.Add(-1)
			m.sem.Release(1)
		}))
	}
}

func (m *Manager) deliver() {
	m.mu.Lock()
	box := m.mailbox
	m.mailbox = nil
	m.mu.Unlock()
	for _, c := range box {
		m.metrics.completed(c.req.Category, c.err)
		c.done(c.obj, c.err)
	}
}

// once guards against sources calling back more than once.
func (m *Manager) once(req Request, fn func(Object, error)) func(Object, error) {
	var called atomic.Bool
	return func(obj Object, err error) {
		if !called.CompareAndSwap(false, true) {
			m.log.Warn("source completed a load twice", zap.Stringer("key", req.Key))
			return
		}
		fn(obj, err)
	}
}
