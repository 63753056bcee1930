// Package fsm is a small finite state machine whose transitions are gated:
// requesting a state starts entering it, and the machine only settles into the
// state once the state's readiness predicate holds.
package fsm

// Phase tells whether a Machine rests in its current state or is entering another one.
type Phase uint8

const (
	Settled Phase = iota
	Entering
)

func (p Phase) String() string {
	if p == Entering {
		return "entering"
	}
	return "settled"
}

// Status is the tagged sub-status of a Machine. Target equals Current while Settled.
type Status[S comparable] struct {
	Phase   Phase
	Current S
	Target  S
}

// Hooks are the callbacks bound to one state. Any of them may be nil.
type Hooks struct {
	// Entering runs when the state is requested.
	Entering func()
	// IsReadyToEnter gates settling; nil means always ready.
	IsReadyToEnter func() bool
	// Entered runs right after the state becomes current.
	Entered func()
	// Exited runs right before another state becomes current.
	Exited func()
	// Cancelled runs when a pending entry into the state is abandoned.
	Cancelled func()
}

// Machine is not safe for concurrent use.
type Machine[S comparable] struct {
	current S
	target  S
	hooks   map[S]Hooks
}

// New returns a machine settled in initial.
func New[S comparable](initial S) *Machine[S] {
	return &Machine[S]{current: initial, target: initial, hooks: make(map[S]Hooks)}
}

// Register binds hooks to state, replacing previous ones.
func (m *Machine[S]) Register(state S, h Hooks) {
	m.hooks[state] = h
}

// Current is the state the machine has settled in.
func (m *Machine[S]) Current() S { return m.current }

// Target is the last requested state.
func (m *Machine[S]) Target() S { return m.target }

// Status returns the machine's tagged sub-status.
func (m *Machine[S]) Status() Status[S] {
	st := Status[S]{Current: m.current, Target: m.target}
	if m.current != m.target {
		st.Phase = Entering
	}
	return st
}

// Pending reports whether the machine is entering a state it has not settled in yet.
func (m *Machine[S]) Pending() bool { return m.current != m.target }

// Request asks the machine to move to state.
// Requesting the target again does nothing. Requesting the current state while entering
// another one cancels that entry. Anything else cancels a pending entry and starts entering state.
func (m *Machine[S]) Request(state S) {
	if state == m.target {
		return
	}
	if m.current != m.target {
		abandoned := m.target
		m.target = m.current
		if h := m.hooks[abandoned]; h.Cancelled != nil {
			h.Cancelled()
		}
		if state == m.current {
			return
		}
	}
	m.target = state
	if h := m.hooks[state]; h.Entering != nil {
		h.Entering()
	}
}

// Ready reports whether the readiness predicate of state holds.
func (m *Machine[S]) Ready(state S) bool {
	h := m.hooks[state]
	return h.IsReadyToEnter == nil || h.IsReadyToEnter()
}

// Update settles a pending entry if its target is ready, and reports whether it did.
func (m *Machine[S]) Update() bool {
	if m.current == m.target {
		return false
	}
	next := m.target
	if !m.Ready(next) {
		return false
	}
	if h := m.hooks[m.current]; h.Exited != nil {
		h.Exited()
	}
	m.current = next
	if h := m.hooks[next]; h.Entered != nil {
		h.Entered()
	}
	return true
}
