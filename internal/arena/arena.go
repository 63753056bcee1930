package arena

import "fmt"

// ID addresses one slot of a Store. The zero ID is never handed out, so it can stand for "none".
// The low 32 bits are the slot index plus one; the high 32 bits are the slot generation.
type ID uint64

// None is the id that never resolves.
const None ID = 0

func makeID(index int, gen uint32) ID {
	return ID(uint64(gen)<<32 | uint64(index+1))
}

func (id ID) index() int { return int(uint32(id)) - 1 }
func (id ID) gen() uint32 { return uint32(uint64(id) >> 32) }
func (id ID) String() string {
	if id == None {
		return "none"
	}
	return fmt.Sprintf("%d#%d", id.index(), id.gen())
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Store is an arena of values addressed by dense ids. Removing a value bumps its slot generation,
// so a stale id never resolves to a value added later in the same slot.
// Store is not safe for concurrent use.
type Store[T any] struct {
	slots []slot[T]
	free  []int
	count int
}

// New returns an empty store with room for capacity values.
func New[T any](capacity int) *Store[T] {
	return &Store[T]{slots: make([]slot[T], 0, capacity)}
}

// Add stores v and returns its id.
func (s *Store[T]) Add(v T) ID {
	s.count++
	if n := len(s.free); n > 0 {
		i := s.free[n-1]
		s.free = s.free[:n-1]
		sl := &s.slots[i]
		sl.value = v
		sl.live = true
		return makeID(i, sl.gen)
	}
	s.slots = append(s.slots, slot[T]{value: v, live: true})
	return makeID(len(s.slots)-1, 0)
}

// Get resolves id. ok is false for None, removed or foreign ids.
func (s *Store[T]) Get(id ID) (v T, ok bool) {
	i := id.index()
	if id == None || i < 0 || i >= len(s.slots) {
		return v, false
	}
	sl := &s.slots[i]
	if !sl.live || sl.gen != id.gen() {
		return v, false
	}
	return sl.value, true
}

// MustGet is Get for ids the caller knows are live; it panics otherwise.
func (s *Store[T]) MustGet(id ID) T {
	v, ok := s.Get(id)
	if !ok {
		panic(fmt.Sprintf("arena: stale or unknown id %s", id))
	}
	return v
}

// Contains reports whether id resolves.
func (s *Store[T]) Contains(id ID) bool {
	_, ok := s.Get(id)
	return ok
}

// Remove invalidates id. Removing an id that does not resolve is a no-op.
func (s *Store[T]) Remove(id ID) {
	if !s.Contains(id) {
		return
	}
	i := id.index()
	var zero T
	sl := &s.slots[i]
	sl.value = zero
	sl.live = false
	sl.gen++
	s.free = append(s.free, i)
	s.count--
}

// Len returns the number of live values.
func (s *Store[T]) Len() int {
	return s.count
}

// Each calls fn for every live value in slot order until fn returns false.
func (s *Store[T]) Each(fn func(ID, T) bool) {
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.live {
			continue
		}
		if !fn(makeID(i, sl.gen), sl.value) {
			return
		}
	}
}
