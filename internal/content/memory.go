package content

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hlod-engine/internal/loadmgr"
)

// Memory resolves content from definitions held in memory. Loads complete inline, so a
// hierarchy backed by a Memory source can settle within the tick that requested its content.
type Memory struct {
	live
	log *zap.Logger

	mu  sync.RWMutex
	set Set
}

// NewMemory returns a source serving set. A nil logger discards output.
func NewMemory(set Set, log *zap.Logger) *Memory {
	if log == nil {
		log = zap.NewNop()
	}
	if set.High == nil || set.Low == nil {
		s := NewSet()
		for id, d := range set.High {
			s.High[id] = d
		}
		for id, d := range set.Low {
			s.Low[id] = d
		}
		set = s
	}
	return &Memory{log: log, set: set}
}

// Put adds or replaces a definition.
func (m *Memory) Put(c loadmgr.Category, id int, def ObjectDef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set.defs(c)[id] = def
}

// Load implements loadmgr.Source.
func (m *Memory) Load(req loadmgr.Request, done func(loadmgr.Object, error)) {
	m.mu.RLock()
	def, ok := m.set.Lookup(req.Key)
	m.mu.RUnlock()
	if !ok {
		done(nil, fmt.Errorf("%w: %s", ErrNotFound, req.Key))
		return
	}
	inst := NewInstance(req.Key, def)
	m.add(inst)
	m.log.Debug("object loaded", zap.Stringer("key", req.Key), zap.Int("level", req.Level))
	done(inst, nil)
}

// Unload implements loadmgr.Source.
func (m *Memory) Unload(req loadmgr.Request, obj loadmgr.Object) {
	m.remove(obj)
}

// HighObjectCount implements loadmgr.Counter.
func (m *Memory) HighObjectCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.set.High)
}

// LowObjectCount implements loadmgr.Counter.
func (m *Memory) LowObjectCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.set.Low)
}
