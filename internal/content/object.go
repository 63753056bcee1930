// Package content provides the sources that resolve content ids into displayable objects:
// an in-memory source for generated scenes and a file source reading YAML object definitions
// from a directory or a zip bundle.
package content

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"hlod-engine/internal/loadmgr"
)

// ErrNotFound is returned for content ids a source has no definition for.
var ErrNotFound = errors.New("content: object not found")

// ObjectDef is the YAML definition of one piece of content: a primitive shape placed in the world.
// Size 0 on an axis means 1.
type ObjectDef struct {
	Type     string     `yaml:"type" validate:"required,oneof=cube sphere cylinder plane"`
	Position [3]float32 `yaml:"position"`
	Size     [3]float32 `yaml:"size,omitempty"`
	Color    string     `yaml:"color,omitempty" validate:"omitempty,hexcolor"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the definition's type and color.
func (d ObjectDef) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("content: invalid object: %w", err)
	}
	return nil
}

// RGBA decodes Color (#rgb, #rgba, #rrggbb or #rrggbbaa). An empty or invalid color yields
// opaque mid grey.
func (d ObjectDef) RGBA() (r, g, b, a uint8) {
	h := strings.TrimPrefix(d.Color, "#")
	if len(h) == 3 || len(h) == 4 {
		var sb strings.Builder
		for _, c := range h {
			sb.WriteRune(c)
			sb.WriteRune(c)
		}
		h = sb.String()
	}
	if len(h) == 6 {
		h += "ff"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if len(h) != 8 || err != nil {
		return 128, 128, 128, 255
	}
	return uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)
}

// Set holds the high and low definitions of one hierarchy, keyed by content id.
type Set struct {
	High map[int]ObjectDef `yaml:"high"`
	Low  map[int]ObjectDef `yaml:"low"`
}

// NewSet returns an empty set.
func NewSet() Set {
	return Set{High: make(map[int]ObjectDef), Low: make(map[int]ObjectDef)}
}

func (s Set) defs(c loadmgr.Category) map[int]ObjectDef {
	if c == loadmgr.High {
		return s.High
	}
	return s.Low
}

// Lookup returns the definition for a key's category and id.
func (s Set) Lookup(k loadmgr.Key) (ObjectDef, bool) {
	d, ok := s.defs(k.Category)[k.ID]
	return d, ok
}

// IDs returns the ids of one category in ascending order.
func (s Set) IDs(c loadmgr.Category) []int {
	defs := s.defs(c)
	ids := make([]int, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Instance is a loaded object. The hierarchy shows and hides it through SetActive,
// possibly while a renderer reads Active from another goroutine.
type Instance struct {
	Key    loadmgr.Key
	Def    ObjectDef
	active atomic.Bool
}

// NewInstance returns a hidden instance of def.
func NewInstance(k loadmgr.Key, def ObjectDef) *Instance {
	return &Instance{Key: k, Def: def}
}

// SetActive implements loadmgr.Object.
func (i *Instance) SetActive(active bool) { i.active.Store(active) }

// Active reports whether the instance is displayed.
func (i *Instance) Active() bool { return i.active.Load() }

// live tracks the instances a source has handed out and not yet got back.
type live struct {
	mu      sync.Mutex
	objs    map[*Instance]struct{}
	loads   int
	unloads int
}

func (l *live) add(inst *Instance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.objs == nil {
		l.objs = make(map[*Instance]struct{})
	}
	l.objs[inst] = struct{}{}
	l.loads++
}

// remove forgets obj by identity; other instances of the same key stay tracked.
func (l *live) remove(obj loadmgr.Object) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inst, ok := obj.(*Instance); ok {
		delete(l.objs, inst)
	}
	l.unloads++
}

// Instances returns the loaded instances that have not been unloaded, in no particular order.
func (l *live) Instances() []*Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Instance, 0, len(l.objs))
	for inst := range l.objs {
		out = append(out, inst)
	}
	return out
}

// Resident returns the number of loaded instances not yet unloaded.
func (l *live) Resident() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.objs)
}

// Totals returns how many loads and unloads the source served.
func (l *live) Totals() (loads, unloads int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads, l.unloads
}
