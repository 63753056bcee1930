package hlod

import (
	"fmt"
	"strings"

	"hlod-engine/internal/loadmgr"
)

// State is the resident-content state of a tree node.
type State uint8

const (
	// Release: nothing resident.
	Release State = iota
	// Low: the coarse representation is resident.
	Low
	// High: the fine representation is resident and children may show their own content.
	High
)

func (s State) String() string {
	switch s {
	case Release:
		return "release"
	case Low:
		return "low"
	case High:
		return "high"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Mode selects how expected states are computed.
type Mode uint8

const (
	// DisableHLOD shows the finest level everywhere.
	DisableHLOD Mode = iota
	// ManualControl shows exactly one level, chosen with SetManualLevel.
	ManualControl
	// AutoControl picks levels from the viewer distance.
	AutoControl
)

var modeNames = [...]string{"disable", "manual", "auto"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode accepts the names printed by Mode.String, case-insensitively.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return AutoControl, fmt.Errorf("hlod: unknown mode %q", s)
}

// Object is a piece of loaded content.
type Object = loadmgr.Object

// Handle is the result of one content load. Controllers hand out one Handle per content id
// and stay its only owner: nodes give handles back through the controller, never to the loader.
type Handle struct {
	ID       int
	Category loadmgr.Category
	// Object is nil until the load resolves.
	Object     Object
	Controller *Controller
}

// Loaded reports whether the handle's object is available.
func (h *Handle) Loaded() bool { return h != nil && h.Object != nil }

// UserDataDeserializer attaches auxiliary data to freshly loaded high-detail objects.
// It runs once per object right after the load resolves, before the node counts it resident.
type UserDataDeserializer interface {
	DeserializeUserData(c *Controller, id int, obj Object)
}

// UserDataFunc adapts a function to UserDataDeserializer.
type UserDataFunc func(c *Controller, id int, obj Object)

func (f UserDataFunc) DeserializeUserData(c *Controller, id int, obj Object) { f(c, id, obj) }
