package loadmgr

import "fmt"

// Category tells which detail set a content id belongs to.
type Category uint8

const (
	High Category = iota
	Low
)

func (c Category) String() string {
	switch c {
	case High:
		return "high"
	case Low:
		return "low"
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// Key identifies one load across all controllers.
type Key struct {
	Controller int
	ID         int
	Category   Category
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%d", k.Controller, k.Category, k.ID)
}

// Request is what a Source receives for one load or unload.
type Request struct {
	Key
	// Level is the hierarchy level of the requesting node.
	Level int
	// Priority orders queued loads; smaller loads first. Controllers pass the node distance.
	Priority float32
}

// Object is a loaded piece of content. The streaming engine only toggles whether it is displayed.
type Object interface {
	SetActive(active bool)
}

// Source resolves content ids of one controller.
// Load must call done exactly once, inline or later from any goroutine. A load that never
// resolves simply never calls done. Unload hands back an object produced by Load.
type Source interface {
	Load(req Request, done func(Object, error))
	Unload(req Request, obj Object)
}

// Counter is implemented by sources that know how many objects they hold.
type Counter interface {
	HighObjectCount() int
	LowObjectCount() int
}

// SourceFunc adapts a load function to a Source whose Unload does nothing.
type SourceFunc func(req Request, done func(Object, error))

func (f SourceFunc) Load(req Request, done func(Object, error)) { f(req, done) }

func (SourceFunc) Unload(Request, Object) {}
