// Package world assembles a streamed scene from preferences: the hierarchy (generated or read
// from a descriptor), its content source, the load manager and the runtime driving them.
package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hlod-engine/internal/content"
	"hlod-engine/internal/engineconfig"
	"hlod-engine/internal/hlod"
	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/mapgen"
	"hlod-engine/internal/space"
	"hlod-engine/internal/treefile"
)

// Source is a content source whose instances can be listed for drawing.
type Source interface {
	loadmgr.Source
	loadmgr.Counter
	Instances() []*content.Instance
	Resident() int
	Totals() (loads, unloads int)
}

// World is a streamed hierarchy placed Prefs.Copies times side by side along X. Every copy has
// its own controller built from a deep copy of Tree; all share one content source and one load
// manager.
type World struct {
	Runtime     *hlod.Runtime
	Controllers []*hlod.Controller
	Source      Source
	Tree        *hlod.TreeSpec

	closeSource func() error
}

// Options selects where the hierarchy comes from.
type Options struct {
	// TreePath is a descriptor written by treefile.Save. Empty generates a map from Prefs.Map.
	TreePath string
	Log      *zap.Logger
	// Metrics, when set, instruments the load manager.
	Metrics *loadmgr.Metrics
}

// Open builds the world and registers its controller with a new runtime.
func Open(prefs engineconfig.Prefs, opts Options) (*World, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if err := prefs.Validate(); err != nil {
		return nil, err
	}

	w := &World{}
	if opts.TreePath == "" {
		scn, err := mapgen.Generate(prefs.Map)
		if err != nil {
			return nil, err
		}
		w.Tree = scn.Tree
		w.Source = content.NewMemory(scn.Content, log)
		log.Info("generated map", zap.Int("nodes", len(scn.Tree.Nodes)), zap.Int("tiles", prefs.Map.Tiles()))
	} else {
		f, err := treefile.Load(opts.TreePath)
		if err != nil {
			return nil, err
		}
		if f.Content == "" {
			return nil, fmt.Errorf("world: %s names no content", opts.TreePath)
		}
		src, err := content.Open(f.Content, log)
		if err != nil {
			return nil, err
		}
		w.Tree = &f.Tree
		w.Source = src
		w.closeSource = src.Close
		log.Info("opened tree", zap.String("path", opts.TreePath), zap.String("content", f.Content),
			zap.Int("nodes", len(f.Tree.Nodes)))
	}

	mopts := []loadmgr.Option{loadmgr.WithLogger(log)}
	if prefs.LoadBudget == 0 {
		mopts = append(mopts, loadmgr.WithInline())
	} else {
		mopts = append(mopts, loadmgr.WithBudget(prefs.LoadBudget))
	}
	if opts.Metrics != nil {
		mopts = append(mopts, loadmgr.WithMetrics(opts.Metrics))
	}
	loads := loadmgr.New(mopts...)

	w.Runtime = hlod.NewRuntime(loads, log)
	spacing := w.Tree.Nodes[w.Tree.Root].Bounds.Size()[0] * copyGap
	for i := range prefs.Copies {
		tree, err := treefile.Clone(w.Tree)
		if err != nil {
			return nil, errors.Join(err, w.Close())
		}
		origin := space.Vec3{float32(i) * spacing, 0, 0}
		copts := append(prefs.ControllerOptions(), hlod.WithLogger(log), hlod.WithOrigin(origin))
		c, err := hlod.NewController(i+1, tree, loads, w.Source, copts...)
		if err != nil {
			return nil, errors.Join(err, w.Close())
		}
		w.Controllers = append(w.Controllers, c)
		w.Runtime.Register(c)
	}
	return w, nil
}

// copyGap spaces copies by this many root widths.
const copyGap = 1.25

// Origin returns where the controller with the given id places its hierarchy; instances loaded
// for it are drawn shifted by this offset.
func (w *World) Origin(controller int) space.Vec3 {
	for _, c := range w.Controllers {
		if c.ID() == controller {
			return c.Origin()
		}
	}
	return space.Vec3{}
}

// Apply pushes prefs to every controller.
func (w *World) Apply(prefs engineconfig.Prefs) {
	for _, c := range w.Controllers {
		prefs.Apply(c)
	}
}

// NodeCount sums the nodes of every copy.
func (w *World) NodeCount() int {
	n := 0
	for _, c := range w.Controllers {
		n += c.NodeCount()
	}
	return n
}

func (w *World) closeSourceErr() error {
	if w.closeSource == nil {
		return nil
	}
	return w.closeSource()
}

// Close stops streaming, waits for loads still running and releases the content source.
func (w *World) Close() error {
	w.Runtime.Close()
	w.Runtime.Loads().Close()
	return w.closeSourceErr()
}
