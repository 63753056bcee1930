package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"hlod-engine/internal/archive"
	"hlod-engine/internal/loadmgr"
)

// Layout of a content tree on disk: one YAML object definition per file, named by content id,
// in a directory per category. The same layout is used inside zip bundles.
const (
	HighDir = "high"
	LowDir  = "low"
	defExt  = ".yaml"
)

// DefPath returns the slash-separated path of a definition inside a content tree.
func DefPath(c loadmgr.Category, id int) string {
	dir := LowDir
	if c == loadmgr.High {
		dir = HighDir
	}
	return path.Join(dir, strconv.Itoa(id)+defExt)
}

// FS resolves content by reading object definitions from a file system. Every load runs on its
// own goroutine; concurrent loads of the same file share one read.
type FS struct {
	live
	fsys   fs.FS
	closer io.Closer
	log    *zap.Logger
	group  singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	high, low int
}

// NewFS returns a source reading from fsys. It lists the definitions up front so the object
// counts are known before the first load.
func NewFS(fsys fs.FS, log *zap.Logger) (*FS, error) {
	if log == nil {
		log = zap.NewNop()
	}
	high, err := listIDs(fsys, HighDir)
	if err != nil {
		return nil, err
	}
	low, err := listIDs(fsys, LowDir)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FS{
		fsys:   fsys,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		high:   len(high),
		low:    len(low),
	}, nil
}

// OpenDir returns a source reading the content tree under root.
func OpenDir(root string, log *zap.Logger) (*FS, error) {
	return NewFS(os.DirFS(root), log)
}

// Open returns a source for path: a zip bundle when it ends in .zip, a content directory otherwise.
func Open(path string, log *zap.Logger) (*FS, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return OpenZip(path, log)
	}
	return OpenDir(path, log)
}

// OpenZip returns a source reading a zip bundle written by archive.Pack. Close releases the file.
func OpenZip(zipPath string, log *zap.Logger) (*FS, error) {
	r, err := archive.Open(zipPath)
	if err != nil {
		return nil, err
	}
	s, err := NewFS(r, log)
	if err != nil {
		r.Close()
		return nil, err
	}
	s.closer = r
	return s, nil
}

func listIDs(fsys fs.FS, dir string) ([]int, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("content: list %s: %w", dir, err)
	}
	var ids []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(path.Ext(name), defExt) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, path.Ext(name)))
		if err != nil || id < 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Load implements loadmgr.Source. done runs on a worker goroutine; a source closed before the
// read starts completes with the context error.
func (s *FS) Load(req loadmgr.Request, done func(loadmgr.Object, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.ctx.Err(); err != nil {
			done(nil, err)
			return
		}
		p := DefPath(req.Category, req.ID)
		v, err, shared := s.group.Do(p, func() (any, error) {
			return s.read(p)
		})
		if err != nil {
			s.log.Warn("object read failed", zap.Stringer("key", req.Key), zap.Error(err))
			done(nil, err)
			return
		}
		inst := NewInstance(req.Key, v.(ObjectDef))
		s.add(inst)
		s.log.Debug("object loaded", zap.Stringer("key", req.Key), zap.Bool("shared", shared))
		done(inst, nil)
	}()
}

func (s *FS) read(p string) (ObjectDef, error) {
	data, err := fs.ReadFile(s.fsys, p)
	if errors.Is(err, fs.ErrNotExist) {
		return ObjectDef{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return ObjectDef{}, fmt.Errorf("content: read %s: %w", p, err)
	}
	var def ObjectDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return ObjectDef{}, fmt.Errorf("content: parse %s: %w", p, err)
	}
	if err := def.Validate(); err != nil {
		return ObjectDef{}, fmt.Errorf("%s: %w", p, err)
	}
	return def, nil
}

// Unload implements loadmgr.Source.
func (s *FS) Unload(req loadmgr.Request, obj loadmgr.Object) {
	s.remove(obj)
}

// HighObjectCount implements loadmgr.Counter.
func (s *FS) HighObjectCount() int { return s.high }

// LowObjectCount implements loadmgr.Counter.
func (s *FS) LowObjectCount() int { return s.low }

// Close stops new reads, waits for running ones and releases the underlying bundle.
func (s *FS) Close() error {
	s.cancel()
	s.wg.Wait()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// WriteDir stores every definition of set as a content tree under root.
func WriteDir(root string, set Set) error {
	for _, c := range []loadmgr.Category{loadmgr.High, loadmgr.Low} {
		defs := set.defs(c)
		if len(defs) == 0 {
			continue
		}
		for id, def := range defs {
			data, err := yaml.Marshal(def)
			if err != nil {
				return fmt.Errorf("content: encode %s %d: %w", c, id, err)
			}
			p := filepath.Join(root, filepath.FromSlash(DefPath(c, id)))
			if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
				return fmt.Errorf("content: %w", err)
			}
			if err := os.WriteFile(p, data, 0644); err != nil {
				return fmt.Errorf("content: %w", err)
			}
		}
	}
	return nil
}
