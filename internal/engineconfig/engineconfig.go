// Package engineconfig holds the streaming and viewer preferences persisted across runs.
package engineconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"hlod-engine/internal/hlod"
	"hlod-engine/internal/mapgen"
)

// EngineConfigPath is the path to the config file, relative to the process working directory.
const EngineConfigPath = "config/hlod.yaml"

// EnvPrefix prefixes every environment override, e.g. HLOD_MODE=manual.
const EnvPrefix = "HLOD_"

// Prefs holds the streaming parameters and viewer overlays.
type Prefs struct {
	Mode          string  `yaml:"mode" validate:"oneof=disable manual auto"`
	ManualLevel   int     `yaml:"manual_level" validate:"gte=-1"`
	LODThreshold  float32 `yaml:"lod_threshold" validate:"gt=0"`
	CullThreshold float32 `yaml:"cull_threshold" validate:"gte=0,ltfield=LODThreshold"`
	LODBias       float32 `yaml:"lod_bias" validate:"gt=0"`
	// LoadBudget is the number of loads in flight; 0 passes loads straight to the source.
	LoadBudget int `yaml:"load_budget" validate:"gte=0,lte=1024"`
	// Copies places this many copies of the hierarchy side by side, one controller each.
	Copies int `yaml:"copies" validate:"gte=1,lte=16"`

	ShowFPS      bool `yaml:"show_fps"`
	ShowMemAlloc bool `yaml:"show_memalloc"`
	ShowStats    bool `yaml:"show_stats"`
	ShowBounds   bool `yaml:"show_bounds"`
	GridVisible  bool `yaml:"grid_visible"`

	Map mapgen.Options `yaml:"map"`
}

// Default returns default preferences: automatic streaming, overlays off, grid on.
func Default() Prefs {
	return Prefs{
		Mode:          hlod.AutoControl.String(),
		ManualLevel:   0,
		LODThreshold:  hlod.DefaultLODThreshold,
		CullThreshold: hlod.DefaultCullThreshold,
		LODBias:       1,
		LoadBudget:    8,
		Copies:        1,
		ShowStats:     true,
		GridVisible:   true,
		Map:           mapgen.DefaultOptions(),
	}
}

var validate = validator.New()

// Validate checks every field.
func (p Prefs) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("engineconfig: %w", err)
	}
	return nil
}

// ModeValue returns the parsed streaming mode.
func (p Prefs) ModeValue() hlod.Mode {
	m, err := hlod.ParseMode(p.Mode)
	if err != nil {
		return hlod.AutoControl
	}
	return m
}

// Apply pushes the streaming parameters to c.
func (p Prefs) Apply(c *hlod.Controller) {
	c.SetMode(p.ModeValue())
	c.SetManualLevel(p.ManualLevel)
	c.SetThresholds(p.LODThreshold, p.CullThreshold)
}

// ControllerOptions returns the options building a controller with these preferences.
func (p Prefs) ControllerOptions() []hlod.ControllerOption {
	return []hlod.ControllerOption{
		hlod.WithMode(p.ModeValue()),
		hlod.WithManualLevel(p.ManualLevel),
		hlod.WithThresholds(p.LODThreshold, p.CullThreshold),
	}
}

// Load reads preferences from path. A missing file yields Default() and no error; a file that
// does not parse or validate yields Default() and the error. Fields absent from the file keep
// their defaults.
func Load(path string) (Prefs, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("engineconfig: %w", err)
	}
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Default(), fmt.Errorf("engineconfig: %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Default(), err
	}
	return p, nil
}

// Save writes preferences to path, creating the config directory if needed.
func Save(path string, p Prefs) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("engineconfig: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("engineconfig: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides preferences from HLOD_* variables found through lookup (os.LookupEnv in
// production). The result is validated.
func ApplyEnv(p *Prefs, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.ToLower(strings.TrimSpace(v))
		}
	}
	var errs []error
	parse := func(name string, set func(string) error) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}
		if err := set(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("engineconfig: %s%s: %w", EnvPrefix, name, err))
		}
	}
	float := func(name string, dst *float32) {
		parse(name, func(v string) error {
			f, err := strconv.ParseFloat(v, 32)
			*dst = float32(f)
			return err
		})
	}
	integer := func(name string, dst *int) {
		parse(name, func(v string) error {
			n, err := strconv.Atoi(v)
			*dst = n
			return err
		})
	}
	str("MODE", &p.Mode)
	integer("MANUAL_LEVEL", &p.ManualLevel)
	float("LOD_THRESHOLD", &p.LODThreshold)
	float("CULL_THRESHOLD", &p.CullThreshold)
	float("LOD_BIAS", &p.LODBias)
	integer("LOAD_BUDGET", &p.LoadBudget)
	integer("COPIES", &p.Copies)
	parse("SEED", func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		p.Map.Seed = n
		return err
	})
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return p.Validate()
}

// Watch calls fn with the new preferences each time the file at path is written, until ctx is
// done. When lookup is set, the HLOD_* overrides it finds are applied to every reload as they
// were at startup. Changes that fail to load are logged and skipped. The file's directory must exist.
func Watch(ctx context.Context, path string, lookup func(string) (string, bool), log *zap.Logger, fn func(Prefs)) error {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("engineconfig: %w", err)
	}
	defer w.Close()
	// watch the directory so files replaced on save are still seen
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("engineconfig: watch %s: %w", path, err)
	}
	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			p, err := Load(path)
			if err == nil && lookup != nil {
				err = ApplyEnv(&p, lookup)
			}
			if err != nil {
				log.Warn("config reload failed", zap.String("path", path), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", path))
			fn(p)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
