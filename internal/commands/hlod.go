package commands

import (
	"flag"
	"fmt"

	"hlod-engine/internal/engineconfig"
	"hlod-engine/internal/hlod"
)

// Session is the state the streaming commands act on.
type Session struct {
	Runtime *hlod.Runtime
	Prefs   *engineconfig.Prefs
	// Path is where "save" writes the preferences; empty disables saving.
	Path string
	Out  func(string)
}

func (s *Session) printf(format string, args ...any) {
	if s.Out != nil {
		s.Out(fmt.Sprintf(format, args...))
	}
}

// commit validates next, makes it current and pushes it to every controller.
func (s *Session) commit(next engineconfig.Prefs) error {
	if err := next.Validate(); err != nil {
		return err
	}
	*s.Prefs = next
	for _, c := range s.Runtime.Controllers() {
		next.Apply(c)
	}
	return nil
}

// RegisterHLOD adds the streaming commands: mode, level, lod, stats, bounds, grid, save and help.
func RegisterHLOD(r *Registry, s *Session) {
	r.Register("mode", "mode [-set disable|manual|auto]", func(fs *flag.FlagSet) func() error {
		set := fs.String("set", "", "streaming mode")
		return func() error {
			if *set == "" {
				s.printf("mode %s", s.Prefs.Mode)
				return nil
			}
			m, err := hlod.ParseMode(*set)
			if err != nil {
				return err
			}
			next := *s.Prefs
			next.Mode = m.String()
			if err := s.commit(next); err != nil {
				return err
			}
			s.printf("mode %s", m)
			return nil
		}
	})

	r.Register("level", "level [-set N] (-1 is the finest level)", func(fs *flag.FlagSet) func() error {
		set := fs.Int("set", -2, "manual level")
		return func() error {
			if *set == -2 {
				s.printf("level %d", s.Prefs.ManualLevel)
				return nil
			}
			next := *s.Prefs
			next.ManualLevel = *set
			if err := s.commit(next); err != nil {
				return err
			}
			s.printf("level %d", *set)
			return nil
		}
	})

	r.Register("lod", "lod [-threshold F] [-cull F] [-bias F]", func(fs *flag.FlagSet) func() error {
		next := *s.Prefs
		fs.Func("threshold", "relative size switching to high", floatFlag(&next.LODThreshold))
		fs.Func("cull", "relative size releasing a subtree", floatFlag(&next.CullThreshold))
		fs.Func("bias", "scale applied to every relative size", floatFlag(&next.LODBias))
		return func() error {
			if err := s.commit(next); err != nil {
				return err
			}
			s.printf("lod threshold %g cull %g bias %g", next.LODThreshold, next.CullThreshold, next.LODBias)
			return nil
		}
	})

	r.Register("stats", "stats", func(fs *flag.FlagSet) func() error {
		return func() error {
			st := s.Runtime.Stats()
			s.printf("nodes %d ready %d high %d low %d released %d entering %d queued %d in-flight %d",
				st.Nodes, st.Ready, st.High, st.Low, st.Released, st.Pending, st.Queued, st.InFlight)
			return nil
		}
	})

	r.Register("bounds", "bounds -visible=true|false", toggle(s, "bounds", &s.Prefs.ShowBounds))
	r.Register("grid", "grid -visible=true|false", toggle(s, "grid", &s.Prefs.GridVisible))

	r.Register("save", "save", func(fs *flag.FlagSet) func() error {
		return func() error {
			if s.Path == "" {
				return fmt.Errorf("save: no config path")
			}
			if err := engineconfig.Save(s.Path, *s.Prefs); err != nil {
				return err
			}
			s.printf("saved %s", s.Path)
			return nil
		}
	})

	r.Register("help", "help", func(fs *flag.FlagSet) func() error {
		return func() error {
			for _, line := range r.Usage() {
				s.printf("%s", line)
			}
			return nil
		}
	})
}

func toggle(s *Session, name string, dst *bool) Setup {
	return func(fs *flag.FlagSet) func() error {
		visible := fs.Bool("visible", !*dst, "show or hide")
		return func() error {
			*dst = *visible
			s.printf("%s %t", name, *visible)
			return nil
		}
	}
}

func floatFlag(dst *float32) func(string) error {
	return func(v string) error {
		var f float32
		if _, err := fmt.Sscan(v, &f); err != nil {
			return err
		}
		*dst = f
		return nil
	}
}
