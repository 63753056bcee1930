package commands

import (
	"errors"
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlod-engine/internal/engineconfig"
	"hlod-engine/internal/hlod"
	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/space"
)

func TestParse(t *testing.T) {
	args, ok := Parse("cmd mode -set  manual")
	assert.True(t, ok)
	assert.Equal(t, []string{"mode", "-set", "manual"}, args)

	args, ok = Parse("cmd ")
	assert.True(t, ok)
	assert.Nil(t, args)

	_, ok = Parse("hello")
	assert.False(t, ok)
	_, ok = Parse("CMD mode")
	assert.False(t, ok)
}

func TestExecuteFreshFlags(t *testing.T) {
	r := NewRegistry()
	var got []int
	r.Register("count", "count [-n N]", func(fs *flag.FlagSet) func() error {
		n := fs.Int("n", 1, "")
		return func() error {
			got = append(got, *n)
			return nil
		}
	})
	require.NoError(t, r.Execute([]string{"count", "-n", "5"}))
	require.NoError(t, r.Execute([]string{"count"}))
	assert.Equal(t, []int{5, 1}, got)

	assert.Error(t, r.Execute(nil))
	assert.True(t, errors.Is(r.Execute([]string{"nope"}), ErrUnknown))
	assert.Error(t, r.Execute([]string{"count", "-n", "x"}))
	assert.Error(t, r.Execute([]string{"count", "-unknown"}))
}

type session struct {
	*Session
	reg *Registry
	out []string
	c   *hlod.Controller
}

func newSession(t *testing.T) *session {
	t.Helper()
	tree := &hlod.TreeSpec{Nodes: []hlod.NodeSpec{{
		Bounds: space.NewBounds(space.Vec3{}, space.Vec3{4, 1, 4}),
		Low:    []int{0},
		High:   []int{0},
	}}}
	prefs := engineconfig.Default()
	loads := loadmgr.New(loadmgr.WithInline())
	src := loadmgr.SourceFunc(func(req loadmgr.Request, done func(loadmgr.Object, error)) {
		done(nopObject{}, nil)
	})
	c, err := hlod.NewController(1, tree, loads, src, prefs.ControllerOptions()...)
	require.NoError(t, err)
	rt := hlod.NewRuntime(loads, nil)
	rt.Register(c)
	t.Cleanup(rt.Close)

	s := &session{reg: NewRegistry(), c: c}
	s.Session = &Session{
		Runtime: rt,
		Prefs:   &prefs,
		Path:    filepath.Join(t.TempDir(), "hlod.yaml"),
		Out:     func(line string) { s.out = append(s.out, line) },
	}
	RegisterHLOD(s.reg, s.Session)
	return s
}

func (s *session) run(t *testing.T, line string) error {
	t.Helper()
	args, ok := Parse(line)
	require.True(t, ok)
	return s.reg.Execute(args)
}

type nopObject struct{}

func (nopObject) SetActive(bool) {}

func TestModeCommand(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.run(t, "cmd mode -set Manual"))
	assert.Equal(t, "manual", s.Prefs.Mode)
	assert.Equal(t, hlod.ManualControl, s.c.Mode())

	require.NoError(t, s.run(t, "cmd mode"))
	assert.Equal(t, "mode manual", s.out[len(s.out)-1])

	assert.Error(t, s.run(t, "cmd mode -set sometimes"))
	assert.Equal(t, hlod.ManualControl, s.c.Mode())
}

func TestLevelCommand(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.run(t, "cmd level -set -1"))
	assert.Equal(t, -1, s.c.ManualLevel())
	assert.Error(t, s.run(t, "cmd level -set -5"))
	assert.Equal(t, -1, s.Prefs.ManualLevel)
}

func TestLODCommand(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.run(t, "cmd lod -threshold 0.5 -cull 0.05"))
	lod, cull := s.c.Thresholds()
	assert.Equal(t, float32(0.5), lod)
	assert.Equal(t, float32(0.05), cull)

	assert.Error(t, s.run(t, "cmd lod -cull 0.9"), "cull above lod threshold")
	lod, cull = s.c.Thresholds()
	assert.Equal(t, float32(0.5), lod)
	assert.Equal(t, float32(0.05), cull)

	assert.Error(t, s.run(t, "cmd lod -bias x"))
}

func TestStatsCommand(t *testing.T) {
	s := newSession(t)
	s.Runtime.Tick(space.Camera{Position: space.Vec3{0, 0, -10}, Fov: 60, LODBias: 1})
	require.NoError(t, s.run(t, "cmd stats"))
	require.NotEmpty(t, s.out)
	assert.Contains(t, s.out[len(s.out)-1], "nodes 1 ")
}

func TestToggleAndSave(t *testing.T) {
	s := newSession(t)
	assert.False(t, s.Prefs.ShowBounds)
	require.NoError(t, s.run(t, "cmd bounds"))
	assert.True(t, s.Prefs.ShowBounds)
	require.NoError(t, s.run(t, "cmd bounds"))
	assert.False(t, s.Prefs.ShowBounds)
	require.NoError(t, s.run(t, "cmd grid -visible=false"))
	assert.False(t, s.Prefs.GridVisible)

	require.NoError(t, s.run(t, "cmd mode -set disable"))
	require.NoError(t, s.run(t, "cmd save"))
	saved, err := engineconfig.Load(s.Path)
	require.NoError(t, err)
	assert.Equal(t, *s.Prefs, saved)

	s.Path = ""
	assert.Error(t, s.run(t, "cmd save"))
}

func TestHelpListsCommands(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.run(t, "cmd help"))
	assert.Len(t, s.out, len(s.reg.Names()))
	assert.Equal(t, "bounds: bounds -visible=true|false", s.out[0])
}
