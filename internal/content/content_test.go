package content

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"hlod-engine/internal/archive"
	"hlod-engine/internal/loadmgr"
)

func key(c loadmgr.Category, id int) loadmgr.Key {
	return loadmgr.Key{Controller: 1, ID: id, Category: c}
}

func sampleSet() Set {
	s := NewSet()
	s.High[0] = ObjectDef{Type: "cube", Position: [3]float32{1, 0, 1}, Size: [3]float32{1, 2, 1}, Color: "#55aa55"}
	s.High[1] = ObjectDef{Type: "sphere"}
	s.Low[0] = ObjectDef{Type: "plane", Size: [3]float32{4, 1, 4}}
	return s
}

type result struct {
	obj loadmgr.Object
	err error
}

// load calls src.Load and waits for its completion.
func load(t *testing.T, src loadmgr.Source, k loadmgr.Key) (loadmgr.Object, error) {
	t.Helper()
	ch := make(chan result, 1)
	src.Load(loadmgr.Request{Key: k}, func(obj loadmgr.Object, err error) {
		ch <- result{obj, err}
	})
	select {
	case r := <-ch:
		return r.obj, r.err
	case <-time.After(5 * time.Second):
		t.Fatalf("load of %s never completed", k)
		return nil, nil
	}
}

func TestObjectDefValidate(t *testing.T) {
	assert.NoError(t, ObjectDef{Type: "cube"}.Validate())
	assert.NoError(t, ObjectDef{Type: "plane", Color: "#fff"}.Validate())
	assert.Error(t, ObjectDef{}.Validate())
	assert.Error(t, ObjectDef{Type: "teapot"}.Validate())
	assert.Error(t, ObjectDef{Type: "cube", Color: "green"}.Validate())
}

func TestObjectDefRGBA(t *testing.T) {
	tests := []struct {
		color      string
		r, g, b, a uint8
	}{
		{"#ff8000", 255, 128, 0, 255},
		{"#f80", 255, 136, 0, 255},
		{"#10203040", 16, 32, 48, 64},
		{"#0f08", 0, 255, 0, 136},
		{"", 128, 128, 128, 255},
		{"#zzzzzz", 128, 128, 128, 255},
	}
	for _, tt := range tests {
		r, g, b, a := ObjectDef{Color: tt.color}.RGBA()
		assert.Equal(t, [4]uint8{tt.r, tt.g, tt.b, tt.a}, [4]uint8{r, g, b, a}, tt.color)
	}
}

func TestSetIDs(t *testing.T) {
	s := sampleSet()
	assert.Equal(t, []int{0, 1}, s.IDs(loadmgr.High))
	assert.Equal(t, []int{0}, s.IDs(loadmgr.Low))
	def, ok := s.Lookup(key(loadmgr.Low, 0))
	require.True(t, ok)
	assert.Equal(t, "plane", def.Type)
}

func TestMemoryLoadsInline(t *testing.T) {
	m := NewMemory(sampleSet(), nil)
	assert.Equal(t, 2, m.HighObjectCount())
	assert.Equal(t, 1, m.LowObjectCount())

	called := false
	m.Load(loadmgr.Request{Key: key(loadmgr.High, 0)}, func(obj loadmgr.Object, err error) {
		require.NoError(t, err)
		inst := obj.(*Instance)
		assert.Equal(t, "cube", inst.Def.Type)
		assert.False(t, inst.Active())
		called = true
	})
	assert.True(t, called, "memory loads complete before Load returns")
	assert.Equal(t, 1, m.Resident())

	_, err := load(t, m, key(loadmgr.Low, 9))
	assert.ErrorIs(t, err, ErrNotFound)

	obj, err := load(t, m, key(loadmgr.Low, 0))
	require.NoError(t, err)
	obj.SetActive(true)
	assert.Len(t, m.Instances(), 2)

	m.Unload(loadmgr.Request{Key: key(loadmgr.Low, 0)}, obj)
	assert.Equal(t, 1, m.Resident())
	loads, unloads := m.Totals()
	assert.Equal(t, 2, loads)
	assert.Equal(t, 1, unloads)
}

func TestMemoryPut(t *testing.T) {
	m := NewMemory(Set{}, nil)
	assert.Zero(t, m.HighObjectCount())
	m.Put(loadmgr.High, 3, ObjectDef{Type: "cylinder"})
	obj, err := load(t, m, key(loadmgr.High, 3))
	require.NoError(t, err)
	assert.Equal(t, "cylinder", obj.(*Instance).Def.Type)
}

func TestUnloadOfStaleInstanceKeepsNewOne(t *testing.T) {
	m := NewMemory(sampleSet(), nil)
	old, err := load(t, m, key(loadmgr.High, 1))
	require.NoError(t, err)
	fresh, err := load(t, m, key(loadmgr.High, 1))
	require.NoError(t, err)
	m.Unload(loadmgr.Request{Key: key(loadmgr.High, 1)}, old)
	require.Len(t, m.Instances(), 1)
	assert.Same(t, fresh, m.Instances()[0])
}

func TestLateUnloadKeepsEarlierInstance(t *testing.T) {
	m := NewMemory(sampleSet(), nil)
	k := key(loadmgr.Low, 0)
	replacement, err := load(t, m, k)
	require.NoError(t, err)
	late, err := load(t, m, k)
	require.NoError(t, err)
	require.Equal(t, 2, m.Resident())

	m.Unload(loadmgr.Request{Key: k}, late)
	require.Len(t, m.Instances(), 1)
	assert.Same(t, replacement, m.Instances()[0])

	m.Unload(loadmgr.Request{Key: k}, replacement)
	assert.Zero(t, m.Resident())
	loads, unloads := m.Totals()
	assert.Equal(t, 2, loads)
	assert.Equal(t, 2, unloads)
}

func TestDirSource(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, WriteDir(root, sampleSet()))
	require.NoError(t, os.WriteFile(filepath.Join(root, HighDir, "7.yaml"), []byte("type: teapot\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, HighDir, "8.yaml"), []byte("type: [\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, HighDir, "readme.md"), []byte("#"), 0644))

	src, err := OpenDir(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, src.HighObjectCount())
	assert.Equal(t, 1, src.LowObjectCount())

	obj, err := load(t, src, key(loadmgr.High, 0))
	require.NoError(t, err)
	inst := obj.(*Instance)
	assert.Equal(t, sampleSet().High[0], inst.Def)

	_, err = load(t, src, key(loadmgr.High, 7))
	assert.Error(t, err)
	_, err = load(t, src, key(loadmgr.High, 8))
	assert.Error(t, err)
	_, err = load(t, src, key(loadmgr.Low, 5))
	assert.ErrorIs(t, err, ErrNotFound)

	src.Unload(loadmgr.Request{Key: inst.Key}, inst)
	assert.Zero(t, src.Resident())
	require.NoError(t, src.Close())

	_, err = load(t, src, key(loadmgr.High, 1))
	assert.Error(t, err, "a closed source refuses loads")
}

func TestZipSource(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, WriteDir(root, sampleSet()))
	bundle := filepath.Join(t.TempDir(), "scene.zip")
	n, err := archive.Pack(root, bundle, ".yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	src, err := OpenZip(bundle, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, src.HighObjectCount())

	obj, err := load(t, src, key(loadmgr.Low, 0))
	require.NoError(t, err)
	assert.Equal(t, "plane", obj.(*Instance).Def.Type)
	require.NoError(t, src.Close())
}

func TestFSThroughQueuedManager(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, WriteDir(root, sampleSet()))
	src, err := OpenDir(root, nil)
	require.NoError(t, err)
	defer src.Close()

	m := loadmgr.New(loadmgr.WithBudget(1))
	m.Register(1, src)
	got := map[int]bool{}
	for _, id := range []int{0, 1} {
		id := id
		m.Load(loadmgr.Request{Key: key(loadmgr.High, id)}, func(obj loadmgr.Object, err error) {
			require.NoError(t, err)
			got[id] = true
		})
	}
	assert.Eventually(t, func() bool {
		m.Pump()
		return len(got) == 2
	}, 5*time.Second, time.Millisecond)
}
