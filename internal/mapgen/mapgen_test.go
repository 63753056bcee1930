package mapgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlod-engine/internal/content"
	"hlod-engine/internal/hlod"
	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/space"
)

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Depth = 3
	opts.LeafTiles = 2
	opts.Seed = 42
	return opts
}

func TestGenerateShape(t *testing.T) {
	scn, err := Generate(smallOptions())
	require.NoError(t, err)
	require.NoError(t, scn.Tree.Validate())

	assert.Len(t, scn.Tree.Nodes, 21)
	assert.Equal(t, 3, scn.Tree.Depth())
	assert.Len(t, scn.Content.Low, 21)
	assert.Len(t, scn.Content.High, 64)
	assert.Len(t, scn.Heights, 8)

	for i, n := range scn.Tree.Nodes {
		require.Len(t, n.Low, 1, "node %d", i)
		for _, c := range n.Children {
			assert.True(t, n.Bounds.Contains(scn.Tree.Nodes[c].Bounds), "node %d child %d", i, c)
		}
		if len(n.Children) == 0 {
			assert.Len(t, n.High, 4)
		} else {
			assert.Empty(t, n.High)
		}
	}
	for id, def := range scn.Content.High {
		require.NoError(t, def.Validate(), "high %d", id)
		assert.GreaterOrEqual(t, def.Size[1], minHeight)
		assert.LessOrEqual(t, def.Size[1], smallOptions().HeightScale)
	}

	root := scn.Tree.Nodes[scn.Tree.Root].Bounds
	assert.Equal(t, space.Vec3{8, root.Size()[1], 8}, root.Size())
	assert.InDelta(t, 0, root.Center[0], 1e-6)
	assert.InDelta(t, 0, root.Center[2], 1e-6)
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate(smallOptions())
	require.NoError(t, err)
	b, err := Generate(smallOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Heights, b.Heights)

	opts := smallOptions()
	opts.Seed = 7
	c, err := Generate(opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.Heights, c.Heights)
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	opts := smallOptions()
	opts.Depth = 0
	_, err := Generate(opts)
	assert.Error(t, err)

	opts = smallOptions()
	opts.TileSize = -1
	_, err = Generate(opts)
	assert.Error(t, err)
}

func TestNoiseRange(t *testing.T) {
	for x := float32(-5); x < 5; x += 0.37 {
		v := fractalValueNoise2D(x, x*0.5, 3, 4, 2, 0.5)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
	assert.Equal(t, float32(0), smoothStep(-1))
	assert.Equal(t, float32(1), smoothStep(2))
	assert.Equal(t, float32(0.5), smoothStep(0.5))
}

func TestGeneratedSceneStreams(t *testing.T) {
	scn, err := Generate(smallOptions())
	require.NoError(t, err)
	src := content.NewMemory(scn.Content, nil)
	loads := loadmgr.New(loadmgr.WithInline())
	c, err := hlod.NewController(1, scn.Tree, loads, src, hlod.WithMode(hlod.DisableHLOD))
	require.NoError(t, err)
	c.Start()

	cam := space.Camera{Position: space.Vec3{0, 20, 0}, Fov: 60, LODBias: 1}
	for i := 0; i < 4 && !c.IsLoadDone(); i++ {
		c.Tick(cam)
		require.NoError(t, hlod.CheckInvariants(c))
	}
	require.True(t, c.IsLoadDone())

	active := 0
	for _, inst := range src.Instances() {
		if inst.Active() {
			active++
			assert.Equal(t, loadmgr.High, inst.Key.Category)
		}
	}
	assert.Equal(t, 64, active)
	assert.Equal(t, 64, src.Resident(), "low proxies are given back once their nodes refine")

	c.Stop()
	assert.Zero(t, src.Resident())
}
