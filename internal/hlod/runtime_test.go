package hlod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/space"
)

func TestRuntimeQueuedEndToEnd(t *testing.T) {
	log := zaptest.NewLogger(t)
	loads := loadmgr.New(loadmgr.WithBudget(2), loadmgr.WithLogger(log))
	rt := NewRuntime(loads, log)

	srcA, srcB := newTestSource(), newTestSource()
	a, err := NewController(1, quad(3, 16), loads, srcA, WithLogger(log), WithMode(DisableHLOD))
	require.NoError(t, err)
	b, err := NewController(2, quad(2, 16), loads, srcB, WithLogger(log),
		WithOrigin(space.Vec3{100, 0, 0}))
	require.NoError(t, err)

	rt.Register(a)
	rt.Register(b)
	rt.Register(a)
	assert.Len(t, rt.Controllers(), 2)
	assert.False(t, rt.IsLoadDone())

	cam := camAt(100, 0)
	frames := 0
	for ; frames < 50 && !rt.IsLoadDone(); frames++ {
		rt.Tick(cam)
		require.NoError(t, CheckInvariants(a))
		require.NoError(t, CheckInvariants(b))
	}
	require.True(t, rt.IsLoadDone(), "not loaded after %d frames", frames)

	s := rt.Stats()
	assert.Equal(t, 26, s.Nodes)
	assert.Equal(t, 26, s.Ready)
	assert.Equal(t, 26, s.High)
	assert.Zero(t, s.Low+s.Released)
	assert.Zero(t, s.Pending)
	assert.Zero(t, s.Queued+s.InFlight)

	// the origin puts the second hierarchy right under the camera
	assert.Equal(t, High, b.Root().CurrentState())

	rt.Unregister(b)
	assert.Len(t, rt.Controllers(), 1)
	assert.Equal(t, srcB.totalLoads(), srcB.totalUnloads())
	rt.Unregister(b)

	rt.Close()
	assert.Empty(t, rt.Controllers())
	assert.Equal(t, srcA.totalLoads(), srcA.totalUnloads())
}

func TestRuntimeLoadsNearestFirst(t *testing.T) {
	loads := loadmgr.New(loadmgr.WithBudget(1))
	rt := NewRuntime(loads, nil)
	src := newTestSource()
	c, err := NewController(1, quad(2, 16), loads, src, WithMode(DisableHLOD))
	require.NoError(t, err)
	rt.Register(c)

	// camera over the +X+Z child
	cam := camAt(4, 4)
	for i := 0; i < 30 && !rt.IsLoadDone(); i++ {
		rt.Tick(cam)
	}
	require.True(t, rt.IsLoadDone())

	var childLows []loadmgr.Key
	for _, k := range src.order {
		if k.Category == loadmgr.Low && k.ID != 0 {
			childLows = append(childLows, k)
		}
	}
	require.Len(t, childLows, 4)
	assert.Equal(t, lowKey(4), childLows[0], "nearest child loads first")
	assert.Equal(t, lowKey(1), childLows[3], "farthest child loads last")
}
