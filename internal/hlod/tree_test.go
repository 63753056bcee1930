package hlod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlod-engine/internal/arena"
)

func TestValidate(t *testing.T) {
	leaf := NodeSpec{Bounds: box(0, 0, 1)}
	tests := []struct {
		name string
		tree *TreeSpec
		ok   bool
	}{
		{"nil", nil, false},
		{"empty", &TreeSpec{}, false},
		{"single", &TreeSpec{Nodes: []NodeSpec{leaf}}, true},
		{"root out of range", &TreeSpec{Root: 1, Nodes: []NodeSpec{leaf}}, false},
		{"dangling child", &TreeSpec{Nodes: []NodeSpec{{Children: []int{3}}}}, false},
		{"cycle", &TreeSpec{Nodes: []NodeSpec{{Children: []int{1}}, {Children: []int{0}}}}, false},
		{"shared child", &TreeSpec{Nodes: []NodeSpec{{Children: []int{1, 2}}, {Children: []int{2}}, leaf}}, false},
		{"unreachable", &TreeSpec{Nodes: []NodeSpec{leaf, leaf}}, false},
		{"non-zero root", &TreeSpec{Root: 1, Nodes: []NodeSpec{leaf, {Children: []int{0}}}}, true},
		{"negative id", &TreeSpec{Nodes: []NodeSpec{{High: []int{-1}}}}, false},
		{"duplicate id", &TreeSpec{Nodes: []NodeSpec{{Low: []int{2, 2}}}}, false},
		{"same id in both sets", &TreeSpec{Nodes: []NodeSpec{{High: []int{2}, Low: []int{2}}}}, true},
		{"quad", quad(4, 64), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tree.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTree)
			}
		})
	}
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 1, singleNode().Depth())
	assert.Equal(t, 2, twoLevel().Depth())
	assert.Equal(t, 4, quad(4, 64).Depth())
}

func TestLevelsFollowDepth(t *testing.T) {
	c := newInlineController(t, quad(3, 16), newTestSource())
	counts := map[int]int{}
	c.Walk(func(n *TreeNode) bool {
		counts[n.Level()]++
		if n.Parent() != arena.None {
			p, ok := c.Node(n.Parent())
			require.True(t, ok)
			assert.Equal(t, p.Level()+1, n.Level())
			assert.True(t, p.Bounds().Contains(n.Bounds()))
		}
		return true
	})
	assert.Equal(t, map[int]int{0: 1, 1: 4, 2: 16}, counts)
}

func TestReplaceChildren(t *testing.T) {
	src := newTestSource()
	c := newInlineController(t, quad(2, 16), src, WithMode(DisableHLOD))
	root := c.Root()
	old := root.Children()[0]

	require.NoError(t, c.ReplaceChildren(root.ID(), quad(3, 16)))
	assert.Equal(t, 21, c.NodeCount())
	_, ok := c.Node(old)
	assert.False(t, ok, "removed nodes no longer resolve")
	for _, id := range root.Children() {
		n, ok := c.Node(id)
		require.True(t, ok)
		assert.Equal(t, 1, n.Level())
		assert.Len(t, n.Children(), 4)
	}

	tick(t, c, camAt(0, 0))
	assert.ErrorIs(t, c.ReplaceChildren(root.ID(), quad(2, 16)), ErrBusy)
	assert.ErrorIs(t, c.ClearChildren(root.ID()), ErrBusy)

	assert.ErrorIs(t, c.ReplaceChildren(root.ID(), &TreeSpec{}), ErrInvalidTree)
	assert.Error(t, c.ReplaceChildren(arena.ID(12345), quad(2, 16)))
}

func TestClearChildrenOnLowNode(t *testing.T) {
	src := newTestSource()
	c := newInlineController(t, quad(2, 16), src, WithMode(ManualControl), WithManualLevel(0))
	tick(t, c, camAt(0, 0))
	require.Equal(t, Low, c.Root().CurrentState())

	require.NoError(t, c.ClearChildren(c.Root().ID()))
	assert.Equal(t, 1, c.NodeCount())
	assert.Empty(t, c.Root().Children())
	tick(t, c, camAt(0, 0))
	assert.True(t, c.IsLoadDone())
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{DisableHLOD, ManualControl, AutoControl} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseMode("AUTO")
	require.NoError(t, err)
	assert.Equal(t, AutoControl, got)

	_, err = ParseMode("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "Mode(9)", Mode(9).String())
	assert.Equal(t, "high", High.String())
}
