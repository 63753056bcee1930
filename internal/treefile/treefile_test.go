package treefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlod-engine/internal/hlod"
	"hlod-engine/internal/space"
)

func sampleTree() *hlod.TreeSpec {
	box := func(x, z, s float32) space.Bounds {
		return space.NewBounds(space.Vec3{x, 0, z}, space.Vec3{s, s, s})
	}
	return &hlod.TreeSpec{Nodes: []hlod.NodeSpec{
		{Bounds: box(0, 0, 8), Low: []int{0}, Children: []int{1, 2}},
		{Bounds: box(-2, 0, 4), High: []int{1}, Low: []int{1}},
		{Bounds: box(2, 0, 4), High: []int{2, 3}, Low: []int{2}},
	}}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenes", "tree.yaml")
	require.NoError(t, Save(path, "content", sampleTree()))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Version, f.Version)
	assert.Equal(t, filepath.Join(dir, "scenes", "content"), f.Content)
	assert.Equal(t, *sampleTree(), f.Tree)
}

func TestSaveRejectsInvalidTree(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "t.yaml"), "", &hlod.TreeSpec{})
	assert.ErrorIs(t, err, hlod.ErrInvalidTree)
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"version":       "version: 2\ntree:\n  nodes: [{}]\n",
		"unknown field": "version: 1\ncolour: red\ntree:\n  nodes: [{}]\n",
		"dangling":      "version: 1\ntree:\n  nodes:\n    - children: [4]\n",
		"syntax":        "version: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			assert.Error(t, err)
		})
	}

	f, err := Decode([]byte("version: 1\ntree:\n  nodes: [{}]\n"))
	require.NoError(t, err)
	assert.Len(t, f.Tree.Nodes, 1)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleTree()
	c, err := Clone(orig)
	require.NoError(t, err)
	require.Len(t, c.Nodes, len(orig.Nodes))
	assert.Equal(t, orig.Root, c.Root)
	for i, n := range orig.Nodes {
		assert.Equal(t, n.Bounds, c.Nodes[i].Bounds)
		assert.ElementsMatch(t, n.High, c.Nodes[i].High)
		assert.ElementsMatch(t, n.Low, c.Nodes[i].Low)
		assert.ElementsMatch(t, n.Children, c.Nodes[i].Children)
	}

	c.Nodes[0].Children[0] = 2
	c.Nodes[2].High = append(c.Nodes[2].High[:1], 9)
	assert.Equal(t, []int{1, 2}, orig.Nodes[0].Children)
	assert.Equal(t, []int{2, 3}, orig.Nodes[2].High)
}
