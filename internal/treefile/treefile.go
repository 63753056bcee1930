// Package treefile stores pre-built hierarchies as YAML descriptors.
package treefile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"

	"hlod-engine/internal/hlod"
)

// Version is written into every descriptor; Load rejects other versions.
const Version = 1

// File is the on-disk form of one hierarchy. Content names where the objects live, relative to
// the descriptor: a content directory or a zip bundle. It may be empty for generated scenes.
type File struct {
	Version int           `yaml:"version"`
	Content string        `yaml:"content,omitempty"`
	Tree    hlod.TreeSpec `yaml:"tree"`
}

// Decode parses and validates a descriptor.
func Decode(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("treefile: %w", err)
	}
	if f.Version != Version {
		return nil, fmt.Errorf("treefile: unsupported version %d", f.Version)
	}
	if err := f.Tree.Validate(); err != nil {
		return nil, fmt.Errorf("treefile: %w", err)
	}
	return &f, nil
}

// Load reads the descriptor at path. A relative Content is resolved against the descriptor's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("treefile: %w", err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Content != "" && !filepath.IsAbs(f.Content) {
		f.Content = filepath.Join(filepath.Dir(path), f.Content)
	}
	return f, nil
}

// Save writes tree to path, creating the directory if needed.
func Save(path, content string, tree *hlod.TreeSpec) error {
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("treefile: %w", err)
	}
	data, err := yaml.Marshal(File{Version: Version, Content: content, Tree: *tree})
	if err != nil {
		return fmt.Errorf("treefile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("treefile: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy of tree, so several controllers can be built from one descriptor
// and edited independently.
func Clone(tree *hlod.TreeSpec) (*hlod.TreeSpec, error) {
	out := &hlod.TreeSpec{}
	if err := copier.CopyWithOption(out, tree, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("treefile: clone: %w", err)
	}
	return out, nil
}
