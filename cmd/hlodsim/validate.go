package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hlod-engine/internal/content"
	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/treefile"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <tree.yaml>",
		Short: "Check a tree descriptor and load every object it references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := treefile.Load(args[0])
			if err != nil {
				return err
			}
			if f.Content == "" {
				return fmt.Errorf("%s names no content", args[0])
			}
			src, err := content.Open(f.Content, a.log.Logger)
			if err != nil {
				return err
			}
			checked, err := loadAll(src, f)
			err = errors.Join(err, src.Close())
			if err != nil {
				return err
			}
			a.log.Info("valid",
				zap.String("tree", args[0]),
				zap.Int("nodes", len(f.Tree.Nodes)),
				zap.Int("depth", f.Tree.Depth()),
				zap.Int("objects", checked),
			)
			return nil
		},
	}
}

// loadAll loads every content id the tree references once and hands each object back.
// Errors name the node that references the failing object.
func loadAll(src loadmgr.Source, f *treefile.File) (int, error) {
	seen := make(map[loadmgr.Key]bool)
	var errs []error
	for i, n := range f.Tree.Nodes {
		for cat, ids := range map[loadmgr.Category][]int{loadmgr.High: n.High, loadmgr.Low: n.Low} {
			for _, id := range ids {
				k := loadmgr.Key{Category: cat, ID: id}
				if seen[k] {
					continue
				}
				seen[k] = true
				req := loadmgr.Request{Key: k}
				type result struct {
					obj loadmgr.Object
					err error
				}
				ch := make(chan result, 1)
				src.Load(req, func(obj loadmgr.Object, err error) { ch <- result{obj, err} })
				r := <-ch
				if r.err == nil && r.obj == nil {
					r.err = errors.New("no object")
				}
				if r.err != nil {
					errs = append(errs, fmt.Errorf("node %d: %s: %w", i, k, r.err))
					continue
				}
				src.Unload(req, r.obj)
			}
		}
	}
	return len(seen), errors.Join(errs...)
}
