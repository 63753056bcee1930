package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hlod-engine/internal/archive"
	"hlod-engine/internal/content"
	"hlod-engine/internal/mapgen"
	"hlod-engine/internal/treefile"
)

const (
	treeFile   = "tree.yaml"
	contentDir = "content"
	contentZip = "content.zip"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		out    string
		bundle bool
		opts   mapgen.Options
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a generated map as a tree descriptor and its content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// flags left unset keep the configured map options
			o := a.prefs.Map
			flags := cmd.Flags()
			if flags.Changed("depth") {
				o.Depth = opts.Depth
			}
			if flags.Changed("leaf-tiles") {
				o.LeafTiles = opts.LeafTiles
			}
			if flags.Changed("seed") {
				o.Seed = opts.Seed
			}
			if flags.Changed("tile-size") {
				o.TileSize = opts.TileSize
			}
			scn, err := mapgen.Generate(o)
			if err != nil {
				return err
			}
			dir := filepath.Join(out, contentDir)
			if err := content.WriteDir(dir, scn.Content); err != nil {
				return err
			}
			ref := contentDir
			if bundle {
				n, err := archive.Pack(dir, filepath.Join(out, contentZip), ".yaml")
				if err != nil {
					return err
				}
				ref = contentZip
				a.log.Info("packed content", zap.Int("files", n))
			}
			if err := treefile.Save(filepath.Join(out, treeFile), ref, scn.Tree); err != nil {
				return err
			}
			a.log.Info("generated",
				zap.String("out", out),
				zap.Int("nodes", len(scn.Tree.Nodes)),
				zap.Int("depth", scn.Tree.Depth()),
				zap.Int("high", len(scn.Content.High)),
				zap.Int("low", len(scn.Content.Low)),
			)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "scene", "output directory")
	f.BoolVar(&bundle, "zip", false, "also pack the content into content.zip and reference it")
	f.IntVar(&opts.Depth, "depth", 0, "levels of the quadtree")
	f.IntVar(&opts.LeafTiles, "leaf-tiles", 0, "tiles per leaf side")
	f.Int64Var(&opts.Seed, "seed", 0, "noise seed")
	f.Float32Var(&opts.TileSize, "tile-size", 0, "tile edge length")
	return cmd
}
