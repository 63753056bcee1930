// Command hlodview opens a window streaming a hierarchy around a free camera.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hlod-engine/internal/commands"
	"hlod-engine/internal/debug"
	"hlod-engine/internal/engineconfig"
	"hlod-engine/internal/env"
	"hlod-engine/internal/graphics"
	"hlod-engine/internal/logger"
	"hlod-engine/internal/primitives"
	"hlod-engine/internal/scene"
	"hlod-engine/internal/terminal"
	"hlod-engine/internal/world"
)

var (
	treePath   string
	configPath string
	logPath    string
	logLevel   string
	fullscreen bool

	rootCmd = &cobra.Command{
		Use:          "hlodview",
		Short:        "Stream a generated map or a tree descriptor in a raylib window",
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&treePath, "tree", "", "tree descriptor; empty generates a map from the config")
	rootCmd.Flags().StringVar(&configPath, "config", engineconfig.EngineConfigPath, "preferences file, reloaded on change")
	rootCmd.Flags().StringVar(&logPath, "log", logger.LogFilePath, `log file, "-" for none`)
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.Flags().BoolVar(&fullscreen, "fullscreen", false, "open fullscreen on the primary monitor")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if _, err := env.Load(".env"); err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Path: logPath, Level: logLevel})
	if err != nil {
		return err
	}
	defer log.Close()

	prefs, err := engineconfig.Load(configPath)
	if err != nil {
		log.Warn("using default preferences", zap.Error(err))
	}
	if err := engineconfig.ApplyEnv(&prefs, os.LookupEnv); err != nil {
		return err
	}

	w, err := world.Open(prefs, world.Options{TreePath: treePath, Log: log.Logger})
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	reloads := make(chan engineconfig.Prefs, 1)
	go func() {
		err := engineconfig.Watch(ctx, configPath, os.LookupEnv, log.Logger, func(p engineconfig.Prefs) {
			select {
			case reloads <- p:
			case <-ctx.Done():
			}
		})
		if err != nil {
			log.Warn("config watch stopped", zap.Error(err))
		}
	}()

	scn := scene.New()
	scn.LODBias = prefs.LODBias
	reg := commands.NewRegistry()
	commands.RegisterHLOD(reg, &commands.Session{
		Runtime: w.Runtime,
		Prefs:   &prefs,
		Path:    configPath,
		Out:     log.Log,
	})
	term := terminal.New(log, reg)
	dbg := debug.New(w.Runtime.Stats)
	prims := primitives.NewRegistry()

	update := func() {
		select {
		case p := <-reloads:
			prefs = p
			w.Apply(prefs)
		default:
		}
		term.Update()
		scn.Update(!term.IsOpen())
		scn.GridVisible = prefs.GridVisible
		scn.ShowBounds = prefs.ShowBounds
		scn.LODBias = prefs.LODBias
		dbg.ShowFPS, dbg.ShowMemAlloc, dbg.ShowStats = prefs.ShowFPS, prefs.ShowMemAlloc, prefs.ShowStats
		w.Runtime.Tick(scn.View())
	}
	draw := func() {
		pos := scn.Camera.Position
		prims.SetView([3]float32{pos.X, pos.Y, pos.Z}, [3]float32{0.5, 1, 0.3})
		scn.Draw(func() {
			for _, inst := range w.Source.Instances() {
				prims.Draw(inst, w.Origin(inst.Key.Controller))
			}
		}, w.Runtime.Controllers())
		term.Draw()
		dbg.Draw()
	}

	log.Info("viewer started", zap.String("tree", treePath), zap.Stringer("mode", prefs.ModeValue()))
	graphics.Run(graphics.Window{Title: fmt.Sprintf("hlodview (%d nodes)", w.NodeCount()), Fullscreen: fullscreen},
		update, draw, prims.Unload)
	return nil
}
