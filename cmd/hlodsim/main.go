// Command hlodsim generates, checks and streams hierarchies without a window.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hlod-engine/internal/engineconfig"
	"hlod-engine/internal/env"
	"hlod-engine/internal/logger"
)

// app holds what every subcommand shares, set up before the subcommand runs.
type app struct {
	configPath string
	logPath    string
	logLevel   string

	log   *logger.Logger
	prefs engineconfig.Prefs
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "hlodsim",
		Short:         "Generate, validate and stream HLOD hierarchies headlessly",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.log == nil {
				return nil
			}
			return a.log.Close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", engineconfig.EngineConfigPath, "preferences file")
	root.PersistentFlags().StringVar(&a.logPath, "log", "-", `JSON log file, "-" for none`)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(
		newGenerateCmd(a),
		newRunCmd(a),
		newValidateCmd(a),
		newUnpackCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if _, err := env.Load(".env"); err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Path: a.logPath, Level: a.logLevel, Echo: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	a.log = log
	prefs, err := engineconfig.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := engineconfig.ApplyEnv(&prefs, os.LookupEnv); err != nil {
		return err
	}
	a.prefs = prefs
	log.Debug("preferences", zap.String("config", a.configPath), zap.Stringer("mode", prefs.ModeValue()),
		zap.Int("load_budget", prefs.LoadBudget))
	return nil
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("hlodsim:", err)
		os.Exit(1)
	}
}
