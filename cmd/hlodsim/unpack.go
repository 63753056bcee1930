package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hlod-engine/internal/archive"
)

func newUnpackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <content.zip> <dir>",
		Short: "Extract a content bundle into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := archive.Unzip(args[0], args[1])
			if err != nil {
				return err
			}
			a.log.Info("unpacked", zap.String("bundle", args[0]), zap.String("dir", args[1]), zap.Int("files", len(files)))
			return nil
		},
	}
}
