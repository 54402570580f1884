package cmd

import (
	"context"

	"github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/laisky-chart-files/library/log"
)

var cleanupCMD = &cobra.Command{
	Use:   "cleanup",
	Short: "remove file descriptors with a corrupt blob reference",
	Args:  gcmd.NoExtraArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize(cmd.Context(), cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCleanup(cmd.Context())
	},
}

func runCleanup(ctx context.Context) error {
	svc, err := openService(ctx)
	if err != nil {
		return errors.Wrap(err, "open file service")
	}
	defer func() {
		if err := svc.Close(context.WithoutCancel(ctx)); err != nil {
			log.Logger.Warn("close file service", zap.Error(err))
		}
	}()

	removed, err := svc.Sweep(ctx)
	if err != nil {
		return errors.Wrap(err, "sweep")
	}

	log.Logger.Info("cleanup done", zap.Int64("removed", removed))
	return nil
}

func init() {
	rootCMD.AddCommand(cleanupCMD)
}
