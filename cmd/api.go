package cmd

import (
	"context"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/laisky-chart-files/internal/web"
	"github.com/Laisky/laisky-chart-files/library/auth"
	"github.com/Laisky/laisky-chart-files/library/jwt"
	"github.com/Laisky/laisky-chart-files/library/log"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `HTTP API for uploading and charting data files`,
	Args:  gcmd.NoExtraArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize(cmd.Context(), cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPI(cmd.Context())
	},
}

func runAPI(ctx context.Context) error {
	signer, err := jwt.NewSigner([]byte(gconfig.Shared.GetString("settings.secret")))
	if err != nil {
		return errors.Wrap(err, "new jwt signer")
	}

	svc, err := openService(ctx)
	if err != nil {
		return errors.Wrap(err, "open file service")
	}
	defer func() {
		if err := svc.Close(context.WithoutCancel(ctx)); err != nil {
			log.Logger.Warn("close file service", zap.Error(err))
		}
	}()

	if svc.Settings().SweepOnStart {
		removed, err := svc.Sweep(ctx)
		if err != nil {
			log.Logger.Warn("sweep corrupt file descriptors", zap.Error(err))
		} else if removed > 0 {
			log.Logger.Info("removed corrupt file descriptors", zap.Int64("count", removed))
		}
	}

	return web.RunServer(ctx, gconfig.Shared.GetString("listen"), svc, auth.New(signer))
}

func init() {
	rootCMD.AddCommand(apiCMD)
}
