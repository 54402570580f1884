package cmd

import (
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/spf13/cobra"

	"github.com/Laisky/laisky-chart-files/library/jwt"
)

var tokenCMD = &cobra.Command{
	Use:   "token",
	Short: "sign a session token",
	Long:  `sign a session token for a user id, e.g. ./main token --sub user1 --role admin`,
	Args:  gcmd.NoExtraArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize(cmd.Context(), cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := jwt.NewSigner([]byte(gconfig.Shared.GetString("settings.secret")))
		if err != nil {
			return errors.Wrap(err, "new jwt signer")
		}

		sub, _ := cmd.Flags().GetString("sub")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := signer.Sign(sub, role, ttl)
		if err != nil {
			return errors.Wrap(err, "sign token")
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCMD.AddCommand(tokenCMD)
	tokenCMD.Flags().String("sub", "", "user id the token is issued to")
	tokenCMD.Flags().String("role", jwt.RoleUser, "`user/admin`")
	tokenCMD.Flags().Duration("ttl", 7*24*time.Hour, "token lifetime")
}
