package main

import (
	"github.com/spf13/cobra"

	"github.com/zx06/vwbackup/internal/app"
	"github.com/zx06/vwbackup/internal/output"
)

// NewListCommand creates the list command
func NewListCommand(rt *cliEnv, w *output.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts with their schedule and secret status",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(GlobalConfig.FormatStr)
			if err != nil {
				return err
			}
			accounts := app.NewAccounts(GlobalConfig.Resolved.Settings, rt.deps())
			res, err := accounts.List(cmd.Context())
			if err != nil {
				return err
			}
			return w.WriteOK(format, res)
		},
	}
}
