package main

import (
	"github.com/spf13/cobra"

	"github.com/zx06/vwbackup/internal/app"
	"github.com/zx06/vwbackup/internal/output"
)

// NewRemoveCommand creates the remove command
func NewRemoveCommand(rt *cliEnv, w *output.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account>",
		Short: "Unregister an account, delete its secrets and its schedule",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(GlobalConfig.FormatStr)
			if err != nil {
				return err
			}
			id, err := accountArg(args[0])
			if err != nil {
				return err
			}
			accounts := app.NewAccounts(GlobalConfig.Resolved.Settings, rt.deps())
			res, err := accounts.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			return w.WriteOK(format, res)
		},
	}
}
