package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zx06/vwbackup/internal/app"
	"github.com/zx06/vwbackup/internal/errors"
	"github.com/zx06/vwbackup/internal/output"
)

// NewUninstallCommand creates the uninstall command
func NewUninstallCommand(rt *cliEnv, w *output.Writer) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove every schedule, secret, the account list and all exports",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(GlobalConfig.FormatStr)
			if err != nil {
				return err
			}
			s := GlobalConfig.Resolved.Settings

			if !yes {
				_, _ = fmt.Fprintf(rt.Stderr, "%s this deletes every scheduled backup, all stored secrets,\n  %s and every export in %s\n",
					color.YellowString("⚠"), s.RegistryFile, s.ExportDir)
				ok, err := rt.prompter().Confirm("Continue?")
				if err != nil {
					return promptErr(err, "confirmation")
				}
				if !ok {
					return errors.New(errors.CodeAborted, "uninstall aborted", nil)
				}
			}

			res, err := app.NewAccounts(s, rt.deps()).Uninstall(cmd.Context())
			if err != nil {
				return err
			}
			return w.WriteOK(format, res)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
