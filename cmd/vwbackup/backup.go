package main

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zx06/vwbackup/internal/app"
	"github.com/zx06/vwbackup/internal/backup"
	"github.com/zx06/vwbackup/internal/errors"
	vwlog "github.com/zx06/vwbackup/internal/log"
	"github.com/zx06/vwbackup/internal/output"
	"github.com/zx06/vwbackup/internal/registry"
)

// NewBackupCommand creates the backup command
func NewBackupCommand(rt *cliEnv, w *output.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [account|all]",
		Short: "Export the vault of one account, or of every registered account",
		Long: "Export the vault of one account, or of every registered account when no\n" +
			"account (or \"all\") is given. Accounts are processed one after another and a\n" +
			"failing account does not stop the others. Exit status is 0 only if every\n" +
			"attempted account succeeded.",
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(GlobalConfig.FormatStr)
			if err != nil {
				return err
			}
			s := GlobalConfig.Resolved.Settings

			target := backup.AllAccounts
			if len(args) == 1 && args[0] != backup.AllAccounts {
				if target, err = accountArg(args[0]); err != nil {
					return err
				}
				ok, err := registry.New(s.RegistryFile).Contains(target)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New(errors.CodeAccountNotFound, "account is not registered", map[string]any{"account": target})
				}
			}

			logFile, err := vwlog.OpenAppend(s.LogFile)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, "failed to open log file", map[string]any{"path": s.LogFile}, err)
			}
			defer func() { _ = logFile.Close() }()

			d := rt.deps()
			if rt.Interactive {
				// the spinner owns stderr; the log file still gets every line
				d.Logger = vwlog.New(logFile)
				d.Observer = newSpinnerObserver(rt.Stderr)
			} else {
				d.Logger = vwlog.Tee(rt.Stderr, logFile)
			}

			report, err := app.NewExecutor(s, d).Run(cmd.Context(), target)
			if err != nil {
				return err
			}
			if n := report.Failed(); n > 0 {
				return errors.New(errors.CodeBackupFailed, "backup failed", map[string]any{
					"run_id":  report.RunID,
					"failed":  n,
					"results": report.Results,
				})
			}
			return w.WriteOK(format, report)
		},
	}
}

// spinnerObserver shows one spinner line per account on a terminal.
type spinnerObserver struct {
	out io.Writer
	s   *spinner.Spinner
}

func newSpinnerObserver(out io.Writer) *spinnerObserver {
	return &spinnerObserver{
		out: out,
		s:   spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out)),
	}
}

func (o *spinnerObserver) OnStart(account string) {
	o.s.Suffix = " Backing up " + account
	o.s.Start()
}

func (o *spinnerObserver) OnFinish(r backup.Result) {
	o.s.Stop()
	if r.OK() {
		_, _ = fmt.Fprintf(o.out, "%s %s → %s\n", color.GreenString("✓"), r.Account, r.Artifact)
		return
	}
	_, _ = fmt.Fprintf(o.out, "%s %s: %s (%s)\n", color.RedString("✗"), r.Account, r.Error, r.State)
}

var _ backup.Observer = (*spinnerObserver)(nil)
