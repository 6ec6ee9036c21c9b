package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zx06/vwbackup/internal/app"
	"github.com/zx06/vwbackup/internal/errors"
	"github.com/zx06/vwbackup/internal/output"
)

func main() {
	exit := run()
	os.Exit(exit)
}

// run is the main entry point
func run() int {
	// a signal cancels the running bw command; attempt cleanup still runs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:], defaultRuntime())
}

// execute builds the command tree, runs args and maps the outcome to an exit code.
func execute(ctx context.Context, args []string, rt *cliEnv) int {
	a := app.New(version, commit, date)
	w := output.New(rt.Stdout, rt.Stderr)

	root := NewRootCommand(rt)
	if args == nil {
		// cobra falls back to os.Args for nil
		args = []string{}
	}
	root.SetArgs(args)
	root.SetIn(rt.Stdin)
	root.SetOut(rt.Stdout)
	root.SetErr(rt.Stderr)

	root.AddCommand(NewSpecCommand(&a, &w))
	root.AddCommand(NewVersionCommand(&a, &w))
	root.AddCommand(NewAddCommand(rt, &w))
	root.AddCommand(NewRemoveCommand(rt, &w))
	root.AddCommand(NewListCommand(rt, &w))
	root.AddCommand(NewBackupCommand(rt, &w))
	root.AddCommand(NewUninstallCommand(rt, &w))

	if err := root.ExecuteContext(ctx); err != nil {
		xe := normalizeErr(err)
		if xe.Code == errors.CodeUsage {
			// usage errors go to stderr as text, never as an envelope
			_, _ = fmt.Fprintf(rt.Stderr, "Error: %s\n\n%s", xe.Message, root.UsageString())
			return int(errors.ExitCodeFor(xe.Code))
		}
		fs := GlobalConfig.FormatStr
		if GlobalConfig.Resolved.Format == "" && fs == string(output.FormatAuto) {
			// config resolution failed before the env format was applied
			if env := rt.getenv("VWBACKUP_FORMAT"); env != "" {
				fs = env
			}
		}
		format := resolveFormatForError(fs)
		_ = w.WriteError(format, xe)
		return int(errors.ExitCodeFor(xe.Code))
	}

	return int(errors.ExitOK)
}
