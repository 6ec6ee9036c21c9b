package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zx06/vwbackup/internal/app"
	"github.com/zx06/vwbackup/internal/config"
	"github.com/zx06/vwbackup/internal/errors"
	"github.com/zx06/vwbackup/internal/output"
	"github.com/zx06/vwbackup/internal/prompt"
	"github.com/zx06/vwbackup/internal/schedule"
)

// Build-time variables (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Config holds the resolved configuration
type Config struct {
	FormatStr string
	ConfigStr string
	Resolved  config.Resolved
}

// GlobalConfig holds the global configuration state
var GlobalConfig = &Config{}

// cliEnv carries the process streams and the replaceable external
// dependencies; tests swap in fakes.
type cliEnv struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Prompter defaults to a terminal prompter on Stdin/Stderr.
	Prompter prompt.Prompter
	// Interactive enables the progress spinner.
	Interactive bool

	Deps    app.Deps
	Getenv  func(string) string
	HomeDir string
	WorkDir string
}

func defaultRuntime() *cliEnv {
	home, _ := os.UserHomeDir()
	return &cliEnv{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: prompt.IsInteractive(os.Stderr),
		Deps:        app.Deps{Home: home},
		Getenv:      os.Getenv,
	}
}

func (rt *cliEnv) prompter() prompt.Prompter {
	if rt.Prompter == nil {
		rt.Prompter = prompt.NewTerminal(rt.Stdin, rt.Stderr)
	}
	return rt.Prompter
}

// deps returns the dependencies for the resolved settings. An explicit
// --config is forwarded to the cron command so scheduled runs read the
// same file.
func (rt *cliEnv) deps() app.Deps {
	d := rt.Deps
	if p := GlobalConfig.Resolved.ConfigPath; p != "" && GlobalConfig.ConfigStr != "" {
		d.ScheduleOptions = append([]schedule.Option{schedule.WithArgs("--config", p)}, d.ScheduleOptions...)
	}
	return d
}

func (rt *cliEnv) getenv(key string) string {
	if rt.Getenv == nil {
		return ""
	}
	return rt.Getenv(key)
}

// NewRootCommand creates the root command
func NewRootCommand(rt *cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:           "vwbackup",
		Short:         "Scheduled encrypted exports of Vaultwarden vaults",
		SilenceUsage:  true,
		SilenceErrors: true,
		// any positional argument reaching the root is an unknown command
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New(errors.CodeUsage, "unknown command \""+args[0]+"\"", map[string]any{"command": args[0]})
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New(errors.CodeUsage, "missing command", nil)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.HasParent() {
				return nil
			}
			// CLI > ENV > Config
			formatSet := cmd.Flags().Changed("format")
			configSet := cmd.Flags().Changed("config")
			if configSet && GlobalConfig.ConfigStr == "" {
				return errors.New(errors.CodeCfgInvalid, "config path is empty", nil)
			}

			r, xe := config.Resolve(config.Options{
				ConfigPath:   GlobalConfig.ConfigStr,
				CLIFormat:    GlobalConfig.FormatStr,
				CLIFormatSet: formatSet,
				EnvFormat:    rt.getenv("VWBACKUP_FORMAT"),
				EnvBWBinary:  rt.getenv("VWBACKUP_BW_BIN"),
				HomeDir:      rt.HomeDir,
				WorkDir:      rt.WorkDir,
			})
			if xe != nil {
				return xe
			}
			GlobalConfig.Resolved = r
			GlobalConfig.FormatStr = r.Format
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Wrap(errors.CodeUsage, err.Error(), nil, err)
	})

	root.PersistentFlags().StringVar(&GlobalConfig.ConfigStr, "config", "", "Config file path (YAML); default: ./vwbackup.yaml or $HOME/.config/vwbackup/vwbackup.yaml")
	root.PersistentFlags().StringVarP(&GlobalConfig.FormatStr, "format", "f", "auto", "Output format: "+output.Usage())

	return root
}
