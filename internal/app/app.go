package app

import (
	"github.com/zx06/vwbackup/internal/errors"
	"github.com/zx06/vwbackup/internal/output"
	"github.com/zx06/vwbackup/internal/spec"
)

type App struct {
	Version string
	Commit  string
	Date    string
}

func New(version, commit, date string) App {
	return App{Version: version, Commit: commit, Date: date}
}

func (a App) BuildSpec() spec.Spec {
	globalFlags := []spec.FlagSpec{
		{Name: "config", Default: "", Description: "Config file path (YAML); default: ./vwbackup.yaml or $HOME/.config/vwbackup/vwbackup.yaml"},
		{Name: "format", Shorthand: "f", Env: "VWBACKUP_FORMAT", Default: "auto", Description: "Output format: " + output.Usage()},
	}
	with := func(extra ...spec.FlagSpec) []spec.FlagSpec {
		out := make([]spec.FlagSpec, 0, len(globalFlags)+len(extra))
		out = append(out, globalFlags...)
		return append(out, extra...)
	}
	return spec.Spec{
		SchemaVersion: output.SchemaVersion,
		Commands: []spec.CommandSpec{
			{Name: "spec", Description: "Export tool spec for AI/agents", Flags: with()},
			{Name: "version", Description: "Print version information", Flags: with()},
			{
				Name:        "add",
				Args:        "[account]",
				Description: "Register an account, store its secrets in the keyring and schedule a daily backup",
				Flags: with(
					spec.FlagSpec{Name: "server-url", Description: "Vaultwarden server URL"},
					spec.FlagSpec{Name: "email", Description: "Login email (defaults to the account identifier)"},
				),
			},
			{Name: "remove", Args: "<account>", Description: "Unregister an account, delete its secrets and its schedule", Flags: with()},
			{Name: "list", Description: "List registered accounts with their schedule and secret status", Flags: with()},
			{
				Name:        "backup",
				Args:        "[account|all]",
				Description: "Export the vault of one account, or of every registered account when omitted",
				Flags:       with(),
			},
			{
				Name:        "uninstall",
				Description: "Remove every schedule, secret, the account list and all exports",
				Flags:       with(spec.FlagSpec{Name: "yes", Shorthand: "y", Default: "false", Description: "Do not ask for confirmation"}),
			},
		},
		ErrorCodes: errors.AllCodes(),
	}
}

type VersionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
}

func (a App) VersionInfo() VersionInfo {
	return VersionInfo{Version: a.Version, Commit: a.Commit, Date: a.Date}
}
