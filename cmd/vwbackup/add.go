package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/zx06/vwbackup/internal/app"
	"github.com/zx06/vwbackup/internal/errors"
	"github.com/zx06/vwbackup/internal/output"
	"github.com/zx06/vwbackup/internal/prompt"
	"github.com/zx06/vwbackup/internal/secret"
)

// AddFlags holds the flags for the add command
type AddFlags struct {
	ServerURL string
	Email     string
}

// NewAddCommand creates the add command
func NewAddCommand(rt *cliEnv, w *output.Writer) *cobra.Command {
	flags := &AddFlags{}

	cmd := &cobra.Command{
		Use:   "add [account]",
		Short: "Register an account and schedule its daily backup",
		Long: "Register an account, store its secrets in the keyring and schedule a daily backup.\n" +
			"Missing values are prompted for; passwords are always prompted with hidden input.\n" +
			"Adding an existing account replaces its secrets and its schedule.",
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, args, flags, rt, w)
		},
	}

	cmd.Flags().StringVar(&flags.ServerURL, "server-url", "", "Vaultwarden server URL")
	cmd.Flags().StringVar(&flags.Email, "email", "", "Login email (default: the account identifier)")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string, flags *AddFlags, rt *cliEnv, w *output.Writer) error {
	format, err := parseOutputFormat(GlobalConfig.FormatStr)
	if err != nil {
		return err
	}
	p := rt.prompter()

	raw := ""
	if len(args) == 1 {
		raw = args[0]
	} else if raw, err = p.Line("Account (email): "); err != nil {
		return promptErr(err, "account")
	}
	id, err := accountArg(raw)
	if err != nil {
		return err
	}

	serverURL := strings.TrimSpace(flags.ServerURL)
	if serverURL == "" {
		if serverURL, err = p.Line("Server URL: "); err != nil {
			return promptErr(err, "server URL")
		}
	}
	if serverURL == "" {
		return errors.New(errors.CodeAccountInvalid, "server URL is required", map[string]any{"account": id})
	}

	email := strings.TrimSpace(flags.Email)
	if email == "" {
		email = id
	}

	password, err := p.Secret("Vault password: ")
	if err != nil {
		return promptErr(err, "vault password")
	}
	defer prompt.Zero(password)
	if len(password) == 0 {
		return errors.New(errors.CodeAccountInvalid, "vault password is required", map[string]any{"account": id})
	}

	exportPassword, err := prompt.SecretTwice(p, "Export password: ", "Confirm export password: ")
	if err != nil {
		return promptErr(err, "export password")
	}
	defer prompt.Zero(exportPassword)
	if len(exportPassword) == 0 {
		return errors.New(errors.CodeAccountInvalid, "export password is required", map[string]any{"account": id})
	}

	accounts := app.NewAccounts(GlobalConfig.Resolved.Settings, rt.deps())
	res, err := accounts.Add(cmd.Context(), id, secret.Credentials{
		Email:          email,
		Password:       string(password),
		ExportPassword: string(exportPassword),
		ServerURL:      serverURL,
	})
	if err != nil {
		return err
	}
	return w.WriteOK(format, res)
}
