// Package bw wraps the Bitwarden CLI (bw) used to log in to a Vaultwarden
// server and produce encrypted exports.
//
// Passwords are handed to bw through files (--passwordfile) and the session
// token through BW_SESSION, so neither appears in the process list. The
// export password is the exception: bw export only accepts it as an argument.
package bw

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/zx06/vwbackup/internal/config"
	"github.com/zx06/vwbackup/internal/errors"
)

// ExportFormat is the only format this tool produces.
const ExportFormat = "encrypted_json"

// Client is the subset of bw used by a backup attempt.
type Client interface {
	Configure(ctx context.Context, serverURL string) error
	Login(ctx context.Context, email, passwordFile string) (string, error)
	Unlock(ctx context.Context, passwordFile, session string) (string, error)
	Export(ctx context.Context, session, exportPasswordFile string, w io.Writer) error
	Logout(ctx context.Context, session string) error
}

// CLI runs the bw binary at an explicit path with an explicit environment.
type CLI struct {
	Binary string
	// Env is the complete child environment; nothing is inherited.
	Env []string
	// Timeout bounds each invocation; zero means no limit.
	Timeout time.Duration
}

var _ Client = (*CLI)(nil)

func (c *CLI) Configure(ctx context.Context, serverURL string) error {
	_, err := c.run(ctx, nil, nil, "config", "server", serverURL)
	if err != nil {
		return wrapRun(errors.CodeInternal, "bw config server failed", map[string]any{"server_url": serverURL}, err)
	}
	return nil
}

func (c *CLI) Login(ctx context.Context, email, passwordFile string) (string, error) {
	var out bytes.Buffer
	if _, err := c.run(ctx, nil, &out, "login", email, "--passwordfile", passwordFile, "--raw"); err != nil {
		return "", wrapRun(errors.CodeLoginFailed, "bw login failed", map[string]any{"account": email}, err)
	}
	token := strings.TrimSpace(out.String())
	if token == "" {
		return "", errors.New(errors.CodeLoginFailed, "bw login returned no session", map[string]any{"account": email})
	}
	return token, nil
}

func (c *CLI) Unlock(ctx context.Context, passwordFile, session string) (string, error) {
	var out bytes.Buffer
	if _, err := c.run(ctx, []string{"BW_SESSION=" + session}, &out, "unlock", "--passwordfile", passwordFile, "--raw"); err != nil {
		return "", wrapRun(errors.CodeUnlockFailed, "bw unlock failed", nil, err)
	}
	token := strings.TrimSpace(out.String())
	if token == "" {
		return "", errors.New(errors.CodeUnlockFailed, "bw unlock returned no session", nil)
	}
	return token, nil
}

func (c *CLI) Export(ctx context.Context, session, exportPasswordFile string, w io.Writer) error {
	pw, err := os.ReadFile(exportPasswordFile)
	if err != nil {
		return errors.Wrap(errors.CodeExportFailed, "failed to read export password file", nil, err)
	}
	defer clear(pw)
	args := []string{"export", "--format", ExportFormat, "--password", strings.TrimRight(string(pw), "\r\n"), "--raw"}
	if _, err := c.run(ctx, []string{"BW_SESSION=" + session}, w, args...); err != nil {
		return wrapRun(errors.CodeExportFailed, "bw export failed", nil, err)
	}
	return nil
}

func (c *CLI) Logout(ctx context.Context, session string) error {
	_, err := c.run(ctx, []string{"BW_SESSION=" + session}, nil, "logout")
	return err
}

// run executes bw; stderr is captured and attached to the returned error.
func (c *CLI) run(ctx context.Context, extraEnv []string, stdout io.Writer, args ...string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	// a bare name would be looked up in the inherited PATH, not the pinned one
	if !filepath.IsAbs(c.Binary) {
		return "", errors.New(errors.CodeCfgInvalid, "bw executable not found in search_path; set bw_binary to an absolute path",
			map[string]any{"binary": c.Binary, "search_path": config.PathFromEnv(c.Env)})
	}
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	env := make([]string, 0, len(c.Env)+len(extraEnv)+1)
	env = append(env, c.Env...)
	env = append(env, "BW_NOINTERACTION=true")
	cmd.Env = append(env, extraEnv...)
	if stdout == nil {
		stdout = io.Discard
	}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	// bw may leave node children holding the pipes after a kill
	cmd.WaitDelay = 5 * time.Second
	err := cmd.Run()
	msg := strings.TrimSpace(stderr.String())
	if err != nil {
		return msg, &commandError{op: args[0], stderr: msg, err: err}
	}
	return msg, nil
}

// wrapRun attaches code to a failed bw invocation; errors raised before
// bw started already carry their own code.
func wrapRun(code errors.Code, msg string, details map[string]any, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.Wrap(code, msg, details, err)
}

type commandError struct {
	op     string
	stderr string
	err    error
}

func (e *commandError) Error() string {
	if e.stderr == "" {
		return "bw " + e.op + ": " + e.err.Error()
	}
	return "bw " + e.op + ": " + e.err.Error() + ": " + e.stderr
}

func (e *commandError) Unwrap() error { return e.err }
