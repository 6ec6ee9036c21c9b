// Package backup runs encrypted exports for registered accounts.
//
// Each account goes through a fixed sequence of states (see State). The
// transient secret files of an attempt live in a private directory that is
// removed when the attempt returns, whichever state it ended in. Accounts
// are processed one after another; a failed account never stops the batch.
package backup

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/zx06/vwbackup/internal/bw"
	"github.com/zx06/vwbackup/internal/errors"
	vwlog "github.com/zx06/vwbackup/internal/log"
	"github.com/zx06/vwbackup/internal/secret"
)

// AllAccounts selects every registered account.
const AllAccounts = "all"

type AccountLister interface {
	List() ([]string, error)
}

type CredentialSource interface {
	Credentials(id string) (secret.Credentials, error)
}

// Observer is notified around every attempt. Both methods run on the
// executor's goroutine.
type Observer interface {
	OnStart(account string)
	OnFinish(r Result)
}

type Executor struct {
	Accounts  AccountLister
	Secrets   CredentialSource
	Client    bw.Client
	ExportDir string
	TempDir   string
	Prefix    string
	Logger    *slog.Logger
	Observer  Observer
	Now       func() time.Time
}

// Result is the outcome of one account's attempt.
type Result struct {
	Account    string `json:"account" yaml:"account"`
	State      State  `json:"state" yaml:"state"`
	Artifact   string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	err        error
}

func (r Result) OK() bool   { return r.State == StateSuccess }
func (r Result) Err() error { return r.err }

// Report is the outcome of one Run.
type Report struct {
	RunID   string    `json:"run_id" yaml:"run_id"`
	Started time.Time `json:"started" yaml:"started"`
	Results []Result  `json:"results" yaml:"results"`
}

func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// ToTableData renders one row per account for table and csv output.
func (r Report) ToTableData() ([]string, []map[string]any, bool) {
	cols := []string{"account", "state", "artifact", "duration_ms", "error"}
	rows := make([]map[string]any, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, map[string]any{
			"account":     res.Account,
			"state":       string(res.State),
			"artifact":    res.Artifact,
			"duration_ms": res.DurationMS,
			"error":       res.Error,
		})
	}
	return cols, rows, true
}

// Run backs up target, which is one identifier or AllAccounts (an empty
// target also means all). The returned error is non-nil only when the
// account list cannot be read; per-account failures are in the Report.
func (e *Executor) Run(ctx context.Context, target string) (Report, error) {
	log := e.logger()
	report := Report{RunID: uuid.NewString(), Started: e.now()}

	ids := []string{target}
	if target == "" || target == AllAccounts {
		var err error
		ids, err = e.Accounts.List()
		if err != nil {
			return report, err
		}
	}

	log.Info("backup run started", "run_id", report.RunID, "target", displayTarget(target), "accounts", len(ids))
	for _, id := range ids {
		report.Results = append(report.Results, e.backupOne(ctx, id))
	}
	log.Info("backup run finished", "run_id", report.RunID,
		"succeeded", len(report.Results)-report.Failed(), "failed", report.Failed())
	return report, nil
}

// attempt carries the state of one account's backup.
type attempt struct {
	account  string
	state    State
	creds    secret.Credentials
	ws       *workspace
	session  string
	unlock   string
	artifact string
	err      error
}

func (e *Executor) backupOne(ctx context.Context, id string) Result {
	log := e.logger().With("account", id)
	start := time.Now()
	if e.Observer != nil {
		e.Observer.OnStart(id)
	}

	a := &attempt{account: id, state: StateFetchCredentials}
	e.drive(ctx, log, a)

	res := Result{
		Account:    id,
		State:      a.state,
		Artifact:   a.artifact,
		DurationMS: time.Since(start).Milliseconds(),
		err:        a.err,
	}
	if a.err != nil {
		res.Error = a.err.Error()
		log.Error("backup failed", "state", string(a.state), "error", a.err)
	} else {
		log.Info("backup succeeded", "artifact", a.artifact)
	}
	if e.Observer != nil {
		e.Observer.OnFinish(res)
	}
	return res
}

// drive steps a until it reaches a terminal state. The deferred calls run
// on every exit path, panics included.
func (e *Executor) drive(ctx context.Context, log *slog.Logger, a *attempt) {
	defer func() {
		if a.ws == nil {
			return
		}
		if err := a.ws.release(); err != nil {
			log.Error("failed to remove transient secret files", "dir", a.ws.dir, "error", err)
		}
	}()
	defer func() {
		// a session left open by a failed unlock or export would make the
		// next account's login fail
		if a.session != "" && a.state != StateSuccess {
			e.logout(ctx, log, a)
		}
	}()

	for !a.state.Terminal() {
		a.state = e.step(ctx, log, a)
	}
}

func (e *Executor) step(ctx context.Context, log *slog.Logger, a *attempt) State {
	switch a.state {
	case StateFetchCredentials:
		c, err := e.Secrets.Credentials(a.account)
		if err != nil {
			a.err = err
			return StateCredentialError
		}
		a.creds = c
		return StateConfigure

	case StateConfigure:
		// best-effort: a wrong server shows up as a login failure
		if err := e.Client.Configure(ctx, a.creds.ServerURL); err != nil {
			log.Warn("failed to set server url", "server_url", a.creds.ServerURL, "error", err)
		}
		return StateMaterialize

	case StateMaterialize:
		ws, err := newWorkspace(e.TempDir)
		if err != nil {
			a.err = errors.Wrap(errors.CodeInternal, "failed to create transient secret directory", map[string]any{"temp_dir": e.TempDir}, err)
			return StateMaterializeError
		}
		a.ws = ws
		if err := ws.write(ws.passwordFile, a.creds.Password); err != nil {
			a.err = errors.Wrap(errors.CodeInternal, "failed to write transient secret file", nil, err)
			return StateMaterializeError
		}
		if err := ws.write(ws.exportPasswordFile, a.creds.ExportPassword); err != nil {
			a.err = errors.Wrap(errors.CodeInternal, "failed to write transient secret file", nil, err)
			return StateMaterializeError
		}
		return StateLogin

	case StateLogin:
		session, err := e.Client.Login(ctx, a.creds.Email, a.ws.passwordFile)
		if err != nil {
			a.err = err
			return StateLoginError
		}
		a.session = session
		if err := a.ws.write(a.ws.sessionFile, session); err != nil {
			log.Warn("failed to record session token", "error", err)
		}
		return StateUnlock

	case StateUnlock:
		token, err := e.Client.Unlock(ctx, a.ws.passwordFile, a.session)
		if err != nil {
			a.err = err
			return StateUnlockError
		}
		a.unlock = token
		return StateExport

	case StateExport:
		path, err := e.export(ctx, a)
		if err != nil {
			a.err = err
			return StateExportError
		}
		a.artifact = path
		return StateLogout

	case StateLogout:
		e.logout(ctx, log, a)
		return StateSuccess
	}

	a.err = errors.New(errors.CodeInternal, "unknown backup state", map[string]any{"state": string(a.state)})
	return StateExportError
}

func (e *Executor) export(ctx context.Context, a *attempt) (string, error) {
	if err := os.MkdirAll(e.ExportDir, 0o700); err != nil {
		return "", errors.Wrap(errors.CodeExportFailed, "failed to create export directory", map[string]any{"export_dir": e.ExportDir}, err)
	}
	path := ArtifactPath(e.ExportDir, e.Prefix, a.account, e.now())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", errors.Wrap(errors.CodeExportFailed, "failed to create export file", map[string]any{"path": path}, err)
	}
	err = e.Client.Export(ctx, a.unlock, a.ws.exportPasswordFile, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(errors.CodeExportFailed, "failed to write export file", map[string]any{"path": path}, cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (e *Executor) logout(ctx context.Context, log *slog.Logger, a *attempt) {
	token := a.unlock
	if token == "" {
		token = a.session
	}
	if err := e.Client.Logout(ctx, token); err != nil {
		log.Debug("logout failed", "error", err)
	}
	a.session = ""
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return vwlog.Discard()
	}
	return e.Logger
}

func (e *Executor) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func displayTarget(t string) string {
	if t == "" {
		return AllAccounts
	}
	return t
}
