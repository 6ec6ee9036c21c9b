package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zx06/vwbackup/internal/backup"
	"github.com/zx06/vwbackup/internal/errors"
	vwlog "github.com/zx06/vwbackup/internal/log"
	"github.com/zx06/vwbackup/internal/registry"
	"github.com/zx06/vwbackup/internal/schedule"
	"github.com/zx06/vwbackup/internal/secret"
)

// SecretStore 是 Accounts 需要的 keyring 操作。
type SecretStore interface {
	SaveCredentials(id string, c secret.Credentials) error
	ClearAll(id string) error
	Missing(id string) ([]secret.Field, error)
}

// Scheduler 是 Accounts 需要的 crontab 操作。
type Scheduler interface {
	Schedule(ctx context.Context, id string) (schedule.Entry, error)
	Unschedule(ctx context.Context, id string) (int, error)
	UnscheduleAll(ctx context.Context) (int, error)
	List(ctx context.Context) ([]schedule.Entry, error)
}

// Accounts 协调账户列表、keyring 与 crontab，实现 add/remove/list/uninstall。
type Accounts struct {
	Registry  *registry.Registry
	Secrets   SecretStore
	Scheduler Scheduler
	ExportDir string
	Prefix    string
	Logger    *slog.Logger
	Now       func() time.Time
}

type AddResult struct {
	Account           string `json:"account" yaml:"account"`
	AlreadyRegistered bool   `json:"already_registered" yaml:"already_registered"`
	Schedule          string `json:"schedule" yaml:"schedule"`
}

// Add 保存凭据、登记账户并（重新）安装定时任务。
// 账户已存在时凭据被覆盖，列表不变，定时任务被替换为新的时间。
// 新账户在后续步骤失败时回滚已写入的凭据和列表行。
func (a *Accounts) Add(ctx context.Context, id string, c secret.Credentials) (AddResult, error) {
	if err := a.Secrets.SaveCredentials(id, c); err != nil {
		return AddResult{}, err
	}

	res := AddResult{Account: id}
	if err := a.Registry.Add(id); err != nil {
		if !stderrors.Is(err, registry.ErrExists) {
			a.rollbackAdd(id, false)
			return AddResult{}, err
		}
		res.AlreadyRegistered = true
	}

	e, err := a.Scheduler.Schedule(ctx, id)
	if err != nil {
		if !res.AlreadyRegistered {
			a.rollbackAdd(id, true)
		}
		return res, err
	}
	res.Schedule = clock(e)
	a.logger().Info("account added", "account", id, "already_registered", res.AlreadyRegistered, "schedule", e.Expr())
	return res, nil
}

// rollbackAdd 尽力撤销一次未完成的新增；失败只记录日志，调用方返回原始错误。
func (a *Accounts) rollbackAdd(id string, registered bool) {
	log := a.logger()
	if registered {
		if _, err := a.Registry.Remove(id); err != nil {
			log.Warn("rollback: remove registry line failed", "account", id, "error", err)
		}
	}
	if err := a.Secrets.ClearAll(id); err != nil {
		log.Warn("rollback: clear secrets failed", "account", id, "error", err)
	}
	log.Info("account add rolled back", "account", id)
}

type RemoveResult struct {
	Account          string `json:"account" yaml:"account"`
	WasRegistered    bool   `json:"was_registered" yaml:"was_registered"`
	SchedulesRemoved int    `json:"schedules_removed" yaml:"schedules_removed"`
}

// Remove 删除账户的列表行、四个 keyring 字段和 crontab 条目。
// 每一步都会执行；返回第一个失败。
func (a *Accounts) Remove(ctx context.Context, id string) (RemoveResult, error) {
	res := RemoveResult{Account: id}
	var first error

	removed, err := a.Registry.Remove(id)
	if err != nil {
		first = err
	}
	res.WasRegistered = removed

	if err := a.Secrets.ClearAll(id); err != nil && first == nil {
		first = err
	}

	n, err := a.Scheduler.Unschedule(ctx, id)
	if err != nil && first == nil {
		first = err
	}
	res.SchedulesRemoved = n

	if first != nil {
		return res, first
	}
	a.logger().Info("account removed", "account", id, "was_registered", removed, "schedules_removed", n)
	return res, nil
}

type AccountInfo struct {
	Account        string   `json:"account" yaml:"account"`
	Schedule       string   `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	NextRun        string   `json:"next_run,omitempty" yaml:"next_run,omitempty"`
	MissingSecrets []string `json:"missing_secrets,omitempty" yaml:"missing_secrets,omitempty"`
}

type ListResult struct {
	Accounts []AccountInfo `json:"accounts" yaml:"accounts"`
	// Orphans are tagged crontab entries whose account is not registered.
	Orphans []schedule.Entry `json:"orphan_schedules,omitempty" yaml:"orphan_schedules,omitempty"`
}

func (r ListResult) ToTableData() ([]string, []map[string]any, bool) {
	cols := []string{"account", "schedule", "next_run", "secrets"}
	rows := make([]map[string]any, 0, len(r.Accounts)+len(r.Orphans))
	for _, a := range r.Accounts {
		secrets := "complete"
		if len(a.MissingSecrets) > 0 {
			secrets = "missing: " + strings.Join(a.MissingSecrets, ",")
		}
		sched := a.Schedule
		if sched == "" {
			sched = "not scheduled"
		}
		rows = append(rows, map[string]any{"account": a.Account, "schedule": sched, "next_run": a.NextRun, "secrets": secrets})
	}
	for _, e := range r.Orphans {
		rows = append(rows, map[string]any{"account": e.Account, "schedule": clock(e), "secrets": "not registered"})
	}
	return cols, rows, true
}

// List 返回已登记账户及其定时任务与凭据状态。
func (a *Accounts) List(ctx context.Context) (ListResult, error) {
	ids, err := a.Registry.List()
	if err != nil {
		return ListResult{}, err
	}
	entries, err := a.Scheduler.List(ctx)
	if err != nil {
		return ListResult{}, err
	}
	byAccount := make(map[string]schedule.Entry, len(entries))
	for _, e := range entries {
		byAccount[e.Account] = e
	}

	now := a.now()
	res := ListResult{Accounts: make([]AccountInfo, 0, len(ids))}
	registered := make(map[string]bool, len(ids))
	for _, id := range ids {
		registered[id] = true
		info := AccountInfo{Account: id}
		if e, ok := byAccount[id]; ok {
			info.Schedule = clock(e)
			if next, err := e.Next(now); err == nil {
				info.NextRun = next.Format(time.RFC3339)
			}
		}
		missing, err := a.Secrets.Missing(id)
		if err != nil {
			return ListResult{}, err
		}
		for _, f := range missing {
			info.MissingSecrets = append(info.MissingSecrets, string(f))
		}
		res.Accounts = append(res.Accounts, info)
	}
	for _, e := range entries {
		if !registered[e.Account] {
			res.Orphans = append(res.Orphans, e)
		}
	}
	return res, nil
}

type UninstallResult struct {
	Accounts         []string `json:"accounts" yaml:"accounts"`
	SchedulesRemoved int      `json:"schedules_removed" yaml:"schedules_removed"`
	ArtifactsRemoved int      `json:"artifacts_removed" yaml:"artifacts_removed"`
}

// Uninstall 删除全部定时任务、全部账户的 keyring 字段、账户列表文件以及所有导出文件。
// 调用方负责事先取得用户确认。
func (a *Accounts) Uninstall(ctx context.Context) (UninstallResult, error) {
	ids, err := a.Registry.List()
	if err != nil {
		return UninstallResult{}, err
	}
	res := UninstallResult{Accounts: ids}

	n, err := a.Scheduler.UnscheduleAll(ctx)
	if err != nil {
		return res, err
	}
	res.SchedulesRemoved = n

	for _, id := range ids {
		if err := a.Secrets.ClearAll(id); err != nil {
			return res, err
		}
	}
	if err := a.Registry.Delete(); err != nil {
		return res, err
	}

	removed, err := backup.RemoveArtifacts(a.ExportDir, a.Prefix)
	res.ArtifactsRemoved = removed
	if err != nil {
		return res, errors.Wrap(errors.CodeInternal, "failed to delete exports", map[string]any{"export_dir": a.ExportDir}, err)
	}
	a.logger().Info("uninstalled", "accounts", len(ids), "schedules_removed", res.SchedulesRemoved, "artifacts_removed", removed)
	return res, nil
}

func clock(e schedule.Entry) string {
	if e.Minute < 0 || e.Hour < 0 {
		return e.Expr()
	}
	return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
}

func (a *Accounts) logger() *slog.Logger {
	if a.Logger == nil {
		return vwlog.Discard()
	}
	return a.Logger
}

func (a *Accounts) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
