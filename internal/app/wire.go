package app

import (
	"log/slog"

	"github.com/zx06/vwbackup/internal/backup"
	"github.com/zx06/vwbackup/internal/bw"
	"github.com/zx06/vwbackup/internal/config"
	"github.com/zx06/vwbackup/internal/registry"
	"github.com/zx06/vwbackup/internal/schedule"
	"github.com/zx06/vwbackup/internal/secret"
)

// Deps 是可替换的外部依赖；零值表示使用真实实现。
type Deps struct {
	Keyring secret.KeyringAPI
	Crontab schedule.Crontab
	Client  bw.Client
	// Home 传给子进程的 HOME。
	Home string
	// ScheduleOptions 追加到 schedule.NewManager（例如 --config 透传）。
	ScheduleOptions []schedule.Option
	Logger          *slog.Logger
	Observer        backup.Observer
}

// ChildEnv 构造 bw 与 crontab 子进程的完整环境：PATH 固定为 search_path，
// 其余只透传 HOME 与可选的 BITWARDENCLI_APPDATA_DIR。
func ChildEnv(s config.Settings, home string) []string {
	env := []string{config.PathEnv(s.SearchPath)}
	if home != "" {
		env = append(env, "HOME="+home)
	}
	if s.BWAppDataDir != "" {
		env = append(env, "BITWARDENCLI_APPDATA_DIR="+s.BWAppDataDir)
	}
	return env
}

func (d Deps) crontab(s config.Settings) schedule.Crontab {
	if d.Crontab != nil {
		return d.Crontab
	}
	return schedule.ExecCrontab{Binary: s.CrontabBinary, Env: ChildEnv(s, d.Home)}
}

func (d Deps) client(s config.Settings) bw.Client {
	if d.Client != nil {
		return d.Client
	}
	return &bw.CLI{Binary: s.BWBinary, Env: ChildEnv(s, d.Home), Timeout: s.CommandTimeout}
}

// NewAccounts 按设置组装账户服务。
func NewAccounts(s config.Settings, d Deps) *Accounts {
	return &Accounts{
		Registry:  registry.New(s.RegistryFile),
		Secrets:   secret.NewStore(s.KeyringService, d.Keyring),
		Scheduler: schedule.NewManager(d.crontab(s), s.SelfBinary, d.ScheduleOptions...),
		ExportDir: s.ExportDir,
		Prefix:    s.ArtifactPrefix,
		Logger:    d.Logger,
	}
}

// NewExecutor 按设置组装备份执行器。
func NewExecutor(s config.Settings, d Deps) *backup.Executor {
	return &backup.Executor{
		Accounts:  registry.New(s.RegistryFile),
		Secrets:   secret.NewStore(s.KeyringService, d.Keyring),
		Client:    d.client(s),
		ExportDir: s.ExportDir,
		TempDir:   s.TempDir,
		Prefix:    s.ArtifactPrefix,
		Logger:    d.Logger,
		Observer:  d.Observer,
	}
}
