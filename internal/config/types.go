package config

import "time"

// File 表示 vwbackup.yaml 的配置结构。
// 约束：配置优先级为 CLI > ENV > Config > 默认值。
type File struct {
	Format string `yaml:"format"`

	// 文件布局
	RegistryFile string `yaml:"registry_file"`
	ExportDir    string `yaml:"export_dir"`
	TempDir      string `yaml:"temp_dir"`
	LogFile      string `yaml:"log_file"`

	// 外部程序；显式路径，不依赖继承的 PATH
	BWBinary      string   `yaml:"bw_binary"`
	BWAppDataDir  string   `yaml:"bw_appdata_dir"`
	CrontabBinary string   `yaml:"crontab_binary"`
	SelfBinary    string   `yaml:"self_binary"` // cron 条目中调用的程序
	SearchPath    []string `yaml:"search_path"` // 子进程的 PATH

	ArtifactPrefix string `yaml:"artifact_prefix"`
	KeyringService string `yaml:"keyring_service"`
	CommandTimeout string `yaml:"command_timeout"` // time.ParseDuration；空或 0 表示不限时
}

// Settings 是合并默认值后的最终设置，所有路径均为绝对路径。
type Settings struct {
	RegistryFile   string
	ExportDir      string
	TempDir        string
	LogFile        string
	BWBinary       string
	BWAppDataDir   string
	CrontabBinary  string
	SelfBinary     string
	SearchPath     []string
	ArtifactPrefix string
	KeyringService string
	CommandTimeout time.Duration
}

type Resolved struct {
	ConfigPath string
	Format     string
	Settings   Settings
}

type Options struct {
	// ConfigPath: 若非空，则只读取该文件（不存在报错）。
	ConfigPath string

	// CLI
	CLIFormat    string
	CLIFormatSet bool

	// ENV（由调用方注入，便于测试）
	EnvFormat   string
	EnvBWBinary string

	// HomeDir 用于默认路径计算（为空则自动探测）。
	HomeDir string

	// WorkDir 用于默认路径（为空则使用进程当前工作目录）。
	WorkDir string

	// Executable 为 self_binary 的默认值（为空则用 os.Executable）。
	Executable string
}
