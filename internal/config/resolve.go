package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zx06/vwbackup/internal/errors"
)

const (
	DefaultArtifactPrefix = "vaultwarden-backup"
	DefaultKeyringService = "vwbackup"
)

// DefaultSearchPath 是 cron 环境下子进程使用的 PATH：系统目录 + bw 常见安装位置。
func DefaultSearchPath(homeDir string) []string {
	p := []string{
		"/usr/local/sbin",
		"/usr/local/bin",
		"/usr/sbin",
		"/usr/bin",
		"/sbin",
		"/bin",
		"/snap/bin",
	}
	if homeDir != "" {
		p = append(p, filepath.Join(homeDir, ".npm-global", "bin"), filepath.Join(homeDir, ".local", "bin"))
	}
	return p
}

// Resolve 合并 config/env/cli 与默认值：CLI > ENV > Config > 默认值。
func Resolve(opts Options) (Resolved, *errors.XError) {
	f, cfgPath, xe := LoadConfig(opts)
	if xe != nil {
		return Resolved{}, xe
	}
	workDir := fillDirs(&opts)
	base := workDir
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}

	// format：--format > VWBACKUP_FORMAT > config.format > auto
	format := "auto"
	if f.Format != "" {
		format = f.Format
	}
	if opts.EnvFormat != "" {
		format = opts.EnvFormat
	}
	if opts.CLIFormatSet {
		format = opts.CLIFormat
	}

	s, xe := buildSettings(f, opts, base)
	if xe != nil {
		return Resolved{}, xe
	}
	return Resolved{ConfigPath: cfgPath, Format: format, Settings: s}, nil
}

// buildSettings 合并默认值；配置中的相对路径以 base（配置文件所在目录，
// 无配置文件时为工作目录）为基准转成绝对路径，cron 的工作目录与交互运行不同。
func buildSettings(f File, opts Options, base string) (Settings, *errors.XError) {
	home := opts.HomeDir
	dataDir := filepath.Join(home, ".local", "share", "vwbackup")
	abs := func(p string) string { return absPath(expandHome(p, home), base) }

	s := Settings{
		RegistryFile:   orDefault(abs(f.RegistryFile), filepath.Join(dataDir, "accounts.txt")),
		ExportDir:      orDefault(abs(f.ExportDir), filepath.Join(dataDir, "exports")),
		TempDir:        orDefault(abs(f.TempDir), filepath.Join(dataDir, "tmp")),
		LogFile:        orDefault(abs(f.LogFile), filepath.Join(dataDir, "vwbackup.log")),
		BWAppDataDir:   abs(f.BWAppDataDir),
		ArtifactPrefix: orDefault(f.ArtifactPrefix, DefaultArtifactPrefix),
		KeyringService: orDefault(f.KeyringService, DefaultKeyringService),
		SearchPath:     f.SearchPath,
	}
	if len(s.SearchPath) == 0 {
		s.SearchPath = DefaultSearchPath(home)
	}
	for i, p := range s.SearchPath {
		s.SearchPath[i] = abs(p)
	}

	if strings.ContainsAny(s.ArtifactPrefix, `/\`) {
		return Settings{}, errors.New(errors.CodeCfgInvalid, "artifact_prefix must not contain path separators", map[string]any{"artifact_prefix": s.ArtifactPrefix})
	}

	// bw：VWBACKUP_BW_BIN > config.bw_binary > 在 search_path 中查找
	bw := f.BWBinary
	if opts.EnvBWBinary != "" {
		bw = opts.EnvBWBinary
	}
	s.BWBinary = resolveBinary(expandHome(bw, home), "bw", s.SearchPath, base)
	s.CrontabBinary = resolveBinary(expandHome(f.CrontabBinary, home), "crontab", s.SearchPath, base)

	s.SelfBinary = abs(f.SelfBinary)
	if s.SelfBinary == "" {
		s.SelfBinary = opts.Executable
	}
	if s.SelfBinary == "" {
		if exe, err := os.Executable(); err == nil {
			s.SelfBinary = exe
		}
	}

	if f.CommandTimeout != "" {
		d, err := time.ParseDuration(f.CommandTimeout)
		if err != nil || d < 0 {
			return Settings{}, errors.Wrap(errors.CodeCfgInvalid, "invalid command_timeout", map[string]any{"command_timeout": f.CommandTimeout}, err)
		}
		s.CommandTimeout = d
	}
	return s, nil
}

// resolveBinary 返回可执行文件的绝对路径：空值或不含路径分隔符的名字只在 dirs 中查找，
// 其余按 base 转为绝对路径。找不到时返回 ""，由执行阶段报错。
func resolveBinary(v, name string, dirs []string, base string) string {
	if v == "" {
		v = name
	}
	if !strings.ContainsAny(v, `/\`) {
		return LookPath(v, dirs)
	}
	return absPath(v, base)
}

// LookPath 在 dirs 中查找可执行文件；找不到时返回 ""，从不回退到继承的 PATH。
func LookPath(name string, dirs []string) string {
	for _, d := range dirs {
		p := filepath.Join(d, name)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return p
		}
	}
	return ""
}

// PathEnv 把 search path 拼成 PATH=... 形式的环境变量。
func PathEnv(dirs []string) string {
	return "PATH=" + strings.Join(dirs, string(os.PathListSeparator))
}

// PathFromEnv 返回 env 中 PATH 的值，用于错误信息。
func PathFromEnv(env []string) string {
	for i := len(env) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(env[i], "PATH="); ok {
			return v
		}
	}
	return ""
}

func expandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") && home != "" {
		return filepath.Join(home, p[2:])
	}
	return p
}

func absPath(p, base string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
