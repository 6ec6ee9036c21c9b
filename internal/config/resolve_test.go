package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zx06/vwbackup/internal/errors"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "vwbackup.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolve_Defaults_NoConfig(t *testing.T) {
	tmp := t.TempDir()
	r, xe := Resolve(Options{WorkDir: tmp, HomeDir: tmp, Executable: "/usr/local/bin/vwbackup"})
	if xe != nil {
		t.Fatalf("unexpected error: %v", xe)
	}
	if r.ConfigPath != "" {
		t.Fatalf("expected empty config path, got %q", r.ConfigPath)
	}
	if r.Format != "auto" {
		t.Fatalf("format=%q want auto", r.Format)
	}
	s := r.Settings
	dataDir := filepath.Join(tmp, ".local", "share", "vwbackup")
	if s.RegistryFile != filepath.Join(dataDir, "accounts.txt") {
		t.Errorf("registry=%q", s.RegistryFile)
	}
	if s.ExportDir != filepath.Join(dataDir, "exports") {
		t.Errorf("export_dir=%q", s.ExportDir)
	}
	if s.ArtifactPrefix != DefaultArtifactPrefix {
		t.Errorf("prefix=%q", s.ArtifactPrefix)
	}
	if s.KeyringService != DefaultKeyringService {
		t.Errorf("service=%q", s.KeyringService)
	}
	if s.SelfBinary != "/usr/local/bin/vwbackup" {
		t.Errorf("self=%q", s.SelfBinary)
	}
	if s.CommandTimeout != 0 {
		t.Errorf("timeout=%v want 0", s.CommandTimeout)
	}
	if len(s.SearchPath) == 0 {
		t.Error("expected default search path")
	}
}

func TestResolve_ExplicitConfigMissingIsError(t *testing.T) {
	tmp := t.TempDir()
	_, xe := Resolve(Options{WorkDir: tmp, HomeDir: tmp, ConfigPath: "missing.yaml"})
	if xe == nil || xe.Code != errors.CodeCfgNotFound {
		t.Fatalf("expected %s, got %v", errors.CodeCfgNotFound, xe)
	}
}

func TestResolve_FormatPrecedence(t *testing.T) {
	tmp := t.TempDir()
	writeConfig(t, tmp, "format: yaml\n")

	cases := []struct {
		name string
		opts Options
		want string
	}{
		{"config", Options{}, "yaml"},
		{"env over config", Options{EnvFormat: "csv"}, "csv"},
		{"cli over env", Options{EnvFormat: "csv", CLIFormat: "json", CLIFormatSet: true}, "json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.WorkDir = tmp
			tc.opts.HomeDir = tmp
			r, xe := Resolve(tc.opts)
			if xe != nil {
				t.Fatalf("unexpected error: %v", xe)
			}
			if r.Format != tc.want {
				t.Fatalf("format=%q want %q", r.Format, tc.want)
			}
		})
	}
}

func TestResolve_BWBinaryPrecedence(t *testing.T) {
	tmp := t.TempDir()
	writeConfig(t, tmp, "bw_binary: /opt/bw/bw\n")

	r, xe := Resolve(Options{WorkDir: tmp, HomeDir: tmp})
	if xe != nil {
		t.Fatal(xe)
	}
	if r.Settings.BWBinary != "/opt/bw/bw" {
		t.Fatalf("bw=%q want config value", r.Settings.BWBinary)
	}

	r, xe = Resolve(Options{WorkDir: tmp, HomeDir: tmp, EnvBWBinary: "/env/bw"})
	if xe != nil {
		t.Fatal(xe)
	}
	if r.Settings.BWBinary != "/env/bw" {
		t.Fatalf("bw=%q want env value", r.Settings.BWBinary)
	}
}

func TestResolve_BWBinaryFoundOnSearchPath(t *testing.T) {
	tmp := t.TempDir()
	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	bw := filepath.Join(binDir, "bw")
	if err := os.WriteFile(bw, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, tmp, "search_path:\n  - "+filepath.Join(tmp, "empty")+"\n  - "+binDir+"\n")

	r, xe := Resolve(Options{WorkDir: tmp, HomeDir: tmp})
	if xe != nil {
		t.Fatal(xe)
	}
	if r.Settings.BWBinary != bw {
		t.Fatalf("bw=%q want %q", r.Settings.BWBinary, bw)
	}
}

func TestResolve_ExpandsHome(t *testing.T) {
	tmp := t.TempDir()
	writeConfig(t, tmp, "export_dir: ~/backups\nsearch_path:\n  - ~/bin\n")

	r, xe := Resolve(Options{WorkDir: tmp, HomeDir: tmp})
	if xe != nil {
		t.Fatal(xe)
	}
	if r.Settings.ExportDir != filepath.Join(tmp, "backups") {
		t.Errorf("export_dir=%q", r.Settings.ExportDir)
	}
	if r.Settings.SearchPath[0] != filepath.Join(tmp, "bin") {
		t.Errorf("search_path=%v", r.Settings.SearchPath)
	}
}

func TestResolve_CommandTimeout(t *testing.T) {
	tmp := t.TempDir()
	writeConfig(t, tmp, "command_timeout: 90s\n")
	r, xe := Resolve(Options{WorkDir: tmp, HomeDir: tmp})
	if xe != nil {
		t.Fatal(xe)
	}
	if r.Settings.CommandTimeout != 90*time.Second {
		t.Fatalf("timeout=%v", r.Settings.CommandTimeout)
	}

	bad := t.TempDir()
	writeConfig(t, bad, "command_timeout: soon\n")
	if _, xe := Resolve(Options{WorkDir: bad, HomeDir: bad}); xe == nil || xe.Code != errors.CodeCfgInvalid {
		t.Fatalf("expected %s, got %v", errors.CodeCfgInvalid, xe)
	}
}

func TestResolve_RejectsPrefixWithSeparator(t *testing.T) {
	tmp := t.TempDir()
	writeConfig(t, tmp, "artifact_prefix: ../escape\n")
	_, xe := Resolve(Options{WorkDir: tmp, HomeDir: tmp})
	if xe == nil || xe.Code != errors.CodeCfgInvalid {
		t.Fatalf("expected %s, got %v", errors.CodeCfgInvalid, xe)
	}
}

func TestPathEnv(t *testing.T) {
	got := PathEnv([]string{"/usr/bin", "/opt/bw"})
	if !strings.HasPrefix(got, "PATH=/usr/bin") || !strings.HasSuffix(got, "/opt/bw") {
		t.Fatalf("PathEnv=%q", got)
	}
}

func TestLookPath_IgnoresInheritedPath(t *testing.T) {
	inherited := t.TempDir()
	if err := os.WriteFile(filepath.Join(inherited, "bw"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", inherited+string(os.PathListSeparator)+os.Getenv("PATH"))

	if got := LookPath("bw", []string{filepath.Join(t.TempDir(), "missing")}); got != "" {
		t.Fatalf("LookPath=%q, want empty when only the inherited PATH has it", got)
	}
}

func TestResolve_BareBinaryNotOnSearchPath(t *testing.T) {
	tmp := t.TempDir()
	inherited := t.TempDir()
	for _, name := range []string{"bw", "crontab"} {
		if err := os.WriteFile(filepath.Join(inherited, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", inherited+string(os.PathListSeparator)+os.Getenv("PATH"))
	writeConfig(t, tmp, "bw_binary: bw\nsearch_path:\n  - "+filepath.Join(tmp, "empty")+"\n")

	r, xe := Resolve(Options{WorkDir: tmp, HomeDir: tmp})
	if xe != nil {
		t.Fatal(xe)
	}
	if r.Settings.BWBinary != "" || r.Settings.CrontabBinary != "" {
		t.Fatalf("bw=%q crontab=%q, want both unresolved", r.Settings.BWBinary, r.Settings.CrontabBinary)
	}
}

func TestResolve_RelativePathsFollowConfigFile(t *testing.T) {
	work := t.TempDir()
	confDir := t.TempDir()
	cfg := writeConfig(t, confDir, "registry_file: data/accounts.txt\n"+
		"export_dir: exports\n"+
		"temp_dir: ./tmp\n"+
		"log_file: logs/vwbackup.log\n"+
		"bw_binary: tools/bw\n"+
		"self_binary: bin/vwbackup\n"+
		"search_path:\n  - tools\n")

	r, xe := Resolve(Options{WorkDir: work, HomeDir: work, ConfigPath: cfg})
	if xe != nil {
		t.Fatal(xe)
	}
	s := r.Settings
	cases := map[string][2]string{
		"registry_file": {s.RegistryFile, filepath.Join(confDir, "data", "accounts.txt")},
		"export_dir":    {s.ExportDir, filepath.Join(confDir, "exports")},
		"temp_dir":      {s.TempDir, filepath.Join(confDir, "tmp")},
		"log_file":      {s.LogFile, filepath.Join(confDir, "logs", "vwbackup.log")},
		"bw_binary":     {s.BWBinary, filepath.Join(confDir, "tools", "bw")},
		"self_binary":   {s.SelfBinary, filepath.Join(confDir, "bin", "vwbackup")},
		"search_path":   {s.SearchPath[0], filepath.Join(confDir, "tools")},
	}
	for key, c := range cases {
		if c[0] != c[1] {
			t.Errorf("%s=%q want %q", key, c[0], c[1])
		}
	}
}

func TestPathFromEnv(t *testing.T) {
	env := []string{"HOME=/home/a", "PATH=/usr/bin:/bin"}
	if got := PathFromEnv(env); got != "/usr/bin:/bin" {
		t.Fatalf("PathFromEnv=%q", got)
	}
	if got := PathFromEnv(nil); got != "" {
		t.Fatalf("PathFromEnv(nil)=%q", got)
	}
}
