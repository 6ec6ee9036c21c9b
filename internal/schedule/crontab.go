package schedule

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zx06/vwbackup/internal/config"
	"github.com/zx06/vwbackup/internal/errors"
)

// Crontab 读写当前用户的整张 crontab。
type Crontab interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, content string) error
}

// ExecCrontab 通过 crontab(1) 读写。crontab - 一次性替换整张表。
type ExecCrontab struct {
	Binary string
	Env    []string
}

func (c ExecCrontab) command(ctx context.Context, args ...string) (*exec.Cmd, error) {
	// 裸名字会按继承的 PATH 查找，与子进程固定的 PATH 不一致
	if !filepath.IsAbs(c.Binary) {
		return nil, errors.New(errors.CodeScheduleFailed, "crontab executable not found in search_path; set crontab_binary to an absolute path",
			map[string]any{"binary": c.Binary, "search_path": config.PathFromEnv(c.Env)})
	}
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Env = c.Env
	return cmd, nil
}

func (c ExecCrontab) Read(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd, err := c.command(ctx, "-l")
	if err != nil {
		return "", err
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// 用户从未安装过 crontab 时 crontab -l 以非零退出
		if _, ok := err.(*exec.ExitError); ok && strings.Contains(strings.ToLower(stderr.String()), "no crontab") {
			return "", nil
		}
		return "", errors.Wrap(errors.CodeScheduleFailed, "failed to read crontab",
			map[string]any{"binary": cmd.Path, "stderr": strings.TrimSpace(stderr.String())}, err)
	}
	return stdout.String(), nil
}

func (c ExecCrontab) Write(ctx context.Context, content string) error {
	var stderr bytes.Buffer
	cmd, err := c.command(ctx, "-")
	if err != nil {
		return err
	}
	cmd.Stdin = strings.NewReader(content)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(errors.CodeScheduleFailed, "failed to install crontab",
			map[string]any{"binary": cmd.Path, "stderr": strings.TrimSpace(stderr.String())}, err)
	}
	return nil
}
