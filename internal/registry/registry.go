// Package registry 维护已注册账户的有序列表（纯文本文件，每行一个标识符）。
//
// 所有修改都是“读取-修改-整体替换”：新内容先写入同目录临时文件再 rename，
// 读者永远不会看到写了一半的文件。跨进程并发修改仍可能丢失更新（没有文件锁）。
package registry

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/zx06/vwbackup/internal/errors"
)

// ErrExists 表示账户已在列表中；Add 返回它时文件未被修改。
var ErrExists = stderrors.New("account already exists")

// Normalize 去掉标识符首尾空白；之后所有比较都是整行精确匹配（大小写敏感）。
func Normalize(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New(errors.CodeAccountInvalid, "account identifier is empty", nil)
	}
	if strings.ContainsAny(id, "\r\n") {
		return "", errors.New(errors.CodeAccountInvalid, "account identifier must be a single line", nil)
	}
	return id, nil
}

type Registry struct {
	path string
}

func New(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) Path() string { return r.path }

// readLines 返回文件中的全部原始行（包括空行）；文件不存在时返回空。
func (r *Registry) readLines() ([]string, error) {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.CodeRegistryIO, "failed to read account list", map[string]any{"path": r.path}, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	// 不限制行长；末尾换行不产生额外的空行
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines, nil
}

func (r *Registry) writeLines(lines []string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return errors.Wrap(errors.CodeRegistryIO, "failed to create account list directory", map[string]any{"path": r.path}, err)
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	if err := atomic.WriteFile(r.path, &buf); err != nil {
		return errors.Wrap(errors.CodeRegistryIO, "failed to write account list", map[string]any{"path": r.path}, err)
	}
	return nil
}

// List 按插入顺序返回全部账户；空行被跳过。
func (r *Registry) List() ([]string, error) {
	lines, err := r.readLines()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ids = append(ids, l)
	}
	return ids, nil
}

func (r *Registry) Contains(id string) (bool, error) {
	lines, err := r.readLines()
	if err != nil {
		return false, err
	}
	for _, l := range lines {
		if l == id {
			return true, nil
		}
	}
	return false, nil
}

// Add 在末尾追加 id；已存在时返回 ErrExists，不写入重复行。
func (r *Registry) Add(id string) error {
	lines, err := r.readLines()
	if err != nil {
		return err
	}
	for _, l := range lines {
		if l == id {
			return ErrExists
		}
	}
	return r.writeLines(append(lines, id))
}

// Remove 删除所有与 id 完全相等的行，返回是否删除了内容；不存在时为 no-op。
func (r *Registry) Remove(id string) (bool, error) {
	lines, err := r.readLines()
	if err != nil {
		return false, err
	}
	kept := lines[:0:0]
	for _, l := range lines {
		if l != id {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return false, nil
	}
	return true, r.writeLines(kept)
}

// Delete 删除账户列表文件本身；文件不存在不报错。
func (r *Registry) Delete() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.CodeRegistryIO, "failed to delete account list", map[string]any{"path": r.path}, err)
	}
	return nil
}
