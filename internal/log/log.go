package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// New 返回写入到 w 的 slog.Logger（默认 level=INFO）。
// 注意：stdout=数据，日志应始终写 stderr 或日志文件（由调用方传入）。
func New(w io.Writer) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h)
}

// OpenAppend 以追加模式打开日志文件（不存在则创建，0600）。
// 多次 cron 触发共享同一个文件，O_APPEND 保证每次写入都落在文件末尾。
func OpenAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// Tee 返回同时写入 stderr 与日志文件的 logger；file 为 nil 时只写 stderr。
func Tee(stderr io.Writer, file io.Writer) *slog.Logger {
	if file == nil {
		return New(stderr)
	}
	return New(io.MultiWriter(stderr, file))
}

// Discard 返回丢弃所有输出的 logger，供测试与静默路径使用。
func Discard() *slog.Logger {
	return New(io.Discard)
}
