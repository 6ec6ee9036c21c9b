package backup

import (
	"os"
	"path/filepath"
)

// workspace holds the transient secret files of a single attempt. Each
// attempt gets its own 0700 directory, so concurrent runs never share paths.
type workspace struct {
	dir                string
	passwordFile       string
	exportPasswordFile string
	sessionFile        string
}

func newWorkspace(tempDir string) (*workspace, error) {
	if err := os.MkdirAll(tempDir, 0o700); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(tempDir, "attempt-")
	if err != nil {
		return nil, err
	}
	// MkdirTemp already uses 0700; be explicit in case of an odd umask.
	if err := os.Chmod(dir, 0o700); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &workspace{
		dir:                dir,
		passwordFile:       filepath.Join(dir, "password"),
		exportPasswordFile: filepath.Join(dir, "export_password"),
		sessionFile:        filepath.Join(dir, "session"),
	}, nil
}

func (w *workspace) write(path, value string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// files lists every path that may hold secret material.
func (w *workspace) release() error {
	return os.RemoveAll(w.dir)
}
