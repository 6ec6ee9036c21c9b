// Package prompt reads identifiers, secrets and confirmations from the user.
//
// Secrets are returned as byte slices so callers can zero them once stored;
// they are never echoed or logged.
package prompt

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// ErrMismatch is returned by SecretTwice when the two entries differ.
var ErrMismatch = stderrors.New("entries do not match")

type Prompter interface {
	Line(label string) (string, error)
	Secret(label string) ([]byte, error)
	Confirm(label string) (bool, error)
}

// Terminal prompts on Out and reads from In. When In is a terminal, secrets
// are read without echo; otherwise a plain line is read, which lets scripts
// pipe answers in.
type Terminal struct {
	in  io.Reader
	out io.Writer
	r   *bufio.Reader
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, r: bufio.NewReader(in)}
}

var labelColor = color.New(color.FgCyan, color.Bold)

func (t *Terminal) label(s string) {
	_, _ = labelColor.Fprint(t.out, s)
}

func (t *Terminal) readLine() (string, error) {
	s, err := t.r.ReadString('\n')
	if err != nil && !(stderrors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (t *Terminal) Line(label string) (string, error) {
	t.label(label)
	s, err := t.readLine()
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(s), nil
}

func (t *Terminal) Secret(label string) ([]byte, error) {
	t.label(label)
	if f, ok := t.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(t.out) // newline after hidden input
		if err != nil {
			return nil, fmt.Errorf("failed to read secret: %w", err)
		}
		return b, nil
	}
	s, err := t.readLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	return []byte(s), nil
}

func (t *Terminal) Confirm(label string) (bool, error) {
	t.label(label + " [y/N]: ")
	s, err := t.readLine()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes", nil
}

// SecretTwice asks for a secret and its confirmation. Both buffers are
// zeroed except the returned one.
func SecretTwice(p Prompter, label, confirmLabel string) ([]byte, error) {
	first, err := p.Secret(label)
	if err != nil {
		return nil, err
	}
	second, err := p.Secret(confirmLabel)
	if err != nil {
		Zero(first)
		return nil, err
	}
	defer Zero(second)
	if !bytes.Equal(first, second) {
		Zero(first)
		return nil, ErrMismatch
	}
	return first, nil
}

// Zero overwrites b.
func Zero(b []byte) {
	clear(b)
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
