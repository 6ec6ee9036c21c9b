package main

import (
	stderrors "errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zx06/vwbackup/internal/errors"
	"github.com/zx06/vwbackup/internal/output"
	"github.com/zx06/vwbackup/internal/prompt"
	"github.com/zx06/vwbackup/internal/registry"
)

// parseOutputFormat parses and validates the output format string
func parseOutputFormat(s string) (output.Format, error) {
	f := output.Format(s)
	if !output.IsValid(f) {
		return "", errors.New(errors.CodeCfgInvalid, "invalid output format", map[string]any{"format": s})
	}
	return resolveAuto(f), nil
}

// resolveFormatForError resolves the format for error output
func resolveFormatForError(s string) output.Format {
	f := output.Format(s)
	if !output.IsValid(f) {
		f = output.FormatAuto
	}
	return resolveAuto(f)
}

// resolveAuto resolves "auto" format to appropriate format based on TTY
func resolveAuto(f output.Format) output.Format {
	if f != output.FormatAuto {
		return f
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return output.FormatTable
	}
	return output.FormatJSON
}

// normalizeErr normalizes any error to XError
func normalizeErr(err error) *errors.XError {
	if xe, ok := errors.As(err); ok {
		return xe
	}
	// Preserve original error message
	return errors.Wrap(errors.CodeInternal, err.Error(), nil, err)
}

// usageArgs turns cobra's positional-argument errors into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return errors.Wrap(errors.CodeUsage, err.Error(), nil, err)
		}
		return nil
	}
}

// accountArg normalizes an identifier given on the command line.
func accountArg(s string) (string, error) {
	return registry.Normalize(s)
}

// promptErr maps a failed prompt to an error code: closed input aborts,
// a confirmation mismatch is invalid input.
func promptErr(err error, what string) error {
	switch {
	case stderrors.Is(err, io.EOF):
		return errors.Wrap(errors.CodeAborted, "input closed while reading "+what, nil, err)
	case stderrors.Is(err, prompt.ErrMismatch):
		return errors.Wrap(errors.CodeAccountInvalid, what+" entries do not match", nil, err)
	default:
		return errors.Wrap(errors.CodeInternal, "failed to read "+what, nil, err)
	}
}
