// Package adapters runs external analyzers as subprocesses with a bounded
// timeout and normalizes what they report. An adapter that is missing,
// slow or broken degrades to no findings and a recorded status.
package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	sanitize "sentinel/internal/errors"
)

var (
	// ErrAdapterTimeout is returned when an external tool exceeds its deadline.
	ErrAdapterTimeout = errors.New("adapter timed out")

	// ErrAdapterUnavailable is returned when an external tool is not installed.
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrAdapterFailed is returned when a tool ran but produced no usable output.
	ErrAdapterFailed = errors.New("adapter failed")
)

// Adapter run statuses recorded in scan results.
const (
	StatusOK          = "ok"
	StatusDisabled    = "disabled"
	StatusTimeout     = "timeout"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Error describes a failed adapter run.
type Error struct {
	Adapter string
	Err     error
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Adapter, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Adapter, e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf maps a run error to a status token.
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrAdapterTimeout):
		return StatusTimeout
	case errors.Is(err, ErrAdapterUnavailable):
		return StatusUnavailable
	default:
		return StatusError
	}
}

// CommandRunner executes name with args and returns what it wrote to
// stdout and stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// runError classifies the outcome of a command that failed to produce
// usable output.
func runError(ctx context.Context, adapter string, err error, stderr []byte) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Adapter: adapter, Err: ErrAdapterTimeout}
	}
	if isNotFound(err) {
		return &Error{Adapter: adapter, Err: ErrAdapterUnavailable, Detail: "not installed"}
	}
	detail := string(bytes.TrimSpace(stderr))
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &Error{Adapter: adapter, Err: ErrAdapterFailed, Detail: sanitize.SanitizeString(detail)}
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// writeTemp stores src in a fresh directory and returns the file path and
// a cleanup function.
func writeTemp(name, src string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "sentinel-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("failed to write temp source: %w", err)
	}
	return path, func() { os.RemoveAll(dir) }, nil
}
