// Package probe implements the OS signal sources used by the monitor. Each
// source shells out to a read-only system query and parses its output.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single probe command.
const DefaultTimeout = 3 * time.Second

// maxRaw caps the raw output kept for diagnostics.
const maxRaw = 2048

// Runner executes a system query and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec, bounded by Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// Run executes name with args and returns stdout.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// truncate trims s for inclusion in diagnostics.
func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxRaw {
		return s
	}
	return s[:maxRaw] + "..."
}

// rawOrError returns the raw output, or the error text when the command
// failed without output.
func rawOrError(out []byte, err error) string {
	if len(bytes.TrimSpace(out)) == 0 && err != nil {
		return truncate(err.Error())
	}
	return truncate(string(out))
}
