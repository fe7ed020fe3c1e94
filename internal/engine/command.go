// Package engine runs external conversion engines (LibreOffice, Tesseract)
// as bounded, non-interactive subprocesses.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spherical/doc-converter/internal/domain"
)

// LookPath resolves engine binaries. Tests replace it to simulate missing tools.
var LookPath = exec.LookPath

// Command is one external binary invoked with a hard timeout.
type Command struct {
	Binary  string
	Timeout time.Duration
}

// Available reports whether the binary can be resolved.
func (c *Command) Available() bool {
	_, err := LookPath(c.Binary)
	return err == nil
}

// Run executes the binary in dir and returns stdout. A missing binary yields an
// engine-unavailable error; exceeding the timeout yields ErrEngineTimeout.
func (c *Command) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin, err := LookPath(c.Binary)
	if err != nil {
		return nil, domain.EngineUnavailableError(fmt.Sprintf("%s is not installed or not on PATH", c.Binary),
			fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err))
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, domain.StrategyError(fmt.Sprintf("%s timed out after %v", c.Binary, c.Timeout), domain.ErrEngineTimeout)
		}
		return nil, ctxErr
	}
	if err != nil {
		return nil, domain.StrategyError(fmt.Sprintf("%s failed: %s", c.Binary, tail(stderr.String(), 300)), err)
	}
	return stdout.Bytes(), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
