// Package vcs probes git state with bounded, read-only subprocess calls.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// waitDelay bounds how long Wait keeps draining pipes after the process
// group has been killed.
const waitDelay = 500 * time.Millisecond

// Runner runs a single version control command. Implementations never
// return a bare error: all failures are encoded in the Result.
type Runner interface {
	Run(ctx context.Context, root string, args []string, timeout time.Duration) Result
}

// Result is the outcome of one command.
type Result struct {
	Args     []string
	Output   string
	Stderr   string
	ExitCode int
	Timeout  time.Duration
	Elapsed  time.Duration
	Err      error // nil on success, wraps types.ErrVCSTimeout or types.ErrVCSFailed
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Text returns the command output on success and a failure marker otherwise.
func (r Result) Text() string {
	if r.OK() {
		return r.Output
	}
	return r.Marker()
}

// Marker renders the failure as a distinguishable text marker.
func (r Result) Marker() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, types.ErrVCSTimeout):
		return fmt.Sprintf("[git timeout] cmd=%q timeout_s=%g", r.Args, r.Timeout.Seconds())
	case r.ExitCode > 0:
		return fmt.Sprintf("[git error] rc=%d stdout=%q stderr=%q", r.ExitCode, strings.TrimSpace(r.Output), strings.TrimSpace(r.Stderr))
	default:
		return fmt.Sprintf("[git error] %v", r.Err)
	}
}

// ExecRunner runs commands as subprocesses. Each child is placed in its own
// process group so that a timeout or cancellation kills everything it spawned.
type ExecRunner struct {
	binary string
	logger *slog.Logger
}

// NewExecRunner creates a runner for the given binary (usually "git").
func NewExecRunner(binary string, logger *slog.Logger) *ExecRunner {
	if binary == "" {
		binary = "git"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{binary: binary, logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, root string, args []string, timeout time.Duration) Result {
	res := Result{Args: append([]string{r.binary}, args...), Timeout: timeout}
	start := time.Now()

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, r.binary, args...)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_OPTIONAL_LOCKS=0")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	err := cmd.Run()
	res.Elapsed = time.Since(start)
	res.Output = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case err == nil:
		r.logger.Debug("vcs command ok", "args", args, "elapsed", res.Elapsed, "out_len", len(res.Output))
		return res
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Err = fmt.Errorf("%w after %s: %v", types.ErrVCSTimeout, timeout, args)
		r.logger.Warn("vcs command timed out", "args", args, "root", root, "timeout", timeout)
		return res
	case ctx.Err() != nil:
		res.Err = fmt.Errorf("%w: %v", types.ErrVCSFailed, ctx.Err())
		r.logger.Debug("vcs command cancelled", "args", args, "error", ctx.Err())
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	res.Err = fmt.Errorf("%w: %v", types.ErrVCSFailed, err)
	r.logger.Debug("vcs command failed", "args", args, "rc", res.ExitCode, "elapsed", res.Elapsed, "error", err)
	return res
}
