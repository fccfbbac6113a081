// Package integration is the boundary to the outside world: it spawns
// the Task Master CLI, parses its output, probes connectivity, and
// exposes a resilient client the UI layers consume.
package integration

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/pkg/models"
)

// killGrace is how long a timed-out subprocess gets between SIGKILL
// being requested and Run returning.
const killGrace = 2 * time.Second

// CLIResult captures one Task Master CLI invocation.
type CLIResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CLIExecutor runs the Task Master binary with a hard timeout. A
// timed-out process is forcibly terminated, never abandoned.
type CLIExecutor interface {
	// Run invokes the binary with the given arguments. A non-zero exit
	// code or a timeout is returned as an error alongside the captured
	// output.
	Run(ctx context.Context, args ...string) (*CLIResult, error)
	// Binary returns the configured binary name, for diagnostics.
	Binary() string
}

// cliExecutor implements CLIExecutor.
type cliExecutor struct {
	binary  string
	workDir string
	timeout time.Duration
}

// NewCLIExecutor creates a CLIExecutor from configuration. An empty
// binary defaults to "task-master" and a non-positive timeout to 30s.
func NewCLIExecutor(cfg models.CLIConfig) CLIExecutor {
	if cfg.Binary == "" {
		cfg.Binary = "task-master"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &cliExecutor{
		binary:  cfg.Binary,
		workDir: cfg.WorkDir,
		timeout: cfg.Timeout,
	}
}

func (e *cliExecutor) Binary() string { return e.binary }

func (e *cliExecutor) Run(ctx context.Context, args ...string) (*CLIResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binary, args...)
	cmd.Dir = e.workDir
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &CLIResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("%s %s timed out after %s", e.binary, strings.Join(args, " "), e.timeout)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			detail := strings.TrimSpace(result.Stderr)
			if detail == "" {
				detail = strings.TrimSpace(result.Stdout)
			}
			return result, fmt.Errorf("%s exited with code %d: %s", e.binary, result.ExitCode, detail)
		}
		// The process never started, e.g. binary not on PATH.
		return result, fmt.Errorf("starting %s: %w", e.binary, err)
	}

	return result, nil
}
