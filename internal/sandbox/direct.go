package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"analyst/internal/config"
)

// DirectExecutor runs code with the host interpreter inside a throwaway
// workspace directory. It provides filesystem separation and a timeout but
// no network isolation or memory limit; use the docker backend for
// untrusted input.
type DirectExecutor struct {
	cfg    config.ExecutionConfig
	logger *zap.Logger
}

// NewDirectExecutor creates a host-interpreter executor.
func NewDirectExecutor(cfg config.ExecutionConfig, logger *zap.Logger) *DirectExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectExecutor{cfg: cfg, logger: logger}
}

// Capabilities reports what a direct run enforces.
func (e *DirectExecutor) Capabilities() Capabilities {
	return Capabilities{
		Name:                     "direct",
		SupportsMemoryLimit:      false,
		SupportsNetworkIsolation: false,
	}
}

// Execute runs the request with the configured interpreter.
func (e *DirectExecutor) Execute(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, errors.New("empty code")
	}

	ws, err := newWorkspace(e.cfg.WorkspaceRoot, req)
	if err != nil {
		return sandboxFailure(err), nil
	}
	defer ws.cleanup(e.logger)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.GetTimeout()
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, e.cfg.Interpreter, scriptName)
	cmd.Dir = ws.dir
	// Without a wait delay, orphaned children holding the output pipes can
	// stall Run long past the kill.
	cmd.WaitDelay = time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: e.cfg.MaxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: e.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	started := time.Now()
	runErr := cmd.Run()
	duration := time.Since(started)

	outcome := &Outcome{
		Status:   StatusOK,
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: duration,
	}
	if stdout.truncated {
		outcome.Truncated = true
		outcome.Stdout += truncationMarker
	}
	if stderr.truncated {
		outcome.Truncated = true
		outcome.Stderr += truncationMarker
	}

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		outcome.Status = StatusTimeout
		outcome.ExitCode = -1
		e.logger.Warn("execution timed out", zap.Duration("timeout", timeout))
	case runErr == nil:
		outcome.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			outcome.Status = StatusNonZeroExit
			outcome.ExitCode = exitErr.ExitCode()
			e.logger.Debug("execution exited non-zero", zap.Int("exit_code", outcome.ExitCode))
		} else {
			return sandboxFailure(fmt.Errorf("start interpreter: %w", runErr)), nil
		}
	}

	outcome.Artifacts = ws.collectArtifacts(e.cfg.MaxArtifactBytes, e.cfg.MaxTotalArtifactBytes, e.logger)
	return outcome, nil
}

// sandboxFailure wraps an infrastructure error as an outcome so all runs
// come back in one shape.
func sandboxFailure(err error) *Outcome {
	return &Outcome{
		Status:   StatusSandboxError,
		ExitCode: -1,
		Error:    err.Error(),
	}
}
