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

// oomExitCode is what docker reports when the kernel kills the container
// for exceeding its memory limit.
const oomExitCode = 137

// DockerExecutor runs code inside a disposable container with the network
// disabled and a hard memory limit. The workspace directory is bind-mounted
// at /workspace so artifacts land on the host for collection.
type DockerExecutor struct {
	cfg    config.ExecutionConfig
	logger *zap.Logger
}

// NewDockerExecutor creates a container-backed executor. It fails fast when
// the docker binary is not on PATH.
func NewDockerExecutor(cfg config.ExecutionConfig, logger *zap.Logger) (*DockerExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("docker not available: %w", err)
	}
	return &DockerExecutor{cfg: cfg, logger: logger}, nil
}

// Capabilities reports what a container run enforces.
func (e *DockerExecutor) Capabilities() Capabilities {
	return Capabilities{
		Name:                     "docker",
		SupportsMemoryLimit:      true,
		SupportsNetworkIsolation: true,
	}
}

// Execute runs the request in a fresh container.
func (e *DockerExecutor) Execute(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, errors.New("empty code")
	}

	ws, err := newWorkspace(e.cfg.WorkspaceRoot, req)
	if err != nil {
		return sandboxFailure(err), nil
	}
	defer ws.cleanup(e.logger)

	if e.cfg.InstallDependencies {
		e.installDependencies(ctx, ws, req.Code)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.GetTimeout()
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"run", "--rm",
		"--network", "none",
		"--memory", fmt.Sprintf("%d", e.cfg.MaxMemoryBytes),
		"-v", ws.dir + ":/workspace",
		"-w", "/workspace",
		"--env", "PYTHONPATH=/workspace/" + depsDir,
		e.cfg.DockerImage,
		e.cfg.Interpreter, scriptName,
	}
	e.logger.Debug("starting container",
		zap.String("image", e.cfg.DockerImage),
		zap.Duration("timeout", timeout))

	cmd := exec.CommandContext(execCtx, "docker", args...)
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
		e.logger.Warn("container timed out", zap.Duration("timeout", timeout))
	case runErr == nil:
		outcome.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return sandboxFailure(fmt.Errorf("run container: %w", runErr)), nil
		}
		outcome.ExitCode = exitErr.ExitCode()
		if outcome.ExitCode == oomExitCode {
			outcome.Status = StatusResourceLimit
			e.logger.Warn("container killed for exceeding memory limit",
				zap.Int64("limit_bytes", e.cfg.MaxMemoryBytes))
		} else if dockerInfraFailure(outcome.ExitCode, outcome.Stderr) {
			return sandboxFailure(fmt.Errorf("docker: %s", firstLine(outcome.Stderr))), nil
		} else {
			outcome.Status = StatusNonZeroExit
		}
	}

	outcome.Artifacts = ws.collectArtifacts(e.cfg.MaxArtifactBytes, e.cfg.MaxTotalArtifactBytes, e.logger)
	return outcome, nil
}

// installDependencies pip-installs the third-party packages the code
// imports into the workspace deps directory. This is the only step with
// network access; a failed install is logged and the run proceeds, so the
// model sees the resulting ImportError and can adjust.
func (e *DockerExecutor) installDependencies(ctx context.Context, ws *workspace, code string) {
	pkgs := extractImports(code)
	if len(pkgs) == 0 {
		return
	}

	installCtx, cancel := context.WithTimeout(ctx, e.cfg.GetInstallTimeout())
	defer cancel()

	args := []string{
		"run", "--rm",
		"--memory", fmt.Sprintf("%d", e.cfg.MaxMemoryBytes),
		"-v", ws.dir + ":/workspace",
		"-w", "/workspace",
		e.cfg.DockerImage,
		"pip", "install", "--no-cache-dir", "--target", depsDir,
	}
	args = append(args, pkgs...)

	e.logger.Info("installing packages", zap.Strings("packages", pkgs))
	cmd := exec.CommandContext(installCtx, "docker", args...)
	cmd.WaitDelay = time.Second
	if out, err := cmd.CombinedOutput(); err != nil {
		e.logger.Warn("package install failed",
			zap.Strings("packages", pkgs),
			zap.String("output", firstLine(string(out))),
			zap.Error(err))
	}
}

// dockerInfraFailure distinguishes the docker CLI failing to start a
// container from the contained code exiting non-zero. Docker reserves 125
// for its own errors and 126/127 for unrunnable commands.
func dockerInfraFailure(exitCode int, stderr string) bool {
	switch exitCode {
	case 125, 126, 127:
		return strings.Contains(stderr, "docker:") ||
			strings.Contains(stderr, "Error response from daemon")
	}
	return false
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}
