package sandbox

import (
	"context"
	"time"
)

// ExitStatus classifies how an execution ended.
type ExitStatus string

const (
	StatusOK            ExitStatus = "ok"
	StatusNonZeroExit   ExitStatus = "non_zero_exit"
	StatusTimeout       ExitStatus = "timeout"
	StatusResourceLimit ExitStatus = "resource_limit_exceeded"
	StatusSandboxError  ExitStatus = "sandbox_error"
)

// Fatal reports whether this status means the sandbox infrastructure itself
// failed. All other statuses, including timeouts and crashes of the executed
// code, are ordinary outcomes the caller can feed back to the model.
func (s ExitStatus) Fatal() bool {
	return s == StatusSandboxError
}

// scriptName is the file the staged code is written to inside the workspace.
const scriptName = "main.py"

// Request describes one code run. Files are staged into the workspace by
// name before the interpreter starts.
type Request struct {
	Code    string
	Files   map[string][]byte
	Timeout time.Duration // zero means the executor default
}

// Artifact is a file the executed code produced or modified in its
// workspace.
type Artifact struct {
	Name string
	Data []byte
}

// Outcome is the full record of one execution. Stdout and Stderr are capped
// at the configured output limit; Truncated marks that the cap was hit.
type Outcome struct {
	Status    ExitStatus
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
	Duration  time.Duration
	Artifacts []Artifact
	// Error carries detail for StatusSandboxError outcomes.
	Error string
}

// Combined merges stdout and stderr for feeding back to the model.
func (o *Outcome) Combined() string {
	if o.Stderr == "" {
		return o.Stdout
	}
	if o.Stdout == "" {
		return o.Stderr
	}
	return o.Stdout + "\n" + o.Stderr
}

// Capabilities describes what a backend can enforce, so callers can decide
// whether a run was actually isolated.
type Capabilities struct {
	Name                     string
	SupportsMemoryLimit      bool
	SupportsNetworkIsolation bool
}

// Executor runs untrusted code in an isolated workspace. Execute returns an
// error only for malformed requests; infrastructure failures are reported
// as StatusSandboxError outcomes so the caller sees one uniform shape.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Outcome, error)
	Capabilities() Capabilities
}
