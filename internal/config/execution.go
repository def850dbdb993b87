package config

import "time"

// ExecutionConfig configures the sandboxed code executor.
type ExecutionConfig struct {
	// Sandbox selects the isolation backend: "docker" or "direct".
	Sandbox string `yaml:"sandbox"`

	// DockerImage is the image used for docker-sandboxed runs.
	DockerImage string `yaml:"docker_image"`

	// Interpreter runs the submitted code (argument is the script path).
	Interpreter string `yaml:"interpreter"`

	// InstallDependencies installs third-party packages the code imports
	// before running it (docker sandbox only). The install step has network
	// access; the code run never does.
	InstallDependencies bool `yaml:"install_dependencies"`

	// InstallTimeout is the wall-clock limit for the install step.
	InstallTimeout string `yaml:"install_timeout"`

	// Timeout is the wall-clock limit for one execution.
	Timeout string `yaml:"timeout"`

	// MaxOutputBytes caps captured stdout and stderr (each). Overflow is
	// truncated with a marker, never an error.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// MaxMemoryBytes limits container memory (docker sandbox only).
	MaxMemoryBytes int64 `yaml:"max_memory_bytes"`

	// MaxArtifactBytes caps a single collected artifact; larger files are
	// skipped with a note.
	MaxArtifactBytes int64 `yaml:"max_artifact_bytes"`

	// MaxTotalArtifactBytes caps the sum of all collected artifacts.
	MaxTotalArtifactBytes int64 `yaml:"max_total_artifact_bytes"`

	// WorkspaceRoot is where per-execution workspaces are created.
	// Empty means the OS temp directory.
	WorkspaceRoot string `yaml:"workspace_root"`
}

// DefaultExecutionConfig returns sensible defaults.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		Sandbox:               "docker",
		DockerImage:           "python:3.11-slim",
		Interpreter:           "python3",
		InstallDependencies:   true,
		InstallTimeout:        "60s",
		Timeout:               "30s",
		MaxOutputBytes:        256 * 1024,
		MaxMemoryBytes:        512 * 1024 * 1024,
		MaxArtifactBytes:      1024 * 1024,
		MaxTotalArtifactBytes: 8 * 1024 * 1024,
	}
}

// GetTimeout returns the execution timeout as a duration.
func (c ExecutionConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// GetInstallTimeout returns the dependency-install timeout as a duration.
func (c ExecutionConfig) GetInstallTimeout() time.Duration {
	return parseDuration(c.InstallTimeout, 60*time.Second)
}
