package sandbox

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyst/internal/config"
)

// shellConfig builds an ExecutionConfig that runs scripts with sh, so the
// tests need no Python or docker on the host.
func shellConfig(t *testing.T) config.ExecutionConfig {
	t.Helper()
	cfg := config.DefaultExecutionConfig()
	cfg.Sandbox = "direct"
	cfg.Interpreter = "sh"
	cfg.Timeout = "5s"
	cfg.WorkspaceRoot = t.TempDir()
	return cfg
}

func TestDirectExecuteSuccess(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	outcome, err := e.Execute(context.Background(), Request{Code: "echo hello"})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, outcome.Status)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, "hello\n", outcome.Stdout)
	assert.False(t, outcome.Truncated)
}

func TestDirectExecuteNonZeroExit(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	outcome, err := e.Execute(context.Background(), Request{Code: "echo broken >&2; exit 3"})
	require.NoError(t, err)

	assert.Equal(t, StatusNonZeroExit, outcome.Status)
	assert.Equal(t, 3, outcome.ExitCode)
	assert.Contains(t, outcome.Stderr, "broken")
	assert.False(t, outcome.Status.Fatal(), "a crash of the executed code is not a sandbox failure")
}

func TestDirectExecuteTimeout(t *testing.T) {
	cfg := shellConfig(t)
	e := NewDirectExecutor(cfg, nil)

	start := time.Now()
	outcome, err := e.Execute(context.Background(), Request{
		Code:    "sleep 30",
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusTimeout, outcome.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDirectExecuteStagesFiles(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	outcome, err := e.Execute(context.Background(), Request{
		Code:  "cat data.csv",
		Files: map[string][]byte{"data.csv": []byte("a,b\n1,2\n")},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, outcome.Status)
	assert.Equal(t, "a,b\n1,2\n", outcome.Stdout)
}

func TestDirectExecuteCollectsArtifacts(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	outcome, err := e.Execute(context.Background(), Request{
		Code: "printf result > out.txt",
	})
	require.NoError(t, err)

	require.Len(t, outcome.Artifacts, 1)
	assert.Equal(t, "out.txt", outcome.Artifacts[0].Name)
	assert.Equal(t, []byte("result"), outcome.Artifacts[0].Data)
}

func TestDirectExecuteIgnoresUntouchedInputs(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	outcome, err := e.Execute(context.Background(), Request{
		Code:  "printf changed > data.csv; printf fresh > new.txt",
		Files: map[string][]byte{"data.csv": []byte("original"), "ref.csv": []byte("untouched")},
	})
	require.NoError(t, err)

	names := make([]string, 0, len(outcome.Artifacts))
	for _, a := range outcome.Artifacts {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"data.csv", "new.txt"}, names,
		"modified inputs and new files are artifacts, untouched inputs are not")
}

func TestDirectExecuteArtifactSizeCaps(t *testing.T) {
	cfg := shellConfig(t)
	cfg.MaxArtifactBytes = 16
	e := NewDirectExecutor(cfg, nil)

	outcome, err := e.Execute(context.Background(), Request{
		Code: "printf small > ok.txt; head -c 64 /dev/zero > big.bin",
	})
	require.NoError(t, err)

	require.Len(t, outcome.Artifacts, 1)
	assert.Equal(t, "ok.txt", outcome.Artifacts[0].Name)
}

func TestDirectExecuteTruncatesOutput(t *testing.T) {
	cfg := shellConfig(t)
	cfg.MaxOutputBytes = 32
	e := NewDirectExecutor(cfg, nil)

	outcome, err := e.Execute(context.Background(), Request{
		Code: "i=0; while [ $i -lt 100 ]; do echo line-$i; i=$((i+1)); done",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, outcome.Status)
	assert.True(t, outcome.Truncated)
	assert.Contains(t, outcome.Stdout, "[output truncated]")
}

func TestDirectExecuteTruncatesStderrOnly(t *testing.T) {
	cfg := shellConfig(t)
	cfg.MaxOutputBytes = 32
	e := NewDirectExecutor(cfg, nil)

	outcome, err := e.Execute(context.Background(), Request{
		Code: "echo ok; i=0; while [ $i -lt 100 ]; do echo err-$i >&2; i=$((i+1)); done",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Truncated)
	assert.Contains(t, outcome.Stderr, "[output truncated]",
		"the marker belongs on the stream that was cut")
	assert.Equal(t, "ok\n", outcome.Stdout)
}

func TestDirectExecuteCleansWorkspace(t *testing.T) {
	cfg := shellConfig(t)
	e := NewDirectExecutor(cfg, nil)

	_, err := e.Execute(context.Background(), Request{Code: "printf x > leftover.txt"})
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.WorkspaceRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace must be removed after the run")
}

func TestDirectExecuteRunsAreIsolated(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	first, err := e.Execute(context.Background(), Request{Code: "printf secret > state.txt"})
	require.NoError(t, err)
	require.Equal(t, StatusOK, first.Status)

	second, err := e.Execute(context.Background(), Request{Code: "cat state.txt"})
	require.NoError(t, err)
	assert.Equal(t, StatusNonZeroExit, second.Status,
		"a later run must not see files from an earlier run")
}

func TestDirectExecuteEmptyCode(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	_, err := e.Execute(context.Background(), Request{Code: "   "})
	assert.Error(t, err)
}

func TestDirectExecuteRejectsUnsafeFileNames(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	for _, name := range []string{"../escape.txt", "/etc/passwd", "a/../../b"} {
		outcome, err := e.Execute(context.Background(), Request{
			Code:  "true",
			Files: map[string][]byte{name: []byte("x")},
		})
		require.NoError(t, err)
		assert.Equal(t, StatusSandboxError, outcome.Status, "name %q", name)
	}
}

func TestDirectExecuteMissingInterpreter(t *testing.T) {
	cfg := shellConfig(t)
	cfg.Interpreter = "definitely-not-a-real-interpreter"
	e := NewDirectExecutor(cfg, nil)

	outcome, err := e.Execute(context.Background(), Request{Code: "echo hi"})
	require.NoError(t, err)

	assert.Equal(t, StatusSandboxError, outcome.Status)
	assert.True(t, outcome.Status.Fatal())
	assert.NotEmpty(t, outcome.Error)
}

func TestDirectCapabilities(t *testing.T) {
	e := NewDirectExecutor(shellConfig(t), nil)

	caps := e.Capabilities()
	assert.Equal(t, "direct", caps.Name)
	assert.False(t, caps.SupportsMemoryLimit)
	assert.False(t, caps.SupportsNetworkIsolation)
}

func TestFactoryUnknownBackend(t *testing.T) {
	cfg := shellConfig(t)
	cfg.Sandbox = "firecracker"

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firecracker")
}

func TestOutcomeCombined(t *testing.T) {
	assert.Equal(t, "out", (&Outcome{Stdout: "out"}).Combined())
	assert.Equal(t, "err", (&Outcome{Stderr: "err"}).Combined())
	combined := (&Outcome{Stdout: "out", Stderr: "err"}).Combined()
	assert.True(t, strings.HasPrefix(combined, "out"))
	assert.Contains(t, combined, "err")
}
