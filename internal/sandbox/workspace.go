package sandbox

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// workspace is a throwaway directory holding the staged script and input
// files for one run. It remembers the digest of everything it staged so
// artifact collection can tell new output from untouched input.
type workspace struct {
	dir    string
	staged map[string][32]byte
}

// newWorkspace creates a fresh directory under root (or the OS temp dir
// when root is empty) and stages the request into it.
func newWorkspace(root string, req Request) (*workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, "analyst-run-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &workspace{dir: dir, staged: make(map[string][32]byte)}
	if err := ws.stage(scriptName, []byte(req.Code)); err != nil {
		ws.cleanup(nil)
		return nil, err
	}
	for name, data := range req.Files {
		if err := ws.stage(name, data); err != nil {
			ws.cleanup(nil)
			return nil, err
		}
	}
	return ws, nil
}

// stage writes one file into the workspace. Names must stay inside the
// directory; anything traversing out is rejected.
func (ws *workspace) stage(name string, data []byte) error {
	clean := filepath.Clean(name)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("unsafe file name %q", name)
	}
	path := filepath.Join(ws.dir, clean)
	if dir := filepath.Dir(path); dir != ws.dir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	ws.staged[clean] = sha256.Sum256(data)
	return nil
}

// collectArtifacts walks the workspace after a run and returns every file
// the code created or modified. Files over perFileMax are skipped, and
// collection stops once totalMax is reached; both cases are logged, never
// fatal.
func (ws *workspace) collectArtifacts(perFileMax, totalMax int64, logger *zap.Logger) []Artifact {
	var names []string
	err := filepath.WalkDir(ws.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(ws.dir, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel == depsDir {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == scriptName {
			return nil
		}
		names = append(names, rel)
		return nil
	})
	if err != nil {
		logger.Warn("artifact walk failed", zap.Error(err))
		return nil
	}
	sort.Strings(names)

	var artifacts []Artifact
	var total int64
	for _, rel := range names {
		path := filepath.Join(ws.dir, rel)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() > perFileMax {
			logger.Warn("artifact exceeds size cap, skipped",
				zap.String("file", rel), zap.Int64("size", info.Size()))
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("artifact read failed", zap.String("file", rel), zap.Error(err))
			continue
		}
		if prev, ok := ws.staged[rel]; ok && prev == sha256.Sum256(data) {
			continue // untouched input
		}
		if total+int64(len(data)) > totalMax {
			logger.Warn("artifact total cap reached, remaining files skipped",
				zap.String("file", rel))
			break
		}
		total += int64(len(data))
		artifacts = append(artifacts, Artifact{Name: rel, Data: data})
	}
	return artifacts
}

// cleanup removes the workspace directory.
func (ws *workspace) cleanup(logger *zap.Logger) {
	if err := os.RemoveAll(ws.dir); err != nil && logger != nil {
		logger.Warn("workspace cleanup failed", zap.String("dir", ws.dir), zap.Error(err))
	}
}

// limitedWriter caps total bytes written, discarding the rest while
// reporting full writes so the producing process never sees a short write.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}

// truncationMarker is appended to capped output so the model knows it is
// looking at a prefix.
const truncationMarker = "\n... [output truncated]"
