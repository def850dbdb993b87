package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"analyst/internal/loader"
	"analyst/internal/sandbox"
	"analyst/internal/session"
)

var (
	askFiles  []string
	askOutDir string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question from the command line",
	Long: `Runs a single analysis session. Data files are staged with --file;
artifacts the analysis produces are written to --out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVarP(&askFiles, "file", "f", nil, "data file to stage (repeatable)")
	askCmd.Flags().StringVarP(&askOutDir, "out", "o", ".", "directory for produced artifacts")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := loader.LoadAll(askFiles)
	if err != nil {
		return err
	}

	engine, closeEngine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	question := args[0]
	result, err := engine.Run(cmd.Context(), question, files)
	if err != nil {
		if result != nil && len(result.Rounds) > 0 {
			logger.Info("session ended without an answer",
				zap.String("session", result.SessionID),
				zap.Int("rounds", len(result.Rounds)))
		}
		if errors.Is(err, session.ErrRoundsExhausted) || errors.Is(err, session.ErrParseFailures) {
			return fmt.Errorf("the model did not reach an answer: %w", err)
		}
		return err
	}

	fmt.Println(result.Answer)

	if len(result.Artifacts) > 0 {
		if err := writeArtifacts(askOutDir, result.Artifacts); err != nil {
			return err
		}
	}
	return nil
}

// writeArtifacts lays produced files out under dir, keeping their relative
// paths so nested names never overwrite each other. Names escaping dir are
// skipped.
func writeArtifacts(dir string, artifacts []sandbox.Artifact) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, a := range artifacts {
		rel := filepath.Clean(a.Name)
		if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			logger.Warn("skipping artifact with unsafe name", zap.String("name", a.Name))
			continue
		}
		path := filepath.Join(dir, rel)
		if parent := filepath.Dir(path); parent != dir {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return fmt.Errorf("write artifact %s: %w", a.Name, err)
			}
		}
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return fmt.Errorf("write artifact %s: %w", a.Name, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	}
	return nil
}
