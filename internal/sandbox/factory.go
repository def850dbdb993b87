package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"analyst/internal/config"
)

// New builds the executor named by cfg.Sandbox.
func New(cfg config.ExecutionConfig, logger *zap.Logger) (Executor, error) {
	switch cfg.Sandbox {
	case "docker":
		return NewDockerExecutor(cfg, logger)
	case "direct":
		return NewDirectExecutor(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", cfg.Sandbox)
	}
}
