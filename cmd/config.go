package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func pidFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Root, "gateway.pid")
}

func logFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.LogsDir(), "gateway.log")
}
