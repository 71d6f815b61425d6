package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/regfetch/internal/core/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Lookup.Deadline == 0 {
		cfg.Lookup.Deadline = 15 * time.Second
	}
	if cfg.Sources.StatOffice.RatePerSecond == 0 {
		cfg.Sources.StatOffice.RatePerSecond = 2
	}
	if cfg.Sources.StatOffice.RefreshBuffer == 0 {
		cfg.Sources.StatOffice.RefreshBuffer = 5 * time.Minute
	}
	applyRetryDefaults(&cfg.Sources.StatOffice.Retry)
	applyRetryDefaults(&cfg.Sources.CourtReg.Retry)
	applyRetryDefaults(&cfg.Sources.EntrepReg.Retry)

	return &cfg, nil
}

func applyRetryDefaults(rc *retry.Config) {
	if rc.MaxRetries == 0 {
		rc.MaxRetries = retry.DefaultConfig.MaxRetries
	}
	if rc.InitialDelay == 0 {
		rc.InitialDelay = retry.DefaultConfig.InitialDelay
	}
}
