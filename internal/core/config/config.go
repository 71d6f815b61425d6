// Package config defines and loads the service configuration.
package config

import (
	"time"

	"github.com/vietddude/regfetch/internal/core/retry"
	redisclient "github.com/vietddude/regfetch/internal/infra/redis"
	"github.com/vietddude/regfetch/internal/infra/storage/postgres"
	"github.com/vietddude/regfetch/internal/infra/upstream/ceidg"
	"github.com/vietddude/regfetch/internal/infra/upstream/courtreg"
	"github.com/vietddude/regfetch/internal/infra/upstream/statoffice"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Lookup   LookupConfig       `yaml:"lookup"`
	Sources  SourcesConfig      `yaml:"sources"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LookupConfig holds end-to-end lookup settings.
type LookupConfig struct {
	Deadline time.Duration `yaml:"deadline"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SourcesConfig holds settings for the three upstream sources.
type SourcesConfig struct {
	StatOffice StatOfficeConfig `yaml:"stat_office"`
	CourtReg   CourtRegConfig   `yaml:"court_registry"`
	EntrepReg  EntrepRegConfig  `yaml:"entrepreneur_registry"`
}

// StatOfficeConfig holds stat-office gateway, pacing and retry settings.
type StatOfficeConfig struct {
	statoffice.Config `yaml:",inline"`
	Retry             retry.Config  `yaml:"retry"`
	RatePerSecond     float64       `yaml:"rate_per_second"`
	RefreshBuffer     time.Duration `yaml:"refresh_buffer"`
}

// CourtRegConfig holds court registry and retry settings.
type CourtRegConfig struct {
	courtreg.Config `yaml:",inline"`
	Retry           retry.Config `yaml:"retry"`
}

// EntrepRegConfig holds entrepreneur registry and retry settings.
type EntrepRegConfig struct {
	ceidg.Config `yaml:",inline"`
	Retry        retry.Config `yaml:"retry"`
}
