// Package config provides the configuration types of ballotbox. It is
// decoupled from CLI concerns; the layered loader lives in
// internal/cli/config.
package config

import "time"

// Config holds all configuration options.
type Config struct {
	Backend  BackendConfig `koanf:"backend"`
	UI       UIConfig      `koanf:"ui"`
	History  HistoryConfig `koanf:"history"`
	LogLevel string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	Verbose  bool          `koanf:"verbose"`
	Output   string        `koanf:"output" validate:"oneof=auto text markdown json"`
}

// BackendConfig configures the scripting backend queries are sent to.
type BackendConfig struct {
	URL      string        `koanf:"url" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	Format   string        `koanf:"format" validate:"omitempty,oneof=json xml"`
	PageSize int           `koanf:"page_size" validate:"gte=0,lte=1000"`
}

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port          int           `koanf:"port" validate:"gte=0,lte=65535"`
	Watch         bool          `koanf:"watch"`
	Dev           bool          `koanf:"dev"`
	SessionSecret string        `koanf:"session_secret" validate:"required,min=16"`
	IdleTimeout   time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	StaticDir     string        `koanf:"static_dir"`
}

// HistoryConfig configures where visits and votes are stored.
type HistoryConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}
