package config

import "time"

// Default configuration values.
const (
	DefaultBackendURL    = "http://localhost:8080/api"
	DefaultTimeout       = 10 * time.Second
	DefaultFormat        = "json"
	DefaultPageSize      = 20
	DefaultPort          = 8765
	DefaultSessionSecret = "ballotbox-dev-secret-change-in-production" //nolint:gosec
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultHistoryDriver = "sqlite"
	DefaultHistoryDSN    = ".ballotbox/history.db"
	DefaultLogLevel      = "info"
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Defaults returns the default configuration as a flat key map, in the
// shape the layered loader consumes.
func Defaults() map[string]any {
	return map[string]any{
		"backend.url":       DefaultBackendURL,
		"backend.timeout":   DefaultTimeout.String(),
		"backend.format":    DefaultFormat,
		"backend.page_size": DefaultPageSize,
		"ui.port":           DefaultPort,
		"ui.watch":          false,
		"ui.dev":            false,
		"ui.session_secret": DefaultSessionSecret,
		"ui.idle_timeout":   DefaultIdleTimeout.String(),
		"history.driver":    DefaultHistoryDriver,
		"history.dsn":       DefaultHistoryDSN,
		"log_level":         DefaultLogLevel,
		"verbose":           false,
		"output":            DefaultOutput,
	}
}

// Default returns a Config holding the default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:      DefaultBackendURL,
			Timeout:  DefaultTimeout,
			Format:   DefaultFormat,
			PageSize: DefaultPageSize,
		},
		UI: UIConfig{
			Port:          DefaultPort,
			SessionSecret: DefaultSessionSecret,
			IdleTimeout:   DefaultIdleTimeout,
		},
		History: HistoryConfig{
			Driver: DefaultHistoryDriver,
			DSN:    DefaultHistoryDSN,
		},
		LogLevel: DefaultLogLevel,
		Output:   DefaultOutput,
	}
}
