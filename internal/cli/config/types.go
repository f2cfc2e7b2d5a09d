// Package config loads the CLI configuration. Values are layered from
// defaults, the ballotbox.yaml file, BALLOTBOX_ environment variables and
// command-line flags, in increasing precedence.
package config

import (
	intconfig "github.com/leapstack-labs/ballotbox/internal/config"
)

// Config is an alias for the shared configuration.
// This allows CLI code to use config.Config without importing internal/config.
type Config = intconfig.Config

// ValidationError is an alias for the shared validation error.
type ValidationError = intconfig.ValidationError

// EnvPrefix is the prefix of environment variables read by the loader.
// Sections are separated by a double underscore:
// BALLOTBOX_BACKEND__PAGE_SIZE sets backend.page_size.
const EnvPrefix = "BALLOTBOX_"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"backend":        "backend.url",
	"timeout":        "backend.timeout",
	"wire-format":    "backend.format",
	"page-size":      "backend.page_size",
	"port":           "ui.port",
	"watch":          "ui.watch",
	"dev":            "ui.dev",
	"static-dir":     "ui.static_dir",
	"history-driver": "history.driver",
	"history-dsn":    "history.dsn",
	"log-level":      "log_level",
	"verbose":        "verbose",
	"output":         "output",
}
