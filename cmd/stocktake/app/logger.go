package app

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/stocktake/pkg/logging"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

// NewLogger builds the process logger for a stocktake invocation. A count
// run started with --log-level uses that level; otherwise -v turns on
// per-item debug output, -q keeps only warnings such as skipped rows and
// ledger retries, and LOG_LEVEL or log.level from stocktake.yaml apply
// when neither shortcut is set. Runs default to info.
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)

	return logging.NewLoggerFromConfig(&logging.Config{
		Level:     level,
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		NoColor:   config.NoColor,
		AddCaller: level == "debug" || level == "trace",
	})
}

func determineLogLevel(config *Config) string {
	if config.LogLevel != "" {
		level := validateLogLevel(config.LogLevel)
		if level != strings.ToLower(config.LogLevel) {
			fmt.Fprintf(os.Stderr, "Warning: unknown log level %q, logging at %q\n", config.LogLevel, level)
		}
		return level
	}

	switch {
	case config.Verbose && config.Quiet:
		// A count run asked to be both chatty and quiet stays quiet.
		fmt.Fprintf(os.Stderr, "Warning: --verbose and --quiet both given, keeping --quiet\n")
		return "warn"
	case config.Verbose:
		return "debug"
	case config.Quiet:
		return "warn"
	case config.EnvLogLevel != "":
		return validateLogLevel(config.EnvLogLevel)
	}
	return "info"
}

// validateLogLevel lowercases level and maps anything unknown to info.
func validateLogLevel(level string) string {
	level = strings.ToLower(level)
	if slices.Contains(logLevels, level) {
		return level
	}
	return "info"
}
