// Package logger builds the leveled loggers used by the client and the CLI.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

// EnvLogLevel is the environment variable to set the level of the default logger.
const EnvLogLevel = "SPB_LOG_LEVEL"

// New creates a logger writing to stderr.
func New(prefix string, level log.Lvl) *log.Logger {
	return NewTo(os.Stderr, prefix, level)
}

// NewTo creates a logger writing to w.
func NewTo(w io.Writer, prefix string, level log.Lvl) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(w)
	l.SetLevel(level)
	return l
}

// Null creates a logger which discards everything.
func Null() *log.Logger {
	return NewTo(io.Discard, "-", log.OFF)
}

// ParseLevel converts a level name into log.Lvl.
//
// Empty string is OFF.
func ParseLevel(level string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG, nil
	case "info":
		return log.INFO, nil
	case "warn":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off", "":
		return log.OFF, nil
	default:
		return log.OFF, fmt.Errorf("unknown log level: %s", level)
	}
}

// FromEnv creates a logger at the level in SPB_LOG_LEVEL.
//
// An unknown level falls back to WARN, with a warning.
func FromEnv(prefix string) *log.Logger {
	raw := os.Getenv(EnvLogLevel)
	level, err := ParseLevel(raw)
	if err != nil {
		l := New(prefix, log.WARN)
		l.Warnf("unknown %s: %s . fall-backed to warn", EnvLogLevel, raw)
		return l
	}
	return New(prefix, level)
}
