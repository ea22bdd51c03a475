// Package logging configures approvalctl's zerolog output. Diagnostics go
// to stderr so tables and YAML on stdout stay pipeable.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Components derive from it.
var Logger zerolog.Logger

// Config mirrors the logging section of the config file.
type Config struct {
	Level        string // trace, debug, info, warn or error
	Format       string // console or json
	Output       io.Writer
	EnableCaller bool
	NoColor      bool
}

// DefaultConfig logs warnings and above in console form.
func DefaultConfig() Config {
	return Config{Level: "warn", Format: "console", Output: os.Stderr}
}

// Init replaces Logger. Unknown levels fall back to info.
func Init(cfg Config) {
	level, ok := lookupLevel(cfg.Level)
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	if !strings.EqualFold(cfg.Format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: cfg.NoColor}
	}

	builder := zerolog.New(w).With().Timestamp()
	if cfg.EnableCaller {
		builder = builder.Caller()
	}
	Logger = builder.Logger()
}

// ValidLevel is used by config validation before Init runs.
func ValidLevel(level string) bool {
	_, ok := lookupLevel(level)
	return ok
}

func lookupLevel(name string) (zerolog.Level, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	if name == "" || name == "panic" || name == "disabled" {
		return zerolog.NoLevel, false
	}
	level, err := zerolog.ParseLevel(name)
	return level, err == nil
}

// Component tags log lines with the subsystem that wrote them, e.g. "api"
// or "session".
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

func init() {
	Init(DefaultConfig())
}
