// Package config loads approvalctl settings and the saved CLI context.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tOgg1/approvalctl/internal/logging"
)

// Config is everything approvalctl reads from config.yaml. Keys use the
// yaml names, e.g. dashboard.poll_interval.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Workflow  WorkflowConfig  `yaml:"workflow" mapstructure:"workflow"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Journal   JournalConfig   `yaml:"journal" mapstructure:"journal"`
	TUI       TUIConfig       `yaml:"tui" mapstructure:"tui"`
}

type GlobalConfig struct {
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`     // session and journal database
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"` // config.yaml and context.yaml
}

// DatabaseConfig locates the local SQLite store. An empty Path means
// DataDir/approvalctl.db.
type DatabaseConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	BusyTimeoutMs int    `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

type LoggingConfig struct {
	Level        string `yaml:"level" mapstructure:"level"`
	Format       string `yaml:"format" mapstructure:"format"`
	File         string `yaml:"file" mapstructure:"file"`
	EnableCaller bool   `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// APIConfig points at the approval service. RateLimit is in requests per
// second and 0 turns the limiter off.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int           `yaml:"burst" mapstructure:"burst"`
}

// WorkflowConfig caps approval levels. Levels past MaxLevels are dropped
// with a warning.
type WorkflowConfig struct {
	MaxLevels int `yaml:"max_levels" mapstructure:"max_levels"`
}

// DashboardConfig sets how often lists refetch and the audit page size.
type DashboardConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	PageSize     int           `yaml:"page_size" mapstructure:"page_size"`
}

// JournalConfig bounds the activity journal. MaxCount 0 keeps everything.
type JournalConfig struct {
	Enabled  bool `yaml:"enabled" mapstructure:"enabled"`
	MaxCount int  `yaml:"max_count" mapstructure:"max_count"`
}

type TUIConfig struct {
	Theme          string `yaml:"theme" mapstructure:"theme"` // default, dark or light
	ShowTimestamps bool   `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "approvalctl"),
			ConfigDir: filepath.Join(homeDir, ".config", "approvalctl"),
		},
		Database: DatabaseConfig{
			Path:          "", // DataDir/approvalctl.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		API: APIConfig{
			BaseURL:   "http://localhost:8080/api",
			Timeout:   15 * time.Second,
			RateLimit: 10,
			Burst:     5,
		},
		Workflow: WorkflowConfig{
			MaxLevels: 2,
		},
		Dashboard: DashboardConfig{
			PollInterval: 30 * time.Second,
			PageSize:     10,
		},
		Journal: JournalConfig{
			Enabled:  true,
			MaxCount: 5000,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
		},
	}
}

// Validate reports the first setting that is out of range, naming its key.
func (c *Config) Validate() error {
	base, err := url.Parse(c.API.BaseURL)
	absoluteURL := err == nil && base.Host != "" && (base.Scheme == "http" || base.Scheme == "https")
	checks := []struct {
		bad bool
		msg string
	}{
		{c.Database.BusyTimeoutMs < 0, "database.busy_timeout_ms must not be negative"},
		{!logging.ValidLevel(c.Logging.Level), "logging.level must be one of trace, debug, info, warn, error"},
		{c.Logging.Format != "console" && c.Logging.Format != "json", "logging.format must be console or json"},
		{!absoluteURL, "api.base_url must be an absolute http(s) URL"},
		{c.API.Timeout < 100*time.Millisecond, "api.timeout must be at least 100ms"},
		{c.API.RateLimit < 0, "api.rate_limit must not be negative"},
		{c.API.RateLimit > 0 && c.API.Burst < 1, "api.burst must be at least 1 when rate limiting"},
		{c.Workflow.MaxLevels < 1, "workflow.max_levels must be at least 1"},
		{c.Dashboard.PollInterval < time.Second, "dashboard.poll_interval must be at least 1s"},
		{c.Dashboard.PageSize < 1, "dashboard.page_size must be at least 1"},
		{c.Journal.MaxCount < 0, "journal.max_count must not be negative"},
		{!slices.Contains([]string{"default", "dark", "light"}, c.TUI.Theme), "tui.theme must be one of default, dark, light"},
	}
	for _, check := range checks {
		if check.bad {
			return errors.New(check.msg)
		}
	}
	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Global.DataDir, c.Global.ConfigDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "approvalctl.db")
}

// ContextPath returns the path of the CLI context file.
func (c *Config) ContextPath() string {
	return filepath.Join(c.Global.ConfigDir, "context.yaml")
}

// APIBaseURL returns the base URL without a trailing slash.
func (c *Config) APIBaseURL() string {
	return strings.TrimRight(c.API.BaseURL, "/")
}
