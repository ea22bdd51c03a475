// Package cli implements the approvalctl command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/config"
	"github.com/tOgg1/approvalctl/internal/logging"
)

var (
	cfgFile        string
	jsonOutput     bool
	quiet          bool
	verbose        bool
	logLevel       string
	logFormat      string
	apiURL         string
	nonInteractive bool
	assumeYes      bool
	noColor        bool

	appConfig *config.Config
	logger    zerolog.Logger = logging.Component("cli")
)

var rootCmd = &cobra.Command{
	Use:   "approvalctl",
	Short: "Terminal client for the approval workflow service",
	Long: `approvalctl drives the approval workflow service from a terminal.

Administrators define workflows, initiators submit requests, managers and
finance approve or reject them level by level, and auditors read the trail.
Sign in with 'approvalctl login'; every role-scoped command checks the
stored session before calling the service.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.config/approvalctl/config.yaml)")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&apiURL, "api-url", "", "approval service base URL")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	flags.BoolVar(&noColor, "no-color", false, "disable colors")
}

// Execute runs the command tree.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func initConfig(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	if flagChanged(cmd, "api-url") {
		loader.Set("api.base_url", apiURL)
	}
	if flagChanged(cmd, "log-level") {
		loader.Set("logging.level", logLevel)
	}
	if flagChanged(cmd, "log-format") {
		loader.Set("logging.format", logFormat)
	}

	cfg, err := loader.Load()
	if err != nil {
		return &PreflightError{
			Message:  err.Error(),
			Hint:     "Fix the config file or the APPROVALCTL_* environment variables",
			NextStep: "approvalctl --config <path> whoami",
		}
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	output, err := logOutput(cfg.Logging.File)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       output,
		EnableCaller: cfg.Logging.EnableCaller,
		NoColor:      noColor,
	})
	logger = logging.Component("cli")

	if used := loader.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("config loaded")
	}

	appConfig = cfg
	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	flag := cmd.Flags().Lookup(name)
	return flag != nil && flag.Changed
}

func logOutput(path string) (io.Writer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return os.Stderr, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// GetConfig returns the loaded config, or defaults before loading.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsQuiet reports whether --quiet was given.
func IsQuiet() bool {
	return quiet
}

// IsNonInteractive reports whether prompting is disabled.
func IsNonInteractive() bool {
	if nonInteractive {
		return true
	}
	return strings.TrimSpace(os.Getenv(config.EnvVar("non_interactive"))) != ""
}
