package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "APPROVALCTL"

// Loader resolves a Config from, in increasing precedence: DefaultConfig,
// the config file, APPROVALCTL_* variables and values passed to Set.
type Loader struct {
	v        *viper.Viper
	explicit string
}

func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile pins the file to read. A missing pinned file is an error,
// unlike the search path.
func (l *Loader) SetConfigFile(path string) {
	l.explicit = path
}

// Set overrides key with a command line flag value.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// ConfigFileUsed names the file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) Load() (*Config, error) {
	defaults, err := defaultSettings()
	if err != nil {
		return nil, err
	}
	for _, key := range sortedKeys(defaults) {
		l.v.SetDefault(key, defaults[key])
		// Unmarshal only consults env vars for keys bound up front.
		if err := l.v.BindEnv(key, EnvVar(key)); err != nil {
			return nil, err
		}
	}

	if err := l.readFile(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for _, p := range []*string{&cfg.Global.DataDir, &cfg.Global.ConfigDir, &cfg.Database.Path, &cfg.Logging.File} {
		*p = expandHome(*p)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) readFile() error {
	if l.explicit != "" {
		l.v.SetConfigFile(l.explicit)
		return l.v.ReadInConfig()
	}

	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		l.v.AddConfigPath(filepath.Join(xdg, "approvalctl"))
	}
	if home, _ := os.UserHomeDir(); home != "" {
		l.v.AddConfigPath(filepath.Join(home, ".config", "approvalctl"))
	}
	l.v.AddConfigPath(".")

	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// defaultSettings flattens DefaultConfig into dotted keys such as
// "api.base_url", using the same yaml names a config file uses.
func defaultSettings() (map[string]any, error) {
	raw, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	flat := map[string]any{}
	flatten("", tree, flat)
	return flat, nil
}

func flatten(prefix string, tree map[string]any, out map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = value
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Keys lists every setting that can be overridden, in dotted form.
func Keys() []string {
	defaults, err := defaultSettings()
	if err != nil {
		return nil
	}
	return sortedKeys(defaults)
}

// EnvVar maps a dotted key to its variable: api.base_url becomes
// APPROVALCTL_API_BASE_URL.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// LoadFromFile loads path on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	l := NewLoader()
	l.SetConfigFile(path)
	return l.Load()
}

// LoadDefault searches the usual locations for config.yaml.
func LoadDefault() (*Config, error) {
	return NewLoader().Load()
}
