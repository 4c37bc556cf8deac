package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds runtime configuration of the qbp process. Widgets themselves
// are configured only through host-page attributes.
type Config struct {
	Backend BackendConfig
	Compile CompileConfig
	History HistoryConfig
	Log     LogConfig
	UI      UIConfig
}

// BackendConfig locates the remote quantum service.
type BackendConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	TokenEnv string `mapstructure:"token_env"`
	Token    string
	// Bearer also sends the resolved token as an Authorization header.
	Bearer bool
}

// CompileConfig holds options spread into every compile request.
type CompileConfig struct {
	Backend string
	Shots   int
}

// HistoryConfig holds the sqlite exchange history settings.
type HistoryConfig struct {
	Enabled bool
	Path    string
}

// LogConfig holds the rotating log file settings.
type LogConfig struct {
	Path       string
	Level      string
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
}

// UIConfig holds control labels.
type UIConfig struct {
	RunningLabel string `mapstructure:"running_label"`
	IdleLabel    string `mapstructure:"idle_label"`
	ErrorLabel   string `mapstructure:"error_label"`
}

// Load reads configuration from file and env. Env var overrides use prefix QBP_.
func Load() (Config, error) {
	v := viper.New()
	home := os.Getenv("HOME")

	// default values
	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.token_env", "QBP_IBM_TOKEN")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.bearer", false)
	v.SetDefault("compile.backend", "simulator")
	v.SetDefault("compile.shots", 1024)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(home, ".local", "share", "qbp", "history.db"))
	v.SetDefault("log.path", filepath.Join(home, ".local", "state", "qbp", "qbp.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("ui.running_label", "Running...")
	v.SetDefault("ui.idle_label", "Run")
	v.SetDefault("ui.error_label", "Error")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("QBP_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "qbp"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("QBP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes cfg as TOML to $QBP_CONFIG or ~/.config/qbp/config.toml.
// Tokens are better kept in the environment or the secrets store.
func Save(cfg Config) error {
	path := os.Getenv("QBP_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "qbp", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("backend.base_url", cfg.Backend.BaseURL)
	v.Set("backend.token_env", cfg.Backend.TokenEnv)
	v.Set("backend.token", cfg.Backend.Token)
	v.Set("backend.bearer", cfg.Backend.Bearer)
	v.Set("compile.backend", cfg.Compile.Backend)
	v.Set("compile.shots", cfg.Compile.Shots)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.Set("log.max_backups", cfg.Log.MaxBackups)
	v.Set("ui.running_label", cfg.UI.RunningLabel)
	v.Set("ui.idle_label", cfg.UI.IdleLabel)
	v.Set("ui.error_label", cfg.UI.ErrorLabel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// CompileOptions returns the options spread into compile requests. token is
// sent as ibm_token when set.
func (c Config) CompileOptions(token string) map[string]any {
	opts := map[string]any{}
	if c.Compile.Backend != "" {
		opts["backend"] = c.Compile.Backend
	}
	if c.Compile.Shots > 0 {
		opts["shots"] = c.Compile.Shots
	}
	if token != "" {
		opts["ibm_token"] = token
	}
	return opts
}
