package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "CRITIC",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "CRITIC",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (CRITIC_*)
// 3. Project config (.critic.yaml in current directory)
// 4. User config (~/.config/critic/.critic.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	// Set defaults first
	l.setDefaults()

	// Configure environment variable reading
	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Config file setup
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".critic")
		l.v.SetConfigType("yaml")

		// Add search paths in precedence order (first found wins)
		// Project config takes precedence over user config
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "critic"))
		}
	}

	// Read config file (ignore not found)
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	// Run defaults
	l.v.SetDefault("run.timeout", "30m")
	l.v.SetDefault("run.stall_timeout", "0s")
	l.v.SetDefault("run.heartbeat", "30s")
	l.v.SetDefault("run.poll_interval", "5s")

	// Review defaults
	l.v.SetDefault("review.cycles", 3)
	l.v.SetDefault("review.doc", "docs/autoep-design.md")
	l.v.SetDefault("review.plan_doc", "")
	l.v.SetDefault("review.todo_dir", "todo")
	l.v.SetDefault("review.tasks_dir", "tasks")
	l.v.SetDefault("review.comments_dir", "")
	l.v.SetDefault("review.commit", true)
	l.v.SetDefault("review.fallback", true)

	// Reviewer registry defaults
	l.v.SetDefault("reviewers.default", []string{})
	l.v.SetDefault("reviewers.file", "")

	// Monitor defaults
	l.v.SetDefault("monitor.enabled", false)
	l.v.SetDefault("monitor.addr", "127.0.0.1:8765")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}
