package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the configuration for the HTTP servers and the
// collaborators around the rendering engine.
type ServerConfig struct {
	ServerAddr       string            `mapstructure:"server_addr" yaml:"server_addr" json:"server_addr"`
	ApiAddr          string            `mapstructure:"api_addr" yaml:"api_addr" json:"api_addr"`
	LogLevel         string            `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	BaseURL          string            `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	CPTrigger        string            `mapstructure:"cp_trigger" yaml:"cp_trigger" json:"cp_trigger"`
	ResourceTrigger  string            `mapstructure:"resource_trigger" yaml:"resource_trigger" json:"resource_trigger"`
	ResourcePath     string            `mapstructure:"resource_path" yaml:"resource_path" json:"resource_path"`
	DatabasePath     string            `mapstructure:"database_path" yaml:"database_path" json:"database_path"`
	PluginsPath      string            `mapstructure:"plugins_path" yaml:"plugins_path" json:"plugins_path"`
	TranslationsPath string            `mapstructure:"translations_path" yaml:"translations_path" json:"translations_path"`
	SourceLocale     string            `mapstructure:"source_locale" yaml:"source_locale" json:"source_locale"`
	SessionCookie    string            `mapstructure:"session_cookie" yaml:"session_cookie" json:"session_cookie"`
	FlashMaxAgeHours int               `mapstructure:"flash_max_age_hours" yaml:"flash_max_age_hours" json:"flash_max_age_hours"`
	CPPermissions    []string          `mapstructure:"cp_permissions" yaml:"cp_permissions" json:"cp_permissions"`
	Headers          map[string]string `mapstructure:"headers" yaml:"headers" json:"headers"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Templates *templating.Config `mapstructure:"templates" yaml:"templates" json:"templates"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:       ":7377",
		ApiAddr:          ":7378",
		LogLevel:         "info",
		BaseURL:          "http://localhost:7377",
		CPTrigger:        "admin",
		ResourceTrigger:  "cpresources",
		ResourcePath:     "./data/resources",
		DatabasePath:     "./data/nepenthes.db",
		PluginsPath:      "./data/plugins",
		TranslationsPath: "./data/translations",
		SourceLocale:     "en-US",
		SessionCookie:    "NEPENTHES_SESSION",
		FlashMaxAgeHours: 24,
		CPPermissions:    []string{"*"},
		Headers: map[string]string{
			"Cache-Control":          "no-cache",
			"X-Content-Type-Options": "nosniff",
			"Content-Type":           "text/html; charset=utf-8",
		},
	}
}

// DefaultConfig returns the configuration a fresh install starts with.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Templates: templating.DefaultConfig(),
	}
}

// LoadConfig reads the configuration through v from path. If the file doesn't
// exist, it is created with default values. Values missing from the file keep
// their defaults, and NEPENTHES_* environment variables override both.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := writeConfig(path, config); err != nil {
			// The server can still run with defaults.
			fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			return config, nil
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NEPENTHES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

func writeConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ConfigManager handles thread-safe access to the configuration and pushes
// template settings to the rendering environment.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
	env        *templating.Environment
}

// NewConfigManager wraps an already loaded config.
func NewConfigManager(config *Config, path string, logger *slog.Logger) *ConfigManager {
	return &ConfigManager{
		config:     config,
		configPath: path,
		logger:     logger,
	}
}

// SetEnvironment registers the rendering environment to receive config updates.
func (cm *ConfigManager) SetEnvironment(env *templating.Environment) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.env = env
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	server := *cm.config.Server
	templates := *cm.config.Templates
	return Config{Server: &server, Templates: &templates}
}

// Update replaces the configuration, saves it to disk and applies the
// template settings. Server settings take effect on the next restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	if newConfig.Server == nil || newConfig.Templates == nil {
		return errors.New("config must contain both server and templates sections")
	}
	if len(newConfig.Templates.DefaultTemplateExtensions) == 0 {
		return errors.New("templates.default_template_extensions must not be empty")
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := writeConfig(cm.configPath, &newConfig); err != nil {
		return err
	}
	*cm.config = newConfig
	if cm.env != nil {
		templates := *newConfig.Templates
		cm.env.SetConfig(&templates)
	}
	cm.logger.Info("Configuration updated")
	return nil
}
