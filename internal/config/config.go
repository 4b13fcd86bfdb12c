package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"rollsum/internal/gateway"
	"rollsum/internal/summary"
)

const (
	DefaultModel     = "gpt-4.1-nano"
	DefaultDBPath    = "rollsum.db"
	DefaultESIndex   = "conversation_events"
	DefaultLogLevel  = "info"
	defaultConfigDir = ".rollsum"
)

var (
	ErrInvalidThreshold  = summary.ErrInvalidThreshold
	ErrInvalidKeepRecent = errors.New("summary keep_recent must not be negative")
)

// ModelConfig holds the chat model connection settings.
type ModelConfig struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
}

// SummaryConfig selects the summary layout and when it kicks in.
type SummaryConfig struct {
	Variant    string `mapstructure:"variant" yaml:"variant"`
	Threshold  *int   `mapstructure:"threshold" yaml:"threshold,omitempty"` // unset uses the variant default
	KeepRecent int    `mapstructure:"keep_recent" yaml:"keep_recent"`
}

// ElasticConfig enables event and metrics shipping when Addresses is non-empty.
type ElasticConfig struct {
	Addresses []string `mapstructure:"addresses" yaml:"addresses"`
	Username  string   `mapstructure:"username" yaml:"username"`
	Password  string   `mapstructure:"password" yaml:"password"`
	Index     string   `mapstructure:"index" yaml:"index"`
}

type SessionConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

type Config struct {
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
	Model    ModelConfig   `mapstructure:"model" yaml:"model"`
	Summary  SummaryConfig `mapstructure:"summary" yaml:"summary"`
	Elastic  ElasticConfig `mapstructure:"elastic" yaml:"elastic"`
	Session  SessionConfig `mapstructure:"session" yaml:"session"`
}

// Load reads configuration from configPath, or from the default search paths
// when configPath is empty, with environment variables taking precedence.
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, defaultConfigDir))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("ROLLSUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names shared with other tools talking to the same endpoint
	_ = v.BindEnv("model.api_key", "ROLLSUM_MODEL_API_KEY", "ARK_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("model.model", "ROLLSUM_MODEL_MODEL", "ARK_MODEL_NAME")
	_ = v.BindEnv("model.base_url", "ROLLSUM_MODEL_BASE_URL", "ARK_BASE_URL")
	// no default: an absent threshold must stay nil rather than become 0
	_ = v.BindEnv("summary.threshold", "ROLLSUM_SUMMARY_THRESHOLD")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.model", DefaultModel)
	v.SetDefault("model.temperature", 0)

	v.SetDefault("summary.variant", string(summary.VariantField))
	v.SetDefault("summary.keep_recent", summary.DefaultKeepRecent)

	v.SetDefault("elastic.addresses", []string{})
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")
	v.SetDefault("elastic.index", DefaultESIndex)

	v.SetDefault("session.db_path", DefaultDBPath)
}

// Default returns the configuration Load produces with no file and no environment.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Model:    ModelConfig{Model: DefaultModel},
		Summary: SummaryConfig{
			Variant:    string(summary.VariantField),
			KeepRecent: summary.DefaultKeepRecent,
		},
		Elastic: ElasticConfig{Index: DefaultESIndex},
		Session: SessionConfig{DBPath: DefaultDBPath},
	}
}

// Validate checks the fields that have a fixed domain.
func (c *Config) Validate() error {
	if _, err := summary.ParseVariant(c.Summary.Variant); err != nil {
		return err
	}
	if c.Summary.Threshold != nil && *c.Summary.Threshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, *c.Summary.Threshold)
	}
	if c.Summary.KeepRecent < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeepRecent, c.Summary.KeepRecent)
	}
	return c.Gateway().Validate()
}

// Gateway returns the model settings in the form the gateway constructor takes.
func (c *Config) Gateway() *gateway.Config {
	return &gateway.Config{
		APIKey:      c.Model.APIKey,
		BaseURL:     c.Model.BaseURL,
		Model:       c.Model.Model,
		Temperature: c.Model.Temperature,
	}
}

// WriteDefault writes a starter config file to path, refusing to overwrite.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
