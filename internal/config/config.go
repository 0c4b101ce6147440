// Package config loads and validates application configuration for Revoice.
// Configuration lives at ~/.revoice/config.yaml and can be overridden by
// environment variables (REVOICE_*).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the Revoice migration pipeline.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Models    ModelsConfig    `mapstructure:"models" yaml:"models"`
	Migration MigrationConfig `mapstructure:"migration" yaml:"migration"`
	Finetune  FinetuneConfig  `mapstructure:"finetune" yaml:"finetune"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig contains configuration for Language Model providers.
type LLMConfig struct {
	// DefaultProvider specifies which provider to use by default (e.g., "ollama", "openai", "anthropic", "together")
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their specific configuration
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig contains configuration for a specific LLM provider.
type ProviderConfig struct {
	// Endpoint is the API endpoint URL (primarily used for local providers like Ollama)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey is the authentication key for the provider
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Model is the default model to use with this provider
	Model string `mapstructure:"model" yaml:"model,omitempty"`
}

// ModelsConfig names the model roles the pipeline talks to.
// The pipeline treats all roles identically at the interface level; only the
// prompt content and model id differ.
type ModelsConfig struct {
	// Teacher is the fine-tuned model whose voice is being captured
	Teacher string `mapstructure:"teacher" yaml:"teacher"`
	// FastJudge is a cheap model used for prompt generation and shift estimation
	FastJudge string `mapstructure:"fast_judge" yaml:"fast_judge"`
	// QualityJudge is the model used for reward prediction and training assessment
	QualityJudge string `mapstructure:"quality_judge" yaml:"quality_judge"`
	// TargetBase is the new base model the voice will be retrained onto
	TargetBase string `mapstructure:"target_base" yaml:"target_base"`
}

// MigrationConfig contains per-migration pipeline defaults.
type MigrationConfig struct {
	// PairTarget is the desired number of distillation pairs per migration
	PairTarget int `mapstructure:"pair_target" yaml:"pair_target"`
	// MinQuality is the minimum quality score for training-eligible pairs (0-1)
	MinQuality float64 `mapstructure:"min_quality" yaml:"min_quality"`
	// IncludeRaw includes raw conversation pairs in the training package
	IncludeRaw bool `mapstructure:"include_raw" yaml:"include_raw"`
	// IncludeDPO includes preference (chosen/rejected) pairs in the training package
	IncludeDPO bool `mapstructure:"include_dpo" yaml:"include_dpo"`
	// IncludeDistilled includes distilled teacher pairs in the training package
	IncludeDistilled bool `mapstructure:"include_distilled" yaml:"include_distilled"`
	// DataDir is the directory for the migration database and exports
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// ProfilePath is the path to the personality profile YAML
	ProfilePath string `mapstructure:"profile_path" yaml:"profile_path"`
}

// FinetuneConfig contains configuration for the fine-tuning provider hand-off.
type FinetuneConfig struct {
	// Endpoint is the provider API base URL (Together-compatible)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// APIKey authenticates file uploads and job creation
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Suffix is appended to fine-tuned model names
	Suffix string `mapstructure:"suffix" yaml:"suffix"`
	// Epochs is the number of training epochs requested
	Epochs int `mapstructure:"epochs" yaml:"epochs"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]ProviderConfig{
				"ollama": {
					Endpoint: "http://127.0.0.1:11434",
					Model:    "llama3",
				},
				"openai": {
					Model: "gpt-4o-mini",
				},
				"anthropic": {
					Model: "claude-3-5-sonnet-20241022",
				},
				"together": {
					Endpoint: "https://api.together.xyz/v1",
				},
			},
		},
		Models: ModelsConfig{
			Teacher:      "voice-tuned-v1",
			FastJudge:    "llama3",
			QualityJudge: "llama3",
			TargetBase:   "llama3.1",
		},
		Migration: MigrationConfig{
			PairTarget:       200,
			MinQuality:       0.6,
			IncludeRaw:       true,
			IncludeDPO:       true,
			IncludeDistilled: true,
			DataDir:          "~/.revoice",
			ProfilePath:      "~/.revoice/profile.yaml",
		},
		Finetune: FinetuneConfig{
			Endpoint: "https://api.together.xyz/v1",
			Suffix:   "revoice",
			Epochs:   3,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "~/.revoice/logs/revoice.log",
		},
	}
}

// Load reads configuration from the default location (~/.revoice/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".revoice", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with defaults.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: REVOICE_LLM_PROVIDERS_OPENAI_API_KEY
	v.SetEnvPrefix("REVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Migration.DataDir = expandPath(cfg.Migration.DataDir)
	cfg.Migration.ProfilePath = expandPath(cfg.Migration.ProfilePath)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".revoice", "config.yaml")
	return c.SaveToPath(configPath)
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// GetDataDir returns the Revoice data directory path.
func (c *Config) GetDataDir() string {
	if c.Migration.DataDir != "" {
		return c.Migration.DataDir
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".revoice")
}

// EnsureDirectories creates all necessary directories for Revoice operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.GetDataDir(),
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider cannot be empty")
	}

	if _, exists := c.LLM.Providers[c.LLM.DefaultProvider]; !exists {
		return fmt.Errorf("default provider '%s' not found in providers map", c.LLM.DefaultProvider)
	}

	if c.Models.Teacher == "" {
		return fmt.Errorf("models.teacher cannot be empty")
	}

	if c.Migration.PairTarget < 1 {
		return fmt.Errorf("migration.pair_target must be positive")
	}

	if c.Migration.MinQuality < 0 || c.Migration.MinQuality > 1 {
		return fmt.Errorf("migration.min_quality must be in [0, 1]")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
