package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete OpenCode configuration
type Config struct {
	Branch   BranchConfig   `mapstructure:"branch"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Swarm    SwarmConfig    `mapstructure:"swarm"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	Provider ProviderConfig `mapstructure:"provider"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BranchConfig controls branch naming conventions
type BranchConfig struct {
	// Prefix is the branch name prefix for agent branches (default: "agent")
	// An agent with id "demo" works on branch <prefix>/demo.
	// Examples: "agent", "opencode", "swarm"
	Prefix string `mapstructure:"prefix"`
}

// ProfileConfig controls persona selection and loading
type ProfileConfig struct {
	// Default is the profile used when spawn/ask is invoked without --profile (default: "rusty")
	Default string `mapstructure:"default"`
	// Path overrides the personas file location.
	// If empty, the loader searches $OPENCODE_PROFILES, then the config
	// directory, then ./personas.yml.
	Path string `mapstructure:"path"`
}

// SwarmConfig controls parallel swarm execution
type SwarmConfig struct {
	// MaxParallel is the maximum number of concurrent agent spawns during
	// swarm execution (default: 3)
	MaxParallel int `mapstructure:"max_parallel"`
}

// SandboxConfig controls the sandbox tooling used to isolate agents
type SandboxConfig struct {
	// Tool is the sandbox CLI binary name (default: "cu").
	// It must support `<tool> --version` and
	// `<tool> environment open --branch <b> -- sh -c <cmd>`.
	Tool string `mapstructure:"tool"`
}

// ProviderConfig controls the model provider used by ask and the REPL
type ProviderConfig struct {
	// APIBase is the base URL of an OpenAI-compatible API (default: "https://api.openai.com/v1")
	APIBase string `mapstructure:"api_base"`
	// Model is the model identifier sent with each completion request (default: "gpt-4o-mini")
	Model string `mapstructure:"model"`
	// APIKeyEnv is the environment variable holding the API key (default: "OPENAI_API_KEY").
	// The key itself is never stored in the config file.
	APIKeyEnv string `mapstructure:"api_key_env"`
	// TimeoutSeconds is the per-request timeout in seconds (default: 60)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory for debug.log. Empty means log to stderr.
	Dir string `mapstructure:"dir"`
}

// Timeout returns the provider request timeout as a time.Duration
func (p *ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// APIKey reads the provider API key from the configured environment variable.
// Returns an empty string if the variable is unset.
func (p *ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Branch: BranchConfig{
			Prefix: "agent",
		},
		Profile: ProfileConfig{
			Default: "rusty",
			Path:    "", // Empty means search the standard locations
		},
		Swarm: SwarmConfig{
			MaxParallel: 3,
		},
		Sandbox: SandboxConfig{
			Tool: "cu",
		},
		Provider: ProviderConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "", // Empty means stderr
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Branch defaults
	viper.SetDefault("branch.prefix", defaults.Branch.Prefix)

	// Profile defaults
	viper.SetDefault("profile.default", defaults.Profile.Default)
	viper.SetDefault("profile.path", defaults.Profile.Path)

	// Swarm defaults
	viper.SetDefault("swarm.max_parallel", defaults.Swarm.MaxParallel)

	// Sandbox defaults
	viper.SetDefault("sandbox.tool", defaults.Sandbox.Tool)

	// Provider defaults
	viper.SetDefault("provider.api_base", defaults.Provider.APIBase)
	viper.SetDefault("provider.model", defaults.Provider.Model)
	viper.SetDefault("provider.api_key_env", defaults.Provider.APIKeyEnv)
	viper.SetDefault("provider.timeout_seconds", defaults.Provider.TimeoutSeconds)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "opencode")
	}
	// Fall back to ~/.config/opencode
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opencode"
	}
	return filepath.Join(home, ".config", "opencode")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// PersonasFile returns the default path to the personas file
func PersonasFile() string {
	return filepath.Join(ConfigDir(), "personas.yml")
}
