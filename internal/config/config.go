// Package config loads the inspector's configuration from
// ~/.config/mcpinspect/config.yaml. Everything has a sensible default;
// missing files are fine, malformed files are not.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mcpinspect/pkg/logging"
)

const (
	userConfigDir  = ".config/mcpinspect"
	configFileName = "config.yaml"
)

// Config is the top-level configuration.
type Config struct {
	// Endpoint of the downstream tool server.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Transport is "sse" or "streamable-http".
	Transport string `yaml:"transport,omitempty"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"logLevel,omitempty"`

	Agent AgentConfig `yaml:"agent,omitempty"`
}

// AgentConfig configures the autonomous agent.
type AgentConfig struct {
	// Provider is "claude", "gemini" or "openai".
	Provider string `yaml:"provider,omitempty"`
	// Model overrides the provider's default model.
	Model string `yaml:"model,omitempty"`
	// MaxDepth bounds dependency-chain length.
	MaxDepth int `yaml:"maxDepth,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint:  "http://localhost:8080/mcp",
		Transport: "streamable-http",
		LogLevel:  "info",
		Agent: AgentConfig{
			Provider: "claude",
			MaxDepth: 10,
		},
	}
}

// DefaultPath returns the path of the user config file.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// Load reads a config file, layering it over the defaults. A missing file
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config file at %s, using defaults", path)
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	logging.Info("Config", "Loaded configuration from %s", path)
	return cfg, nil
}

// LoadDefault loads from the user config location.
func LoadDefault() (Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Config{}, err
	}
	return Load(path)
}

func (c Config) validate() error {
	switch c.Transport {
	case "sse", "streamable-http":
	default:
		return fmt.Errorf("unsupported transport %q", c.Transport)
	}
	switch c.Agent.Provider {
	case "claude", "gemini", "openai":
	default:
		return fmt.Errorf("unsupported provider %q", c.Agent.Provider)
	}
	if c.Agent.MaxDepth < 0 {
		return fmt.Errorf("maxDepth must not be negative")
	}
	return nil
}
