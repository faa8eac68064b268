// Package config loads the realtime session CLI settings from an optional
// TOML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const DefaultGreeting = "hi"

type Config struct {
	// AgentsFile is a YAML agent registry. Empty uses the built-in agents.
	AgentsFile  string
	AgentSet    string
	Model       string
	SessionURL  string
	RealtimeURL string
	PushToTalk  bool
	Greeting    string
}

type fileConfig struct {
	AgentsFile  string  `toml:"agents_file"`
	AgentSet    string  `toml:"agent_set"`
	Model       string  `toml:"model"`
	SessionURL  string  `toml:"session_url"`
	RealtimeURL string  `toml:"realtime_url"`
	PushToTalk  bool    `toml:"push_to_talk"`
	Greeting    *string `toml:"greeting"`
}

// Load reads the config file if present and applies environment overrides.
// A missing file is not an error; a malformed one is.
func Load() (*Config, error) {
	cfg := &Config{Greeting: DefaultGreeting}

	if configPath := configFilePath(); configPath != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(configPath, &fc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
		cfg.AgentsFile = expandTilde(fc.AgentsFile)
		cfg.AgentSet = fc.AgentSet
		cfg.Model = fc.Model
		cfg.SessionURL = fc.SessionURL
		cfg.RealtimeURL = fc.RealtimeURL
		cfg.PushToTalk = fc.PushToTalk
		if fc.Greeting != nil {
			cfg.Greeting = *fc.Greeting
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMA_REALTIME_AGENTS_FILE"); v != "" {
		cfg.AgentsFile = expandTilde(v)
	}
	if v := os.Getenv("EMA_REALTIME_AGENT_SET"); v != "" {
		cfg.AgentSet = v
	}
	if v := os.Getenv("REALTIME_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("REALTIME_SESSION_URL"); v != "" {
		cfg.SessionURL = v
	}
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "ema-realtime")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "ema-realtime")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
