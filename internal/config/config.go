// Package config loads and validates the hub's runtime configuration.
//
// Configuration is a single YAML document with environment-variable
// expansion applied before parsing, so values like "${OPENAI_API_KEY}"
// resolve from the process environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	WSPort     int              `yaml:"wsPort"`
	Agent      AgentConfig      `yaml:"agent"`
	Escalation EscalationConfig `yaml:"escalation"`
	OpenClaw   OpenClawConfig   `yaml:"openclaw"`
	Situation  SituationConfig  `yaml:",inline"`
	Trace      TraceConfig      `yaml:",inline"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AgentConfig drives the analyzer tick engine.
type AgentConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Model          string   `yaml:"model"`
	FallbackModels []string `yaml:"fallbackModels"`
	MaxTokens      int      `yaml:"maxTokens"`
	Temperature    float32  `yaml:"temperature"`
	DebounceMs     int      `yaml:"debounceMs"`
	MaxIntervalMs  int      `yaml:"maxIntervalMs"`
	CooldownMs     int      `yaml:"cooldownMs"`
	MaxAgeMs       int      `yaml:"maxAgeMs"`
	Richness       string   `yaml:"richness"`
	PushToFeed     bool     `yaml:"pushToFeed"`
	APIBase        string   `yaml:"apiBase"`
	APIKey         string   `yaml:"apiKey"`
}

// EscalationConfig drives the escalation scorer and orchestrator.
type EscalationConfig struct {
	Mode       string `yaml:"mode"`
	CooldownMs int    `yaml:"cooldownMs"`
}

// OpenClawConfig points at the assistant gateway and its HTTP hook.
type OpenClawConfig struct {
	GatewayWSURL string `yaml:"gatewayWsUrl"`
	GatewayToken string `yaml:"gatewayToken"`
	HookURL      string `yaml:"hookUrl"`
	HookToken    string `yaml:"hookToken"`
	SessionKey   string `yaml:"sessionKey"`
}

// SituationConfig controls the situation snapshot file.
type SituationConfig struct {
	Enabled bool   `yaml:"situationMdEnabled"`
	Path    string `yaml:"situationMdPath"`
}

// TraceConfig controls the per-tick trace journal.
type TraceConfig struct {
	Enabled bool   `yaml:"traceEnabled"`
	Dir     string `yaml:"traceDir"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ValidModes enumerates the recognized escalation modes.
var ValidModes = []string{"off", "selective", "focus", "rich"}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		WSPort: 8765,
		Agent: AgentConfig{
			Enabled:       true,
			Model:         "gpt-4o-mini",
			MaxTokens:     400,
			Temperature:   0.3,
			DebounceMs:    3000,
			MaxIntervalMs: 30000,
			CooldownMs:    5000,
			MaxAgeMs:      120000,
			Richness:      "standard",
			PushToFeed:    true,
		},
		Escalation: EscalationConfig{Mode: "off", CooldownMs: 120000},
		Situation:  SituationConfig{Enabled: false, Path: "situation.md"},
		Trace:      TraceConfig{Enabled: true, Dir: "traces"},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path, expands environment variables, and
// merges the result over defaults. An empty path yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the hub cannot run with.
func (c *Config) Validate() error {
	if c.WSPort <= 0 || c.WSPort > 65535 {
		return fmt.Errorf("wsPort %d out of range", c.WSPort)
	}
	if !IsValidMode(c.Escalation.Mode) {
		return fmt.Errorf("escalation.mode %q not one of %s", c.Escalation.Mode, strings.Join(ValidModes, "|"))
	}
	if c.Agent.DebounceMs < 0 || c.Agent.MaxIntervalMs < 0 || c.Agent.CooldownMs < 0 {
		return fmt.Errorf("agent timers must be non-negative")
	}
	return nil
}

// IsValidMode reports whether mode is a recognized escalation mode.
func IsValidMode(mode string) bool {
	for _, m := range ValidModes {
		if m == mode {
			return true
		}
	}
	return false
}
