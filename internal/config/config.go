// Package config holds the Truth Engine configuration: one struct per
// concern, yaml-tagged, with defaults and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"truthengine/internal/logging"
)

// Config holds all Truth Engine configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// DataDir is where logs and other runtime files live.
	DataDir string `yaml:"data_dir"`

	// Extraction backend boundary
	Extraction ExtractionConfig `yaml:"extraction"`

	// Execution engine settings
	Engine EngineConfig `yaml:"engine"`

	// Verdict resolution thresholds
	Verdict VerdictConfig `yaml:"verdict"`

	// Session lifecycle
	Session SessionConfig `yaml:"session"`

	// Websocket transport
	Stream StreamConfig `yaml:"stream"`

	// Capability providers
	Capability CapabilityConfig `yaml:"capability"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ExtractionConfig configures the text-extraction boundary.
type ExtractionConfig struct {
	// MinConfidence is the floor below which a session routes to manual
	// review instead of tiered verification.
	MinConfidence float64 `yaml:"min_confidence"`
}

// EngineConfig configures the execution engine.
type EngineConfig struct {
	// GlobalTimeout bounds one session's verification run.
	GlobalTimeout string `yaml:"global_timeout"`

	// TaskBudgetMultiplier scales each task's expected duration into its
	// hard per-task deadline.
	TaskBudgetMultiplier float64 `yaml:"task_budget_multiplier"`

	// FallbackConfidenceFloor is used when the global timeout fires with
	// nothing better available.
	FallbackConfidenceFloor float64 `yaml:"fallback_confidence_floor"`
}

// VerdictConfig configures the tier-resolution thresholds.
type VerdictConfig struct {
	// Tier2MinAgreement is the number of independently agreeing Tier-2
	// sources needed for a Tier-2 verdict.
	Tier2MinAgreement int `yaml:"tier2_min_agreement"`

	// Tier3MinPatterns is the minimum count of independent pattern
	// categories for a Tier-3 "strong match".
	Tier3MinPatterns int `yaml:"tier3_min_patterns"`

	// Tier4MinIndicators is the minimum count of independent risk
	// indicators for a Tier-4 "suspicious" verdict.
	Tier4MinIndicators int `yaml:"tier4_min_indicators"`

	// InconclusiveFloor is the confidence attached to inconclusive verdicts.
	InconclusiveFloor float64 `yaml:"inconclusive_floor"`

	// ClarificationThreshold triggers the follow-up-questions round when
	// the resolved confidence falls below it.
	ClarificationThreshold float64 `yaml:"clarification_threshold"`
}

// SessionConfig configures session lifecycle and storage.
type SessionConfig struct {
	// MaxLifetime bounds one session end to end; expired sessions are
	// force-finalized, never left hanging.
	MaxLifetime string `yaml:"max_lifetime"`

	// RetainAfterTerminal keeps terminal sessions resumable for late
	// reconnects before the store expires them.
	RetainAfterTerminal string `yaml:"retain_after_terminal"`

	// CleanupInterval is how often the store sweeps expired sessions.
	CleanupInterval string `yaml:"cleanup_interval"`
}

// StreamConfig configures the websocket transport.
type StreamConfig struct {
	Addr         string `yaml:"addr"`
	PingInterval string `yaml:"ping_interval"`
	WriteTimeout string `yaml:"write_timeout"`

	// Reconnect backoff (client side)
	ReconnectBaseDelay   string `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    string `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
}

// CapabilityConfig configures capability providers.
type CapabilityConfig struct {
	// ProviderRate limits calls per second against any single provider.
	ProviderRate float64 `yaml:"provider_rate"`

	// ProviderBurst is the rate limiter burst size.
	ProviderBurst int `yaml:"provider_burst"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
	JSONFormat bool            `yaml:"json_format"`
}

// LoggerConfig converts the section into the logging package's config.
func (l LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		DebugMode:  l.DebugMode,
		Level:      l.Level,
		Categories: l.Categories,
		JSONFormat: l.JSONFormat,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "truthengine",
		Version: "1.0.0",
		DataDir: ".truthengine",

		Extraction: ExtractionConfig{
			MinConfidence: 0.5,
		},

		Engine: EngineConfig{
			GlobalTimeout:           "45s",
			TaskBudgetMultiplier:    2.0,
			FallbackConfidenceFloor: 0.3,
		},

		Verdict: VerdictConfig{
			Tier2MinAgreement:      2,
			Tier3MinPatterns:       3,
			Tier4MinIndicators:     2,
			InconclusiveFloor:      0.2,
			ClarificationThreshold: 0.5,
		},

		Session: SessionConfig{
			MaxLifetime:         "2m",
			RetainAfterTerminal: "5m",
			CleanupInterval:     "30s",
		},

		Stream: StreamConfig{
			Addr:                 ":8090",
			PingInterval:         "20s",
			WriteTimeout:         "10s",
			ReconnectBaseDelay:   "250ms",
			ReconnectMaxDelay:    "8s",
			MaxReconnectAttempts: 6,
		},

		Capability: CapabilityConfig{
			ProviderRate:  5,
			ProviderBurst: 10,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("TRUTHENGINE_ADDR"); addr != "" {
		c.Stream.Addr = addr
	}
	if dir := os.Getenv("TRUTHENGINE_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if timeout := os.Getenv("TRUTHENGINE_GLOBAL_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			c.Engine.GlobalTimeout = timeout
		}
	}
	if os.Getenv("TRUTHENGINE_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// parseDuration returns the parsed duration or the fallback.
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GlobalTimeout returns the engine's global timeout as a duration.
func (c *Config) GlobalTimeout() time.Duration {
	return parseDuration(c.Engine.GlobalTimeout, 45*time.Second)
}

// SessionMaxLifetime returns the session lifetime budget as a duration.
func (c *Config) SessionMaxLifetime() time.Duration {
	return parseDuration(c.Session.MaxLifetime, 2*time.Minute)
}

// SessionRetainAfterTerminal returns how long terminal sessions stay
// resumable.
func (c *Config) SessionRetainAfterTerminal() time.Duration {
	return parseDuration(c.Session.RetainAfterTerminal, 5*time.Minute)
}

// SessionCleanupInterval returns the store sweep interval.
func (c *Config) SessionCleanupInterval() time.Duration {
	return parseDuration(c.Session.CleanupInterval, 30*time.Second)
}

// PingInterval returns the websocket keep-alive interval.
func (c *Config) PingInterval() time.Duration {
	return parseDuration(c.Stream.PingInterval, 20*time.Second)
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Stream.WriteTimeout, 10*time.Second)
}

// ReconnectBaseDelay returns the first reconnect backoff delay.
func (c *Config) ReconnectBaseDelay() time.Duration {
	return parseDuration(c.Stream.ReconnectBaseDelay, 250*time.Millisecond)
}

// ReconnectMaxDelay returns the backoff ceiling.
func (c *Config) ReconnectMaxDelay() time.Duration {
	return parseDuration(c.Stream.ReconnectMaxDelay, 8*time.Second)
}
