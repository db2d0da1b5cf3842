package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config represents the main lawyerai configuration
type Config struct {
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	CORS    CORSConfig    `json:"cors" mapstructure:"cors"`
	AI      AIConfig      `json:"ai" mapstructure:"ai"`
	Chat    ChatConfig    `json:"chat" mapstructure:"chat"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `json:"host" mapstructure:"host"`
	Port            int    `json:"port" mapstructure:"port"`
	ShutdownTimeout int    `json:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
	StatsSchedule   string `json:"stats_schedule" mapstructure:"stats_schedule"`     // cron spec
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
}

// AIConfig holds completion provider configuration
type AIConfig struct {
	Provider       string  `json:"provider" mapstructure:"provider"` // openai, anthropic, gemini
	APIKey         string  `json:"api_key" mapstructure:"api_key"`
	BaseURL        string  `json:"base_url" mapstructure:"base_url"`
	Model          string  `json:"model" mapstructure:"model"`
	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `json:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ChatConfig holds conversation behavior
type ChatConfig struct {
	GreetingMode  string   `json:"greeting_mode" mapstructure:"greeting_mode"`   // greet, ask
	DetectionMode string   `json:"detection_mode" mapstructure:"detection_mode"` // once, until_found
	Greeting      string   `json:"greeting" mapstructure:"greeting"`
	FollowUp      string   `json:"follow_up" mapstructure:"follow_up"`
	Jurisdictions []string `json:"jurisdictions" mapstructure:"jurisdictions"` // empty uses the built-in list
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"` // empty disables the audit trail
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

var validProviders = []string{"openai", "anthropic", "gemini"}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: 30,
			StatsSchedule:   "@every 1m",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		AI: AIConfig{
			Provider:       "openai",
			Model:          "gpt-4",
			TimeoutSeconds: 60,
		},
		Chat: ChatConfig{
			GreetingMode:  "greet",
			DetectionMode: "once",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "lawyerai",
			SampleRatio: 1.0,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// Redacted returns a copy of the config with the API key masked
func (c *Config) Redacted() *Config {
	cp := *c
	cp.CORS.AllowedOrigins = append([]string(nil), c.CORS.AllowedOrigins...)
	cp.Chat.Jurisdictions = append([]string(nil), c.Chat.Jurisdictions...)
	cp.AI.APIKey = maskSecret(c.AI.APIKey)
	return &cp
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	provider := strings.ToLower(c.AI.Provider)
	valid := false
	for _, vp := range validProviders {
		if provider == vp {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid ai provider %q (must be: %s)", c.AI.Provider, strings.Join(validProviders, ", "))
	}

	if c.AI.APIKey == "" {
		return fmt.Errorf("no AI credentials configured: set ai.api_key or OPENAI_API_KEY")
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.AI.TimeoutSeconds <= 0 {
		return fmt.Errorf("ai.timeout_seconds must be positive, got %d", c.AI.TimeoutSeconds)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Chat.GreetingMode {
	case "", "greet", "ask":
	default:
		return fmt.Errorf("invalid chat.greeting_mode: %s (must be greet or ask)", c.Chat.GreetingMode)
	}
	switch c.Chat.DetectionMode {
	case "", "once", "until_found":
	default:
		return fmt.Errorf("invalid chat.detection_mode: %s (must be once or until_found)", c.Chat.DetectionMode)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %f", c.Tracing.SampleRatio)
	}

	return nil
}
