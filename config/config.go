// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/absmach/sparkplug-tck/topics"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the conformance test runner.
type Config struct {
	Test      TestConfig      `yaml:"test"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Health    HealthConfig    `yaml:"health"`
}

// TestConfig selects the test to run and its parameters.
type TestConfig struct {
	Name      string   `yaml:"name"`
	Params    []string `yaml:"params"`
	Namespace string   `yaml:"namespace"`

	// How long to observe before ending the test; 0 runs until interrupted.
	Duration time.Duration `yaml:"duration"`
}

// MQTTConfig holds the connection used to observe Sparkplug traffic.
type MQTTConfig struct {
	BrokerURL      string        `yaml:"broker_url"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topics         []string      `yaml:"topics"`
	QoS            int           `yaml:"qos"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CleanSession   bool          `yaml:"clean_session"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// StorageConfig holds the report storage backend configuration.
type StorageConfig struct {
	Type string `yaml:"type"` // memory, badger

	// BadgerDB settings
	BadgerDir   string `yaml:"badger_dir"`
	SyncWrites  bool   `yaml:"sync_writes"`
	Compression string `yaml:"compression"` // none, s2, zstd
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled         bool              `yaml:"enabled"`
	QueueSize       int               `yaml:"queue_size"`
	DropPolicy      string            `yaml:"drop_policy"`      // "oldest" or "newest"
	Workers         int               `yaml:"workers"`          // Number of worker goroutines
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout"` // Graceful shutdown timeout
	Defaults        WebhookDefaults   `yaml:"defaults"`
	Endpoints       []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookDefaults holds default settings for webhook endpoints.
type WebhookDefaults struct {
	Timeout        time.Duration        `yaml:"timeout"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RetryConfig holds retry configuration for webhook delivery.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// WebhookEndpoint defines a single webhook endpoint configuration.
type WebhookEndpoint struct {
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type"` // "http"
	URL          string            `yaml:"url"`
	Events       []string          `yaml:"events"`        // Event type filter (empty = all)
	TopicFilters []string          `yaml:"topic_filters"` // Sparkplug topic filter (empty = all)
	Headers      map[string]string `yaml:"headers"`
	Timeout      time.Duration     `yaml:"timeout,omitempty"` // Override default
	Retry        *RetryConfig      `yaml:"retry,omitempty"`   // Override default
	RateLimit    float64           `yaml:"rate_limit"`        // Deliveries per second (0 = unlimited)
	RateBurst    int               `yaml:"rate_burst"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Endpoint        string  `yaml:"endpoint"` // OTLP gRPC endpoint
	ServiceName     string  `yaml:"service_name"`
	ServiceVersion  string  `yaml:"service_version"`
	MetricsEnabled  bool    `yaml:"metrics_enabled"`
	TracesEnabled   bool    `yaml:"traces_enabled"`
	TraceSampleRate float64 `yaml:"trace_sample_rate"` // 0.0 to 1.0
}

// HealthConfig holds the status HTTP server configuration.
type HealthConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Test: TestConfig{
			Name:      "SessionTermination",
			Namespace: "spBv1.0",
		},
		MQTT: MQTTConfig{
			BrokerURL:      "tcp://localhost:1883",
			ClientID:       "sparkplug-tck-observer",
			Topics:         []string{"spBv1.0/#"},
			QoS:            2,
			KeepAlive:      30 * time.Second,
			ConnectTimeout: 10 * time.Second,
			CleanSession:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Type:        "memory",
			BadgerDir:   "/tmp/sparkplug-tck/reports",
			Compression: "zstd",
		},
		Webhook: WebhookConfig{
			Enabled:         false,
			QueueSize:       1000,
			DropPolicy:      "oldest",
			Workers:         2,
			ShutdownTimeout: 30 * time.Second,
			Defaults: WebhookDefaults{
				Timeout: 5 * time.Second,
				Retry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 1 * time.Second,
					MaxInterval:     30 * time.Second,
					Multiplier:      2.0,
				},
				CircuitBreaker: CircuitBreakerConfig{
					FailureThreshold: 5,
					ResetTimeout:     60 * time.Second,
				},
			},
			Endpoints: []WebhookEndpoint{},
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Endpoint:        "localhost:4317",
			ServiceName:     "sparkplug-tck",
			ServiceVersion:  "1.0.0",
			MetricsEnabled:  true,
			TracesEnabled:   false,
			TraceSampleRate: 1.0,
		},
		Health: HealthConfig{
			Enabled:         false,
			Address:         ":8081",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Test.Name == "" {
		return fmt.Errorf("test.name cannot be empty")
	}
	if c.Test.Duration < 0 {
		return fmt.Errorf("test.duration cannot be negative")
	}

	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt.broker_url cannot be empty")
	}
	if len(c.MQTT.Topics) == 0 {
		return fmt.Errorf("mqtt.topics must contain at least one filter")
	}
	for i, filter := range c.MQTT.Topics {
		if err := topics.ValidateTopicFilter(filter); err != nil {
			return fmt.Errorf("mqtt.topics[%d]: %w", i, err)
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if c.MQTT.ConnectTimeout < time.Second {
		return fmt.Errorf("mqtt.connect_timeout must be at least 1 second")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	validStorage := map[string]bool{"memory": true, "badger": true}
	if !validStorage[c.Storage.Type] {
		return fmt.Errorf("storage.type must be one of: memory, badger")
	}
	if c.Storage.Type == "badger" && c.Storage.BadgerDir == "" {
		return fmt.Errorf("storage.badger_dir required when type is badger")
	}
	validCompression := map[string]bool{"": true, "none": true, "s2": true, "zstd": true}
	if !validCompression[c.Storage.Compression] {
		return fmt.Errorf("storage.compression must be one of: none, s2, zstd")
	}

	// OpenTelemetry validation (only if enabled)
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint cannot be empty when telemetry is enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return fmt.Errorf("telemetry.service_name cannot be empty when telemetry is enabled")
		}
		if c.Telemetry.TraceSampleRate < 0.0 || c.Telemetry.TraceSampleRate > 1.0 {
			return fmt.Errorf("telemetry.trace_sample_rate must be between 0.0 and 1.0")
		}
	}

	if c.Health.Enabled && c.Health.Address == "" {
		return fmt.Errorf("health.address cannot be empty when health is enabled")
	}

	// Webhook validation (only if enabled)
	if c.Webhook.Enabled {
		if c.Webhook.QueueSize < 10 {
			return fmt.Errorf("webhook.queue_size must be at least 10")
		}
		if c.Webhook.DropPolicy != "oldest" && c.Webhook.DropPolicy != "newest" {
			return fmt.Errorf("webhook.drop_policy must be 'oldest' or 'newest'")
		}
		if c.Webhook.Workers < 1 {
			return fmt.Errorf("webhook.workers must be at least 1")
		}
		if c.Webhook.ShutdownTimeout < time.Second {
			return fmt.Errorf("webhook.shutdown_timeout must be at least 1 second")
		}
		if c.Webhook.Defaults.Timeout < time.Second {
			return fmt.Errorf("webhook.defaults.timeout must be at least 1 second")
		}
		if c.Webhook.Defaults.Retry.MaxAttempts < 1 {
			return fmt.Errorf("webhook.defaults.retry.max_attempts must be at least 1")
		}
		if c.Webhook.Defaults.Retry.Multiplier < 1.0 {
			return fmt.Errorf("webhook.defaults.retry.multiplier must be at least 1.0")
		}
		if c.Webhook.Defaults.CircuitBreaker.FailureThreshold < 1 {
			return fmt.Errorf("webhook.defaults.circuit_breaker.failure_threshold must be at least 1")
		}

		for i, endpoint := range c.Webhook.Endpoints {
			if endpoint.Name == "" {
				return fmt.Errorf("webhook.endpoints[%d].name cannot be empty", i)
			}
			if endpoint.Type != "http" {
				return fmt.Errorf("webhook.endpoints[%d].type must be 'http'", i)
			}
			if endpoint.URL == "" {
				return fmt.Errorf("webhook.endpoints[%d].url cannot be empty", i)
			}
			if endpoint.RateLimit < 0 || endpoint.RateBurst < 0 {
				return fmt.Errorf("webhook.endpoints[%d] rate_limit and rate_burst cannot be negative", i)
			}
			for j, filter := range endpoint.TopicFilters {
				if err := topics.ValidateTopicFilter(filter); err != nil {
					return fmt.Errorf("webhook.endpoints[%d].topic_filters[%d]: %w", i, j, err)
				}
			}
		}
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
