// Package config loads and validates waggle.yml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WaggleConfig represents the top-level waggle.yml configuration.
type WaggleConfig struct {
	Version   string          `yaml:"version"`
	Workspace string          `yaml:"workspace"`
	RedisURL  string          `yaml:"redis_url"`
	User      UserConfig      `yaml:"user"`
	Rollover  *RolloverConfig `yaml:"rollover,omitempty"`
	Gateway   *GatewayConfig  `yaml:"gateway,omitempty"`
}

// UserConfig is the local user's identity and display metadata, injected
// into every broadcaster.
type UserConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Initials string `yaml:"initials,omitempty"`
	Color    string `yaml:"color,omitempty"`
	Avatar   string `yaml:"avatar,omitempty"`
}

// RolloverConfig is the weekly transition trigger: day of week (0=Sunday
// through 6=Saturday) and hour of day (0-23).
type RolloverConfig struct {
	Weekday *int `yaml:"weekday,omitempty"`
	Hour    *int `yaml:"hour,omitempty"`
}

// GatewayConfig configures the optional websocket gateway.
type GatewayConfig struct {
	Listen         string   `yaml:"listen,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

const (
	// DefaultRolloverWeekday is Friday.
	DefaultRolloverWeekday = 5

	// DefaultRolloverHour is 17:00.
	DefaultRolloverHour = 17

	// DefaultGatewayListen is the gateway's default bind address.
	DefaultGatewayListen = ":8090"
)

// Validate performs strict validation on the configuration and applies
// defaults for optional sections.
func (c *WaggleConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}

	if c.RedisURL == "" {
		return fmt.Errorf("redis_url is required")
	}

	if c.User.ID == "" {
		return fmt.Errorf("user.id is required")
	}

	if c.User.Name == "" {
		return fmt.Errorf("user.name is required")
	}

	// Apply rollover defaults if the section (or a field) is missing
	if c.Rollover == nil {
		c.Rollover = &RolloverConfig{}
	}
	if c.Rollover.Weekday == nil {
		weekday := DefaultRolloverWeekday
		c.Rollover.Weekday = &weekday
	}
	if c.Rollover.Hour == nil {
		hour := DefaultRolloverHour
		c.Rollover.Hour = &hour
	}

	if *c.Rollover.Weekday < 0 || *c.Rollover.Weekday > 6 {
		return fmt.Errorf("rollover.weekday must be 0-6 (0=Sunday), got %d", *c.Rollover.Weekday)
	}
	if *c.Rollover.Hour < 0 || *c.Rollover.Hour > 23 {
		return fmt.Errorf("rollover.hour must be 0-23, got %d", *c.Rollover.Hour)
	}

	if c.Gateway != nil && c.Gateway.Listen == "" {
		c.Gateway.Listen = DefaultGatewayListen
	}

	return nil
}

// Load reads and validates waggle.yml from the specified path.
func Load(path string) (*WaggleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config WaggleConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
