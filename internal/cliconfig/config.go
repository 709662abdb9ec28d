package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/migchan/internal/domain"
)

// Defaults applied by DefaultConfig.
const (
	DefaultMultifdChannels = 2
	DefaultConnectTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultLogLevel        = "info"
)

// Config holds CLI configuration for migchan.
type Config struct {
	URI string

	Multifd         bool
	MultifdChannels int
	PostcopyPreempt bool
	ZeroCopySend    bool

	ConnectTimeout  time.Duration
	ShutdownTimeout time.Duration

	LogLevel    string
	AddressFile string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MultifdChannels: DefaultMultifdChannels,
		ConnectTimeout:  DefaultConnectTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        DefaultLogLevel,
	}
}

// Capabilities returns the migration policy inputs described by the config.
func (c Config) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		Multifd:         c.Multifd,
		MultifdChannels: c.MultifdChannels,
		PostcopyPreempt: c.PostcopyPreempt,
		ZeroCopySend:    c.ZeroCopySend,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: uri is required", domain.ErrInvalidConfig)
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %w", domain.ErrInvalidConfig, err)
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", domain.ErrInvalidConfig)
	}

	return c.Capabilities().Validate()
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
