package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	URI             string `toml:"uri"`
	Multifd         *bool  `toml:"multifd"`
	MultifdChannels int    `toml:"multifd_channels"`
	PostcopyPreempt *bool  `toml:"postcopy_preempt"`
	ZeroCopySend    *bool  `toml:"zero_copy_send"`
	ConnectTimeout  string `toml:"connect_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	LogLevel        string `toml:"log_level"`
	AddressFile     string `toml:"address_file"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.migchan/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".migchan", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("uri", fc.URI, &cfg.URI)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("address-file", fc.AddressFile, &cfg.AddressFile)

	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setInt("multifd-channels", fc.MultifdChannels, &cfg.MultifdChannels)

	s.setBool("multifd", fc.Multifd, &cfg.Multifd)
	s.setBool("postcopy-preempt", fc.PostcopyPreempt, &cfg.PostcopyPreempt)
	s.setBool("zero-copy-send", fc.ZeroCopySend, &cfg.ZeroCopySend)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
