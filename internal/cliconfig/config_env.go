package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (MIGCHAN_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("uri", os.Getenv("MIGCHAN_URI"), &cfg.URI)
	s.setString("log-level", os.Getenv("MIGCHAN_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("address-file", os.Getenv("MIGCHAN_ADDRESS_FILE"), &cfg.AddressFile)

	if err := s.setDuration("connect-timeout", os.Getenv("MIGCHAN_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("MIGCHAN_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("multifd-channels", os.Getenv("MIGCHAN_MULTIFD_CHANNELS"), &cfg.MultifdChannels); err != nil {
		return err
	}

	s.setBoolFromString("multifd", os.Getenv("MIGCHAN_MULTIFD"), &cfg.Multifd)
	s.setBoolFromString("postcopy-preempt", os.Getenv("MIGCHAN_POSTCOPY_PREEMPT"), &cfg.PostcopyPreempt)
	s.setBoolFromString("zero-copy-send", os.Getenv("MIGCHAN_ZERO_COPY_SEND"), &cfg.ZeroCopySend)

	return nil
}
