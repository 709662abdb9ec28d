package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"MIGCHAN_URI":              "tcp:10.0.0.1:4444",
				"MIGCHAN_MULTIFD":          "true",
				"MIGCHAN_MULTIFD_CHANNELS": "8",
				"MIGCHAN_ZERO_COPY_SEND":   "1",
				"MIGCHAN_CONNECT_TIMEOUT":  "5s",
				"MIGCHAN_SHUTDOWN_TIMEOUT": "1m",
				"MIGCHAN_LOG_LEVEL":        "debug",
				"MIGCHAN_ADDRESS_FILE":     "/run/migchan/listen.json",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				URI:             "tcp:10.0.0.1:4444",
				Multifd:         true,
				MultifdChannels: 8,
				ZeroCopySend:    true,
				ConnectTimeout:  5 * time.Second,
				ShutdownTimeout: time.Minute,
				LogLevel:        "debug",
				AddressFile:     "/run/migchan/listen.json",
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"MIGCHAN_URI":       "tcp:10.0.0.1:4444",
				"MIGCHAN_LOG_LEVEL": "warn",
			},
			changed: map[string]bool{"uri": true},
			initial: Config{URI: "unix:/flag.sock"},
			expected: Config{
				URI:      "unix:/flag.sock",
				LogLevel: "warn",
			},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"MIGCHAN_CONNECT_TIMEOUT": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid int",
			envVars: map[string]string{
				"MIGCHAN_MULTIFD_CHANNELS": "many",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "handles bool 'false' as false",
			envVars: map[string]string{
				"MIGCHAN_POSTCOPY_PREEMPT": "false",
			},
			changed:  map[string]bool{},
			initial:  Config{PostcopyPreempt: true},
			expected: Config{PostcopyPreempt: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	fileConf := FileConfig{
		URI:             "tcp:file:4444",
		LogLevel:        "error",
		MultifdChannels: 3,
		Multifd:         &trueVal,
	}

	t.Setenv("MIGCHAN_URI", "tcp:env:4444")
	t.Setenv("MIGCHAN_LOG_LEVEL", "debug")

	changed := map[string]bool{
		"uri": true,
	}
	cfg := Config{URI: "tcp:cli:4444"}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.URI != "tcp:cli:4444" {
		t.Errorf("URI = %v, want tcp:cli:4444 (CLI should win)", cfg.URI)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug (env should override file)", cfg.LogLevel)
	}
	if !cfg.Multifd || cfg.MultifdChannels != 3 {
		t.Errorf("multifd = %v/%d, want true/3 (file should set)", cfg.Multifd, cfg.MultifdChannels)
	}
}
