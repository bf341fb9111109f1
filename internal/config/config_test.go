package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "empty manifest",
			mutate:  func(c *Config) { c.Library.ManifestFile = "" },
			wantErr: "library.manifest_file is required",
		},
		{
			name:    "manifest with separator",
			mutate:  func(c *Config) { c.Library.ManifestFile = "lib/imports.py" },
			wantErr: "bare file name",
		},
		{
			name:    "extension without dot",
			mutate:  func(c *Config) { c.Library.Extension = "py" },
			wantErr: "library.extension",
		},
		{
			name:    "no workers",
			mutate:  func(c *Config) { c.Dispatch.Workers = 0 },
			wantErr: "dispatch.workers",
		},
		{
			name:    "negative queue",
			mutate:  func(c *Config) { c.Dispatch.QueueSize = -1 },
			wantErr: "dispatch.queue_size",
		},
		{
			name:    "watch without interval",
			mutate:  func(c *Config) { c.Watch.RefreshInterval = 0 },
			wantErr: "watch.refresh_interval",
		},
		{
			name: "disabled watch skips interval check",
			mutate: func(c *Config) {
				c.Watch.Enabled = false
				c.Watch.RefreshInterval = 0
			},
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	assert.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, "250ms", d.Duration().String())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
