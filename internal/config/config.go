// Package config provides configuration loading for funclibd.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file,
// and FUNCLIBD_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete funclibd configuration.
type Config struct {
	Library   LibraryConfig   `koanf:"library"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Watch     WatchConfig     `koanf:"watch"`
	RunConfig RunConfigConfig `koanf:"runconfig"`
	Hooks     HooksConfig     `koanf:"hooks"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// LibraryConfig controls where function files and the manifest live.
type LibraryConfig struct {
	ManifestFile string `koanf:"manifest_file"` // Aggregator file name, relative to the project root
	Extension    string `koanf:"extension"`     // Function file extension, including the dot
}

// DispatchConfig sizes the background worker pool.
type DispatchConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// WatchConfig controls the project directory watcher.
type WatchConfig struct {
	Enabled         bool     `koanf:"enabled"`
	RefreshInterval Duration `koanf:"refresh_interval"` // Minimum spacing between watcher-triggered refreshes
	Burst           int      `koanf:"burst"`
	IgnoreFiles     []string `koanf:"ignore_files"` // gitignore-style files read from the project root
}

// RunConfigConfig controls python path updates on run configurations.
type RunConfigConfig struct {
	ExtraPythonPath []string `koanf:"extra_python_path"`
}

// HooksConfig lists lifecycle hooks to switch off, by name.
type HooksConfig struct {
	Disabled []string `koanf:"disabled"`
}

// LoggingConfig holds the user-facing subset of logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Endpoint        string   `koanf:"endpoint"`
	Protocol        string   `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure        bool     `koanf:"insecure"`
	ServiceName     string   `koanf:"service_name"`
	SamplingRate    float64  `koanf:"sampling_rate"`
	MetricsInterval Duration `koanf:"metrics_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// NewDefaultConfig returns the configuration used when nothing is overridden.
func NewDefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			ManifestFile: "function_manager.py",
			Extension:    ".py",
		},
		Dispatch: DispatchConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Watch: WatchConfig{
			Enabled:         true,
			RefreshInterval: Duration(500 * time.Millisecond),
			Burst:           1,
			IgnoreFiles:     []string{".gitignore"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			ServiceName:     "funclibd",
			SamplingRate:    1.0,
			MetricsInterval: Duration(15 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - the manifest file name is empty or contains a path separator
//   - the extension does not start with a dot
//   - the worker pool has no workers or a negative queue
//   - the watcher is enabled with a non-positive refresh interval or burst
//   - the logging format is neither json nor console
func (c *Config) Validate() error {
	if c.Library.ManifestFile == "" {
		return errors.New("library.manifest_file is required")
	}
	if strings.ContainsRune(c.Library.ManifestFile, filepath.Separator) || strings.Contains(c.Library.ManifestFile, "/") {
		return fmt.Errorf("library.manifest_file must be a bare file name, got %q", c.Library.ManifestFile)
	}
	if !strings.HasPrefix(c.Library.Extension, ".") {
		return fmt.Errorf("library.extension must start with '.', got %q", c.Library.Extension)
	}

	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("dispatch.workers must be >= 1, got %d", c.Dispatch.Workers)
	}
	if c.Dispatch.QueueSize < 0 {
		return fmt.Errorf("dispatch.queue_size must be >= 0, got %d", c.Dispatch.QueueSize)
	}

	if c.Watch.Enabled {
		if c.Watch.RefreshInterval.Duration() <= 0 {
			return errors.New("watch.refresh_interval must be positive when watching is enabled")
		}
		if c.Watch.Burst < 1 {
			return fmt.Errorf("watch.burst must be >= 1, got %d", c.Watch.Burst)
		}
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}
