package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/funclibd/internal/config"
)

// Resource attribute keys describing the host's library layout.
const (
	AttrManifestFile = "funclib.manifest_file"
	AttrExtension    = "funclib.extension"
	AttrWorkers      = "funclib.dispatch.workers"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled         bool
	Endpoint        string
	Protocol        string // "grpc" or "http/protobuf"
	Insecure        bool   // plaintext, local collectors only
	ServiceName     string
	ServiceVersion  string
	SamplingRate    float64 // 0.0-1.0, applied to root spans
	MetricsInterval time.Duration
	ShutdownTimeout time.Duration

	// Attributes are added to the resource of every span and metric.
	Attributes map[string]string
}

// NewDefaultConfig returns telemetry defaults. Telemetry is off unless a
// collector is configured.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        "grpc",
		Insecure:        true,
		ServiceName:     "funclibd",
		ServiceVersion:  "dev",
		SamplingRate:    1.0,
		MetricsInterval: 15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromAppConfig builds telemetry settings for a host running app. The
// library layout becomes resource attributes, so exported data says which
// manifest a host manages.
func FromAppConfig(app *config.Config, version string) *Config {
	cfg := NewDefaultConfig()
	tc := app.Telemetry

	cfg.Enabled = tc.Enabled
	cfg.Insecure = tc.Insecure
	cfg.SamplingRate = tc.SamplingRate
	if tc.Endpoint != "" {
		cfg.Endpoint = tc.Endpoint
	}
	if tc.Protocol != "" {
		cfg.Protocol = tc.Protocol
	}
	if tc.ServiceName != "" {
		cfg.ServiceName = tc.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	if tc.MetricsInterval > 0 {
		cfg.MetricsInterval = tc.MetricsInterval.Duration()
	}
	if tc.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = tc.ShutdownTimeout.Duration()
	}

	cfg.Attributes = map[string]string{
		AttrManifestFile: app.Library.ManifestFile,
		AttrExtension:    app.Library.Extension,
		AttrWorkers:      fmt.Sprint(app.Dispatch.Workers),
	}
	return cfg
}

// Validate checks configuration for errors. A disabled config is always
// valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	case c.ServiceName == "":
		return fmt.Errorf("service_name is required when telemetry is enabled")
	case c.Protocol != "grpc" && c.Protocol != "http/protobuf":
		return fmt.Errorf("protocol must be 'grpc' or 'http/protobuf', got %q", c.Protocol)
	case c.Insecure && !isLocalEndpoint(c.Endpoint):
		return fmt.Errorf("insecure export to %s is not allowed; use TLS or a local collector", c.Endpoint)
	case c.SamplingRate < 0 || c.SamplingRate > 1:
		return fmt.Errorf("sampling rate must be between 0 and 1, got %g", c.SamplingRate)
	case c.MetricsInterval <= 0:
		return fmt.Errorf("metrics interval must be positive")
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("shutdown timeout must be positive")
	}
	for k := range c.Attributes {
		if k == "" {
			return fmt.Errorf("resource attribute key cannot be empty")
		}
	}
	return nil
}

// isLocalEndpoint reports whether endpoint names the loopback host.
func isLocalEndpoint(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https://; exporters want host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
