// Package telemetry sets up OpenTelemetry trace and metric export for
// marcopolo runs.
//
// Export is off by default. When enabled, spans and metrics produced by the
// pipeline are sent to an OTLP collector over gRPC or HTTP:
//
//	prov, err := telemetry.New(ctx, &cfg.Telemetry)
//	defer prov.Shutdown(ctx)
//	tel, err := pipeline.NewTelemetry(prov.Meter(name), prov.Tracer(name))
package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Protocols accepted by Config.Protocol.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config holds telemetry export configuration.
type Config struct {
	Enabled         bool          `koanf:"enabled" json:"enabled"`
	Endpoint        string        `koanf:"endpoint" json:"endpoint"`
	Protocol        string        `koanf:"protocol" json:"protocol"`
	Insecure        bool          `koanf:"insecure" json:"insecure"`
	ServiceName     string        `koanf:"service_name" json:"service_name"`
	SampleRate      float64       `koanf:"sample_rate" json:"sample_rate"`
	ExportInterval  time.Duration `koanf:"export_interval" json:"export_interval"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

// NewDefaultConfig returns defaults for a local collector. Export stays
// disabled until Enabled is set.
func NewDefaultConfig() Config {
	return Config{
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		Insecure:        true,
		ServiceName:     "marcopolo",
		SampleRate:      1.0,
		ExportInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return fmt.Errorf("telemetry.protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("telemetry.service_name is required when telemetry is enabled")
	}
	if c.Insecure && !isLocalEndpoint(c.Endpoint) {
		return fmt.Errorf("telemetry.insecure is only allowed for local endpoints, got %q", c.Endpoint)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %v", c.SampleRate)
	}
	if c.ExportInterval <= 0 {
		return fmt.Errorf("telemetry.export_interval must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("telemetry.shutdown_timeout must be positive")
	}
	return nil
}

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

// stripScheme removes http:// or https://; the HTTP exporters expect
// host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
