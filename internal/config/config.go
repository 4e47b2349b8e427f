// Package config holds the worker's immutable startup configuration, per
// spec.md §3. YAML loading, defaulting, and Validate follow
// nf/nrf/internal/config.Config's pattern (Load falls back to
// DefaultConfig on a missing file; Validate checks structural invariants).
// ConnectionStyle is the sum type spec.md §9 calls for: a tagged variant
// with disjoint inner configs, branched once at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PLMN is the worker's 3-byte PLMN identity, per spec.md §3.
type PLMN struct {
	MCC string `yaml:"mcc"`
	MNC string `yaml:"mnc"`
}

// ConnectionStyleKind discriminates the two ConnectionStyle variants.
type ConnectionStyleKind string

const (
	ConnectionStyleAutonomous  ConnectionStyleKind = "autonomous"
	ConnectionStyleCoordinated ConnectionStyleKind = "coordinated"
)

// ConnectionControlConfig configures the Autonomous variant: the embedded
// coordinator needs no further configuration beyond being enabled.
type ConnectionControlConfig struct{}

// WorkerConnectionManagementConfig configures the Coordinated variant: the
// HTTP base path of the external coordinator and this worker's own
// Connection API bind address.
type WorkerConnectionManagementConfig struct {
	CoordinatorBaseURL   string `yaml:"coordinator_base_url"`
	ConnectionAPIAddress string `yaml:"connection_api_address"`
}

// ConnectionStyle is the tagged union of spec.md §3: "exactly one style."
// Exactly one of Autonomous/Coordinated is non-nil; Kind names which.
type ConnectionStyle struct {
	Kind        ConnectionStyleKind               `yaml:"kind"`
	Autonomous  *ConnectionControlConfig          `yaml:"autonomous,omitempty"`
	Coordinated *WorkerConnectionManagementConfig  `yaml:"coordinated,omitempty"`
}

// Validate enforces "exactly one style".
func (c ConnectionStyle) Validate() error {
	switch c.Kind {
	case ConnectionStyleAutonomous:
		if c.Autonomous == nil {
			return fmt.Errorf("connection_style: kind is autonomous but autonomous config is absent")
		}
		if c.Coordinated != nil {
			return fmt.Errorf("connection_style: kind is autonomous but coordinated config is also present")
		}
	case ConnectionStyleCoordinated:
		if c.Coordinated == nil {
			return fmt.Errorf("connection_style: kind is coordinated but coordinated config is absent")
		}
		if c.Autonomous != nil {
			return fmt.Errorf("connection_style: kind is coordinated but autonomous config is also present")
		}
	default:
		return fmt.Errorf("connection_style: unknown kind %q", c.Kind)
	}
	return nil
}

// UEStoreConfig selects and configures the UE state store backend.
type UEStoreConfig struct {
	Backend      string `yaml:"backend"` // "memory" or "redis"
	RedisURL     string `yaml:"redis_url,omitempty"`
	TTLSeconds   int    `yaml:"ttl_seconds"`
	SweepSeconds int    `yaml:"sweep_seconds"`
}

// LoggingConfig mirrors nf/nrf/internal/config.LoggingConfig.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig mirrors nf/nrf/internal/config.MetricsConfig.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TracingConfig mirrors nf/nrf/internal/config.TracingConfig.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// ObservabilityConfig groups the ambient logging/metrics/tracing config.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// Config is the worker's full, immutable-after-startup configuration.
type Config struct {
	WorkerName       string           `yaml:"worker_name"`
	PLMN             PLMN             `yaml:"plmn"`
	GNBID            uint32           `yaml:"gnb_id"`
	IPAddress        string           `yaml:"ip_address"`
	F1BindAddress    string           `yaml:"f1_bind_address"`
	E1BindAddress    string           `yaml:"e1_bind_address"`
	// AMFAddress, when non-empty, makes the worker dial NG Setup at
	// startup instead of waiting for the Connection API's connect-amf
	// operation. Coordinated deployments typically leave this empty and
	// let the external coordinator decide when to connect.
	AMFAddress       string           `yaml:"amf_address,omitempty"`
	ConnectionStyle  ConnectionStyle  `yaml:"connection_style"`
	UEStore          UEStoreConfig    `yaml:"ue_store"`
	RefreshInterval  int              `yaml:"refresh_interval_seconds"`
	Observability    ObservabilityConfig `yaml:"observability"`
}

// Load loads configuration from a YAML file, returning DefaultConfig if
// the file does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks structural invariants, including the ConnectionStyle
// sum type's "exactly one style" requirement.
func (c *Config) Validate() error {
	if c.IPAddress == "" {
		return fmt.Errorf("ip_address is required")
	}
	if c.F1BindAddress == "" {
		return fmt.Errorf("f1_bind_address is required")
	}
	if c.E1BindAddress == "" {
		return fmt.Errorf("e1_bind_address is required")
	}
	if err := c.ConnectionStyle.Validate(); err != nil {
		return err
	}
	if c.UEStore.Backend != "memory" && c.UEStore.Backend != "redis" {
		return fmt.Errorf("ue_store.backend must be \"memory\" or \"redis\", got %q", c.UEStore.Backend)
	}
	if c.UEStore.Backend == "redis" && c.UEStore.RedisURL == "" {
		return fmt.Errorf("ue_store.redis_url is required when backend is \"redis\"")
	}
	return nil
}

// DefaultConfig returns a standalone Autonomous-mode default configuration
// with an in-memory UE store, used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		WorkerName:    "gnb-cu-cp-1",
		PLMN:          PLMN{MCC: "001", MNC: "01"},
		GNBID:         1,
		IPAddress:     "127.0.0.1",
		F1BindAddress: "0.0.0.0:38472",
		E1BindAddress: "0.0.0.0:38462",
		ConnectionStyle: ConnectionStyle{
			Kind:       ConnectionStyleAutonomous,
			Autonomous: &ConnectionControlConfig{},
		},
		UEStore: UEStoreConfig{
			Backend:      "memory",
			TTLSeconds:   3600,
			SweepSeconds: 30,
		},
		RefreshInterval: 10,
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "json"},
			Metrics: MetricsConfig{Enabled: true, Port: 9090},
			Tracing: TracingConfig{Enabled: false, Exporter: "otlp"},
		},
	}
}
