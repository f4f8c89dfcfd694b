package config

import (
	"fmt"
	"maps"

	"github.com/gezibash/scs/internal/digest"
	"github.com/gezibash/scs/internal/observability"
)

// Config is the merged scs configuration.
type Config struct {
	BlockSize     int                 `mapstructure:"block_size"`
	Algorithm     string              `mapstructure:"algorithm"`
	Output        string              `mapstructure:"output"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// StorageConfig selects the backend adapter and its options.
type StorageConfig struct {
	Backend string            `mapstructure:"backend"`
	Path    string            `mapstructure:"path"`
	Config  map[string]string `mapstructure:"config"`
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsFile    string `mapstructure:"metrics_file"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// Validate rejects settings the store cannot run with.
func (c Config) Validate() error {
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	if _, err := digest.New(c.Algorithm); err != nil {
		return err
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage.backend must be set")
	}
	switch c.Observability.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("observability.log_format must be text or json, got %q", c.Observability.LogFormat)
	}
	return nil
}

// BackendConfig returns the adapter options with storage.path injected as
// "path" unless storage.config already sets it.
func (c Config) BackendConfig() map[string]string {
	out := make(map[string]string, len(c.Storage.Config)+1)
	maps.Copy(out, c.Storage.Config)
	if _, ok := out["path"]; !ok && c.Storage.Path != "" {
		out["path"] = c.Storage.Path
	}
	return out
}

// ObservabilityOptions converts the settings for observability.New.
func (c Config) ObservabilityOptions() observability.Config {
	o := c.Observability
	return observability.Config{
		LogLevel:       o.LogLevel,
		LogFormat:      o.LogFormat,
		MetricsFile:    o.MetricsFile,
		OTLPEndpoint:   o.OTLPEndpoint,
		OTLPProtocol:   o.OTLPProtocol,
		ServiceName:    o.ServiceName,
		ServiceVersion: o.ServiceVersion,
	}
}
