package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// isolate keeps Load from picking up config files or env from the host.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, EnvPrefix+"_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load with no config file should not error, got: %v", err)
	}

	if cfg.BlockSize != 65536 {
		t.Errorf("BlockSize = %d, want 65536", cfg.BlockSize)
	}
	if cfg.Algorithm != "sha1" {
		t.Errorf("Algorithm = %q, want sha1", cfg.Algorithm)
	}
	if cfg.Storage.Backend != "fs" {
		t.Errorf("Storage.Backend = %q, want fs", cfg.Storage.Backend)
	}
	if cfg.Storage.Path != "" {
		t.Errorf("Storage.Path = %q, want empty", cfg.Storage.Path)
	}
	if cfg.Output != "text" {
		t.Errorf("Output = %q, want text", cfg.Output)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.Observability.LogFormat)
	}
	if cfg.Observability.OTLPProtocol != "http" {
		t.Errorf("OTLPProtocol = %q, want http", cfg.Observability.OTLPProtocol)
	}
	if cfg.Observability.ServiceName != "scs" {
		t.Errorf("ServiceName = %q, want scs", cfg.Observability.ServiceName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "scs.yaml")
	content := `
block_size: 10
algorithm: sha256
storage:
  backend: s3
  config:
    bucket: my-bucket
    region: eu-west-1
observability:
  log_format: json
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BlockSize != 10 {
		t.Errorf("BlockSize = %d, want 10", cfg.BlockSize)
	}
	if cfg.Algorithm != "sha256" {
		t.Errorf("Algorithm = %q, want sha256", cfg.Algorithm)
	}
	if cfg.Storage.Backend != "s3" {
		t.Errorf("Storage.Backend = %q, want s3", cfg.Storage.Backend)
	}
	if cfg.Storage.Config["bucket"] != "my-bucket" {
		t.Errorf("Storage.Config[bucket] = %q, want my-bucket", cfg.Storage.Config["bucket"])
	}
	if cfg.Observability.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.Observability.LogFormat)
	}
	// Untouched keys keep their defaults.
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestLoadSearchPath(t *testing.T) {
	isolate(t)

	if err := os.WriteFile("config.json", []byte(`{"algorithm": "blake3"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Algorithm != "blake3" {
		t.Errorf("Algorithm = %q, want blake3 from ./config.json", cfg.Algorithm)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load with a missing explicit config file should error")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "scs.yaml")
	if err := os.WriteFile(path, []byte("block_size: 10\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCS_BLOCK_SIZE", "20")
	t.Setenv("SCS_STORAGE_BACKEND", "memory")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BlockSize != 20 {
		t.Errorf("BlockSize = %d, want 20 from env", cfg.BlockSize)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory from env", cfg.Storage.Backend)
	}
}

func TestBindFlags(t *testing.T) {
	isolate(t)

	cmd := &cobra.Command{Use: "scs"}
	v := viper.New()
	BindFlags(cmd, v)

	t.Setenv("SCS_ALGORITHM", "md5")
	err := cmd.PersistentFlags().Parse([]string{
		"-b", "10",
		"-a", "sha512",
		"-s", "/tmp/store",
		"--backend", "badger",
		"-o", "json",
		"--log-format", "json",
		"--metrics-file", "/tmp/scs.prom",
	})
	if err != nil {
		t.Fatalf("Parse flags: %v", err)
	}

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BlockSize != 10 {
		t.Errorf("BlockSize = %d, want 10", cfg.BlockSize)
	}
	if cfg.Algorithm != "sha512" {
		t.Errorf("Algorithm = %q, want sha512 (flag beats env)", cfg.Algorithm)
	}
	if cfg.Storage.Path != "/tmp/store" {
		t.Errorf("Storage.Path = %q, want /tmp/store", cfg.Storage.Path)
	}
	if cfg.Storage.Backend != "badger" {
		t.Errorf("Storage.Backend = %q, want badger", cfg.Storage.Backend)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if cfg.Observability.MetricsFile != "/tmp/scs.prom" {
		t.Errorf("MetricsFile = %q, want /tmp/scs.prom", cfg.Observability.MetricsFile)
	}
}

func TestBindFlagsUnsetKeepDefaults(t *testing.T) {
	isolate(t)

	cmd := &cobra.Command{Use: "scs"}
	v := viper.New()
	BindFlags(cmd, v)
	if err := cmd.PersistentFlags().Parse(nil); err != nil {
		t.Fatalf("Parse flags: %v", err)
	}

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BlockSize != 65536 {
		t.Errorf("BlockSize = %d, want default 65536", cfg.BlockSize)
	}
	if cfg.Storage.Backend != "fs" {
		t.Errorf("Storage.Backend = %q, want default fs", cfg.Storage.Backend)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		BlockSize: 10,
		Algorithm: "sha1",
		Storage:   StorageConfig{Backend: "fs"},
		Observability: ObservabilityConfig{
			LogFormat: "text",
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero block size", func(c *Config) { c.BlockSize = 0 }, "block_size"},
		{"negative block size", func(c *Config) { c.BlockSize = -1 }, "block_size"},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "crc32" }, "crc32"},
		{"no backend", func(c *Config) { c.Storage.Backend = "" }, "storage.backend"},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestBackendConfig(t *testing.T) {
	tests := []struct {
		name    string
		storage StorageConfig
		want    map[string]string
	}{
		{
			name:    "no path",
			storage: StorageConfig{Backend: "memory"},
			want:    map[string]string{},
		},
		{
			name:    "path injected",
			storage: StorageConfig{Backend: "fs", Path: "/data"},
			want:    map[string]string{"path": "/data"},
		},
		{
			name: "explicit path wins",
			storage: StorageConfig{
				Backend: "badger",
				Path:    "/data",
				Config:  map[string]string{"path": "/db", "sync_writes": "false"},
			},
			want: map[string]string{"path": "/db", "sync_writes": "false"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Storage: tt.storage}
			got := cfg.BackendConfig()
			if len(got) != len(tt.want) {
				t.Fatalf("BackendConfig() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("BackendConfig()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}

	// The stored map is not aliased.
	cfg := Config{Storage: StorageConfig{Path: "/x", Config: map[string]string{}}}
	cfg.BackendConfig()["path"] = "/y"
	if len(cfg.Storage.Config) != 0 {
		t.Error("BackendConfig() should return a copy")
	}
}

func TestObservabilityOptions(t *testing.T) {
	cfg := Config{Observability: ObservabilityConfig{
		LogLevel:     "debug",
		LogFormat:    "json",
		MetricsFile:  "/tmp/m.prom",
		OTLPEndpoint: "localhost:4318",
		OTLPProtocol: "http",
		ServiceName:  "scs",
	}}
	o := cfg.ObservabilityOptions()
	if o.LogLevel != "debug" || o.LogFormat != "json" || o.MetricsFile != "/tmp/m.prom" {
		t.Errorf("ObservabilityOptions() = %+v", o)
	}
	if o.OTLPEndpoint != "localhost:4318" || o.ServiceName != "scs" {
		t.Errorf("ObservabilityOptions() = %+v", o)
	}
}

func TestSearchPaths(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	paths := SearchPaths()
	want := []string{".", "/home/tester/.config/scs", "/etc/scs"}
	if len(paths) != len(want) {
		t.Fatalf("SearchPaths() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("SearchPaths()[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}
