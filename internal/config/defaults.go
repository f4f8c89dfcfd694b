// Package config loads scs settings from flags, environment and config files.
package config

import (
	"os"
	"path/filepath"
)

// Defaults contains the built-in values applied before any other source.
var Defaults = struct {
	BlockSize      int
	Algorithm      string
	Backend        string
	LogLevel       string
	LogFormat      string
	OTLPProtocol   string
	ServiceName    string
	ServiceVersion string
	Output         string
}{
	BlockSize:      64 * 1024,
	Algorithm:      "sha1",
	Backend:        "fs",
	LogLevel:       "info",
	LogFormat:      "text",
	OTLPProtocol:   "http",
	ServiceName:    "scs",
	ServiceVersion: "dev",
	Output:         "text",
}

// EnvPrefix is the prefix for environment overrides (SCS_BLOCK_SIZE, ...).
const EnvPrefix = "SCS"

// SearchPaths returns the directories searched for config.{yaml,toml,json}.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scs"))
	}
	return append(paths, "/etc/scs")
}
