package config

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SetDefaults configures the built-in defaults on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("block_size", Defaults.BlockSize)
	v.SetDefault("algorithm", Defaults.Algorithm)
	v.SetDefault("output", Defaults.Output)

	v.SetDefault("storage.backend", Defaults.Backend)
	v.SetDefault("storage.path", "")

	v.SetDefault("observability.log_level", Defaults.LogLevel)
	v.SetDefault("observability.log_format", Defaults.LogFormat)
	v.SetDefault("observability.metrics_file", "")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", Defaults.OTLPProtocol)
	v.SetDefault("observability.service_name", Defaults.ServiceName)
	v.SetDefault("observability.service_version", Defaults.ServiceVersion)
}

// BindFlags registers the persistent store flags on cmd and binds them to v.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()

	f.IntP("blocksize", "b", 0, "block size in bytes (default 65536)")
	f.StringP("algorithm", "a", "", "digest algorithm (default sha1)")
	f.StringP("storage", "s", "", "storage path for path-based backends (default ~/.scs)")
	f.String("backend", "", "storage backend (default fs)")
	f.StringP("output", "o", "", "report format (text, json, markdown)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")
	f.String("metrics-file", "", "write prometheus metrics to this file on exit")
	f.String("config", "", "config file path")

	_ = v.BindPFlag("block_size", f.Lookup("blocksize"))
	_ = v.BindPFlag("algorithm", f.Lookup("algorithm"))
	_ = v.BindPFlag("storage.path", f.Lookup("storage"))
	_ = v.BindPFlag("storage.backend", f.Lookup("backend"))
	_ = v.BindPFlag("output", f.Lookup("output"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("observability.metrics_file", f.Lookup("metrics-file"))
}

// Load applies defaults, reads env and the config file, and unmarshals the
// merged result. A missing config file is only an error when configFile is
// set explicitly.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
