package storage

import (
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the flat string map handed to backend factories. Values come
// from config files, environment and --backend-opt flags, so every accessor
// parses on read and reports failures as *ConfigError tagged with backend.
type Config map[string]string

// Merge returns a new Config holding defaults overlaid with explicit values.
// Empty explicit values do not mask defaults.
func Merge(defaults, explicit map[string]string) Config {
	out := make(Config, len(defaults)+len(explicit))
	maps.Copy(out, defaults)
	for k, v := range explicit {
		if v == "" {
			if _, ok := out[k]; ok {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (c Config) lookup(key string) (string, bool) {
	v, ok := c[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// String returns the value for key, or def when unset or empty.
func (c Config) String(key, def string) string {
	if v, ok := c.lookup(key); ok {
		return v
	}
	return def
}

// Required returns the value for key or a ConfigError naming backend.
func (c Config) Required(backend, key string) (string, error) {
	v, ok := c.lookup(key)
	if !ok {
		return "", NewConfigError(backend, key, "cannot be empty")
	}
	return v, nil
}

// Bool accepts true/false, 1/0 and yes/no in any case.
func (c Config) Bool(backend, key string, def bool) (bool, error) {
	v, ok := c.lookup(key)
	if !ok {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, NewConfigErrorWithValue(backend, key, v, "must be a boolean (true/false, 1/0, yes/no)")
}

// Int parses a base-10 integer.
func (c Config) Int(backend, key string, def int) (int, error) {
	v, ok := c.lookup(key)
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Backend: backend, Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return i, nil
}

// Int64 parses a base-10 64-bit integer.
func (c Config) Int64(backend, key string, def int64) (int64, error) {
	v, ok := c.lookup(key)
	if !ok {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &ConfigError{Backend: backend, Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return i, nil
}

// Duration accepts Go duration strings ("5s", "1m30s") or plain integer seconds.
func (c Config) Duration(backend, key string, def time.Duration) (time.Duration, error) {
	v, ok := c.lookup(key)
	if !ok {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, NewConfigErrorWithValue(backend, key, v, "must be a duration (e.g. '5s', '1m30s') or integer seconds")
}

// FileMode parses an octal permission string such as "0700".
func (c Config) FileMode(backend, key string, def os.FileMode) (os.FileMode, error) {
	v, ok := c.lookup(key)
	if !ok {
		return def, nil
	}
	m, err := strconv.ParseUint(v, 8, 32)
	if err != nil || m > 0o777 {
		return 0, NewConfigErrorWithValue(backend, key, v, "must be an octal permission string (e.g. 0700)")
	}
	return os.FileMode(m), nil
}

// Path returns the value for key with ~ expanded, or def expanded.
func (c Config) Path(key, def string) string {
	return ExpandPath(c.String(key, def))
}

// ExpandPath expands a leading ~/ to the user's home directory and cleans the path.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return filepath.Clean(path)
}
