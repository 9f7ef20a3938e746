// Package config loads the on-disk, human-edited daemon configuration and
// resolves the per-user state directory the core writes its runtime files
// into (spec §6 filesystem layout).
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's human-edited configuration file (config.yaml in
// the state directory).
type Config struct {
	LocalBindAddr string `yaml:"local_bind_addr"`

	RelayURLs []string `yaml:"relay_urls"`

	MaxConnections int `yaml:"max_connections"`
	MaxPerIP       int `yaml:"max_per_ip"`

	DebounceWindowMS int `yaml:"debounce_window_ms"`

	ActivityPrefix int `yaml:"activity_prefix"`

	// AuthToken, when set, is required on every client's hello message
	// before welcome.authenticated is true. Empty by default: a local
	// daemon bound to 127.0.0.1 has no built-in need for it.
	AuthToken string `yaml:"auth_token,omitempty"`
}

// Default returns a Config populated with the values named throughout the
// design (admission caps, debounce window, activity prefix).
func Default() Config {
	return Config{
		LocalBindAddr:    "127.0.0.1:7777",
		MaxConnections:   50,
		MaxPerIP:         5,
		DebounceWindowMS: 500,
		ActivityPrefix:   120,
	}
}

// DebounceWindow returns the configured debounce window as a time.Duration.
func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowMS) * time.Millisecond
}

// StateDir returns the per-user config directory (~/.sessiond on Unix,
// the profile equivalent on Windows), creating it if necessary.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".sessiond")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// Load reads and parses config.yaml from the state directory, falling
// back to Default() if the file doesn't exist yet.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
