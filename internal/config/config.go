// Package config provides configuration loading and management for protonctl.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vpntools/protonctl/internal/paths"
	"gopkg.in/yaml.v3"
)

// Environment variables honored by Load. They take precedence over the
// config file; command-line flags take precedence over both.
const (
	EnvBypassDomains  = "PROTONCTL_BYPASS_DOMAINS"
	EnvWatchdogDomain = "PROTONCTL_WATCHDOG_DOMAIN"
	EnvSSSDDomain     = "PROTONCTL_SSSD_DOMAIN"
)

// Config represents the complete protonctl configuration.
type Config struct {
	// BypassDomains are domains whose resolved addresses must stay
	// reachable outside the tunnel.
	BypassDomains []string `yaml:"bypass_domains"`

	SSSD          SSSDConfig       `yaml:"sssd"`
	Watchdog      WatchdogConfig   `yaml:"watchdog"`
	Connection    ConnectionConfig `yaml:"connection"`
	Notifications bool             `yaml:"notifications"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// SSSDConfig configures identity-service domain discovery.
type SSSDConfig struct {
	// Enabled controls whether domain controllers discovered through
	// sssctl are added to the bypass routes.
	Enabled bool `yaml:"enabled"`
	// Domain restricts discovery to a single SSSD domain. Empty means
	// every domain sssctl reports.
	Domain string `yaml:"domain,omitempty"`
}

// WatchdogConfig configures the periodic connectivity watchdog.
type WatchdogConfig struct {
	// Domain is the critical domain whose resolvability keeps the
	// tunnel alive. Empty disables the watchdog.
	Domain string `yaml:"domain,omitempty"`
	// Probe enables a bounded TCP reachability probe after a
	// successful resolution. Probe failure is logged but non-fatal.
	Probe bool `yaml:"probe"`
	// ProbePort is the TCP port used by the probe.
	ProbePort int `yaml:"probe_port"`
	// Interval is the systemd timer cadence, e.g. "2m".
	Interval string `yaml:"interval"`
}

// ConnectionConfig configures the connection orchestrator.
type ConnectionConfig struct {
	// ProfileDir is scanned for the newest .ovpn profile. Empty uses
	// the user's Downloads directory.
	ProfileDir string `yaml:"profile_dir,omitempty"`
	// OpenVPNPath is the OpenVPN client binary.
	OpenVPNPath string `yaml:"openvpn_path"`
	// PollAttempts is how many times the log is inspected for a
	// terminal marker after launch.
	PollAttempts int `yaml:"poll_attempts"`
	// PollIntervalSeconds is the delay between poll attempts.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		BypassDomains: []string{},
		SSSD: SSSDConfig{
			Enabled: true,
		},
		Watchdog: WatchdogConfig{
			Probe:     true,
			ProbePort: 443,
			Interval:  "2m",
		},
		Connection: ConnectionConfig{
			OpenVPNPath:         "openvpn",
			PollAttempts:        10,
			PollIntervalSeconds: 3,
		},
		Notifications: true,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from the default config file and applies
// environment overrides. If the file doesn't exist, defaults are used and
// a default file is created.
func Load() (*Config, error) {
	cfg, err := LoadFromFile(paths.ConfigFile())
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromFile reads the configuration from the specified file path.
// If the file doesn't exist, it creates a default configuration file.
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.SaveToFile(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults and overlay with file values
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays environment variable overrides onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBypassDomains); v != "" {
		c.BypassDomains = SplitDomains(v)
	}
	if v := os.Getenv(EnvWatchdogDomain); v != "" {
		c.Watchdog.Domain = v
	}
	if v := os.Getenv(EnvSSSDDomain); v != "" {
		c.SSSD.Domain = v
	}
}

// Save writes the configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile writes the configuration to the specified file path.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Connection.OpenVPNPath == "" {
		return fmt.Errorf("connection.openvpn_path is required")
	}
	if c.Connection.PollAttempts <= 0 {
		return fmt.Errorf("connection.poll_attempts must be positive")
	}
	if c.Connection.PollIntervalSeconds <= 0 {
		return fmt.Errorf("connection.poll_interval_seconds must be positive")
	}

	if c.Watchdog.Interval != "" {
		if _, err := time.ParseDuration(c.Watchdog.Interval); err != nil {
			return fmt.Errorf("watchdog.interval: %w", err)
		}
	}
	if c.Watchdog.ProbePort < 0 || c.Watchdog.ProbePort > 65535 {
		return fmt.Errorf("watchdog.probe_port must be a valid port")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Connection.PollIntervalSeconds) * time.Second
}

// EffectiveProfileDir returns the configured profile directory or the
// platform default.
func (c *Config) EffectiveProfileDir() string {
	if c.Connection.ProfileDir != "" {
		return c.Connection.ProfileDir
	}
	return paths.ProfileDir()
}

// SplitDomains parses a comma-separated domain list, trimming whitespace
// and dropping empty entries.
func SplitDomains(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// SetKey updates a single top-level key in the config file, preserving
// every unrelated key as it appears on disk. Missing files are created
// with just the given key.
func SetKey(path string, key string, value any) error {
	root := map[string]any{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &root); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// Start from an empty document.
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}

	root[key] = value

	out, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetBypassDomains persists a new bypass-domain list, leaving all other
// configuration keys untouched.
func SetBypassDomains(path string, domains []string) error {
	return SetKey(path, "bypass_domains", domains)
}
