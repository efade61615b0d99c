// Package paths provides XDG Base Directory Specification compliant path
// resolution for protonctl, plus the well-known per-user artifact paths
// shared with the OpenVPN process it manages.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const appName = "protonctl"

// Paths holds all resolved paths for the application.
type Paths struct {
	// ConfigDir is the directory for configuration files.
	// XDG: $XDG_CONFIG_HOME/protonctl or ~/.config/protonctl
	ConfigDir string

	// DataDir is the directory for persistent data.
	// XDG: $XDG_DATA_HOME/protonctl or ~/.local/share/protonctl
	DataDir string

	// ProfileDir is where downloaded OpenVPN profiles are looked for.
	// Defaults to ~/Downloads; overridable in config.
	ProfileDir string

	// ConfigFile is the path to the main configuration file.
	ConfigFile string

	// CredentialsFile is the two-line username/password fallback file
	// used when no system keyring is available.
	CredentialsFile string

	// VPNLogFile is the OpenVPN client log, keyed by the invoking
	// user's UID so concurrent users do not collide.
	VPNLogFile string

	// VPNPIDFile is the OpenVPN client PID file, keyed by UID.
	VPNPIDFile string

	// LockFile serializes connection attempts on this machine, keyed
	// by UID.
	LockFile string

	// ScratchDir holds annotated working copies of profiles.
	ScratchDir string
}

var (
	defaultPaths *Paths
	pathsOnce    sync.Once
)

// Default returns the default paths for the current system.
// The result is cached after the first call.
func Default() *Paths {
	pathsOnce.Do(func() {
		defaultPaths = resolve()
	})
	return defaultPaths
}

// resolve determines all paths based on environment and platform.
func resolve() *Paths {
	home := homeDir()
	uid := os.Getuid()

	p := &Paths{}

	p.ConfigDir = resolveConfigDir(home)
	p.DataDir = resolveDataDir(home)
	p.ProfileDir = filepath.Join(home, "Downloads")

	p.ConfigFile = filepath.Join(p.ConfigDir, "config.yaml")
	p.CredentialsFile = filepath.Join(p.ConfigDir, "credentials")
	p.ScratchDir = filepath.Join(p.DataDir, "profiles")

	// The OpenVPN process typically runs as root (pkexec), so these
	// live in the shared temp directory rather than the user's XDG
	// runtime dir. The UID suffix keeps users apart.
	tmp := os.TempDir()
	p.VPNLogFile = filepath.Join(tmp, fmt.Sprintf("protonvpn-%d.log", uid))
	p.VPNPIDFile = filepath.Join(tmp, fmt.Sprintf("protonvpn-%d.pid", uid))
	p.LockFile = filepath.Join(tmp, fmt.Sprintf("protonctl-%d.lock", uid))

	return p
}

// resolveConfigDir determines the configuration directory.
func resolveConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(home, ".config", appName)
}

// resolveDataDir determines the data directory.
func resolveDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(home, ".local", "share", appName)
}

// homeDir returns the user's home directory.
func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return "/"
}

// EnsureDirectories creates all necessary directories with proper permissions.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.ScratchDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	return nil
}

// Reset clears the cached default paths.
// Useful for testing with different environment variables.
func Reset() {
	defaultPaths = nil
	pathsOnce = sync.Once{}
}

// Convenience functions for common path access

// ConfigDir returns the configuration directory path.
func ConfigDir() string {
	return Default().ConfigDir
}

// DataDir returns the data directory path.
func DataDir() string {
	return Default().DataDir
}

// ProfileDir returns the profile download directory path.
func ProfileDir() string {
	return Default().ProfileDir
}

// ConfigFile returns the main configuration file path.
func ConfigFile() string {
	return Default().ConfigFile
}

// CredentialsFile returns the fallback credentials file path.
func CredentialsFile() string {
	return Default().CredentialsFile
}

// VPNLogFile returns the OpenVPN client log file path.
func VPNLogFile() string {
	return Default().VPNLogFile
}

// VPNPIDFile returns the OpenVPN client PID file path.
func VPNPIDFile() string {
	return Default().VPNPIDFile
}

// LockFile returns the connection lock file path.
func LockFile() string {
	return Default().LockFile
}

// ScratchDir returns the annotated profile working directory.
func ScratchDir() string {
	return Default().ScratchDir
}

// EnsureDirectories creates all necessary directories using default paths.
func EnsureDirectories() error {
	return Default().EnsureDirectories()
}
