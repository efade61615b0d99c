// Package service installs the watchdog as a systemd service/timer pair
// and generates desktop shortcuts for connecting and disconnecting.
package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	watchdogService = "protonctl-watchdog"
	unitDir         = "/etc/systemd/system"
	watchdogLogPath = "/var/log/protonctl-watchdog.log"
)

// Config holds watchdog service installation configuration.
type Config struct {
	// BinaryPath is the path to the protonctl binary.
	// If empty, the current executable path is used.
	BinaryPath string

	// Domain is the critical domain the watchdog monitors.
	Domain string

	// SSSDDomain optionally adds the identity-service check.
	SSSDDomain string

	// Interval is the timer cadence as a systemd time span, e.g. "2m".
	Interval string
}

func servicePath() string {
	return filepath.Join(unitDir, watchdogService+".service")
}

func timerPath() string {
	return filepath.Join(unitDir, watchdogService+".timer")
}

// IsInstalled checks whether the watchdog units are installed.
func IsInstalled() bool {
	_, err := os.Stat(timerPath())
	return err == nil
}

// Install writes the watchdog service and timer units and enables the
// timer. Requires root.
func Install(cfg Config) error {
	if cfg.BinaryPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		cfg.BinaryPath, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}
	}
	if cfg.Interval == "" {
		cfg.Interval = "2m"
	}

	if err := os.WriteFile(servicePath(), []byte(generateService(cfg)), 0644); err != nil {
		return fmt.Errorf("failed to write service unit: %w", err)
	}
	if err := os.WriteFile(timerPath(), []byte(generateTimer(cfg)), 0644); err != nil {
		return fmt.Errorf("failed to write timer unit: %w", err)
	}

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	return systemctl("enable", "--now", watchdogService+".timer")
}

// Uninstall disables and removes the watchdog units.
func Uninstall() error {
	_ = systemctl("disable", "--now", watchdogService+".timer")

	for _, path := range []string{timerPath(), servicePath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return systemctl("daemon-reload")
}

func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}

func generateService(cfg Config) string {
	args := fmt.Sprintf("watchdog --domain %s", cfg.Domain)
	if cfg.SSSDDomain != "" {
		args += " --sssd-domain " + cfg.SSSDDomain
	}
	args += " --log-file " + watchdogLogPath

	return fmt.Sprintf(`[Unit]
Description=ProtonVPN connectivity watchdog
After=network-online.target

[Service]
Type=oneshot
ExecStart=%s %s
`, cfg.BinaryPath, args)
}

func generateTimer(cfg Config) string {
	return fmt.Sprintf(`[Unit]
Description=Run the ProtonVPN connectivity watchdog periodically

[Timer]
OnBootSec=1m
OnUnitActiveSec=%s

[Install]
WantedBy=timers.target
`, cfg.Interval)
}
