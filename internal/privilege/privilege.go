// Package privilege provides utilities for managing root privileges.
package privilege

import (
	"fmt"
	"os"
	"os/exec"
)

// IsRoot returns true if the current process is running as root.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// Elevate re-executes the current command with sudo.
// It prints the reason for elevation and replaces the current process.
// This function does not return on success.
func Elevate(reason string) error {
	if IsRoot() {
		return nil // Already root
	}

	fmt.Fprintf(os.Stderr, "Requesting administrator privileges: %s\n", reason)

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := append([]string{executable}, os.Args[1:]...)

	cmd := exec.Command("sudo", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("sudo failed: %w", err)
	}

	os.Exit(0)
	return nil // Never reached
}

// RequireRoot checks if root is needed and elevates if necessary.
// This function does not return if elevation is performed.
func RequireRoot(reason string) error {
	if IsRoot() {
		return nil
	}
	return Elevate(reason)
}
