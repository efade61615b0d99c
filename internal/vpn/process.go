// Package vpn manages the external OpenVPN client process: launching it
// against an annotated profile, verifying the connection through its log
// output, and tearing it down when connectivity is lost.
package vpn

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Common errors
var (
	ErrNotRunning     = errors.New("VPN client is not running")
	ErrAlreadyRunning = errors.New("a connection attempt is already in progress")
)

// Process tracks the OpenVPN client through its PID file.
type Process struct {
	pidFile string
}

// NewProcess creates a Process handle backed by the given PID file.
func NewProcess(pidFile string) *Process {
	return &Process{pidFile: pidFile}
}

// PIDFile returns the path to the PID file.
func (p *Process) PIDFile() string {
	return p.pidFile
}

// PID reads and returns the PID from the PID file.
func (p *Process) PID() (int, error) {
	data, err := os.ReadFile(p.pidFile)
	if err != nil {
		return 0, err
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, fmt.Errorf("PID file %s is empty", p.pidFile)
	}

	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// IsRunning checks whether the tracked process is currently alive.
func (p *Process) IsRunning() bool {
	pid, err := p.PID()
	if err != nil {
		return false
	}
	return isProcessRunning(pid)
}

// Signal sends sig to the tracked process.
// Returns ErrNotRunning if there is no live process to signal.
func (p *Process) Signal(sig syscall.Signal) error {
	pid, err := p.PID()
	if err != nil {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return ErrNotRunning
	}
	err = process.Signal(sig)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH):
		return ErrNotRunning
	case errors.Is(err, syscall.EPERM):
		// The client typically runs as root; route the signal through
		// pkexec so a desktop user can still disconnect.
		return elevatedSignal(pid, sig)
	default:
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
}

// elevatedSignal delivers sig to pid via pkexec kill.
func elevatedSignal(pid int, sig syscall.Signal) error {
	cmd := exec.Command("pkexec", "kill", "-s", sigName(sig), strconv.Itoa(pid))
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("pkexec kill: %w: %s", err, msg)
		}
		return fmt.Errorf("pkexec kill: %w", err)
	}
	return nil
}

func sigName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGINT:
		return "INT"
	case syscall.SIGTERM:
		return "TERM"
	case syscall.SIGKILL:
		return "KILL"
	default:
		return strconv.Itoa(int(sig))
	}
}

// Stop terminates the tracked process: SIGINT first, then SIGKILL for any
// survivor after the grace period. The PID file is removed afterwards.
// Returns ErrNotRunning when there is nothing to stop.
func (p *Process) Stop(grace time.Duration) error {
	pid, err := p.PID()
	if err != nil || !isProcessRunning(pid) {
		p.removePIDFile()
		return ErrNotRunning
	}

	if err := p.Signal(syscall.SIGINT); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !isProcessRunning(pid) {
			p.removePIDFile()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if isProcessRunning(pid) {
		if err := p.Signal(syscall.SIGKILL); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
	}
	p.removePIDFile()
	return nil
}

// RemovePID removes the PID file.
func (p *Process) RemovePID() error {
	return p.removePIDFile()
}

func (p *Process) removePIDFile() error {
	err := os.Remove(p.pidFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds. We need to send signal 0
	// to check if the process actually exists.
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user
	// (the client usually runs as root).
	return errors.Is(err, syscall.EPERM)
}
