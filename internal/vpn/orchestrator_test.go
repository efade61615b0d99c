package vpn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	o := NewOrchestrator(
		"openvpn",
		filepath.Join(dir, "vpn.log"),
		filepath.Join(dir, "vpn.pid"),
		filepath.Join(dir, "vpn.lock"),
		10,
		time.Millisecond,
	)
	o.sleep = func(time.Duration) {}
	o.stop = func() error { return ErrNotRunning }
	return o
}

func writeLivePID(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}
}

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write log file: %v", err)
	}
}

func TestWaitForOutcome_SuccessAtSecondAttempt(t *testing.T) {
	o := newTestOrchestrator(t)
	writeLivePID(t, o.PIDFile)

	sleeps := 0
	o.sleep = func(time.Duration) {
		sleeps++
		// The marker shows up while we wait between attempts.
		writeLog(t, o.LogFile, "TUN/TAP device tun0 opened\nInitialization Sequence Completed\n")
	}

	if state := o.waitForOutcome(context.Background()); state != StateConnected {
		t.Errorf("waitForOutcome() = %v, want StateConnected", state)
	}
	if sleeps != 1 {
		t.Errorf("polling continued after success: %d sleeps, want 1", sleeps)
	}
}

func TestWaitForOutcome_SuccessAfterProcessExit(t *testing.T) {
	o := newTestOrchestrator(t)
	// No PID file at all: the client is gone, but it logged success.
	writeLog(t, o.LogFile, "Initialization Sequence Completed\n")

	if state := o.waitForOutcome(context.Background()); state != StateConnected {
		t.Errorf("waitForOutcome() = %v, want StateConnected", state)
	}
}

func TestWaitForOutcome_FailureMarkers(t *testing.T) {
	tests := []struct {
		name string
		log  string
	}{
		{"auth failed", "SENT CONTROL: 'AUTH_FAILED'\n"},
		{"tls handshake", "TLS Error: TLS handshake failed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t)
			writeLivePID(t, o.PIDFile)
			writeLog(t, o.LogFile, tt.log)

			sleeps := 0
			o.sleep = func(time.Duration) { sleeps++ }

			if state := o.waitForOutcome(context.Background()); state != StateFailed {
				t.Errorf("waitForOutcome() = %v, want StateFailed", state)
			}
			if sleeps != 0 {
				t.Errorf("failure should be reported on the first attempt, got %d sleeps", sleeps)
			}
		})
	}
}

func TestWaitForOutcome_SuccessBeatsFailure(t *testing.T) {
	o := newTestOrchestrator(t)
	writeLivePID(t, o.PIDFile)
	// A reconnect can log AUTH_FAILED and then succeed; success has
	// priority within one attempt.
	writeLog(t, o.LogFile, "AUTH_FAILED\nInitialization Sequence Completed\n")

	if state := o.waitForOutcome(context.Background()); state != StateConnected {
		t.Errorf("waitForOutcome() = %v, want StateConnected", state)
	}
}

func TestWaitForOutcome_ProcessDied(t *testing.T) {
	o := newTestOrchestrator(t)
	writeLog(t, o.LogFile, "TUN/TAP device tun0 opened\n")
	if err := os.WriteFile(o.PIDFile, []byte("99999999"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	if state := o.waitForOutcome(context.Background()); state != StateTimedOut {
		t.Errorf("waitForOutcome() = %v, want StateTimedOut", state)
	}
}

func TestWaitForOutcome_BudgetExhausted(t *testing.T) {
	o := newTestOrchestrator(t)
	o.PollAttempts = 4
	writeLivePID(t, o.PIDFile)
	writeLog(t, o.LogFile, "TUN/TAP device tun0 opened\n")

	sleeps := 0
	o.sleep = func(time.Duration) { sleeps++ }

	if state := o.waitForOutcome(context.Background()); state != StateTimedOut {
		t.Errorf("waitForOutcome() = %v, want StateTimedOut", state)
	}
	if sleeps != o.PollAttempts-1 {
		t.Errorf("sleeps = %d, want %d", sleeps, o.PollAttempts-1)
	}
}

func TestConnect_FailureStopsClient(t *testing.T) {
	o := newTestOrchestrator(t)

	stops := 0
	o.stop = func() error {
		stops++
		return ErrNotRunning
	}
	o.launch = func(ctx context.Context, profilePath, authFile string) error {
		writeLivePID(t, o.PIDFile)
		writeLog(t, o.LogFile, "AUTH_FAILED\n")
		return nil
	}

	state, err := o.Connect(context.Background(), "profile.ovpn", "auth.txt")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if state != StateFailed {
		t.Errorf("Connect() = %v, want StateFailed", state)
	}
	// Once to clear any previous instance, once after the failure.
	if stops != 2 {
		t.Errorf("stop called %d times, want 2", stops)
	}
}

func TestConnect_RemovesStaleArtifacts(t *testing.T) {
	o := newTestOrchestrator(t)
	writeLog(t, o.LogFile, "AUTH_FAILED from a previous run\n")
	writeLivePID(t, o.PIDFile)

	o.launch = func(ctx context.Context, profilePath, authFile string) error {
		writeLivePID(t, o.PIDFile)
		writeLog(t, o.LogFile, "Initialization Sequence Completed\n")
		return nil
	}

	state, err := o.Connect(context.Background(), "profile.ovpn", "auth.txt")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if state != StateConnected {
		t.Errorf("Connect() = %v, want StateConnected", state)
	}
}

func TestConnect_PrecreatesArtifacts(t *testing.T) {
	o := newTestOrchestrator(t)

	o.launch = func(ctx context.Context, profilePath, authFile string) error {
		// Both files must exist user-owned before the client starts,
		// so a root-run client truncates them instead of creating
		// root-owned ones.
		for _, path := range []string{o.LogFile, o.PIDFile} {
			if _, err := os.Stat(path); err != nil {
				t.Errorf("%s not pre-created: %v", path, err)
			}
		}
		writeLog(t, o.LogFile, "Initialization Sequence Completed\n")
		return nil
	}

	state, err := o.Connect(context.Background(), "profile.ovpn", "auth.txt")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if state != StateConnected {
		t.Errorf("Connect() = %v, want StateConnected", state)
	}
}

func TestConnect_ToleratesProtectedArtifacts(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	o := newTestOrchestrator(t)
	o.PollAttempts = 2

	// A leftover the current user cannot unlink, like a root-owned log
	// from a pkexec-launched client.
	locked := filepath.Join(t.TempDir(), "locked")
	if err := os.Mkdir(locked, 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	o.LogFile = filepath.Join(locked, "vpn.log")
	writeLog(t, o.LogFile, "leftover from a previous run\n")
	if err := os.Chmod(locked, 0555); err != nil {
		t.Fatalf("failed to chmod directory: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	o.launch = func(ctx context.Context, profilePath, authFile string) error {
		writeLivePID(t, o.PIDFile)
		return nil
	}

	state, err := o.Connect(context.Background(), "profile.ovpn", "auth.txt")
	if err != nil {
		t.Fatalf("Connect() error = %v, want the unremovable leftover tolerated", err)
	}
	if state != StateTimedOut {
		t.Errorf("Connect() = %v, want StateTimedOut", state)
	}
}

func TestConnect_LaunchError(t *testing.T) {
	o := newTestOrchestrator(t)
	o.launch = func(ctx context.Context, profilePath, authFile string) error {
		return errors.New("pkexec: not authorized")
	}

	state, err := o.Connect(context.Background(), "profile.ovpn", "auth.txt")
	if err == nil {
		t.Fatal("Connect() should fail when launch fails")
	}
	if state != StateFailed {
		t.Errorf("Connect() = %v, want StateFailed", state)
	}
}

func TestConnect_LockContention(t *testing.T) {
	o := newTestOrchestrator(t)

	lock, err := AcquireLock(o.LockFile)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	defer lock.Release()

	_, err = o.Connect(context.Background(), "profile.ovpn", "auth.txt")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Connect() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStarting, "starting"},
		{StateConnected, "connected"},
		{StateFailed, "failed"},
		{StateTimedOut, "timed out"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
