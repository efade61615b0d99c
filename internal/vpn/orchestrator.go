package vpn

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vpntools/protonctl/internal/logging"
	"github.com/vpntools/protonctl/internal/privilege"
)

// State is the outcome of a connection attempt.
type State int

const (
	// StateStarting means the client was launched but no verdict has
	// been reached yet.
	StateStarting State = iota
	// StateConnected means the success marker was observed.
	StateConnected
	// StateFailed means an authentication or TLS failure marker was
	// observed.
	StateFailed
	// StateTimedOut means no terminal marker appeared within the poll
	// budget, or the client died without producing one.
	StateTimedOut
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Log markers emitted by the OpenVPN client.
const successMarker = "Initialization Sequence Completed"

var failureMarkers = []string{
	"AUTH_FAILED",
	"TLS Error: TLS handshake failed",
}

// stopGrace is how long a terminated client gets to exit on SIGINT
// before SIGKILL.
const stopGrace = 5 * time.Second

// Orchestrator launches the OpenVPN client against an annotated profile
// and verifies the connection by polling the client's log output.
type Orchestrator struct {
	// OpenVPNPath is the client binary, looked up on PATH when relative.
	OpenVPNPath string
	// LogFile receives the client's own log output.
	LogFile string
	// PIDFile is written by the client (--writepid).
	PIDFile string
	// LockFile serializes connection attempts.
	LockFile string
	// PollAttempts and PollInterval define the verification budget.
	PollAttempts int
	PollInterval time.Duration

	// sleep, stop, and launch are test seams.
	sleep  func(time.Duration)
	stop   func() error
	launch func(ctx context.Context, profilePath, authFile string) error
}

// NewOrchestrator creates an Orchestrator with the standard process
// control wiring.
func NewOrchestrator(openvpnPath, logFile, pidFile, lockFile string, attempts int, interval time.Duration) *Orchestrator {
	o := &Orchestrator{
		OpenVPNPath:  openvpnPath,
		LogFile:      logFile,
		PIDFile:      pidFile,
		LockFile:     lockFile,
		PollAttempts: attempts,
		PollInterval: interval,
	}
	o.sleep = time.Sleep
	o.stop = func() error {
		return NewProcess(pidFile).Stop(stopGrace)
	}
	o.launch = o.launchClient
	return o
}

// Connect launches the client and waits for a verdict. Any previously
// managed client instance is stopped first; stale log and PID files are
// removed before the new launch.
func (o *Orchestrator) Connect(ctx context.Context, profilePath, authFile string) (State, error) {
	lock, err := AcquireLock(o.LockFile)
	if err != nil {
		return StateFailed, err
	}
	defer lock.Release()

	// At most one managed client per machine: stop whatever a previous
	// run left behind before starting fresh.
	if err := o.stop(); err != nil && err != ErrNotRunning {
		logging.Warn("could not stop previous VPN client", "error", err)
	}
	for _, path := range []string{o.LogFile, o.PIDFile} {
		if err := clearStale(path); err != nil {
			return StateFailed, err
		}
		precreate(path)
	}

	if err := o.launch(ctx, profilePath, authFile); err != nil {
		return StateFailed, err
	}

	state := o.waitForOutcome(ctx)
	if state != StateConnected {
		if err := o.stop(); err != nil && err != ErrNotRunning {
			logging.Warn("could not stop VPN client after failed attempt", "error", err)
		}
	}
	return state, nil
}

// clearStale removes a leftover artifact from a previous run. A leftover
// owned by another user cannot be unlinked from the sticky temp directory;
// it is left in place for the client to truncate on launch.
func clearStale(path string) error {
	err := os.Remove(path)
	switch {
	case err == nil || os.IsNotExist(err):
		return nil
	case os.IsPermission(err):
		logging.Warn("could not remove stale file, leaving it for the client to overwrite", "path", path, "error", err)
		return nil
	default:
		return fmt.Errorf("failed to remove stale %s: %w", path, err)
	}
}

// precreate creates path empty, owned by the invoking user. The client
// usually runs as root and truncates the file in place, so ownership stays
// with the user and the next run can remove it.
func precreate(path string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		logging.Warn("could not pre-create file", "path", path, "error", err)
		return
	}
	f.Close()
}

// launchClient starts the OpenVPN client detached. The client daemonizes
// itself, writes its own PID file and logs to LogFile.
func (o *Orchestrator) launchClient(ctx context.Context, profilePath, authFile string) error {
	args := []string{
		"--config", profilePath,
		"--auth-user-pass", authFile,
		"--log", o.LogFile,
		"--writepid", o.PIDFile,
		"--verb", "3",
		"--daemon",
	}

	var cmd *exec.Cmd
	if privilege.IsRoot() {
		cmd = exec.CommandContext(ctx, o.OpenVPNPath, args...)
	} else {
		// The client needs root to create the tun device and install
		// routes; pkexec prompts the desktop user for authorization.
		cmd = exec.CommandContext(ctx, "pkexec", append([]string{o.OpenVPNPath}, args...)...)
	}

	logging.Info("launching VPN client", "binary", o.OpenVPNPath, "profile", profilePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("failed to launch VPN client: %w: %s", err, msg)
		}
		return fmt.Errorf("failed to launch VPN client: %w", err)
	}
	return nil
}

// waitForOutcome polls the client log until a terminal marker appears,
// the client dies, or the poll budget is exhausted. Each attempt checks
// the success marker first, then failure markers, then process liveness:
// a success marker written by a client that has since exited still counts
// as success.
func (o *Orchestrator) waitForOutcome(ctx context.Context) State {
	process := NewProcess(o.PIDFile)

	for attempt := 1; attempt <= o.PollAttempts; attempt++ {
		if ctx.Err() != nil {
			return StateTimedOut
		}

		log := o.readLog()

		if strings.Contains(log, successMarker) {
			logging.Info("VPN connection established", "attempt", attempt)
			return StateConnected
		}

		if marker := firstFailureMarker(log); marker != "" {
			logging.Error("VPN client reported failure", "marker", marker, "attempt", attempt)
			return StateFailed
		}

		if !process.IsRunning() {
			logging.Error("VPN client exited before completing the handshake", "attempt", attempt)
			return StateTimedOut
		}

		logging.Debug("waiting for VPN client", "attempt", attempt, "of", o.PollAttempts)
		if attempt < o.PollAttempts {
			o.sleep(o.PollInterval)
		}
	}

	logging.Error("VPN connection not verified within the polling budget")
	return StateTimedOut
}

// readLog returns the client log contents, tolerating a missing file.
func (o *Orchestrator) readLog() string {
	data, err := os.ReadFile(o.LogFile)
	if err != nil {
		return ""
	}
	return string(data)
}

// firstFailureMarker returns the first known failure marker present in
// the log, or "".
func firstFailureMarker(log string) string {
	for _, marker := range failureMarkers {
		if strings.Contains(log, marker) {
			return marker
		}
	}
	return ""
}
