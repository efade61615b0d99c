// Package notify shows desktop notifications for connection events over
// the session bus (org.freedesktop.Notifications), falling back to the
// notify-send utility when no bus is reachable. Notification failures are
// never fatal.
package notify

import (
	"os/exec"

	"github.com/godbus/dbus/v5"
	"github.com/vpntools/protonctl/internal/logging"
)

const appName = "ProtonVPN"

// Urgency levels per the Desktop Notifications Specification.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// Notifier shows desktop notifications. The zero value is usable; a
// disabled Notifier drops everything silently.
type Notifier struct {
	Enabled bool
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{Enabled: enabled}
}

// Connecting announces the start of a connection attempt.
func (n *Notifier) Connecting(profile string) {
	n.show("Connecting VPN", "Connecting using "+profile+"...", "network-vpn-acquiring", urgencyLow)
}

// Connected announces a verified connection.
func (n *Notifier) Connected(profile string) {
	n.show("VPN Connected", "Connected using "+profile, "network-vpn", urgencyNormal)
}

// Failed announces a terminal connection failure.
func (n *Notifier) Failed(reason, logFile string) {
	n.show("VPN Connection Failed", reason+"\nSee "+logFile+" for details.", "dialog-error", urgencyCritical)
}

// TimedOut announces a verification timeout.
func (n *Notifier) TimedOut(logFile string) {
	n.show("VPN Connection Timed Out", "No connection within the verification window.\nSee "+logFile+" for details.", "dialog-warning", urgencyCritical)
}

// Disconnected announces that the client was stopped.
func (n *Notifier) Disconnected() {
	n.show("VPN Disconnected", "The VPN client has been stopped.", "network-vpn-disconnected", urgencyNormal)
}

// show delivers one notification, preferring the session bus.
func (n *Notifier) show(summary, body, icon string, urgency byte) {
	if n == nil || !n.Enabled {
		return
	}

	if err := notifyDBus(summary, body, icon, urgency); err == nil {
		return
	}

	if err := notifySend(summary, body, icon, urgency); err != nil {
		logging.Debug("could not show desktop notification", "summary", summary, "error", err)
	}
}

func notifyDBus(summary, body, icon string, urgency byte) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return err
	}

	obj := conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		appName,
		uint32(0),
		icon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgency)},
		int32(-1),
	)
	return call.Err
}

func notifySend(summary, body, icon string, urgency byte) error {
	level := "normal"
	switch urgency {
	case urgencyLow:
		level = "low"
	case urgencyCritical:
		level = "critical"
	}

	return exec.Command("notify-send",
		"--app-name="+appName,
		"--icon="+icon,
		"--urgency="+level,
		summary,
		body,
	).Run()
}
