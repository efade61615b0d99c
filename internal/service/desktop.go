package service

import (
	"fmt"
	"os"
	"path/filepath"
)

// DesktopEntry describes one generated application shortcut.
type DesktopEntry struct {
	FileName string
	Name     string
	Command  string
	Icon     string
}

// DefaultEntries returns the connect/disconnect shortcuts.
func DefaultEntries() []DesktopEntry {
	return []DesktopEntry{
		{
			FileName: "protonvpn-connect.desktop",
			Name:     "ProtonVPN Connect",
			Command:  "connect",
			Icon:     "network-vpn",
		},
		{
			FileName: "protonvpn-disconnect.desktop",
			Name:     "ProtonVPN Disconnect",
			Command:  "disconnect",
			Icon:     "network-vpn-disconnected",
		},
	}
}

// InstallDesktopEntries writes the shortcuts into dir (typically
// ~/.local/share/applications). Existing entries are only replaced when
// force is set.
func InstallDesktopEntries(binaryPath, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create applications directory: %w", err)
	}

	for _, entry := range DefaultEntries() {
		path := filepath.Join(dir, entry.FileName)
		if !force {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.WriteFile(path, []byte(generateDesktopEntry(binaryPath, entry)), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// RemoveDesktopEntries deletes the shortcuts from dir.
func RemoveDesktopEntries(dir string) error {
	for _, entry := range DefaultEntries() {
		path := filepath.Join(dir, entry.FileName)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func generateDesktopEntry(binaryPath string, entry DesktopEntry) string {
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Exec=%s %s
Icon=%s
Terminal=false
Categories=Network;
`, entry.Name, binaryPath, entry.Command, entry.Icon)
}
