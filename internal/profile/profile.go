// Package profile locates OpenVPN profiles and prepares annotated working
// copies with host bypass routes. The user's original profile is never
// modified; routes are appended to a scratch copy only.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoProfile is returned when no .ovpn profile can be found.
var ErrNoProfile = errors.New("no OpenVPN profile found")

// profileExt is the profile file extension scanned for.
const profileExt = ".ovpn"

// FindNewest returns the most recently modified .ovpn file in dir.
func FindNewest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read profile directory: %w", err)
	}

	var (
		newest     string
		newestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), profileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, entry.Name())
			newestTime = info.ModTime()
		}
	}

	if newest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoProfile, dir)
	}
	return newest, nil
}

// Annotate copies the profile at src into scratchDir and appends the given
// route directives. It returns the path of the working copy.
func Annotate(src string, scratchDir string, routes []string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read profile: %w", err)
	}

	if err := os.MkdirAll(scratchDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	var b strings.Builder
	b.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteByte('\n')
	}
	if len(routes) > 0 {
		b.WriteString("\n# bypass routes added by protonctl\n")
		for _, r := range routes {
			b.WriteString(r)
			b.WriteByte('\n')
		}
	}

	dst := filepath.Join(scratchDir, filepath.Base(src))
	if err := os.WriteFile(dst, []byte(b.String()), 0600); err != nil {
		return "", fmt.Errorf("failed to write annotated profile: %w", err)
	}
	return dst, nil
}
