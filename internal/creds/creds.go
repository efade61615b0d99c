// Package creds stores the ProtonVPN OpenVPN username and password.
// The system keyring is preferred; a two-line file with restrictive
// permissions at the per-user config path is the fallback, and is also
// the format handed to the OpenVPN client via --auth-user-pass.
package creds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vpntools/protonctl/internal/paths"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "protonctl"
	keyringAccount = "openvpn"
)

// ErrNotFound is returned when no credentials have been stored.
var ErrNotFound = errors.New("credentials not found")

// Credentials holds an OpenVPN username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Store persists credentials in the system keyring, falling back to the
// per-user credentials file when no keyring is available.
func Store(c Credentials) error {
	if c.Username == "" || c.Password == "" {
		return errors.New("username and password are required")
	}

	secret := c.Username + "\n" + c.Password
	if err := keyring.Set(keyringService, keyringAccount, secret); err == nil {
		return nil
	}
	return storeFile(c, paths.CredentialsFile())
}

// Load retrieves stored credentials, trying the keyring first and the
// credentials file second.
func Load() (Credentials, error) {
	if secret, err := keyring.Get(keyringService, keyringAccount); err == nil {
		if c, ok := parseSecret(secret); ok {
			return c, nil
		}
	}
	return loadFile(paths.CredentialsFile())
}

// Delete removes stored credentials from both backends.
func Delete() error {
	_ = keyring.Delete(keyringService, keyringAccount)
	err := os.Remove(paths.CredentialsFile())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether credentials are stored in either backend.
func Exists() bool {
	_, err := Load()
	return err == nil
}

// storeFile writes the two-line credentials file with 0600 permissions.
func storeFile(c Credentials, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	content := c.Username + "\n" + c.Password + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

// loadFile reads the two-line credentials file.
func loadFile(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("failed to read credentials file: %w", err)
	}

	c, ok := parseSecret(string(data))
	if !ok {
		return Credentials{}, fmt.Errorf("credentials file %s is malformed", path)
	}
	return c, nil
}

func parseSecret(secret string) (Credentials, bool) {
	lines := strings.Split(strings.TrimRight(secret, "\n"), "\n")
	if len(lines) < 2 || lines[0] == "" || lines[1] == "" {
		return Credentials{}, false
	}
	return Credentials{Username: lines[0], Password: lines[1]}, true
}

// WriteTransient writes credentials into a short-lived auth file for the
// OpenVPN client. The caller removes it once the client has started; the
// client keeps its own open handle.
func WriteTransient(c Credentials, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create auth directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("auth-%d", time.Now().UnixNano()))
	if err := storeFile(c, path); err != nil {
		return "", err
	}
	return path, nil
}
