package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFindNewest(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, age time.Duration) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("client\n"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		mtime := time.Now().Add(-age)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("failed to set mtime on %s: %v", name, err)
		}
		return path
	}

	write("old.ovpn", 2*time.Hour)
	newest := write("new.ovpn", time.Minute)
	write("ignored.txt", 0)
	write("also-ignored.conf", 0)

	got, err := FindNewest(dir)
	if err != nil {
		t.Fatalf("FindNewest() error = %v", err)
	}
	if got != newest {
		t.Errorf("FindNewest() = %s, want %s", got, newest)
	}
}

func TestFindNewest_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proton.OVPN")
	if err := os.WriteFile(path, []byte("client\n"), 0644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	got, err := FindNewest(dir)
	if err != nil {
		t.Fatalf("FindNewest() error = %v", err)
	}
	if got != path {
		t.Errorf("FindNewest() = %s, want %s", got, path)
	}
}

func TestFindNewest_Empty(t *testing.T) {
	_, err := FindNewest(t.TempDir())
	if !errors.Is(err, ErrNoProfile) {
		t.Errorf("FindNewest() error = %v, want ErrNoProfile", err)
	}
}

func TestFindNewest_MissingDir(t *testing.T) {
	_, err := FindNewest(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Error("FindNewest() should fail for a missing directory")
	}
}

func TestAnnotate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "proton.ovpn")
	original := "client\nremote vpn.example.com 1194\n"
	if err := os.WriteFile(src, []byte(original), 0644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	routes := []string{
		"route 10.0.0.1 255.255.255.255 192.168.1.1",
		"route 10.0.0.2 255.255.255.255 192.168.1.1",
	}

	scratch := filepath.Join(dir, "scratch")
	dst, err := Annotate(src, scratch, routes)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read annotated profile: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, original) {
		t.Error("annotated profile should start with the original content")
	}
	for _, r := range routes {
		if strings.Count(content, r) != 1 {
			t.Errorf("route %q should appear exactly once", r)
		}
	}

	// The user's profile must stay untouched.
	srcData, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to re-read source: %v", err)
	}
	if string(srcData) != original {
		t.Error("original profile was modified")
	}
}

func TestAnnotate_NoRoutes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "proton.ovpn")
	original := "client\nremote vpn.example.com 1194\n"
	if err := os.WriteFile(src, []byte(original), 0644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	dst, err := Annotate(src, filepath.Join(dir, "scratch"), nil)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	data, _ := os.ReadFile(dst)
	if string(data) != original {
		t.Errorf("annotated copy = %q, want unchanged content", data)
	}
}

func TestAnnotate_MissingTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "proton.ovpn")
	if err := os.WriteFile(src, []byte("client"), 0644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	dst, err := Annotate(src, filepath.Join(dir, "scratch"), []string{"route 10.0.0.1 255.255.255.255 net_gateway"})
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	data, _ := os.ReadFile(dst)
	if !strings.Contains(string(data), "client\n") {
		t.Error("a newline should separate the original content from the routes")
	}
}
