package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestByPathMissing(t *testing.T) {
	if _, err := ByPath(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing device path")
	}
}

func TestByPathExists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "event0")
	if err := os.WriteFile(p, nil, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ByPath(p)
	if err != nil {
		t.Fatalf("ByPath: %v", err)
	}
	if got != p {
		t.Fatalf("ByPath returned %q, want %q", got, p)
	}
}

func TestMatchesUSBDeviceNoBusFiles(t *testing.T) {
	dir := t.TempDir()
	if matchesUSBDevice(dir, 1, 1) {
		t.Fatal("expected no match when busnum/devnum are absent")
	}
}

func TestMatchesUSBDeviceMatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "busnum"), []byte("3\n"), 0600); err != nil {
		t.Fatalf("write busnum: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "devnum"), []byte("7\n"), 0600); err != nil {
		t.Fatalf("write devnum: %v", err)
	}
	if !matchesUSBDevice(dir, 3, 7) {
		t.Fatal("expected match for bus 3 addr 7")
	}
	if matchesUSBDevice(dir, 3, 8) {
		t.Fatal("expected no match for mismatched addr")
	}
}
