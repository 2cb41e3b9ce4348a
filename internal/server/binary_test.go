package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBinaryPath(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
		wantErr      bool
	}{
		{"linux", "amd64", filepath.Join("bin", "linux_amd64", "sqls"), false},
		{"darwin", "arm64", filepath.Join("bin", "darwin_arm64", "sqls"), false},
		{"windows", "amd64", filepath.Join("bin", "windows_amd64", "sqls.exe"), false},
		{"freebsd", "amd64", "", true},
		{"linux", "386", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"_"+tt.goarch, func(t *testing.T) {
			got, err := BinaryPath("bin", tt.goos, tt.goarch)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	root := t.TempDir()

	_, err := Locate(root, "linux", "amd64")
	var missing *ExecutableMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected ExecutableMissingError, got %v", err)
	}

	dir := filepath.Join(root, "linux_amd64")
	if err := os.MkdirAll(filepath.Join(dir, "sqls"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Locate(root, "linux", "amd64"); !errors.As(err, &missing) {
		t.Errorf("A directory must not count as the binary, got %v", err)
	}

	root = t.TempDir()
	dir = filepath.Join(root, "linux_amd64")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(dir, "sqls")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := Locate(root, "linux", "amd64")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != bin {
		t.Errorf("Expected %s, got %s", bin, got)
	}
}

func TestProcessLauncherMissingBinary(t *testing.T) {
	l := &ProcessLauncher{Path: filepath.Join(t.TempDir(), "sqls")}
	_, err := l.Launch(context.Background())
	var missing *ExecutableMissingError
	if !errors.As(err, &missing) {
		t.Errorf("Expected ExecutableMissingError, got %v", err)
	}
}
