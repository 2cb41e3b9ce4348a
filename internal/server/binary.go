package server

import (
	"fmt"
	"os"
	"path/filepath"
)

// BinaryName is the language server executable name without extension.
const BinaryName = "sqls"

// PlatformDir returns the per-platform directory name, e.g. "linux_amd64".
func PlatformDir(goos, goarch string) (string, error) {
	switch goos {
	case "linux", "darwin", "windows":
	default:
		return "", fmt.Errorf("unsupported platform %s", goos)
	}
	switch goarch {
	case "amd64", "arm64":
	default:
		return "", fmt.Errorf("unsupported architecture %s", goarch)
	}
	return goos + "_" + goarch, nil
}

// BinaryPath returns {root}/{os}_{arch}/sqls, with .exe on windows.
func BinaryPath(root, goos, goarch string) (string, error) {
	dir, err := PlatformDir(goos, goarch)
	if err != nil {
		return "", err
	}
	name := BinaryName
	if goos == "windows" {
		name += ".exe"
	}
	return filepath.Join(root, dir, name), nil
}

// Locate resolves the binary under root and checks it exists as a regular
// file. Any failure is an *ExecutableMissingError.
func Locate(root, goos, goarch string) (string, error) {
	path, err := BinaryPath(root, goos, goarch)
	if err != nil {
		return "", &ExecutableMissingError{Path: filepath.Join(root, goos+"_"+goarch, BinaryName)}
	}
	if err := probe(path); err != nil {
		return "", err
	}
	return path, nil
}

func probe(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return &ExecutableMissingError{Path: path}
	}
	return nil
}
