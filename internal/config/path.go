package config

import (
	"os"
	"path/filepath"
)

const appDir = "seglog"

// DefaultDataDir picks the data directory for this host: $XDG_DATA_HOME,
// then /var/lib when it is writable, then the platform's per-user data
// location, then ~/.seglog. Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	if isWritableDir("/var/lib") {
		return filepath.Join("/var/lib", appDir)
	}
	for _, base := range []string{
		filepath.Join(home, "Library", "Application Support"), // macOS
		filepath.Join(home, "AppData", "Local"),               // Windows
		filepath.Join(home, ".local", "share"),                // XDG default
	} {
		if isDir(base) {
			return filepath.Join(base, appDir)
		}
	}
	return filepath.Join(home, "."+appDir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isWritableDir(path string) bool {
	if !isDir(path) {
		return false
	}
	f, err := os.CreateTemp(path, ".seglog-writable-")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
