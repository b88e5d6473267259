package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir resolves the OS-specific application data directory for appName
// per §6: macOS Application Support, Windows %APPDATA% (falling back to
// ~/AppData/Roaming), Linux $XDG_DATA_HOME (falling back to
// ~/.local/share).
func DataDir(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
}

// Paths holds the resolved file locations beneath the application data
// directory.
type Paths struct {
	Root       string
	LogsDir    string
	ConfigFile string
	DatabaseFile string
}

// Resolve computes Paths for appName and creates the directory tree.
// Failure to create the directory is Fatal per §7.
func Resolve(appName string) (Paths, error) {
	root, err := DataDir(appName)
	if err != nil {
		return Paths{}, err
	}
	p := Paths{
		Root:         root,
		LogsDir:      filepath.Join(root, "logs"),
		ConfigFile:   filepath.Join(root, "config.toml"),
		DatabaseFile: filepath.Join(root, "cache.db"),
	}
	if err := os.MkdirAll(p.LogsDir, 0o755); err != nil {
		return Paths{}, err
	}
	return p, nil
}
