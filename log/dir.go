package log

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// EnvLogPath overrides the platform log directory.
const EnvLogPath = "STRAF_LOG_PATH"

// ResolveDir picks the log directory: the -logpath flag, then
// STRAF_LOG_PATH, then the platform default.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv(EnvLogPath)} {
		if p != "" {
			return filepath.Abs(p)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return defaultDir(runtime.GOOS, home, os.Getenv)
}

// defaultDir follows each platform's convention for per-user logs:
// ~/Library/Logs on macOS, %LOCALAPPDATA% on Windows and the XDG state
// directory elsewhere.
func defaultDir(goos, home string, getenv func(string) string) (string, error) {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "straf"), nil
	case "windows":
		base := getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "straf", "logs"), nil
	}
	base := getenv("XDG_STATE_HOME")
	if base == "" {
		if home == "" {
			return "", errors.New("no home directory for logs")
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "straf"), nil
}
