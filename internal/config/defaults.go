package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/TextSwitcher/
//   - Linux:   ~/.local/share/textswitcher/
//   - Windows: %LOCALAPPDATA%\TextSwitcher\
//
// Falls back to ~/.textswitcher if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", "TextSwitcher")
	case "linux", "freebsd", "openbsd":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "textswitcher")
		}
		return filepath.Join(homeDir(), ".local", "share", "textswitcher")
	case "windows":
		return windowsLocalDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/TextSwitcher/
//   - Linux:   ~/.config/textswitcher/
//   - Windows: %LOCALAPPDATA%\TextSwitcher\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "textswitcher")
		}
		return filepath.Join(homeDir(), ".config", "textswitcher")
	default:
		return PlatformDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/TextSwitcher/
//   - Linux:   ~/.local/share/textswitcher/logs/
//   - Windows: %LOCALAPPDATA%\TextSwitcher\logs\
func PlatformLogDir() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(homeDir(), "Library", "Logs", "TextSwitcher")
	}
	return filepath.Join(PlatformDataDir(), "logs")
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return home
}

func windowsLocalDir() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, "TextSwitcher")
	}
	return filepath.Join(homeDir(), "AppData", "Local", "TextSwitcher")
}

func fallbackDataDir() string {
	return filepath.Join(homeDir(), ".textswitcher")
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	// Search order:
	// 1. Current directory
	// 2. Config directory
	// 3. Data directory
	searchDirs := []string{".", PlatformConfigDir(), DataDir()}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}
