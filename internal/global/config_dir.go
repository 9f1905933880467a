package global

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigDir resolves where paneherd keeps its config and database.
// PANEHERD_CONFIG_DIR wins, then $XDG_CONFIG_HOME/paneherd, then
// ~/.config/paneherd.
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("PANEHERD_CONFIG_DIR")); override != "" {
		return override, nil
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "paneherd"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "paneherd"), nil
}
