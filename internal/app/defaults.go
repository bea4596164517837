package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment overrides for the default locations.
const (
	EnvConfigPath = "DCAT_CONFIG_PATH" // default ~/.config/dcat.toml
	EnvHome       = "DCAT_HOME"        // default ~/.local/share/dcat
)

// GetDefaults returns the config path and the base directory dcat keeps
// catalogs, logs and keys under, with the log directory derived from it.
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome(EnvConfigPath, ".config", "dcat.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome(EnvHome, ".local", "share", "dcat")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env, or the path below the user's home
// directory when it is unset.
func envOrHome(env string, rel ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{home}, rel...)...), nil
}

// DefaultMachineName is the host name, or a random id when the host has
// no usable name.
func DefaultMachineName(newID func() string) string {
	if name, err := os.Hostname(); err == nil && name != "" && name != "localhost" {
		return name
	}
	return newID()
}
