package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danpeer/peernode/internal/validate"
)

// checkConfigFilePermissions returns an error if a config file has any
// group or world permission bit set. Config files name key files and
// network topology. A file that cannot be stat'ed passes; the caller
// reports the read error.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// LoadNodeConfig loads node configuration from a YAML file.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg NodeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade peernode", ErrConfigVersionTooNew, cfg.Version, CurrentConfigVersion)
	}

	if cfg.Tuning.QueryTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Tuning.QueryTimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid tuning.query_timeout: %w", err)
		}
		cfg.Tuning.QueryTimeout = d
	}

	return &cfg, nil
}

// SaveNodeConfig writes cfg to path as YAML, archiving whatever config
// was already there as the last-known-good copy first (config.Archive).
func SaveNodeConfig(path string, cfg *NodeConfig) error {
	if cfg.Tuning.QueryTimeout != 0 {
		cfg.Tuning.QueryTimeoutRaw = cfg.Tuning.QueryTimeout.String()
	}
	if _, err := os.Stat(path); err == nil {
		if err := Archive(path); err != nil {
			return fmt.Errorf("save: archive previous config: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("save: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("save: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save: rename: %w", err)
	}
	return nil
}

// ValidateNodeConfig validates node configuration.
func ValidateNodeConfig(cfg *NodeConfig) error {
	if cfg.Identity.KeyFile == "" {
		return fmt.Errorf("identity.key_file is required")
	}
	if len(cfg.Network.ListenAddresses) == 0 {
		return fmt.Errorf("network.listen_addresses must contain at least one address")
	}
	if cfg.Discovery.Namespace != "" {
		if err := validate.NetworkName(cfg.Discovery.Namespace); err != nil {
			return fmt.Errorf("discovery.namespace: %w", err)
		}
	}
	return nil
}

// FindConfigFile searches for a peernode config file in standard locations.
// Search order: explicitPath (if given), ./peernode.yaml,
// ~/.config/peernode/config.yaml, /etc/peernode/config.yaml.
func FindConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{"peernode.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "peernode", "config.yaml"))
	}
	searchPaths = append(searchPaths, filepath.Join("/etc", "peernode", "config.yaml"))

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w; searched:\n  %s\n\nRun 'peernode init' to create one, or use --config <path>", ErrConfigNotFound, strings.Join(searchPaths, "\n  "))
}

// ResolveConfigPaths resolves relative file paths in the config to be
// relative to the config file's directory, so a config in
// ~/.config/peernode/ can reference a key file with a relative path.
func ResolveConfigPaths(cfg *NodeConfig, configDir string) {
	if cfg.Identity.KeyFile != "" && !filepath.IsAbs(cfg.Identity.KeyFile) {
		cfg.Identity.KeyFile = filepath.Join(configDir, cfg.Identity.KeyFile)
	}
}

// DefaultConfigDir returns the default peernode config directory
// (~/.config/peernode).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "peernode"), nil
}
