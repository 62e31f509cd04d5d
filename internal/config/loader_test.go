package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
version: 1
identity:
  key_file: "identity.key"
network:
  listen_addresses:
    - "/ip4/0.0.0.0/tcp/0"
discovery:
  namespace: "lab-fabric"
tuning:
  local_echo: true
  query_timeout: "2s"
`

func writeTestConfig(t testing.TB, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestLoadNodeConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testConfigYAML)

	cfg, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("LoadNodeConfig() error: %v", err)
	}
	if cfg.Identity.KeyFile != "identity.key" {
		t.Errorf("KeyFile = %q, want identity.key", cfg.Identity.KeyFile)
	}
	if cfg.Discovery.Namespace != "lab-fabric" {
		t.Errorf("Namespace = %q, want lab-fabric", cfg.Discovery.Namespace)
	}
	if cfg.Tuning.QueryTimeout.String() != "2s" {
		t.Errorf("QueryTimeout = %v, want 2s", cfg.Tuning.QueryTimeout)
	}
}

func TestLoadNodeConfigRejectsFutureVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "version: 99\nidentity:\n  key_file: k\n")

	if _, err := LoadNodeConfig(path); err == nil {
		t.Fatal("expected error for future config version")
	}
}

func TestLoadNodeConfigRejectsPermissiveMode(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testConfigYAML)
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadNodeConfig(path); err == nil {
		t.Fatal("expected error for world-readable config file")
	}
}

func TestSaveNodeConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := &NodeConfig{
		Version:  CurrentConfigVersion,
		Identity: IdentityConfig{KeyFile: "identity.key"},
		Network:  NetworkConfig{ListenAddresses: []string{"/ip4/0.0.0.0/tcp/0"}},
		Tuning:   DefaultTuning(),
	}
	if err := SaveNodeConfig(path, cfg); err != nil {
		t.Fatalf("SaveNodeConfig() error: %v", err)
	}

	got, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("LoadNodeConfig() error: %v", err)
	}
	if got.Tuning.QueryTimeout != cfg.Tuning.QueryTimeout {
		t.Errorf("QueryTimeout = %v, want %v", got.Tuning.QueryTimeout, cfg.Tuning.QueryTimeout)
	}

	// A second save archives the first write as last-known-good.
	cfg.Identity.KeyFile = "other.key"
	if err := SaveNodeConfig(path, cfg); err != nil {
		t.Fatalf("second SaveNodeConfig() error: %v", err)
	}
	if !HasArchive(path) {
		t.Error("expected an archived last-known-good copy after the second save")
	}
}

func TestValidateNodeConfig(t *testing.T) {
	cfg := &NodeConfig{
		Identity: IdentityConfig{KeyFile: "k"},
		Network:  NetworkConfig{ListenAddresses: []string{"/ip4/0.0.0.0/tcp/0"}},
	}
	if err := ValidateNodeConfig(cfg); err != nil {
		t.Errorf("ValidateNodeConfig() error: %v", err)
	}

	cfg.Discovery.Namespace = "Not Valid!"
	if err := ValidateNodeConfig(cfg); err == nil {
		t.Error("expected error for invalid namespace")
	}
}

func TestFindConfigFileExplicit(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testConfigYAML)

	got, err := FindConfigFile(path)
	if err != nil {
		t.Fatalf("FindConfigFile() error: %v", err)
	}
	if got != path {
		t.Errorf("FindConfigFile() = %q, want %q", got, path)
	}

	if _, err := FindConfigFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}
