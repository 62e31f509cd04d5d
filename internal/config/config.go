package config

import (
	"time"
)

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// NodeConfig is the YAML bootstrap configuration for a peernode process:
// identity, transport listen/discovery settings, and the tunables that
// seed peernode.Config before Enter (spec.md §6 "net" command table).
// Trimmed from the teacher's HomeNodeConfig/ClientNodeConfig/
// RelayServerConfig split: Relay/Security/Services/Protocols/Names/CLI/
// Telemetry fields served shurli's authenticated-relay product and have
// no home in this spec (see DESIGN.md "Dropped / adapted teacher
// modules").
type NodeConfig struct {
	Version   int             `yaml:"version,omitempty"`
	Identity  IdentityConfig  `yaml:"identity"`
	Network   NetworkConfig   `yaml:"network"`
	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`
	Tuning    TuningConfig    `yaml:"tuning,omitempty"`
}

// IdentityConfig holds identity-related configuration.
type IdentityConfig struct {
	KeyFile string `yaml:"key_file"`
}

// NetworkConfig holds transport network configuration.
type NetworkConfig struct {
	ListenAddresses []string `yaml:"listen_addresses"`
	Interface       string   `yaml:"interface,omitempty"`
}

// DiscoveryConfig holds LAN discovery configuration.
type DiscoveryConfig struct {
	// Namespace scopes mDNS beaconing to a private fabric, validated
	// DNS-label-safe (internal/validate) since it is embedded directly in
	// the zeroconf service-type string (transport/libp2pgossip/discovery.go).
	Namespace   string `yaml:"namespace,omitempty"`
	MDNSEnabled *bool  `yaml:"mdns_enabled,omitempty"`
}

// IsMDNSEnabled returns whether mDNS local discovery is enabled.
// Defaults to true when not explicitly set in config.
func (d *DiscoveryConfig) IsMDNSEnabled() bool {
	if d.MDNSEnabled == nil {
		return true
	}
	return *d.MDNSEnabled
}

// TuningConfig holds the peernode.Config tunables an operator can persist
// or flip at runtime via the "net" command (spec.md §6).
type TuningConfig struct {
	Debugging      bool `yaml:"debugging,omitempty"`
	LocalEcho      bool `yaml:"local_echo,omitempty"`
	CommandEcho    bool `yaml:"command_echo,omitempty"`
	FullNames      bool `yaml:"full_names,omitempty"`
	FrontDelimiter bool `yaml:"front_delimiter,omitempty"`
	ShowGroups     bool `yaml:"show_groups,omitempty"`
	EvasiveRefresh bool `yaml:"evasive_refresh,omitempty"`

	QueryTimeout   time.Duration `yaml:"-"`
	ObserveDelayMS uint64        `yaml:"observe_delay_ms,omitempty"`
	EvasiveMS      uint32        `yaml:"evasive_ms,omitempty"`
	ExpiredMS      uint32        `yaml:"expired_ms,omitempty"`
	KeepaliveMS    uint32        `yaml:"keepalive_ms,omitempty"`

	// QueryTimeoutRaw is the duration-string form of QueryTimeout on the
	// wire (a bare time.Duration marshals as an integer nanosecond
	// count, which is not operator-friendly); loader.go translates
	// between the two, mirroring the teacher's reservation_interval
	// string-duration convention.
	QueryTimeoutRaw string `yaml:"query_timeout,omitempty"`
}

// DefaultTuning returns the numeric tunables peernode.Config.withDefaults
// would apply, plus LocalEcho and ShowGroups switched on, for seeding a
// freshly initialized config file (cmd/peernode "init").
func DefaultTuning() TuningConfig {
	return TuningConfig{
		LocalEcho:       true,
		ShowGroups:      true,
		QueryTimeout:    5 * time.Second,
		QueryTimeoutRaw: "5s",
		ObserveDelayMS:  2000,
		EvasiveMS:       5000,
		ExpiredMS:       30000,
		KeepaliveMS:     1000,
	}
}
