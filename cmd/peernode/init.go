package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danpeer/peernode/internal/config"
)

func runInit(args []string) {
	fs := newFlagSet("init")
	configPath := fs.String("config", "", "path to write the config file")
	parse(fs, args)

	path := *configPath
	if path == "" {
		dir, err := config.DefaultConfigDir()
		fatalIf(err)
		path = filepath.Join(dir, "config.yaml")
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "config already exists at %s\n", path)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fatalIf(err)
	}

	cfg := &config.NodeConfig{
		Version:  config.CurrentConfigVersion,
		Identity: config.IdentityConfig{KeyFile: filepath.Join(filepath.Dir(path), "identity.key")},
		Network:  config.NetworkConfig{ListenAddresses: []string{"/ip4/0.0.0.0/tcp/0", "/ip4/0.0.0.0/udp/0/quic-v1"}},
		Tuning:   config.DefaultTuning(),
	}
	fatalIf(config.SaveNodeConfig(path, cfg))

	fmt.Printf("wrote %s\n", path)
	fmt.Println("edit discovery.namespace to isolate your fabric, then run: peernode serve")
}
