package main

import (
	"fmt"
	"os"

	"github.com/naoina/toml"
)

// Config is the daemon's on-disk configuration. Economy parameters are
// compiled in (params.DefaultEconomy); the config file only carries node
// concerns and genesis inputs.
type Config struct {
	// DataDir holds the leveldb state database.
	DataDir string

	// HTTPAddr is the listen address for the HTTP/websocket API.
	HTTPAddr string

	// StartTime is the unix timestamp epochs are counted from. Zero means
	// "now" on first boot; ignored once state exists.
	StartTime uint64

	// InitialSupply is the genesis fish supply in base units, as a decimal
	// string. Ignored once state exists.
	InitialSupply string
}

// DefaultConfig is the configuration used when no file or flag overrides
// are given.
var DefaultConfig = Config{
	DataDir:       "kodiak-data",
	HTTPAddr:      "127.0.0.1:8547",
	InitialSupply: "6899000000000000000000", // 6899 fish
}

func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
