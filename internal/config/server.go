package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Server holds the static service configuration read once at startup.
// Command-line flags override whatever the file says; the API-facing
// Settings in this package remain the only runtime-mutable state.
type Server struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Debug   bool   `toml:"debug"`
	DataDir string `toml:"data_dir"`

	// Session is the default multiplexer session targeted by launches
	// that do not name one.
	Session string `toml:"session"`

	// PortProbes bounds the search for a free port when Port is taken.
	PortProbes int `toml:"port_probes"`
}

// DefaultServer returns the built-in server configuration.
func DefaultServer() Server {
	return Server{
		Host:       "127.0.0.1",
		Port:       5000,
		DataDir:    "data",
		Session:    "training",
		PortProbes: 10,
	}
}

// LoadServer reads a TOML server configuration, layered over the
// defaults. A missing file is not an error; a malformed one is.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
