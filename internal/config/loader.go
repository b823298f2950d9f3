package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load parses a configuration from the given reader with strict field
// validation; unknown fields cause an error. Fields absent from the file
// keep their default values.
func Load(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	cfg := Default()
	if err := decoder.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty config file")
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a configuration from the given file path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path) //nolint:gosec // config path comes from user input, expected behavior
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}
