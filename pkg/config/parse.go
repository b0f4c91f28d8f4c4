package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes and validates it.
// Missing fields fall back to the defaults.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ParseSweepYAML parses a Sweep from YAML bytes and validates it.
// This is used for APIs where the sweep is provided as payload (not via
// the filesystem).
func ParseSweepYAML(data []byte) (*Sweep, error) {
	var sweep Sweep
	if err := yaml.Unmarshal(data, &sweep); err != nil {
		return nil, fmt.Errorf("failed to parse sweep yaml: %w", err)
	}

	if err := validateSweep(&sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep: %w", err)
	}

	return &sweep, nil
}

// ParseSweepYAMLString parses a Sweep from a YAML string and validates it.
func ParseSweepYAMLString(yamlText string) (*Sweep, error) {
	return ParseSweepYAML([]byte(yamlText))
}
