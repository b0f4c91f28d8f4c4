package config

import (
	"fmt"
	"os"
)

// LoadConfig loads and parses a daemon configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadSweep loads and parses a sweep file
func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep file %s: %w", path, err)
	}
	sweep, err := ParseSweepYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sweep file %s: %w", path, err)
	}
	return sweep, nil
}

// validateConfig performs validation on the daemon configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.HTTPAddr == "" {
		return fmt.Errorf("http_addr cannot be empty")
	}

	return nil
}

// validateSweep performs validation on a sweep definition
func validateSweep(s *Sweep) error {
	if len(s.Cases) == 0 {
		return fmt.Errorf("at least one case must be defined")
	}

	caseNames := make(map[string]bool)
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("case %d: name cannot be empty", i)
		}
		if caseNames[c.Name] {
			return fmt.Errorf("duplicate case name: %s", c.Name)
		}
		caseNames[c.Name] = true

		if c.Actions < 2 {
			return fmt.Errorf("case %s: actions must be >= 2, got %d", c.Name, c.Actions)
		}
		if c.Increments < 1 {
			return fmt.Errorf("case %s: increments must be >= 1, got %d", c.Name, c.Increments)
		}
	}

	return nil
}
