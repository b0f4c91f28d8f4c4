package config

// Config represents the daemon configuration
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
	DBPath   string `yaml:"db_path,omitempty"` // empty disables the run archive
}

// DefaultConfig returns a Config with the default settings
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
	}
}

// Sweep represents a batch of worst-case constructions to run in order
type Sweep struct {
	Cases []Case `yaml:"cases"`
}

// Case represents one worst-case construction
type Case struct {
	Name       string `yaml:"name"`
	Actions    int    `yaml:"actions"`
	Increments int    `yaml:"increments"`
	// IncludeTrailing defaults to true: the trailing phase is what makes
	// the bound tight, so opting out is explicit.
	IncludeTrailing *bool `yaml:"include_trailing,omitempty"`
}

// Trailing resolves the trailing-phase flag, applying the default.
func (c *Case) Trailing() bool {
	if c.IncludeTrailing == nil {
		return true
	}
	return *c.IncludeTrailing
}
