package hooks

import (
	"fmt"
)

// Config holds hook configuration
type Config struct {
	// Disabled lists hook types whose handlers are never run.
	Disabled []HookType `koanf:"disabled" json:"disabled"`
}

// knownHooks is every hook type the manager dispatches.
var knownHooks = map[HookType]bool{
	HookProjectOpened:           true,
	HookProjectClosing:          true,
	HookProjectClosed:           true,
	HookRunConfigurationAdded:   true,
	HookRunConfigurationChanged: true,
	HookRunConfigurationRemoved: true,
}

// DefaultConfig returns the default configuration: every hook enabled.
func DefaultConfig() *Config {
	return &Config{}
}

// FromNames builds a Config from hook type names, as read from app config.
func FromNames(disabled []string) (*Config, error) {
	cfg := DefaultConfig()
	for _, name := range disabled {
		cfg.Disabled = append(cfg.Disabled, HookType(name))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for _, t := range c.Disabled {
		if !knownHooks[t] {
			return fmt.Errorf("unknown hook type %q", t)
		}
	}
	return nil
}

// Enabled reports whether handlers for hookType should run.
func (c *Config) Enabled(hookType HookType) bool {
	for _, t := range c.Disabled {
		if t == hookType {
			return false
		}
	}
	return true
}
