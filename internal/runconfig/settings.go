package runconfig

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrRunConfigNotFound  = errors.New("run configuration not found")
	ErrRunConfigExists    = errors.New("run configuration already exists")
	ErrEmptyRunConfigName = errors.New("run configuration name cannot be empty")
	ErrUnsupportedFormat  = errors.New("unsupported run configuration format")
)

// PythonPathVar is the environment variable the python path updater edits.
const PythonPathVar = "PYTHONPATH"

// Settings is a run configuration: how the host launches a script of the
// project.
type Settings struct {
	ID               string            `yaml:"id,omitempty" toml:"id" json:"id"`
	Name             string            `yaml:"name" toml:"name" json:"name"`
	ProjectPath      string            `yaml:"project,omitempty" toml:"project" json:"project,omitempty"`
	ScriptPath       string            `yaml:"script,omitempty" toml:"script" json:"script,omitempty"`
	WorkingDirectory string            `yaml:"working_directory,omitempty" toml:"working_directory" json:"working_directory,omitempty"`
	Args             []string          `yaml:"args,omitempty" toml:"args" json:"args,omitempty"`
	Env              map[string]string `yaml:"env,omitempty" toml:"env" json:"env,omitempty"`
}

// Validate checks the fields required to register the settings.
func (s *Settings) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil settings", ErrEmptyRunConfigName)
	}
	if s.Name == "" {
		return ErrEmptyRunConfigName
	}
	return nil
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	c := *s
	if s.Args != nil {
		c.Args = append([]string(nil), s.Args...)
	}
	if s.Env != nil {
		c.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			c.Env[k] = v
		}
	}
	return &c
}
