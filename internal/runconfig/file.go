package runconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a run configuration file.
type File struct {
	RunConfigurations []*Settings `yaml:"run_configurations" toml:"run_configurations"`
}

// LoadFile reads run configurations from a .yaml, .yml or .toml file and
// validates each entry.
func LoadFile(path string) ([]*Settings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runconfig: read %s: %w", path, err)
	}

	var file File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(content)) == 0 {
			return nil, nil
		}
		if err := yaml.Unmarshal(content, &file); err != nil {
			return nil, fmt.Errorf("runconfig: decode %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(content), &file); err != nil {
			return nil, fmt.Errorf("runconfig: decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	for i, s := range file.RunConfigurations {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("runconfig: %s: entry %d: %w", path, i, err)
		}
	}
	return file.RunConfigurations, nil
}
