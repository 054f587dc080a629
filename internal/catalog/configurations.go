package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Configuration is a trainer's saved training setup: a catalog
// template plus the parameters to launch it with. Entries without an
// owner are shared presets visible to everyone.
type Configuration struct {
	Name        string `yaml:"name" json:"name"`
	Owner       string `yaml:"owner,omitempty" json:"owner,omitempty"`
	Template    string `yaml:"template" json:"template"`
	Trainees    int    `yaml:"trainees" json:"trainees"`
	Progression string `yaml:"progression,omitempty" json:"progression,omitempty"`
}

type configurationsFile struct {
	Configurations []Configuration `yaml:"configurations"`
}

// Configurations holds saved configurations in file order.
type Configurations struct {
	entries []Configuration
}

// LoadConfigurations reads saved configurations from a YAML file.
func LoadConfigurations(path string) (*Configurations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configurations: %w", err)
	}
	return ParseConfigurations(data)
}

// ParseConfigurations decodes saved-configuration YAML.
func ParseConfigurations(data []byte) (*Configurations, error) {
	var file configurationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse configurations: %w", err)
	}
	for i, c := range file.Configurations {
		if c.Name == "" {
			return nil, fmt.Errorf("parse configurations: entry %d has no name", i)
		}
		if c.Template == "" {
			return nil, fmt.Errorf("parse configurations: entry %q has no template", c.Name)
		}
	}
	return &Configurations{entries: file.Configurations}, nil
}

// ForOwner returns the configurations visible to a trainer: their own
// entries plus the shared ones. An empty owner returns only the
// shared entries.
func (c *Configurations) ForOwner(owner string) []Configuration {
	out := make([]Configuration, 0, len(c.entries))
	for _, entry := range c.entries {
		if entry.Owner == "" || entry.Owner == owner {
			out = append(out, entry)
		}
	}
	return out
}
