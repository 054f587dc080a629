// Package catalog provides the lookup table of named training
// description templates. Templates are resolved to a concrete
// description before the workflow engine is invoked, keeping
// presentation concerns out of the orchestration core.
package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is one pre-packaged training description: the content to
// upload, the range topology to provision, and an optional
// scenario-progression reference. Refs may contain a {count}
// placeholder substituted with the trainee count at resolution time.
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title,omitempty" json:"title,omitempty"`
	Content     string `yaml:"content" json:"content"`
	Topology    string `yaml:"topology" json:"topology"`
	Progression string `yaml:"progression,omitempty" json:"progression,omitempty"`
}

// Resolved is a template with its placeholders substituted.
type Resolved struct {
	ContentRef  string
	TopologyRef string
	Progression string
}

type catalogFile struct {
	Templates []Template `yaml:"templates"`
}

// Catalog holds the named templates in file order.
type Catalog struct {
	templates []Template
	byName    map[string]*Template
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{byName: make(map[string]*Template)}
	for i := range file.Templates {
		t := &file.Templates[i]
		if t.Name == "" {
			return nil, fmt.Errorf("parse catalog: template %d has no name", i)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate template %q", t.Name)
		}
		c.templates = append(c.templates, *t)
		c.byName[t.Name] = t
	}
	return c, nil
}

// Templates returns the templates in file order.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Resolve looks up a template by name and substitutes the trainee
// count into its references.
func (c *Catalog) Resolve(name string, trainees int) (*Resolved, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown training template %q", name)
	}
	count := strconv.Itoa(trainees)
	sub := func(ref string) string {
		return strings.ReplaceAll(ref, "{count}", count)
	}
	return &Resolved{
		ContentRef:  sub(t.Content),
		TopologyRef: sub(t.Topology),
		Progression: t.Progression,
	}, nil
}
