package catalog

import (
	"testing"
)

const testYAML = `
templates:
  - name: nist-level1
    title: "NIST Level 1: Security fundamentals"
    content: training/nist-level1-content.yml
    topology: training/nist-level1-range-{count}.yml
  - name: forensics-intro
    content: training/forensics-content.yml
    topology: training/forensics-range.yml
    progression: evidence-hunt
`

func TestParseAndTemplates(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	templates := c.Templates()
	if len(templates) != 2 {
		t.Fatalf("got %d templates, want 2", len(templates))
	}
	if templates[0].Name != "nist-level1" || templates[1].Name != "forensics-intro" {
		t.Errorf("template order = %s, %s", templates[0].Name, templates[1].Name)
	}
	if templates[1].Progression != "evidence-hunt" {
		t.Errorf("progression = %q", templates[1].Progression)
	}
}

func TestResolveSubstitutesCount(t *testing.T) {
	c, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	resolved, err := c.Resolve("nist-level1", 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.TopologyRef != "training/nist-level1-range-5.yml" {
		t.Errorf("topology = %q, count placeholder not substituted", resolved.TopologyRef)
	}
	if resolved.ContentRef != "training/nist-level1-content.yml" {
		t.Errorf("content = %q", resolved.ContentRef)
	}
}

func TestResolveUnknownTemplate(t *testing.T) {
	c, _ := Parse([]byte(testYAML))
	if _, err := c.Resolve("nope", 1); err == nil {
		t.Error("unknown template resolved without error")
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"nameless template", "templates:\n  - content: a.yml\n    topology: b.yml\n"},
		{"duplicate name", "templates:\n  - name: x\n    content: a.yml\n    topology: b.yml\n  - name: x\n    content: c.yml\n    topology: d.yml\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Error("bad catalog accepted")
			}
		})
	}
}
