package catalog

import (
	"testing"
)

const testConfigsYAML = `
configurations:
  - name: weekly-fundamentals
    owner: john_doe
    template: nist-level1
    trainees: 10
  - name: forensics-refresher
    owner: jane_roe
    template: forensics-intro
    trainees: 4
    progression: evidence-hunt
  - name: open-demo
    template: nist-level1
    trainees: 1
`

func TestParseConfigurations(t *testing.T) {
	c, err := ParseConfigurations([]byte(testConfigsYAML))
	if err != nil {
		t.Fatalf("ParseConfigurations: %v", err)
	}
	all := c.ForOwner("john_doe")
	if len(all) != 2 {
		t.Fatalf("got %d configurations for john_doe, want 2", len(all))
	}
	if all[0].Name != "weekly-fundamentals" || all[0].Trainees != 10 {
		t.Errorf("first entry = %+v", all[0])
	}
	if all[1].Name != "open-demo" {
		t.Errorf("shared entry = %+v", all[1])
	}
}

func TestForOwnerFiltersPrivateEntries(t *testing.T) {
	c, err := ParseConfigurations([]byte(testConfigsYAML))
	if err != nil {
		t.Fatalf("ParseConfigurations: %v", err)
	}

	// An unknown or anonymous owner sees only the shared entries.
	for _, owner := range []string{"", "stranger"} {
		got := c.ForOwner(owner)
		if len(got) != 1 || got[0].Name != "open-demo" {
			t.Errorf("ForOwner(%q) = %+v, want only open-demo", owner, got)
		}
	}

	jane := c.ForOwner("jane_roe")
	if len(jane) != 2 || jane[0].Name != "forensics-refresher" {
		t.Errorf("ForOwner(jane_roe) = %+v", jane)
	}
}

func TestParseConfigurationsRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"nameless entry", "configurations:\n  - template: nist-level1\n    trainees: 3\n"},
		{"missing template", "configurations:\n  - name: x\n    trainees: 3\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseConfigurations([]byte(tc.yaml)); err == nil {
				t.Error("bad configurations accepted")
			}
		})
	}
}
