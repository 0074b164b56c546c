package sandbox

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/gatelet-dev/gatelet/internal/permission"
)

// Requirement names one capability a plugin declares up front.
type Requirement struct {
	Kind      string `yaml:"kind"`
	Qualifier string `yaml:"qualifier,omitempty"`
}

// Manifest describes a plugin to the harness: its identity, the
// capabilities it wants preflighted, and the configuration passed to
// its run entrypoint.
type Manifest struct {
	Name     string         `yaml:"name"`
	Version  string         `yaml:"version,omitempty"`
	Requires []Requirement  `yaml:"requires,omitempty"`
	Config   map[string]any `yaml:"config,omitempty"`
}

// LoadManifest reads and validates a plugin manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks the manifest's structure, collecting every problem
// it finds.
func (m *Manifest) Validate() error {
	var errors []string

	if m.Name == "" {
		errors = append(errors, "name is required")
	}

	for i, req := range m.Requires {
		if !permission.Name(req.Kind).Valid() {
			errors = append(errors, fmt.Sprintf("requires entry %d: unknown capability kind %q", i, req.Kind))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("invalid manifest: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Descriptors converts the declared requirements into capability
// descriptors for preflight.
func (m *Manifest) Descriptors() []permission.Descriptor {
	descs := make([]permission.Descriptor, len(m.Requires))
	for i, req := range m.Requires {
		descs[i] = permission.NewDescriptor(permission.Name(req.Kind), req.Qualifier)
	}
	return descs
}
