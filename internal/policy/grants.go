package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/goccy/go-yaml"
)

// Grant records one persisted "always allow" decision.
type Grant struct {
	Name      string    `yaml:"name"`
	Qualifier string    `yaml:"qualifier,omitempty"`
	GrantedAt time.Time `yaml:"granted_at"`
}

// Matches reports whether the grant covers the given capability key.
func (g Grant) Matches(key permission.Key) bool {
	return g.Name == string(key.Name) && g.Qualifier == key.Qualifier
}

// grantsFile represents the YAML structure of ~/.gatelet/grants.yaml.
type grantsFile struct {
	Grants []Grant `yaml:"grants"`
}

// GrantsFile provides file-based persistence for capability grants.
type GrantsFile struct {
	path string
}

// NewGrantsFile creates a grants store backed by the given file.
func NewGrantsFile(path string) *GrantsFile {
	return &GrantsFile{path: path}
}

// DefaultGrantsPath returns the per-user grants file location.
func DefaultGrantsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".gatelet", "grants.yaml"), nil
}

// Path returns the path to the grants file.
func (s *GrantsFile) Path() string {
	return s.path
}

// Load loads persisted grants. A missing file loads as empty without
// error.
func (s *GrantsFile) Load() ([]Grant, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grants file: %w", err)
	}

	var f grantsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse grants file: %w", err)
	}

	return f.Grants, nil
}

// Save writes the full grant list, replacing the file contents.
func (s *GrantsFile) Save(grants []Grant) error {
	dir := filepath.Dir(s.path)
	//nolint:gosec // G301: 0o755 is standard for user config directories (~/.gatelet)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create grants directory: %w", err)
	}

	data, err := yaml.MarshalWithOptions(grantsFile{Grants: grants}, yaml.IndentSequence(true))
	if err != nil {
		return fmt.Errorf("failed to marshal grants to YAML: %w", err)
	}

	return os.WriteFile(s.path, data, 0o600)
}

// Append persists a grant, ignoring exact duplicates.
func (s *GrantsFile) Append(g Grant) error {
	grants, err := s.Load()
	if err != nil {
		return err
	}

	for _, existing := range grants {
		if existing.Name == g.Name && existing.Qualifier == g.Qualifier {
			return nil
		}
	}

	return s.Save(append(grants, g))
}

// Remove deletes grants for the given capability. It reports whether
// anything was removed.
func (s *GrantsFile) Remove(name, qualifier string) (bool, error) {
	grants, err := s.Load()
	if err != nil {
		return false, err
	}

	kept := grants[:0]
	for _, g := range grants {
		if g.Name == name && g.Qualifier == qualifier {
			continue
		}
		kept = append(kept, g)
	}

	if len(kept) == len(grants) {
		return false, nil
	}

	return true, s.Save(kept)
}

// Record persists an "always allow" decision for the capability d
// names. It satisfies the decision engine's grant recorder seam.
func (s *GrantsFile) Record(d permission.Descriptor) error {
	return s.Append(Grant{
		Name:      string(d.Name),
		Qualifier: d.Qualifier(),
		GrantedAt: time.Now().UTC(),
	})
}
