package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatelet-dev/gatelet/internal/permission"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
name: fetcher
version: 0.2.0
requires:
  - kind: read
    qualifier: /etc/hosts
  - kind: net
    qualifier: example.com:443
  - kind: hrtime
config:
  retries: 3
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "fetcher", m.Name)
	assert.Equal(t, "0.2.0", m.Version)
	require.Len(t, m.Requires, 3)
	assert.Equal(t, Requirement{Kind: "read", Qualifier: "/etc/hosts"}, m.Requires[0])
	assert.EqualValues(t, 3, m.Config["retries"])
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestLoadManifest_UnknownKey(t *testing.T) {
	path := writeManifest(t, `
name: fetcher
capabilities:
  - kind: read
`)

	_, err := LoadManifest(path)
	require.Error(t, err)
}

func TestManifest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		wantErr  string
	}{
		{
			name:     "valid",
			manifest: Manifest{Name: "ok", Requires: []Requirement{{Kind: "env", Qualifier: "HOME"}}},
		},
		{
			name:     "missing name",
			manifest: Manifest{},
			wantErr:  "name is required",
		},
		{
			name:     "unknown kind",
			manifest: Manifest{Name: "bad", Requires: []Requirement{{Kind: "clipboard"}}},
			wantErr:  `unknown capability kind "clipboard"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManifest_Descriptors(t *testing.T) {
	m := Manifest{
		Name: "fetcher",
		Requires: []Requirement{
			{Kind: "read", Qualifier: "/etc/hosts"},
			{Kind: "hrtime"},
		},
	}

	descs := m.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, permission.Key{Name: permission.NameRead, Qualifier: "/etc/hosts"}, descs[0].Key())
	assert.Equal(t, permission.Key{Name: permission.NameHrtime}, descs[1].Key())
}
