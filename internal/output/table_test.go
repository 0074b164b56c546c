package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/gatelet-dev/gatelet/internal/audit"
	"github.com/gatelet-dev/gatelet/internal/lint"
	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableFormatter_FormatStatuses(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	formatter := NewTableFormatter(&buf)

	err := formatter.FormatStatuses([]StatusEntry{
		{Capability: "read:/var/app", State: permission.StateGranted},
		{Capability: "net:example.com:443", State: permission.StateDenied},
		{Capability: "env:EDITOR", State: permission.StatePrompt},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Capabilities:")
	assert.Contains(t, out, "✓ read:/var/app")
	assert.Contains(t, out, "✗ net:example.com:443")
	assert.Contains(t, out, "? env:EDITOR")
	assert.Contains(t, out, "3 capabilities: 1 granted, 1 denied, 1 prompt")
}

func TestTableFormatter_FormatStatuses_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	formatter := NewTableFormatter(&buf)

	require.NoError(t, formatter.FormatStatuses(nil))
	assert.Equal(t, "No capabilities.\n", buf.String())
}

func TestTableFormatter_FormatGrants(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	formatter := NewTableFormatter(&buf)

	err := formatter.FormatGrants([]policy.Grant{
		{Name: "read", Qualifier: "/var/app", GrantedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
		{Name: "hrtime", GrantedAt: time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Persisted grants:")
	assert.Contains(t, out, "read:/var/app")
	assert.Contains(t, out, "hrtime")
	assert.Contains(t, out, "granted 2026-05-01T12:00:00Z")
	assert.Contains(t, out, "2 grants")
}

func TestTableFormatter_FormatEvents(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	formatter := NewTableFormatter(&buf)

	err := formatter.FormatEvents([]audit.Event{
		{
			Time:      time.Date(2026, 5, 1, 12, 3, 0, 0, time.UTC),
			Op:        audit.OpRequest,
			Name:      permission.NameRead,
			Qualifier: "/tmp/data",
			State:     permission.StateGranted,
			Source:    "cli",
		},
		{
			Time:   time.Date(2026, 5, 1, 12, 4, 0, 0, time.UTC),
			Op:     audit.OpRevoke,
			Name:   permission.NameHrtime,
			State:  permission.StatePrompt,
			Source: "cli",
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Audit events:")
	assert.Contains(t, out, "2026-05-01T12:03:00Z")
	assert.Contains(t, out, "request")
	assert.Contains(t, out, "read:/tmp/data")
	assert.Contains(t, out, "revoke")
	assert.Contains(t, out, "2 events")
}

func TestTableFormatter_FormatFindings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	formatter := NewTableFormatter(&buf)

	err := formatter.FormatFindings([]lint.Finding{
		{RuleID: "root-path", Level: lint.LevelError, Capability: permission.NameRead, Pattern: "/", Message: `read allow entry "/" covers the entire filesystem`},
		{RuleID: "portless-net", Level: lint.LevelNote, Capability: permission.NameNet, Pattern: "example.com", Message: `net allow entry "example.com" matches every port on that host, consider pinning one`},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Findings:")
	assert.Contains(t, out, "✗ ERROR")
	assert.Contains(t, out, "root-path")
	assert.Contains(t, out, "· NOTE")
	assert.Contains(t, out, "2 findings: 1 errors, 0 warnings, 1 notes")
}

func TestTableFormatter_FormatFindings_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	formatter := NewTableFormatter(&buf)

	require.NoError(t, formatter.FormatFindings(nil))
	assert.Equal(t, "No findings.\n", buf.String())
}
