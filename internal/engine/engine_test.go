package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	interactive bool
	decision    Decision
	err         error
	calls       int
}

func (f *fakePrompter) Interactive() bool { return f.interactive }

func (f *fakePrompter) Prompt(ctx context.Context, d permission.Descriptor) (Decision, error) {
	f.calls++
	return f.decision, f.err
}

type fakeRecorder struct {
	recorded []permission.Descriptor
	err      error
}

func (f *fakeRecorder) Record(d permission.Descriptor) error {
	f.recorded = append(f.recorded, d)
	return f.err
}

func queryState(t *testing.T, e *Engine, d permission.Descriptor) permission.State {
	t.Helper()
	state, err := e.Query(context.Background(), d)
	require.NoError(t, err)
	return state
}

func TestEngine_EmptyPolicyDefaultsToPrompt(t *testing.T) {
	e, err := New(nil)
	require.NoError(t, err)

	assert.Equal(t, permission.StatePrompt, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/tmp"}))
	assert.Equal(t, permission.StatePrompt, queryState(t, e, permission.Descriptor{Name: permission.NameHrtime}))
}

func TestEngine_UnlistedDenied(t *testing.T) {
	e, err := New(&policy.Document{Defaults: &policy.Defaults{Unlisted: "denied"}})
	require.NoError(t, err)

	assert.Equal(t, permission.StateDenied, queryState(t, e, permission.Descriptor{Name: permission.NameNet, Host: "example.com"}))
}

func TestEngine_StaticAllowMatching(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"read": {Allow: policy.AllowList("/tmp", "/srv/data*")},
			"net":  {Allow: policy.AllowList("example.com:443")},
			"env":  {Allow: policy.AllowList("HOME", "GATELET_*")},
		},
	}
	e, err := New(doc)
	require.NoError(t, err)

	tests := []struct {
		name string
		desc permission.Descriptor
		want permission.State
	}{
		{"exact path", permission.Descriptor{Name: permission.NameRead, Path: "/tmp"}, permission.StateGranted},
		{"directory containment", permission.Descriptor{Name: permission.NameRead, Path: "/tmp/sub/file"}, permission.StateGranted},
		{"prefix wildcard", permission.Descriptor{Name: permission.NameRead, Path: "/srv/database"}, permission.StateGranted},
		{"uncovered path", permission.Descriptor{Name: permission.NameRead, Path: "/etc"}, permission.StatePrompt},
		{"sibling not contained", permission.Descriptor{Name: permission.NameRead, Path: "/tmpfiles"}, permission.StatePrompt},
		{"exact host", permission.Descriptor{Name: permission.NameNet, Host: "example.com:443"}, permission.StateGranted},
		{"host no containment", permission.Descriptor{Name: permission.NameNet, Host: "example.com:443/extra"}, permission.StatePrompt},
		{"exact variable", permission.Descriptor{Name: permission.NameEnv, Variable: "HOME"}, permission.StateGranted},
		{"variable prefix", permission.Descriptor{Name: permission.NameEnv, Variable: "GATELET_DEBUG"}, permission.StateGranted},
		{"uncovered variable", permission.Descriptor{Name: permission.NameEnv, Variable: "PATH"}, permission.StatePrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryState(t, e, tt.desc))
		})
	}
}

func TestEngine_BlanketAllowAndKindWideQueries(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"hrtime": {Allow: policy.AllowAll()},
			"read":   {Allow: policy.AllowList("/tmp")},
			"sys":    {Allow: policy.AllowAll()},
		},
	}
	e, err := New(doc)
	require.NoError(t, err)

	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameHrtime}))
	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameSys, Kind: "hostname"}))
	// Kind-wide read is not granted by a partial allow list.
	assert.Equal(t, permission.StatePrompt, queryState(t, e, permission.Descriptor{Name: permission.NameRead}))
	// A blanket grant covers the kind-wide query.
	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameSys}))
}

func TestEngine_DenyWins(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"read": {
				Allow: policy.AllowList("/var"),
				Deny:  []string{"/var/secrets"},
			},
			"run": {Allow: policy.DenyAll()},
		},
	}
	e, err := New(doc)
	require.NoError(t, err)

	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/var/log"}))
	assert.Equal(t, permission.StateDenied, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/var/secrets"}))
	assert.Equal(t, permission.StateDenied, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/var/secrets/key.pem"}))
	assert.Equal(t, permission.StateDenied, queryState(t, e, permission.Descriptor{Name: permission.NameRun, Command: "git"}))
}

func TestEngine_DenyAllIsNotPromptable(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"run": {Allow: policy.DenyAll()},
		},
	}
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: true}}
	e, err := NewWithPrompter(doc, nil, prompter, nil)
	require.NoError(t, err)

	state, err := e.Request(context.Background(), permission.Descriptor{Name: permission.NameRun, Command: "git"})
	require.NoError(t, err)
	assert.Equal(t, permission.StateDenied, state)
	assert.Zero(t, prompter.calls)
}

func TestEngine_PersistedGrants(t *testing.T) {
	grants := []policy.Grant{
		{Name: "net", Qualifier: "api.example.com:443"},
		{Name: "read", Qualifier: "/srv/shared"},
		{Name: "hrtime"},
	}
	e, err := NewWithPrompter(nil, grants, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameNet, Host: "api.example.com:443"}))
	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/srv/shared/file"}))
	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameHrtime}))
	assert.Equal(t, permission.StatePrompt, queryState(t, e, permission.Descriptor{Name: permission.NameNet, Host: "other.example.com"}))
}

func TestEngine_Rules(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"read": {
				Rules: []policy.Rule{
					{Pattern: "/srv/repo", State: "granted", When: `qualifier startsWith "/srv/repo/public"`},
					{Pattern: "/srv/repo", State: "denied"},
				},
			},
		},
	}
	e, err := New(doc)
	require.NoError(t, err)

	// The first matching rule wins; its when clause gates it.
	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/srv/repo/public/readme"}))
	assert.Equal(t, permission.StateDenied, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/srv/repo/private/key"}))
	assert.Equal(t, permission.StatePrompt, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/home/user"}))
}

func TestEngine_RuleCompileErrorSurfacesAtConstruction(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"read": {
				Rules: []policy.Rule{{Pattern: "*", State: "granted", When: "qualifier +"}},
			},
		},
	}
	_, err := New(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile read rule")
}

func TestEngine_RequestPromptAllowOnce(t *testing.T) {
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: true}}
	recorder := &fakeRecorder{}
	e, err := NewWithPrompter(nil, nil, prompter, recorder)
	require.NoError(t, err)

	desc := permission.Descriptor{Name: permission.NameEnv, Variable: "HOME"}

	state, err := e.Request(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StateGranted, state)
	assert.Equal(t, 1, prompter.calls)
	assert.Empty(t, recorder.recorded)

	// The session decision sticks for queries and repeat requests.
	assert.Equal(t, permission.StateGranted, queryState(t, e, desc))
	state, err = e.Request(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StateGranted, state)
	assert.Equal(t, 1, prompter.calls)
}

func TestEngine_RequestPromptAllowAlways(t *testing.T) {
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: true, Always: true}}
	recorder := &fakeRecorder{}
	e, err := NewWithPrompter(nil, nil, prompter, recorder)
	require.NoError(t, err)

	desc := permission.Descriptor{Name: permission.NameNet, Host: "example.com:443"}

	state, err := e.Request(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StateGranted, state)
	require.Len(t, recorder.recorded, 1)
	assert.Equal(t, desc.Key(), recorder.recorded[0].Key())
}

func TestEngine_RequestRecorderFailureStillGrants(t *testing.T) {
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: true, Always: true}}
	recorder := &fakeRecorder{err: errors.New("disk full")}
	e, err := NewWithPrompter(nil, nil, prompter, recorder)
	require.NoError(t, err)

	desc := permission.Descriptor{Name: permission.NameRead, Path: "/tmp"}

	state, err := e.Request(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StateGranted, state)
	assert.Equal(t, permission.StateGranted, queryState(t, e, desc))
}

func TestEngine_RequestPromptDeny(t *testing.T) {
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: false}}
	e, err := NewWithPrompter(nil, nil, prompter, nil)
	require.NoError(t, err)

	desc := permission.Descriptor{Name: permission.NameRun, Command: "curl"}

	state, err := e.Request(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StateDenied, state)

	// The denial sticks without prompting again.
	state, err = e.Request(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StateDenied, state)
	assert.Equal(t, 1, prompter.calls)
}

func TestEngine_RequestNotInteractive(t *testing.T) {
	desc := permission.Descriptor{Name: permission.NameRead, Path: "/tmp"}

	e, err := New(nil)
	require.NoError(t, err)
	_, err = e.Request(context.Background(), desc)
	assert.ErrorIs(t, err, ErrNotInteractive)

	e, err = NewWithPrompter(nil, nil, &fakePrompter{interactive: false}, nil)
	require.NoError(t, err)
	_, err = e.Request(context.Background(), desc)
	assert.ErrorIs(t, err, ErrNotInteractive)
}

func TestEngine_RequestPrompterError(t *testing.T) {
	prompter := &fakePrompter{interactive: true, err: errors.New("terminal closed")}
	e, err := NewWithPrompter(nil, nil, prompter, nil)
	require.NoError(t, err)

	_, err = e.Request(context.Background(), permission.Descriptor{Name: permission.NameHrtime})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prompt for hrtime")
}

func TestEngine_SessionGrantCoversDescendants(t *testing.T) {
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: true}}
	e, err := NewWithPrompter(nil, nil, prompter, nil)
	require.NoError(t, err)

	_, err = e.Request(context.Background(), permission.Descriptor{Name: permission.NameRead, Path: "/tmp"})
	require.NoError(t, err)

	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/tmp/sub/file"}))
	assert.Equal(t, permission.StatePrompt, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/etc"}))
}

func TestEngine_SessionDenialBeatsSessionGrant(t *testing.T) {
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: true}}
	e, err := NewWithPrompter(nil, nil, prompter, nil)
	require.NoError(t, err)

	// Grant /tmp, then deny the kind outright.
	_, err = e.Request(context.Background(), permission.Descriptor{Name: permission.NameRead, Path: "/tmp"})
	require.NoError(t, err)
	prompter.decision = Decision{Allow: false}
	_, err = e.Request(context.Background(), permission.Descriptor{Name: permission.NameRead})
	require.NoError(t, err)

	// The exact session grant still answers for /tmp, but the broader
	// denial covers everything else of the kind.
	assert.Equal(t, permission.StateGranted, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/tmp"}))
	assert.Equal(t, permission.StateDenied, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/home"}))
}

func TestEngine_RevokeSessionGrant(t *testing.T) {
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: true}}
	e, err := NewWithPrompter(nil, nil, prompter, nil)
	require.NoError(t, err)

	desc := permission.Descriptor{Name: permission.NameEnv, Variable: "HOME"}
	_, err = e.Request(context.Background(), desc)
	require.NoError(t, err)

	state, err := e.Revoke(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StatePrompt, state)
	assert.Equal(t, permission.StatePrompt, queryState(t, e, desc))
}

func TestEngine_RevokeStaticAllow(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"read": {Allow: policy.AllowList("/tmp")},
		},
	}
	e, err := New(doc)
	require.NoError(t, err)

	desc := permission.Descriptor{Name: permission.NameRead, Path: "/tmp"}
	require.Equal(t, permission.StateGranted, queryState(t, e, desc))

	state, err := e.Revoke(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StatePrompt, state)

	// Descendants lose too: the entry itself is masked.
	assert.Equal(t, permission.StatePrompt, queryState(t, e, permission.Descriptor{Name: permission.NameRead, Path: "/tmp/sub"}))
}

func TestEngine_RevokeChildOfBroaderGrantKeepsIt(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"read": {Allow: policy.AllowList("/tmp")},
		},
	}
	e, err := New(doc)
	require.NoError(t, err)

	// Revoking a path beneath a broader grant does not carve a hole in
	// it; the covering entry still answers.
	state, err := e.Revoke(context.Background(), permission.Descriptor{Name: permission.NameRead, Path: "/tmp/sub"})
	require.NoError(t, err)
	assert.Equal(t, permission.StateGranted, state)
}

func TestEngine_RevokeBlanketAllow(t *testing.T) {
	doc := &policy.Document{
		Capabilities: map[string]policy.Section{
			"hrtime": {Allow: policy.AllowAll()},
		},
	}
	e, err := New(doc)
	require.NoError(t, err)

	state, err := e.Revoke(context.Background(), permission.Descriptor{Name: permission.NameHrtime})
	require.NoError(t, err)
	assert.Equal(t, permission.StatePrompt, state)
}

func TestEngine_RevokePersistedGrant(t *testing.T) {
	grants := []policy.Grant{{Name: "net", Qualifier: "example.com:443"}}
	e, err := NewWithPrompter(nil, grants, nil, nil)
	require.NoError(t, err)

	desc := permission.Descriptor{Name: permission.NameNet, Host: "example.com:443"}
	require.Equal(t, permission.StateGranted, queryState(t, e, desc))

	state, err := e.Revoke(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StatePrompt, state)
}

func TestEngine_RegrantAfterRevoke(t *testing.T) {
	prompter := &fakePrompter{interactive: true, decision: Decision{Allow: true}}
	e, err := NewWithPrompter(nil, nil, prompter, nil)
	require.NoError(t, err)

	desc := permission.Descriptor{Name: permission.NameRun, Command: "git"}

	_, err = e.Request(context.Background(), desc)
	require.NoError(t, err)
	_, err = e.Revoke(context.Background(), desc)
	require.NoError(t, err)

	state, err := e.Request(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, permission.StateGranted, state)
	assert.Equal(t, 2, prompter.calls)
}

func TestEngine_NewTrusting(t *testing.T) {
	e := NewTrusting()

	for _, name := range permission.Names() {
		desc := permission.Descriptor{Name: name, Path: "/x", Host: "h", Command: "c", Variable: "V", Kind: "k"}
		assert.Equal(t, permission.StateGranted, queryState(t, e, desc), "kind %s", name)
	}

	// Requests never prompt when everything is already granted.
	state, err := e.Request(context.Background(), permission.Descriptor{Name: permission.NameRead, Path: "/etc"})
	require.NoError(t, err)
	assert.Equal(t, permission.StateGranted, state)
}

func TestCovers(t *testing.T) {
	tests := []struct {
		name      string
		kind      permission.Name
		pattern   string
		qualifier string
		want      bool
	}{
		{"kind-wide pattern", permission.NameRead, "", "/anything", true},
		{"universal wildcard", permission.NameNet, "*", "example.com", true},
		{"exact", permission.NameEnv, "HOME", "HOME", true},
		{"trailing wildcard", permission.NameEnv, "AWS_*", "AWS_SECRET", true},
		{"trailing wildcard miss", permission.NameEnv, "AWS_*", "GCP_KEY", false},
		{"path containment", permission.NameRead, "/tmp", "/tmp/sub/f", true},
		{"path trailing slash", permission.NameWrite, "/tmp/", "/tmp/f", true},
		{"path sibling", permission.NameRead, "/tmp", "/tmpfiles", false},
		{"no containment for net", permission.NameNet, "example.com", "example.com/path", false},
		{"kind-wide qualifier not covered by entry", permission.NameRead, "/tmp", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, covers(tt.kind, tt.pattern, tt.qualifier))
		})
	}
}
