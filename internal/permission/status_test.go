package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_ZeroValuePanics(t *testing.T) {
	assert.PanicsWithValue(t, "permission: Status must be obtained from a Tracker", func() {
		var s Status
		s.State()
	})
	assert.Panics(t, func() {
		(&Status{}).AddListener(func(*ChangeEvent) {})
	})
	assert.Panics(t, func() {
		(&Status{}).SetOnChange(nil)
	})
	assert.Panics(t, func() {
		(&Status{}).Key()
	})
}

func TestStatus_Accessors(t *testing.T) {
	tracker := NewTracker()
	status := tracker.Resolve(Descriptor{Name: NameEnv, Variable: "PATH"}, StateGranted)

	assert.Equal(t, NameEnv, status.Name())
	assert.Equal(t, "PATH", status.Qualifier())
	assert.Equal(t, Key{Name: NameEnv, Qualifier: "PATH"}, status.Key())
	assert.Equal(t, "env:PATH granted", status.String())
}

func TestStatus_OnChangeRunsAfterListeners(t *testing.T) {
	tracker := NewTracker()
	desc := Descriptor{Name: NameRead, Path: "/etc"}
	status := tracker.Resolve(desc, StatePrompt)

	var order []string
	status.AddListener(func(ev *ChangeEvent) {
		order = append(order, "listener")
	})
	status.SetOnChange(func(ev *ChangeEvent) {
		order = append(order, "handler")
	})

	tracker.Resolve(desc, StateDenied)
	assert.Equal(t, []string{"listener", "handler"}, order)
}

func TestStatus_OnChangeReplaceAndClear(t *testing.T) {
	tracker := NewTracker()
	desc := Descriptor{Name: NameNet, Host: "example.com:443"}
	status := tracker.Resolve(desc, StatePrompt)

	var got string
	status.SetOnChange(func(ev *ChangeEvent) { got = "first" })
	status.SetOnChange(func(ev *ChangeEvent) { got = "second" })

	tracker.Resolve(desc, StateGranted)
	assert.Equal(t, "second", got)

	status.SetOnChange(nil)
	tracker.Resolve(desc, StateDenied)
	assert.Equal(t, "second", got)
}

func TestStatus_ChangeEventIsNotCancelable(t *testing.T) {
	tracker := NewTracker()
	desc := Descriptor{Name: NameRun, Command: "curl"}
	status := tracker.Resolve(desc, StatePrompt)

	status.SetOnChange(func(ev *ChangeEvent) {
		assert.Equal(t, EventTypeChange, ev.Type)
		assert.False(t, ev.Cancelable)
		ev.PreventDefault()
	})

	tracker.Resolve(desc, StateGranted)

	// The change already happened; preventing is meaningless here.
	assert.Equal(t, StateGranted, status.State())
}

func TestStatus_PanickingListenerDoesNotPoisonTracker(t *testing.T) {
	tracker := NewTracker()
	desc := Descriptor{Name: NameFfi, Path: "/usr/lib/libz.so"}
	status := tracker.Resolve(desc, StatePrompt)

	status.AddListener(func(ev *ChangeEvent) {
		panic("listener bug")
	})

	var reached bool
	status.AddListener(func(ev *ChangeEvent) {
		reached = true
	})

	require.NotPanics(t, func() {
		tracker.Resolve(desc, StateGranted)
	})
	assert.True(t, reached)
	assert.Equal(t, StateGranted, status.State())

	// The tracker lock was released; further resolutions work.
	tracker.Resolve(desc, StateDenied)
	assert.Equal(t, StateDenied, status.State())
}
