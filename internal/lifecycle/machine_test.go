package lifecycle

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct{ from, to State }

func newMachine() (*Machine, *[]transition) {
	m := NewMachine(zerolog.Nop())
	var seen []transition
	m.OnTransition(func(from, to State) {
		seen = append(seen, transition{from, to})
	})
	return m, &seen
}

func ready(t *testing.T, m *Machine) {
	t.Helper()
	require.True(t, m.StartLoading())
	require.True(t, m.MarkReady())
	require.Equal(t, Ready, m.State())
}

func TestMachine_HappyPath(t *testing.T) {
	m, seen := newMachine()
	assert.Equal(t, Booting, m.State())
	assert.False(t, m.Running())

	ready(t, m)
	assert.True(t, m.Running())
	assert.Equal(t, []transition{{Booting, Loading}, {Loading, Ready}}, *seen)
}

func TestMachine_InvalidTransitionsIgnored(t *testing.T) {
	m, _ := newMachine()
	assert.False(t, m.MarkReady())
	assert.False(t, m.Resume())
	assert.False(t, m.Suspend())
	assert.False(t, m.Restart())
	assert.Equal(t, Booting, m.State())

	ready(t, m)
	assert.False(t, m.StartLoading())
	assert.Equal(t, Ready, m.State())
}

func TestMachine_SuspendResumeIdempotent(t *testing.T) {
	m, seen := newMachine()
	ready(t, m)

	assert.False(t, m.Resume(), "resume while ready is a no-op")
	assert.True(t, m.Suspend())
	assert.False(t, m.Suspend(), "suspend while suspended is a no-op")
	assert.Equal(t, Suspended, m.State())
	assert.True(t, m.Resume())
	assert.Equal(t, Ready, m.State())

	assert.Len(t, *seen, 4)
}

func TestMachine_VisibilityAndFocus(t *testing.T) {
	m, _ := newMachine()
	ready(t, m)

	assert.True(t, m.SetVisible(false))
	assert.Equal(t, Suspended, m.State())
	assert.False(t, m.SetVisible(false))

	assert.False(t, m.SetFocused(false), "already suspended")
	assert.False(t, m.SetVisible(true), "still unfocused")
	assert.Equal(t, Suspended, m.State())

	assert.True(t, m.SetFocused(true))
	assert.Equal(t, Ready, m.State())
}

func TestMachine_HiddenWhileLoading(t *testing.T) {
	m, _ := newMachine()
	require.True(t, m.StartLoading())
	assert.False(t, m.SetVisible(false), "visibility while loading only records")
	assert.Equal(t, Loading, m.State())

	require.True(t, m.MarkReady())
	assert.Equal(t, Suspended, m.State())

	require.True(t, m.SetVisible(true))
	assert.Equal(t, Ready, m.State())
}

func TestMachine_ErrorIsSticky(t *testing.T) {
	for _, from := range []func(*Machine){
		func(m *Machine) {},
		func(m *Machine) { m.StartLoading() },
		func(m *Machine) { m.StartLoading(); m.MarkReady() },
		func(m *Machine) { m.StartLoading(); m.MarkReady(); m.Suspend() },
	} {
		m, _ := newMachine()
		from(m)

		boom := errors.New("model fetch failed")
		require.True(t, m.Fail(boom))
		assert.Equal(t, Error, m.State())
		assert.ErrorIs(t, m.Err(), boom)

		assert.False(t, m.Fail(errors.New("second")))
		assert.ErrorIs(t, m.Err(), boom)
		assert.False(t, m.Resume())
		assert.False(t, m.SetVisible(true))
		assert.False(t, m.MarkReady())
		assert.False(t, m.StartLoading())
		assert.Equal(t, Error, m.State())

		require.True(t, m.Restart())
		assert.Equal(t, Booting, m.State())
		assert.NoError(t, m.Err())
	}
}

func TestMachine_FailNilError(t *testing.T) {
	m, _ := newMachine()
	require.True(t, m.Fail(nil))
	assert.Error(t, m.Err())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "suspended", Suspended.String())
	assert.Equal(t, "state(9)", State(9).String())
}
