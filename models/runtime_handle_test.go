package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionForwardOnly(t *testing.T) {
	h := &RuntimeHandle{UnitName: "s-web"}

	require.NoError(t, h.Transition(UnitStatePulling))
	require.NoError(t, h.Transition(UnitStateCreating))
	assert.Error(t, h.Transition(UnitStatePulling))
	assert.Error(t, h.Transition(UnitStateCreating))
	require.NoError(t, h.Transition(UnitStateStarting))
	require.NoError(t, h.Transition(UnitStateRunning))
	assert.Equal(t, UnitStateRunning, h.State)
}

func TestFailedIsTerminal(t *testing.T) {
	h := &RuntimeHandle{UnitName: "s-web"}

	require.NoError(t, h.Transition(UnitStatePulling))
	require.NoError(t, h.Transition(UnitStateFailed))
	assert.Error(t, h.Transition(UnitStateRunning))
	assert.Error(t, h.Transition(UnitStateStarting))
	assert.Equal(t, UnitStateFailed, h.State)
}

func TestTransitionSkipsForward(t *testing.T) {
	h := &RuntimeHandle{UnitName: "s-web", State: UnitStatePulling}

	require.NoError(t, h.Transition(UnitStateRunning))
	assert.Error(t, h.Transition("PAUSED"))
}
