package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountStateMachine_CanTransition(t *testing.T) {
	sm := NewAccountStateMachine()

	tests := []struct {
		from    AccountStatus
		to      AccountStatus
		allowed bool
	}{
		{StatusActive, StatusSuspended, true},
		{StatusActive, StatusBlocked, true},
		{StatusActive, StatusDeleted, true},
		{StatusActive, StatusActive, false},
		{StatusSuspended, StatusActive, true},
		{StatusSuspended, StatusBlocked, false},
		{StatusSuspended, StatusDeleted, false},
		{StatusBlocked, StatusActive, true},
		{StatusBlocked, StatusSuspended, false},
		{StatusDeleted, StatusActive, true},
		{StatusDeleted, StatusSuspended, false},
		{StatusDeleted, StatusBlocked, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, sm.CanTransition(tc.from, tc.to))
		})
	}
}

func TestAccountStateMachine_EmptyFromDefaultsToActive(t *testing.T) {
	sm := NewAccountStateMachine()

	assert.True(t, sm.CanTransition("", StatusSuspended))
	assert.True(t, sm.CanTransition("", StatusDeleted))
	assert.False(t, sm.CanTransition("", StatusActive))
}

func TestAccountStateMachine_EnsureTransition(t *testing.T) {
	sm := NewAccountStateMachine()

	require.NoError(t, sm.EnsureTransition(StatusActive, StatusSuspended))

	err := sm.EnsureTransition(StatusSuspended, StatusBlocked)
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	err = sm.EnsureTransition(StatusActive, "frozen")
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	err = sm.EnsureTransition(StatusActive, "")
	require.Error(t, err)
}
