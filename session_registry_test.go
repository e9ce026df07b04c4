package admin

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistryFixture(t *testing.T) (*testClock, *memSessions, *memAccounts, SessionRegistry, *Account) {
	t.Helper()

	clock := newTestClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sessions := newMemSessions()
	accounts := newMemAccounts()
	owner := accounts.add(&Account{
		Email:  "owner@example.com",
		Name:   "Owner",
		Role:   RoleUser,
		Status: StatusActive,
	})

	registry := NewSessionRegistry(sessions, accounts, NewSimpleConfig("test-key"),
		WithRegistryClock(clock.Now),
		WithRegistryLogger(nopLogger{}),
	)

	return clock, sessions, accounts, registry, owner
}

func TestSessionRegistry_CreateAndTouch(t *testing.T) {
	_, sessions, _, registry, owner := newRegistryFixture(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, id, 64) // 32 bytes hex encoded
	assert.Equal(t, 1, sessions.count())

	ok, err := registry.Touch(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSessionRegistry_TouchUnknownOrEmpty(t *testing.T) {
	_, _, _, registry, _ := newRegistryFixture(t)
	ctx := context.Background()

	ok, err := registry.Touch(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = registry.Touch(ctx, "no-such-session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRegistry_InactivityTimeout(t *testing.T) {
	clock, _, _, registry, owner := newRegistryFixture(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)

	// Just inside the 4h inactivity window.
	clock.Advance(3 * time.Hour)
	ok, err := registry.Touch(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	// 5h idle since the last touch: the session is dead.
	clock.Advance(5 * time.Hour)
	ok, err = registry.Touch(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRegistry_MaxAgeIsAbsolute(t *testing.T) {
	clock, _, _, registry, owner := newRegistryFixture(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)

	// Keep the session warm with a touch every 3 hours. Activity never
	// extends the 24h absolute cap.
	for i := 0; i < 7; i++ {
		clock.Advance(3 * time.Hour)
		ok, err := registry.Touch(ctx, id)
		require.NoError(t, err)
		require.True(t, ok, "touch %d inside max age should succeed", i)
	}

	clock.Advance(4 * time.Hour) // 25h since creation
	ok, err := registry.Touch(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRegistry_InactiveAccountInvalidatesSession(t *testing.T) {
	_, _, accounts, registry, owner := newRegistryFixture(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)

	_, err = accounts.UpdateStatusChecked(ctx, owner.ID, StatusActive, StatusChange{
		To:     StatusSuspended,
		Actor:  "admin@example.com",
		At:     time.Now(),
		Reason: "test",
	})
	require.NoError(t, err)

	ok, err := registry.Touch(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	valid, err := registry.IsValid(ctx, id)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestSessionRegistry_InvalidateWinsOverTouch(t *testing.T) {
	_, _, _, registry, owner := newRegistryFixture(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)

	require.NoError(t, registry.Invalidate(ctx, id))

	ok, err := registry.Touch(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	// Idempotent: invalidating again is not an error.
	require.NoError(t, registry.Invalidate(ctx, id))
	require.NoError(t, registry.Invalidate(ctx, ""))
}

func TestSessionRegistry_IsValidDoesNotRefreshActivity(t *testing.T) {
	clock, sessions, _, registry, owner := newRegistryFixture(t)
	ctx := context.Background()

	id, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)

	clock.Advance(3 * time.Hour)
	valid, err := registry.IsValid(ctx, id)
	require.NoError(t, err)
	assert.True(t, valid)

	record, err := sessions.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(-3*time.Hour), record.LastAccessedAt)

	// The read-only check did not extend the inactivity window.
	clock.Advance(90 * time.Minute) // 4.5h since creation, no touches
	valid, err = registry.IsValid(ctx, id)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestSessionRegistry_InvalidateAllForAccount(t *testing.T) {
	_, sessions, accounts, registry, owner := newRegistryFixture(t)
	ctx := context.Background()

	other := accounts.add(&Account{
		Email:  "other@example.com",
		Name:   "Other",
		Role:   RoleUser,
		Status: StatusActive,
	})

	first, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)
	second, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)
	bystander, err := registry.Create(ctx, other.ID)
	require.NoError(t, err)

	require.NoError(t, registry.InvalidateAllForAccount(ctx, owner.ID))

	for _, id := range []string{first, second} {
		ok, err := registry.Touch(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	ok, err := registry.Touch(ctx, bystander)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, sessions.count())

	require.NoError(t, registry.InvalidateAllForAccount(ctx, uuid.New()))
}

func TestSessionRegistry_SweepExpired(t *testing.T) {
	clock, sessions, _, registry, owner := newRegistryFixture(t)
	ctx := context.Background()

	stale, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)

	clock.Advance(3 * time.Hour)
	fresh, err := registry.Create(ctx, owner.ID)
	require.NoError(t, err)

	// 5h after the first session's creation: it is past the inactivity
	// bound, the second one is not.
	clock.Advance(2 * time.Hour)
	removed, err := registry.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, sessions.count())

	_, err = sessions.Get(ctx, stale)
	require.Error(t, err)
	_, err = sessions.Get(ctx, fresh)
	require.NoError(t, err)
}
