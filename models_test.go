package admin

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_Defaults(t *testing.T) {
	account := &Account{}
	account.EnsureRole()
	account.EnsureStatus()

	assert.Equal(t, RoleUser, account.Role)
	assert.Equal(t, StatusActive, account.Status)
	assert.True(t, account.IsActive())

	account.Status = StatusBlocked
	assert.False(t, account.IsActive())
}

func TestAccount_PublicViewStripsCredentials(t *testing.T) {
	account := &Account{Email: "user@example.com", PasswordHash: "secret-hash"}

	view := account.PublicView()
	assert.Empty(t, view.PasswordHash)
	assert.Equal(t, "user@example.com", view.Email)
	// The original is untouched.
	assert.Equal(t, "secret-hash", account.PasswordHash)
}

func TestSession_ExpiredAt(t *testing.T) {
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	session := &Session{CreatedAt: created, LastAccessedAt: created}

	maxAge := 24 * time.Hour
	inactivity := 4 * time.Hour

	assert.False(t, session.ExpiredAt(created.Add(time.Hour), maxAge, inactivity))
	assert.True(t, session.ExpiredAt(created.Add(4*time.Hour), maxAge, inactivity))

	// Recent activity keeps it alive past the inactivity bound...
	session.LastAccessedAt = created.Add(10 * time.Hour)
	assert.False(t, session.ExpiredAt(created.Add(12*time.Hour), maxAge, inactivity))

	// ...but nothing extends the absolute max age.
	session.LastAccessedAt = created.Add(23 * time.Hour)
	assert.True(t, session.ExpiredAt(created.Add(24*time.Hour), maxAge, inactivity))
}

func TestInvitation_Pending(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	invitation := &Invitation{
		IsActive:  true,
		ExpiresAt: now.Add(time.Hour),
	}

	assert.True(t, invitation.Pending(now))
	assert.False(t, invitation.Pending(now.Add(2*time.Hour)))

	invitation.IsUsed = true
	assert.False(t, invitation.Pending(now))

	invitation.IsUsed = false
	invitation.IsActive = false
	assert.False(t, invitation.Pending(now))
}

func TestAuditEntryBuilders(t *testing.T) {
	entry := NewAuditEntry(AuditUserSuspended, "User suspended. Reason: spam (Permanent)").
		WithActor("admin@example.com").
		WithTarget("user@example.com").
		WithRole(RoleUser).
		WithIP("203.0.113.7")

	assert.Equal(t, AuditUserSuspended, entry.Action)
	assert.False(t, entry.Timestamp.IsZero())
	require.NotNil(t, entry.ActorEmail)
	assert.Equal(t, "admin@example.com", *entry.ActorEmail)
	require.NotNil(t, entry.Role)
	assert.Equal(t, "user", *entry.Role)

	// Empty values stay unset so system actions render without an actor.
	system := NewAuditEntry(AuditUserReactivated, "User account reactivated").
		WithActor("").
		WithIP("")
	assert.Nil(t, system.ActorEmail)
	assert.Nil(t, system.IPAddress)
}

func TestMarkPasswordAsReset(t *testing.T) {
	reset := MarkPasswordAsReset(uuid.New())
	assert.Equal(t, ResetChangedStatus, reset.Status)
	require.NotNil(t, reset.ResetedAt)
}
