package admin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

var (
	testPasswordHashOnce sync.Once
	testPasswordHash     string
)

// hashing at cost 14 is slow; share one hash across the auth tests.
func passwordHashForTests(t *testing.T) string {
	t.Helper()
	testPasswordHashOnce.Do(func() {
		hash, err := HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		testPasswordHash = hash
	})
	return testPasswordHash
}

type authFixture struct {
	accounts *memAccounts
	sessions *memSessions
	audit    *memAudit
	registry SessionRegistry
	auther   *Auther

	user *Account
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	f := &authFixture{
		accounts: newMemAccounts(),
		sessions: newMemSessions(),
		audit:    &memAudit{},
	}

	f.user = f.accounts.add(&Account{
		Email:        "user@example.com",
		Name:         "User",
		Role:         RoleUser,
		Status:       StatusActive,
		PasswordHash: passwordHashForTests(t),
	})

	cfg := NewSimpleConfig("test-key")
	f.registry = NewSessionRegistry(f.sessions, f.accounts, cfg, WithRegistryLogger(nopLogger{}))

	provider := NewAccountProvider(f.accounts).WithLogger(nopLogger{})
	f.auther = NewAuthenticator(provider, f.registry, cfg).
		WithLogger(nopLogger{}).
		WithAuditRecorder(f.audit).
		WithFederatedStore(f.accounts)

	return f
}

func TestAuther_LoginOpensRegistrySession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, err := f.auther.Login(ctx, f.user.Email, testPassword, "203.0.113.7")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := f.auther.SessionFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, f.user.Email, claims.Email())
	assert.Equal(t, string(RoleUser), claims.Role())
	require.NotEmpty(t, claims.SessionID())

	valid, err := f.registry.IsValid(ctx, claims.SessionID())
	require.NoError(t, err)
	assert.True(t, valid)

	entry := f.audit.last()
	require.NotNil(t, entry)
	assert.Equal(t, AuditLoginSuccess, entry.Action)
	require.NotNil(t, entry.TargetEmail)
	assert.Equal(t, f.user.Email, *entry.TargetEmail)
}

func TestAuther_LoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auther.Login(context.Background(), f.user.Email, "wrong", "203.0.113.7")
	require.ErrorIs(t, err, ErrMismatchedHashAndPassword)

	entry := f.audit.last()
	require.NotNil(t, entry)
	assert.Equal(t, AuditLoginFailure, entry.Action)

	// The failed attempt is tracked against the account.
	account, getErr := f.accounts.GetByEmail(context.Background(), f.user.Email)
	require.NoError(t, getErr)
	assert.Equal(t, 1, account.LoginAttempts)
}

func TestAuther_LoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auther.Login(context.Background(), "ghost@example.com", testPassword, "")
	require.ErrorIs(t, err, ErrMismatchedHashAndPassword)
}

func TestAuther_LoginBlockedByStatus(t *testing.T) {
	tests := []struct {
		status  AccountStatus
		wantErr error
	}{
		{StatusSuspended, ErrAccountSuspended},
		{StatusBlocked, ErrAccountBlocked},
		{StatusDeleted, ErrAccountDeleted},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newAuthFixture(t)
			_, err := f.accounts.UpdateStatusChecked(context.Background(), f.user.ID, StatusActive, StatusChange{
				To:     tc.status,
				Actor:  "admin@example.com",
				At:     time.Now(),
				Reason: "test",
			})
			require.NoError(t, err)

			// The right password does not matter: the status decides.
			_, err = f.auther.Login(context.Background(), f.user.Email, testPassword, "")
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, AuditLoginFailure, f.audit.last().Action)
		})
	}
}

func TestAuther_LoginCoolDown(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	recent := time.Now().Add(-time.Hour)
	f.accounts.byID[f.user.ID].LoginAttempts = MaxLoginAttempts + 1
	f.accounts.byID[f.user.ID].LoginAttemptAt = &recent

	_, err := f.auther.Login(ctx, f.user.Email, testPassword, "")
	require.ErrorIs(t, err, ErrTooManyLoginAttempts)

	// Past the cool down window the counter resets and login succeeds.
	stale := time.Now().Add(-25 * time.Hour)
	f.accounts.byID[f.user.ID].LoginAttemptAt = &stale

	_, err = f.auther.Login(ctx, f.user.Email, testPassword, "")
	require.NoError(t, err)

	account, err := f.accounts.GetByEmail(ctx, f.user.Email)
	require.NoError(t, err)
	assert.Equal(t, 0, account.LoginAttempts)
}

func TestAuther_LogoutInvalidatesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, err := f.auther.Login(ctx, f.user.Email, testPassword, "")
	require.NoError(t, err)

	claims, err := f.auther.SessionFromToken(token)
	require.NoError(t, err)

	require.NoError(t, f.auther.Logout(ctx, token))

	valid, err := f.registry.IsValid(ctx, claims.SessionID())
	require.NoError(t, err)
	assert.False(t, valid)

	// A token that never validated is a no-op logout.
	require.NoError(t, f.auther.Logout(ctx, "garbage-token"))
}

func TestAuther_FederatedLoginCreatesAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	token, err := f.auther.FederatedLogin(ctx, FederatedIdentity{
		Email:      "oauth-user@example.com",
		Name:       "OAuth User",
		Provider:   "google",
		ProviderID: "google-123",
	}, "203.0.113.9")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	account, err := f.accounts.GetByEmail(ctx, "oauth-user@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, account.Role)
	assert.Equal(t, StatusActive, account.Status)
	assert.Equal(t, "google", account.Provider)
	assert.NotEmpty(t, account.PasswordHash)
}

func TestAuther_FederatedLoginConsumesInvitation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	invitations := newMemInvitations(nil)
	_, err := invitations.Create(ctx, &Invitation{
		Email:     "invited@example.com",
		Role:      RoleAdmin,
		InvitedBy: "root@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	f.auther.WithInvitations(invitations)

	_, err = f.auther.FederatedLogin(ctx, FederatedIdentity{
		Email:    "invited@example.com",
		Name:     "Invited",
		Provider: "github",
	}, "")
	require.NoError(t, err)

	account, err := f.accounts.GetByEmail(ctx, "invited@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, account.Role)

	var used *AuditLogEntry
	for _, entry := range f.audit.all() {
		if entry.Action == AuditInvitationUsed {
			used = entry
		}
	}
	require.NotNil(t, used)
	assert.Equal(t, "Admin invitation used for role: admin", used.Details)
	require.NotNil(t, used.ActorEmail)
	assert.Equal(t, "root@example.com", *used.ActorEmail)
}

func TestAuther_FederatedLoginProviderMismatch(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auther.FederatedLogin(ctx, FederatedIdentity{
		Email: "bound@example.com", Name: "Bound", Provider: "google", ProviderID: "g-1",
	}, "")
	require.NoError(t, err)

	_, err = f.auther.FederatedLogin(ctx, FederatedIdentity{
		Email: "bound@example.com", Name: "Bound", Provider: "github", ProviderID: "gh-1",
	}, "")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
}

func TestAuther_FederatedLoginLinksUnboundAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	// The password-based account signs in with a provider for the first time.
	_, err := f.auther.FederatedLogin(ctx, FederatedIdentity{
		Email:      f.user.Email,
		Name:       f.user.Name,
		Provider:   "google",
		ProviderID: "g-42",
	}, "")
	require.NoError(t, err)

	account, err := f.accounts.GetByEmail(ctx, f.user.Email)
	require.NoError(t, err)
	assert.Equal(t, "google", account.Provider)
	assert.Equal(t, "g-42", account.ProviderID)
}

func TestAuther_FederatedLoginSuspendedAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.accounts.UpdateStatusChecked(ctx, f.user.ID, StatusActive, StatusChange{
		To: StatusSuspended, Actor: "admin@example.com", At: time.Now(), Reason: "test",
	})
	require.NoError(t, err)

	_, err = f.auther.FederatedLogin(ctx, FederatedIdentity{
		Email: f.user.Email, Name: f.user.Name,
	}, "")
	require.ErrorIs(t, err, ErrAccountSuspended)
}
