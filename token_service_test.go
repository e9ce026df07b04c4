package admin

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key")

func newTestTokenService() *TokenServiceImpl {
	return NewTokenService(testSigningKey, 24, "admin-core", jwt.ClaimStrings{"admin-app"}, nopLogger{}).(*TokenServiceImpl)
}

func testUser() testIdentity {
	return testIdentity{
		id:     "b3c1f9a0-0000-4000-8000-000000000001",
		email:  "user@example.com",
		name:   "User",
		role:   RoleUser,
		status: StatusActive,
	}
}

func TestTokenService_GenerateAndValidate(t *testing.T) {
	ts := newTestTokenService()
	identity := testUser()

	token, err := ts.Generate(identity, "session-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, identity.id, claims.Subject())
	assert.Equal(t, identity.id, claims.UserID())
	assert.Equal(t, identity.email, claims.Email())
	assert.Equal(t, string(RoleUser), claims.Role())
	assert.Equal(t, "session-123", claims.SessionID())
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.Expires(), time.Minute)
}

func TestTokenService_ValidateRejectsMalformed(t *testing.T) {
	ts := newTestTokenService()

	_, err := ts.Validate("not-a-token")
	require.Error(t, err)
	assert.True(t, IsMalformedError(err))
}

func TestTokenService_ValidateRejectsWrongKey(t *testing.T) {
	ts := newTestTokenService()
	other := NewTokenService([]byte("another-key"), 24, "admin-core", jwt.ClaimStrings{"admin-app"}, nopLogger{})

	token, err := ts.Generate(testUser(), "sid")
	require.NoError(t, err)

	_, err = other.Validate(token)
	require.Error(t, err)
}

func TestTokenService_ValidateRejectsWrongIssuer(t *testing.T) {
	ts := newTestTokenService()
	other := NewTokenService(testSigningKey, 24, "someone-else", jwt.ClaimStrings{"admin-app"}, nopLogger{})

	token, err := other.Generate(testUser(), "sid")
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
}

func TestTokenService_ValidateRejectsExpired(t *testing.T) {
	ts := newTestTokenService()

	token, _, err := MintScopedToken(ts, testUser(), ScopedTokenOptions{
		TTL:      time.Hour,
		IssuedAt: time.Now().Add(-2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.ErrorIs(t, err, ErrTokenExpired)
	assert.True(t, IsTokenExpiredError(err))
}

func TestTokenService_DecoratorEnrichesExtensions(t *testing.T) {
	ts := newTestTokenService()
	ts.WithClaimsDecorator(ClaimsDecoratorFunc(func(_ context.Context, identity Identity, claims *JWTClaims) error {
		claims.Scopes = []string{"reports:read"}
		claims.Metadata = map[string]any{"tenant": "acme"}
		return nil
	}))

	token, err := ts.Generate(testUser(), "sid")
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	concrete, ok := claims.(*JWTClaims)
	require.True(t, ok)
	assert.Equal(t, []string{"reports:read"}, concrete.Scopes)
	assert.Equal(t, "acme", concrete.Metadata["tenant"])
}

func TestTokenService_DecoratorCannotMutateIdentityClaims(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*JWTClaims)
	}{
		{"subject", func(c *JWTClaims) { c.RegisteredClaims.Subject = "someone-else" }},
		{"issuer", func(c *JWTClaims) { c.RegisteredClaims.Issuer = "rogue" }},
		{"uid", func(c *JWTClaims) { c.UID = "someone-else" }},
		{"sid", func(c *JWTClaims) { c.SID = "hijacked-session" }},
		{"audience", func(c *JWTClaims) { c.RegisteredClaims.Audience = jwt.ClaimStrings{"rogue"} }},
		{"expiry", func(c *JWTClaims) {
			c.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(720 * time.Hour))
		}},
		{"issued at", func(c *JWTClaims) {
			c.RegisteredClaims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestTokenService()
			ts.WithClaimsDecorator(ClaimsDecoratorFunc(func(_ context.Context, _ Identity, claims *JWTClaims) error {
				tc.mutate(claims)
				return nil
			}))

			_, err := ts.Generate(testUser(), "sid")
			require.Error(t, err)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, "IMMUTABLE_CLAIM_MUTATION", richErr.TextCode)
		})
	}
}

func TestTokenService_DecoratorErrorFailsMint(t *testing.T) {
	ts := newTestTokenService()
	ts.WithClaimsDecorator(ClaimsDecoratorFunc(func(context.Context, Identity, *JWTClaims) error {
		return goerrors.New("enrichment backend down", goerrors.CategoryInternal)
	}))

	_, err := ts.Generate(testUser(), "sid")
	require.Error(t, err)
}

func TestMintScopedToken_Defaults(t *testing.T) {
	ts := newTestTokenService()

	token, expiresAt, err := MintScopedToken(ts, testUser(), ScopedTokenOptions{
		Scopes: []string{"invitation:accept"},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	concrete, ok := claims.(*JWTClaims)
	require.True(t, ok)
	assert.Equal(t, []string{"invitation:accept"}, concrete.Scopes)
	assert.Equal(t, "admin-core", concrete.RegisteredClaims.Issuer)
	assert.NotEmpty(t, concrete.RegisteredClaims.ID)

	// Scoped tokens never carry a registry session id.
	assert.Empty(t, claims.SessionID())
}

func TestMintScopedToken_TTLOverride(t *testing.T) {
	ts := newTestTokenService()

	issuedAt := time.Now()
	_, expiresAt, err := MintScopedToken(ts, testUser(), ScopedTokenOptions{
		TTL:      15 * time.Minute,
		IssuedAt: issuedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(15*time.Minute), expiresAt)
}

func TestMintScopedToken_InvalidInput(t *testing.T) {
	ts := newTestTokenService()

	_, _, err := MintScopedToken(nil, testUser(), ScopedTokenOptions{})
	require.Error(t, err)

	_, _, err = MintScopedToken(ts, nil, ScopedTokenOptions{})
	require.Error(t, err)

	_, _, err = MintScopedToken(ts, testUser(), ScopedTokenOptions{TTL: -time.Hour})
	require.Error(t, err)
}
