package admin

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated principal
type Identity interface {
	ID() string
	Email() string
	Name() string
	Role() Role
	Status() AccountStatus
}

// IdentityProvider ensures we have a store to retrieve and verify identities
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, secret string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Config holds auth and gate options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string

	GetSessionMaxAge() time.Duration
	GetSessionInactivityTimeout() time.Duration

	GetPublicPaths() []string
	GetPrivatePaths() []string
	GetLoginPath() string
	GetRegisterPath() string
	GetAdminConsolePath() string
	GetAdminPathPrefix() string
	GetProfileURL() string
}

// SimpleConfig is a plain struct implementation of Config with
// sensible defaults applied by NewSimpleConfig.
type SimpleConfig struct {
	SigningKey        string
	SigningMethod     string
	ContextKey        string
	TokenExpiration   int
	Issuer            string
	Audience          []string
	MaxAge            time.Duration
	InactivityTimeout time.Duration
	PublicPaths       []string
	PrivatePaths      []string
	LoginPath         string
	RegisterPath      string
	AdminConsolePath  string
	AdminPathPrefix   string
	ProfileURL        string
}

// NewSimpleConfig returns a SimpleConfig with defaults filled in.
func NewSimpleConfig(signingKey string) *SimpleConfig {
	return &SimpleConfig{
		SigningKey:        signingKey,
		SigningMethod:     "HS256",
		ContextKey:        "session",
		TokenExpiration:   24,
		MaxAge:            24 * time.Hour,
		InactivityTimeout: 4 * time.Hour,
		PublicPaths:       []string{"/auth/users", "/assets", "/favicon.ico"},
		PrivatePaths:      []string{"/admin", "/dashboard", "/profile"},
		LoginPath:         "/auth/users/login",
		RegisterPath:      "/auth/users/register",
		AdminConsolePath:  "/admin-console",
		AdminPathPrefix:   "/admin",
		ProfileURL:        "/profile",
	}
}

func (c *SimpleConfig) GetSigningKey() string    { return c.SigningKey }
func (c *SimpleConfig) GetSigningMethod() string { return c.SigningMethod }
func (c *SimpleConfig) GetContextKey() string    { return c.ContextKey }
func (c *SimpleConfig) GetTokenExpiration() int  { return c.TokenExpiration }
func (c *SimpleConfig) GetIssuer() string        { return c.Issuer }
func (c *SimpleConfig) GetAudience() []string    { return c.Audience }

func (c *SimpleConfig) GetSessionMaxAge() time.Duration { return c.MaxAge }
func (c *SimpleConfig) GetSessionInactivityTimeout() time.Duration {
	return c.InactivityTimeout
}

func (c *SimpleConfig) GetPublicPaths() []string    { return c.PublicPaths }
func (c *SimpleConfig) GetPrivatePaths() []string   { return c.PrivatePaths }
func (c *SimpleConfig) GetLoginPath() string        { return c.LoginPath }
func (c *SimpleConfig) GetRegisterPath() string     { return c.RegisterPath }
func (c *SimpleConfig) GetAdminConsolePath() string { return c.AdminConsolePath }
func (c *SimpleConfig) GetAdminPathPrefix() string  { return c.AdminPathPrefix }
func (c *SimpleConfig) GetProfileURL() string       { return c.ProfileURL }

var _ Config = (*SimpleConfig)(nil)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ADMIN "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ADMIN "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ADMIN "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ADMIN "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
