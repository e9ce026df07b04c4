package admin

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// AccountTracker is the slice of the account store the credential flow
// needs: lookup plus login attempt bookkeeping.
type AccountTracker interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// MaxLoginAttempts is the maximum number of failed attempts an account gets
// inside the cool down window.
var MaxLoginAttempts = 5

// CoolDownPeriod is the window after which the attempt counter resets.
var CoolDownPeriod = 24 * time.Hour

// AccountProvider verifies credentials against the account store. Accounts
// that are not active fail with the status-specific auth error regardless of
// whether the secret matched.
type AccountProvider struct {
	store  AccountTracker
	hasher PasswordAuthenticator
	logger Logger
	now    func() time.Time
}

var _ IdentityProvider = (*AccountProvider)(nil)

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountTracker) *AccountProvider {
	return &AccountProvider{
		store:  store,
		hasher: NewPasswordAuthenticator(),
		logger: defLogger{},
		now:    time.Now,
	}
}

func (p *AccountProvider) WithLogger(l Logger) *AccountProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

// WithPasswordAuthenticator overrides the default bcrypt comparison.
func (p *AccountProvider) WithPasswordAuthenticator(hasher PasswordAuthenticator) *AccountProvider {
	if hasher != nil {
		p.hasher = hasher
	}
	return p
}

// WithClock injects a custom clock (useful for tests).
func (p *AccountProvider) WithClock(clock func() time.Time) *AccountProvider {
	if clock != nil {
		p.now = clock
	}
	return p
}

// VerifyIdentity will find the account, compare the secret, and return the
// identity. Lookups that miss report the same bad-credentials error as a
// wrong secret so the surface does not leak which emails exist.
func (p *AccountProvider) VerifyIdentity(ctx context.Context, identifier, secret string) (Identity, error) {
	account, err := p.store.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if err := ensureAuthenticatableAccount(account); err != nil {
		return nil, err
	}

	if account.LoginAttemptAt != nil && p.now().Sub(*account.LoginAttemptAt) > CoolDownPeriod {
		account.LoginAttempts = 0
	}

	// too many attempts in the window, cool off
	if account.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := p.hasher.ComparePasswordAndHash(secret, account.PasswordHash); err != nil {
		if err2 := p.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		return nil, ErrMismatchedHashAndPassword
	}

	if err := p.store.TrackSuccessfulLogin(ctx, account); err != nil {
		p.logger.Error("failed to track successful login", "error", err)
	}

	return identityFromAccount(account), nil
}

func (p *AccountProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	account, err := p.store.GetByEmail(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := ensureAuthenticatableAccount(account); err != nil {
		return nil, err
	}

	return identityFromAccount(account), nil
}

type accountIdentity struct {
	id     string
	email  string
	name   string
	role   Role
	status AccountStatus
}

func (a accountIdentity) ID() string    { return a.id }
func (a accountIdentity) Email() string { return a.email }
func (a accountIdentity) Name() string  { return a.name }
func (a accountIdentity) Role() Role    { return a.role }

func (a accountIdentity) Status() AccountStatus {
	if a.status == "" {
		return StatusActive
	}
	return a.status
}

var _ Identity = accountIdentity{}

func identityFromAccount(account *Account) Identity {
	return accountIdentity{
		id:     account.ID.String(),
		email:  account.Email,
		name:   account.Name,
		role:   account.Role,
		status: account.Status,
	}
}

func ensureAuthenticatableAccount(account *Account) error {
	if account == nil {
		return ErrAccountNotFound
	}

	account.EnsureStatus()
	if err := statusAuthError(account.Status); err != nil {
		return err
	}

	return nil
}
