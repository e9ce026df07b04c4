package admin

import (
	"context"
	"fmt"
	"reflect"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// FederatedIdentity is the verified payload handed over by an OAuth-style
// provider after its own exchange completed.
type FederatedIdentity struct {
	Email      string
	Name       string
	Provider   string
	ProviderID string
}

// FederatedAccountStore is the slice of the account store federated sign-in
// needs: lookup, first-login creation, and provider binding.
type FederatedAccountStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetOrCreate(ctx context.Context, record *Account) (*Account, error)
	LinkProvider(ctx context.Context, id uuid.UUID, provider, providerID string) error
}

// InvitationConsumer is the slice of the invitation store sign-in needs.
type InvitationConsumer interface {
	Consume(ctx context.Context, email string) (*Invitation, error)
}

// Auther drives both sign-in flows. A successful login creates a registry
// session and mints a token carrying its id; the token alone never proves a
// session is still honored.
type Auther struct {
	provider     IdentityProvider
	registry     SessionRegistry
	accounts     FederatedAccountStore
	invitations  InvitationConsumer
	audit        AuditRecorder
	tokenService TokenService
	logger       Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, registry SessionRegistry, cfg Config) *Auther {
	tokenService := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		registry:     registry,
		tokenService: tokenService,
		logger:       defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithAuditRecorder enables LOGIN_SUCCESS/LOGIN_FAILURE entries.
func (s *Auther) WithAuditRecorder(audit AuditRecorder) *Auther {
	s.audit = audit
	return s
}

// WithFederatedStore enables federated sign-in against the account store.
func (s *Auther) WithFederatedStore(accounts FederatedAccountStore) *Auther {
	s.accounts = accounts
	return s
}

// WithInvitations enables invitation consumption at first sign-in.
func (s *Auther) WithInvitations(invitations InvitationConsumer) *Auther {
	s.invitations = invitations
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies credentials, opens a registry session, and returns the
// signed token for it.
func (s *Auther) Login(ctx context.Context, identifier, password, ip string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.recordLogin(ctx, AuditLoginFailure, identifier, ip, err)
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.recordLogin(ctx, AuditLoginFailure, identifier, ip, ErrMismatchedHashAndPassword)
		return "", ErrMismatchedHashAndPassword
	}

	if err := statusAuthError(identity.Status()); err != nil {
		s.logger.Warn("Login blocked due to account status", "status", identity.Status(), "error", err)
		s.recordLogin(ctx, AuditLoginFailure, identifier, ip, err)
		return "", err
	}

	token, err := s.openSession(ctx, identity)
	if err != nil {
		s.recordLogin(ctx, AuditLoginFailure, identifier, ip, err)
		return "", err
	}

	s.recordLogin(ctx, AuditLoginSuccess, identity.Email(), ip, nil)
	return token, nil
}

// FederatedLogin maps a verified external identity onto an account, creating
// one on first sign-in. An email already bound to a different provider is a
// conflict; it is never silently rebound.
func (s *Auther) FederatedLogin(ctx context.Context, fid FederatedIdentity, ip string) (string, error) {
	if s.accounts == nil {
		return "", errors.New("federated sign-in is not configured", errors.CategoryInternal)
	}

	account, err := s.accounts.GetByEmail(ctx, fid.Email)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return "", err
	}

	if account != nil {
		if account.Provider != "" && account.Provider != fid.Provider {
			s.recordLogin(ctx, AuditLoginFailure, fid.Email, ip, ErrProviderMismatch)
			return "", ErrProviderMismatch.WithMetadata(map[string]any{
				"bound_provider": account.Provider,
				"provider":       fid.Provider,
			})
		}

		if account.Provider == "" {
			if err := s.accounts.LinkProvider(ctx, account.ID, fid.Provider, fid.ProviderID); err != nil {
				return "", err
			}
		}
	} else {
		account, err = s.createFederatedAccount(ctx, fid, ip)
		if err != nil {
			return "", err
		}
	}

	if err := statusAuthError(account.Status); err != nil {
		s.recordLogin(ctx, AuditLoginFailure, fid.Email, ip, err)
		return "", err
	}

	token, err := s.openSession(ctx, identityFromAccount(account))
	if err != nil {
		s.recordLogin(ctx, AuditLoginFailure, fid.Email, ip, err)
		return "", err
	}

	s.recordLogin(ctx, AuditLoginSuccess, account.Email, ip, nil)
	return token, nil
}

// Logout tears down the registry session named by the token. Invalid tokens
// are a no-op: the session they point at cannot be honored anyway.
func (s *Auther) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokenService.Validate(rawToken)
	if err != nil {
		return nil
	}
	return s.registry.Invalidate(ctx, claims.SessionID())
}

// SessionFromToken parses and validates a raw token into claims.
func (s *Auther) SessionFromToken(raw string) (AuthClaims, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}
	return claims, nil
}

func (s *Auther) openSession(ctx context.Context, identity Identity) (string, error) {
	accountID, err := uuid.Parse(identity.ID())
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "identity has a malformed account id")
	}

	sessionID, err := s.registry.Create(ctx, accountID)
	if err != nil {
		return "", err
	}

	return s.tokenService.Generate(identity, sessionID)
}

// createFederatedAccount provisions an account at first federated sign-in.
// A pending invitation for the email decides the initial role; without one
// the account starts as a regular user.
func (s *Auther) createFederatedAccount(ctx context.Context, fid FederatedIdentity, ip string) (*Account, error) {
	role := RoleUser

	if s.invitations != nil {
		invitation, err := s.invitations.Consume(ctx, fid.Email)
		if err != nil {
			return nil, err
		}
		if invitation != nil {
			role = invitation.Role
			s.recordInvitationUsed(ctx, invitation, ip)
		}
	}

	return s.accounts.GetOrCreate(ctx, &Account{
		Email:        fid.Email,
		Name:         fid.Name,
		Role:         role,
		Status:       StatusActive,
		Provider:     fid.Provider,
		ProviderID:   fid.ProviderID,
		PasswordHash: RandomPasswordHash(),
	})
}

func (s *Auther) recordInvitationUsed(ctx context.Context, invitation *Invitation, ip string) {
	if s.audit == nil {
		return
	}

	entry := NewAuditEntry(AuditInvitationUsed, fmt.Sprintf("Admin invitation used for role: %s", invitation.Role)).
		WithActor(invitation.InvitedBy).
		WithTarget(invitation.Email).
		WithRole(invitation.Role).
		WithIP(ip)

	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record invitation use", "error", err)
	}
}

func (s *Auther) recordLogin(ctx context.Context, action AuditAction, email, ip string, cause error) {
	if s.audit == nil {
		return
	}

	details := "Login succeeded"
	if action == AuditLoginFailure {
		details = "Login failed"
		if cause != nil {
			details = fmt.Sprintf("Login failed: %s", cause.Error())
		}
	}

	entry := NewAuditEntry(action, details).
		WithTarget(email).
		WithIP(ip)

	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record login audit entry", "action", action, "error", err)
	}
}
