package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// sessionIDBytes is the entropy of a session identifier: 32 bytes, 256 bits.
const sessionIDBytes = 32

// createRetries bounds the collision retry loop. Colliding twice on 256-bit
// random draws means the random source is broken, so we give up loudly.
const createRetries = 3

// AccountStatusReader is the slice of the account store the registry needs:
// a session is only valid while its owning account is active.
type AccountStatusReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
}

// SessionRegistry is the source of truth for "is this session still good",
// independent of any signed token's own claims. Signed tokens cannot be
// invalidated early; the registry provides the revocation the gate relies on.
type SessionRegistry interface {
	Create(ctx context.Context, accountID uuid.UUID) (string, error)
	Touch(ctx context.Context, sessionID string) (bool, error)
	IsValid(ctx context.Context, sessionID string) (bool, error)
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAllForAccount(ctx context.Context, accountID uuid.UUID) error
	SweepExpired(ctx context.Context) (int, error)
}

type sessionRegistry struct {
	sessions          Sessions
	accounts          AccountStatusReader
	maxAge            time.Duration
	inactivityTimeout time.Duration
	now               func() time.Time
	logger            Logger
	metrics           *Metrics
}

var _ SessionRegistry = (*sessionRegistry)(nil)

// SessionRegistryOption customizes registry construction.
type SessionRegistryOption func(*sessionRegistry)

// WithRegistryClock injects a custom clock (useful for tests).
func WithRegistryClock(clock func() time.Time) SessionRegistryOption {
	return func(r *sessionRegistry) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithRegistryLogger overrides the default logger.
func WithRegistryLogger(logger Logger) SessionRegistryOption {
	return func(r *sessionRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegistryMetrics attaches sweep/creation counters.
func WithRegistryMetrics(m *Metrics) SessionRegistryOption {
	return func(r *sessionRegistry) {
		r.metrics = m
	}
}

// NewSessionRegistry builds the durable registry over the session table and
// account store.
func NewSessionRegistry(sessions Sessions, accounts AccountStatusReader, cfg Config, opts ...SessionRegistryOption) SessionRegistry {
	r := &sessionRegistry{
		sessions:          sessions,
		accounts:          accounts,
		maxAge:            cfg.GetSessionMaxAge(),
		inactivityTimeout: cfg.GetSessionInactivityTimeout(),
		now:               time.Now,
		logger:            defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func (r *sessionRegistry) Create(ctx context.Context, accountID uuid.UUID) (string, error) {
	var lastErr error

	for attempt := 0; attempt < createRetries; attempt++ {
		id, err := generateSessionID()
		if err != nil {
			return "", err
		}

		now := r.now()
		err = r.sessions.Insert(ctx, &Session{
			ID:             id,
			AccountID:      accountID,
			CreatedAt:      now,
			LastAccessedAt: now,
		})
		if err == nil {
			if r.metrics != nil {
				r.metrics.SessionCreated()
			}
			return id, nil
		}

		// A unique violation on a fresh 256-bit draw is nearly impossible;
		// retry with a new draw and treat repeated failure as fatal.
		lastErr = err
		r.logger.Warn("session id insert failed, retrying with fresh draw", "attempt", attempt+1, "error", err)
	}

	return "", errors.Wrap(lastErr, errors.CategoryInternal, "unable to allocate session id").
		WithCode(errors.CodeInternal)
}

// Touch refreshes activity and reports validity in one step. A false return
// means the caller must treat the principal as unauthenticated.
func (r *sessionRegistry) Touch(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	now := r.now()
	touched, err := r.sessions.TouchIf(ctx, sessionID, now, now.Add(-r.maxAge), now.Add(-r.inactivityTimeout))
	if err != nil {
		return false, err
	}
	if !touched {
		return false, nil
	}

	ok, err := r.accountActive(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// IsValid is the side-effect-free validity predicate: expiry bounds plus
// the owning account's status, without refreshing last_accessed_at.
func (r *sessionRegistry) IsValid(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	record, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return false, nil
		}
		return false, err
	}

	if record.ExpiredAt(r.now(), r.maxAge, r.inactivityTimeout) {
		return false, nil
	}

	account, err := r.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}

	return account.IsActive(), nil
}

// Invalidate removes one session. Idempotent: unknown ids are not an error.
func (r *sessionRegistry) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return r.sessions.Delete(ctx, sessionID)
}

// InvalidateAllForAccount removes every session owned by the account. The
// delete is a single statement against the same table Touch updates, so a
// touch issued after the delete commits can never resurrect a session.
func (r *sessionRegistry) InvalidateAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	removed, err := r.sessions.DeleteAllForAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if removed > 0 {
		r.logger.Info("invalidated account sessions", "account_id", accountID.String(), "count", removed)
	}
	if r.metrics != nil {
		r.metrics.SessionsInvalidated(removed)
	}
	return nil
}

// SweepExpired purges rows past either expiry bound. Best-effort compaction:
// Touch and IsValid re-check expiry regardless, so a missed sweep never
// extends a session's life.
func (r *sessionRegistry) SweepExpired(ctx context.Context) (int, error) {
	now := r.now()
	removed, err := r.sessions.DeleteExpired(ctx, now.Add(-r.maxAge), now.Add(-r.inactivityTimeout))
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.logger.Debug("swept expired sessions", "count", removed)
	}
	if r.metrics != nil {
		r.metrics.SessionsSwept(removed)
	}
	return removed, nil
}

func (r *sessionRegistry) accountActive(ctx context.Context, sessionID string) (bool, error) {
	record, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			// Deleted between touch and read: invalidation wins.
			return false, nil
		}
		return false, err
	}

	account, err := r.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}

	return account.IsActive(), nil
}

func generateSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "unable to read session entropy").
			WithCode(errors.CodeInternal)
	}
	return hex.EncodeToString(buf), nil
}
