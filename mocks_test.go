package admin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// testClock is a mutable clock for deterministic expiry tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testIdentity struct {
	id     string
	email  string
	name   string
	role   Role
	status AccountStatus
}

func (t testIdentity) ID() string            { return t.id }
func (t testIdentity) Email() string         { return t.email }
func (t testIdentity) Name() string          { return t.name }
func (t testIdentity) Role() Role            { return t.role }
func (t testIdentity) Status() AccountStatus { return t.status }

// memAccounts is an in-memory LifecycleStore and AccountStatusReader with
// the same compare-and-swap semantics as the bun-backed store.
type memAccounts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*Account

	// beforeStatusWrite runs against the stored row before the expected
	// status is checked, to simulate a concurrent writer winning the race.
	beforeStatusWrite func(*Account)
	beforeRoleWrite   func(*Account)
}

func newMemAccounts(records ...*Account) *memAccounts {
	m := &memAccounts{byID: map[uuid.UUID]*Account{}}
	for _, record := range records {
		m.add(record)
	}
	return m
}

func (m *memAccounts) add(record *Account) *Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.EnsureRole()
	record.EnsureStatus()
	m.byID[record.ID] = record
	return record
}

func cloneAccount(record *Account) *Account {
	clone := *record
	return &clone
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneAccount(record), nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range m.byID {
		if strings.EqualFold(record.Email, strings.TrimSpace(email)) {
			return cloneAccount(record), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *memAccounts) CountByRole(_ context.Context, role Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, record := range m.byID {
		if record.Role == role {
			count++
		}
	}
	return count, nil
}

func (m *memAccounts) UpdateStatusChecked(_ context.Context, id uuid.UUID, expected AccountStatus, change StatusChange) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}

	if m.beforeStatusWrite != nil {
		m.beforeStatusWrite(record)
	}

	if record.Status != expected {
		return nil, ErrStaleAccountState
	}

	record.Status = change.To
	at := change.At

	switch change.To {
	case StatusSuspended:
		actor := change.Actor
		reason := change.Reason
		record.SuspendedBy = &actor
		record.SuspendedAt = &at
		record.SuspensionReason = &reason
		record.SuspensionEndDate = change.EndDate
	case StatusBlocked:
		actor := change.Actor
		reason := change.Reason
		record.BlockedBy = &actor
		record.BlockedAt = &at
		record.BlockReason = &reason
	case StatusDeleted:
		actor := change.Actor
		reason := change.Reason
		record.DeletedBy = &actor
		record.DeletedAt = &at
		record.DeletionReason = &reason
	case StatusActive:
		actor := change.Actor
		record.ReactivatedBy = &actor
		record.ReactivatedAt = &at
		if expected == StatusDeleted {
			record.ClearDeletion()
		} else {
			record.ClearSuspension()
			record.ClearBlock()
		}
	}

	return cloneAccount(record), nil
}

func (m *memAccounts) UpdateRoleChecked(_ context.Context, id uuid.UUID, expected Role, change RoleChange) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}

	if m.beforeRoleWrite != nil {
		m.beforeRoleWrite(record)
	}

	if record.Role != expected {
		return nil, ErrStaleAccountState
	}

	record.Role = change.To
	actor := change.Actor
	at := change.At
	if change.Promotion {
		record.PromotedBy = &actor
		record.PromotedAt = &at
	} else {
		record.DemotedBy = &actor
		record.DemotedAt = &at
	}

	return cloneAccount(record), nil
}

func (m *memAccounts) TrackAttemptedLogin(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[account.ID]
	if !ok {
		return ErrAccountNotFound
	}
	record.LoginAttempts++
	now := time.Now()
	record.LoginAttemptAt = &now
	return nil
}

func (m *memAccounts) TrackSuccessfulLogin(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[account.ID]
	if !ok {
		return ErrAccountNotFound
	}
	record.LoginAttempts = 0
	record.LoginAttemptAt = nil
	now := time.Now()
	record.LoggedInAt = &now
	return nil
}

func (m *memAccounts) GetOrCreate(ctx context.Context, record *Account) (*Account, error) {
	if existing, err := m.GetByEmail(ctx, record.Email); err == nil {
		return existing, nil
	}
	return cloneAccount(m.add(record)), nil
}

func (m *memAccounts) LinkProvider(_ context.Context, id uuid.UUID, provider, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	record.Provider = provider
	record.ProviderID = providerID
	return nil
}

var _ LifecycleStore = (*memAccounts)(nil)
var _ AccountStatusReader = (*memAccounts)(nil)
var _ AccountTracker = (*memAccounts)(nil)
var _ FederatedAccountStore = (*memAccounts)(nil)

// memSessions is an in-memory Sessions table mirroring the conditional
// touch semantics of the bun-backed table.
type memSessions struct {
	mu   sync.Mutex
	rows map[string]*Session
}

func newMemSessions() *memSessions {
	return &memSessions{rows: map[string]*Session{}}
}

var _ Sessions = (*memSessions)(nil)

func (m *memSessions) Insert(_ context.Context, record *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rows[record.ID]; exists {
		return ErrStoreUnavailable.WithMetadata(map[string]any{"reason": "duplicate session id"})
	}
	clone := *record
	m.rows[record.ID] = &clone
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.rows[id]
	if !ok {
		return nil, ErrNotAuthenticated
	}
	clone := *record
	return &clone, nil
}

func (m *memSessions) TouchIf(_ context.Context, id string, now, minCreatedAt, minLastAccess time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	if !record.CreatedAt.After(minCreatedAt) || !record.LastAccessedAt.After(minLastAccess) {
		return false, nil
	}
	record.LastAccessedAt = now
	return true, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memSessions) DeleteAllForAccount(_ context.Context, accountID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, record := range m.rows {
		if record.AccountID == accountID {
			delete(m.rows, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memSessions) DeleteExpired(_ context.Context, minCreatedAt, minLastAccess time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, record := range m.rows {
		if !record.CreatedAt.After(minCreatedAt) || !record.LastAccessedAt.After(minLastAccess) {
			delete(m.rows, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memAudit records entries in order and can be told to fail the next write.
type memAudit struct {
	mu      sync.Mutex
	entries []*AuditLogEntry
	failErr error
}

var _ AuditRecorder = (*memAudit)(nil)

func (m *memAudit) Record(_ context.Context, entry *AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		err := m.failErr
		m.failErr = nil
		return err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAudit) all() []*AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*AuditLogEntry(nil), m.entries...)
}

func (m *memAudit) last() *AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}

// memInvalidator records which accounts had their sessions revoked.
type memInvalidator struct {
	mu          sync.Mutex
	invalidated []uuid.UUID
	err         error
}

var _ SessionInvalidator = (*memInvalidator)(nil)

func (m *memInvalidator) InvalidateAllForAccount(_ context.Context, accountID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.invalidated = append(m.invalidated, accountID)
	return nil
}

func (m *memInvalidator) calls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.invalidated...)
}

// memInvitations is an in-memory Invitations store with at-most-once
// consumption semantics.
type memInvitations struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*Invitation
	now  func() time.Time
}

func newMemInvitations(clock func() time.Time) *memInvitations {
	if clock == nil {
		clock = time.Now
	}
	return &memInvitations{byID: map[uuid.UUID]*Invitation{}, now: clock}
}

var _ Invitations = (*memInvitations)(nil)

func cloneInvitation(record *Invitation) *Invitation {
	clone := *record
	return &clone
}

func (m *memInvitations) Create(_ context.Context, record *Invitation) (*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	for _, existing := range m.byID {
		if existing.Email == record.Email && existing.Pending(m.now()) {
			return nil, ErrInvitationAlreadyExists
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Token == "" {
		record.Token = uuid.NewString()
	}
	record.IsActive = true
	record.IsUsed = false

	m.byID[record.ID] = record
	return cloneInvitation(record), nil
}

func (m *memInvitations) GetByID(_ context.Context, id uuid.UUID) (*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, ErrInvitationNotFound
	}
	return cloneInvitation(record), nil
}

func (m *memInvitations) FindPendingByEmail(_ context.Context, email string) (*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range m.byID {
		if strings.EqualFold(record.Email, strings.TrimSpace(email)) && record.Pending(m.now()) {
			return cloneInvitation(record), nil
		}
	}
	return nil, nil
}

func (m *memInvitations) Consume(_ context.Context, email string) (*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, record := range m.byID {
		if strings.EqualFold(record.Email, strings.TrimSpace(email)) && record.Pending(now) {
			record.IsUsed = true
			record.UsedAt = &now
			return cloneInvitation(record), nil
		}
	}
	return nil, nil
}

func (m *memInvitations) Revoke(_ context.Context, id uuid.UUID, revokedBy string) (*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, ErrInvitationNotFound
	}
	if record.IsUsed {
		return nil, ErrInvitationAlreadyUsed
	}

	now := m.now()
	record.IsActive = false
	record.RevokedBy = &revokedBy
	record.RevokedAt = &now
	return cloneInvitation(record), nil
}

func (m *memInvitations) ListPending(_ context.Context) ([]*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*Invitation
	for _, record := range m.byID {
		if record.Pending(m.now()) {
			pending = append(pending, cloneInvitation(record))
		}
	}
	return pending, nil
}
