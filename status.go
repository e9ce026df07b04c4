package admin

import "github.com/goliatone/go-errors"

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	// StatusActive is the normal state, the only one that can authenticate
	StatusActive AccountStatus = "active"
	// StatusSuspended is a temporary, reversible removal of access
	StatusSuspended AccountStatus = "suspended"
	// StatusBlocked is a reversible ban, more severe than suspension
	StatusBlocked AccountStatus = "blocked"
	// StatusDeleted is a soft delete; only a super admin restore reverses it
	StatusDeleted AccountStatus = "deleted"
)

// IsValid checks if the status is one of the predefined valid statuses
func (s AccountStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBlocked, StatusDeleted:
		return true
	default:
		return false
	}
}

// ParseStatus safely parses a string into an AccountStatus
func ParseStatus(statusStr string) (AccountStatus, bool) {
	status := AccountStatus(statusStr)
	return status, status.IsValid()
}

// ErrAccountSuspended is returned when a suspended account tries to sign in.
var ErrAccountSuspended = errors.New("account is suspended", errors.CategoryAuth).
	WithTextCode("ACCOUNT_SUSPENDED").
	WithCode(errors.CodeUnauthorized)

// ErrAccountBlocked is returned when a blocked account tries to sign in.
var ErrAccountBlocked = errors.New("account is blocked", errors.CategoryAuth).
	WithTextCode("ACCOUNT_BLOCKED").
	WithCode(errors.CodeUnauthorized)

// ErrAccountDeleted is returned when a deleted account tries to sign in.
var ErrAccountDeleted = errors.New("account has been deleted", errors.CategoryAuth).
	WithTextCode("ACCOUNT_DELETED").
	WithCode(errors.CodeUnauthorized)

// statusAuthError maps a non-active status to the sign-in error surfaced
// to the credential flow. Active accounts return nil.
func statusAuthError(status AccountStatus) error {
	switch status {
	case StatusSuspended:
		return ErrAccountSuspended
	case StatusBlocked:
		return ErrAccountBlocked
	case StatusDeleted:
		return ErrAccountDeleted
	default:
		return nil
	}
}
