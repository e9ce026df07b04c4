package admin

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	textCodeNotAuthenticated  = "NOT_AUTHENTICATED"
	textCodeForbidden         = "FORBIDDEN"
	textCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	textCodeInvitationMissing = "INVITATION_NOT_FOUND"
	textCodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	textCodeStaleAccount      = "STALE_ACCOUNT_STATE"
	textCodeMissingReason     = "MISSING_REASON"
	textCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	textCodeProviderMismatch  = "PROVIDER_MISMATCH"
	textCodeSelfEscalation    = "SELF_ESCALATION"
	textCodeSelfDeletion      = "SELF_DELETION"
	textCodeLastSuperAdmin    = "LAST_SUPER_ADMIN"
	textCodeInvitationUsed    = "INVITATION_ALREADY_USED"
	textCodeInvitationExists  = "INVITATION_ALREADY_EXISTS"
)

// ErrNotAuthenticated is returned when no valid principal or session exists.
var ErrNotAuthenticated = errors.New("please sign in to continue", errors.CategoryAuth).
	WithTextCode(textCodeNotAuthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the actor lacks the privilege for an operation.
// The message stays generic so it does not leak which role would have sufficed.
var ErrForbidden = errors.New("insufficient permissions", errors.CategoryAuthz).
	WithTextCode(textCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrAccountNotFound is returned when a target account does not exist.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(textCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvitationNotFound is returned when an invitation cannot be resolved.
var ErrInvitationNotFound = errors.New("invitation not found", errors.CategoryNotFound).
	WithTextCode(textCodeInvitationMissing).
	WithCode(errors.CodeNotFound)

// ErrInvalidTransition is returned when a requested status change is not
// allowed from the account's current status.
var ErrInvalidTransition = errors.New("invalid account status transition", errors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(errors.CodeConflict)

// ErrStaleAccountState is returned when a conditional update lost a
// concurrent race: the account no longer has the expected status or role.
var ErrStaleAccountState = errors.New("account state changed concurrently", errors.CategoryConflict).
	WithTextCode(textCodeStaleAccount).
	WithCode(errors.CodeConflict)

// ErrMissingReason is returned when a mutation requires a reason text.
var ErrMissingReason = errors.New("a reason is required for this action", errors.CategoryValidation).
	WithTextCode(textCodeMissingReason).
	WithCode(errors.CodeBadRequest)

// ErrStoreUnavailable wraps backing store failures. Operations fail closed.
var ErrStoreUnavailable = errors.New("backing store unavailable", errors.CategoryInternal).
	WithTextCode(textCodeStoreUnavailable).
	WithCode(errors.CodeInternal)

// ErrProviderMismatch is returned when a federated sign-in arrives for an
// email already bound to a different identity provider.
var ErrProviderMismatch = errors.New("email is registered with a different provider", errors.CategoryConflict).
	WithTextCode(textCodeProviderMismatch).
	WithCode(errors.CodeConflict)

// ErrSelfEscalation is returned when an actor attempts to grant themselves
// super admin through the promote path.
var ErrSelfEscalation = errors.New("cannot promote yourself to super admin", errors.CategoryAuthz).
	WithTextCode(textCodeSelfEscalation).
	WithCode(errors.CodeForbidden)

// ErrSelfDeletion is returned when an actor attempts to delete themselves.
var ErrSelfDeletion = errors.New("cannot delete yourself", errors.CategoryAuthz).
	WithTextCode(textCodeSelfDeletion).
	WithCode(errors.CodeForbidden)

// ErrLastSuperAdmin is returned when demoting the sole remaining super admin.
var ErrLastSuperAdmin = errors.New("cannot demote the only remaining super admin", errors.CategoryConflict).
	WithTextCode(textCodeLastSuperAdmin).
	WithCode(errors.CodeConflict)

// ErrInvitationAlreadyUsed is returned when revoking a consumed invitation.
var ErrInvitationAlreadyUsed = errors.New("invitation has already been used", errors.CategoryConflict).
	WithTextCode(textCodeInvitationUsed).
	WithCode(errors.CodeConflict)

// ErrInvitationAlreadyExists is returned when an active, unexpired invitation
// already exists for the invited email.
var ErrInvitationAlreadyExists = errors.New("active invitation already exists for this email", errors.CategoryConflict).
	WithTextCode(textCodeInvitationExists).
	WithCode(errors.CodeConflict)

// Credential verification errors

// ErrNoEmptyString guards against hashing empty passwords
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the generic bad-credentials error
var ErrMismatchedHashAndPassword = errors.New("invalid credentials", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts enforces the login cool down window
var ErrTooManyLoginAttempts = errors.New("too many login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode("TOO_MANY_ATTEMPTS")

// Token errors

// ErrTokenExpired is returned for tokens past their expiry claim.
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens we cannot parse.
var ErrTokenMalformed = errors.New("malformed session token", errors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when claims cannot be decoded.
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrImmutableClaimMutation is returned when a claims decorator touches a
// protected identity claim before signing.
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode("IMMUTABLE_CLAIM_MUTATION").
	WithCode(errors.CodeInternal)

// wrapStoreErr converts a raw driver/store failure into the fatal
// unavailable family. Callers fail closed; nothing is partially applied.
func wrapStoreErr(err error) *errors.Error {
	return errors.Wrap(err, errors.CategoryInternal, "backing store unavailable").
		WithTextCode(textCodeStoreUnavailable).
		WithCode(errors.CodeInternal)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired") ||
		strings.Contains(err.Error(), "session token expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsConflict reports whether err belongs to the conflict family
// (illegal transition or lost concurrent race).
func IsConflict(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryConflict
}

// IsForbidden reports whether err is a permission failure.
func IsForbidden(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryAuthz
}
