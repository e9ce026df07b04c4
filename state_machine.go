package admin

// AccountStateMachine validates status transitions. The transition table is
// closed: anything not listed fails with ErrInvalidTransition.
//
//	active    -> suspended | blocked | deleted
//	suspended -> active
//	blocked   -> active
//	deleted   -> active (restore; the super-admin-only rule lives in the
//	             lifecycle manager, not here)
type AccountStateMachine struct {
	transitions map[AccountStatus]map[AccountStatus]struct{}
}

// NewAccountStateMachine returns the default state machine.
func NewAccountStateMachine() *AccountStateMachine {
	return &AccountStateMachine{
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			StatusActive: {
				StatusSuspended: {},
				StatusBlocked:   {},
				StatusDeleted:   {},
			},
			StatusSuspended: {
				StatusActive: {},
			},
			StatusBlocked: {
				StatusActive: {},
			},
			StatusDeleted: {
				StatusActive: {},
			},
		},
	}
}

// CanTransition reports whether moving from one status to another is legal.
func (sm *AccountStateMachine) CanTransition(from, to AccountStatus) bool {
	if from == "" {
		from = StatusActive
	}
	allowed, ok := sm.transitions[from]
	if !ok {
		return false
	}
	_, exists := allowed[to]
	return exists
}

// EnsureTransition returns a typed error when the transition is illegal.
func (sm *AccountStateMachine) EnsureTransition(from, to AccountStatus) error {
	if to == "" || !to.IsValid() {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   from,
			"to":     to,
			"reason": "target status is invalid",
		})
	}

	if !sm.CanTransition(from, to) {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   to,
		})
	}

	return nil
}
