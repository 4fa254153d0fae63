package domain

import "time"

// TransitionKind captures which desk action wrote to the tracker.
type TransitionKind string

const (
	TransitionPresence TransitionKind = "PRESENCE"
	TransitionComplete TransitionKind = "COMPLETE"
	TransitionReturn   TransitionKind = "RETURN"
)

// TransitionOutcome records how the remote writes ended.
type TransitionOutcome string

const (
	OutcomeApplied     TransitionOutcome = "APPLIED"
	OutcomeFailed      TransitionOutcome = "FAILED"
	OutcomePartial     TransitionOutcome = "PARTIAL"
	OutcomeCompensated TransitionOutcome = "COMPENSATED"
)

// Transition is an immutable journal entry for one desk action.
type Transition struct {
	ID        string
	SessionID string
	UserID    string
	IssueID   string
	Kind      TransitionKind
	StatusID  int64
	Outcome   TransitionOutcome
	Detail    map[string]any
	CreatedAt time.Time
}
