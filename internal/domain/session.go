package domain

import "time"

// Session-scoped persisted keys.
const (
	KeyUserID        = "userId"
	KeyUserName      = "userName"
	KeyStatusIssueID = "statusIssueId"
	KeyUserStatus    = "userStatus"
	KeyMuted         = "isMuted"
	KeyTickets       = "userTickets"
)

// Persisted values of KeyUserStatus.
const (
	UserStatusPresent = "present"
	UserStatusAbsent  = "absent"
)

// UserSession is one logged-in staff member at the desk.
type UserSession struct {
	SessionID     string
	UserID        string
	UserName      string
	StatusIssueID string
	Muted         bool
	StartedAt     time.Time
}

// Bound reports whether the presence issue binding is known.
func (s UserSession) Bound() bool {
	return s.StatusIssueID != ""
}

// PresenceState is the cached presence value and the remote status id it was
// derived from (0 when it came from a local toggle only).
type PresenceState struct {
	IsPresent      bool
	RemoteStatusID int64
}

// UserStatus returns the persisted representation.
func (p PresenceState) UserStatus() string {
	if p.IsPresent {
		return UserStatusPresent
	}
	return UserStatusAbsent
}
