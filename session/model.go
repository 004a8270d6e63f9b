package session

import "time"

// Status is the lifecycle state of a client session.
type Status uint8

const (
	// StatusInactive is the state before login and after logout.
	StatusInactive Status = iota
	// StatusActive means the session is live and the caller is interacting.
	StatusActive
	// StatusWarning means the inactivity deadline is near.
	StatusWarning
	// StatusExpired means the inactivity deadline passed and the token was cleared.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusWarning:
		return "warning"
	case StatusExpired:
		return "expired"
	default:
		return "inactive"
	}
}

// Session is a point-in-time view of the current session.
type Session struct {
	Token          string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	Status         Status
}

// Valid reports whether the session carries a token that has not reached its
// absolute expiry at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && !s.ExpiresAt.IsZero() && now.Before(s.ExpiresAt)
}
