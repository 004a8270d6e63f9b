package goGuard

import (
	"time"

	"github.com/MrEthical07/goGuard/identity"
	"github.com/MrEthical07/goGuard/internal/lifecycle"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/session"
)

// Event is a session lifecycle notification delivered to Subscribe listeners.
type Event = lifecycle.Event

// EventType tags an Event.
type EventType = lifecycle.EventType

// Listener receives lifecycle events.
type Listener = lifecycle.Listener

// Lifecycle event types.
const (
	EventLoginSuccess       = lifecycle.EventLoginSuccess
	EventLogout             = lifecycle.EventLogout
	EventSessionWarning     = lifecycle.EventSessionWarning
	EventSessionExpired     = lifecycle.EventSessionExpired
	EventSessionExtended    = lifecycle.EventSessionExtended
	EventSessionRefreshed   = lifecycle.EventSessionRefreshed
	EventTokenRefreshNeeded = lifecycle.EventTokenRefreshNeeded
)

// ActivityKind is a class of user activity that keeps a session alive.
type ActivityKind = lifecycle.ActivityKind

// Tracked activity kinds.
const (
	ActivityPointer = lifecycle.ActivityPointer
	ActivityKey     = lifecycle.ActivityKey
	ActivityScroll  = lifecycle.ActivityScroll
	ActivityTouch   = lifecycle.ActivityTouch
)

// ActivitySource delivers activity to the Engine once Initialize attaches it.
type ActivitySource = lifecycle.ActivitySource

// ManualSource is an ActivitySource driven by Emit calls, for hosts that
// observe activity themselves (HTTP middleware, UI bridges).
type ManualSource = lifecycle.ManualSource

// NewManualSource creates an ActivitySource fed through Emit.
func NewManualSource() *ManualSource {
	return lifecycle.NewManualSource()
}

// RateLimitStatus is the lockout decision for an identifier.
type RateLimitStatus = limiters.LockoutDecision

// LockoutRecord is the failure history of an identifier.
type LockoutRecord = limiters.LockoutRecord

// Device is the client-reported attribute set used for fingerprinting.
type Device = session.Device

// LoginResult defines a public type used by goGuard APIs.
//
// LoginResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// When the profile store reports duplicate accounts or a link requirement,
// Login stops before contacting the identity provider and returns the
// finding in Duplicates or Decision with no session.
type LoginResult struct {
	Session    *session.Session
	User       identity.ProviderUser
	Duplicates *identity.DuplicateCheck
	Decision   *identity.LinkDecision
	// Merge is set when Merge.AutoMergeOnLogin merged duplicates after the
	// password was verified.
	Merge *AutoMergeResult
}

// SessionInfo defines a public type used by goGuard APIs.
//
// SessionInfo is a point-in-time snapshot. TokenPreview holds a masked preview,
// never the bearer token itself.
type SessionInfo struct {
	Valid          bool
	HasToken       bool
	TokenPreview   string
	Status         session.Status
	ExpiresAt      time.Time
	ExpiresIn      time.Duration
	LastActivityAt time.Time
}

// MergeResult defines a public type used by goGuard APIs.
//
// MergeResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MergeResult struct {
	Account identity.Account
	Records []identity.MergeRecord
	Message string
}

// AutoMergeResult defines a public type used by goGuard APIs.
//
// AutoMergeResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AutoMergeResult struct {
	NeedsMerge bool
	Merged     bool
	Account    *identity.Account
	Message    string
}

// OAuthOutcome defines a public type used by goGuard APIs.
//
// A session is started only when Decision.Action is login or register. On
// link_required the caller must ask the user to link or convert.
type OAuthOutcome struct {
	Decision identity.LinkDecision
	Profile  identity.SocialProfile
	Session  *session.Session
	// Warning is set when the session started but the backend profile sync
	// failed.
	Warning string
}
