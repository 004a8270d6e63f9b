package goGuard

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/identity"
)

var (
	// ErrEngineNotReady is returned when an operation needs a collaborator the
	// Engine was built without.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidConfig is returned by Build when the configuration is rejected.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrNoSession is returned when an operation needs an active session.
	ErrNoSession = errors.New("no active session")
	// ErrDeviceMismatch is returned when the current device does not match the
	// fingerprint captured at login.
	ErrDeviceMismatch = errors.New("device fingerprint mismatch")
	// ErrNoDuplicates is returned when a merge finds fewer than two accounts.
	ErrNoDuplicates = errors.New("no duplicate accounts found")
	// ErrMergeInProgress is returned when a merge is requested while a
	// journaled merge for the same email is unfinished.
	ErrMergeInProgress = errors.New("merge already in progress")
	// ErrNoMergeInProgress is returned by ResumeMerge when nothing is journaled.
	ErrNoMergeInProgress = errors.New("no merge in progress")
	// ErrMergePartial marks a merge that persisted the primary but did not
	// finish. Manual reconciliation or ResumeMerge is required.
	ErrMergePartial = errors.New("merge partially applied")
	// ErrPasswordRequired is returned by AutoMergeOnLogin when a
	// password-bearing account would be merged without re-authentication.
	ErrPasswordRequired = errors.New("password required to merge accounts")
	// ErrLinkRequired is wrapped by [LinkRequiredError].
	ErrLinkRequired = errors.New("account link required")
	// ErrInvalidUsername is returned when a username fails the naming rules.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrUnsupportedProvider is returned for OAuth with an unknown provider.
	ErrUnsupportedProvider = errors.New("unsupported oauth provider")
)

// MergeError reports a merge that stopped after the primary account was
// updated. It wraps [ErrMergePartial] and the step failure. Completed lists
// duplicates merged before Record failed.
type MergeError struct {
	Record    identity.MergeRecord
	Step      identity.MergeStep
	Completed []identity.MergeRecord
	Err       error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("%v: %s into %s stopped at %s: %v", ErrMergePartial, e.Record.DuplicateID, e.Record.PrimaryID, e.Step, e.Err)
}

// Unwrap exposes both the partial-merge sentinel and the step cause.
func (e *MergeError) Unwrap() []error {
	return []error{ErrMergePartial, e.Err}
}

// LinkRequiredError carries the linking decision when an email already
// belongs to an account that uses a different method.
type LinkRequiredError struct {
	Decision identity.LinkDecision
}

func (e *LinkRequiredError) Error() string {
	if e.Decision.Message != "" {
		return ErrLinkRequired.Error() + ": " + e.Decision.Message
	}
	return ErrLinkRequired.Error()
}

func (e *LinkRequiredError) Unwrap() error {
	return ErrLinkRequired
}
