package identity

import "time"

// LinkAction is the outcome of identity linking resolution.
type LinkAction string

const (
	ActionLogin        LinkAction = "login"
	ActionRegister     LinkAction = "register"
	ActionLinkRequired LinkAction = "link_required"
)

// LinkDecision tells the caller how to proceed with an authentication attempt.
// It is recomputed on every attempt and never persisted.
type LinkDecision struct {
	Action        LinkAction
	ExistingUser  *Account
	NewAuthMethod AuthMethod
	Message       string
}

// DuplicateCheck reports whether several backend accounts share an email.
type DuplicateCheck struct {
	HasDuplicates bool
	Accounts      []Account
	Message       string
}

// MergeStep is one side-effecting step of a merge.
type MergeStep string

const (
	StepUpsertPrimary        MergeStep = "upsert_primary"
	StepTransferArticles     MergeStep = "transfer_articles"
	StepTransferComments     MergeStep = "transfer_comments"
	StepTransferBookmarks    MergeStep = "transfer_bookmarks"
	StepTransferRelationship MergeStep = "transfer_relationships"
	StepDeleteDuplicate      MergeStep = "delete_duplicate"
)

// MergeSteps lists merge steps in execution order.
var MergeSteps = []MergeStep{
	StepUpsertPrimary,
	StepTransferArticles,
	StepTransferComments,
	StepTransferBookmarks,
	StepTransferRelationship,
	StepDeleteDuplicate,
}

// TransferStep maps a content type to the step that moves it.
func TransferStep(c ContentType) MergeStep {
	switch c {
	case ContentArticles:
		return StepTransferArticles
	case ContentComments:
		return StepTransferComments
	case ContentBookmarks:
		return StepTransferBookmarks
	default:
		return StepTransferRelationship
	}
}

// MergeRecord journals one primary/duplicate merge.
type MergeRecord struct {
	ID                      string        `json:"id"`
	Email                   string        `json:"email"`
	PrimaryID               string        `json:"primaryId"`
	DuplicateID             string        `json:"duplicateId"`
	MergedFields            Account       `json:"mergedFields"`
	TransferredContentTypes []ContentType `json:"transferredContentTypes"`
	CompletedSteps          []MergeStep   `json:"completedSteps"`
	StartedAt               time.Time     `json:"startedAt"`
	CompletedAt             *time.Time    `json:"completedAt,omitempty"`
}

// Done reports whether step already completed.
func (r MergeRecord) Done(step MergeStep) bool {
	for _, s := range r.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// Started reports whether any step has completed.
func (r MergeRecord) Started() bool {
	return len(r.CompletedSteps) > 0
}
