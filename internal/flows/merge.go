package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/identity"
)

// MergeJournal persists in-flight merge records keyed by email.
type MergeJournal interface {
	Load(ctx context.Context, email string) (*identity.MergeRecord, error)
	Save(ctx context.Context, record identity.MergeRecord) error
	Delete(ctx context.Context, email string) error
}

// MergeMetrics carries metric IDs needed by merge flows.
type MergeMetrics struct {
	MergeSuccess int
	MergePartial int
	MergeFailure int
}

// MergeEvents carries audit event names used by merge flows.
type MergeEvents struct {
	MergeSuccess string
	MergePartial string
	MergeFailure string
}

// MergeErrors carries host-level sentinel errors used by merge flows.
type MergeErrors struct {
	EngineNotReady    error
	NoDuplicates      error
	MergeInProgress   error
	NoMergeInProgress error
	PasswordRequired  error
	InvalidPassword   error
}

// MergeDeps captures duplicate-account merge dependencies.
type MergeDeps struct {
	FindAccountsByEmail      func(context.Context, string) ([]identity.Account, error)
	UpsertAccount            func(context.Context, identity.Account) error
	DeleteAccount            func(context.Context, string) error
	TransferContentOwnership func(context.Context, identity.ContentType, string, string) error
	SignInWithPassword       func(context.Context, string, string) (*identity.ProviderSession, error)
	ReauthFailed             ReauthFunc
	Journal                  MergeJournal
	NewID                    func() string

	RequirePasswordForAutoMerge bool
	// PasswordVerified skips the auto-merge re-authentication when the
	// caller has just signed in with the same credentials.
	PasswordVerified            bool

	Now            func() time.Time
	MetricInc      func(int)
	ObserveLatency func(time.Duration)
	EmitAudit      AuditFunc
	Warn           func(string, ...any)

	Metrics MergeMetrics
	Events  MergeEvents
	Errors  MergeErrors
}

func (d *MergeDeps) defaults() {
	d.Now = defaultNow(d.Now)
	if d.MetricInc == nil {
		d.MetricInc = noopMetric
	}
	if d.ObserveLatency == nil {
		d.ObserveLatency = func(time.Duration) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noopAudit
	}
	if d.Warn == nil {
		d.Warn = noopWarn
	}
	if d.NewID == nil {
		d.NewID = func() string { return "" }
	}
}

func (d *MergeDeps) ready() bool {
	return d.FindAccountsByEmail != nil &&
		d.UpsertAccount != nil &&
		d.DeleteAccount != nil &&
		d.TransferContentOwnership != nil &&
		d.Journal != nil
}

// MergeOutcome is the result of a completed merge.
type MergeOutcome struct {
	Account identity.Account
	Records []identity.MergeRecord
}

// PartialMergeError reports a merge that stopped after changing backend
// state: either Record itself has completed steps, or Completed holds
// duplicates already folded into the primary. The journal keeps Record so
// that RunResumeMerge can finish it and the duplicates after it.
type PartialMergeError struct {
	Record    identity.MergeRecord
	Step      identity.MergeStep
	Completed []identity.MergeRecord
	Err       error
}

func (e *PartialMergeError) Error() string {
	return fmt.Sprintf("merge %s into %s stopped at %s: %v", e.Record.DuplicateID, e.Record.PrimaryID, e.Step, e.Err)
}

func (e *PartialMergeError) Unwrap() error {
	return e.Err
}

// RunCheckDuplicates reports whether two or more accounts share email.
func RunCheckDuplicates(ctx context.Context, email string, deps MergeDeps) (identity.DuplicateCheck, error) {
	deps.defaults()
	if deps.FindAccountsByEmail == nil {
		return identity.DuplicateCheck{}, deps.Errors.EngineNotReady
	}
	email = identity.NormalizeEmail(email)

	accounts, err := deps.FindAccountsByEmail(ctx, email)
	if err != nil {
		return identity.DuplicateCheck{}, err
	}
	if len(accounts) < 2 {
		return identity.DuplicateCheck{Accounts: accounts}, nil
	}
	return identity.DuplicateCheck{
		HasDuplicates: true,
		Accounts:      accounts,
		Message:       fmt.Sprintf("Found %d accounts with this email. Would you like to merge them?", len(accounts)),
	}, nil
}

// SelectPrimary picks the account kept by a merge: the first with the email
// method, else the earliest created. The rest are returned in input order.
func SelectPrimary(accounts []identity.Account) (identity.Account, []identity.Account) {
	idx := -1
	for i, a := range accounts {
		if a.HasMethod(identity.MethodEmail) {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
		for i, a := range accounts {
			if earlier(a.CreatedAt, accounts[idx].CreatedAt) {
				idx = i
			}
		}
	}

	dups := make([]identity.Account, 0, len(accounts)-1)
	for i, a := range accounts {
		if i != idx {
			dups = append(dups, a)
		}
	}
	return accounts[idx], dups
}

func earlier(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	return b.IsZero() || a.Before(b)
}

// MergeFields computes the merged primary record. Scalars keep the primary's
// non-empty value, methods are unioned, content counters are summed,
// relationship counters take the max and CreatedAt keeps the earlier time.
func MergeFields(primary, dup identity.Account, now time.Time) identity.Account {
	merged := primary
	merged.Username = firstNonEmpty(primary.Username, dup.Username)
	merged.Bio = firstNonEmpty(primary.Bio, dup.Bio)
	merged.Image = firstNonEmpty(primary.Image, dup.Image)
	merged.Location = firstNonEmpty(primary.Location, dup.Location)
	merged.Website = firstNonEmpty(primary.Website, dup.Website)

	merged.AuthMethods = append([]identity.AuthMethod(nil), primary.AuthMethods...)
	for _, m := range dup.AuthMethods {
		if !merged.HasMethod(m) {
			merged.AuthMethods = append(merged.AuthMethods, m)
		}
	}

	merged.ArticlesCount = primary.ArticlesCount + dup.ArticlesCount
	merged.CommentsCount = primary.CommentsCount + dup.CommentsCount
	merged.LikesReceived = primary.LikesReceived + dup.LikesReceived
	merged.FollowersCount = max(primary.FollowersCount, dup.FollowersCount)
	merged.FollowingCount = max(primary.FollowingCount, dup.FollowingCount)

	if earlier(dup.CreatedAt, primary.CreatedAt) {
		merged.CreatedAt = dup.CreatedAt
	}
	mergedAt := now
	merged.MergedAt = &mergedAt
	merged.MergedFrom = dup.ID
	return merged
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// RunMergeAccounts merges every duplicate of email into the primary, one at a
// time. A failure before anything is persisted aborts cleanly. A failure
// after the primary was rewritten, including one on a later duplicate once
// an earlier duplicate was merged, returns *PartialMergeError and leaves the
// failing record journaled.
func RunMergeAccounts(ctx context.Context, email string, deps MergeDeps) (*MergeOutcome, error) {
	deps.defaults()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	email = identity.NormalizeEmail(email)
	started := deps.Now()

	pending, err := deps.Journal.Load(ctx, email)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, deps.Errors.MergeInProgress
	}

	accounts, err := deps.FindAccountsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(accounts) < 2 {
		return nil, deps.Errors.NoDuplicates
	}

	primary, dups := SelectPrimary(accounts)
	outcome := &MergeOutcome{}
	if err := mergeDuplicates(ctx, email, primary, dups, outcome, deps); err != nil {
		return nil, err
	}

	deps.ObserveLatency(deps.Now().Sub(started))
	deps.MetricInc(deps.Metrics.MergeSuccess)
	deps.EmitAudit(ctx, deps.Events.MergeSuccess, true, email, nil, func() map[string]string {
		return map[string]string{"primary_id": primary.ID, "merged": fmt.Sprint(len(dups))}
	})
	return outcome, nil
}

// mergeDuplicates folds dups into primary one at a time, appending each
// finished record to outcome.
func mergeDuplicates(ctx context.Context, email string, primary identity.Account, dups []identity.Account, outcome *MergeOutcome, deps MergeDeps) error {
	merged := primary
	for _, dup := range dups {
		record := identity.MergeRecord{
			ID:           deps.NewID(),
			Email:        email,
			PrimaryID:    primary.ID,
			DuplicateID:  dup.ID,
			MergedFields: MergeFields(merged, dup, deps.Now().UTC()),
			StartedAt:    deps.Now().UTC(),
		}
		if err := deps.Journal.Save(ctx, record); err != nil {
			if len(outcome.Records) > 0 {
				return failMerge(ctx, email, record, outcome.Records, err, deps)
			}
			return err
		}

		if err := runMergeSteps(ctx, &record, deps); err != nil {
			return failMerge(ctx, email, record, outcome.Records, err, deps)
		}
		if err := deps.Journal.Delete(ctx, email); err != nil {
			deps.Warn("merge journal cleanup failed", "email", email, "error", err)
		}
		merged = record.MergedFields
		outcome.Records = append(outcome.Records, record)
	}
	outcome.Account = merged
	return nil
}

// RunResumeMerge finishes the journaled merge for email, running only the
// steps not yet completed, then merges any duplicates still left.
func RunResumeMerge(ctx context.Context, email string, deps MergeDeps) (*MergeOutcome, error) {
	deps.defaults()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	email = identity.NormalizeEmail(email)

	record, err := deps.Journal.Load(ctx, email)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, deps.Errors.NoMergeInProgress
	}

	rec := *record
	if err := runMergeSteps(ctx, &rec, deps); err != nil {
		return nil, failMerge(ctx, email, rec, nil, err, deps)
	}
	if err := deps.Journal.Delete(ctx, email); err != nil {
		deps.Warn("merge journal cleanup failed", "email", email, "error", err)
	}
	outcome := &MergeOutcome{Account: rec.MergedFields, Records: []identity.MergeRecord{rec}}

	accounts, err := deps.FindAccountsByEmail(ctx, email)
	if err != nil {
		return nil, failMerge(ctx, email, identity.MergeRecord{Email: email, PrimaryID: rec.PrimaryID}, outcome.Records, err, deps)
	}
	if len(accounts) > 1 {
		primary, dups := SelectPrimary(accounts)
		if err := mergeDuplicates(ctx, email, primary, dups, outcome, deps); err != nil {
			return nil, err
		}
	}

	deps.MetricInc(deps.Metrics.MergeSuccess)
	deps.EmitAudit(ctx, deps.Events.MergeSuccess, true, email, nil, func() map[string]string {
		return map[string]string{"primary_id": rec.PrimaryID, "resumed": "true", "merged": fmt.Sprint(len(outcome.Records))}
	})
	return outcome, nil
}

type stepError struct {
	step identity.MergeStep
	err  error
}

func (e *stepError) Error() string { return string(e.step) + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func runMergeSteps(ctx context.Context, record *identity.MergeRecord, deps MergeDeps) error {
	for _, step := range identity.MergeSteps {
		if record.Done(step) {
			continue
		}
		if err := runMergeStep(ctx, step, *record, deps); err != nil {
			return &stepError{step: step, err: err}
		}
		record.CompletedSteps = append(record.CompletedSteps, step)
		if c, ok := stepContent(step); ok {
			record.TransferredContentTypes = append(record.TransferredContentTypes, c)
		}
		if step == identity.StepDeleteDuplicate {
			done := deps.Now().UTC()
			record.CompletedAt = &done
		}
		if err := deps.Journal.Save(ctx, *record); err != nil {
			deps.Warn("merge journal update failed", "email", record.Email, "step", string(step), "error", err)
		}
	}
	return nil
}

func runMergeStep(ctx context.Context, step identity.MergeStep, record identity.MergeRecord, deps MergeDeps) error {
	switch step {
	case identity.StepUpsertPrimary:
		return deps.UpsertAccount(ctx, record.MergedFields)
	case identity.StepDeleteDuplicate:
		err := deps.DeleteAccount(ctx, record.DuplicateID)
		if errors.Is(err, identity.ErrAccountNotFound) {
			return nil
		}
		return err
	default:
		c, _ := stepContent(step)
		return deps.TransferContentOwnership(ctx, c, record.DuplicateID, record.PrimaryID)
	}
}

func stepContent(step identity.MergeStep) (identity.ContentType, bool) {
	for _, c := range identity.TransferableContent {
		if identity.TransferStep(c) == step {
			return c, true
		}
	}
	return "", false
}

func failMerge(ctx context.Context, email string, record identity.MergeRecord, completed []identity.MergeRecord, err error, deps MergeDeps) error {
	var se *stepError
	step := identity.MergeStep("")
	cause := err
	if errors.As(err, &se) {
		step, cause = se.step, se.err
	}

	if !record.Started() && len(completed) == 0 {
		if derr := deps.Journal.Delete(ctx, email); derr != nil {
			deps.Warn("merge journal cleanup failed", "email", email, "error", derr)
		}
		deps.MetricInc(deps.Metrics.MergeFailure)
		deps.EmitAudit(ctx, deps.Events.MergeFailure, false, email, cause, func() map[string]string {
			return map[string]string{"step": string(step), "duplicate_id": record.DuplicateID}
		})
		return fmt.Errorf("merge accounts: %w", cause)
	}

	deps.MetricInc(deps.Metrics.MergePartial)
	deps.EmitAudit(ctx, deps.Events.MergePartial, false, email, cause, func() map[string]string {
		return map[string]string{
			"step":         string(step),
			"primary_id":   record.PrimaryID,
			"duplicate_id": record.DuplicateID,
			"completed":    completedSteps(record),
			"merged":       fmt.Sprint(len(completed)),
		}
	})
	deps.Warn("merge stopped after partial completion", "email", email, "step", string(step), "error", cause)
	return &PartialMergeError{
		Record:    record,
		Step:      step,
		Completed: append([]identity.MergeRecord(nil), completed...),
		Err:       cause,
	}
}

func completedSteps(record identity.MergeRecord) string {
	steps := make([]string, len(record.CompletedSteps))
	for i, s := range record.CompletedSteps {
		steps[i] = string(s)
	}
	return strings.Join(steps, ",")
}

// AutoMergeResult is the outcome of a login-time merge attempt.
type AutoMergeResult struct {
	NeedsMerge bool
	Merged     bool
	Account    *identity.Account
	Message    string
}

// RunAutoMergeOnLogin merges duplicates of email during login. A supplied
// password is verified first. Without one, the merge is refused when
// RequirePasswordForAutoMerge is set and a password-bearing account exists.
func RunAutoMergeOnLogin(ctx context.Context, email, password string, deps MergeDeps) (AutoMergeResult, error) {
	deps.defaults()
	check, err := RunCheckDuplicates(ctx, email, deps)
	if err != nil {
		return AutoMergeResult{}, err
	}
	if !check.HasDuplicates {
		return AutoMergeResult{}, nil
	}

	switch {
	case deps.PasswordVerified:
	case password != "":
		if deps.SignInWithPassword == nil {
			return AutoMergeResult{NeedsMerge: true}, deps.Errors.EngineNotReady
		}
		if _, err := deps.SignInWithPassword(ctx, identity.NormalizeEmail(email), password); err != nil {
			return AutoMergeResult{NeedsMerge: true}, reauthFailure(deps.ReauthFailed, deps.Errors.InvalidPassword, err)
		}
	case deps.RequirePasswordForAutoMerge:
		for _, a := range check.Accounts {
			if a.HasMethod(identity.MethodEmail) {
				return AutoMergeResult{NeedsMerge: true}, deps.Errors.PasswordRequired
			}
		}
	}

	outcome, err := RunMergeAccounts(ctx, email, deps)
	if err != nil {
		return AutoMergeResult{NeedsMerge: true}, err
	}
	account := outcome.Account
	return AutoMergeResult{
		Merged:  true,
		Account: &account,
		Message: "Accounts successfully merged during login",
	}, nil
}
