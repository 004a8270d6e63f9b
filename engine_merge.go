package goGuard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	internalflows "github.com/MrEthical07/goGuard/internal/flows"
	"github.com/google/uuid"
)

func (e *Engine) mergeFlowDeps() internalflows.MergeDeps {
	deps := internalflows.MergeDeps{
		NewID:                       uuid.NewString,
		ReauthFailed:                e.reauthFailed,
		RequirePasswordForAutoMerge: e.config.Merge.RequirePasswordForAutoMerge,
		Now:                         e.clock.Now,
		MetricInc:                   func(id int) { e.metricInc(MetricID(id)) },
		ObserveLatency: func(d time.Duration) {
			if e.metrics != nil {
				e.metrics.Observe(MetricMergeLatency, d)
			}
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: internalflows.MergeMetrics{
			MergeSuccess: int(MetricMergeSuccess),
			MergePartial: int(MetricMergePartial),
			MergeFailure: int(MetricMergeFailure),
		},
		Events: internalflows.MergeEvents{
			MergeSuccess: auditEventMergeSuccess,
			MergePartial: auditEventMergePartial,
			MergeFailure: auditEventMergeFailure,
		},
		Errors: internalflows.MergeErrors{
			EngineNotReady:    ErrEngineNotReady,
			NoDuplicates:      ErrNoDuplicates,
			MergeInProgress:   ErrMergeInProgress,
			NoMergeInProgress: ErrNoMergeInProgress,
			PasswordRequired:  ErrPasswordRequired,
			InvalidPassword:   autherr.ErrInvalidPassword,
		},
	}
	if e.journal != nil {
		deps.Journal = e.journal
	}
	if e.provider != nil {
		deps.SignInWithPassword = e.provider.SignInWithPassword
	}
	if e.profiles != nil {
		deps.FindAccountsByEmail = e.profiles.FindAccountsByEmail
		deps.UpsertAccount = e.profiles.UpsertAccount
		deps.DeleteAccount = e.profiles.DeleteAccount
		deps.TransferContentOwnership = e.profiles.TransferContentOwnership
	}
	return deps
}

// CheckForDuplicateAccounts reports whether two or more backend accounts
// share email. It fails with ErrEngineNotReady when no profile store is
// configured.
func (e *Engine) CheckForDuplicateAccounts(ctx context.Context, email string) (identity.DuplicateCheck, error) {
	if e == nil || e.profiles == nil {
		return identity.DuplicateCheck{}, ErrEngineNotReady
	}
	return internalflows.RunCheckDuplicates(ctx, email, e.mergeFlowDeps())
}

// MergeExistingAccounts describes the mergeexistingaccounts operation and its observable behavior.
//
// MergeExistingAccounts folds every duplicate of email into the primary
// account (the one with the email method, else the earliest created). For
// each duplicate it upserts the merged primary, transfers content and
// deletes the duplicate, journaling each completed step. A failure after the
// primary was written returns *MergeError; ResumeMerge finishes it.
func (e *Engine) MergeExistingAccounts(ctx context.Context, email string) (*MergeResult, error) {
	if e == nil || e.profiles == nil {
		return nil, ErrEngineNotReady
	}
	outcome, err := internalflows.RunMergeAccounts(ctx, email, e.mergeFlowDeps())
	if err != nil {
		return nil, mergeError(err)
	}
	return &MergeResult{
		Account: outcome.Account,
		Records: outcome.Records,
		Message: fmt.Sprintf("Successfully merged %d accounts", len(outcome.Records)+1),
	}, nil
}

// ResumeMerge runs the steps a journaled merge for email has not completed,
// then merges any duplicates of email still left.
func (e *Engine) ResumeMerge(ctx context.Context, email string) (*MergeResult, error) {
	if e == nil || e.profiles == nil {
		return nil, ErrEngineNotReady
	}
	outcome, err := internalflows.RunResumeMerge(ctx, email, e.mergeFlowDeps())
	if err != nil {
		return nil, mergeError(err)
	}
	return &MergeResult{
		Account: outcome.Account,
		Records: outcome.Records,
		Message: "Merge completed",
	}, nil
}

// PendingMerge returns the journaled merge for email, or nil.
func (e *Engine) PendingMerge(ctx context.Context, email string) (*identity.MergeRecord, error) {
	return e.journal.Load(ctx, identity.NormalizeEmail(email))
}

// AutoMergeOnLogin describes the automergeonlogin operation and its observable behavior.
//
// AutoMergeOnLogin merges duplicates of email as part of a login. A supplied
// password is verified with the identity provider first. Without one, and
// with Merge.RequirePasswordForAutoMerge set, accounts holding the email
// method are never merged and ErrPasswordRequired is returned. With no
// duplicates the zero result is returned.
func (e *Engine) AutoMergeOnLogin(ctx context.Context, email, password string) (AutoMergeResult, error) {
	return e.autoMerge(ctx, email, password, false)
}

// autoMerge runs the login-time merge. verified skips the password re-check
// when Login has just signed in with the same credentials.
func (e *Engine) autoMerge(ctx context.Context, email, password string, verified bool) (AutoMergeResult, error) {
	if e == nil || e.profiles == nil {
		return AutoMergeResult{}, ErrEngineNotReady
	}
	deps := e.mergeFlowDeps()
	deps.PasswordVerified = verified
	res, err := internalflows.RunAutoMergeOnLogin(ctx, email, password, deps)
	out := AutoMergeResult{
		NeedsMerge: res.NeedsMerge,
		Merged:     res.Merged,
		Account:    res.Account,
		Message:    res.Message,
	}
	if err != nil {
		return out, mergeError(err)
	}
	return out, nil
}

func mergeError(err error) error {
	var partial *internalflows.PartialMergeError
	if errors.As(err, &partial) {
		return &MergeError{Record: partial.Record, Step: partial.Step, Completed: partial.Completed, Err: partial.Err}
	}
	return err
}
