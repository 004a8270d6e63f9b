package goGuard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	internalflows "github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/session"
)

// Login describes the login operation and its observable behavior.
//
// Login runs the full password login: CSRF check when CSRF.Enforce is set,
// input validation, lockout check, duplicate and linking prechecks when a
// profile store is configured, the provider sign-in, and session start.
// Rejections by the CSRF guard, the lockout guard or input validation never
// reach the identity provider. Every provider failure is returned as an
// *autherr.AuthError and appended to the error log.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return e.login(ctx, email, password, "", false)
}

// LoginWithCSRF is Login with an anti-forgery token that is always checked.
func (e *Engine) LoginWithCSRF(ctx context.Context, email, password, csrfToken string) (*LoginResult, error) {
	return e.login(ctx, email, password, csrfToken, true)
}

func (e *Engine) login(ctx context.Context, email, password, csrfToken string, checkCSRF bool) (*LoginResult, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	email = identity.NormalizeEmail(email)

	if checkCSRF || e.config.CSRF.Enforce {
		if err := e.csrf.Validate(ctx, csrfToken); err != nil {
			e.metricInc(MetricCSRFRejected)
			ae := e.fail(ctx, "login_attempt", email,
				autherr.Wrap(autherr.CodeCSRFFailed, "Security validation failed. Please refresh the page.", nil, err))
			e.emitAudit(ctx, auditEventCSRFRejected, false, email, ae, nil)
			return nil, ae
		}
	}

	if err := ValidateEmail(email); err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}
	if err := e.config.Validation.validatePassword(password); err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	if err := e.checkLockout(ctx, email); err != nil {
		return nil, err
	}

	autoMerge := false
	if e.profiles != nil {
		res, merge := e.loginPrecheck(ctx, email)
		if res != nil {
			return res, nil
		}
		autoMerge = merge
	}

	sess, err := e.provider.SignInWithPassword(ctx, email, password)
	if err == nil && (sess == nil || sess.Token == "") {
		err = autherr.New(autherr.CodeUnknown, "The identity provider did not return a session.", nil)
	}
	if err != nil {
		ae := e.fail(ctx, "signin", email, err)
		e.recordCredentialFailure(ctx, email, ae)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, email, ae, nil)
		return nil, ae
	}

	if err := e.lockout.Clear(ctx, email); err != nil {
		e.logger.Warn().Err(err).Str("email", email).Msg("clear failed attempts")
	}

	snap, err := e.startSession(ctx, email, sess.Token, sess.ExpiresIn)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, email, nil, nil)
	result := &LoginResult{Session: &snap, User: sess.User}

	if autoMerge {
		merged, err := e.autoMerge(ctx, email, password, true)
		if err != nil {
			e.logger.Warn().Err(err).Str("email", email).Msg("auto-merge on login failed")
		}
		result.Merge = &merged
	}
	return result, nil
}

// loginPrecheck stops the login when duplicates need consent or the email
// belongs to an account without the email method. Lookup failures never
// block the login. The second result asks for an auto-merge after sign-in.
func (e *Engine) loginPrecheck(ctx context.Context, email string) (*LoginResult, bool) {
	autoMerge := false
	check, err := internalflows.RunCheckDuplicates(ctx, email, e.mergeFlowDeps())
	switch {
	case err != nil:
		e.logger.Warn().Err(err).Str("email", email).Msg("duplicate account check failed")
	case check.HasDuplicates && e.config.Merge.AutoMergeOnLogin:
		autoMerge = true
	case check.HasDuplicates:
		return &LoginResult{Duplicates: &check}, false
	}

	decision := internalflows.RunResolveLinking(ctx, email, identity.MethodEmail, e.linkingFlowDeps())
	if decision.Action == identity.ActionLinkRequired {
		return &LoginResult{Decision: &decision}, false
	}
	return nil, autoMerge
}

func (e *Engine) checkLockout(ctx context.Context, email string) error {
	decision, err := e.lockout.Check(ctx, email)
	if err != nil {
		e.logger.Error().Err(err).Str("email", email).Msg("lockout check failed, allowing attempt")
		return nil
	}
	if decision.Allowed {
		return nil
	}

	msg := fmt.Sprintf("Too many failed attempts. Try again in %d seconds.", decision.RemainingSeconds)
	if decision.RemainingSeconds > 60 {
		msg = fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", decision.RemainingMinutes)
	}
	ae := autherr.New(autherr.CodeRateLimited, msg, map[string]string{
		"remaining_seconds": strconv.Itoa(decision.RemainingSeconds),
	})
	e.recordAuthError(ctx, ae, map[string]string{"action": "login_attempt", "email": email})
	e.metricInc(MetricLoginRateLimited)
	e.emitAudit(ctx, auditEventLoginRateLimited, false, email, ae, func() map[string]string {
		return map[string]string{"blocked_until": decision.BlockedUntil.UTC().Format("2006-01-02T15:04:05Z")}
	})
	return ae
}

// recordCredentialFailure counts a rejected sign-in against the lockout
// guard. Network failures say nothing about the credentials and are skipped.
func (e *Engine) recordCredentialFailure(ctx context.Context, email string, ae *autherr.AuthError) {
	if e.lockout == nil || ae.Code == autherr.CodeNetworkError {
		return
	}
	rec, err := e.lockout.RecordFailure(ctx, email)
	if err != nil {
		e.logger.Warn().Err(err).Str("email", email).Msg("record failed attempt")
		return
	}
	if rec.Blocked(e.now()) {
		e.metricInc(MetricLockoutTriggered)
		e.emitAudit(ctx, auditEventLockoutTriggered, false, email, nil, func() map[string]string {
			return map[string]string{"failures": strconv.Itoa(rec.FailureCount)}
		})
	}
}

// startSession hands the token to the lifecycle manager and records the
// per-login data: user email and, when ctx carries one, the device
// fingerprint.
func (e *Engine) startSession(ctx context.Context, email, token string, expiresIn time.Duration) (session.Session, error) {
	snap, err := e.lifecycle.HandleLoginSuccess(ctx, token, expiresIn)
	if err != nil {
		return session.Session{}, e.fail(ctx, "session_start", email, err)
	}
	if email != "" {
		if err := e.store.SaveUserEmail(ctx, email); err != nil {
			e.logger.Warn().Err(err).Msg("persist user email")
		}
	}
	if device, ok := deviceFromContext(ctx); ok {
		if err := e.CaptureFingerprint(ctx, device); err != nil {
			e.logger.Warn().Err(err).Msg("capture device fingerprint")
		}
	}
	return snap, nil
}

// HandleLoginSuccess starts a session for a token obtained outside Login,
// for example by a host-driven provider flow. A non-positive expiresIn is
// derived from the token's exp claim, or Session.DefaultTokenTTL.
func (e *Engine) HandleLoginSuccess(ctx context.Context, token string, expiresIn time.Duration) (session.Session, error) {
	snap, err := e.startSession(ctx, "", token, expiresIn)
	if err != nil {
		return session.Session{}, err
	}
	e.metricInc(MetricLoginSuccess)
	return snap, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout cancels every timer, clears the persisted token, fingerprint, user
// email and CSRF token, and emits logout. The session is Inactive afterwards
// even when clearing storage fails.
func (e *Engine) Logout(ctx context.Context) error {
	email, _, _ := e.store.UserEmail(ctx)
	err := e.lifecycle.HandleLogout(ctx)
	e.emitAudit(ctx, auditEventLogout, err == nil, email, err, nil)
	return err
}

// Register describes the register operation and its observable behavior.
//
// Register validates the input, resolves identity linking for the email
// method and creates the identity through the provider. An email that
// already has a password account fails with email_already_registered; one
// held only by another method fails with *LinkRequiredError. When a profile
// store is configured the new account is upserted there; that sync is
// best-effort.
func (e *Engine) Register(ctx context.Context, email, password, username string) (*identity.ProviderUser, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	email = identity.NormalizeEmail(email)

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := e.config.Validation.validatePassword(password); err != nil {
		return nil, err
	}
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	} else if err := e.config.Validation.ValidateUsername(username); err != nil {
		return nil, err
	}

	decision := internalflows.RunResolveLinking(ctx, email, identity.MethodEmail, e.linkingFlowDeps())
	switch decision.Action {
	case identity.ActionLogin:
		ae := autherr.New(autherr.CodeEmailAlreadyRegistered, "This email is already registered. Try logging in instead.", nil)
		e.emitAudit(ctx, auditEventRegisterFailure, false, email, ae, nil)
		return nil, ae
	case identity.ActionLinkRequired:
		return nil, &LinkRequiredError{Decision: decision}
	}

	user, err := e.provider.SignUp(ctx, email, password, map[string]any{
		"username":    username,
		"authMethods": []string{string(identity.MethodEmail)},
	})
	if err == nil && user == nil {
		err = autherr.New(autherr.CodeUnknown, "The identity provider did not return a user.", nil)
	}
	if err != nil {
		ae := e.fail(ctx, "signup", email, err)
		e.emitAudit(ctx, auditEventRegisterFailure, false, email, ae, nil)
		return nil, ae
	}

	if e.profiles != nil {
		account := identity.Account{
			ID:          user.ID,
			Email:       email,
			Username:    username,
			AuthMethods: []identity.AuthMethod{identity.MethodEmail},
			CreatedAt:   e.now().UTC(),
		}
		if err := e.profiles.UpsertAccount(ctx, account); err != nil {
			e.logger.Warn().Err(err).Str("email", email).Msg("profile sync after register failed")
		}
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, email, nil, nil)
	return user, nil
}

// RequestPasswordReset validates email and asks the identity provider to send
// a reset email that redirects to OAuth.ResetRedirectURL.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	email = identity.NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}

	if err := e.provider.ResetPasswordEmail(ctx, email, e.config.OAuth.ResetRedirectURL); err != nil {
		ae := e.fail(ctx, "password_reset", email, err)
		e.emitAudit(ctx, auditEventPasswordResetSent, false, email, ae, nil)
		return ae
	}
	e.emitAudit(ctx, auditEventPasswordResetSent, true, email, nil, nil)
	return nil
}
