package goGuard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/internal/csrf"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventLockoutTriggered   = "lockout_triggered"
	auditEventCSRFRejected       = "csrf_rejected"
	auditEventLogout             = "logout"
	auditEventSessionExpired     = "session_expired"
	auditEventSessionRefreshed   = "session_refreshed"
	auditEventDeviceMismatch     = "device_mismatch"
	auditEventRegisterSuccess    = "register_success"
	auditEventRegisterFailure    = "register_failure"
	auditEventPasswordResetSent  = "password_reset_request"
	auditEventOAuthCallback      = "oauth_callback"
	auditEventLinkRequired       = "link_required"
	auditEventLinkSuccess        = "link_success"
	auditEventLinkFailure        = "link_failure"
	auditEventAccountConverted   = "account_converted"
	auditEventMergeSuccess       = "merge_success"
	auditEventMergePartial       = "merge_partial"
	auditEventMergeFailure       = "merge_failure"
	auditErrorCodeInternal       = "internal_error"
	auditErrorCodeMergePartial   = "merge_partial"
	auditErrorCodePasswordNeeded = "password_required"
	auditErrorCodeMergeInFlight  = "merge_in_progress"
	auditErrorCodeDeviceMismatch = "device_mismatch"
	auditErrorCodeLinkRequired   = "link_required"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	event.Error = auditErrorCode(err)

	e.audit.Emit(ctx, event)
}

// auditErrorCode maps err onto the auth error taxonomy, with a few goGuard
// conditions that have no taxonomy code of their own.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var ae *autherr.AuthError
	switch {
	case errors.As(err, &ae):
		return string(ae.Code)
	case errors.Is(err, ErrMergePartial):
		return auditErrorCodeMergePartial
	case errors.Is(err, ErrPasswordRequired):
		return auditErrorCodePasswordNeeded
	case errors.Is(err, ErrMergeInProgress):
		return auditErrorCodeMergeInFlight
	case errors.Is(err, ErrDeviceMismatch):
		return auditErrorCodeDeviceMismatch
	case errors.Is(err, ErrLinkRequired):
		return auditErrorCodeLinkRequired
	case errors.Is(err, csrf.ErrMismatch), errors.Is(err, csrf.ErrMissingToken):
		return string(autherr.CodeCSRFFailed)
	default:
		return auditErrorCodeInternal
	}
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}
