package goGuard

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/session"
)

const sessionExpiredMessage = "Your session has expired. Please login again."

// ExtendSession describes the extendsession operation and its observable behavior.
//
// ExtendSession moves the stored expiry to now+additional (Session.
// DefaultExtension when additional is not positive), restarts the timers and
// emits session_extended. It reports false without error when no session
// is stored.
func (e *Engine) ExtendSession(ctx context.Context, additional time.Duration) (time.Time, bool, error) {
	return e.lifecycle.ExtendSession(ctx, additional)
}

// ValidateSession reports whether a token is stored and its expiry has not
// passed. It has no side effects.
func (e *Engine) ValidateSession(ctx context.Context) bool {
	return e.lifecycle.ValidateSession(ctx)
}

// SessionInfo returns a snapshot of the current session.
func (e *Engine) SessionInfo(ctx context.Context) (SessionInfo, error) {
	snap, err := e.lifecycle.Session(ctx)
	if err != nil {
		return SessionInfo{}, err
	}

	now := e.now()
	info := SessionInfo{
		HasToken:       snap.Token != "",
		TokenPreview:   maskToken(snap.Token),
		Status:         snap.Status,
		ExpiresAt:      snap.ExpiresAt,
		LastActivityAt: snap.LastActivityAt,
	}
	info.Valid = snap.Valid(now)
	if info.HasToken && now.Before(snap.ExpiresAt) {
		info.ExpiresIn = snap.ExpiresAt.Sub(now)
	}
	return info, nil
}

// maskToken keeps the first and last four characters.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// RefreshSession describes the refreshsession operation and its observable behavior.
//
// RefreshSession asks the identity provider for the current session. On
// success the stored token is replaced, the inactivity timers restart and
// session_refreshed is emitted. On failure the session is expired and the
// classified error returned.
func (e *Engine) RefreshSession(ctx context.Context) (bool, error) {
	if e == nil || e.provider == nil {
		return false, ErrEngineNotReady
	}
	email, _, _ := e.store.UserEmail(ctx)

	sess, err := e.provider.GetCurrentSession(ctx)
	if err == nil && (sess == nil || sess.Token == "") {
		err = autherr.New(autherr.CodeSessionExpired, sessionExpiredMessage, nil)
	}
	if err != nil {
		ae := e.fail(ctx, "refresh_session", email, err)
		e.lifecycle.Expire(ctx, sessionExpiredMessage)
		e.emitAudit(ctx, auditEventSessionRefreshed, false, email, ae, nil)
		return false, ae
	}

	if err := e.lifecycle.MarkRefreshed(ctx, sess.Token, sess.ExpiresIn); err != nil {
		return false, err
	}
	e.emitAudit(ctx, auditEventSessionRefreshed, true, email, nil, nil)
	return true, nil
}

// ExpireSession forces the session into Expired, as if the inactivity timer
// had fired.
func (e *Engine) ExpireSession(ctx context.Context) {
	e.lifecycle.Expire(ctx, sessionExpiredMessage)
}

// CaptureFingerprint stores the fingerprint of device. A device without a
// user agent takes the one attached by WithUserAgent.
func (e *Engine) CaptureFingerprint(ctx context.Context, device session.Device) error {
	if device.UserAgent == "" {
		device.UserAgent = userAgentFromContext(ctx)
	}
	return e.store.SaveFingerprint(ctx, session.Fingerprint(device))
}

// VerifyDeviceFingerprint describes the verifydevicefingerprint operation and its observable behavior.
//
// VerifyDeviceFingerprint compares device with the fingerprint captured at
// login on screen, timezone and platform. With no stored fingerprint it
// reports true. A mismatch returns ErrDeviceMismatch and, when
// Session.ExpireOnDeviceMismatch is set, expires the session.
func (e *Engine) VerifyDeviceFingerprint(ctx context.Context, device session.Device) (bool, error) {
	stored, ok, err := e.store.Fingerprint(ctx)
	if err != nil {
		return false, err
	}
	if !ok || stored == "" {
		return true, nil
	}
	if session.VerifyFingerprint(stored, device) {
		return true, nil
	}

	email, _, _ := e.store.UserEmail(ctx)
	e.metricInc(MetricDeviceMismatch)
	e.emitAudit(ctx, auditEventDeviceMismatch, false, email, ErrDeviceMismatch, nil)
	e.logger.Warn().Str("email", email).Msg("device fingerprint mismatch")
	if e.config.Session.ExpireOnDeviceMismatch {
		e.lifecycle.Expire(ctx, sessionExpiredMessage)
	}
	return false, ErrDeviceMismatch
}

