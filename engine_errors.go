package goGuard

import (
	"context"

	"github.com/MrEthical07/goGuard/autherr"
)

// ParseAuthError classifies err into the closed auth error taxonomy. An
// error that is already classified is returned unchanged.
func (e *Engine) ParseAuthError(err error) *autherr.AuthError {
	return autherr.Parse(err)
}

// RecoverySuggestion returns the recovery action and message for code.
func (e *Engine) RecoverySuggestion(code autherr.Code) autherr.Suggestion {
	return autherr.RecoverySuggestion(code)
}

// LogAuthError describes the logautherror operation and its observable behavior.
//
// LogAuthError classifies err, appends it to the rolling error log with
// fields as context, and returns the classified error. It never fails; log
// storage problems are written to the logger.
func (e *Engine) LogAuthError(ctx context.Context, err error, fields map[string]string) *autherr.AuthError {
	ae := autherr.Parse(err)
	e.recordAuthError(ctx, ae, fields)
	return ae
}

// RecentAuthErrors returns the logged errors, newest first.
func (e *Engine) RecentAuthErrors(ctx context.Context) []autherr.LogEntry {
	return e.errLog.Recent(ctx)
}

// ClearAuthErrors empties the rolling error log.
func (e *Engine) ClearAuthErrors(ctx context.Context) {
	e.errLog.Clear(ctx)
}

func (e *Engine) recordAuthError(ctx context.Context, ae *autherr.AuthError, fields map[string]string) {
	if ae == nil {
		return
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		merged := make(map[string]string, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["ip"] = ip
		fields = merged
	}
	e.errLog.Record(ctx, ae, fields)
	e.metricInc(MetricAuthErrorLogged)
}

// fail classifies err, logs it under action and returns it.
func (e *Engine) fail(ctx context.Context, action, email string, err error) *autherr.AuthError {
	fields := map[string]string{"action": action}
	if email != "" {
		fields["email"] = email
	}
	return e.LogAuthError(ctx, err, fields)
}
