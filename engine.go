package goGuard

import (
	"context"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	"github.com/MrEthical07/goGuard/internal/clock"
	"github.com/MrEthical07/goGuard/internal/csrf"
	internalflows "github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/lifecycle"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/session"
	"github.com/rs/zerolog"
)

// Engine defines a public type used by goGuard APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config  Config
	clock   clock.Clock
	logger  zerolog.Logger
	storage session.Storage
	store   *session.Store

	lifecycle *lifecycle.Manager
	csrf      *csrf.Guard
	lockout   *limiters.LockoutLimiter
	errLog    *autherr.Log
	journal   *internalflows.StorageJournal

	provider identity.IdentityProvider
	profiles identity.ProfileStore
	oauth    identity.OAuthCallback

	audit       *auditDispatcher
	metrics     *Metrics
	unsubscribe func()
}

// Close describes the close operation and its observable behavior.
//
// Close destroys the session lifecycle (timers and activity sources) and
// drains the audit dispatcher. Persisted session state is left intact.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.lifecycle.Destroy()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Subscribe registers l for session lifecycle events and returns a function
// that removes it. A panicking listener is recovered and logged and does not
// stop delivery to other listeners.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	return e.lifecycle.Subscribe(l)
}

// Initialize describes the initialize operation and its observable behavior.
//
// Initialize attaches activity sources and resumes the timers of a stored,
// unexpired session. It is idempotent until Destroy.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.lifecycle.Initialize(ctx)
}

// Destroy detaches activity sources and cancels all pending timers. It is
// safe to call more than once; Initialize may be called again afterwards.
func (e *Engine) Destroy() {
	e.lifecycle.Destroy()
}

// RecordActivity feeds one activity event into the inactivity timer.
func (e *Engine) RecordActivity(kind ActivityKind) {
	e.lifecycle.RecordActivity(kind)
}

// Status returns the current session state.
func (e *Engine) Status() session.Status {
	return e.lifecycle.Status()
}

// observeLifecycle turns lifecycle events into metrics and audit events.
func (e *Engine) observeLifecycle(ev lifecycle.Event) {
	switch ev.Type {
	case lifecycle.EventSessionWarning:
		e.metricInc(MetricSessionWarning)
	case lifecycle.EventSessionExpired:
		e.metricInc(MetricSessionExpired)
		e.emitAudit(context.Background(), auditEventSessionExpired, true, "", nil, nil)
	case lifecycle.EventSessionExtended:
		e.metricInc(MetricSessionExtended)
	case lifecycle.EventSessionRefreshed:
		e.metricInc(MetricSessionRefreshed)
	case lifecycle.EventTokenRefreshNeeded:
		e.metricInc(MetricTokenRefreshDue)
	case lifecycle.EventLogout:
		e.metricInc(MetricLogout)
	}
}
