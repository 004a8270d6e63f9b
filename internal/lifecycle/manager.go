// Package lifecycle owns the client session state machine: inactivity warning
// and expiry timers, the token refresh trigger, activity tracking and the
// event registry consumed by the UI layer.
//
// At most one timer of each kind (warning, expiry, refresh) is pending at a
// time. Rescheduling stops the previous timer and bumps a generation counter
// under the manager lock, so a callback that raced with the reschedule sees a
// stale generation and does nothing.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/internal/clock"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/session"
	"github.com/rs/zerolog"
)

// ErrEmptyToken is returned when a login is reported without a token.
var ErrEmptyToken = errors.New("empty session token")

// Config holds the timing policy.
type Config struct {
	InactivityTimeout time.Duration
	WarningLead       time.Duration
	RefreshLead       time.Duration
	DefaultTokenTTL   time.Duration
	DefaultExtension  time.Duration
	TrackedActivity   []ActivityKind
}

// DefaultConfig returns the stock timing policy.
func DefaultConfig() Config {
	return Config{
		InactivityTimeout: 30 * time.Minute,
		WarningLead:       5 * time.Minute,
		RefreshLead:       5 * time.Minute,
		DefaultTokenTTL:   24 * time.Hour,
		DefaultExtension:  15 * time.Minute,
		TrackedActivity:   DefaultTrackedActivity,
	}
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Store    *session.Store
	Clock    clock.Clock
	Logger   zerolog.Logger
	Registry *Registry
	Sources  []ActivitySource
	// OnClear runs after token state is cleared by logout or expiry.
	OnClear func(ctx context.Context)
}

// Manager is the Session Lifecycle Manager.
type Manager struct {
	mu sync.Mutex

	cfg      Config
	tracked  map[ActivityKind]struct{}
	store    *session.Store
	clock    clock.Clock
	logger   zerolog.Logger
	registry *Registry
	sources  []ActivitySource
	onClear  func(ctx context.Context)

	initialized bool
	closed      bool
	detachers   []func()

	status       session.Status
	issuedAt     time.Time
	lastActivity time.Time
	expiresAt    time.Time

	warnTimer     clock.Timer
	expireTimer   clock.Timer
	refreshTimer  clock.Timer
	inactivityGen uint64
	refreshGen    uint64
}

// NewManager builds a Manager. Zero durations in cfg fall back to
// DefaultConfig values.
func NewManager(cfg Config, deps Deps) *Manager {
	def := DefaultConfig()
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = def.InactivityTimeout
	}
	if cfg.WarningLead < 0 {
		cfg.WarningLead = 0
	}
	if cfg.RefreshLead < 0 {
		cfg.RefreshLead = 0
	}
	if cfg.DefaultTokenTTL <= 0 {
		cfg.DefaultTokenTTL = def.DefaultTokenTTL
	}
	if cfg.DefaultExtension <= 0 {
		cfg.DefaultExtension = def.DefaultExtension
	}
	if len(cfg.TrackedActivity) == 0 {
		cfg.TrackedActivity = def.TrackedActivity
	}

	tracked := make(map[ActivityKind]struct{}, len(cfg.TrackedActivity))
	for _, k := range cfg.TrackedActivity {
		tracked[k] = struct{}{}
	}

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	reg := deps.Registry
	if reg == nil {
		reg = NewRegistry(deps.Logger, nil)
	}

	return &Manager{
		cfg:      cfg,
		tracked:  tracked,
		store:    deps.Store,
		clock:    clk,
		logger:   deps.Logger,
		registry: reg,
		sources:  deps.Sources,
		onClear:  deps.OnClear,
	}
}

// Subscribe registers l for lifecycle events.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	return m.registry.Subscribe(l)
}

// Initialize attaches activity sources and, if a valid session is stored,
// starts the inactivity and refresh timers. Repeated calls are no-ops until
// Destroy.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	m.closed = false
	sources := m.sources
	m.mu.Unlock()

	detachers := make([]func(), 0, len(sources))
	for _, src := range sources {
		detachers = append(detachers, src.Attach(m.RecordActivity))
	}

	token, expiresAt, ok, err := m.store.Token(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachers = append(m.detachers, detachers...)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	now := m.clock.Now()
	if !ok || token == "" || !now.Before(expiresAt) {
		return nil
	}
	if m.status == session.StatusInactive || m.status == session.StatusExpired {
		m.status = session.StatusActive
	}
	m.lastActivity = now
	m.expiresAt = expiresAt
	m.armInactivityLocked()
	m.armRefreshLocked(now)

	m.logger.Debug().Time("expires_at", expiresAt).Msg("session manager initialized")
	return nil
}

// Destroy detaches activity sources and cancels every timer. Safe to call
// more than once.
func (m *Manager) Destroy() {
	m.mu.Lock()
	m.cancelAllLocked()
	m.closed = true
	m.initialized = false
	detachers := m.detachers
	m.detachers = nil
	m.mu.Unlock()

	for _, d := range detachers {
		d()
	}
}

// HandleLoginSuccess persists token with an absolute expiry and starts the
// timers. A non-positive expiresIn is derived from the token's exp claim,
// falling back to the configured default TTL.
func (m *Manager) HandleLoginSuccess(ctx context.Context, token string, expiresIn time.Duration) (session.Session, error) {
	if token == "" {
		return session.Session{}, ErrEmptyToken
	}

	now := m.clock.Now()
	if expiresIn <= 0 {
		if d, ok := jwt.ExpiresIn(token, now); ok {
			expiresIn = d
		} else {
			expiresIn = m.cfg.DefaultTokenTTL
		}
	}
	expiresAt := now.Add(expiresIn)

	m.mu.Lock()
	if err := m.store.SaveToken(ctx, token, expiresAt); err != nil {
		m.mu.Unlock()
		return session.Session{}, fmt.Errorf("persist session token: %w", err)
	}
	m.issuedAt = now
	m.lastActivity = now
	m.expiresAt = expiresAt
	m.status = session.StatusActive
	if !m.closed {
		m.armInactivityLocked()
		m.armRefreshLocked(now)
	}
	snap := m.snapshotLocked(token)
	m.mu.Unlock()

	m.registry.Publish(Event{Type: EventLoginSuccess, Timestamp: now, ExpiresAt: expiresAt})
	return snap, nil
}

// HandleLogout cancels all timers, clears persisted token state and emits
// logout. The state becomes Inactive even when clearing storage fails.
func (m *Manager) HandleLogout(ctx context.Context) error {
	m.mu.Lock()
	m.cancelAllLocked()
	m.status = session.StatusInactive
	m.expiresAt = time.Time{}
	err := m.store.Clear(ctx)
	m.mu.Unlock()

	if m.onClear != nil {
		m.onClear(ctx)
	}
	m.registry.Publish(Event{Type: EventLogout, Timestamp: m.clock.Now()})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ExtendSession sets the stored expiry to now+additional and restarts the
// timers. A non-positive additional uses the configured default extension.
// It reports false when no session is stored.
func (m *Manager) ExtendSession(ctx context.Context, additional time.Duration) (time.Time, bool, error) {
	if additional <= 0 {
		additional = m.cfg.DefaultExtension
	}

	m.mu.Lock()
	_, ok, err := m.store.ExpiresAt(ctx)
	if err != nil || !ok {
		m.mu.Unlock()
		return time.Time{}, false, err
	}

	now := m.clock.Now()
	newExpiresAt := now.Add(additional)
	if err := m.store.SetExpiresAt(ctx, newExpiresAt); err != nil {
		m.mu.Unlock()
		return time.Time{}, false, fmt.Errorf("extend session: %w", err)
	}
	m.expiresAt = newExpiresAt
	m.lastActivity = now
	m.status = session.StatusActive
	if !m.closed {
		m.armInactivityLocked()
		m.armRefreshLocked(now)
	}
	m.mu.Unlock()

	m.registry.Publish(Event{Type: EventSessionExtended, Timestamp: now, NewExpiresAt: newExpiresAt})
	return newExpiresAt, true, nil
}

// MarkRefreshed records a successful session refresh. When token is
// non-empty it replaces the stored token with a new expiry.
func (m *Manager) MarkRefreshed(ctx context.Context, token string, expiresIn time.Duration) error {
	now := m.clock.Now()

	m.mu.Lock()
	if token != "" {
		if expiresIn <= 0 {
			if d, ok := jwt.ExpiresIn(token, now); ok {
				expiresIn = d
			} else {
				expiresIn = m.cfg.DefaultTokenTTL
			}
		}
		expiresAt := now.Add(expiresIn)
		if err := m.store.SaveToken(ctx, token, expiresAt); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("persist refreshed token: %w", err)
		}
		m.expiresAt = expiresAt
	}
	m.lastActivity = now
	m.status = session.StatusActive
	if !m.closed {
		m.armInactivityLocked()
		m.armRefreshLocked(now)
	}
	m.mu.Unlock()

	m.registry.Publish(Event{Type: EventSessionRefreshed, Timestamp: now})
	return nil
}

// Expire forces the session into Expired, clearing token state and emitting
// session_expired with message.
func (m *Manager) Expire(ctx context.Context, message string) {
	m.mu.Lock()
	m.cancelAllLocked()
	m.expireLocked(ctx)
	m.mu.Unlock()
	m.afterExpire(ctx, message)
}

// ValidateSession reports whether a token is stored and its expiry has not
// passed.
func (m *Manager) ValidateSession(ctx context.Context) bool {
	token, expiresAt, ok, err := m.store.Token(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("validate session")
		return false
	}
	return ok && token != "" && m.clock.Now().Before(expiresAt)
}

// RecordActivity restarts the inactivity timers when kind is tracked and the
// session is Active or Warning.
func (m *Manager) RecordActivity(kind ActivityKind) {
	if _, ok := m.tracked[kind]; !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.status != session.StatusActive && m.status != session.StatusWarning {
		return
	}
	m.lastActivity = m.clock.Now()
	m.status = session.StatusActive
	m.armInactivityLocked()
}

// Status returns the current state.
func (m *Manager) Status() session.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Session returns a snapshot of the current session.
func (m *Manager) Session(ctx context.Context) (session.Session, error) {
	token, expiresAt, ok, err := m.store.Token(ctx)
	if err != nil {
		return session.Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshotLocked("")
	if ok {
		snap.Token = token
		snap.ExpiresAt = expiresAt
	}
	return snap, nil
}

// Config returns the effective timing policy.
func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) snapshotLocked(token string) session.Session {
	return session.Session{
		Token:          token,
		IssuedAt:       m.issuedAt,
		ExpiresAt:      m.expiresAt,
		LastActivityAt: m.lastActivity,
		Status:         m.status,
	}
}

func (m *Manager) armInactivityLocked() {
	m.stopInactivityLocked()
	gen := m.inactivityGen

	if lead := m.cfg.WarningLead; lead > 0 && lead < m.cfg.InactivityTimeout {
		m.warnTimer = m.clock.AfterFunc(m.cfg.InactivityTimeout-lead, func() { m.onWarning(gen) })
	}
	m.expireTimer = m.clock.AfterFunc(m.cfg.InactivityTimeout, func() { m.onExpire(gen) })
}

func (m *Manager) armRefreshLocked(now time.Time) {
	m.stopRefreshLocked()
	if m.expiresAt.IsZero() || !now.Before(m.expiresAt) {
		return
	}
	gen := m.refreshGen
	d := m.expiresAt.Sub(now) - m.cfg.RefreshLead
	if d < 0 {
		d = 0
	}
	m.refreshTimer = m.clock.AfterFunc(d, func() { m.onRefreshDue(gen) })
}

func (m *Manager) stopInactivityLocked() {
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.expireTimer != nil {
		m.expireTimer.Stop()
		m.expireTimer = nil
	}
	m.inactivityGen++
}

func (m *Manager) stopRefreshLocked() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	m.refreshGen++
}

func (m *Manager) cancelAllLocked() {
	m.stopInactivityLocked()
	m.stopRefreshLocked()
}

func (m *Manager) onWarning(gen uint64) {
	m.mu.Lock()
	if gen != m.inactivityGen || m.closed || m.status != session.StatusActive {
		m.mu.Unlock()
		return
	}
	m.warnTimer = nil
	m.status = session.StatusWarning
	now := m.clock.Now()
	m.mu.Unlock()

	m.registry.Publish(Event{
		Type:      EventSessionWarning,
		Timestamp: now,
		Message:   warningMessage(m.cfg.WarningLead),
	})
}

func (m *Manager) onExpire(gen uint64) {
	ctx := context.Background()

	m.mu.Lock()
	if gen != m.inactivityGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.expireTimer = nil
	m.cancelAllLocked()
	m.expireLocked(ctx)
	m.mu.Unlock()

	m.logger.Warn().Msg("session expired due to inactivity")
	m.afterExpire(ctx, "Your session has expired. Please login again.")
}

func (m *Manager) expireLocked(ctx context.Context) {
	m.status = session.StatusExpired
	m.expiresAt = time.Time{}
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error().Err(err).Msg("clear expired session")
	}
}

func (m *Manager) afterExpire(ctx context.Context, message string) {
	if m.onClear != nil {
		m.onClear(ctx)
	}
	m.registry.Publish(Event{
		Type:      EventSessionExpired,
		Timestamp: m.clock.Now(),
		Message:   message,
	})
}

func (m *Manager) onRefreshDue(gen uint64) {
	m.mu.Lock()
	if gen != m.refreshGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.refreshTimer = nil
	expiresAt := m.expiresAt
	now := m.clock.Now()
	m.mu.Unlock()

	m.registry.Publish(Event{
		Type:      EventTokenRefreshNeeded,
		Timestamp: now,
		ExpiresAt: expiresAt,
	})
}

func warningMessage(lead time.Duration) string {
	minutes := int(math.Round(lead.Minutes()))
	if minutes == 1 {
		return "Your session will expire in 1 minute due to inactivity"
	}
	return fmt.Sprintf("Your session will expire in %d minutes due to inactivity", minutes)
}
