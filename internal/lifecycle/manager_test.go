package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal/clock"
	"github.com/MrEthical07/goGuard/session"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) last(t EventType) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == t {
			return l.events[i], true
		}
	}
	return Event{}, false
}

type harness struct {
	clk     *clock.Fake
	storage *session.MemoryStorage
	store   *session.Store
	mgr     *Manager
	events  *eventLog
	cleared int
}

func newHarness(t *testing.T, cfg Config, sources ...ActivitySource) *harness {
	t.Helper()
	h := &harness{
		clk:    clock.NewFake(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)),
		events: &eventLog{},
	}
	h.storage = session.NewMemoryStorage(h.clk.Now)
	h.store = session.NewStore(h.storage)
	h.mgr = NewManager(cfg, Deps{
		Store:   h.store,
		Clock:   h.clk,
		Logger:  zerolog.Nop(),
		Sources: sources,
		OnClear: func(context.Context) { h.cleared++ },
	})
	h.mgr.Subscribe(h.events.listen)
	return h
}

func TestExpiryFollowsLastActivityByInactivityTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	start := h.clk.Now()

	_, err := h.mgr.HandleLoginSuccess(ctx, "tok", 24*time.Hour)
	require.NoError(t, err)

	h.clk.Advance(10 * time.Minute)
	h.mgr.RecordActivity(ActivityPointer)
	lastActivity := h.clk.Now()

	h.clk.Advance(25*time.Minute - time.Second)
	require.NotContains(t, h.events.types(), EventSessionWarning)

	h.clk.Advance(time.Second)
	warn, ok := h.events.last(EventSessionWarning)
	require.True(t, ok)
	require.Equal(t, lastActivity.Add(25*time.Minute), warn.Timestamp)
	require.Equal(t, "Your session will expire in 5 minutes due to inactivity", warn.Message)
	require.Equal(t, session.StatusWarning, h.mgr.Status())

	h.clk.Advance(5*time.Minute - time.Second)
	require.NotContains(t, h.events.types(), EventSessionExpired)

	h.clk.Advance(time.Second)
	expired, ok := h.events.last(EventSessionExpired)
	require.True(t, ok)
	require.Equal(t, lastActivity.Add(30*time.Minute), expired.Timestamp)
	require.Equal(t, start.Add(40*time.Minute), expired.Timestamp)
	require.Equal(t, session.StatusExpired, h.mgr.Status())

	_, _, found, err := h.store.Token(ctx)
	require.NoError(t, err)
	require.False(t, found, "expired session must not keep its token")
	require.Equal(t, 1, h.cleared)
	require.Zero(t, h.clk.Pending())
}

func TestActivityDuringWarningReturnsToActive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	_, err := h.mgr.HandleLoginSuccess(ctx, "tok", time.Hour*24)
	require.NoError(t, err)

	h.clk.Advance(26 * time.Minute)
	require.Equal(t, session.StatusWarning, h.mgr.Status())

	h.mgr.RecordActivity(ActivityKey)
	require.Equal(t, session.StatusActive, h.mgr.Status())

	h.clk.Advance(29 * time.Minute)
	require.NotContains(t, h.events.types(), EventSessionExpired)
	require.True(t, h.mgr.ValidateSession(ctx))
}

func TestActivityIgnoredWithoutSession(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.mgr.RecordActivity(ActivityPointer)
	require.Zero(t, h.clk.Pending())
	require.Equal(t, session.StatusInactive, h.mgr.Status())
}

func TestUntrackedActivityDoesNotReschedule(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TrackedActivity = []ActivityKind{ActivityKey}
	h := newHarness(t, cfg)
	_, err := h.mgr.HandleLoginSuccess(ctx, "tok", 24*time.Hour)
	require.NoError(t, err)

	h.clk.Advance(20 * time.Minute)
	h.mgr.RecordActivity(ActivityScroll)
	h.clk.Advance(10 * time.Minute)
	require.Contains(t, h.events.types(), EventSessionExpired)
}

func TestRefreshTriggerIsIndependentOfActivity(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.InactivityTimeout = 2 * time.Hour
	h := newHarness(t, cfg)

	snap, err := h.mgr.HandleLoginSuccess(ctx, "tok", time.Hour)
	require.NoError(t, err)

	h.clk.Advance(30 * time.Minute)
	h.mgr.RecordActivity(ActivityPointer)

	h.clk.Advance(25*time.Minute - time.Second)
	require.NotContains(t, h.events.types(), EventTokenRefreshNeeded)

	h.clk.Advance(time.Second)
	due, ok := h.events.last(EventTokenRefreshNeeded)
	require.True(t, ok)
	require.Equal(t, snap.ExpiresAt, due.ExpiresAt)
	require.Equal(t, session.StatusActive, h.mgr.Status())
	require.True(t, h.mgr.ValidateSession(ctx))
}

func TestLoginDerivesExpiryFromTokenClaims(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultConfig())

	exp := h.clk.Now().Add(2 * time.Hour)
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(exp),
	}).SignedString([]byte("provider-secret-provider-secret"))
	require.NoError(t, err)

	snap, err := h.mgr.HandleLoginSuccess(ctx, token, 0)
	require.NoError(t, err)
	require.Equal(t, exp, snap.ExpiresAt)

	opaque, err := h.mgr.HandleLoginSuccess(ctx, "opaque-token", 0)
	require.NoError(t, err)
	require.Equal(t, h.clk.Now().Add(24*time.Hour), opaque.ExpiresAt)
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, err := h.mgr.HandleLoginSuccess(context.Background(), "", time.Hour)
	require.ErrorIs(t, err, ErrEmptyToken)
	require.Empty(t, h.events.types())
}

func TestLogoutCancelsTimersAndClearsState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	_, err := h.mgr.HandleLoginSuccess(ctx, "tok", 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.store.SaveFingerprint(ctx, "fp"))
	require.Equal(t, 3, h.clk.Pending())

	require.NoError(t, h.mgr.HandleLogout(ctx))
	require.Zero(t, h.clk.Pending())
	require.Equal(t, session.StatusInactive, h.mgr.Status())
	require.False(t, h.mgr.ValidateSession(ctx))
	require.Zero(t, h.storage.Len())
	require.Equal(t, 1, h.cleared)

	h.clk.Advance(48 * time.Hour)
	require.Equal(t, []EventType{EventLoginSuccess, EventLogout}, h.events.types())
}

func TestDestroyIsIdempotentAndSilencesTimers(t *testing.T) {
	ctx := context.Background()
	src := NewManualSource()
	h := newHarness(t, DefaultConfig(), src)
	_, err := h.mgr.HandleLoginSuccess(ctx, "tok", time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.mgr.Initialize(ctx))
	require.Equal(t, 1, src.Attached())

	h.mgr.Destroy()
	h.mgr.Destroy()
	require.Zero(t, h.clk.Pending())
	require.Zero(t, src.Attached())

	h.clk.Advance(2 * time.Hour)
	require.Equal(t, []EventType{EventLoginSuccess}, h.events.types())

	src.Emit(ActivityPointer)
	h.mgr.RecordActivity(ActivityPointer)
	require.Zero(t, h.clk.Pending())
}

func TestInitializeResumesStoredSession(t *testing.T) {
	ctx := context.Background()
	src := NewManualSource()
	h := newHarness(t, DefaultConfig(), src)
	require.NoError(t, h.store.SaveToken(ctx, "tok", h.clk.Now().Add(time.Hour)))

	require.NoError(t, h.mgr.Initialize(ctx))
	require.NoError(t, h.mgr.Initialize(ctx))
	require.Equal(t, 1, src.Attached())
	require.Equal(t, session.StatusActive, h.mgr.Status())
	require.Equal(t, 3, h.clk.Pending())

	h.clk.Advance(20 * time.Minute)
	src.Emit(ActivityTouch)
	h.clk.Advance(20 * time.Minute)
	require.NotContains(t, h.events.types(), EventSessionExpired)

	h.clk.Advance(10 * time.Minute)
	require.Contains(t, h.events.types(), EventSessionExpired)
}

func TestInitializeWithoutSessionArmsNothing(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	require.NoError(t, h.mgr.Initialize(context.Background()))
	require.Zero(t, h.clk.Pending())
	require.Equal(t, session.StatusInactive, h.mgr.Status())
}

func TestExtendSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultConfig())

	_, ok, err := h.mgr.ExtendSession(ctx, 0)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = h.mgr.HandleLoginSuccess(ctx, "tok", time.Hour)
	require.NoError(t, err)
	h.clk.Advance(10 * time.Minute)

	newExpiresAt, ok, err := h.mgr.ExtendSession(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, h.clk.Now().Add(15*time.Minute), newExpiresAt)

	stored, found, err := h.store.ExpiresAt(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, stored.Equal(newExpiresAt.Truncate(time.Millisecond)))

	ext, found := h.events.last(EventSessionExtended)
	require.True(t, found)
	require.Equal(t, newExpiresAt, ext.NewExpiresAt)

	h.clk.Advance(10 * time.Minute)
	require.Contains(t, h.events.types(), EventTokenRefreshNeeded)
}

func TestMarkRefreshedReplacesToken(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	_, err := h.mgr.HandleLoginSuccess(ctx, "tok-1", time.Hour)
	require.NoError(t, err)

	h.clk.Advance(20 * time.Minute)
	require.NoError(t, h.mgr.MarkRefreshed(ctx, "tok-2", 2*time.Hour))

	snap, err := h.mgr.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, "tok-2", snap.Token)
	require.Equal(t, h.clk.Now(), snap.LastActivityAt)
	require.Contains(t, h.events.types(), EventSessionRefreshed)
}

func TestExpireForcesExpiredState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	_, err := h.mgr.HandleLoginSuccess(ctx, "tok", time.Hour)
	require.NoError(t, err)

	h.mgr.Expire(ctx, "refresh failed")
	require.Equal(t, session.StatusExpired, h.mgr.Status())
	require.Zero(t, h.clk.Pending())
	ev, ok := h.events.last(EventSessionExpired)
	require.True(t, ok)
	require.Equal(t, "refresh failed", ev.Message)
}

func TestListenerPanicDoesNotBreakOthers(t *testing.T) {
	ctx := context.Background()
	var panics []EventType
	reg := NewRegistry(zerolog.Nop(), func(t EventType, _ any) { panics = append(panics, t) })

	clk := clock.NewFake(time.Now())
	store := session.NewStore(session.NewMemoryStorage(clk.Now))
	mgr := NewManager(DefaultConfig(), Deps{Store: store, Clock: clk, Logger: zerolog.Nop(), Registry: reg})

	mgr.Subscribe(func(Event) { panic("listener bug") })
	got := &eventLog{}
	mgr.Subscribe(got.listen)

	_, err := mgr.HandleLoginSuccess(ctx, "tok", time.Hour)
	require.NoError(t, err)
	require.Equal(t, []EventType{EventLoginSuccess}, got.types())
	require.Equal(t, []EventType{EventLoginSuccess}, panics)

	clk.Advance(30 * time.Minute)
	require.Equal(t, []EventType{EventLoginSuccess, EventSessionWarning, EventSessionExpired}, got.types())
	require.Equal(t, session.StatusExpired, mgr.Status())
}

func TestListenerMayLogoutFromExpiredEvent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultConfig())
	h.mgr.Subscribe(func(e Event) {
		if e.Type == EventSessionExpired {
			require.NoError(t, h.mgr.HandleLogout(ctx))
		}
	})
	_, err := h.mgr.HandleLoginSuccess(ctx, "tok", time.Hour)
	require.NoError(t, err)

	h.clk.Advance(30 * time.Minute)
	require.Equal(t, session.StatusInactive, h.mgr.Status())
	require.Contains(t, h.events.types(), EventLogout)
}

func TestUnsubscribe(t *testing.T) {
	reg := NewRegistry(zerolog.Nop(), nil)
	got := &eventLog{}
	unsubscribe := reg.Subscribe(got.listen)
	require.Equal(t, 1, reg.Len())

	unsubscribe()
	unsubscribe()
	require.Zero(t, reg.Len())

	reg.Publish(Event{Type: EventLogout})
	require.Empty(t, got.types())
}
