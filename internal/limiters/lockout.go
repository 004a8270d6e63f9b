package limiters

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LockoutConfig holds the progressive lockout policy.
type LockoutConfig struct {
	MaxAttempts  int
	BaseDuration time.Duration
	MaxDuration  time.Duration
	// Retention bounds how long a record without an active block is kept by
	// stores that support expiry.
	Retention time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LockoutRecord is the failure history of one identifier.
type LockoutRecord struct {
	Identifier    string    `json:"identifier"`
	FailureCount  int       `json:"failure_count"`
	LastFailureAt time.Time `json:"last_failure_at"`
	BlockedUntil  time.Time `json:"blocked_until,omitempty"`
}

// Blocked reports whether the record rejects attempts at now.
func (r LockoutRecord) Blocked(now time.Time) bool {
	return !r.BlockedUntil.IsZero() && now.Before(r.BlockedUntil)
}

// LockoutDecision is the outcome of a rate-limit check.
type LockoutDecision struct {
	Allowed          bool
	RemainingSeconds int
	RemainingMinutes int
	BlockedUntil     time.Time
}

// LockoutStore persists lockout records keyed by normalized identifier.
type LockoutStore interface {
	Load(ctx context.Context, identifier string) (LockoutRecord, bool, error)
	Save(ctx context.Context, record LockoutRecord, ttl time.Duration) error
	Delete(ctx context.Context, identifier string) error
}

// LockoutLimiter tracks failed credential attempts per identifier and
// computes progressive lockout windows. Lapsed blocks are cleared lazily by
// the next Check.
type LockoutLimiter struct {
	mu     sync.Mutex
	store  LockoutStore
	config LockoutConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewLockoutLimiter creates a limiter over store. A nil now uses time.Now.
func NewLockoutLimiter(store LockoutStore, cfg LockoutConfig, now func() time.Time, logger zerolog.Logger) *LockoutLimiter {
	if now == nil {
		now = time.Now
	}
	return &LockoutLimiter{store: store, config: cfg, now: now, logger: logger}
}

// NormalizeIdentifier lowercases and trims an identifier.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Backoff returns the block duration for a failure count:
// zero below MaxAttempts, then BaseDuration doubling per extra failure,
// capped at MaxDuration.
func (c LockoutConfig) Backoff(failureCount int) time.Duration {
	if c.MaxAttempts <= 0 || failureCount < c.MaxAttempts {
		return 0
	}
	d := c.BaseDuration
	for i := c.MaxAttempts; i < failureCount; i++ {
		if c.MaxDuration > 0 && d >= c.MaxDuration {
			break
		}
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}
	if c.MaxDuration > 0 && d > c.MaxDuration {
		d = c.MaxDuration
	}
	return d
}

// Check reports whether identifier may attempt authentication. A record whose
// block has lapsed is deleted and the attempt allowed.
func (l *LockoutLimiter) Check(ctx context.Context, identifier string) (LockoutDecision, error) {
	if l == nil {
		return LockoutDecision{Allowed: true}, nil
	}
	id := NormalizeIdentifier(identifier)
	if id == "" {
		return LockoutDecision{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok, err := l.store.Load(ctx, id)
	if err != nil {
		return LockoutDecision{}, err
	}
	if !ok || rec.BlockedUntil.IsZero() {
		return LockoutDecision{Allowed: true}, nil
	}

	now := l.now()
	if !rec.Blocked(now) {
		if err := l.store.Delete(ctx, id); err != nil {
			return LockoutDecision{}, err
		}
		return LockoutDecision{Allowed: true}, nil
	}

	remaining := rec.BlockedUntil.Sub(now)
	return LockoutDecision{
		Allowed:          false,
		RemainingSeconds: ceilUnits(remaining, time.Second),
		RemainingMinutes: ceilUnits(remaining, time.Minute),
		BlockedUntil:     rec.BlockedUntil,
	}, nil
}

// RecordFailure increments the failure count for identifier and, from
// MaxAttempts on, sets a new block window. It returns the updated record.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, identifier string) (LockoutRecord, error) {
	if l == nil {
		return LockoutRecord{}, nil
	}
	id := NormalizeIdentifier(identifier)
	if id == "" {
		return LockoutRecord{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok, err := l.store.Load(ctx, id)
	if err != nil {
		return LockoutRecord{}, err
	}
	if !ok {
		rec = LockoutRecord{Identifier: id}
	}

	now := l.now()
	rec.FailureCount++
	rec.LastFailureAt = now
	if backoff := l.config.Backoff(rec.FailureCount); backoff > 0 {
		rec.BlockedUntil = now.Add(backoff)
	}

	ttl := l.config.Retention
	if rec.Blocked(now) {
		if until := rec.BlockedUntil.Sub(now); until > ttl {
			ttl = until
		}
	}
	if err := l.store.Save(ctx, rec, ttl); err != nil {
		return LockoutRecord{}, err
	}

	l.logger.Warn().
		Str("identifier", id).
		Int("failure_count", rec.FailureCount).
		Time("blocked_until", rec.BlockedUntil).
		Msg("failed authentication attempt")
	return rec, nil
}

// Clear removes the record for identifier.
func (l *LockoutLimiter) Clear(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	id := NormalizeIdentifier(identifier)
	if id == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Delete(ctx, id)
}

// Status returns the stored record for identifier without mutating it.
func (l *LockoutLimiter) Status(ctx context.Context, identifier string) (LockoutRecord, bool, error) {
	if l == nil {
		return LockoutRecord{}, false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Load(ctx, NormalizeIdentifier(identifier))
}

func ceilUnits(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + unit - 1) / unit)
}

// MemoryLockoutStore keeps records in process memory. A record saved with a
// positive ttl is dropped once it lapses: on read, and by a sweep run from
// Save at most once per sweepInterval.
type MemoryLockoutStore struct {
	mu        sync.Mutex
	records   map[string]memoryLockoutEntry
	now       func() time.Time
	lastSweep time.Time
}

type memoryLockoutEntry struct {
	record    LockoutRecord
	expiresAt time.Time
}

const sweepInterval = time.Minute

// NewMemoryLockoutStore creates an empty store. A nil now uses time.Now.
func NewMemoryLockoutStore(now func() time.Time) *MemoryLockoutStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryLockoutStore{records: make(map[string]memoryLockoutEntry), now: now}
}

func (e memoryLockoutEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (s *MemoryLockoutStore) Load(_ context.Context, identifier string) (LockoutRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[identifier]
	if !ok {
		return LockoutRecord{}, false, nil
	}
	if entry.expired(s.now()) {
		delete(s.records, identifier)
		return LockoutRecord{}, false, nil
	}
	return entry.record, true, nil
}

func (s *MemoryLockoutStore) Save(_ context.Context, record LockoutRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	entry := memoryLockoutEntry{record: record}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.records[record.Identifier] = entry
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweepLocked(now)
	}
	return nil
}

func (s *MemoryLockoutStore) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}

// Len returns the number of stored records, lapsed ones included.
func (s *MemoryLockoutStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryLockoutStore) sweepLocked(now time.Time) {
	for id, entry := range s.records {
		if entry.expired(now) {
			delete(s.records, id)
		}
	}
	s.lastSweep = now
}
