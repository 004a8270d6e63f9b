package autherr

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/session"
	"github.com/rs/zerolog"
)

// KeyErrorLog is the storage key of the persisted error log.
const KeyErrorLog = "auth_errors"

// DefaultLogSize is the number of entries kept by a Log.
const DefaultLogSize = 10

// LogEntry is one logged failure.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Code      Code              `json:"code"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}

// Reporter forwards logged failures to an external monitoring service.
type Reporter interface {
	Report(ctx context.Context, entry LogEntry)
}

// Log is a rolling, newest-first buffer of recent auth failures persisted in
// a session.Storage. Logging never blocks the caller on a reporter and never
// returns an error.
type Log struct {
	mu        sync.Mutex
	storage   session.Storage
	max       int
	now       func() time.Time
	logger    zerolog.Logger
	reporters []Reporter
}

// NewLog creates a Log keeping at most max entries. A max <= 0 uses
// DefaultLogSize.
func NewLog(storage session.Storage, max int, now func() time.Time, logger zerolog.Logger, reporters ...Reporter) *Log {
	if max <= 0 {
		max = DefaultLogSize
	}
	if now == nil {
		now = time.Now
	}
	return &Log{
		storage:   storage,
		max:       max,
		now:       now,
		logger:    logger,
		reporters: reporters,
	}
}

// Record appends err to the log with the given context. The oldest entry is
// evicted once the log is full.
func (l *Log) Record(ctx context.Context, err *AuthError, fields map[string]string) {
	if l == nil || err == nil {
		return
	}

	entry := LogEntry{
		Timestamp: l.now().UTC(),
		Code:      err.Code,
		Message:   err.Message,
		Context:   copyDetails(fields),
	}

	l.logger.Warn().
		Str("code", string(entry.Code)).
		Str("message", entry.Message).
		Fields(fieldsAsAny(entry.Context)).
		Msg("auth error")

	l.mu.Lock()
	entries := l.loadLocked(ctx)
	entries = append([]LogEntry{entry}, entries...)
	if len(entries) > l.max {
		entries = entries[:l.max]
	}
	l.saveLocked(ctx, entries)
	l.mu.Unlock()

	for _, r := range l.reporters {
		l.report(ctx, r, entry)
	}
}

// Recent returns logged entries, newest first.
func (l *Log) Recent(ctx context.Context) []LogEntry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(ctx)
}

// Clear drops all entries.
func (l *Log) Clear(ctx context.Context) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.storage.Delete(ctx, KeyErrorLog); err != nil {
		l.logger.Error().Err(err).Msg("clear auth error log")
	}
}

func (l *Log) loadLocked(ctx context.Context) []LogEntry {
	raw, ok, err := l.storage.Get(ctx, KeyErrorLog)
	if err != nil {
		l.logger.Error().Err(err).Msg("read auth error log")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var entries []LogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.logger.Error().Err(err).Msg("decode auth error log")
		return nil
	}
	return entries
}

func (l *Log) saveLocked(ctx context.Context, entries []LogEntry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		l.logger.Error().Err(err).Msg("encode auth error log")
		return
	}
	if err := l.storage.Set(ctx, KeyErrorLog, string(raw), 0); err != nil {
		l.logger.Error().Err(err).Msg("write auth error log")
	}
}

func (l *Log) report(ctx context.Context, r Reporter, entry LogEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error().Interface("panic", rec).Msg("auth error reporter panicked")
		}
	}()
	r.Report(ctx, entry)
}

func fieldsAsAny(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
