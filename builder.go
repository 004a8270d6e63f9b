package goGuard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	"github.com/MrEthical07/goGuard/internal/clock"
	"github.com/MrEthical07/goGuard/internal/csrf"
	internalflows "github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/lifecycle"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder defines a public type used by goGuard APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config  Config
	redis   redis.UniversalClient
	storage session.Storage

	provider identity.IdentityProvider
	profiles identity.ProfileStore
	oauth    identity.OAuthCallback

	logger    zerolog.Logger
	clock     clock.Clock
	auditSink AuditSink
	reporters []autherr.Reporter
	sources   []lifecycle.ActivitySource

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with [DefaultConfig], a disabled logger and
// in-memory storage.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// Persisted session state (token, CSRF token, error log, merge journal) is
// kept in Redis under Storage.RedisPrefix unless WithStorage overrides it.
// Lockout records go to Redis only when Lockout.Persist is set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStorage sets the key/value backend for persisted session state.
func (b *Builder) WithStorage(storage session.Storage) *Builder {
	b.storage = storage
	return b
}

// WithIdentityProvider sets the credential-verifying identity provider. It is
// required.
func (b *Builder) WithIdentityProvider(p identity.IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithProfileStore sets the backend profile store used by linking and merge.
func (b *Builder) WithProfileStore(s identity.ProfileStore) *Builder {
	b.profiles = s
	return b
}

// WithOAuthCallback sets the collaborator that completes OAuth redirects.
func (b *Builder) WithOAuthCallback(c identity.OAuthCallback) *Builder {
	b.oauth = c
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// Logging.Level, when set, is applied on top of logger's own level.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink. Audit.Enabled must also be true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithReporter adds an auth error reporter, such as [autherr.SentryReporter].
func (b *Builder) WithReporter(r autherr.Reporter) *Builder {
	if r != nil {
		b.reporters = append(b.reporters, r)
	}
	return b
}

// WithActivitySource adds a source of user activity. Sources are attached by
// Engine.Initialize and detached by Engine.Destroy.
func (b *Builder) WithActivitySource(src ActivitySource) *Builder {
	if src != nil {
		b.sources = append(b.sources, src)
	}
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms enables the merge latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) withClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when the configuration is invalid or a required
// collaborator is missing. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}

	logger := b.logger
	if cfg.Logging.Level != "" {
		level, _ := zerolog.ParseLevel(cfg.Logging.Level)
		logger = logger.Level(level)
	}
	logger = logger.With().Str("component", "goguard").Logger()

	clk := b.clock
	if clk == nil {
		clk = clock.Real()
	}

	// -------- STORAGE --------
	storage := b.storage
	switch {
	case storage != nil:
	case b.redis != nil:
		storage = session.NewRedisStorage(b.redis, cfg.Storage.RedisPrefix)
	default:
		storage = session.NewMemoryStorage(clk.Now)
	}

	var lockoutStore limiters.LockoutStore = limiters.NewMemoryLockoutStore(clk.Now)
	if cfg.Lockout.Persist && b.redis != nil {
		lockoutStore = limiters.NewRedisLockoutStore(b.redis)
	}

	engine := &Engine{
		config:   cfg,
		clock:    clk,
		logger:   logger,
		storage:  storage,
		store:    session.NewStore(storage),
		provider: b.provider,
		profiles: b.profiles,
		oauth:    b.oauth,
		metrics:  NewMetrics(cfg.Metrics),
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.csrf = csrf.NewGuard(storage, cfg.CSRF.TokenTTL)
	engine.journal = internalflows.NewStorageJournal(storage)
	engine.errLog = autherr.NewLog(storage, cfg.ErrorLog.MaxEntries, clk.Now, logger, b.reporters...)

	if cfg.Lockout.Enabled {
		engine.lockout = limiters.NewLockoutLimiter(lockoutStore, limiters.LockoutConfig{
			MaxAttempts:  cfg.Lockout.MaxAttempts,
			BaseDuration: cfg.Lockout.BaseDuration,
			MaxDuration:  cfg.Lockout.MaxDuration,
			Retention:    cfg.Lockout.Retention,
		}, clk.Now, logger)
	}

	// -------- LIFECYCLE --------
	registry := lifecycle.NewRegistry(logger, func(lifecycle.EventType, any) {
		engine.metricInc(MetricListenerPanic)
	})
	engine.lifecycle = lifecycle.NewManager(cfg.lifecycleConfig(), lifecycle.Deps{
		Store:    engine.store,
		Clock:    clk,
		Logger:   logger,
		Registry: registry,
		Sources:  append([]lifecycle.ActivitySource(nil), b.sources...),
		OnClear:  engine.onSessionCleared,
	})
	engine.unsubscribe = registry.Subscribe(engine.observeLifecycle)

	b.built = true

	return engine, nil
}

// onSessionCleared rotates the CSRF token whenever token state is cleared.
func (e *Engine) onSessionCleared(ctx context.Context) {
	if err := e.csrf.Clear(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("clear csrf token")
	}
}
