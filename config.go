package goGuard

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/lifecycle"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config defines a public type used by goGuard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session    SessionConfig    `yaml:"session"`
	Lockout    LockoutConfig    `yaml:"lockout"`
	CSRF       CSRFConfig       `yaml:"csrf"`
	ErrorLog   ErrorLogConfig   `yaml:"error_log"`
	Merge      MergeConfig      `yaml:"merge"`
	Validation ValidationConfig `yaml:"validation"`
	OAuth      OAuthConfig      `yaml:"oauth"`
	Storage    StorageConfig    `yaml:"storage"`
	Audit      AuditConfig      `yaml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goGuard APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	WarningLead       time.Duration `yaml:"warning_lead"`
	RefreshLead       time.Duration `yaml:"refresh_lead"`
	DefaultTokenTTL   time.Duration `yaml:"default_token_ttl"`
	DefaultExtension  time.Duration `yaml:"default_extension"`
	// TrackedActivity lists activity kinds that reset the inactivity timer:
	// pointer, key, scroll, touch.
	TrackedActivity []string `yaml:"tracked_activity"`
	// ExpireOnDeviceMismatch expires the session when VerifyDeviceFingerprint
	// reports a mismatch.
	ExpireOnDeviceMismatch bool `yaml:"expire_on_device_mismatch"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by goGuard APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDuration time.Duration `yaml:"base_duration"`
	MaxDuration  time.Duration `yaml:"max_duration"`
	// Retention bounds how long Redis keeps a failure history without an
	// active block.
	Retention time.Duration `yaml:"retention"`
	// Persist stores lockout records in Redis when a client is configured.
	// Otherwise records live in process memory.
	Persist bool `yaml:"persist"`
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig defines a public type used by goGuard APIs.
//
// CSRFConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CSRFConfig struct {
	// Enforce makes Login reject attempts without a valid token.
	Enforce  bool          `yaml:"enforce"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

/*
====================================
ERROR LOG CONFIG
====================================
*/

// ErrorLogConfig defines a public type used by goGuard APIs.
//
// ErrorLogConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ErrorLogConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

/*
====================================
MERGE CONFIG
====================================
*/

// MergeConfig defines a public type used by goGuard APIs.
//
// MergeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MergeConfig struct {
	RequirePasswordForAutoMerge bool `yaml:"require_password_for_auto_merge"`
	// AutoMergeOnLogin runs AutoMergeOnLogin after every successful password
	// login. Merge failures are logged and never fail the login.
	AutoMergeOnLogin bool `yaml:"auto_merge_on_login"`
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig defines a public type used by goGuard APIs.
//
// ValidationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ValidationConfig struct {
	MinPasswordLength int `yaml:"min_password_length"`
	// MinPasswordScore is the minimum strength score out of 5.
	MinPasswordScore  int `yaml:"min_password_score"`
	MinUsernameLength int `yaml:"min_username_length"`
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig defines a public type used by goGuard APIs.
//
// OAuthConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OAuthConfig struct {
	RedirectURL      string `yaml:"redirect_url"`
	ResetRedirectURL string `yaml:"reset_redirect_url"`
	// SyncProfileOnCallback upserts the backend account after a successful
	// OAuth callback that resolves to register.
	SyncProfileOnCallback bool `yaml:"sync_profile_on_callback"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig defines a public type used by goGuard APIs.
//
// StorageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StorageConfig struct {
	RedisPrefix string `yaml:"redis_prefix"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by goGuard APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goGuard APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig defines a public type used by goGuard APIs.
//
// LoggingConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoggingConfig struct {
	// Level is a zerolog level name. Empty keeps the logger's own level.
	Level string `yaml:"level"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			InactivityTimeout: 30 * time.Minute,
			WarningLead:       5 * time.Minute,
			RefreshLead:       5 * time.Minute,
			DefaultTokenTTL:   24 * time.Hour,
			DefaultExtension:  15 * time.Minute,
			TrackedActivity:   []string{"pointer", "key", "scroll", "touch"},
		},
		Lockout: LockoutConfig{
			Enabled:      true,
			MaxAttempts:  5,
			BaseDuration: 15 * time.Minute,
			MaxDuration:  24 * time.Hour,
			Retention:    24 * time.Hour,
		},
		CSRF: CSRFConfig{
			Enforce:  false,
			TokenTTL: time.Hour,
		},
		ErrorLog: ErrorLogConfig{
			MaxEntries: 10,
		},
		Merge: MergeConfig{
			RequirePasswordForAutoMerge: true,
		},
		Validation: ValidationConfig{
			MinPasswordLength: 6,
			MinPasswordScore:  3,
			MinUsernameLength: 3,
		},
		OAuth: OAuthConfig{
			SyncProfileOnCallback: true,
		},
		Storage: StorageConfig{
			RedisPrefix: "gg",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Session.TrackedActivity != nil {
		out.Session.TrackedActivity = append([]string(nil), cfg.Session.TrackedActivity...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Session
	if c.Session.InactivityTimeout <= 0 {
		return errors.New("Session InactivityTimeout must be > 0")
	}
	if c.Session.WarningLead < 0 || c.Session.WarningLead >= c.Session.InactivityTimeout {
		return errors.New("Session WarningLead must be >= 0 and < InactivityTimeout")
	}
	if c.Session.RefreshLead < 0 {
		return errors.New("Session RefreshLead must be >= 0")
	}
	if c.Session.DefaultTokenTTL <= 0 {
		return errors.New("Session DefaultTokenTTL must be > 0")
	}
	if c.Session.DefaultExtension <= 0 {
		return errors.New("Session DefaultExtension must be > 0")
	}
	for _, kind := range c.Session.TrackedActivity {
		if !knownActivity(kind) {
			return fmt.Errorf("Session TrackedActivity contains unknown kind %q", kind)
		}
	}

	// Lockout
	if c.Lockout.Enabled {
		if c.Lockout.MaxAttempts <= 0 {
			return errors.New("Lockout MaxAttempts must be > 0")
		}
		if c.Lockout.BaseDuration <= 0 {
			return errors.New("Lockout BaseDuration must be > 0")
		}
		if c.Lockout.MaxDuration < c.Lockout.BaseDuration {
			return errors.New("Lockout MaxDuration must be >= BaseDuration")
		}
		if c.Lockout.Retention < 0 {
			return errors.New("Lockout Retention must be >= 0")
		}
	}

	// CSRF
	if c.CSRF.TokenTTL <= 0 {
		return errors.New("CSRF TokenTTL must be > 0")
	}

	// Error log
	if c.ErrorLog.MaxEntries <= 0 {
		return errors.New("ErrorLog MaxEntries must be > 0")
	}

	// Validation
	if c.Validation.MinPasswordLength <= 0 {
		return errors.New("Validation MinPasswordLength must be > 0")
	}
	if c.Validation.MinPasswordScore < 0 || c.Validation.MinPasswordScore > maxPasswordScore {
		return errors.New("Validation MinPasswordScore must be between 0 and 5")
	}
	if c.Validation.MinUsernameLength <= 0 {
		return errors.New("Validation MinUsernameLength must be > 0")
	}

	// Storage
	if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
		return errors.New("Storage RedisPrefix must not be empty")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Logging
	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("Logging Level is invalid: %w", err)
		}
	}

	return nil
}

func knownActivity(kind string) bool {
	for _, k := range lifecycle.DefaultTrackedActivity {
		if string(k) == kind {
			return true
		}
	}
	return false
}

func (c Config) lifecycleConfig() lifecycle.Config {
	tracked := make([]lifecycle.ActivityKind, 0, len(c.Session.TrackedActivity))
	for _, k := range c.Session.TrackedActivity {
		tracked = append(tracked, lifecycle.ActivityKind(k))
	}
	return lifecycle.Config{
		InactivityTimeout: c.Session.InactivityTimeout,
		WarningLead:       c.Session.WarningLead,
		RefreshLead:       c.Session.RefreshLead,
		DefaultTokenTTL:   c.Session.DefaultTokenTTL,
		DefaultExtension:  c.Session.DefaultExtension,
		TrackedActivity:   tracked,
	}
}

/*
====================================
FILE LOADING
====================================
*/

// LoadConfigFile reads a YAML configuration from path. Keys absent from the
// file keep their default values. Durations use Go syntax ("30m", "24h").
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(raw)
}

// ParseConfig decodes YAML bytes over the default configuration and
// validates the result.
func ParseConfig(raw []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}
