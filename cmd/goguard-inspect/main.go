// Command goguard-inspect reads and repairs goGuard state persisted in Redis.
//
//	goguard-inspect [flags] session
//	goguard-inspect [flags] errors
//	goguard-inspect [flags] lockout <identifier>
//	goguard-inspect [flags] unlock <identifier>
//	goguard-inspect [flags] merge <email>
//	goguard-inspect [flags] ping
//
// REDIS_ADDR, GOGUARD_CONFIG and GOGUARD_LOG_LEVEL are read from the
// environment after an optional .env file is loaded.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	internalflows "github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/session"
	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	envFile    string
	configPath string
	redisAddr  string
	format     string
	quiet      bool
}

type inspector struct {
	out     io.Writer
	format  string
	now     func() time.Time
	logger  zerolog.Logger
	redis   redis.UniversalClient
	storage *session.RedisStorage
	cfg     goGuard.Config
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("goguard-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.envFile, "env", ".env", "dotenv file to load; missing files are ignored")
	fs.StringVar(&opts.configPath, "config", "", "goGuard YAML config (default $GOGUARD_CONFIG)")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address (default $REDIS_ADDR)")
	fs.StringVar(&opts.format, "format", "text", "output format: text, json or yaml")
	fs.BoolVar(&opts.quiet, "quiet", false, "suppress the banner")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: goguard-inspect [flags] session|errors|lockout|unlock|merge|ping [arg]")
		return 2
	}

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "load %s: %v\n", opts.envFile, err)
			return 1
		}
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(envOr("GOGUARD_LOG_LEVEL", "warn"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	logger = logger.Level(level)

	cfg := goGuard.DefaultConfig()
	if path := firstNonEmpty(opts.configPath, os.Getenv("GOGUARD_CONFIG")); path != "" {
		cfg, err = goGuard.LoadConfigFile(path)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}

	addr := firstNonEmpty(opts.redisAddr, os.Getenv("REDIS_ADDR"))
	if addr == "" {
		fmt.Fprintln(stderr, "redis address required: set -redis-addr or REDIS_ADDR")
		return 2
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	if !opts.quiet && opts.format == "text" {
		fmt.Fprintln(stdout, figure.NewFigure("goGuard", "", true).String())
	}

	in := &inspector{
		out:     stdout,
		format:  opts.format,
		now:     time.Now,
		logger:  logger,
		redis:   client,
		storage: session.NewRedisStorage(client, cfg.Storage.RedisPrefix),
		cfg:     cfg,
	}
	if err := in.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		logger.Error().Err(err).Str("command", fs.Arg(0)).Msg("inspect failed")
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

var errUsage = errors.New("missing argument")

func (in *inspector) dispatch(ctx context.Context, cmd string, args []string) error {
	arg := func() (string, error) {
		if len(args) == 0 {
			return "", fmt.Errorf("%s: %w", cmd, errUsage)
		}
		return args[0], nil
	}

	switch cmd {
	case "session":
		return in.session(ctx)
	case "errors":
		return in.recentErrors(ctx)
	case "lockout":
		id, err := arg()
		if err != nil {
			return err
		}
		return in.lockout(ctx, id)
	case "unlock":
		id, err := arg()
		if err != nil {
			return err
		}
		return in.unlock(ctx, id)
	case "merge":
		email, err := arg()
		if err != nil {
			return err
		}
		return in.merge(ctx, email)
	case "ping":
		rtt, err := in.storage.Ping(ctx)
		if err != nil {
			return err
		}
		return in.emit(map[string]string{"status": "ok", "rtt": rtt.String()})
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type sessionView struct {
	HasToken       bool      `json:"has_token" yaml:"has_token"`
	TokenPreview   string    `json:"token_preview,omitempty" yaml:"token_preview,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Valid          bool      `json:"valid" yaml:"valid"`
	UserEmail      string    `json:"user_email,omitempty" yaml:"user_email,omitempty"`
	HasFingerprint bool      `json:"has_fingerprint" yaml:"has_fingerprint"`
	Platform       string    `json:"platform,omitempty" yaml:"platform,omitempty"`
}

func (in *inspector) session(ctx context.Context) error {
	store := session.NewStore(in.storage)
	token, expiresAt, ok, err := store.Token(ctx)
	if err != nil {
		return err
	}
	view := sessionView{HasToken: ok}
	if ok {
		view.TokenPreview = preview(token)
		view.ExpiresAt = expiresAt.UTC()
		view.Valid = in.now().Before(expiresAt)
	}
	view.UserEmail, _, err = store.UserEmail(ctx)
	if err != nil {
		return err
	}
	fp, found, err := store.Fingerprint(ctx)
	if err != nil {
		return err
	}
	if found && fp != "" {
		view.HasFingerprint = true
		if d, err := session.ParseFingerprint(fp); err == nil {
			view.Platform = d.Platform
		} else {
			in.logger.Warn().Err(err).Msg("stored fingerprint unreadable")
		}
	}
	return in.emit(view)
}

func (in *inspector) recentErrors(ctx context.Context) error {
	log := autherr.NewLog(in.storage, in.cfg.ErrorLog.MaxEntries, in.now, in.logger)
	entries := log.Recent(ctx)
	if in.format != "text" {
		return in.emit(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(in.out, "no recent auth errors")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(in.out, "%s  %-24s %s\n", e.Timestamp.UTC().Format(time.RFC3339), e.Code, e.Message)
	}
	return nil
}

type lockoutView struct {
	Identifier   string    `json:"identifier" yaml:"identifier"`
	Found        bool      `json:"found" yaml:"found"`
	FailureCount int       `json:"failure_count" yaml:"failure_count"`
	Blocked      bool      `json:"blocked" yaml:"blocked"`
	BlockedUntil time.Time `json:"blocked_until,omitempty" yaml:"blocked_until,omitempty"`
}

func (in *inspector) lockout(ctx context.Context, identifier string) error {
	id := limiters.NormalizeIdentifier(identifier)
	rec, found, err := limiters.NewRedisLockoutStore(in.redis).Load(ctx, id)
	if err != nil {
		return err
	}
	return in.emit(lockoutView{
		Identifier:   id,
		Found:        found,
		FailureCount: rec.FailureCount,
		Blocked:      rec.Blocked(in.now()),
		BlockedUntil: rec.BlockedUntil,
	})
}

func (in *inspector) unlock(ctx context.Context, identifier string) error {
	id := limiters.NormalizeIdentifier(identifier)
	if err := limiters.NewRedisLockoutStore(in.redis).Delete(ctx, id); err != nil {
		return err
	}
	in.logger.Info().Str("identifier", id).Msg("lockout cleared")
	return in.emit(map[string]string{"identifier": id, "status": "cleared"})
}

func (in *inspector) merge(ctx context.Context, email string) error {
	rec, err := internalflows.NewStorageJournal(in.storage).Load(ctx, identity.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if rec == nil {
		return in.emit(map[string]string{"email": identity.NormalizeEmail(email), "status": "no merge in progress"})
	}
	return in.emit(rec)
}

func (in *inspector) emit(v any) error {
	switch in.format {
	case "json":
		enc := json.NewEncoder(in.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(in.out)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return printText(in.out, v)
	}
}

// printText renders v as "key: value" lines through its YAML form.
func printText(w io.Writer, v any) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

func preview(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
