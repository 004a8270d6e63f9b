//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	"github.com/MrEthical07/goGuard/session"
)

// TestRedisCompat_SessionSurvivesRestart checks a second runtime resumes the
// session persisted by the first.
func TestRedisCompat_SessionSurvivesRestart(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			ctx := context.Background()
			p := newProvider(t)

			first := newEngine(t, rdb, p, nil)
			if _, err := first.Login(ctx, testEmail, testPassword); err != nil {
				t.Fatalf("login: %v", err)
			}
			first.Destroy()

			second := newEngine(t, rdb, p, nil)
			if err := second.Initialize(ctx); err != nil {
				t.Fatalf("initialize: %v", err)
			}
			if !second.ValidateSession(ctx) {
				t.Fatal("expected restored session to be valid")
			}
			if got := second.Status(); got != session.StatusActive {
				t.Fatalf("expected active, got %v", got)
			}

			if err := second.Logout(ctx); err != nil {
				t.Fatalf("logout: %v", err)
			}
			if first.ValidateSession(ctx) {
				t.Fatal("logout must clear the shared token")
			}
		})
	}
}

// TestRedisCompat_LockoutShared checks persisted lockout blocks every runtime.
func TestRedisCompat_LockoutShared(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			ctx := context.Background()
			p := newProvider(t)

			a := newEngine(t, rdb, p, nil)
			b := newEngine(t, rdb, p, nil)

			for i := 0; i < 5; i++ {
				_, err := a.Login(ctx, testEmail, "Wr0ngSecret")
				if autherr.CodeOf(err) != autherr.CodeWrongPassword {
					t.Fatalf("attempt %d: expected wrong_password, got %v", i+1, err)
				}
			}

			_, err := b.Login(ctx, testEmail, testPassword)
			if autherr.CodeOf(err) != autherr.CodeRateLimited {
				t.Fatalf("expected rate_limited on second runtime, got %v", err)
			}
			status, err := b.CheckRateLimit(ctx, "ADA@example.com")
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if status.Allowed || status.RemainingMinutes < 14 {
				t.Fatalf("unexpected status %+v", status)
			}

			if err := a.ClearFailedAttempts(ctx, testEmail); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if _, err := b.Login(ctx, testEmail, testPassword); err != nil {
				t.Fatalf("login after clear: %v", err)
			}
		})
	}
}

// TestRedisCompat_MergeResumesOnAnotherRuntime checks the merge journal is
// shared so a second runtime finishes a partial merge.
func TestRedisCompat_MergeResumesOnAnotherRuntime(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			ctx := context.Background()
			p := newProvider(t)

			created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			store := newProfileStore(
				identity.Account{ID: "1", Email: testEmail, AuthMethods: []identity.AuthMethod{identity.MethodEmail}, ArticlesCount: 5, CreatedAt: created},
				identity.Account{ID: "2", Email: testEmail, AuthMethods: []identity.AuthMethod{identity.MethodGoogle}, ArticlesCount: 3, CreatedAt: created.Add(time.Hour)},
			)
			store.setFailDelete(true)

			a := newEngine(t, rdb, p, store)
			_, err := a.MergeExistingAccounts(ctx, testEmail)
			var partial *goGuard.MergeError
			if !errors.As(err, &partial) {
				t.Fatalf("expected *MergeError, got %v", err)
			}
			if !errors.Is(err, goGuard.ErrMergePartial) {
				t.Fatalf("expected ErrMergePartial, got %v", err)
			}

			b := newEngine(t, rdb, p, store)
			pending, err := b.PendingMerge(ctx, testEmail)
			if err != nil || pending == nil {
				t.Fatalf("expected pending merge on second runtime, got %v %v", pending, err)
			}
			if !pending.Done(identity.StepUpsertPrimary) {
				t.Fatalf("expected upsert_primary completed, got %v", pending.CompletedSteps)
			}

			store.setFailDelete(false)
			res, err := b.ResumeMerge(ctx, testEmail)
			if err != nil {
				t.Fatalf("resume: %v", err)
			}
			if res.Account.ArticlesCount != 8 || store.count() != 1 {
				t.Fatalf("unexpected merge result %+v (accounts=%d)", res.Account, store.count())
			}
			if pending, _ := a.PendingMerge(ctx, testEmail); pending != nil {
				t.Fatal("journal must be cleared after resume")
			}
		})
	}
}

// TestRedisCompat_CSRFTokenShared checks runtimes over one store agree on
// the live token.
func TestRedisCompat_CSRFTokenShared(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			ctx := context.Background()
			p := newProvider(t)

			a := newEngine(t, rdb, p, nil)
			b := newEngine(t, rdb, p, nil)

			tok, err := a.GenerateCSRFToken(ctx)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			again, err := b.GenerateCSRFToken(ctx)
			if err != nil || again != tok {
				t.Fatalf("expected identical token, got %q vs %q (%v)", again, tok, err)
			}
			if !b.ValidateCSRFToken(ctx, tok) {
				t.Fatal("expected token to validate on second runtime")
			}
		})
	}
}
