package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	internalflows "github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mr      *miniredis.Miniredis
	client  redis.UniversalClient
	storage *session.RedisStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("GOGUARD_CONFIG", "")
	t.Setenv("REDIS_ADDR", "")
	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })
	return &fixture{mr: mr, client: client, storage: session.NewRedisStorage(client, "gg")}
}

func (f *fixture) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	base := []string{"-env", "", "-quiet", "-redis-addr", f.mr.Addr()}
	code := run(context.Background(), append(base, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSessionCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := session.NewStore(f.storage)
	require.NoError(t, store.SaveToken(ctx, "eyJhbGciOi.payload.signature", time.Now().Add(time.Hour)))
	require.NoError(t, store.SaveUserEmail(ctx, "ada@example.com"))
	require.NoError(t, store.SaveFingerprint(ctx, session.Fingerprint(session.Device{Platform: "MacIntel"})))

	code, out, stderr := f.run(t, "-format", "json", "session")
	require.Equal(t, 0, code, stderr)

	var view sessionView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.True(t, view.HasToken)
	assert.True(t, view.Valid)
	assert.Equal(t, "eyJh...ture", view.TokenPreview)
	assert.Equal(t, "ada@example.com", view.UserEmail)
	assert.True(t, view.HasFingerprint)
	assert.Equal(t, "MacIntel", view.Platform)
}

func TestErrorsCommand(t *testing.T) {
	f := newFixture(t)
	log := autherr.NewLog(f.storage, 10, nil, zerolog.Nop())
	log.Record(context.Background(), autherr.New(autherr.CodeWrongPassword, "Incorrect password.", nil), nil)

	code, out, stderr := f.run(t, "errors")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "wrong_password")
	assert.Contains(t, out, "Incorrect password.")
}

func TestLockoutAndUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lockouts := limiters.NewRedisLockoutStore(f.client)
	require.NoError(t, lockouts.Save(ctx, limiters.LockoutRecord{
		Identifier:   "ada@example.com",
		FailureCount: 5,
		BlockedUntil: time.Now().Add(15 * time.Minute),
	}, time.Hour))

	code, out, stderr := f.run(t, "-format", "json", "lockout", "ADA@example.com")
	require.Equal(t, 0, code, stderr)
	var view lockoutView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.True(t, view.Found)
	assert.True(t, view.Blocked)
	assert.Equal(t, 5, view.FailureCount)

	code, _, stderr = f.run(t, "unlock", "ada@example.com")
	require.Equal(t, 0, code, stderr)
	_, found, err := lockouts.Load(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMergeCommand(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, internalflows.NewStorageJournal(f.storage).Save(context.Background(), identity.MergeRecord{
		ID:             "m-1",
		Email:          "dup@example.com",
		PrimaryID:      "a",
		DuplicateID:    "b",
		CompletedSteps: []identity.MergeStep{identity.StepUpsertPrimary},
	}))

	code, out, stderr := f.run(t, "-format", "yaml", "merge", "Dup@Example.com")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "m-1")
	assert.Contains(t, out, "upsert_primary")

	code, out, _ = f.run(t, "merge", "none@example.com")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "no merge in progress")
}

func TestPingAndUsageErrors(t *testing.T) {
	f := newFixture(t)

	code, out, _ := f.run(t, "ping")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "status: ok")

	code, _, _ = f.run(t, "lockout")
	assert.Equal(t, 1, code)

	code, _, stderr := f.run(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown command")

	var stdout, errOut bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"-env", "", "session"}, &stdout, &errOut))
}

func TestBannerInTextMode(t *testing.T) {
	f := newFixture(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-env", "", "-redis-addr", f.mr.Addr(), "ping"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Greater(t, len(stdout.String()), len("status: ok\nrtt: 0s\n"))
}
