//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/identity"
	"github.com/MrEthical07/goGuard/provider/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns miniredis plus any real deployment named by
// REDIS_ADDR, REDIS_CLUSTER_ADDRS or REDIS_SENTINEL_ADDRS.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ping(t, rdb)
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ping(t, rdb)
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				})
				ping(t, rdb)
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

func ping(t *testing.T, rdb redis.UniversalClient) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("cannot connect to Redis: %v", err)
	}
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

const (
	testEmail    = "ada@example.com"
	testPassword = "Sup3rSecret"
)

func newProvider(t *testing.T) *memory.Provider {
	t.Helper()
	p, err := memory.New(memory.Options{
		Hash:       memory.HashParams{MemoryKB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		SigningKey: []byte("integration-signing-key-32-bytes"),
	})
	if err != nil {
		t.Fatalf("memory provider: %v", err)
	}
	if _, err := p.SignUp(context.Background(), testEmail, testPassword, nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return p
}

// newEngine builds an engine over rdb. Engines sharing rdb model two
// runtimes of the same host.
func newEngine(t *testing.T, rdb redis.UniversalClient, p identity.IdentityProvider, profiles identity.ProfileStore) *goGuard.Engine {
	t.Helper()
	cfg := goGuard.DefaultConfig()
	cfg.Lockout.Persist = true

	b := goGuard.New().WithConfig(cfg).WithRedis(rdb).WithIdentityProvider(p)
	if profiles != nil {
		b = b.WithProfileStore(profiles)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

// profileStore is a map-backed identity.ProfileStore whose DeleteAccount
// can be made to fail.
type profileStore struct {
	mu         sync.Mutex
	accounts   map[string]identity.Account
	failDelete bool
}

func newProfileStore(accounts ...identity.Account) *profileStore {
	s := &profileStore{accounts: make(map[string]identity.Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *profileStore) FindAccountsByEmail(_ context.Context, email string) ([]identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []identity.Account
	for _, a := range s.accounts {
		if identity.NormalizeEmail(a.Email) == identity.NormalizeEmail(email) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *profileStore) UpsertAccount(_ context.Context, a identity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *profileStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return errors.New("backend unavailable")
	}
	delete(s.accounts, id)
	return nil
}

func (s *profileStore) TransferContentOwnership(context.Context, identity.ContentType, string, string) error {
	return nil
}

func (s *profileStore) setFailDelete(v bool) {
	s.mu.Lock()
	s.failDelete = v
	s.mu.Unlock()
}

func (s *profileStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}
