// Package csrf issues and validates the single anti-forgery token of a
// runtime session.
package csrf

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/session"
)

// KeyToken is the storage key of the CSRF token.
const KeyToken = "csrf_token"

// TokenLength is the number of characters in a generated token.
const TokenLength = 32

var (
	// ErrMissingToken is returned by Validate when no token has been issued.
	ErrMissingToken = errors.New("csrf token not issued")
	// ErrMismatch is returned by Validate when the candidate differs.
	ErrMismatch = errors.New("csrf token mismatch")
)

// Guard owns the token in short-lived storage. At most one token is live:
// Generate returns the stored value while it exists.
type Guard struct {
	mu      sync.Mutex
	storage session.Storage
	ttl     time.Duration
}

// NewGuard creates a Guard. A ttl of zero keeps the token until Clear.
func NewGuard(storage session.Storage, ttl time.Duration) *Guard {
	return &Guard{storage: storage, ttl: ttl}
}

// Generate returns the live token, creating one if storage holds none.
func (g *Guard) Generate(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok, err := g.storage.Get(ctx, KeyToken)
	if err != nil {
		return "", err
	}
	if ok && existing != "" {
		return existing, nil
	}

	token, err := internal.RandomAlphanumeric(TokenLength)
	if err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	if err := g.storage.Set(ctx, KeyToken, token, g.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Validate compares candidate with the live token.
func (g *Guard) Validate(ctx context.Context, candidate string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored, ok, err := g.storage.Get(ctx, KeyToken)
	if err != nil {
		return err
	}
	if !ok || stored == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) != 1 {
		return ErrMismatch
	}
	return nil
}

// Clear drops the live token so the next Generate rotates it.
func (g *Guard) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.storage.Delete(ctx, KeyToken)
}
