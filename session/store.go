package session

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Persisted keys.
const (
	KeyToken          = "jwt"
	KeyTokenExpiresAt = "jwt_expires_at"
	KeyFingerprint    = "device_fingerprint"
	KeyUserEmail      = "user_email"
)

// Store persists the bearer token, its absolute expiry and per-login device
// data in a [Storage].
type Store struct {
	storage Storage
}

// NewStore creates a token Store over storage.
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// SaveToken writes the token and its expiry. The expiry is stored as Unix
// milliseconds.
func (s *Store) SaveToken(ctx context.Context, token string, expiresAt time.Time) error {
	if err := s.storage.Set(ctx, KeyToken, token, 0); err != nil {
		return err
	}
	return s.SetExpiresAt(ctx, expiresAt)
}

// SetExpiresAt overwrites the stored expiry.
func (s *Store) SetExpiresAt(ctx context.Context, expiresAt time.Time) error {
	return s.storage.Set(ctx, KeyTokenExpiresAt, strconv.FormatInt(expiresAt.UnixMilli(), 10), 0)
}

// Token returns the stored token and expiry. ok is false when either is
// missing.
func (s *Store) Token(ctx context.Context) (token string, expiresAt time.Time, ok bool, err error) {
	token, found, err := s.storage.Get(ctx, KeyToken)
	if err != nil || !found || token == "" {
		return "", time.Time{}, false, err
	}

	expiresAt, found, err = s.ExpiresAt(ctx)
	if err != nil || !found {
		return "", time.Time{}, false, err
	}
	return token, expiresAt, true, nil
}

// ExpiresAt returns the stored expiry.
func (s *Store) ExpiresAt(ctx context.Context) (time.Time, bool, error) {
	raw, found, err := s.storage.Get(ctx, KeyTokenExpiresAt)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", KeyTokenExpiresAt, err)
	}
	return time.UnixMilli(ms), true, nil
}

// SaveFingerprint stores the device fingerprint captured at login.
func (s *Store) SaveFingerprint(ctx context.Context, fingerprint string) error {
	return s.storage.Set(ctx, KeyFingerprint, fingerprint, 0)
}

// Fingerprint returns the stored device fingerprint.
func (s *Store) Fingerprint(ctx context.Context) (string, bool, error) {
	return s.storage.Get(ctx, KeyFingerprint)
}

// SaveUserEmail remembers which identifier the session belongs to.
func (s *Store) SaveUserEmail(ctx context.Context, email string) error {
	return s.storage.Set(ctx, KeyUserEmail, email, 0)
}

// UserEmail returns the identifier saved at login.
func (s *Store) UserEmail(ctx context.Context) (string, bool, error) {
	return s.storage.Get(ctx, KeyUserEmail)
}

// Clear removes all token state. Deleting absent keys is not an error.
func (s *Store) Clear(ctx context.Context) error {
	return s.storage.Delete(ctx, KeyToken, KeyTokenExpiresAt, KeyFingerprint, KeyUserEmail)
}
