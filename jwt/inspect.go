package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a bearer token cannot be decoded.
var ErrMalformedToken = errors.New("malformed bearer token")

// Claims are the timing and identity claims read from a provider token.
type Claims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type providerClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes token without verifying its signature. Missing iat or exp
// claims leave the corresponding field zero.
func Inspect(token string) (Claims, error) {
	var pc providerClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &pc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	c := Claims{
		Subject: pc.Subject,
		Email:   pc.Email,
	}
	if pc.IssuedAt != nil {
		c.IssuedAt = pc.IssuedAt.Time
	}
	if pc.ExpiresAt != nil {
		c.ExpiresAt = pc.ExpiresAt.Time
	}
	return c, nil
}

// ExpiresIn returns the time left until the token's exp claim, measured from
// now. ok is false when the token has no readable exp claim or is already
// expired.
func ExpiresIn(token string, now time.Time) (time.Duration, bool) {
	c, err := Inspect(token)
	if err != nil || c.ExpiresAt.IsZero() {
		return 0, false
	}
	d := c.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0, false
	}
	return d, true
}
