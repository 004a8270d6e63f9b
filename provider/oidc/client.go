package oidc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/identity"
	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var (
	ErrUnknownProvider = errors.New("oidc: provider not configured")
	ErrInvalidState    = errors.New("oidc: invalid or expired state")
	ErrMissingIDToken  = errors.New("oidc: no id_token in token response")
	ErrNonceMismatch   = errors.New("oidc: nonce mismatch")
	ErrNoProfileSource = errors.New("oidc: provider has neither verifier nor profile fetcher")
)

// DefaultStateTTL bounds the time between BeginOAuth and CompleteOAuth.
const DefaultStateTTL = 10 * time.Minute

// ProfileFetcher loads the social profile for providers without ID tokens.
type ProfileFetcher func(ctx context.Context, token *oauth2.Token) (identity.SocialProfile, error)

// Provider is one configured sign-in method.
type Provider struct {
	Method identity.AuthMethod
	OAuth2 oauth2.Config

	// Verifier checks the id_token of OpenID Connect providers.
	Verifier *gooidc.IDTokenVerifier

	// FetchProfile is used when Verifier is nil.
	FetchProfile ProfileFetcher
}

// Discover builds an OpenID Connect provider from the issuer's discovery
// document. Scopes default to openid, profile, email and offline_access.
func Discover(ctx context.Context, method identity.AuthMethod, issuer, clientID, clientSecret string, scopes ...string) (*Provider, error) {
	p, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", issuer, err)
	}
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email", gooidc.ScopeOfflineAccess}
	}
	return &Provider{
		Method: method,
		OAuth2: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     p.Endpoint(),
			Scopes:       scopes,
		},
		Verifier: p.Verifier(&gooidc.Config{ClientID: clientID}),
	}, nil
}

type pendingAuth struct {
	method      identity.AuthMethod
	nonce       string
	verifier    string
	redirectURL string
	expiresAt   time.Time
}

// Client runs the authorization code flow for a set of providers.
type Client struct {
	mu        sync.Mutex
	providers map[identity.AuthMethod]*Provider
	pending   map[string]pendingAuth

	stateTTL time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

var _ identity.OAuthCallback = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithStateTTL overrides DefaultStateTTL.
func WithStateTTL(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.stateTTL = d
		}
	}
}

// WithClock sets the time source used for state expiry and token lifetimes.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient indexes providers by Method.
func NewClient(providers []*Provider, opts ...Option) (*Client, error) {
	c := &Client{
		providers: make(map[identity.AuthMethod]*Provider, len(providers)),
		pending:   make(map[string]pendingAuth),
		stateTTL:  DefaultStateTTL,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, p := range providers {
		if p == nil || p.Method == "" {
			return nil, errors.New("oidc: provider method is required")
		}
		if p.Verifier == nil && p.FetchProfile == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoProfileSource, p.Method)
		}
		c.providers[p.Method] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BeginOAuth returns the authorization URL for method. The URL requests
// offline access and forces the consent prompt.
func (c *Client) BeginOAuth(ctx context.Context, method identity.AuthMethod, redirectURL string) (string, error) {
	p, ok := c.providers[method]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, method)
	}

	state := uuid.NewString()
	pending := pendingAuth{
		method:      method,
		nonce:       uuid.NewString(),
		verifier:    oauth2.GenerateVerifier(),
		redirectURL: redirectURL,
		expiresAt:   c.now().Add(c.stateTTL),
	}

	c.mu.Lock()
	c.sweepLocked()
	c.pending[state] = pending
	c.mu.Unlock()

	cfg := p.OAuth2
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(pending.verifier),
	}
	if p.Verifier != nil {
		opts = append(opts, gooidc.Nonce(pending.nonce))
	}
	return cfg.AuthCodeURL(state, opts...), nil
}

// CompleteOAuth redeems code for method. The state must come from a
// BeginOAuth call for the same method and is consumed either way.
func (c *Client) CompleteOAuth(ctx context.Context, method identity.AuthMethod, code, state string) (*identity.OAuthResult, error) {
	p, ok := c.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, method)
	}

	pending, ok := c.takeState(state)
	if !ok || pending.method != method {
		return nil, ErrInvalidState
	}

	cfg := p.OAuth2
	if pending.redirectURL != "" {
		cfg.RedirectURL = pending.redirectURL
	}
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(pending.verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	var profile identity.SocialProfile
	if p.Verifier != nil {
		profile, err = c.verifyIDToken(ctx, p, token, pending.nonce)
	} else {
		profile, err = p.FetchProfile(ctx, token)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("provider", string(method)).Msg("oauth profile resolution failed")
		return nil, err
	}
	profile.Provider = method

	sess := identity.ProviderSession{
		Token: token.AccessToken,
		User: identity.ProviderUser{
			ID:       profile.Subject,
			Email:    profile.Email,
			Provider: string(method),
		},
	}
	if !token.Expiry.IsZero() {
		if d := token.Expiry.Sub(c.now()); d > 0 {
			sess.ExpiresIn = d
		}
	}
	return &identity.OAuthResult{Profile: profile, Session: sess}, nil
}

type idTokenClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

func (c *Client) verifyIDToken(ctx context.Context, p *Provider, token *oauth2.Token, nonce string) (identity.SocialProfile, error) {
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return identity.SocialProfile{}, ErrMissingIDToken
	}
	idToken, err := p.Verifier.Verify(ctx, raw)
	if err != nil {
		return identity.SocialProfile{}, fmt.Errorf("verify id_token: %w", err)
	}
	if idToken.Nonce != nonce {
		return identity.SocialProfile{}, ErrNonceMismatch
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return identity.SocialProfile{}, fmt.Errorf("decode id_token claims: %w", err)
	}
	return identity.SocialProfile{
		Subject:   idToken.Subject,
		Email:     identity.NormalizeEmail(claims.Email),
		Username:  claims.PreferredUsername,
		FullName:  claims.Name,
		AvatarURL: claims.Picture,
	}, nil
}

func (c *Client) takeState(state string) (pendingAuth, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending, ok := c.pending[state]
	if !ok {
		return pendingAuth{}, false
	}
	delete(c.pending, state)
	if !c.now().Before(pending.expiresAt) {
		return pendingAuth{}, false
	}
	return pending, true
}

func (c *Client) sweepLocked() {
	now := c.now()
	for k, v := range c.pending {
		if !now.Before(v.expiresAt) {
			delete(c.pending, k)
		}
	}
}

// Pending returns the number of outstanding states.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

type attached struct {
	identity.IdentityProvider
	client *Client
}

// Attach returns base with BeginOAuth served by client.
func Attach(base identity.IdentityProvider, client *Client) identity.IdentityProvider {
	return attached{IdentityProvider: base, client: client}
}

func (a attached) BeginOAuth(ctx context.Context, provider identity.AuthMethod, redirectURL string) (string, error) {
	return a.client.BeginOAuth(ctx, provider, redirectURL)
}
