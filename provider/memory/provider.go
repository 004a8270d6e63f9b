package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"maps"
	"net/url"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minPasswordLength = 6

type user struct {
	id       string
	email    string
	hash     string
	provider identity.AuthMethod
	metadata map[string]any
}

// Reset is a password reset email the provider would have sent.
type Reset struct {
	Email       string
	RedirectURL string
	SentAt      time.Time
}

// Options tune a Provider.
type Options struct {
	// SessionTTL is the lifetime of issued tokens. Defaults to one hour.
	SessionTTL time.Duration
	// OmitExpiresIn leaves ProviderSession.ExpiresIn zero so callers must
	// read the exp claim.
	OmitExpiresIn bool
	Hash          HashParams
	SigningKey    []byte
	Now           func() time.Time
}

// Provider implements identity.IdentityProvider and identity.OAuthCallback.
type Provider struct {
	mu      sync.Mutex
	users   map[string]*user
	social  map[string]identity.SocialProfile
	current *identity.ProviderSession
	resets  []Reset
	opts    Options
}

var (
	_ identity.IdentityProvider = (*Provider)(nil)
	_ identity.OAuthCallback    = (*Provider)(nil)
)

// New creates an empty provider. A nil SigningKey draws a random one.
func New(opts Options) (*Provider, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.Hash == (HashParams{}) {
		opts.Hash = DefaultHashParams
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = make([]byte, 32)
		if _, err := rand.Read(opts.SigningKey); err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
	}
	return &Provider{
		users:  make(map[string]*user),
		social: make(map[string]identity.SocialProfile),
		opts:   opts,
	}, nil
}

func invalidCredentials() error {
	return &autherr.ProviderError{Status: 401, Message: "Invalid login credentials"}
}

// SignUp registers a password identity.
func (p *Provider) SignUp(_ context.Context, email, password string, metadata map[string]any) (*identity.ProviderUser, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return nil, &autherr.ProviderError{Status: 400, Message: "Invalid email"}
	}
	if len(password) < minPasswordLength {
		return nil, &autherr.ProviderError{Status: 400, Message: "Invalid password: too short"}
	}
	hash, err := hashPassword(p.opts.Hash, password)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[email]; ok && u.hash != "" {
		return nil, &autherr.ProviderError{Status: 400, Message: "User already registered"}
	}
	u := &user{
		id:       uuid.NewString(),
		email:    email,
		hash:     hash,
		provider: identity.MethodEmail,
		metadata: maps.Clone(metadata),
	}
	if u.metadata == nil {
		u.metadata = map[string]any{}
	}
	p.users[email] = u
	return u.view(), nil
}

// SignInWithPassword verifies the password and makes the new session
// current.
func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (*identity.ProviderSession, error) {
	email = identity.NormalizeEmail(email)

	p.mu.Lock()
	u, ok := p.users[email]
	p.mu.Unlock()
	if !ok || u.hash == "" {
		return nil, invalidCredentials()
	}
	match, err := verifyPassword(u.hash, password)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, invalidCredentials()
	}
	return p.issue(u)
}

// GetCurrentSession returns the session issued last, or a 401 once it has
// expired or never existed.
func (p *Provider) GetCurrentSession(_ context.Context) (*identity.ProviderSession, error) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		return nil, &autherr.ProviderError{Status: 401, Message: "Auth session missing"}
	}

	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(cur.Token, &claims, func(*jwt.Token) (any, error) {
		return p.opts.SigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.opts.Now))
	if err != nil {
		return nil, &autherr.ProviderError{Status: 401, Message: "JWT expired"}
	}

	out := *cur
	if !p.opts.OmitExpiresIn && claims.ExpiresAt != nil {
		out.ExpiresIn = claims.ExpiresAt.Sub(p.opts.Now())
	}
	return &out, nil
}

// SignOut drops the current session.
func (p *Provider) SignOut() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}

// BeginOAuth returns redirectURL with the provider name attached. Codes for
// CompleteOAuth are staged with StageOAuth.
func (p *Provider) BeginOAuth(_ context.Context, provider identity.AuthMethod, redirectURL string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("provider", string(provider))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StageOAuth makes code redeemable for profile.
func (p *Provider) StageOAuth(code string, profile identity.SocialProfile) {
	p.mu.Lock()
	p.social[code] = profile
	p.mu.Unlock()
}

// CompleteOAuth redeems a staged code. The social identity is created on
// first use.
func (p *Provider) CompleteOAuth(_ context.Context, provider identity.AuthMethod, code, _ string) (*identity.OAuthResult, error) {
	p.mu.Lock()
	profile, ok := p.social[code]
	delete(p.social, code)
	p.mu.Unlock()
	if !ok || profile.Provider != provider {
		return nil, &autherr.ProviderError{Status: 400, Message: "invalid oauth code"}
	}

	key := string(provider) + ":" + identity.NormalizeEmail(profile.Email)
	p.mu.Lock()
	u, exists := p.users[key]
	if !exists {
		u = &user{
			id:       uuid.NewString(),
			email:    identity.NormalizeEmail(profile.Email),
			provider: provider,
			metadata: maps.Clone(profile.Metadata),
		}
		if u.metadata == nil {
			u.metadata = map[string]any{}
		}
		p.users[key] = u
	}
	p.mu.Unlock()

	sess, err := p.issue(u)
	if err != nil {
		return nil, err
	}
	return &identity.OAuthResult{Profile: profile, Session: *sess}, nil
}

// UpdateIdentityMetadata merges patch into the current user's metadata.
func (p *Provider) UpdateIdentityMetadata(_ context.Context, patch map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return &autherr.ProviderError{Status: 401, Message: "Auth session missing"}
	}
	u := p.lookupLocked(p.current.User)
	if u == nil {
		return &autherr.ProviderError{Status: 404, Message: "User not found"}
	}
	maps.Copy(u.metadata, patch)
	return nil
}

// ResetPasswordEmail records a reset. Unknown addresses succeed silently.
func (p *Provider) ResetPasswordEmail(_ context.Context, email, redirectURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	email = identity.NormalizeEmail(email)
	if _, ok := p.users[email]; ok {
		p.resets = append(p.resets, Reset{Email: email, RedirectURL: redirectURL, SentAt: p.opts.Now()})
	}
	return nil
}

// Resets returns the recorded password reset emails.
func (p *Provider) Resets() []Reset {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Reset(nil), p.resets...)
}

// Metadata returns a copy of the metadata of the password identity of email.
func (p *Provider) Metadata(email string) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[identity.NormalizeEmail(email)]; ok {
		return maps.Clone(u.metadata)
	}
	return nil
}

func (p *Provider) issue(u *user) (*identity.ProviderSession, error) {
	now := p.opts.Now()
	claims := struct {
		Email    string `json:"email"`
		Provider string `json:"provider"`
		jwt.RegisteredClaims
	}{
		Email:    u.email,
		Provider: string(u.provider),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.opts.SessionTTL)),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.opts.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	sess := &identity.ProviderSession{Token: token, User: *u.view()}
	if !p.opts.OmitExpiresIn {
		sess.ExpiresIn = p.opts.SessionTTL
	}
	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()
	return sess, nil
}

func (p *Provider) lookupLocked(pu identity.ProviderUser) *user {
	for _, u := range p.users {
		if u.id == pu.ID {
			return u
		}
	}
	return nil
}

func (u *user) view() *identity.ProviderUser {
	return &identity.ProviderUser{
		ID:       u.id,
		Email:    u.email,
		Provider: string(u.provider),
		Metadata: maps.Clone(u.metadata),
	}
}
