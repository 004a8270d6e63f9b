package oidc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/identity"
	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://issuer.test"
	testClientID = "goguard-client"
)

type tokenServer struct {
	*httptest.Server
	key      *rsa.PrivateKey
	nonce    string
	verifier string
	withID   bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ts := &tokenServer{key: key, withID: true}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		ts.verifier = r.PostForm.Get("code_verifier")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		body := map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if ts.withID {
			body["id_token"] = ts.sign(jwt.MapClaims{
				"iss":                testIssuer,
				"aud":                testClientID,
				"sub":                "google-sub-1",
				"exp":                time.Now().Add(time.Hour).Unix(),
				"iat":                time.Now().Unix(),
				"nonce":              ts.nonce,
				"email":              "Ada@Example.com",
				"name":               "Ada Lovelace",
				"preferred_username": "ada",
				"picture":            "https://img.test/ada.png",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) sign(claims jwt.MapClaims) string {
	raw, _ := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.key)
	return raw
}

func (ts *tokenServer) provider() *Provider {
	keys := &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&ts.key.PublicKey}}
	return &Provider{
		Method: identity.MethodGoogle,
		OAuth2: oauth2.Config{
			ClientID:     testClientID,
			ClientSecret: "secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:   ts.URL + "/auth",
				TokenURL:  ts.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{gooidc.ScopeOpenID, "email"},
		},
		Verifier: gooidc.NewVerifier(testIssuer, keys, &gooidc.Config{ClientID: testClientID}),
	}
}

func begin(t *testing.T, c *Client, redirect string) url.Values {
	t.Helper()
	raw, err := c.BeginOAuth(context.Background(), identity.MethodGoogle, redirect)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}

func TestBeginOAuthURL(t *testing.T) {
	ts := newTokenServer(t)
	c, err := NewClient([]*Provider{ts.provider()})
	require.NoError(t, err)

	q := begin(t, c, "https://app.test/callback")
	assert.NotEmpty(t, q.Get("state"))
	assert.NotEmpty(t, q.Get("nonce"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "https://app.test/callback", q.Get("redirect_uri"))
	assert.Equal(t, 1, c.Pending())

	_, err = c.BeginOAuth(context.Background(), identity.MethodGitHub, "")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCompleteOAuthVerifiesIDToken(t *testing.T) {
	ts := newTokenServer(t)
	c, err := NewClient([]*Provider{ts.provider()})
	require.NoError(t, err)

	q := begin(t, c, "https://app.test/callback")
	ts.nonce = q.Get("nonce")

	res, err := c.CompleteOAuth(context.Background(), identity.MethodGoogle, "good-code", q.Get("state"))
	require.NoError(t, err)
	assert.NotEmpty(t, ts.verifier)

	assert.Equal(t, identity.MethodGoogle, res.Profile.Provider)
	assert.Equal(t, "google-sub-1", res.Profile.Subject)
	assert.Equal(t, "ada@example.com", res.Profile.Email)
	assert.Equal(t, "ada", res.Profile.Username)
	assert.Equal(t, "https://img.test/ada.png", res.Profile.AvatarURL)
	assert.Equal(t, "access-123", res.Session.Token)
	assert.Greater(t, res.Session.ExpiresIn, 59*time.Minute)
	assert.Equal(t, "google-sub-1", res.Session.User.ID)
	assert.Equal(t, 0, c.Pending())
}

func TestCompleteOAuthStateIsSingleUse(t *testing.T) {
	ts := newTokenServer(t)
	c, err := NewClient([]*Provider{ts.provider()})
	require.NoError(t, err)

	q := begin(t, c, "")
	ts.nonce = q.Get("nonce")
	_, err = c.CompleteOAuth(context.Background(), identity.MethodGoogle, "good-code", q.Get("state"))
	require.NoError(t, err)

	_, err = c.CompleteOAuth(context.Background(), identity.MethodGoogle, "good-code", q.Get("state"))
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = c.CompleteOAuth(context.Background(), identity.MethodGoogle, "good-code", "forged")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteOAuthExpiredState(t *testing.T) {
	ts := newTokenServer(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c, err := NewClient([]*Provider{ts.provider()},
		WithStateTTL(time.Minute),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	q := begin(t, c, "")
	now = now.Add(2 * time.Minute)
	_, err = c.CompleteOAuth(context.Background(), identity.MethodGoogle, "good-code", q.Get("state"))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteOAuthNonceMismatch(t *testing.T) {
	ts := newTokenServer(t)
	c, err := NewClient([]*Provider{ts.provider()})
	require.NoError(t, err)

	q := begin(t, c, "")
	ts.nonce = "replayed"
	_, err = c.CompleteOAuth(context.Background(), identity.MethodGoogle, "good-code", q.Get("state"))
	require.ErrorIs(t, err, ErrNonceMismatch)
}

func TestCompleteOAuthMissingIDToken(t *testing.T) {
	ts := newTokenServer(t)
	ts.withID = false
	c, err := NewClient([]*Provider{ts.provider()})
	require.NoError(t, err)

	q := begin(t, c, "")
	_, err = c.CompleteOAuth(context.Background(), identity.MethodGoogle, "good-code", q.Get("state"))
	require.ErrorIs(t, err, ErrMissingIDToken)
}

func TestCompleteOAuthExchangeFailure(t *testing.T) {
	ts := newTokenServer(t)
	c, err := NewClient([]*Provider{ts.provider()})
	require.NoError(t, err)

	q := begin(t, c, "")
	_, err = c.CompleteOAuth(context.Background(), identity.MethodGoogle, "bad-code", q.Get("state"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange code")
}

func TestNewClientRequiresProfileSource(t *testing.T) {
	_, err := NewClient([]*Provider{{Method: identity.MethodGoogle}})
	require.ErrorIs(t, err, ErrNoProfileSource)
}

type baseProvider struct {
	identity.IdentityProvider
}

func TestAttachRoutesBeginOAuth(t *testing.T) {
	ts := newTokenServer(t)
	c, err := NewClient([]*Provider{ts.provider()})
	require.NoError(t, err)

	p := Attach(baseProvider{}, c)
	raw, err := p.BeginOAuth(context.Background(), identity.MethodGoogle, "https://app.test/cb")
	require.NoError(t, err)
	assert.Contains(t, raw, ts.URL+"/auth")
	assert.Equal(t, 1, c.Pending())
}
