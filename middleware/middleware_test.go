package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	valid bool
	token string
	seen  []string
}

func (f *fakeEngine) ValidateSession(context.Context) bool { return f.valid }

func (f *fakeEngine) ValidateCSRFToken(_ context.Context, candidate string) bool {
	f.seen = append(f.seen, candidate)
	return candidate != "" && candidate == f.token
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireSession(t *testing.T) {
	eng := &fakeEngine{}
	var called bool
	h := RequireSession(eng)(okHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	eng.valid = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, called)
}

func TestRequireSessionNilValidator(t *testing.T) {
	var called bool
	rec := httptest.NewRecorder()
	RequireSession(nil)(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequireCSRFSafeMethodsPass(t *testing.T) {
	eng := &fakeEngine{token: "tok"}
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		var called bool
		rec := httptest.NewRecorder()
		RequireCSRF(eng)(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(m, "/", nil))
		assert.True(t, called, m)
	}
	assert.Empty(t, eng.seen)
}

func TestRequireCSRFHeader(t *testing.T) {
	eng := &fakeEngine{token: "tok"}
	var called bool
	h := RequireCSRF(eng)(okHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfer", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	req := httptest.NewRequest(http.MethodPost, "/transfer", nil)
	req.Header.Set(CSRFHeader, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/transfer", nil)
	req.Header.Set(CSRFHeader, "tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, called)
}

func TestRequireCSRFFormField(t *testing.T) {
	eng := &fakeEngine{token: "tok"}
	var called bool
	form := url.Values{CSRFFormField: {"tok"}}
	req := httptest.NewRequest(http.MethodPost, "/profile", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	RequireCSRF(eng)(okHandler(&called)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"tok"}, eng.seen)
}

func TestClientContext(t *testing.T) {
	var ip, ua string
	h := ClientContext(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = goGuard.ClientIPFromContext(r.Context())
		ua = goGuard.UserAgentFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("User-Agent", "test-agent/1.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "10.1.2.3", ip)
	assert.Equal(t, "test-agent/1.0", ua)
}

func TestClientIPForwarded(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.1.2.3", clientIP(req, true))

	req.RemoteAddr = "bare-host"
	assert.Equal(t, "bare-host", clientIP(req, false))
}

func TestTrackActivity(t *testing.T) {
	src := goGuard.NewManualSource()
	var kinds []goGuard.ActivityKind
	detach := src.Attach(func(k goGuard.ActivityKind) { kinds = append(kinds, k) })
	defer detach()

	var called bool
	h := TrackActivity(src, goGuard.ActivityPointer)(okHandler(&called))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, called)
	assert.Equal(t, []goGuard.ActivityKind{goGuard.ActivityPointer, goGuard.ActivityPointer}, kinds)
}

func TestTrackActivityNilSource(t *testing.T) {
	var called bool
	TrackActivity(nil, goGuard.ActivityKey)(okHandler(&called)).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
