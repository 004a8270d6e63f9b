package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
)

// SessionValidator is satisfied by *goGuard.Engine.
type SessionValidator interface {
	ValidateSession(ctx context.Context) bool
}

// RequireSession answers 401 while the engine holds no valid session.
func RequireSession(v SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil || !v.ValidateSession(r.Context()) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientContext attaches the client IP and user agent to the request
// context. With trustForwarded the first X-Forwarded-For hop wins over
// RemoteAddr.
func ClientContext(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goGuard.WithClientIP(r.Context(), clientIP(r, trustForwarded))
			if ua := r.UserAgent(); ua != "" {
				ctx = goGuard.WithUserAgent(ctx, ua)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
