package middleware

import (
	"context"
	"net/http"
)

const (
	// CSRFHeader carries the anti-forgery token on API requests.
	CSRFHeader = "X-CSRF-Token"
	// CSRFFormField carries the token on form posts.
	CSRFFormField = "csrf_token"
)

// CSRFValidator is satisfied by *goGuard.Engine.
type CSRFValidator interface {
	ValidateCSRFToken(ctx context.Context, candidate string) bool
}

// RequireCSRF answers 403 when a state-changing request carries no token or
// one that differs from the live token. GET, HEAD, OPTIONS and TRACE pass
// through.
func RequireCSRF(v CSRFValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			token := r.Header.Get(CSRFHeader)
			if token == "" {
				token = r.PostFormValue(CSRFFormField)
			}
			if v == nil || token == "" || !v.ValidateCSRFToken(r.Context(), token) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
