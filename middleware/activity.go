package middleware

import (
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

// TrackActivity emits kind on src for every request before calling next.
// Attach src to the Engine with Builder.WithActivitySource.
func TrackActivity(src *goGuard.ManualSource, kind goGuard.ActivityKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src != nil {
				src.Emit(kind)
			}
			next.ServeHTTP(w, r)
		})
	}
}
