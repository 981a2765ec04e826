package middleware

import (
	"net/http"
	"os"
	"strings"
)

// corsPolicy holds the origin whitelist resolved once at middleware
// construction. Localhost origins on any port pass regardless, so local
// frontend development never needs extra configuration.
type corsPolicy struct {
	allowed map[string]struct{}
}

func newCORSPolicy(env string) *corsPolicy {
	p := &corsPolicy{allowed: make(map[string]struct{})}
	for _, o := range strings.Split(env, ",") {
		if o = strings.TrimSpace(o); o != "" {
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "https://localhost") {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// CORS returns middleware that answers preflight requests and sets CORS
// headers for whitelisted origins. The whitelist comes from the
// WEB_ALLOWED_ORIGINS environment variable as a comma-separated list.
// Credentials are allowed because the API authenticates with a session
// cookie.
func CORS() func(http.Handler) http.Handler {
	policy := newCORSPolicy(os.Getenv("WEB_ALLOWED_ORIGINS"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); policy.allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders returns middleware that sets baseline security headers
// on every response.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; img-src 'self' data: blob:")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}
