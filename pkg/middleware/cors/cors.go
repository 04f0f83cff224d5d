package cors

import (
	"net/http"
	"strings"
)

const (
	// DefaultMethods are the verbs the client dispatcher can send.
	DefaultMethods = "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS"
	DefaultHeaders = "Content-Type, Authorization, X-Request-Id"
)

// Middleware applies a cross-origin policy.
type Middleware struct {
	allowedOrigins []string
	allowAll       bool
}

// New creates the middleware. No origins, or an origin of "*", allows every origin.
func New(allowedOrigins ...string) *Middleware {
	allowAll := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}
	return &Middleware{allowedOrigins: allowedOrigins, allowAll: allowAll}
}

// Handler returns the CORS middleware handler. Only real preflights
// (OPTIONS with Origin and Access-Control-Request-Method) are answered here;
// any other OPTIONS request reaches next.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && (m.allowAll || m.isOriginAllowed(origin))

		if allowed {
			h := w.Header()
			if m.allowAll {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", DefaultMethods)
			h.Set("Access-Control-Allow-Headers", DefaultHeaders)
			h.Set("Access-Control-Expose-Headers", "X-Request-Id")
			h.Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) isOriginAllowed(origin string) bool {
	for _, allowed := range m.allowedOrigins {
		if allowed == origin || strings.HasSuffix(origin, "."+strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}
