package metrics

import (
	"net/http"
	"strings"
	"sync"
)

var (
	optsMu sync.RWMutex

	// Exact paths, or prefixes when they end in "/".
	skipPaths = []string{"/metrics"}

	pathNormalizer = func(r *http.Request) string { return r.URL.Path }
)

// AddMetricsSkipPaths excludes paths from the HTTP collectors. An entry
// ending in "/" skips everything under it. "/metrics" is always skipped.
func AddMetricsSkipPaths(paths ...string) {
	optsMu.Lock()
	defer optsMu.Unlock()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			skipPaths = append(skipPaths, p)
		}
	}
}

// SetPathNormalizer sets how the uri label is derived (e.g. collapse IDs).
// By default it is r.URL.Path.
func SetPathNormalizer(fn func(*http.Request) string) {
	if fn == nil {
		return
	}
	optsMu.Lock()
	pathNormalizer = fn
	optsMu.Unlock()
}

func isSkipPath(r *http.Request) bool {
	p := r.URL.Path
	optsMu.RLock()
	defer optsMu.RUnlock()
	for _, s := range skipPaths {
		if p == s || (strings.HasSuffix(s, "/") && strings.HasPrefix(p, s)) {
			return true
		}
	}
	return false
}

func normalizePath(r *http.Request) string {
	optsMu.RLock()
	fn := pathNormalizer
	optsMu.RUnlock()
	return fn(r)
}
