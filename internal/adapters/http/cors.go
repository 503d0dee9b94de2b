package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods  = "GET, HEAD, POST, PUT, OPTIONS"
	corsAllowHeaders  = "Accept, Content-Type, Authorization"
	corsExposeHeaders = "Content-Length, Content-Disposition, Retry-After"
	corsMaxAge        = "86400"
)

// corsPolicy decides which browser origins may call the API. Patterns are
// exact origins or "*.domain" wildcards.
type corsPolicy struct {
	exact    map[string]bool
	suffixes []string // ".domain" for every "*.domain" pattern
}

func newCORSPolicy(patterns []string) corsPolicy {
	p := corsPolicy{exact: make(map[string]bool, len(patterns))}
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, "*.") {
			p.suffixes = append(p.suffixes, pattern[1:])
			continue
		}
		p.exact[pattern] = true
	}
	return p
}

func (p corsPolicy) allows(origin string) bool {
	if p.exact[origin] {
		return true
	}
	host := extractHost(origin)
	for _, suffix := range p.suffixes {
		if hasSubdomain(host, suffix) {
			return true
		}
	}
	return false
}

// middleware sets the CORS headers for allowed origins and answers every
// OPTIONS request with 204.
func (p corsPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && p.allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// matchOrigin reports whether origin matches a single pattern.
func matchOrigin(origin, pattern string) bool {
	return newCORSPolicy([]string{pattern}).allows(origin)
}

// hasSubdomain matches "a.example.com" against ".example.com" but not the
// apex itself.
func hasSubdomain(host, suffix string) bool {
	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}

// extractHost returns the host of an origin without scheme, port or path.
func extractHost(origin string) string {
	_, rest, found := strings.Cut(origin, "://")
	if !found {
		rest = origin
	}
	rest, _, _ = strings.Cut(rest, "/")
	rest, _, _ = strings.Cut(rest, "?")
	host, _, _ := strings.Cut(rest, ":")
	return host
}
