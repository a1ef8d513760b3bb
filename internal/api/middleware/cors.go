package middleware

import (
	"net/http"
	"strings"
)

// originSet is the parsed allow list. The wildcard swallows everything.
type originSet struct {
	wildcard bool
	exact    map[string]bool
}

func newOriginSet(origins []string) originSet {
	s := originSet{exact: make(map[string]bool, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "*":
			s.wildcard = true
		case o != "":
			s.exact[o] = true
		}
	}
	return s
}

// allowValue returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (s originSet) allowValue(origin string) string {
	switch {
	case origin == "":
		return ""
	case s.wildcard:
		return "*"
	case s.exact[origin]:
		return origin
	default:
		return ""
	}
}

// CORS lets the CRM's browser frontend call this API directly. origins is
// the allow list; "*" allows everyone (development only) and an empty list
// disables CORS, so no allow headers are ever sent. Auth is a bearer token,
// not a cookie, so credentials support is not offered.
func CORS(origins []string) func(http.Handler) http.Handler {
	set := newOriginSet(origins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allow := set.allowValue(r.Header.Get("Origin")); allow != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allow)
				if allow != "*" {
					h.Set("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
				h.Set("Access-Control-Max-Age", "300")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ParseCORSOrigins splits the comma-separated config value into origins.
// Empty input returns nil.
func ParseCORSOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			origins = append(origins, part)
		}
	}
	return origins
}
