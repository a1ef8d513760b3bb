package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// SignatureValidator checks a provider signature on a webhook request.
type SignatureValidator interface {
	Validate(r *http.Request) bool
}

// RequireTwilioSignature returns middleware that rejects webhook requests
// without a valid provider signature. Anyone who knows the callback URL can
// POST to it; the signature is the only thing tying a request to the account.
func RequireTwilioSignature(v SignatureValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Validate(r) {
				slog.Warn("webhook signature rejected",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(errorEnvelope{Error: "invalid signature"}) //nolint:errcheck
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
