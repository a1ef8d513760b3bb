package middleware

import (
	"net"
	"net/http"
)

// HTTPSRedirect returns a handler that sends every request to the same URL
// over HTTPS. It runs on the plain HTTP listener that also answers ACME
// challenges, so anything that is not a challenge gets bounced to TLS.
func HTTPSRedirect() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}
