package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// serveCORS runs one request with the given Origin header through the
// middleware and returns the recorded response.
func serveCORS(t *testing.T, origins []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	h := CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/v1/turbo-session", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	w := serveCORS(t, []string{"https://crm.example.com"}, http.MethodGet, "https://crm.example.com")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://crm.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("Vary = %q, want Origin", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("Allow-Methods = %q", got)
	}
	// Bearer auth, so credentialed CORS is never offered.
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("Allow-Credentials = %q, want unset", got)
	}
}

func TestCORSWildcard(t *testing.T) {
	w := serveCORS(t, []string{"*"}, http.MethodGet, "https://anywhere.example.com")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q, want *", got)
	}
	// The wildcard answer does not depend on the request origin.
	if got := w.Header().Get("Vary"); got != "" {
		t.Fatalf("Vary = %q, want unset", got)
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	w := serveCORS(t, []string{"https://crm.example.com"}, http.MethodGet, "https://evil.example.com")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin = %q for a disallowed origin", got)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, the request itself is still served", w.Code)
	}
}

func TestCORSSecondConfiguredOrigin(t *testing.T) {
	origins := []string{"https://crm.example.com", "https://staging.example.com"}
	w := serveCORS(t, origins, http.MethodGet, "https://staging.example.com")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://staging.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
}

func TestCORSNoOriginHeader(t *testing.T) {
	w := serveCORS(t, []string{"*"}, http.MethodGet, "")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin = %q on a same-origin request", got)
	}
}

func TestCORSEmptyAllowListStaysSilent(t *testing.T) {
	w := serveCORS(t, nil, http.MethodGet, "https://crm.example.com")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin = %q with CORS disabled", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	called := false
	h := CORS([]string{"https://crm.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bridges", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", w.Code)
	}
	if called {
		t.Fatal("preflight reached the handler")
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "300" {
		t.Fatalf("Max-Age = %q, want 300", got)
	}
}

func TestParseCORSOrigins(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"https://a.example.com", []string{"https://a.example.com"}},
		{"https://a.example.com, https://b.example.com", []string{"https://a.example.com", "https://b.example.com"}},
		{"https://a.example.com,,", []string{"https://a.example.com"}},
		{"*", []string{"*"}},
	}
	for _, tt := range tests {
		if got := ParseCORSOrigins(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseCORSOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
