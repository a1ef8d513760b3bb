package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bargepoint/bargepoint/internal/api/middleware"
)

// turboSessionResponse describes the caller's standing turbo conference.
type turboSessionResponse struct {
	Conference string `json:"conference"`
	CallSID    string `json:"call_sid"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

// handleGetTurboSession returns the authenticated user's turbo session, if
// one is live. The frontend polls this to decide whether a merge will be
// instant or will need both legs redirected first.
func (s *Server) handleGetTurboSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	sess, err := s.sessions.Lookup(r.Context(), userID)
	if err != nil {
		slog.Error("turbo session lookup failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "no active turbo session")
		return
	}

	resp := turboSessionResponse{
		Conference: sess.ConferenceName,
		CallSID:    sess.CallSID,
	}
	if !sess.ExpiresAt.IsZero() {
		resp.ExpiresAt = sess.ExpiresAt.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}
