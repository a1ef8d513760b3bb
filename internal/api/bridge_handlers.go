package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bargepoint/bargepoint/internal/api/middleware"
	"github.com/bargepoint/bargepoint/internal/bridge"
	"github.com/bargepoint/bargepoint/internal/database"
	"github.com/bargepoint/bargepoint/internal/database/models"
)

// bridgeRequest is the JSON body for POST /api/v1/bridges.
type bridgeRequest struct {
	CallSID        string `json:"call_sid"`
	InviteeAddress string `json:"invitee_address"`
	InviteeName    string `json:"invitee_name"`
}

// movedLegResponse reports one leg that reached the conference.
type movedLegResponse struct {
	Role     string `json:"role"`
	CallSID  string `json:"call_sid"`
	Redialed bool   `json:"redialed,omitempty"`
}

// failedLegResponse reports one leg lost during the bridge.
type failedLegResponse struct {
	Role    string `json:"role"`
	CallSID string `json:"call_sid"`
	Error   string `json:"error"`
}

// bridgeResponse is the JSON response for a completed bridge attempt.
type bridgeResponse struct {
	Conference     string              `json:"conference"`
	Mode           string              `json:"mode"`
	Topology       string              `json:"topology,omitempty"`
	Outcome        string              `json:"outcome"`
	InviteeCallSID string              `json:"invitee_call_sid"`
	MovedLegs      []movedLegResponse  `json:"moved_legs"`
	FailedLegs     []failedLegResponse `json:"failed_legs,omitempty"`
	DurationMS     int64               `json:"duration_ms"`
}

// toBridgeResponse converts an orchestrator result to the API response.
func toBridgeResponse(res *bridge.BridgeResult, durationMS int64) bridgeResponse {
	resp := bridgeResponse{
		Conference:     res.ConferenceName,
		Mode:           res.Mode(),
		Topology:       string(res.Topology),
		Outcome:        res.Outcome(),
		InviteeCallSID: res.InviteeCallID,
		MovedLegs:      make([]movedLegResponse, 0, len(res.Moved)),
		DurationMS:     durationMS,
	}
	for _, m := range res.Moved {
		resp.MovedLegs = append(resp.MovedLegs, movedLegResponse{
			Role:     string(m.Role),
			CallSID:  m.CallID,
			Redialed: m.Redialed,
		})
	}
	for _, f := range res.RedirectFailures {
		resp.FailedLegs = append(resp.FailedLegs, failedLegResponse{
			Role:    string(f.Role),
			CallSID: f.CallID,
			Error:   f.Err.Error(),
		})
	}
	return resp
}

// handleCreateBridge merges a colleague into the caller's active call.
func (s *Server) handleCreateBridge(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req bridgeRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if errMsg := validateCallSID("call_sid", req.CallSID); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateDialTarget("invitee_address", req.InviteeAddress); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateStringLen("invitee_name", req.InviteeName, maxNameLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateNoControlChars("invitee_name", req.InviteeName); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	invitee := bridge.Invitee{
		Address:     req.InviteeAddress,
		DisplayName: req.InviteeName,
	}

	start := time.Now()
	result, err := s.bridge.Bridge(r.Context(), userID, req.CallSID, invitee)
	durationMS := time.Since(start).Milliseconds()

	s.journalAttempt(userID, req, result, err, durationMS)

	if err != nil {
		status, msg := bridgeErrorStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("bridge failed",
				"user_id", userID,
				"call_sid", req.CallSID,
				"error", err,
			)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, toBridgeResponse(result, durationMS))
}

// bridgeErrorStatus maps orchestrator errors onto HTTP responses.
func bridgeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, bridge.ErrCallNotFound):
		return http.StatusNotFound, "call not found"
	case errors.Is(err, bridge.ErrCallNotActive):
		return http.StatusConflict, "call is not active"
	case errors.Is(err, bridge.ErrDialFailed):
		return http.StatusBadGateway, "invitee dial failed"
	case errors.Is(err, bridge.ErrProviderTimeout):
		return http.StatusGatewayTimeout, "provider request timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// journalAttempt records the attempt regardless of outcome. It uses a fresh
// context so the journal row survives a client disconnect mid-bridge.
func (s *Server) journalAttempt(userID string, req bridgeRequest, result *bridge.BridgeResult, bridgeErr error, durationMS int64) {
	attempt := &models.BridgeAttempt{
		UserID:         userID,
		CallSID:        req.CallSID,
		Mode:           bridge.ModeFresh,
		InviteeAddress: req.InviteeAddress,
		DurationMS:     durationMS,
		CreatedAt:      time.Now().UTC(),
	}

	if result != nil {
		attempt.Conference = result.ConferenceName
		attempt.Mode = result.Mode()
		attempt.Topology = string(result.Topology)
		attempt.InviteeCallSID = result.InviteeCallID
		attempt.Outcome = result.Outcome()
	}
	if bridgeErr != nil {
		attempt.Outcome = bridge.OutcomeFailed
		attempt.Error = bridgeErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.attempts.Create(ctx, attempt); err != nil {
		slog.Error("failed to journal bridge attempt",
			"user_id", userID,
			"call_sid", req.CallSID,
			"error", err,
		)
	}
}

// bridgeAttemptResponse is the JSON shape of one journal row.
type bridgeAttemptResponse struct {
	ID             int64  `json:"id"`
	UserID         string `json:"user_id"`
	CallSID        string `json:"call_sid"`
	Conference     string `json:"conference,omitempty"`
	Mode           string `json:"mode"`
	Topology       string `json:"topology,omitempty"`
	InviteeAddress string `json:"invitee_address"`
	InviteeCallSID string `json:"invitee_call_sid,omitempty"`
	Outcome        string `json:"outcome"`
	Error          string `json:"error,omitempty"`
	DurationMS     int64  `json:"duration_ms"`
	CreatedAt      string `json:"created_at"`
}

func toBridgeAttemptResponse(a *models.BridgeAttempt) bridgeAttemptResponse {
	return bridgeAttemptResponse{
		ID:             a.ID,
		UserID:         a.UserID,
		CallSID:        a.CallSID,
		Conference:     a.Conference,
		Mode:           a.Mode,
		Topology:       a.Topology,
		InviteeAddress: a.InviteeAddress,
		InviteeCallSID: a.InviteeCallSID,
		Outcome:        a.Outcome,
		Error:          a.Error,
		DurationMS:     a.DurationMS,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
}

// handleListBridgeAttempts returns journal rows with pagination and filters.
// Query params: limit, offset, user_id, call_sid, outcome.
func (s *Server) handleListBridgeAttempts(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	q := r.URL.Query()
	outcome := q.Get("outcome")
	if outcome != "" && outcome != bridge.OutcomeOK && outcome != bridge.OutcomePartial && outcome != bridge.OutcomeFailed {
		writeError(w, http.StatusBadRequest, "outcome must be \"ok\", \"partial\", or \"failed\"")
		return
	}

	filter := database.BridgeAttemptFilter{
		UserID:  q.Get("user_id"),
		CallSID: q.Get("call_sid"),
		Outcome: outcome,
		Limit:   pg.Limit,
		Offset:  pg.Offset,
	}

	attempts, total, err := s.attempts.List(r.Context(), filter)
	if err != nil {
		slog.Error("list bridge attempts: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]bridgeAttemptResponse, len(attempts))
	for i := range attempts {
		items[i] = toBridgeAttemptResponse(&attempts[i])
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}
