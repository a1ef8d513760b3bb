package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bargepoint/bargepoint/internal/database"
	"github.com/bargepoint/bargepoint/internal/database/models"
)

// callEventResponse is the JSON shape of one provider status callback row.
type callEventResponse struct {
	ID         int64  `json:"id"`
	CallSID    string `json:"call_sid"`
	Conference string `json:"conference,omitempty"`
	Status     string `json:"status"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Sequence   int    `json:"sequence"`
	ReceivedAt string `json:"received_at"`
}

func toCallEventResponse(e *models.CallEvent) callEventResponse {
	return callEventResponse{
		ID:         e.ID,
		CallSID:    e.CallSID,
		Conference: e.Conference,
		Status:     e.Status,
		From:       e.From,
		To:         e.To,
		Sequence:   e.Sequence,
		ReceivedAt: e.ReceivedAt.Format(time.RFC3339),
	}
}

// handleListCallEvents returns recorded call status events with pagination.
// Query params: limit, offset, call_sid, conference, status.
func (s *Server) handleListCallEvents(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	q := r.URL.Query()
	filter := database.CallEventFilter{
		CallSID:    q.Get("call_sid"),
		Conference: q.Get("conference"),
		Status:     q.Get("status"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	}

	events, total, err := s.events.List(r.Context(), filter)
	if err != nil {
		slog.Error("list call events: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]callEventResponse, len(events))
	for i := range events {
		items[i] = toCallEventResponse(&events[i])
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}
