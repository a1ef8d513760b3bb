package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bargepoint/bargepoint/internal/database/models"
	"github.com/bargepoint/bargepoint/internal/twilio"
)

// writeTwiML serves a TwiML document. Twilio treats any non-2xx response as
// a fatal application error on the call, so failures here drop legs.
func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		slog.Error("failed to write twiml response", "error", err)
	}
}

// handleConferenceTwiML answers a redirected or freshly dialed leg with a
// <Dial><Conference> document placing it into the named conference.
func (s *Server) handleConferenceTwiML(w http.ResponseWriter, r *http.Request) {
	conference := chi.URLParam(r, "conference")
	if conference == "" {
		writeError(w, http.StatusBadRequest, "conference name is required")
		return
	}
	if errMsg := validateStringLen("conference", conference, maxConferenceNameLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateNoControlChars("conference", conference); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	doc, err := twilio.ConferenceJoinTwiML(conference, s.silenceURL)
	if err != nil {
		slog.Error("failed to render conference twiml", "conference", conference, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeTwiML(w, doc)
}

// handleTwiMLSilence serves the hold document a conference plays while a
// participant waits alone. Plain silence instead of hold music keeps the
// merge inaudible to the lead.
func (s *Server) handleTwiMLSilence(w http.ResponseWriter, r *http.Request) {
	doc, err := twilio.SilenceTwiML()
	if err != nil {
		slog.Error("failed to render silence twiml", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeTwiML(w, doc)
}

// handleCallStatus journals a provider status callback. The provider retries
// on non-2xx, so this always acknowledges once the form parses.
func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	// The signature middleware already parsed the form while validating.
	callSID := r.PostFormValue("CallSid")
	if callSID == "" {
		writeError(w, http.StatusBadRequest, "CallSid is required")
		return
	}

	seq, _ := strconv.Atoi(r.PostFormValue("SequenceNumber"))

	event := &models.CallEvent{
		CallSID:    callSID,
		Conference: r.URL.Query().Get("conference"),
		Status:     r.PostFormValue("CallStatus"),
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		Sequence:   seq,
		ReceivedAt: time.Now().UTC(),
	}

	if err := s.events.Create(r.Context(), event); err != nil {
		slog.Error("failed to journal call event", "call_sid", callSID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Debug("call status recorded",
		"call_sid", callSID,
		"status", event.Status,
		"conference", event.Conference,
		"sequence", event.Sequence,
	)

	w.WriteHeader(http.StatusNoContent)
}
