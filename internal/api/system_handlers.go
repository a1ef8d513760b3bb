package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// systemStatusResponse is the shape returned by GET /system/status.
type systemStatusResponse struct {
	Provider providerStatusResponse `json:"provider"`
	Journal  journalStatsResponse   `json:"journal"`
	Uptime   uptimeResponse         `json:"uptime"`
}

type providerStatusResponse struct {
	BaseURL      string `json:"base_url"`
	CallerID     string `json:"caller_id"`
	CallbackBase string `json:"callback_base"`
	TurboEnabled bool   `json:"turbo_enabled"`
}

type journalStatsResponse struct {
	BridgeAttempts int64 `json:"bridge_attempts"`
	CallEvents     int64 `json:"call_events"`
}

type uptimeResponse struct {
	StartedAt  string `json:"started_at"`
	UptimeSec  int64  `json:"uptime_sec"`
	UptimeText string `json:"uptime_text"`
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystemStatus returns provider configuration, journal sizes, and
// uptime. Counting failures degrade to zero rather than failing the request.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	attemptCount := int64(0)
	if n, err := s.attempts.Count(ctx); err != nil {
		slog.Error("system status: failed to count bridge attempts", "error", err)
	} else {
		attemptCount = n
	}

	eventCount := int64(0)
	if n, err := s.events.Count(ctx); err != nil {
		slog.Error("system status: failed to count call events", "error", err)
	} else {
		eventCount = n
	}

	uptimeDur := time.Since(s.startTime)

	resp := systemStatusResponse{
		Provider: providerStatusResponse{
			BaseURL:      s.cfg.TwilioBaseURL,
			CallerID:     s.cfg.TwilioCallerID,
			CallbackBase: s.cfg.CallbackBaseURL,
			TurboEnabled: s.cfg.TurboEnabled(),
		},
		Journal: journalStatsResponse{
			BridgeAttempts: attemptCount,
			CallEvents:     eventCount,
		},
		Uptime: uptimeResponse{
			StartedAt:  s.startTime.Format(time.RFC3339),
			UptimeSec:  int64(uptimeDur.Seconds()),
			UptimeText: formatUptime(uptimeDur),
		},
	}

	writeJSON(w, http.StatusOK, resp)
}

// formatUptime returns a human-readable uptime string like "2d 5h 30m 12s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
