package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bargepoint/bargepoint/internal/api/middleware"
	"github.com/bargepoint/bargepoint/internal/bridge"
	"github.com/bargepoint/bargepoint/internal/config"
	"github.com/bargepoint/bargepoint/internal/database"
	"github.com/bargepoint/bargepoint/internal/session"
	"github.com/bargepoint/bargepoint/internal/twilio"
)

// BridgeService merges an invitee into a user's active call.
type BridgeService interface {
	Bridge(ctx context.Context, userID, callID string, invitee bridge.Invitee) (*bridge.BridgeResult, error)
}

// Services carries the dependencies the handlers need. Metrics may be nil,
// which leaves /metrics unmounted.
type Services struct {
	Bridge   BridgeService
	Attempts database.BridgeAttemptRepository
	Events   database.CallEventRepository
	Sessions session.Registry
	Webhooks middleware.SignatureValidator
	Metrics  http.Handler
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	jwtSecret []byte

	bridge   BridgeService
	attempts database.BridgeAttemptRepository
	events   database.CallEventRepository
	sessions session.Registry
	webhooks middleware.SignatureValidator
	metrics  http.Handler

	// silenceURL is handed to the provider as the conference hold document.
	silenceURL string
	startTime  time.Time

	apiLimiter     *middleware.IPRateLimiter
	bridgeLimiter  *middleware.IPRateLimiter
	webhookLimiter *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(cfg *config.Config, jwtSecret []byte, svc Services) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		jwtSecret: jwtSecret,

		bridge:   svc.Bridge,
		attempts: svc.Attempts,
		events:   svc.Events,
		sessions: svc.Sessions,
		webhooks: svc.Webhooks,
		metrics:  svc.Metrics,

		silenceURL: strings.TrimSuffix(cfg.CallbackBaseURL, "/") + twilio.TwiMLSilencePath,
		startTime:  time.Now(),

		apiLimiter:     middleware.NewIPRateLimiter(middleware.APILimits),
		bridgeLimiter:  middleware.NewIPRateLimiter(middleware.BridgeLimits),
		webhookLimiter: middleware.NewIPRateLimiter(middleware.WebhookLimits),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiters' background cleanup goroutines.
func (s *Server) Close() {
	s.apiLimiter.Stop()
	s.bridgeLimiter.Stop()
	s.webhookLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(s.cfg.TLSEnabled()))
	if origins := middleware.ParseCORSOrigins(s.cfg.CORSOrigins); len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	// CRM-facing API, JWT-authenticated.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.apiLimiter))
		r.Use(middleware.RequireAuth(s.jwtSecret))

		r.With(middleware.RateLimit(s.bridgeLimiter)).Post("/bridges", s.handleCreateBridge)
		r.Get("/bridges", s.handleListBridgeAttempts)
		r.Get("/call-events", s.handleListCallEvents)
		r.Get("/turbo-session", s.handleGetTurboSession)
		r.Get("/system/status", s.handleSystemStatus)
	})

	// Provider-facing endpoints, authenticated by request signature.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.webhookLimiter))
		r.Use(middleware.RequireTwilioSignature(s.webhooks))

		r.Post(twilio.TwiMLConferencePath+"/{conference}", s.handleConferenceTwiML)
		// The hold document is fetched with the conference's wait method,
		// which operators may flip between GET and POST.
		r.Get(twilio.TwiMLSilencePath, s.handleTwiMLSilence)
		r.Post(twilio.TwiMLSilencePath, s.handleTwiMLSilence)
		r.Post(twilio.StatusWebhookPath, s.handleCallStatus)
	})

	slog.Info("api routes mounted")
}
