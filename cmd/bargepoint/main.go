package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/acme/autocert"

	"github.com/bargepoint/bargepoint/internal/api"
	"github.com/bargepoint/bargepoint/internal/api/middleware"
	"github.com/bargepoint/bargepoint/internal/bridge"
	"github.com/bargepoint/bargepoint/internal/config"
	"github.com/bargepoint/bargepoint/internal/database"
	"github.com/bargepoint/bargepoint/internal/metrics"
	"github.com/bargepoint/bargepoint/internal/session"
	"github.com/bargepoint/bargepoint/internal/twilio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting bargepoint",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
		"turbo", cfg.TurboEnabled(),
	)

	// Open the journal database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	attempts := database.NewBridgeAttemptRepository(db)
	events := database.NewCallEventRepository(db)

	// Turbo session registry: the dialer's shared PostgreSQL table when one
	// is configured, otherwise an empty in-memory registry so every attempt
	// takes the fresh path.
	var sessions session.Registry = session.NewMemoryRegistry()
	if cfg.TurboEnabled() {
		pg, err := session.OpenPG(cfg.TurboSessionDSN)
		if err != nil {
			slog.Error("failed to open turbo session registry", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		sessions = pg
	}

	// Provider gateway.
	gw, err := twilio.New(twilio.Config{
		AccountSID:      cfg.TwilioAccountSID,
		AuthToken:       cfg.TwilioAuthToken,
		BaseURL:         cfg.TwilioBaseURL,
		CallbackBaseURL: cfg.CallbackBaseURL,
		RequestTimeout:  cfg.TwilioTimeout(),
	}, logger)
	if err != nil {
		slog.Error("failed to create provider gateway", "error", err)
		os.Exit(1)
	}

	// Bridge pipeline.
	resolver := bridge.NewResolver(gw, logger)
	redirector := bridge.NewRedirector(gw, bridge.RedirectorConfig{
		CallerID:     cfg.TwilioCallerID,
		SettleDelay:  cfg.SettleDelay(),
		PollAttempts: cfg.SettlePollAttempts,
		PollInterval: cfg.SettlePollInterval(),
	}, logger)
	dialer := bridge.NewDialer(gw, bridge.DialerConfig{
		CallerID:           cfg.TwilioCallerID,
		RingTimeoutSeconds: cfg.DialRingTimeoutSec,
	}, logger)
	orch := bridge.NewOrchestrator(resolver, redirector, dialer, sessions, logger)

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		slog.Error("failed to load jwt secret", "error", err)
		os.Exit(1)
	}

	// Prometheus registry with the scrape-time collector.
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(
		&bridgeStatsAdapter{orch: orch},
		attempts,
		events,
		time.Now(),
	))

	validator := twilio.NewWebhookValidator(cfg.TwilioAuthToken, cfg.CallbackBaseURL)

	handler := api.NewServer(cfg, jwtSecret, api.Services{
		Bridge:   orch,
		Attempts: attempts,
		Events:   events,
		Sessions: sessions,
		Webhooks: validator,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		if err := serve(srv, cfg); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("bargepoint stopped")
}

// serve starts the listener in whichever TLS mode the config selects: ACME
// with automatic certificates, static certificate files, or plain HTTP
// behind a terminating proxy.
func serve(srv *http.Server, cfg *config.Config) error {
	switch {
	case cfg.ACMEDomain != "":
		mgr := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.ACMEDomain),
			Cache:      autocert.DirCache(filepath.Join(cfg.DataDir, "acme")),
			Email:      cfg.ACMEEmail,
		}
		srv.TLSConfig = mgr.TLSConfig()

		// Port 80 answers ACME HTTP-01 challenges and redirects the rest.
		go func() {
			redirect := &http.Server{
				Addr:         ":80",
				Handler:      mgr.HTTPHandler(middleware.HTTPSRedirect()),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 5 * time.Second,
			}
			if err := redirect.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("acme http listener error", "error", err)
			}
		}()

		slog.Info("https server listening", "addr", srv.Addr, "acme_domain", cfg.ACMEDomain)
		return srv.ListenAndServeTLS("", "")

	case cfg.TLSEnabled():
		slog.Info("https server listening", "addr", srv.Addr)
		return srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)

	default:
		slog.Info("http server listening", "addr", srv.Addr)
		return srv.ListenAndServe()
	}
}

// bridgeStatsAdapter exposes the orchestrator's counters to the metrics
// collector, converting between bridge and metrics types.
type bridgeStatsAdapter struct {
	orch *bridge.Orchestrator
}

func (a *bridgeStatsAdapter) BridgeCounters() metrics.BridgeCounters {
	s := a.orch.Stats()
	return metrics.BridgeCounters{
		TurboHits:   s.TurboHits,
		TurboMisses: s.TurboMisses,
		TurboErrors: s.TurboErrors,

		FreshOK:      s.FreshOK,
		FreshPartial: s.FreshPartial,
		FreshFailed:  s.FreshFailed,
		TurboOK:      s.TurboOK,
		TurboFailed:  s.TurboFailed,

		BrowserMoved:  s.BrowserMoved,
		BrowserFailed: s.BrowserFailed,
		LeadMoved:     s.LeadMoved,
		LeadFailed:    s.LeadFailed,
		FallbackDials: s.FallbackDials,

		InviteeDialsOK:     s.InviteeDialsOK,
		InviteeDialsFailed: s.InviteeDialsFailed,
	}
}
