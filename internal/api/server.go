// Package api serves the webhook intake, the operator status endpoints and the
// live status stream.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/geckopulse/engine/internal/config"
	"github.com/geckopulse/engine/internal/ingest"
	"github.com/geckopulse/engine/internal/pipeline"
	"github.com/geckopulse/engine/internal/store"
)

// maxWebhookBody caps the size of one webhook batch.
const maxWebhookBody = 8 << 20

// TestMessage is sent by the admin test endpoint.
const TestMessage = "Test message from GeckoPulse."

// TextSender delivers a plain text message. The Telegram notifier satisfies it.
type TextSender interface {
	SendText(ctx context.Context, text string) error
}

// StatusResponse is the payload of /api/status and of every stream push.
type StatusResponse struct {
	Stats          pipeline.Status       `json:"stats"`
	RecentSales    []store.RecentSale    `json:"recent_sales"`
	RecentListings []store.RecentListing `json:"recent_listings"`
	EventRate      float64               `json:"event_rate"`
	Uptime         string                `json:"uptime"`
}

// WebhookResponse is returned for every accepted webhook batch.
type WebhookResponse struct {
	BatchID  string `json:"batch_id"`
	Received int    `json:"received"`
	Sent     int    `json:"sent"`
}

// SimulateResponse reports the outcome of a simulated event.
type SimulateResponse struct {
	Kind      string   `json:"kind"`
	Mint      string   `json:"mint"`
	Tags      []string `json:"tags"`
	Delivered bool     `json:"delivered"`
	Notice    string   `json:"notice,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Server provides the HTTP surface of the sales engine.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	tester   TextSender
	hub      *StreamHub
	router   *mux.Router
}

// NewServer creates a server for p. tester may be nil when Telegram is not
// configured.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, tester TextSender) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		tester:   tester,
		router:   mux.NewRouter(),
	}
	s.hub = NewStreamHub(s.statusResponse, DefaultStreamInterval)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestLogger)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc(pipeline.WebhookPath, s.handleWebhook).Methods("POST")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/stream", s.handleStream)

	// Admin
	api.Handle("/config", s.requireAdmin(http.HandlerFunc(s.handleConfig))).Methods("GET")
	api.Handle("/simulate/sale", s.requireAdmin(http.HandlerFunc(s.handleSimulateSale))).Methods("POST")
	api.Handle("/simulate/listing", s.requireAdmin(http.HandlerFunc(s.handleSimulateListing))).Methods("POST")
	api.Handle("/test", s.requireAdmin(http.HandlerFunc(s.handleTest))).Methods("POST")
	api.Handle("/mintlist/reload", s.requireAdmin(http.HandlerFunc(s.handleReloadMintlist))).Methods("POST")
}

// Run starts the stream hub and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http_shutdown_failed", "error", err)
		}
	}()

	slog.Info("http_server_starting", "port", s.cfg.HTTPPort, "webhook", pipeline.WebhookPath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Router returns the HTTP router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the live status hub.
func (s *Server) Hub() *StreamHub {
	return s.hub
}

func (s *Server) statusResponse() StatusResponse {
	snap := s.pipeline.Tracker().Snapshot()
	return StatusResponse{
		Stats:          s.pipeline.Status(),
		RecentSales:    snap.RecentSales,
		RecentListings: snap.RecentListings,
		EventRate:      snap.EventRate,
		Uptime:         snap.Uptime.Truncate(time.Second).String(),
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("http_write_failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http_request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// requireAdmin guards next with basic auth against the configured admin
// credentials. Without credentials the admin surface is unavailable.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.AdminConfigured() {
			writeError(w, http.StatusServiceUnavailable, "Admin credentials not configured")
			return
		}

		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.AdminUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.AdminPassword)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="geckopulse"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"watch_mints": s.pipeline.WatchMints(),
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	events, err := ingest.ParseBatch(body)
	if err != nil {
		slog.Debug("webhook_rejected", "error", err)
		writeError(w, http.StatusBadRequest, "Expected list payload")
		return
	}

	batchID := uuid.NewString()
	result := s.pipeline.ProcessBatch(r.Context(), batchID, events)
	writeJSON(w, http.StatusOK, WebhookResponse{
		BatchID:  batchID,
		Received: result.Received,
		Sent:     result.Sent,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusResponse())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("stream_upgrade_failed", "error", err)
		return
	}
	s.hub.Register(conn)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.ConfigSnapshot())
}

func (s *Server) handleSimulateSale(w http.ResponseWriter, r *http.Request) {
	a, err := s.pipeline.SimulateSale(r.Context())
	writeJSON(w, http.StatusOK, simulateResponse(a, err, "Simulated sale added."))
}

func (s *Server) handleSimulateListing(w http.ResponseWriter, r *http.Request) {
	a, err := s.pipeline.SimulateListing(r.Context())
	resp := simulateResponse(a, err, "Simulated listing added.")
	if err == nil && !s.cfg.SendListingAlerts {
		resp.Delivered = false
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if s.tester == nil {
		writeError(w, http.StatusServiceUnavailable, "Missing TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID.")
		return
	}
	if err := s.tester.SendText(r.Context(), TestMessage); err != nil {
		writeError(w, http.StatusBadGateway, "Telegram error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"notice": "Test message sent."})
}

func (s *Server) handleReloadMintlist(w http.ResponseWriter, r *http.Request) {
	added, err := s.pipeline.ReloadMintlist(r.Context())
	switch {
	case errors.Is(err, ingest.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, "WATCH_MINTLIST_URL not set")
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"added":       added,
		"watch_mints": s.pipeline.WatchMints(),
	})
}

func simulateResponse(a store.Alert, err error, notice string) SimulateResponse {
	resp := SimulateResponse{
		Kind:      a.Kind,
		Mint:      a.NFT.Mint,
		Tags:      a.Tags,
		Delivered: err == nil,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}

	switch {
	case err == nil:
		resp.Notice = notice
	case errors.Is(err, pipeline.ErrNoNotifier):
		resp.Error = "Missing TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID."
	case err != nil:
		resp.Error = "Telegram error: " + err.Error()
	}
	return resp
}
