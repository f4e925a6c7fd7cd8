// Package server exposes summaries and counts over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/plexus-ai/plexus-metrics/internal/logger"
	"github.com/plexus-ai/plexus-metrics/internal/models"
)

// MaxHours caps the summary length a single request may ask for.
const MaxHours = 24 * 31

// Backend is the subset of the service manager the API serves from.
type Backend interface {
	Accounts() []models.Account
	Summary(ctx context.Context, accountID string, selector models.EntitySelector, hours int) (*models.Summary, error)
	Count(ctx context.Context, accountID string, window models.TimeWindow, selector models.EntitySelector) (models.CountResult, error)
	CacheStats(ctx context.Context) (*models.CacheStats, error)
}

// CountResponse is the JSON body of the count endpoint.
type CountResponse struct {
	Start        time.Time             `json:"start"`
	End          time.Time             `json:"end"`
	AccountID    string                `json:"accountId"`
	Count        int64                 `json:"count"`
	PagesFailed  int                   `json:"pagesFailed"`
	Entity       models.EntitySelector `json:"entity"`
	Partial      bool                  `json:"partial"`
	LimitReached bool                  `json:"limitReached"`
}

// Server is the HTTP API.
type Server struct {
	backend      Backend
	httpServer   *http.Server
	defaultHours int
}

// New builds the router and an http.Server listening on addr.
func New(backend Backend, addr string, defaultHours int) *Server {
	s := &Server{backend: backend, defaultHours: defaultHours}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/accounts", s.handleAccounts)
		v1.Get("/accounts/{accountID}/summary", s.handleSummary)
		v1.Get("/accounts/{accountID}/count", s.handleCount)
		v1.Get("/cache/stats", s.handleCacheStats)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accounts": s.backend.Accounts()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(chi.URLParam(r, "accountID"))
	selector, err := parseSelector(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	hours := s.defaultHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		hours, err = strconv.Atoi(raw)
		if err != nil || hours < 0 || hours > MaxHours {
			writeError(w, http.StatusBadRequest, fmt.Errorf("hours must be an integer between 0 and %d", MaxHours))
			return
		}
	}

	summary, err := s.backend.Summary(r.Context(), accountID, selector, hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(chi.URLParam(r, "accountID"))
	selector, err := parseSelector(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start, err := parseTime(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseTime(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	window, err := models.NewTimeWindow(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.backend.Count(r.Context(), accountID, window, selector)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{
		Start:        window.Start,
		End:          window.End,
		AccountID:    accountID,
		Count:        result.Count,
		PagesFailed:  result.PagesFailed,
		Entity:       selector,
		Partial:      result.Partial(),
		LimitReached: result.LimitReached,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.CacheStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseSelector(r *http.Request) (models.EntitySelector, error) {
	raw := r.URL.Query().Get("entity")
	if raw == "" {
		return models.ItemsCreated, nil
	}
	return models.ParseEntitySelector(raw)
}

func parseTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", name)
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger logs each request through the shared slog logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}
