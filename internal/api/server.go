package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"openhours/internal/models"
	"openhours/internal/repository"
	"openhours/internal/service"
)

// AvailabilityService is the subset of the service the API drives.
type AvailabilityService interface {
	ToggleOpen(ctx context.Context, businessID string) (bool, error)
	SaveSchedule(ctx context.Context, businessID string, schedule models.WeeklySchedule) error
	Schedule(ctx context.Context, businessID string) (models.WeeklySchedule, error)
	Status(ctx context.Context, businessID string) (service.StatusReport, error)
}

// Config holds HTTP server settings.
type Config struct {
	Port int
	// ToggleRate and ToggleBurst bound manual toggles per business.
	ToggleRate  float64
	ToggleBurst int
}

// HTTPServer exposes the availability service over JSON.
type HTTPServer struct {
	server *http.Server
	svc    AvailabilityService
	config Config
	logger *zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewHTTPServer(cfg Config, svc AvailabilityService, logger *zerolog.Logger) *HTTPServer {
	if cfg.ToggleRate <= 0 {
		cfg.ToggleRate = 5
	}
	if cfg.ToggleBurst <= 0 {
		cfg.ToggleBurst = 10
	}
	l := logger.With().Str("component", "api").Logger()

	s := &HTTPServer{
		svc:      svc,
		config:   cfg,
		logger:   &l,
		limiters: make(map[string]*rate.Limiter),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/businesses/{id}/availability", s.handleGetAvailability)
	mux.HandleFunc("POST /api/v1/businesses/{id}/toggle", s.handleToggle)
	mux.HandleFunc("GET /api/v1/businesses/{id}/schedule", s.handleGetSchedule)
	mux.HandleFunc("PUT /api/v1/businesses/{id}/schedule", s.handlePutSchedule)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) toggleLimiter(businessID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[businessID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.config.ToggleRate), s.config.ToggleBurst)
		s.limiters[businessID] = l
	}
	return l
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownBusiness):
		writeError(w, http.StatusNotFound, "business not found")
	case errors.Is(err, repository.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
		writeError(w, http.StatusServiceUnavailable, "store unavailable, try again")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
