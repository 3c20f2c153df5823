package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staysync/internal/config"
	"staysync/internal/database"
	"staysync/internal/domain"
	"staysync/internal/metrics"
	"staysync/internal/service"
)

// SyncTrigger starts a manual sync pass outside the schedule.
type SyncTrigger interface {
	TriggerSync(ctx context.Context) (*service.SyncResult, error)
}

// HTTPServer exposes the read API for bookings, conflicts, actions and sync
// history, plus the manual sync trigger.
type HTTPServer struct {
	cfg        config.APIConfig
	db         *database.DB
	detector   *service.ConflictDetector
	actions    *service.ActionService
	trigger    SyncTrigger
	state      domain.StateRepository
	propertyID int64
	logger     *zerolog.Logger
	server     *http.Server
	auth       *HTTPAuth
}

func NewHTTPServer(
	cfg config.APIConfig,
	db *database.DB,
	detector *service.ConflictDetector,
	actions *service.ActionService,
	trigger SyncTrigger,
	state domain.StateRepository,
	propertyID int64,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:        cfg,
		db:         db,
		detector:   detector,
		actions:    actions,
		trigger:    trigger,
		state:      state,
		propertyID: propertyID,
		logger:     logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/current", srv.handleCurrentBooking)
	mux.HandleFunc("/api/v1/bookings/upcoming", srv.handleUpcomingBookings)
	mux.HandleFunc("/api/v1/conflicts", srv.handleConflicts)
	mux.HandleFunc("/api/v1/conflicts/summary", srv.handleConflictSummary)
	mux.HandleFunc("/api/v1/conflicts/", srv.handleConflictByID)
	mux.HandleFunc("/api/v1/actions", srv.handleActions)
	mux.HandleFunc("/api/v1/actions/", srv.handleActionByID)
	mux.HandleFunc("/api/v1/sync/logs", srv.handleSyncLogs)
	mux.HandleFunc("/api/v1/sync/trigger", srv.handleSyncTrigger)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the full middleware-wrapped handler. Used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// pathID extracts the numeric id and trailing action from paths like
// /api/v1/actions/42/complete. The action segment may be empty.
func pathID(path, prefix string) (int64, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return 0, "", fmt.Errorf("id is required")
	}

	idPart := rest
	action := ""
	if i := strings.Index(rest, "/"); i >= 0 {
		idPart = rest[:i]
		action = rest[i+1:]
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid id %q", idPart)
	}
	return id, action, nil
}

func queryLimit(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
