package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"courtboard/internal/config"
	"courtboard/internal/layout"
	appLog "courtboard/internal/log"
	"courtboard/internal/model"
	"courtboard/internal/schedule"
)

const invalidDateMessage = "Invalid date format. Use YYYY-MM-DD"

// ScheduleBuilder produces the schedule of one date.
type ScheduleBuilder interface {
	DaySchedule(ctx context.Context, date string) (model.DaySchedule, error)
}

// BoardSource exposes the board kept current by the refresher.
type BoardSource interface {
	Latest() (layout.Board, bool)
}

// Deps are the collaborators the HTTP layer reads from.
type Deps struct {
	Schedules ScheduleBuilder
	Board     BoardSource
	Grid      layout.Grid
	Location  *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the read-only schedule API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router *mux.Router
	courts []layout.Court
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: mux.NewRouter(),
		courts: Courts(cfg.Courts),
	}
	s.registerRoutes()
	return s
}

// Courts converts configured courts into board columns, keeping order.
func Courts(cc []config.CourtConfig) []layout.Court {
	out := make([]layout.Court, 0, len(cc))
	for _, c := range cc {
		out = append(out, layout.Court{ID: c.ID, Name: c.Name})
	}
	return out
}

// Handler returns the root http.Handler: access logging, optional basic
// auth, then the router.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return LoggingMiddleware(appLog.Logger(), h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Courtboard", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodGet)
	api.HandleFunc("/layout", s.handleLayout).Methods(http.MethodGet)
	api.HandleFunc("/board", s.handleBoard).Methods(http.MethodGet)
	api.HandleFunc("/courts", s.handleCourts).Methods(http.MethodGet)
	api.HandleFunc("/legend", s.handleLegend).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSchedule returns the merged schedule of one date.
//
// GET /api/schedule?date=YYYY-MM-DD
//   - date: defaults to today in the venue timezone
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	day, ok := s.buildSchedule(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// handleLayout computes a fresh board for one date.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	day, ok := s.buildSchedule(w, r)
	if !ok {
		return
	}
	now := s.deps.Now().In(s.deps.Location)
	writeJSON(w, http.StatusOK, layout.Compute(day, s.deps.Grid, s.courts, now))
}

// buildSchedule resolves the date parameter and runs the aggregation. It
// writes the error response itself and reports whether to continue.
func (s *Server) buildSchedule(w http.ResponseWriter, r *http.Request) (model.DaySchedule, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = schedule.Today(s.deps.Now(), s.deps.Location)
	}

	day, err := s.deps.Schedules.DaySchedule(r.Context(), date)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, invalidDateMessage)
			return model.DaySchedule{}, false
		}
		appLog.Error("schedule build failed", err, "date", date)
		writeError(w, http.StatusInternalServerError, "failed to build schedule")
		return model.DaySchedule{}, false
	}
	return day, true
}

// handleBoard serves the refresher's latest board.
func (s *Server) handleBoard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if s.deps.Board == nil {
		writeError(w, http.StatusServiceUnavailable, "board refresher disabled")
		return
	}
	board, ok := s.deps.Board.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "board not ready")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// courtDTO is the JSON shape of /api/courts entries.
type courtDTO struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	FallbackColor string `json:"fallbackColor"`
}

func (s *Server) handleCourts(w http.ResponseWriter, _ *http.Request) {
	out := make([]courtDTO, 0, len(s.cfg.Courts))
	for _, c := range s.cfg.Courts {
		out = append(out, courtDTO{
			ID:            c.ID,
			Name:          c.Name,
			Kind:          c.Kind,
			FallbackColor: c.FallbackColor,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// legendDTO is one booking type of the board legend.
type legendDTO struct {
	Label  string `json:"label"`
	Phrase string `json:"phrase"`
	Color  string `json:"color"`
}

// handleLegend lists the classify rules in match order.
func (s *Server) handleLegend(w http.ResponseWriter, _ *http.Request) {
	out := make([]legendDTO, 0, len(s.cfg.Classify))
	for _, r := range s.cfg.Classify {
		label := r.Label
		if label == "" {
			label = r.Phrase
		}
		out = append(out, legendDTO{Label: label, Phrase: r.Phrase, Color: r.Color})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
