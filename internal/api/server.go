// Package api is the thin HTTP shell over the ledger services. It only
// parses and validates requests; authentication and authorization are the
// reverse proxy's job, save for an optional shared API key.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"smena/internal/service"
)

// HTTPServer exposes the ledger operations over HTTP.
type HTTPServer struct {
	clock      *service.ClockService
	query      *service.QueryService
	correction *service.CorrectionService
	payroll    *service.PayrollService
	apiKey     string
	loc        *time.Location
	logger     *zerolog.Logger
}

// NewHTTPServer constructs the API server.
func NewHTTPServer(
	clock *service.ClockService,
	query *service.QueryService,
	correction *service.CorrectionService,
	payroll *service.PayrollService,
	apiKey string,
	loc *time.Location,
	logger *zerolog.Logger,
) *HTTPServer {
	return &HTTPServer{
		clock:      clock,
		query:      query,
		correction: correction,
		payroll:    payroll,
		apiKey:     apiKey,
		loc:        loc,
		logger:     logger,
	}
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/clock-in", s.auth(s.handleClockIn))
	mux.HandleFunc("/api/clock-out", s.auth(s.handleClockOut))
	mux.HandleFunc("/api/open-entry", s.auth(s.handleOpenEntry))
	mux.HandleFunc("/api/day/restaurant", s.auth(s.handleRestaurantDay))
	mux.HandleFunc("/api/day/staff", s.auth(s.handleStaffDay))
	mux.HandleFunc("/api/manual-entry", s.auth(s.handleManualEntry))
	mux.HandleFunc("/api/payroll", s.auth(s.handlePayroll))
	return mux
}

func (s *HTTPServer) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("x-api-key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
