package api

import (
	"encoding/json"
	"net/http"
	"time"

	"smena/internal/service"
)

// ManualEntryRequest is the request body for POST /api/manual-entry.
// Omitted pointer fields leave the stored value untouched; an explicit zero
// clears it.
type ManualEntryRequest struct {
	RestaurantID string   `json:"restaurant_id"`
	StaffID      string   `json:"staff_id"`
	Day          string   `json:"day"` // YYYY-MM-DD
	ClockInAt    *int64   `json:"clock_in_at,omitempty"`
	ClockOutAt   *int64   `json:"clock_out_at,omitempty"`
	Note         *string  `json:"note,omitempty"`
	HourlyRate   *float64 `json:"hourly_rate,omitempty"`
	ActorUserID  string   `json:"actor_user_id"`
	ActorRole    string   `json:"actor_role"`
}

// handleManualEntry creates or corrects an entry for a day.
// POST /api/manual-entry
func (s *HTTPServer) handleManualEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ManualEntryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	in := service.ManualEntryInput{
		RestaurantID: req.RestaurantID,
		StaffID:      req.StaffID,
		Day:          req.Day,
		ClockInAt:    req.ClockInAt,
		ClockOutAt:   req.ClockOutAt,
		Note:         req.Note,
		HourlyRate:   req.HourlyRate,
	}
	actor := service.Actor{UserID: req.ActorUserID, Role: req.ActorRole}

	res, err := s.correction.UpsertManualEntry(r.Context(), in, actor, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":    false,
			"error": res.Error,
			"open":  res.Open,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "entry": res.Entry})
}

// handleRestaurantDay lists a restaurant's entries for one day.
// GET /api/day/restaurant?restaurant_id=R&day=YYYY-MM-DD
func (s *HTTPServer) handleRestaurantDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	restaurantID := r.URL.Query().Get("restaurant_id")
	day := r.URL.Query().Get("day")
	if restaurantID == "" || day == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id and day are required")
		return
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		writeError(w, http.StatusBadRequest, "invalid day format; expected YYYY-MM-DD")
		return
	}

	entries, err := s.query.ListByRestaurantDay(r.Context(), restaurantID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleStaffDay lists one employee's entries for one day.
// GET /api/day/staff?staff_id=S&day=YYYY-MM-DD
func (s *HTTPServer) handleStaffDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	staffID := r.URL.Query().Get("staff_id")
	day := r.URL.Query().Get("day")
	if staffID == "" || day == "" {
		writeError(w, http.StatusBadRequest, "staff_id and day are required")
		return
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		writeError(w, http.StatusBadRequest, "invalid day format; expected YYYY-MM-DD")
		return
	}

	entries, err := s.query.ListByStaffDay(r.Context(), staffID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handlePayroll returns the monthly payroll rollup.
// GET /api/payroll?restaurant_id=R&month=YYYY-MM
func (s *HTTPServer) handlePayroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	restaurantID := r.URL.Query().Get("restaurant_id")
	month := r.URL.Query().Get("month")
	if restaurantID == "" || month == "" {
		writeError(w, http.StatusBadRequest, "restaurant_id and month are required")
		return
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		writeError(w, http.StatusBadRequest, "invalid month format; expected YYYY-MM")
		return
	}

	report, err := s.payroll.BuildMonthReport(r.Context(), restaurantID, month, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
