package api

import (
	"encoding/json"
	"net/http"
	"time"

	"smena/internal/models"
)

// ClockInRequest is the request body for POST /api/clock-in. The caller is
// expected to have resolved and authorized the acting user already.
type ClockInRequest struct {
	RestaurantID string `json:"restaurant_id"`
	StaffID      string `json:"staff_id"`
	ActingUserID string `json:"acting_user_id"`
	Source       string `json:"source"` // staff, manager, owner
}

// ClockOutRequest is the request body for POST /api/clock-out.
type ClockOutRequest struct {
	StaffID      string `json:"staff_id"`
	ActingUserID string `json:"acting_user_id"`
	Role         string `json:"role"`
}

// handleClockIn opens a shift.
// POST /api/clock-in
func (s *HTTPServer) handleClockIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ClockInRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.clock.ClockIn(r.Context(), req.RestaurantID, req.StaffID, req.ActingUserID, models.Source(req.Source), time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":            false,
			"error":         res.Error,
			"open_entry_id": res.OpenEntryID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "entry": res.Entry})
}

// handleClockOut closes the open shift.
// POST /api/clock-out
func (s *HTTPServer) handleClockOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ClockOutRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.clock.ClockOut(r.Context(), req.StaffID, req.ActingUserID, req.Role, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":    false,
			"error": res.Error,
			"entry": res.Entry,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "entry": res.Entry})
}

// handleOpenEntry returns the currently open shift, if any.
// GET /api/open-entry?staff_id=S
func (s *HTTPServer) handleOpenEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	staffID := r.URL.Query().Get("staff_id")
	if staffID == "" {
		writeError(w, http.StatusBadRequest, "staff_id is required")
		return
	}

	entry, err := s.clock.GetOpenEntry(r.Context(), staffID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": entry})
}
