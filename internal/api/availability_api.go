package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"openhours/internal/metrics"
	"openhours/internal/models"
)

// ToggleResponse is the response for POST /api/v1/businesses/{id}/toggle.
type ToggleResponse struct {
	BusinessID string `json:"business_id"`
	IsOpen     bool   `json:"is_open"`
}

// handleGetAvailability returns the current status report.
// GET /api/v1/businesses/{id}/availability
func (s *HTTPServer) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	id := strings.TrimSpace(r.PathValue("id"))
	report, err := s.svc.Status(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleToggle flips the business's open state.
// POST /api/v1/businesses/{id}/toggle
func (s *HTTPServer) handleToggle(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("toggle")

	id := strings.TrimSpace(r.PathValue("id"))
	if !s.toggleLimiter(id).Allow() {
		writeError(w, http.StatusTooManyRequests, "too many toggles; slow down")
		return
	}

	open, err := s.svc.ToggleOpen(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{BusinessID: id, IsOpen: open})
}

// handleGetSchedule returns the weekly schedule.
// GET /api/v1/businesses/{id}/schedule
func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_get")

	id := strings.TrimSpace(r.PathValue("id"))
	schedule, err := s.svc.Schedule(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// handlePutSchedule replaces the weekly schedule. Days missing from the body
// are saved as closed; malformed times are read as 00:00.
// PUT /api/v1/businesses/{id}/schedule
func (s *HTTPServer) handlePutSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_put")

	id := strings.TrimSpace(r.PathValue("id"))

	var schedule models.WeeklySchedule
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := decoder.Decode(&schedule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.svc.SaveSchedule(r.Context(), id, schedule); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}
