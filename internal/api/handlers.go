package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"staysync/internal/database"
	"staysync/internal/models"
)

// Manual trigger budget shared by all clients. Covers the whole window even
// when redis restarts mid-way.
const (
	triggerRateLimit  = 5
	triggerRateWindow = time.Minute
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.db.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	platform := models.Platform(strings.TrimSpace(r.URL.Query().Get("platform")))
	if platform != "" && !platform.Valid() {
		writeError(w, http.StatusBadRequest, "unknown platform")
		return
	}
	status := models.BookingStatus(strings.TrimSpace(r.URL.Query().Get("status")))

	bookings, err := s.db.GetBookings(r.Context(), s.propertyID, platform, status, queryLimit(r, 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCurrentBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	booking, err := s.db.GetCurrentBooking(r.Context(), s.propertyID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load current booking")
		return
	}
	if booking == nil {
		writeJSON(w, http.StatusOK, map[string]any{"occupied": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"occupied": true, "booking": booking})
}

func (s *HTTPServer) handleUpcomingBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.db.GetUpcomingBookings(r.Context(), s.propertyID, time.Now().UTC(), queryLimit(r, 5))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list upcoming bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	conflicts, err := s.db.GetActiveConflicts(r.Context(), s.propertyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conflicts")
		return
	}

	type conflictView struct {
		*models.BookingConflict
		OverlapNights int             `json:"overlap_nights"`
		Severity      models.Severity `json:"severity"`
	}
	views := make([]conflictView, 0, len(conflicts))
	for _, c := range conflicts {
		views = append(views, conflictView{
			BookingConflict: c,
			OverlapNights:   c.OverlapNights(),
			Severity:        c.Severity(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": views})
}

func (s *HTTPServer) handleConflictSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	summary, err := s.detector.Summary(r.Context(), s.propertyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to summarize conflicts")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleConflictByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := pathID(r.URL.Path, "/api/v1/conflicts/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		conflict, err := s.db.GetConflict(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conflict not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load conflict")
			return
		}
		writeJSON(w, http.StatusOK, conflict)

	case action == "resolve" && r.Method == http.MethodPost:
		notes := readNotes(r)
		if notes == "" {
			notes = "Resolved manually"
		}
		if err := s.detector.Resolve(r.Context(), id, notes); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "conflict not found or already resolved")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to resolve conflict")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"resolved": true, "id": id})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := models.ActionStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	actions, err := s.db.GetActions(r.Context(), s.propertyID, status, queryLimit(r, 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (s *HTTPServer) handleActionByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := pathID(r.URL.Path, "/api/v1/actions/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		item, err := s.db.GetAction(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "action not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load action")
			return
		}
		writeJSON(w, http.StatusOK, item)

	case action == "complete" && r.Method == http.MethodPost:
		s.finishAction(w, r, id, s.actions.Complete)

	case action == "dismiss" && r.Method == http.MethodPost:
		s.finishAction(w, r, id, s.actions.Dismiss)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) finishAction(w http.ResponseWriter, r *http.Request, id int64, fn func(ctx context.Context, actionID int64, notes string) error) {
	if err := fn(r.Context(), id, readNotes(r)); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "action not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update action")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true, "id": id})
}

func (s *HTTPServer) handleSyncLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var sourceID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("source_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid source_id")
			return
		}
		sourceID = parsed
	}

	logs, err := s.db.GetSyncLogs(r.Context(), sourceID, queryLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sync logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *HTTPServer) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.state != nil {
		allowed, err := s.state.CheckRateLimit(r.Context(), "sync:trigger", triggerRateLimit, triggerRateWindow)
		if err != nil {
			// Redis being down should not block manual syncs.
			s.logger.Warn().Err(err).Msg("trigger rate limit check failed")
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "too many sync requests")
			return
		}
	}

	result, err := s.trigger.TriggerSync(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sync failed to start")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func readNotes(r *http.Request) string {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Notes)
}
