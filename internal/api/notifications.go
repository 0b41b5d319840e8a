package api

import (
	"net/http"
	"strconv"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// handleListNotificationLog returns recent notification delivery log entries.
// Accepts an optional ?limit=N query parameter (default 50).
func (s *Server) handleListNotificationLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLogLimit)
		}
	}

	entries, err := s.inquirySvc.ListDeliveries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notification log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
