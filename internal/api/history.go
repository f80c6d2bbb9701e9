package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/history"
)

// handleListHistory returns stored session events, newest first.
//
// Query parameters: kind, since (RFC 3339), limit, offset.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history is disabled")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{Kind: q.Get("kind")}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	entries, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing session history failed", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}

// handleLastReboot returns the most recent watchdog reboot.
func (s *Server) handleLastReboot(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history is disabled")
		return
	}

	entry, err := s.history.LastReboot(r.Context())
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeNotFound(w, "no reboot recorded")
	case err != nil:
		s.logger.Error("reading last reboot failed", "error", err)
		writeInternalError(w, "failed to read history")
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}
