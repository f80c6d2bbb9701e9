package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// handleStatus returns the session snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status session.Status
	if err := s.onLoop(r.Context(), func() { status = s.session.Snapshot() }); err != nil {
		writeLoopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// PublishRequest is the body of POST /publish.
type PublishRequest struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	QoS     int    `json:"qos"`
	Retain  bool   `json:"retain"`
}

func (req PublishRequest) validate() string {
	switch {
	case req.Topic == "":
		return "topic is required"
	case strings.ContainsAny(req.Topic, "+#"):
		return "topic must not contain wildcards"
	case req.QoS < 0 || req.QoS > 2:
		return "qos must be 0, 1 or 2"
	}
	return ""
}

// handlePublish publishes a message through the session. The response is
// 200 when the transport accepted it and 503 when the session dropped it,
// which includes every publish while disconnected.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeBadRequest(w, msg)
		return
	}

	var sent bool
	err := s.onLoop(r.Context(), func() {
		sent = s.session.Publish(req.Topic, req.Payload, byte(req.QoS), req.Retain)
	})
	if err != nil {
		writeLoopError(w, err)
		return
	}
	if !sent {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotSent, "message not published")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"published": true,
		"topic":     req.Topic,
	})
}
