package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-node/internal/device"
)

// switcher is implemented by entities that accept on/off commands.
type switcher interface {
	Set(on bool) bool
	IsOn() bool
}

// CommandRequest is the body of POST /devices/{kind}/{id}/command.
type CommandRequest struct {
	State string `json:"state"` // ON, OFF or TOGGLE
}

// handleListDevices returns every entity.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeJSON(w, http.StatusOK, map[string]any{"devices": []device.Info{}, "count": 0})
		return
	}

	var infos []device.Info
	if err := s.onLoop(r.Context(), func() { infos = s.devices.Snapshot() }); err != nil {
		writeLoopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": infos,
		"count":   len(infos),
	})
}

// handleGetDevice returns one entity.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	kind := device.Kind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")

	var info device.Info
	var lookupErr error
	err := s.onLoop(r.Context(), func() {
		var e device.Entity
		if e, lookupErr = s.lookupDevice(kind, id); lookupErr == nil {
			info = e.Info()
		}
	})
	if err != nil {
		writeLoopError(w, err)
		return
	}
	if lookupErr != nil {
		writeNotFound(w, lookupErr.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleDeviceCommand switches a switch entity. It behaves like a message
// on the switch's command topic, so on_turn_on/on_turn_off actions run.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	kind := device.Kind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	command := strings.ToUpper(strings.TrimSpace(req.State))
	switch command {
	case device.PayloadOn, device.PayloadOff, device.PayloadToggle:
	default:
		writeBadRequest(w, "state must be ON, OFF or TOGGLE")
		return
	}

	var (
		info      device.Info
		changed   bool
		lookupErr error
		notSwitch bool
	)
	err := s.onLoop(r.Context(), func() {
		e, err := s.lookupDevice(kind, id)
		if err != nil {
			lookupErr = err
			return
		}
		sw, ok := e.(switcher)
		if !ok {
			notSwitch = true
			return
		}
		on := command == device.PayloadOn || (command == device.PayloadToggle && !sw.IsOn())
		changed = sw.Set(on)
		info = e.Info()
	})

	switch {
	case err != nil:
		writeLoopError(w, err)
	case lookupErr != nil:
		writeNotFound(w, lookupErr.Error())
	case notSwitch:
		writeBadRequest(w, string(kind)+" entities do not accept commands")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"device":  info,
			"changed": changed,
		})
	}
}

func (s *Server) lookupDevice(kind device.Kind, id string) (device.Entity, error) {
	if s.devices == nil {
		return nil, device.ErrDeviceNotFound
	}
	e, err := s.devices.Get(kind, id)
	if err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
		s.logger.Warn("device lookup failed", "kind", kind, "id", id, "error", err)
	}
	return e, err
}
