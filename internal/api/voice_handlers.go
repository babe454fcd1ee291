package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/voice"
)

type voiceState struct {
	Stations  [voice.ComUnits]aviation.AtcStation `json:"stations"`
	Rooms     [voice.ComUnits]aviation.VoiceRoom  `json:"rooms"`
	Overrides [voice.ComUnits]string              `json:"overrides"`
	Automatic bool                                `json:"automatic"`
}

func (h *Handler) currentVoiceState() voiceState {
	return voiceState{
		Stations:  h.voice.SelectedStations(),
		Rooms:     h.voice.CurrentVoiceRooms(),
		Overrides: h.voice.Overrides(),
		Automatic: h.voice.AutomaticResolution(),
	}
}

// GetSelectedVoice returns the stations tuned on COM1/COM2 and their voice rooms
func (h *Handler) GetSelectedVoice(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.currentVoiceState())
}

// SetVoiceOverrides sets manual voice room URLs for COM1 and COM2
func (h *Handler) SetVoiceOverrides(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Overrides []string `json:"overrides"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.voice.SetOverrides(req.Overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	WriteJSON(w, http.StatusOK, h.currentVoiceState())
}

// SetVoiceAutomatic turns automatic voice room resolution on or off
func (h *Handler) SetVoiceAutomatic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	h.voice.SetAutomaticResolution(req.Enabled)
	WriteJSON(w, http.StatusOK, h.currentVoiceState())
}

// SetVoiceRoomConnected records whether the audio client joined the room of COM1 (unit 1) or COM2 (unit 2)
func (h *Handler) SetVoiceRoomConnected(w http.ResponseWriter, r *http.Request) {
	unit, err := strconv.Atoi(chi.URLParam(r, "unit"))
	if err != nil {
		http.Error(w, "Invalid COM unit", http.StatusBadRequest)
		return
	}
	var req struct {
		Connected bool `json:"connected"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.voice.SetConnected(unit-1, req.Connected); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, voice.ErrInvalidState) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	WriteJSON(w, http.StatusOK, h.currentVoiceState())
}
