package api

import (
	"net/http"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// GetRendering returns the rendering restrictions and the rendered aircraft
func (h *Handler) GetRendering(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"restrictions": h.gate.Restrictions(),
		"rendered":     h.gate.RenderedCallsigns(),
		"highlighted":  h.gate.HighlightedCallsigns(),
	})
}

// SetRendering changes the rendering restrictions. Omitted fields stay as they are;
// "unrestricted": true clears all restrictions first.
func (h *Handler) SetRendering(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Unrestricted     bool     `json:"unrestricted"`
		MaxAircraft      *int     `json:"max_aircraft"`
		MaxDistanceNM    *float64 `json:"max_distance_nm"`
		UpdatesPerSecond *int     `json:"updates_per_second"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.UpdatesPerSecond != nil && *req.UpdatesPerSecond < 0 {
		http.Error(w, "Invalid updates_per_second", http.StatusBadRequest)
		return
	}

	if req.Unrestricted {
		h.gate.DeleteAllRestrictions()
	}
	if req.MaxAircraft != nil {
		h.gate.SetMaxRenderedAircraft(*req.MaxAircraft)
	}
	if req.MaxDistanceNM != nil {
		h.gate.SetMaxRenderedDistance(*req.MaxDistanceNM)
	}
	if req.UpdatesPerSecond != nil {
		h.gate.SetUpdatesPerSecond(*req.UpdatesPerSecond)
	}

	if h.rendering != nil {
		h.rendering.RecalculateNow()
	}
	WriteJSON(w, http.StatusOK, h.gate.Restrictions())
}

// HighlightAircraft makes an aircraft blink in the simulator
func (h *Handler) HighlightAircraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Callsign        string `json:"callsign"`
		Enable          *bool  `json:"enable"`
		DurationSeconds int    `json:"duration_seconds"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	callsign := aviation.NewCallsign(req.Callsign)
	aircraft, ok := h.monitor.AircraftByCallsign(callsign)
	if !ok {
		http.Error(w, "Aircraft not found", http.StatusNotFound)
		return
	}

	enable := req.Enable == nil || *req.Enable
	duration := time.Duration(req.DurationSeconds) * time.Second
	if duration <= 0 {
		duration = 10 * time.Second
		if h.config != nil {
			duration = time.Duration(h.config.Rendering.HighlightSecs) * time.Second
		}
	}

	h.gate.Highlight(aircraft, enable, duration)
	h.logger.Debug("Highlight requested",
		logger.String("callsign", callsign.String()),
		logger.Bool("enable", enable),
		logger.Duration("duration", duration))
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"highlighted": h.gate.HighlightedCallsigns(),
	})
}

// GetRenderingStats returns the rendering counters
func (h *Handler) GetRenderingStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.gate.Stats())
}
