package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/airspace-monitor/internal/airspace"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

const maxReplyWait = 10 * time.Second

// GetOnlineStations returns the online ATC stations, nearest first and unknown distances last
func (h *Handler) GetOnlineStations(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.monitor.OnlineStations())
}

// GetOnlineStation returns one online station
func (h *Handler) GetOnlineStation(w http.ResponseWriter, r *http.Request) {
	callsign := callsignParam(r)
	if callsign.IsEmpty() {
		http.Error(w, "Missing callsign", http.StatusBadRequest)
		return
	}
	station, ok := h.monitor.OnlineStation(callsign)
	if !ok {
		http.Error(w, "Station not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, station)
}

// GetBookedStations returns the booked ATC stations
func (h *Handler) GetBookedStations(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.monitor.BookedStations())
}

// GetStationSessions returns the recorded online sessions of a station
func (h *Handler) GetStationSessions(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		unavailable(w, "Storage")
		return
	}
	sessions, err := h.storage.AtcSessions(callsignParam(r))
	if err != nil {
		h.logger.Error("Failed to read ATC sessions", logger.Error(err))
		http.Error(w, "Failed to read sessions", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, sessions)
}

// GetAllAircraft returns the aircraft in range in monitor order. ?callsign= filters by substring.
func (h *Handler) GetAllAircraft(w http.ResponseWriter, r *http.Request) {
	aircraft := h.monitor.Aircraft()

	if filter := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("callsign"))); filter != "" {
		filtered := make([]aviation.RemoteAircraft, 0, len(aircraft))
		for _, a := range aircraft {
			if strings.Contains(a.Callsign.String(), filter) {
				filtered = append(filtered, a)
			}
		}
		aircraft = filtered
	}
	WriteJSON(w, http.StatusOK, aircraft)
}

// GetAircraftByCallsign returns one aircraft
func (h *Handler) GetAircraftByCallsign(w http.ResponseWriter, r *http.Request) {
	callsign := callsignParam(r)
	if callsign.IsEmpty() {
		http.Error(w, "Missing callsign", http.StatusBadRequest)
		return
	}
	aircraft, ok := h.monitor.AircraftByCallsign(callsign)
	if !ok {
		http.Error(w, "Aircraft not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, aircraft)
}

// SetAircraftEnabled enables or disables rendering of an aircraft
func (h *Handler) SetAircraftEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	aircraft, err := h.monitor.SetAircraftEnabled(callsignParam(r), req.Enabled)
	h.writeAircraftUpdate(w, aircraft, err)
}

// SetAircraftModel sets the model string used to render an aircraft
func (h *Handler) SetAircraftModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	aircraft, err := h.monitor.SetAircraftModel(callsignParam(r), req.Model)
	h.writeAircraftUpdate(w, aircraft, err)
}

func (h *Handler) writeAircraftUpdate(w http.ResponseWriter, aircraft aviation.RemoteAircraft, err error) {
	switch {
	case errors.Is(err, airspace.ErrEmptyCallsign):
		http.Error(w, "Missing callsign", http.StatusBadRequest)
	case errors.Is(err, airspace.ErrUnknownAircraft):
		http.Error(w, "Aircraft not found", http.StatusNotFound)
	case err != nil:
		h.logger.Error("Failed to update aircraft", logger.Error(err))
		http.Error(w, "Failed to update aircraft", http.StatusInternalServerError)
	default:
		WriteJSON(w, http.StatusOK, aircraft)
	}
}

// GetMetar returns the METAR of an airport. With ?wait_ms= the request waits
// for a fresh report and falls back to a stale one.
func (h *Handler) GetMetar(w http.ResponseWriter, r *http.Request) {
	icao := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "icao")))
	if len(icao) != 4 {
		http.Error(w, "Invalid ICAO code", http.StatusBadRequest)
		return
	}

	future := h.monitor.RequestMetar(icao)
	if r.URL.Query().Get("wait_ms") == "" {
		WriteJSON(w, http.StatusOK, future.Poll())
		return
	}

	wait := time.Duration(intQuery(r, "wait_ms", 0)) * time.Millisecond
	if wait > maxReplyWait {
		wait = maxReplyWait
	}
	result := future.Wait(r.Context(), wait)
	WriteJSON(w, http.StatusOK, result)
}

// GetClients returns the other network clients with their capabilities
func (h *Handler) GetClients(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.monitor.Clients())
}

// GetFlightPlan returns the flight plan filed by a callsign; ?wait_ms= works as for METARs
func (h *Handler) GetFlightPlan(w http.ResponseWriter, r *http.Request) {
	callsign := callsignParam(r)
	if callsign.IsEmpty() {
		http.Error(w, "Missing callsign", http.StatusBadRequest)
		return
	}

	future := h.monitor.RequestFlightPlan(callsign)
	if r.URL.Query().Get("wait_ms") == "" {
		WriteJSON(w, http.StatusOK, future.Poll())
		return
	}

	wait := time.Duration(intQuery(r, "wait_ms", 0)) * time.Millisecond
	if wait > maxReplyWait {
		wait = maxReplyWait
	}
	WriteJSON(w, http.StatusOK, future.Wait(r.Context(), wait))
}
