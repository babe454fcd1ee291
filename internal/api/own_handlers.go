package api

import (
	"net/http"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
)

type comRequest struct {
	ActiveMHz  float64 `json:"active_mhz"`
	StandbyMHz float64 `json:"standby_mhz"`
	Volume     int     `json:"volume"`
}

func (c comRequest) toComSystem() aviation.ComSystem {
	return aviation.ComSystem{
		Active:  aviation.FrequencyFromMHz(c.ActiveMHz),
		Standby: aviation.FrequencyFromMHz(c.StandbyMHz),
		Volume:  c.Volume,
	}
}

type cockpitRequest struct {
	Com1            comRequest `json:"com1"`
	Com2            comRequest `json:"com2"`
	TransponderCode int        `json:"transponder_code"`
	TransponderMode string     `json:"transponder_mode"`
}

type situationRequest struct {
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	AltitudeFt     float64   `json:"altitude_ft"`
	HeadingDeg     float64   `json:"heading_deg"`
	PitchDeg       float64   `json:"pitch_deg"`
	BankDeg        float64   `json:"bank_deg"`
	GroundSpeedKts float64   `json:"ground_speed_kts"`
	Timestamp      time.Time `json:"timestamp"`
}

// GetOwnAircraft returns the own aircraft
func (h *Handler) GetOwnAircraft(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.own.Get())
}

// SetOwnCockpit sets radios and transponder of the own aircraft
func (h *Handler) SetOwnCockpit(w http.ResponseWriter, r *http.Request) {
	var req cockpitRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.TransponderCode < 0 || req.TransponderCode > 7777 {
		http.Error(w, "Invalid transponder code", http.StatusBadRequest)
		return
	}
	mode := aviation.TransponderMode(req.TransponderMode)
	switch mode {
	case "":
		mode = aviation.TransponderStandby
	case aviation.TransponderStandby, aviation.TransponderModeC, aviation.TransponderIdent:
	default:
		http.Error(w, "Invalid transponder mode", http.StatusBadRequest)
		return
	}

	changed := h.own.UpdateCockpit(req.Com1.toComSystem(), req.Com2.toComSystem(),
		aviation.Transponder{Code: req.TransponderCode, Mode: mode})
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"changed":  changed,
		"aircraft": h.own.Get(),
	})
}

// SetOwnSituation sets the position of the own aircraft
func (h *Handler) SetOwnSituation(w http.ResponseWriter, r *http.Request) {
	var req situationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Lat < -90 || req.Lat > 90 {
		http.Error(w, "Invalid latitude: must be between -90 and 90", http.StatusBadRequest)
		return
	}
	if req.Lon < -180 || req.Lon > 180 {
		http.Error(w, "Invalid longitude: must be between -180 and 180", http.StatusBadRequest)
		return
	}

	changed := h.own.UpdateSituation(aviation.Situation{
		Position:       aviation.Position{Lat: req.Lat, Lon: req.Lon, AltitudeFt: req.AltitudeFt},
		HeadingDeg:     req.HeadingDeg,
		PitchDeg:       req.PitchDeg,
		BankDeg:        req.BankDeg,
		GroundSpeedKts: req.GroundSpeedKts,
		Timestamp:      req.Timestamp,
	})
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"changed":  changed,
		"aircraft": h.own.Get(),
	})
}
