package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/airspace-monitor/internal/airspace"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/config"
	"github.com/yegors/airspace-monitor/internal/datafile"
	"github.com/yegors/airspace-monitor/internal/network"
	"github.com/yegors/airspace-monitor/internal/ownaircraft"
	"github.com/yegors/airspace-monitor/internal/simulator"
	"github.com/yegors/airspace-monitor/internal/storage/sqlite"
	"github.com/yegors/airspace-monitor/internal/voice"
	"github.com/yegors/airspace-monitor/internal/websocket"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Services are the components served by the API. Network, Storage and
// Datafile may be nil; their endpoints then answer 503.
type Services struct {
	Monitor   *airspace.Monitor
	Network   *network.Context
	Own       *ownaircraft.Provider
	Voice     *voice.Resolver
	Gate      *simulator.Gate
	Rendering *simulator.Service
	Storage   *sqlite.Storage
	Datafile  *datafile.Reader
	WSServer  *websocket.Server
}

// Handler contains the API handlers
type Handler struct {
	monitor   *airspace.Monitor
	network   *network.Context
	own       *ownaircraft.Provider
	voice     *voice.Resolver
	gate      *simulator.Gate
	rendering *simulator.Service
	storage   *sqlite.Storage
	datafile  *datafile.Reader
	wsServer  *websocket.Server
	config    *config.Config
	logger    *logger.Logger
	startedAt time.Time
}

// NewHandler creates a new API handler
func NewHandler(services Services, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		monitor:   services.Monitor,
		network:   services.Network,
		own:       services.Own,
		voice:     services.Voice,
		gate:      services.Gate,
		rendering: services.Rendering,
		storage:   services.Storage,
		datafile:  services.Datafile,
		wsServer:  services.WSServer,
		config:    cfg,
		logger:    log.Named("api-handler"),
		startedAt: time.Now(),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	networkStatus := "unavailable"
	if h.network != nil {
		networkStatus = string(h.network.Status())
	}

	response := map[string]interface{}{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
		"network_status":  networkStatus,
		"aircraft_count":  len(h.monitor.Aircraft()),
		"online_stations": len(h.monitor.OnlineStations()),
		"booked_stations": len(h.monitor.BookedStations()),
		"storage_enabled": h.storage != nil,
	}
	if h.wsServer != nil {
		response["websocket_clients"] = h.wsServer.ClientCount()
	}
	if h.datafile != nil {
		response["datafile_updated"] = h.datafile.UpdateTimestamp()
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	publicConfig := map[string]interface{}{
		"network": map[string]interface{}{
			"login_mode":                   h.config.Network.LoginMode,
			"default_server":               h.config.Network.DefaultServer,
			"data_update_interval_seconds": h.config.Network.DataUpdateSecs,
			"atis_update_interval_seconds": h.config.Network.AtisUpdateSecs,
		},
		"metar": map[string]interface{}{
			"stale_after_ms": h.config.Metar.StaleAfterMs,
			"wait_ms":        h.config.Metar.WaitMs,
		},
		"rendering": map[string]interface{}{
			"highlight_duration_seconds": h.config.Rendering.HighlightSecs,
			"snapshot_interval_seconds":  h.config.Rendering.SnapshotSecs,
		},
		"bookings_enabled": h.config.Bookings.Enabled,
		"datafile_enabled": h.config.Datafile.Enabled,
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("Failed to parse request body",
			logger.String("path", r.URL.Path),
			logger.Error(err))
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func callsignParam(r *http.Request) aviation.Callsign {
	return aviation.NewCallsign(chi.URLParam(r, "callsign"))
}

func intQuery(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func unavailable(w http.ResponseWriter, what string) {
	http.Error(w, what+" unavailable", http.StatusServiceUnavailable)
}
