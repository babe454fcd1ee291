package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/network"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

const maxMessagesInAPI = 500

type sendMessageRequest struct {
	To           string  `json:"to"`
	FrequencyMHz float64 `json:"frequency_mhz"`
	Message      string  `json:"message"`
}

// GetMessages returns the most recent text messages, oldest first
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		unavailable(w, "Storage")
		return
	}
	limit := intQuery(r, "limit", 100)
	if limit <= 0 || limit > maxMessagesInAPI {
		limit = maxMessagesInAPI
	}

	messages, err := h.storage.RecentTextMessages(limit)
	if err != nil {
		h.logger.Error("Failed to read text messages", logger.Error(err))
		http.Error(w, "Failed to read messages", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []aviation.TextMessage{}
	}
	WriteJSON(w, http.StatusOK, messages)
}

// SendMessage sends a private message (to) or a radio message (frequency_mhz)
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if h.network == nil {
		unavailable(w, "Network")
		return
	}
	var req sendMessageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	msg := aviation.TextMessage{
		To:      aviation.NewCallsign(req.To),
		Message: strings.TrimSpace(req.Message),
	}
	if req.FrequencyMHz > 0 {
		msg.Frequency = aviation.FrequencyFromMHz(req.FrequencyMHz)
	}
	switch {
	case msg.Message == "":
		http.Error(w, "Empty message", http.StatusBadRequest)
		return
	case msg.To.IsEmpty() && msg.Frequency.IsZero():
		http.Error(w, "Message needs a recipient or a frequency", http.StatusBadRequest)
		return
	}

	if err := h.network.SendTextMessages([]aviation.TextMessage{msg}); err != nil {
		if errors.Is(err, network.ErrNotConnected) {
			http.Error(w, "Not connected", http.StatusConflict)
			return
		}
		h.logger.Error("Failed to send text message", logger.Error(err))
		http.Error(w, "Failed to send message", http.StatusBadGateway)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{"success": true})
}
