package api

import (
	"net/http"
	"strings"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/network"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

const defaultFsdPort = 6809

type serverView struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Source  string `json:"source"`
}

type connectRequest struct {
	Server   string `json:"server"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	UserID   string `json:"user_id"`
	RealName string `json:"real_name"`
	Password string `json:"password"`
	Mode     string `json:"mode"`
}

type commandResponse struct {
	Success  bool                       `json:"success"`
	Messages aviation.StatusMessageList `json:"messages"`
}

// GetNetworkStatus returns the connection status and the server of the last attempt
func (h *Handler) GetNetworkStatus(w http.ResponseWriter, r *http.Request) {
	if h.network == nil {
		unavailable(w, "Network")
		return
	}
	server := h.network.Server()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    h.network.Status(),
		"connected": h.network.IsConnected(),
		"server": serverView{
			Name:    server.Name,
			Address: server.Address,
			Port:    server.Port,
		},
	})
}

// GetNetworkServers lists configured servers followed by servers from the data file
func (h *Handler) GetNetworkServers(w http.ResponseWriter, r *http.Request) {
	servers := make([]serverView, 0)
	seen := make(map[string]bool)
	if h.config != nil {
		for _, s := range h.config.Network.Servers {
			servers = append(servers, serverView{Name: s.Name, Address: s.Address, Port: s.Port, Source: "config"})
			seen[s.Name] = true
		}
	}
	if h.datafile != nil {
		for _, s := range h.datafile.Servers() {
			if seen[s.Name] {
				continue
			}
			servers = append(servers, serverView{Name: s.Name, Address: s.HostnameOrIP, Port: defaultFsdPort, Source: "datafile"})
		}
	}
	WriteJSON(w, http.StatusOK, servers)
}

// Connect starts a network session
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	if h.network == nil {
		unavailable(w, "Network")
		return
	}
	var req connectRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	server, ok := h.resolveServer(req)
	if !ok {
		WriteJSON(w, http.StatusBadRequest, commandResponse{
			Messages: aviation.StatusMessageList{aviation.NewError("Unknown server " + req.Server)},
		})
		return
	}

	mode := network.LoginMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if mode == "" && h.config != nil {
		mode = network.LoginMode(h.config.Network.LoginMode)
	}
	if mode != network.LoginPilot && mode != network.LoginObserver {
		http.Error(w, "Invalid login mode", http.StatusBadRequest)
		return
	}

	msgs := h.network.Connect(server, mode)
	h.logger.Info("Connect requested via API",
		logger.String("server", server.Name),
		logger.String("result", msgs.String()))
	writeCommand(w, msgs)
}

// Disconnect terminates the network session
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if h.network == nil {
		unavailable(w, "Network")
		return
	}
	writeCommand(w, h.network.Disconnect())
}

func writeCommand(w http.ResponseWriter, msgs aviation.StatusMessageList) {
	status := http.StatusOK
	if msgs.HasErrors() {
		status = http.StatusConflict
	}
	WriteJSON(w, status, commandResponse{Success: !msgs.HasErrors(), Messages: msgs})
}

// resolveServer builds the server to connect to. Named servers come from the
// configuration or the data file; credentials in the request fill the gaps.
func (h *Handler) resolveServer(req connectRequest) (network.Server, bool) {
	var server network.Server
	name := strings.TrimSpace(req.Server)

	switch {
	case name == "" && req.Address != "":
		port := req.Port
		if port == 0 {
			port = defaultFsdPort
		}
		server = network.Server{Name: req.Address, Address: req.Address, Port: port}
	default:
		if name == "" && h.config != nil {
			name = h.config.Network.DefaultServer
		}
		found := false
		if h.config != nil {
			if s, ok := h.config.Network.ServerByName(name); ok {
				server = network.Server{
					Name:     s.Name,
					Address:  s.Address,
					Port:     s.Port,
					User:     aviation.User{ID: s.UserID, RealName: s.RealName},
					Password: s.Password,
				}
				found = true
			}
		}
		if !found && h.datafile != nil {
			for _, s := range h.datafile.Servers() {
				if s.Name == name {
					server = network.Server{Name: s.Name, Address: s.HostnameOrIP, Port: defaultFsdPort}
					found = true
					break
				}
			}
		}
		if !found {
			return network.Server{}, false
		}
	}

	if req.UserID != "" {
		server.User.ID = req.UserID
	}
	if req.RealName != "" {
		server.User.RealName = req.RealName
	}
	if req.Password != "" {
		server.Password = req.Password
	}
	return server, true
}
