package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/yegors/airspace-monitor/internal/airspace"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
)

// LoginMode is how the session logs in to the network
type LoginMode string

const (
	LoginPilot    LoginMode = "pilot"
	LoginObserver LoginMode = "observer"
)

// Server is an FSD server reachable through the relay
type Server struct {
	Name     string        `json:"name" toml:"name"`
	Address  string        `json:"address" toml:"address"`
	Port     int           `json:"port" toml:"port"`
	User     aviation.User `json:"user" toml:"-"`
	Password string        `json:"-" toml:"-"`
}

// HasValidCredentials reports whether user ID and password are set
func (s Server) HasValidCredentials() bool {
	return strings.TrimSpace(s.User.ID) != "" && s.Password != ""
}

// IsValid reports whether the server can be dialled
func (s Server) IsValid() bool {
	return strings.TrimSpace(s.Address) != "" && s.Port > 0 && s.Port < 65536
}

func (s Server) String() string {
	return fmt.Sprintf("%s %d", s.Address, s.Port)
}

// Driver is the network protocol driver: outbound queries plus connection lifecycle
type Driver interface {
	airspace.Queries
	SendTextMessages(messages []aviation.TextMessage) error

	PresetServer(server Server)
	PresetLoginMode(mode LoginMode)
	PresetCallsign(callsign aviation.Callsign)
	PresetIcaoCodes(icao aviation.AircraftIcao)
	InitiateConnection(ctx context.Context) error
	TerminateConnection() error
	Status() events.ConnectionStatus
}

// AirspaceCallbacks are the inbound network callbacks folded into the airspace
type AirspaceCallbacks interface {
	OnAircraftPositionUpdate(callsign aviation.Callsign, situation aviation.Situation, transponder aviation.Transponder)
	OnIcaoCodesReceived(callsign aviation.Callsign, icao aviation.AircraftIcao)
	OnFrequencyReceived(callsign aviation.Callsign, frequency aviation.Frequency)
	OnPilotDisconnected(callsign aviation.Callsign)
	OnAtcPositionUpdate(callsign aviation.Callsign, frequency aviation.Frequency, position aviation.Position, rangeNM float64)
	OnAtcDisconnected(callsign aviation.Callsign)
	OnAtisReceived(callsign aviation.Callsign, atis aviation.InformationMessage)
	OnAtisVoiceRoomReceived(callsign aviation.Callsign, url string)
	OnAtisLogoffTimeReceived(callsign aviation.Callsign, zuluHHMM string)
	OnRealNameReceived(callsign aviation.Callsign, realName string)
	OnServerReplyReceived(callsign aviation.Callsign, server string)
	OnCapabilitiesReplyReceived(callsign aviation.Callsign, capabilities []aviation.Capability)
	OnAircraftModelReceived(callsign aviation.Callsign, model string)
	OnAircraftPartsReceived(callsign aviation.Callsign, parts aviation.AircraftParts)
	OnFlightPlanReceived(callsign aviation.Callsign, flightPlan aviation.FlightPlan)
	OnMetarReceived(message string)
	OnTextMessagesReceived(messages []aviation.TextMessage)
}

// Callbacks is everything a driver reports
type Callbacks interface {
	AirspaceCallbacks
	OnConnectionStatusChanged(previous, current events.ConnectionStatus)
}

// Airspace is the registry the context feeds and clears
type Airspace interface {
	AirspaceCallbacks
	Clear()
	RequestDataUpdates()
	RequestAtisUpdates()
}
