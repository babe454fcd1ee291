package events

import "github.com/yegors/airspace-monitor/internal/aviation"

// Event is a domain event dispatched through a Bus.
// Only types in this package implement it.
type Event interface {
	eventName() string
}

// ConnectionStatus of the network session
type ConnectionStatus string

const (
	Disconnected  ConnectionStatus = "disconnected"
	Connecting    ConnectionStatus = "connecting"
	Connected     ConnectionStatus = "connected"
	Disconnecting ConnectionStatus = "disconnecting"
	Failed        ConnectionStatus = "failed"
)

func (s ConnectionStatus) IsConnected() bool { return s == Connected }

type AtcStationsOnlineChanged struct{}

type AtcStationsBookedChanged struct{}

type AircraftInRangeChanged struct{}

type ConnectionStatusChanged struct {
	Previous ConnectionStatus
	Current  ConnectionStatus
}

// AtcStationConnectionChanged fires when a station goes live (ATIS or voice room received) or disconnects
type AtcStationConnectionChanged struct {
	Station   aviation.AtcStation
	Connected bool
}

type CockpitChanged struct {
	Com1        aviation.ComSystem
	Com2        aviation.ComSystem
	Transponder aviation.Transponder
}

type OwnPositionChanged struct {
	Situation aviation.Situation
}

type RemoteAircraftAdded struct {
	Aircraft aviation.RemoteAircraft
}

type RemoteAircraftRemoved struct {
	Callsign aviation.Callsign
}

type RemoteAircraftSituationChanged struct {
	Aircraft aviation.RemoteAircraft
}

type RemoteAircraftEnabledChanged struct {
	Aircraft aviation.RemoteAircraft
}

type RemoteAircraftPartsChanged struct {
	Aircraft aviation.RemoteAircraft
}

type FlightPlanReceived struct {
	FlightPlan aviation.FlightPlan
}

type RemoteAircraftModelChanged struct {
	Aircraft aviation.RemoteAircraft
}

type VoiceRoomsChanged struct {
	Rooms [2]aviation.VoiceRoom
}

type TextMessagesReceived struct {
	Messages []aviation.TextMessage
}

type TextMessagesSent struct {
	Messages []aviation.TextMessage
}

type MetarReceived struct {
	Icao  string
	Metar aviation.InformationMessage
}

func (AtcStationsOnlineChanged) eventName() string       { return "atc_stations_online_changed" }
func (AtcStationsBookedChanged) eventName() string       { return "atc_stations_booked_changed" }
func (AircraftInRangeChanged) eventName() string         { return "aircraft_in_range_changed" }
func (ConnectionStatusChanged) eventName() string        { return "connection_status_changed" }
func (AtcStationConnectionChanged) eventName() string    { return "atc_station_connection_changed" }
func (CockpitChanged) eventName() string                 { return "cockpit_changed" }
func (OwnPositionChanged) eventName() string             { return "own_position_changed" }
func (RemoteAircraftAdded) eventName() string            { return "remote_aircraft_added" }
func (RemoteAircraftRemoved) eventName() string          { return "remote_aircraft_removed" }
func (RemoteAircraftSituationChanged) eventName() string { return "remote_aircraft_situation_changed" }
func (RemoteAircraftEnabledChanged) eventName() string   { return "remote_aircraft_enabled_changed" }
func (RemoteAircraftModelChanged) eventName() string     { return "remote_aircraft_model_changed" }
func (RemoteAircraftPartsChanged) eventName() string     { return "remote_aircraft_parts_changed" }
func (FlightPlanReceived) eventName() string             { return "flight_plan_received" }
func (VoiceRoomsChanged) eventName() string              { return "voice_rooms_changed" }
func (TextMessagesReceived) eventName() string           { return "text_messages_received" }
func (TextMessagesSent) eventName() string               { return "text_messages_sent" }
func (MetarReceived) eventName() string                  { return "metar_received" }

// Name returns the wire name of an event, used as websocket message type
func Name(e Event) string { return e.eventName() }
