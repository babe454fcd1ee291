package aviation

import (
	"sort"
	"time"
)

// Capability is a protocol feature another network client announced
type Capability string

const (
	CapabilityAtisResponses    Capability = "atis_responses"
	CapabilityInterimPositions Capability = "interim_positions"
	CapabilityModelDescription Capability = "model_description"
	CapabilityAircraftConfig   Capability = "aircraft_config"
)

// Client is another participant on the network, pilot or controller
type Client struct {
	Callsign           Callsign     `json:"callsign"`
	User               User         `json:"user"`
	Capabilities       []Capability `json:"capabilities"`
	Server             string       `json:"server,omitempty"`
	VoiceCapable       bool         `json:"voice_capable"`
	QueriedModelString string       `json:"queried_model_string,omitempty"`
}

// HasCapability reports whether the client announced want
func (c Client) HasCapability(want Capability) bool {
	for _, have := range c.Capabilities {
		if have == want {
			return true
		}
	}
	return false
}

// NormalizeCapabilities drops empty and duplicate entries and sorts the rest
func NormalizeCapabilities(caps []Capability) []Capability {
	seen := make(map[Capability]bool, len(caps))
	out := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FlightRules of a filed flight plan
type FlightRules string

const (
	FlightRulesIFR FlightRules = "IFR"
	FlightRulesVFR FlightRules = "VFR"
)

// FlightPlan is a flight plan filed on the network
type FlightPlan struct {
	Callsign           Callsign    `json:"callsign"`
	FlightRules        FlightRules `json:"flight_rules"`
	AircraftType       string      `json:"aircraft_type"`
	TrueAirspeedKts    int         `json:"true_airspeed_kts"`
	Departure          string      `json:"departure"`
	Destination        string      `json:"destination"`
	Alternate          string      `json:"alternate,omitempty"`
	CruiseAltitude     string      `json:"cruise_altitude"`
	EstimatedDeparture string      `json:"estimated_departure,omitempty"`
	EnrouteMinutes     int         `json:"enroute_minutes"`
	FuelMinutes        int         `json:"fuel_minutes"`
	Route              string      `json:"route"`
	Remarks            string      `json:"remarks,omitempty"`
	ReceivedAt         time.Time   `json:"received_at"`
}
