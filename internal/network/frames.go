package network

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
)

// frame is one relay message in either direction
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound frame types
const (
	frameConnectionStatus = "connection_status"
	frameAircraftPosition = "aircraft_position"
	frameAircraftParts    = "aircraft_parts"
	frameAtcPosition      = "atc_position"
	frameAtisReply        = "atis_reply"
	frameAtisVoiceRoom    = "atis_voice_room"
	frameAtisLogoffTime   = "atis_logoff_time"
	frameMetarReply       = "metar_reply"
	frameRealNameReply    = "real_name_reply"
	frameIcaoCodesReply   = "icao_codes_reply"
	frameFrequencyReply   = "frequency_reply"
	frameServerReply      = "server_reply"
	frameCapabilities     = "capabilities_reply"
	frameModelReply       = "aircraft_model_reply"
	frameFlightPlanReply  = "flight_plan_reply"
	framePilotDisconnect  = "pilot_disconnected"
	frameAtcDisconnect    = "atc_disconnected"
	frameTextMessages     = "text_messages"
)

// Outbound frame types
const (
	frameConnect    = "connect"
	frameDisconnect = "disconnect"
	frameQuery      = "query"
)

// Query kinds sent in a query frame
const (
	queryFrequency     = "frequency"
	queryRealName      = "real_name"
	queryIcaoCodes     = "icao_codes"
	queryAtis          = "atis"
	queryServer        = "server"
	queryCapabilities  = "capabilities"
	queryAircraftModel = "aircraft_model"
	queryFlightPlan    = "flight_plan"
	queryMetar         = "metar"
)

type statusPayload struct {
	Status events.ConnectionStatus `json:"status"`
	Error  string                  `json:"error,omitempty"`
}

type aircraftPositionPayload struct {
	Callsign        string    `json:"callsign"`
	Lat             float64   `json:"lat"`
	Lon             float64   `json:"lon"`
	AltitudeFt      float64   `json:"altitude_ft"`
	HeadingDeg      float64   `json:"heading_deg"`
	PitchDeg        float64   `json:"pitch_deg"`
	BankDeg         float64   `json:"bank_deg"`
	GroundSpeedKts  float64   `json:"ground_speed_kts"`
	Timestamp       time.Time `json:"timestamp"`
	TransponderCode int       `json:"transponder_code"`
	TransponderMode string    `json:"transponder_mode"`
}

type aircraftPartsPayload struct {
	Callsign     string                    `json:"callsign"`
	Lights       aviation.AircraftLights   `json:"lights"`
	GearDown     bool                      `json:"gear_down"`
	FlapsPercent int                       `json:"flaps_percent"`
	SpoilersOut  bool                      `json:"spoilers_out"`
	Engines      []aviation.AircraftEngine `json:"engines"`
	OnGround     bool                      `json:"on_ground"`
	Timestamp    time.Time                 `json:"timestamp"`
}

type capabilitiesPayload struct {
	Callsign     string   `json:"callsign"`
	Capabilities []string `json:"capabilities"`
}

type flightPlanPayload struct {
	Callsign           string `json:"callsign"`
	FlightRules        string `json:"flight_rules"`
	AircraftType       string `json:"aircraft_type"`
	TrueAirspeedKts    int    `json:"true_airspeed_kts"`
	Departure          string `json:"departure"`
	Destination        string `json:"destination"`
	Alternate          string `json:"alternate"`
	CruiseAltitude     string `json:"cruise_altitude"`
	EstimatedDeparture string `json:"estimated_departure"`
	EnrouteMinutes     int    `json:"enroute_minutes"`
	FuelMinutes        int    `json:"fuel_minutes"`
	Route              string `json:"route"`
	Remarks            string `json:"remarks"`
}

type atcPositionPayload struct {
	Callsign     string  `json:"callsign"`
	FrequencyMHz float64 `json:"frequency_mhz"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RangeNM      float64 `json:"range_nm"`
}

type callsignPayload struct {
	Callsign     string  `json:"callsign"`
	Message      string  `json:"message,omitempty"`
	URL          string  `json:"url,omitempty"`
	Zulu         string  `json:"zulu,omitempty"`
	Name         string  `json:"name,omitempty"`
	Server       string  `json:"server,omitempty"`
	FrequencyMHz float64 `json:"frequency_mhz,omitempty"`
	Aircraft     string  `json:"aircraft,omitempty"`
	Airline      string  `json:"airline,omitempty"`
	CombinedType string  `json:"combined_type,omitempty"`
	Model        string  `json:"model,omitempty"`
}

type textMessagePayload struct {
	From         string    `json:"from"`
	To           string    `json:"to"`
	FrequencyMHz float64   `json:"frequency_mhz,omitempty"`
	Message      string    `json:"message"`
	SentAt       time.Time `json:"sent_at"`
}

type textMessagesPayload struct {
	Messages []textMessagePayload `json:"messages"`
}

type connectPayload struct {
	Address  string `json:"address"`
	Port     int    `json:"port"`
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	RealName string `json:"real_name"`
	Mode     string `json:"mode"`
	Callsign string `json:"callsign"`
	Aircraft string `json:"aircraft"`
	Airline  string `json:"airline"`
	Combined string `json:"combined_type"`
}

type queryPayload struct {
	Kind     string `json:"kind"`
	Callsign string `json:"callsign,omitempty"`
	Icao     string `json:"icao,omitempty"`
}

func newFrame(frameType string, payload any) (frame, error) {
	f := frame{Type: frameType}
	if payload == nil {
		return f, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return f, fmt.Errorf("encode %s frame: %w", frameType, err)
	}
	f.Data = raw
	return f, nil
}

func (p textMessagePayload) toMessage() aviation.TextMessage {
	return aviation.TextMessage{
		From:      aviation.NewCallsign(p.From),
		To:        aviation.NewCallsign(p.To),
		Frequency: aviation.FrequencyFromMHz(p.FrequencyMHz),
		Message:   p.Message,
		SentAt:    p.SentAt,
	}
}

// toFlightPlan converts the wire plan; FSD routes separate waypoints with dots
func (p flightPlanPayload) toFlightPlan(now time.Time) aviation.FlightPlan {
	rules := aviation.FlightRules(strings.ToUpper(strings.TrimSpace(p.FlightRules)))
	if rules != aviation.FlightRulesVFR {
		rules = aviation.FlightRulesIFR
	}
	return aviation.FlightPlan{
		Callsign:           aviation.NewCallsign(p.Callsign),
		FlightRules:        rules,
		AircraftType:       strings.TrimSpace(p.AircraftType),
		TrueAirspeedKts:    p.TrueAirspeedKts,
		Departure:          strings.ToUpper(strings.TrimSpace(p.Departure)),
		Destination:        strings.ToUpper(strings.TrimSpace(p.Destination)),
		Alternate:          strings.ToUpper(strings.TrimSpace(p.Alternate)),
		CruiseAltitude:     strings.TrimSpace(p.CruiseAltitude),
		EstimatedDeparture: strings.TrimSpace(p.EstimatedDeparture),
		EnrouteMinutes:     p.EnrouteMinutes,
		FuelMinutes:        p.FuelMinutes,
		Route:              strings.Join(strings.Fields(strings.ReplaceAll(p.Route, ".", " ")), " "),
		Remarks:            strings.TrimSpace(p.Remarks),
		ReceivedAt:         now,
	}
}

func textMessageFrom(m aviation.TextMessage) textMessagePayload {
	p := textMessagePayload{
		From:    m.From.String(),
		To:      m.To.String(),
		Message: m.Message,
		SentAt:  m.SentAt,
	}
	if !m.Frequency.IsZero() {
		p.FrequencyMHz = m.Frequency.MHz()
	}
	return p
}

// dispatch decodes an inbound frame and invokes the matching callback
func dispatch(f frame, cb AirspaceCallbacks, now time.Time) error {
	switch f.Type {
	case frameAircraftPosition:
		var p aircraftPositionPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return err
		}
		mode := aviation.TransponderMode(p.TransponderMode)
		if mode == "" {
			mode = aviation.TransponderModeC
		}
		cb.OnAircraftPositionUpdate(aviation.NewCallsign(p.Callsign), aviation.Situation{
			Position:       aviation.Position{Lat: p.Lat, Lon: p.Lon, AltitudeFt: p.AltitudeFt},
			HeadingDeg:     p.HeadingDeg,
			PitchDeg:       p.PitchDeg,
			BankDeg:        p.BankDeg,
			GroundSpeedKts: p.GroundSpeedKts,
			Timestamp:      p.Timestamp,
		}, aviation.Transponder{Code: p.TransponderCode, Mode: mode})

	case frameAircraftParts:
		var p aircraftPartsPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return err
		}
		if p.Timestamp.IsZero() {
			p.Timestamp = now
		}
		cb.OnAircraftPartsReceived(aviation.NewCallsign(p.Callsign), aviation.AircraftParts{
			Lights:       p.Lights,
			GearDown:     p.GearDown,
			FlapsPercent: p.FlapsPercent,
			SpoilersOut:  p.SpoilersOut,
			Engines:      p.Engines,
			OnGround:     p.OnGround,
			Timestamp:    p.Timestamp,
		})

	case frameCapabilities:
		var p capabilitiesPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return err
		}
		caps := make([]aviation.Capability, 0, len(p.Capabilities))
		for _, c := range p.Capabilities {
			caps = append(caps, aviation.Capability(strings.ToLower(strings.TrimSpace(c))))
		}
		cb.OnCapabilitiesReplyReceived(aviation.NewCallsign(p.Callsign), caps)

	case frameFlightPlanReply:
		var p flightPlanPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return err
		}
		fp := p.toFlightPlan(now)
		cb.OnFlightPlanReceived(fp.Callsign, fp)

	case frameAtcPosition:
		var p atcPositionPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return err
		}
		cb.OnAtcPositionUpdate(aviation.NewCallsign(p.Callsign), aviation.FrequencyFromMHz(p.FrequencyMHz),
			aviation.Position{Lat: p.Lat, Lon: p.Lon}, p.RangeNM)

	case frameTextMessages:
		var p textMessagesPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return err
		}
		msgs := make([]aviation.TextMessage, 0, len(p.Messages))
		for _, m := range p.Messages {
			msg := m.toMessage()
			if msg.SentAt.IsZero() {
				msg.SentAt = now
			}
			msgs = append(msgs, msg)
		}
		cb.OnTextMessagesReceived(msgs)

	case frameAtisReply, frameAtisVoiceRoom, frameAtisLogoffTime, frameMetarReply, frameRealNameReply,
		frameIcaoCodesReply, frameFrequencyReply, frameServerReply, frameModelReply, framePilotDisconnect, frameAtcDisconnect:
		var p callsignPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return err
		}
		dispatchCallsignFrame(f.Type, p, cb, now)

	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
	return nil
}

func dispatchCallsignFrame(frameType string, p callsignPayload, cb AirspaceCallbacks, now time.Time) {
	cs := aviation.NewCallsign(p.Callsign)
	switch frameType {
	case frameAtisReply:
		cb.OnAtisReceived(cs, aviation.InformationMessage{Type: aviation.InformationATIS, Message: p.Message, ReceivedAt: now})
	case frameAtisVoiceRoom:
		cb.OnAtisVoiceRoomReceived(cs, p.URL)
	case frameAtisLogoffTime:
		cb.OnAtisLogoffTimeReceived(cs, p.Zulu)
	case frameMetarReply:
		cb.OnMetarReceived(p.Message)
	case frameRealNameReply:
		cb.OnRealNameReceived(cs, p.Name)
	case frameIcaoCodesReply:
		cb.OnIcaoCodesReceived(cs, aviation.AircraftIcao{
			AircraftDesignator: p.Aircraft,
			AirlineDesignator:  p.Airline,
			CombinedType:       p.CombinedType,
		})
	case frameFrequencyReply:
		cb.OnFrequencyReceived(cs, aviation.FrequencyFromMHz(p.FrequencyMHz))
	case frameServerReply:
		cb.OnServerReplyReceived(cs, p.Server)
	case frameModelReply:
		cb.OnAircraftModelReceived(cs, p.Model)
	case framePilotDisconnect:
		cb.OnPilotDisconnected(cs)
	case frameAtcDisconnect:
		cb.OnAtcDisconnected(cs)
	}
}
