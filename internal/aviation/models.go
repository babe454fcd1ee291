package aviation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/airspace-monitor/internal/physics"
)

// Callsign identifies a pilot or ATC session on the network
type Callsign string

// NewCallsign normalises a raw callsign (trimmed, upper case)
func NewCallsign(raw string) Callsign {
	return Callsign(strings.ToUpper(strings.TrimSpace(raw)))
}

func (c Callsign) IsEmpty() bool  { return c == "" }
func (c Callsign) String() string { return string(c) }

// Frequency is a radio frequency in Hz
type Frequency int64

const (
	KHz Frequency = 1000
	MHz Frequency = 1000 * KHz

	ChannelSpacing25kHz = 25 * KHz
)

// FrequencyFromMHz converts a frequency in MHz, rounded to the nearest Hz
func FrequencyFromMHz(mhz float64) Frequency {
	return Frequency(math.Round(mhz * float64(MHz)))
}

// ParseFrequency parses a frequency in MHz notation such as "121.500"
func ParseFrequency(s string) (Frequency, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	return FrequencyFromMHz(v), nil
}

func (f Frequency) MHz() float64  { return float64(f) / float64(MHz) }
func (f Frequency) IsZero() bool  { return f == 0 }
func (f Frequency) String() string { return strconv.FormatFloat(f.MHz(), 'f', 3, 64) }

// WithinChannel25kHz reports whether other lies in the same 25 kHz channel as f
func (f Frequency) WithinChannel25kHz(other Frequency) bool {
	if f.IsZero() || other.IsZero() {
		return false
	}
	d := f - other
	half := ChannelSpacing25kHz / 2
	return -half < d && d <= half
}

// Position is a geodetic position
type Position struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltitudeFt float64 `json:"altitude_ft"`
}

// IsZero reports whether no position has been set
func (p Position) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// DistanceNM returns the distance to other in nautical miles, or -1 if either position is unset
func (p Position) DistanceNM(other Position) float64 {
	if p.IsZero() || other.IsZero() {
		return -1
	}
	return physics.Haversine(p.Lat, p.Lon, other.Lat, other.Lon)
}

// BearingTo returns the true bearing to other, or 0 if either position is unset
func (p Position) BearingTo(other Position) float64 {
	if p.IsZero() || other.IsZero() {
		return 0
	}
	return physics.Bearing(p.Lat, p.Lon, other.Lat, other.Lon)
}

// User is a network user (pilot or controller)
type User struct {
	ID       string   `json:"id,omitempty"`
	RealName string   `json:"real_name,omitempty"`
	Callsign Callsign `json:"callsign"`
}

// InformationType distinguishes ATIS and METAR messages
type InformationType string

const (
	InformationATIS  InformationType = "atis"
	InformationMETAR InformationType = "metar"
)

// InformationMessage is a received ATIS or METAR text
type InformationMessage struct {
	Type       InformationType `json:"type"`
	Message    string          `json:"message"`
	ReceivedAt time.Time       `json:"received_at"`
}

func (m InformationMessage) IsEmpty() bool { return strings.TrimSpace(m.Message) == "" }

// Age returns how long ago the message was received
func (m InformationMessage) Age(now time.Time) time.Duration {
	return now.Sub(m.ReceivedAt)
}

// VoiceRoom is an audio conference channel bound to a station
type VoiceRoom struct {
	URL       string `json:"url"`
	Connected bool   `json:"connected"`
}

func (v VoiceRoom) IsValid() bool { return v.URL != "" }

// AtcStation is a booked or online ATC position
type AtcStation struct {
	Callsign    Callsign           `json:"callsign"`
	Controller  User               `json:"controller"`
	Frequency   Frequency          `json:"frequency"`
	Position    Position           `json:"position"`
	RangeNM     float64            `json:"range_nm"`
	Online      bool               `json:"online"`
	Booked      bool               `json:"booked"`
	BookedFrom  time.Time          `json:"booked_from,omitempty"`
	BookedUntil time.Time          `json:"booked_until,omitempty"`
	Atis        InformationMessage `json:"atis"`
	Metar       InformationMessage `json:"metar"`
	VoiceRoom   VoiceRoom          `json:"voice_room"`
	DistanceNM  float64            `json:"distance_nm"`
	Server      string             `json:"server,omitempty"`
}

// IsValid reports whether the station has a callsign
func (s AtcStation) IsValid() bool { return !s.Callsign.IsEmpty() }

// IsTunedIn reports whether the COM unit's active frequency matches the station
func (s AtcStation) IsTunedIn(com ComSystem) bool {
	return com.Active.WithinChannel25kHz(s.Frequency)
}

// Situation is the positional state of an aircraft
type Situation struct {
	Position       Position  `json:"position"`
	HeadingDeg     float64   `json:"heading_deg"`
	PitchDeg       float64   `json:"pitch_deg"`
	BankDeg        float64   `json:"bank_deg"`
	GroundSpeedKts float64   `json:"ground_speed_kts"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

// TransponderMode is the transponder operating mode
type TransponderMode string

const (
	TransponderStandby TransponderMode = "standby"
	TransponderModeC   TransponderMode = "mode_c"
	TransponderIdent   TransponderMode = "ident"
)

// Transponder holds squawk code and mode
type Transponder struct {
	Code int             `json:"code"`
	Mode TransponderMode `json:"mode"`
}

// ComSystem is one COM radio
type ComSystem struct {
	Active  Frequency `json:"active"`
	Standby Frequency `json:"standby"`
	Volume  int       `json:"volume"`
}

// AircraftIcao holds ICAO codes of an aircraft
type AircraftIcao struct {
	AircraftDesignator string `json:"aircraft_designator"`
	AirlineDesignator  string `json:"airline_designator,omitempty"`
	CombinedType       string `json:"combined_type,omitempty"`
}

// RemoteAircraft is another pilot in range
type RemoteAircraft struct {
	Callsign          Callsign      `json:"callsign"`
	Pilot             User          `json:"pilot"`
	Icao              AircraftIcao  `json:"icao"`
	Situation         Situation     `json:"situation"`
	Parts             AircraftParts `json:"parts"`
	PartsSynchronized bool          `json:"parts_synchronized"`
	Transponder       Transponder   `json:"transponder"`
	Com1              Frequency     `json:"com1"`
	Com2              Frequency     `json:"com2"`
	DistanceNM        float64       `json:"distance_nm"`
	BearingDeg        float64       `json:"bearing_deg"`
	Enabled           bool          `json:"enabled"`
	Rendered          bool          `json:"rendered"`
	ModelString       string        `json:"model_string,omitempty"`
	Server            string        `json:"server,omitempty"`
}

// OwnAircraft is the aircraft flown by the local pilot
type OwnAircraft struct {
	Callsign           Callsign     `json:"callsign"`
	Pilot              User         `json:"pilot"`
	Icao               AircraftIcao `json:"icao"`
	Situation          Situation    `json:"situation"`
	MagneticHeadingDeg float64      `json:"magnetic_heading_deg"`
	Com1               ComSystem    `json:"com1"`
	Com2               ComSystem    `json:"com2"`
	Transponder        Transponder  `json:"transponder"`
}

// TextMessage is a private or frequency text message
type TextMessage struct {
	From      Callsign  `json:"from"`
	To        Callsign  `json:"to,omitempty"`
	Frequency Frequency `json:"frequency,omitempty"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
	Outgoing  bool      `json:"outgoing"`
}

// IsRadioMessage reports whether the message was sent on a frequency
func (m TextMessage) IsRadioMessage() bool { return !m.Frequency.IsZero() }
