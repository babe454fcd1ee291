package aviation

import "time"

// AircraftLights are the exterior lights of an aircraft
type AircraftLights struct {
	Strobe  bool `json:"strobe"`
	Landing bool `json:"landing"`
	Taxi    bool `json:"taxi"`
	Beacon  bool `json:"beacon"`
	Nav     bool `json:"nav"`
	Logo    bool `json:"logo"`
}

// AircraftEngine is one engine, numbered from 1
type AircraftEngine struct {
	Number int  `json:"number"`
	On     bool `json:"on"`
}

// AircraftParts is the configuration of a remote aircraft as reported by its pilot client
type AircraftParts struct {
	Lights       AircraftLights   `json:"lights"`
	GearDown     bool             `json:"gear_down"`
	FlapsPercent int              `json:"flaps_percent"`
	SpoilersOut  bool             `json:"spoilers_out"`
	Engines      []AircraftEngine `json:"engines,omitempty"`
	OnGround     bool             `json:"on_ground"`
	Timestamp    time.Time        `json:"timestamp,omitempty"`
}

// EnginesOn counts the running engines
func (p AircraftParts) EnginesOn() int {
	n := 0
	for _, e := range p.Engines {
		if e.On {
			n++
		}
	}
	return n
}

// Normalized clamps the flaps to 0..100 percent
func (p AircraftParts) Normalized() AircraftParts {
	switch {
	case p.FlapsPercent < 0:
		p.FlapsPercent = 0
	case p.FlapsPercent > 100:
		p.FlapsPercent = 100
	}
	return p
}
