package ownaircraft

import (
	"sync"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/internal/physics"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Provider owns the single mutable own-aircraft record.
// Readers get copies; all writes go through the Update methods.
type Provider struct {
	mu       sync.RWMutex
	aircraft aviation.OwnAircraft

	bus    *events.Bus
	logger *logger.Logger
	now    func() time.Time
}

// NewProvider creates a provider seeded with the given aircraft
func NewProvider(initial aviation.OwnAircraft, bus *events.Bus, log *logger.Logger) *Provider {
	return &Provider{
		aircraft: initial,
		bus:      bus,
		logger:   log.Named("own-aircraft"),
		now:      time.Now,
	}
}

// Get returns a copy of the own aircraft
func (p *Provider) Get() aviation.OwnAircraft {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.aircraft
}

func (p *Provider) Position() aviation.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.aircraft.Situation.Position
}

func (p *Provider) Callsign() aviation.Callsign {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.aircraft.Callsign
}

// ComSystems returns COM1 and COM2
func (p *Provider) ComSystems() [2]aviation.ComSystem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return [2]aviation.ComSystem{p.aircraft.Com1, p.aircraft.Com2}
}

// UpdateCockpit sets radios and transponder, returning true if anything changed
func (p *Provider) UpdateCockpit(com1, com2 aviation.ComSystem, xpdr aviation.Transponder) bool {
	p.mu.Lock()
	if p.aircraft.Com1 == com1 && p.aircraft.Com2 == com2 && p.aircraft.Transponder == xpdr {
		p.mu.Unlock()
		return false
	}
	p.aircraft.Com1 = com1
	p.aircraft.Com2 = com2
	p.aircraft.Transponder = xpdr
	p.mu.Unlock()

	p.logger.Debug("Cockpit updated",
		logger.String("com1", com1.Active.String()),
		logger.String("com2", com2.Active.String()),
		logger.Int("squawk", xpdr.Code))

	p.bus.Publish(events.CockpitChanged{Com1: com1, Com2: com2, Transponder: xpdr})
	return true
}

// UpdateSituation sets the own situation and derives the magnetic heading
func (p *Provider) UpdateSituation(s aviation.Situation) bool {
	if s.Timestamp.IsZero() {
		s.Timestamp = p.now()
	}
	mag := physics.TrueToMagnetic(s.HeadingDeg, s.Position.Lat, s.Position.Lon, s.Position.AltitudeFt, s.Timestamp)

	p.mu.Lock()
	old := p.aircraft.Situation
	p.aircraft.Situation = s
	p.aircraft.MagneticHeadingDeg = mag
	p.mu.Unlock()

	if old.Position == s.Position && old.HeadingDeg == s.HeadingDeg {
		return false
	}
	p.bus.Publish(events.OwnPositionChanged{Situation: s})
	return true
}

func (p *Provider) UpdatePilot(u aviation.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aircraft.Pilot = u
}

func (p *Provider) UpdateCallsign(c aviation.Callsign) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aircraft.Callsign == c {
		return false
	}
	p.aircraft.Callsign = c
	p.aircraft.Pilot.Callsign = c
	return true
}

func (p *Provider) UpdateIcao(icao aviation.AircraftIcao) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aircraft.Icao == icao {
		return false
	}
	p.aircraft.Icao = icao
	return true
}
