package simulator

import (
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Highlight makes an aircraft blink in the simulator for duration
func (g *Gate) Highlight(aircraft aviation.RemoteAircraft, enable bool, duration time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.highlighted, aircraft.Callsign)
	if enable {
		g.highlightEnd = g.now().Add(duration)
		g.highlighted[aircraft.Callsign] = aircraft
	}
}

// HighlightedCallsigns returns the aircraft currently blinking
func (g *Gate) HighlightedCallsigns() []aviation.Callsign {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]aviation.Callsign, 0, len(g.highlighted))
	for cs := range g.highlighted {
		out = append(out, cs)
	}
	sortCallsigns(out)
	return out
}

// blinkTick toggles highlighted aircraft; after the highlight ends they are reset from the backend
func (g *Gate) blinkTick(now time.Time) {
	g.mu.Lock()
	if len(g.highlighted) == 0 || g.highlightEnd.IsZero() {
		g.mu.Unlock()
		return
	}
	g.blinkCycle = !g.blinkCycle

	if now.Before(g.highlightEnd) {
		for cs, ac := range g.highlighted {
			if g.blinkCycle {
				g.physicallyRemoveLocked(cs)
			} else if err := g.physicallyAddLocked(ac); err != nil {
				g.logger.Debug("Highlight add failed", logger.String("callsign", cs.String()), logger.Error(err))
			}
		}
		g.mu.Unlock()
		return
	}

	restore := make([]aviation.Callsign, 0, len(g.highlighted))
	for cs := range g.highlighted {
		restore = append(restore, cs)
	}
	g.highlighted = make(map[aviation.Callsign]aviation.RemoteAircraft)
	g.highlightEnd = time.Time{}
	g.mu.Unlock()

	for _, cs := range restore {
		if err := g.ResetAircraftFromBackend(cs); err != nil {
			g.logger.Debug("Highlight restore failed", logger.String("callsign", cs.String()), logger.Error(err))
		}
	}
}
