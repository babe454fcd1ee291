package simulator

import (
	"math"
	"sort"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Snapshot is the distance ranked set of aircraft that should be rendered
type Snapshot struct {
	Restricted         bool                `json:"restricted"`
	RestrictionChanged bool                `json:"restriction_changed"`
	RenderingEnabled   bool                `json:"rendering_enabled"`
	MaxAircraft        int                 `json:"max_aircraft"`
	MaxDistanceNM      float64             `json:"max_distance_nm"`
	Callsigns          []aviation.Callsign `json:"callsigns"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

// Contains reports whether callsign should be rendered
func (s Snapshot) Contains(callsign aviation.Callsign) bool {
	for _, cs := range s.Callsigns {
		if cs == callsign {
			return true
		}
	}
	return false
}

// BuildSnapshot ranks enabled aircraft by distance and applies the current restrictions
func (g *Gate) BuildSnapshot(aircraft []aviation.RemoteAircraft) Snapshot {
	g.mu.Lock()
	r := g.restrictionsLocked()
	changed := r != g.lastRestrictions
	g.lastRestrictions = r
	g.mu.Unlock()

	snap := Snapshot{
		Restricted:         r.Restricted,
		RestrictionChanged: changed,
		RenderingEnabled:   r.RenderingEnabled,
		MaxAircraft:        r.MaxAircraft,
		MaxDistanceNM:      r.MaxDistanceNM,
		GeneratedAt:        g.now(),
	}
	if !r.RenderingEnabled {
		return snap
	}

	candidates := make([]aviation.RemoteAircraft, 0, len(aircraft))
	for _, ac := range aircraft {
		if !ac.Enabled || ac.Callsign.IsEmpty() {
			continue
		}
		if r.Restricted && r.DistanceRestricted && (ac.DistanceNM < 0 || ac.DistanceNM > r.MaxDistanceNM) {
			continue
		}
		candidates = append(candidates, ac)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := rankDistance(candidates[i].DistanceNM), rankDistance(candidates[j].DistanceNM)
		if di != dj {
			return di < dj
		}
		return candidates[i].Callsign < candidates[j].Callsign
	})
	if r.Restricted && len(candidates) > r.MaxAircraft {
		candidates = candidates[:r.MaxAircraft]
	}

	snap.Callsigns = make([]aviation.Callsign, 0, len(candidates))
	for _, ac := range candidates {
		snap.Callsigns = append(snap.Callsigns, ac.Callsign)
	}
	return snap
}

func rankDistance(d float64) float64 {
	if d < 0 {
		return math.Inf(1)
	}
	return d
}

// ApplySnapshot removes aircraft no longer wanted, then adds the missing ones.
// Unrestricted snapshots are only applied once, right after a restriction change;
// otherwise they just retry adds and removals the driver rejected.
func (g *Gate) ApplySnapshot(snap Snapshot) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !snap.Restricted && !snap.RestrictionChanged {
		return g.retryPendingLocked()
	}

	changed := false
	if !snap.RenderingEnabled {
		changed = g.physicallyRemoveAllLocked() > 0
		g.states = make(map[aviation.Callsign]RenderState)
	} else {
		inSim := make(map[aviation.Callsign]bool)
		for _, cs := range g.renderedLocked() {
			inSim[cs] = true
		}
		wanted := make(map[aviation.Callsign]bool, len(snap.Callsigns))
		for _, cs := range snap.Callsigns {
			wanted[cs] = true
		}

		var toRemove []aviation.Callsign
		for cs := range inSim {
			if !wanted[cs] {
				toRemove = append(toRemove, cs)
			}
		}
		sortCallsigns(toRemove)
		for _, cs := range toRemove {
			if g.physicallyRemoveLocked(cs) {
				changed = true
			}
		}

		for _, cs := range snap.Callsigns {
			if inSim[cs] {
				g.states[cs] = Rendered
				continue
			}
			ac, ok := g.provider.AircraftByCallsign(cs)
			if !ok || !ac.Enabled {
				continue
			}
			if err := g.physicallyAddLocked(ac); err != nil {
				g.logger.Debug("Snapshot add failed", logger.String("callsign", cs.String()), logger.Error(err))
				continue
			}
			changed = true
		}

		for cs, s := range g.states {
			if s == PendingAdd && !wanted[cs] {
				delete(g.states, cs)
			}
		}
	}

	g.snapshotsApplied++
	return changed
}

func sortCallsigns(cs []aviation.Callsign) {
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
}
