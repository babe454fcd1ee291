package simulator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// ErrMissingModel is returned when an aircraft without a resolved model string is added
var ErrMissingModel = errors.New("aircraft has no model string")

const (
	// MaxAircraftInfinite means the aircraft count is not restricted
	MaxAircraftInfinite = 100
	// RenderedDistanceBoundaryNM is the largest distance restriction accepted
	RenderedDistanceBoundaryNM = 20.0
	// ReAddDelay is how long a logically re-added aircraft stays removed
	ReAddDelay = 2500 * time.Millisecond
)

// RenderState is the per-aircraft rendering state
type RenderState string

const (
	NotRendered   RenderState = "not_rendered"
	PendingAdd    RenderState = "pending_add"
	Rendered      RenderState = "rendered"
	PendingRemove RenderState = "pending_remove"
)

// Driver is the simulator side that physically shows aircraft
type Driver interface {
	PhysicallyAddRemoteAircraft(aircraft aviation.RemoteAircraft) error
	PhysicallyRemoveRemoteAircraft(callsign aviation.Callsign) error
	UpdateRemoteAircraftSituation(aircraft aviation.RemoteAircraft) error
	UpdateRemoteAircraftParts(aircraft aviation.RemoteAircraft) error
}

// AircraftProvider supplies the aircraft in range
type AircraftProvider interface {
	Aircraft() []aviation.RemoteAircraft
	AircraftByCallsign(callsign aviation.Callsign) (aviation.RemoteAircraft, bool)
	SetAircraftRendered(callsign aviation.Callsign, rendered bool)
}

// Restrictions is the rendering restriction in effect
type Restrictions struct {
	MaxAircraft        int     `json:"max_aircraft"`
	MaxDistanceNM      float64 `json:"max_distance_nm"`
	DistanceRestricted bool    `json:"distance_restricted"`
	Restricted         bool    `json:"restricted"`
	RenderingEnabled   bool    `json:"rendering_enabled"`
	DistanceBoundaryNM float64 `json:"distance_boundary_nm"`
}

// Stats are the gate counters
type Stats struct {
	Rendered          int   `json:"rendered"`
	PhysicallyAdded   int64 `json:"physically_added"`
	PhysicallyRemoved int64 `json:"physically_removed"`
	// AddFailures counts driver errors; aircraft still waiting for a model are MissingModel
	AddFailures      int64        `json:"add_failures"`
	RemoveFailures   int64        `json:"remove_failures"`
	MissingModel     int64        `json:"missing_model"`
	SituationUpdates int64        `json:"situation_updates"`
	PartsUpdates     int64        `json:"parts_updates"`
	SnapshotsApplied int64        `json:"snapshots_applied"`
	Highlighted      int          `json:"highlighted"`
	Limiter          LimiterStats `json:"limiter"`
}

// Gate reconciles the aircraft that should be rendered with the ones the simulator shows
type Gate struct {
	driver   Driver
	provider AircraftProvider
	limiter  *UpdateLimiter
	logger   *logger.Logger

	mu                 sync.Mutex
	states             map[aviation.Callsign]RenderState
	maxAircraft        int
	maxDistanceNM      float64
	distanceRestricted bool
	lastRestrictions   Restrictions

	highlighted  map[aviation.Callsign]aviation.RemoteAircraft
	highlightEnd time.Time
	blinkCycle   bool

	added, removed, addFailures, removeFailures, missingModel int64
	situationUpdates, partsUpdates, snapshotsApplied          int64

	now      func() time.Time
	schedule func(d time.Duration, fn func())
}

// NewGate creates an unrestricted gate limited to updatesPerSecond situation and parts updates
func NewGate(driver Driver, provider AircraftProvider, updatesPerSecond int, log *logger.Logger) *Gate {
	g := &Gate{
		driver:      driver,
		provider:    provider,
		limiter:     NewUpdateLimiter(updatesPerSecond),
		logger:      log.Named("rendering"),
		states:      make(map[aviation.Callsign]RenderState),
		maxAircraft: MaxAircraftInfinite,
		highlighted: make(map[aviation.Callsign]aviation.RemoteAircraft),
		now:         time.Now,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	g.lastRestrictions = g.restrictionsLocked()
	return g
}

// Subscribe wires the gate to aircraft lifecycle events
func (g *Gate) Subscribe(bus *events.Bus) {
	events.On(bus, func(e events.RemoteAircraftAdded) { g.logAddError(g.LogicallyAdd(e.Aircraft), e.Aircraft.Callsign) })
	events.On(bus, func(e events.RemoteAircraftRemoved) { g.LogicallyRemove(e.Callsign) })
	events.On(bus, func(e events.RemoteAircraftEnabledChanged) {
		if e.Aircraft.Enabled {
			g.logAddError(g.LogicallyAdd(e.Aircraft), e.Aircraft.Callsign)
		} else {
			g.LogicallyRemove(e.Aircraft.Callsign)
		}
	})
	events.On(bus, func(e events.RemoteAircraftModelChanged) { g.LogicallyReAdd(e.Aircraft.Callsign) })
	events.On(bus, func(e events.RemoteAircraftSituationChanged) { g.UpdateSituation(e.Aircraft) })
	events.On(bus, func(e events.RemoteAircraftPartsChanged) { g.UpdateParts(e.Aircraft) })
}

func (g *Gate) logAddError(err error, callsign aviation.Callsign) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrMissingModel) {
		g.logger.Debug("Aircraft not added yet, no model", logger.String("callsign", callsign.String()))
		return
	}
	g.logger.Warn("Failed to add aircraft", logger.String("callsign", callsign.String()), logger.Error(err))
}

// LogicallyAdd adds an enabled aircraft directly when unrestricted; restricted adds wait for the next snapshot
func (g *Gate) LogicallyAdd(aircraft aviation.RemoteAircraft) error {
	if !aircraft.Enabled {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.isRestrictedLocked() {
		if g.stateLocked(aircraft.Callsign) == NotRendered {
			g.states[aircraft.Callsign] = PendingAdd
		}
		return nil
	}
	return g.physicallyAddLocked(aircraft)
}

// LogicallyRemove removes directly when unrestricted; restricted removals wait for the next snapshot
func (g *Gate) LogicallyRemove(callsign aviation.Callsign) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.isRestrictedLocked() {
		switch g.stateLocked(callsign) {
		case Rendered:
			g.states[callsign] = PendingRemove
		case PendingAdd:
			delete(g.states, callsign)
		}
		return
	}
	g.physicallyRemoveLocked(callsign)
}

// LogicallyReAdd removes an aircraft and adds it again after ReAddDelay if it is still in range and enabled
func (g *Gate) LogicallyReAdd(callsign aviation.Callsign) {
	g.mu.Lock()
	g.physicallyRemoveLocked(callsign)
	g.mu.Unlock()

	g.schedule(ReAddDelay, func() {
		aircraft, ok := g.provider.AircraftByCallsign(callsign)
		if !ok || !aircraft.Enabled {
			return
		}
		g.logAddError(g.LogicallyAdd(aircraft), callsign)
	})
}

// ResetAircraftFromBackend makes the simulator match the provider's state for one aircraft
func (g *Gate) ResetAircraftFromBackend(callsign aviation.Callsign) error {
	aircraft, ok := g.provider.AircraftByCallsign(callsign)

	g.mu.Lock()
	defer g.mu.Unlock()
	if ok && aircraft.Enabled {
		if g.stateLocked(callsign) != Rendered {
			return g.physicallyAddLocked(aircraft)
		}
		return nil
	}
	g.physicallyRemoveLocked(callsign)
	return nil
}

// UpdateSituation pushes a situation of a rendered aircraft through the limiter
func (g *Gate) UpdateSituation(aircraft aviation.RemoteAircraft) bool {
	return g.limitedUpdate(aircraft, "situation", g.driver.UpdateRemoteAircraftSituation, &g.situationUpdates)
}

// UpdateParts pushes the parts of a rendered aircraft through the same limiter as situations
func (g *Gate) UpdateParts(aircraft aviation.RemoteAircraft) bool {
	if !aircraft.PartsSynchronized {
		return false
	}
	return g.limitedUpdate(aircraft, "parts", g.driver.UpdateRemoteAircraftParts, &g.partsUpdates)
}

func (g *Gate) limitedUpdate(aircraft aviation.RemoteAircraft, kind string, send func(aviation.RemoteAircraft) error, counter *int64) bool {
	g.mu.Lock()
	rendered := g.stateLocked(aircraft.Callsign) == Rendered
	g.mu.Unlock()
	if !rendered {
		return false
	}
	if !g.limiter.AllowAt(g.now()) {
		return false
	}
	if err := send(aircraft); err != nil {
		g.logger.Debug("Update failed",
			logger.String("kind", kind),
			logger.String("callsign", aircraft.Callsign.String()),
			logger.Error(err))
		return false
	}
	g.mu.Lock()
	*counter++
	g.mu.Unlock()
	return true
}

func (g *Gate) physicallyAddLocked(aircraft aviation.RemoteAircraft) error {
	if aircraft.Callsign.IsEmpty() {
		return fmt.Errorf("add aircraft: empty callsign")
	}
	if aircraft.ModelString == "" {
		g.missingModel++
		return fmt.Errorf("add %s: %w", aircraft.Callsign, ErrMissingModel)
	}
	if g.stateLocked(aircraft.Callsign) == Rendered {
		return nil
	}
	if err := g.driver.PhysicallyAddRemoteAircraft(aircraft); err != nil {
		// not shown yet; retryPendingLocked or the next snapshot tries again
		g.addFailures++
		g.states[aircraft.Callsign] = PendingAdd
		return fmt.Errorf("add %s: %w", aircraft.Callsign, err)
	}
	g.states[aircraft.Callsign] = Rendered
	g.added++
	g.provider.SetAircraftRendered(aircraft.Callsign, true)
	return nil
}

// physicallyRemoveLocked is a silent no-op for aircraft that are not rendered
func (g *Gate) physicallyRemoveLocked(callsign aviation.Callsign) bool {
	state := g.stateLocked(callsign)
	if state != Rendered && state != PendingRemove {
		delete(g.states, callsign)
		return false
	}
	if err := g.driver.PhysicallyRemoveRemoteAircraft(callsign); err != nil {
		g.logger.Warn("Failed to remove aircraft", logger.String("callsign", callsign.String()), logger.Error(err))
		g.removeFailures++
		g.states[callsign] = PendingRemove
		return false
	}
	delete(g.states, callsign)
	g.removed++
	g.provider.SetAircraftRendered(callsign, false)
	return true
}

// retryPendingLocked finishes adds and removals the driver rejected earlier
func (g *Gate) retryPendingLocked() bool {
	var pending []aviation.Callsign
	for cs, s := range g.states {
		if s == PendingAdd || s == PendingRemove {
			pending = append(pending, cs)
		}
	}
	sortCallsigns(pending)

	changed := false
	for _, cs := range pending {
		if g.states[cs] == PendingRemove {
			if g.physicallyRemoveLocked(cs) {
				changed = true
			}
			continue
		}
		ac, ok := g.provider.AircraftByCallsign(cs)
		if !ok || !ac.Enabled {
			delete(g.states, cs)
			continue
		}
		if err := g.physicallyAddLocked(ac); err != nil {
			g.logger.Debug("Retried add failed", logger.String("callsign", cs.String()), logger.Error(err))
			continue
		}
		changed = true
	}
	return changed
}

func (g *Gate) physicallyRemoveAllLocked() int {
	n := 0
	for cs := range g.states {
		if g.physicallyRemoveLocked(cs) {
			n++
		}
	}
	return n
}

func (g *Gate) stateLocked(callsign aviation.Callsign) RenderState {
	if s, ok := g.states[callsign]; ok {
		return s
	}
	return NotRendered
}

// State returns the rendering state of an aircraft
func (g *Gate) State(callsign aviation.Callsign) RenderState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked(callsign)
}

// RenderedCallsigns returns the aircraft currently shown in the simulator
func (g *Gate) RenderedCallsigns() []aviation.Callsign {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.renderedLocked()
}

func (g *Gate) renderedLocked() []aviation.Callsign {
	out := make([]aviation.Callsign, 0, len(g.states))
	for cs, s := range g.states {
		if s == Rendered || s == PendingRemove {
			out = append(out, cs)
		}
	}
	sortCallsigns(out)
	return out
}

// SetMaxRenderedAircraft sets the aircraft cap; less than one disables rendering
func (g *Gate) SetMaxRenderedAircraft(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case n < 1:
		g.maxAircraft = 0
		g.maxDistanceNM = 0
		g.distanceRestricted = true
	case n >= MaxAircraftInfinite:
		g.maxAircraft = MaxAircraftInfinite
	default:
		g.maxAircraft = n
	}
	g.logRestrictionsLocked()
}

// SetMaxRenderedDistance sets the distance cap. Negative or beyond the boundary clears it, zero disables rendering.
func (g *Gate) SetMaxRenderedDistance(nm float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case nm < 0 || nm > RenderedDistanceBoundaryNM:
		g.maxDistanceNM = 0
		g.distanceRestricted = false
	case nm == 0:
		g.maxAircraft = 0
		g.maxDistanceNM = 0
		g.distanceRestricted = true
	default:
		g.maxDistanceNM = nm
		g.distanceRestricted = true
	}
	g.logRestrictionsLocked()
}

// DeleteAllRestrictions returns to unrestricted rendering
func (g *Gate) DeleteAllRestrictions() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maxAircraft = MaxAircraftInfinite
	g.maxDistanceNM = 0
	g.distanceRestricted = false
	g.logRestrictionsLocked()
}

func (g *Gate) logRestrictionsLocked() {
	r := g.restrictionsLocked()
	g.logger.Info("Rendering restrictions changed",
		logger.Bool("restricted", r.Restricted),
		logger.Bool("enabled", r.RenderingEnabled),
		logger.Int("max_aircraft", r.MaxAircraft),
		logger.Float64("max_distance_nm", r.MaxDistanceNM))
}

func (g *Gate) isRestrictedLocked() bool {
	return g.distanceRestricted || g.maxAircraft < MaxAircraftInfinite
}

func (g *Gate) isRenderingEnabledLocked() bool {
	if g.maxAircraft < 1 {
		return false
	}
	if !g.distanceRestricted {
		return true
	}
	return g.maxDistanceNM > 0
}

func (g *Gate) restrictionsLocked() Restrictions {
	maxDistance := g.maxDistanceNM
	if !g.distanceRestricted {
		maxDistance = RenderedDistanceBoundaryNM
	}
	return Restrictions{
		MaxAircraft:        g.maxAircraft,
		MaxDistanceNM:      maxDistance,
		DistanceRestricted: g.distanceRestricted,
		Restricted:         g.isRestrictedLocked(),
		RenderingEnabled:   g.isRenderingEnabledLocked(),
		DistanceBoundaryNM: RenderedDistanceBoundaryNM,
	}
}

// Restrictions returns the current rendering restrictions
func (g *Gate) Restrictions() Restrictions {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.restrictionsLocked()
}

// SetUpdatesPerSecond reconfigures the situation update limiter
func (g *Gate) SetUpdatesPerSecond(n int) {
	g.limiter.SetRate(n)
}

// Stats returns the gate counters
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Rendered:          len(g.renderedLocked()),
		PhysicallyAdded:   g.added,
		PhysicallyRemoved: g.removed,
		AddFailures:       g.addFailures,
		RemoveFailures:    g.removeFailures,
		MissingModel:      g.missingModel,
		SituationUpdates:  g.situationUpdates,
		PartsUpdates:      g.partsUpdates,
		SnapshotsApplied:  g.snapshotsApplied,
		Highlighted:       len(g.highlighted),
		Limiter:           g.limiter.Stats(),
	}
}
