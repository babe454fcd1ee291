package voice

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// ErrInvalidState is returned when a request would break the two-slot layout
var ErrInvalidState = errors.New("invalid voice room state")

// ComUnits is the number of COM radios, and so of voice room slots
const ComUnits = 2

// Stations finds the station a COM unit is tuned to
type Stations interface {
	AtcStationForComUnit(com aviation.ComSystem) (aviation.AtcStation, bool)
}

// Cockpit gives access to the own COM radios
type Cockpit interface {
	ComSystems() [2]aviation.ComSystem
}

// Resolver maps COM1/COM2 to ATC stations and voice rooms
type Resolver struct {
	stations Stations
	cockpit  Cockpit
	bus      *events.Bus
	logger   *logger.Logger

	mu        sync.Mutex
	overrides [ComUnits]string
	automatic bool
	current   [ComUnits]aviation.VoiceRoom
}

// NewResolver creates a resolver and subscribes it to cockpit and station changes
func NewResolver(stations Stations, cockpit Cockpit, bus *events.Bus, automatic bool, log *logger.Logger) *Resolver {
	r := &Resolver{
		stations:  stations,
		cockpit:   cockpit,
		bus:       bus,
		automatic: automatic,
		logger:    log.Named("voice"),
	}

	events.On(bus, func(events.CockpitChanged) { r.Recompute() })
	events.On(bus, func(e events.AtcStationConnectionChanged) {
		if r.isOnActiveFrequency(e.Station) {
			r.Recompute()
		}
	})
	return r
}

func (r *Resolver) isOnActiveFrequency(station aviation.AtcStation) bool {
	for _, com := range r.cockpit.ComSystems() {
		if station.IsTunedIn(com) {
			return true
		}
	}
	return false
}

// SelectedStations returns the nearest tuned-in station per COM unit; unmatched slots are empty
func (r *Resolver) SelectedStations() [ComUnits]aviation.AtcStation {
	var selected [ComUnits]aviation.AtcStation
	for i, com := range r.cockpit.ComSystems() {
		if s, ok := r.stations.AtcStationForComUnit(com); ok {
			selected[i] = s
		}
	}
	return selected
}

// SelectedVoiceRooms returns the voice room per COM unit, overrides taking precedence
func (r *Resolver) SelectedVoiceRooms() [ComUnits]aviation.VoiceRoom {
	stations := r.SelectedStations()

	r.mu.Lock()
	overrides := r.overrides
	r.mu.Unlock()

	var rooms [ComUnits]aviation.VoiceRoom
	for i := range rooms {
		if overrides[i] != "" {
			rooms[i] = aviation.VoiceRoom{URL: overrides[i]}
			continue
		}
		rooms[i] = aviation.VoiceRoom{URL: stations[i].VoiceRoom.URL}
	}
	return rooms
}

// CurrentVoiceRooms returns the rooms last published by Recompute
func (r *Resolver) CurrentVoiceRooms() [ComUnits]aviation.VoiceRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Overrides returns the manual URL per COM unit
func (r *Resolver) Overrides() [ComUnits]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overrides
}

// SetOverrides sets the manual voice room URLs, one per COM unit; empty entries clear the override
func (r *Resolver) SetOverrides(urls []string) error {
	if len(urls) != ComUnits {
		return fmt.Errorf("%w: expected %d voice room overrides, got %d", ErrInvalidState, ComUnits, len(urls))
	}
	r.mu.Lock()
	for i, u := range urls {
		r.overrides[i] = strings.TrimSpace(u)
	}
	r.mu.Unlock()

	r.Recompute()
	return nil
}

func (r *Resolver) SetAutomaticResolution(enabled bool) {
	r.mu.Lock()
	r.automatic = enabled
	r.mu.Unlock()

	if enabled {
		r.Recompute()
	}
}

func (r *Resolver) AutomaticResolution() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.automatic
}

// Recompute resolves the voice rooms and publishes VoiceRoomsChanged when they differ.
// Nothing happens unless an override is set or automatic resolution is on.
func (r *Resolver) Recompute() ([ComUnits]aviation.VoiceRoom, bool) {
	r.mu.Lock()
	active := r.automatic || r.overrides[0] != "" || r.overrides[1] != ""
	current := r.current
	r.mu.Unlock()
	if !active {
		return current, false
	}

	rooms := r.SelectedVoiceRooms()

	r.mu.Lock()
	for i := range rooms {
		if rooms[i].URL == r.current[i].URL {
			rooms[i].Connected = r.current[i].Connected
		}
	}
	changed := rooms != r.current
	r.current = rooms
	r.mu.Unlock()

	if changed {
		r.logger.Info("Voice rooms changed",
			logger.String("com1", rooms[0].URL),
			logger.String("com2", rooms[1].URL))
		r.bus.Publish(events.VoiceRoomsChanged{Rooms: rooms})
	}
	return rooms, changed
}

// SetConnected records whether the audio side joined the room on a COM unit
func (r *Resolver) SetConnected(unit int, connected bool) error {
	if unit < 0 || unit >= ComUnits {
		return fmt.Errorf("%w: no COM unit %d", ErrInvalidState, unit+1)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.current[unit].IsValid() {
		return fmt.Errorf("%w: no voice room on COM%d", ErrInvalidState, unit+1)
	}
	r.current[unit].Connected = connected
	return nil
}
