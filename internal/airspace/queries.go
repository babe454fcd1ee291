package airspace

import (
	"math"

	"github.com/yegors/airspace-monitor/internal/aviation"
)

// OnlineStations returns online ATC stations, nearest first
func (m *Monitor) OnlineStations() []aviation.AtcStation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.onlineList()
}

// BookedStations returns booked ATC stations ordered by booking start
func (m *Monitor) BookedStations() []aviation.AtcStation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.bookedList()
}

// Aircraft returns aircraft in range, nearest first
func (m *Monitor) Aircraft() []aviation.RemoteAircraft {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.aircraftList()
}

func (m *Monitor) AircraftByCallsign(callsign aviation.Callsign) (aviation.RemoteAircraft, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ac, ok := m.registry.remoteAircraft(aviation.NewCallsign(string(callsign)))
	if !ok {
		return aviation.RemoteAircraft{}, false
	}
	return *ac, true
}

func (m *Monitor) OnlineStation(callsign aviation.Callsign) (aviation.AtcStation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.registry.onlineStation(aviation.NewCallsign(string(callsign)))
	if !ok {
		return aviation.AtcStation{}, false
	}
	return *s, true
}

// AtcStationForComUnit returns the nearest online station tuned in on com's active frequency
func (m *Monitor) AtcStationForComUnit(com aviation.ComSystem) (aviation.AtcStation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *aviation.AtcStation
	bestDistance := math.Inf(1)
	for _, s := range m.registry.online {
		if !s.IsTunedIn(com) {
			continue
		}
		d := sortableDistance(s.DistanceNM)
		if best == nil || d < bestDistance || (d == bestDistance && s.Callsign < best.Callsign) {
			best = s
			bestDistance = d
		}
	}
	if best == nil {
		return aviation.AtcStation{}, false
	}
	return *best, true
}

// Users returns controllers of online stations and pilots of aircraft in range
func (m *Monitor) Users() []aviation.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]aviation.User, 0, len(m.registry.online)+len(m.registry.aircraft))
	for _, s := range m.registry.onlineList() {
		users = append(users, s.Controller)
	}
	for _, a := range m.registry.aircraftList() {
		users = append(users, a.Pilot)
	}
	return users
}

// UsersForCallsigns resolves one user per callsign from the own aircraft,
// aircraft in range, online stations and finally the data file
func (m *Monitor) UsersForCallsigns(callsigns []aviation.Callsign) []aviation.User {
	if len(callsigns) == 0 {
		return nil
	}
	var own aviation.OwnAircraft
	if m.own != nil {
		own = m.own.Get()
	}

	m.mu.RLock()
	users := make([]aviation.User, 0, len(callsigns))
	var unresolved []aviation.Callsign
	for _, raw := range callsigns {
		cs := aviation.NewCallsign(string(raw))
		if cs.IsEmpty() {
			continue
		}
		if !own.Callsign.IsEmpty() && cs == own.Callsign {
			users = append(users, own.Pilot)
		} else if a, ok := m.registry.aircraft[cs]; ok {
			users = append(users, a.Pilot)
		} else if s, ok := m.registry.online[cs]; ok {
			users = append(users, s.Controller)
		} else {
			unresolved = append(unresolved, cs)
		}
	}
	m.mu.RUnlock()

	for _, cs := range unresolved {
		var found []aviation.User
		if m.static != nil {
			found = m.static.UsersForCallsign(cs)
		}
		if len(found) > 0 {
			users = append(users, found[0])
		} else {
			users = append(users, aviation.User{Callsign: cs})
		}
	}
	return users
}

// MetarCache exposes the METAR cache for inspection
func (m *Monitor) MetarCache() *MetarCache {
	return m.metars
}

// Clients returns the other network clients ordered by callsign
func (m *Monitor) Clients() []aviation.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.clientList()
}

func (m *Monitor) Client(callsign aviation.Callsign) (aviation.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.registry.clients[aviation.NewCallsign(string(callsign))]
	if !ok {
		return aviation.Client{}, false
	}
	client := *c
	client.Capabilities = append([]aviation.Capability(nil), c.Capabilities...)
	return client, true
}

// FlightPlan returns the cached flight plan regardless of age
func (m *Monitor) FlightPlan(callsign aviation.Callsign) (aviation.FlightPlan, bool) {
	return m.flightPlans.get(aviation.NewCallsign(string(callsign)).String())
}
