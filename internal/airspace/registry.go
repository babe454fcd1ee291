package airspace

import (
	"math"
	"sort"

	"github.com/yegors/airspace-monitor/internal/aviation"
)

// Registry holds online and booked ATC stations, remote aircraft and the other
// network clients, each keyed by callsign.
// It is not safe for concurrent use; Monitor guards it.
type Registry struct {
	online   map[aviation.Callsign]*aviation.AtcStation
	booked   map[aviation.Callsign]*aviation.AtcStation
	aircraft map[aviation.Callsign]*aviation.RemoteAircraft
	clients  map[aviation.Callsign]*aviation.Client
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		online:   make(map[aviation.Callsign]*aviation.AtcStation),
		booked:   make(map[aviation.Callsign]*aviation.AtcStation),
		aircraft: make(map[aviation.Callsign]*aviation.RemoteAircraft),
		clients:  make(map[aviation.Callsign]*aviation.Client),
	}
}

func (r *Registry) onlineStation(cs aviation.Callsign) (*aviation.AtcStation, bool) {
	s, ok := r.online[cs]
	return s, ok
}

func (r *Registry) bookedStation(cs aviation.Callsign) (*aviation.AtcStation, bool) {
	s, ok := r.booked[cs]
	return s, ok
}

func (r *Registry) remoteAircraft(cs aviation.Callsign) (*aviation.RemoteAircraft, bool) {
	a, ok := r.aircraft[cs]
	return a, ok
}

// client returns the client for cs, creating it when missing
func (r *Registry) client(cs aviation.Callsign) *aviation.Client {
	c, ok := r.clients[cs]
	if !ok {
		c = &aviation.Client{Callsign: cs, User: aviation.User{Callsign: cs}}
		r.clients[cs] = c
	}
	return c
}

// applyStation runs fn on the online and booked entries for cs and reports which lists were hit
func (r *Registry) applyStation(cs aviation.Callsign, fn func(s *aviation.AtcStation, booked bool)) (hitOnline, hitBooked bool) {
	if s, ok := r.online[cs]; ok {
		fn(s, false)
		hitOnline = true
	}
	if s, ok := r.booked[cs]; ok {
		fn(s, true)
		hitBooked = true
	}
	return hitOnline, hitBooked
}

func (r *Registry) clearOnline() {
	r.online = make(map[aviation.Callsign]*aviation.AtcStation)
}

func (r *Registry) clearAircraft() []aviation.Callsign {
	removed := make([]aviation.Callsign, 0, len(r.aircraft))
	for cs := range r.aircraft {
		removed = append(removed, cs)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	r.aircraft = make(map[aviation.Callsign]*aviation.RemoteAircraft)
	return removed
}

func (r *Registry) clearClients() {
	r.clients = make(map[aviation.Callsign]*aviation.Client)
}

func (r *Registry) clientList() []aviation.Client {
	out := make([]aviation.Client, 0, len(r.clients))
	for _, c := range r.clients {
		client := *c
		client.Capabilities = append([]aviation.Capability(nil), c.Capabilities...)
		out = append(out, client)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Callsign < out[j].Callsign })
	return out
}

func (r *Registry) onlineList() []aviation.AtcStation {
	return stationList(r.online, byDistance)
}

func (r *Registry) bookedList() []aviation.AtcStation {
	return stationList(r.booked, func(a, b aviation.AtcStation) bool {
		if !a.BookedFrom.Equal(b.BookedFrom) {
			return a.BookedFrom.Before(b.BookedFrom)
		}
		return a.Callsign < b.Callsign
	})
}

func (r *Registry) aircraftList() []aviation.RemoteAircraft {
	out := make([]aviation.RemoteAircraft, 0, len(r.aircraft))
	for _, a := range r.aircraft {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := sortableDistance(out[i].DistanceNM), sortableDistance(out[j].DistanceNM)
		if di != dj {
			return di < dj
		}
		return out[i].Callsign < out[j].Callsign
	})
	return out
}

func stationList(m map[aviation.Callsign]*aviation.AtcStation, less func(a, b aviation.AtcStation) bool) []aviation.AtcStation {
	out := make([]aviation.AtcStation, 0, len(m))
	for _, s := range m {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byDistance(a, b aviation.AtcStation) bool {
	da, db := sortableDistance(a.DistanceNM), sortableDistance(b.DistanceNM)
	if da != db {
		return da < db
	}
	return a.Callsign < b.Callsign
}

// sortableDistance puts unknown (negative) distances last
func sortableDistance(d float64) float64 {
	if d < 0 {
		return math.Inf(1)
	}
	return d
}
