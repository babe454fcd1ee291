package datafile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/feeds"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Reader keeps the latest VATSIM data file and answers static lookups from it
type Reader struct {
	poller *feeds.Poller
	logger *logger.Logger

	mu          sync.RWMutex
	updated     time.Time
	pilots      map[aviation.Callsign]Pilot
	controllers map[aviation.Callsign]Controller
	servers     []FsdServer
}

// NewReader creates a data file reader for url
func NewReader(url string, interval time.Duration, client *feeds.Client, log *logger.Logger) *Reader {
	r := &Reader{
		logger:      log.Named("datafile"),
		pilots:      make(map[aviation.Callsign]Pilot),
		controllers: make(map[aviation.Callsign]Controller),
	}
	r.poller = feeds.NewPoller("datafile-feed", url, interval, client, r.Load, log)
	return r
}

func (r *Reader) Start() error { return r.poller.Start() }
func (r *Reader) Stop() error  { return r.poller.Stop() }

// Refresh reads the data file now
func (r *Reader) Refresh(ctx context.Context) (feeds.Result, error) {
	return r.poller.Refresh(ctx)
}

// Load replaces the data with a decoded data file. Files older than the loaded one are ignored.
func (r *Reader) Load(body []byte) error {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode data file: %w", err)
	}

	pilots := make(map[aviation.Callsign]Pilot, len(doc.Pilots))
	for _, p := range doc.Pilots {
		cs := aviation.NewCallsign(p.Callsign)
		if !cs.IsEmpty() {
			pilots[cs] = p
		}
	}
	controllers := make(map[aviation.Callsign]Controller, len(doc.Controllers)+len(doc.Atis))
	for _, list := range [][]Controller{doc.Controllers, doc.Atis} {
		for _, c := range list {
			cs := aviation.NewCallsign(c.Callsign)
			if !cs.IsEmpty() {
				controllers[cs] = c
			}
		}
	}
	servers := make([]FsdServer, 0, len(doc.Servers))
	for _, s := range doc.Servers {
		if s.Name != "" {
			servers = append(servers, s)
		}
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })

	r.mu.Lock()
	if !doc.General.UpdateTimestamp.IsZero() && doc.General.UpdateTimestamp.Before(r.updated) {
		r.mu.Unlock()
		r.logger.Debug("Ignoring older data file", logger.Time("update_timestamp", doc.General.UpdateTimestamp))
		return nil
	}
	r.updated = doc.General.UpdateTimestamp
	r.pilots = pilots
	r.controllers = controllers
	r.servers = servers
	r.mu.Unlock()

	r.logger.Info("Data file loaded",
		logger.Int("pilots", len(pilots)),
		logger.Int("controllers", len(controllers)),
		logger.Int("servers", len(servers)))
	return nil
}

// UpdateTimestamp is the timestamp of the loaded file
func (r *Reader) UpdateTimestamp() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated
}

// Servers returns the FSD servers listed in the file
func (r *Reader) Servers() []FsdServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]FsdServer(nil), r.servers...)
}

// UpdateStation fills fields the network has not provided yet
func (r *Reader) UpdateStation(station *aviation.AtcStation) {
	r.mu.RLock()
	c, ok := r.controllers[station.Callsign]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if station.Controller.ID == "" && c.CID != 0 {
		station.Controller.ID = strconv.Itoa(c.CID)
	}
	if station.Controller.RealName == "" {
		station.Controller.RealName = strings.TrimSpace(c.Name)
	}
	station.Controller.Callsign = station.Callsign
	if station.Frequency.IsZero() {
		if f, err := aviation.ParseFrequency(c.Frequency); err == nil {
			station.Frequency = f
		}
	}
	if station.RangeNM == 0 && c.VisualRange > 0 {
		station.RangeNM = float64(c.VisualRange)
	}
	if station.Atis.IsEmpty() && len(c.TextAtis) > 0 {
		station.Atis = aviation.InformationMessage{
			Type:       aviation.InformationATIS,
			Message:    strings.Join(c.TextAtis, "\n"),
			ReceivedAt: c.LastUpdated,
		}
	}
	if station.Server == "" {
		station.Server = c.Server
	}
}

// UpdateAircraft fills pilot, ICAO code and server from the file
func (r *Reader) UpdateAircraft(aircraft *aviation.RemoteAircraft) {
	r.mu.RLock()
	p, ok := r.pilots[aircraft.Callsign]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if aircraft.Pilot.ID == "" && p.CID != 0 {
		aircraft.Pilot.ID = strconv.Itoa(p.CID)
	}
	if aircraft.Pilot.RealName == "" {
		aircraft.Pilot.RealName = strings.TrimSpace(p.Name)
	}
	aircraft.Pilot.Callsign = aircraft.Callsign
	if aircraft.Icao.AircraftDesignator == "" {
		if d := pilotDesignator(p); d != "" {
			aircraft.Icao.AircraftDesignator = d
		}
	}
	if aircraft.Server == "" {
		aircraft.Server = p.Server
	}
}

// IcaoForCallsign returns the aircraft type filed for callsign
func (r *Reader) IcaoForCallsign(callsign aviation.Callsign) (aviation.AircraftIcao, bool) {
	r.mu.RLock()
	p, ok := r.pilots[callsign]
	r.mu.RUnlock()
	if !ok {
		return aviation.AircraftIcao{}, false
	}
	d := pilotDesignator(p)
	if d == "" {
		return aviation.AircraftIcao{}, false
	}
	return aviation.AircraftIcao{AircraftDesignator: d, AirlineDesignator: airlineFromCallsign(callsign)}, true
}

// UsersForCallsign returns pilots and controllers logged in as callsign
func (r *Reader) UsersForCallsign(callsign aviation.Callsign) []aviation.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []aviation.User
	if p, ok := r.pilots[callsign]; ok {
		users = append(users, aviation.User{ID: strconv.Itoa(p.CID), RealName: strings.TrimSpace(p.Name), Callsign: callsign})
	}
	if c, ok := r.controllers[callsign]; ok {
		users = append(users, aviation.User{ID: strconv.Itoa(c.CID), RealName: strings.TrimSpace(c.Name), Callsign: callsign})
	}
	return users
}

func pilotDesignator(p Pilot) string {
	if p.FlightPlan == nil {
		return ""
	}
	if d := strings.ToUpper(strings.TrimSpace(p.FlightPlan.AircraftShort)); isValidDesignator(d) {
		return d
	}
	return designatorFromEquipment(p.FlightPlan.Aircraft)
}

// designatorFromEquipment extracts the type from codes like "H/B744/L" or "B738/M"
func designatorFromEquipment(code string) string {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(code)), "/")
	candidate := parts[0]
	if len(parts) > 1 && len(parts[0]) == 1 {
		candidate = parts[1]
	}
	if i := strings.IndexByte(candidate, '-'); i > 0 {
		candidate = candidate[:i]
	}
	if isValidDesignator(candidate) {
		return candidate
	}
	return ""
}

func isValidDesignator(d string) bool {
	if len(d) < 2 || len(d) > 4 {
		return false
	}
	hasLetter := false
	for _, ch := range d {
		switch {
		case ch >= 'A' && ch <= 'Z':
			hasLetter = true
		case ch >= '0' && ch <= '9':
		default:
			return false
		}
	}
	return hasLetter
}

// airlineFromCallsign returns the leading three letters of airline style callsigns such as DLH123
func airlineFromCallsign(cs aviation.Callsign) string {
	s := cs.String()
	if len(s) < 4 {
		return ""
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return ""
		}
	}
	if s[3] < '0' || s[3] > '9' {
		return ""
	}
	return s[:3]
}
