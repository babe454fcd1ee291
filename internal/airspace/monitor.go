package airspace

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

var (
	ErrEmptyCallsign   = errors.New("empty callsign")
	ErrUnknownAircraft = errors.New("unknown aircraft")
)

// Queries is the part of the network driver used for follow-up requests
type Queries interface {
	IsConnected() bool
	SendFrequencyQuery(callsign aviation.Callsign) error
	SendRealNameQuery(callsign aviation.Callsign) error
	SendIcaoCodesQuery(callsign aviation.Callsign) error
	SendAtisQuery(callsign aviation.Callsign) error
	SendServerQuery(callsign aviation.Callsign) error
	SendCapabilitiesQuery(callsign aviation.Callsign) error
	SendAircraftModelQuery(callsign aviation.Callsign) error
	SendFlightPlanQuery(callsign aviation.Callsign) error
	SendMetarQuery(icao string) error
}

// OwnAircraft gives read access to the own aircraft
type OwnAircraft interface {
	Get() aviation.OwnAircraft
	Position() aviation.Position
}

// StaticData enriches entries from the network data file
type StaticData interface {
	UpdateStation(station *aviation.AtcStation)
	UpdateAircraft(aircraft *aviation.RemoteAircraft)
	IcaoForCallsign(callsign aviation.Callsign) (aviation.AircraftIcao, bool)
	UsersForCallsign(callsign aviation.Callsign) []aviation.User
}

// Options tune the METAR and flight plan caches
type Options struct {
	MetarStaleAfter      time.Duration
	MetarWait            time.Duration
	MetarCacheSize       int
	FlightPlanStaleAfter time.Duration
	FlightPlanWait       time.Duration
}

// Monitor folds network callbacks into the registry
type Monitor struct {
	mu       sync.RWMutex
	registry *Registry

	network     Queries
	own         OwnAircraft
	static      StaticData
	metars      *MetarCache
	flightPlans *replyCache[aviation.FlightPlan]
	bus         *events.Bus
	logger      *logger.Logger
	now         func() time.Time
}

// NewMonitor creates a monitor. static may be nil.
func NewMonitor(network Queries, own OwnAircraft, static StaticData, bus *events.Bus, opts Options, log *logger.Logger) (*Monitor, error) {
	metars, err := NewMetarCache(opts.MetarCacheSize, opts.MetarStaleAfter, opts.MetarWait)
	if err != nil {
		return nil, err
	}
	flightPlans, err := newFlightPlanCache(opts.FlightPlanStaleAfter, opts.FlightPlanWait)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		registry:    NewRegistry(),
		network:     network,
		own:         own,
		static:      static,
		metars:      metars,
		flightPlans: flightPlans,
		bus:         bus,
		logger:      log.Named("airspace"),
		now:         time.Now,
	}

	events.On(bus, func(events.OwnPositionChanged) { m.RecalculateDistances() })
	return m, nil
}

// batch collects events and queries while the lock is held; flush runs them after unlock
type batch struct {
	events  []events.Event
	queries []func() error
}

func (b *batch) emit(e events.Event)   { b.events = append(b.events, e) }
func (b *batch) query(q func() error) { b.queries = append(b.queries, q) }

func (m *Monitor) flush(b *batch) {
	for _, q := range b.queries {
		if err := q(); err != nil {
			m.logger.Debug("Follow-up query failed", logger.Error(err))
		}
	}
	for _, e := range b.events {
		m.bus.Publish(e)
	}
}

func (m *Monitor) isConnected() bool {
	return m.network != nil && m.network.IsConnected()
}

func (m *Monitor) ownPosition() aviation.Position {
	if m.own == nil {
		return aviation.Position{}
	}
	return m.own.Position()
}

// OnAircraftPositionUpdate creates or updates a remote aircraft
func (m *Monitor) OnAircraftPositionUpdate(callsign aviation.Callsign, situation aviation.Situation, transponder aviation.Transponder) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}
	own := m.ownPosition()
	connected := m.isConnected()

	var b batch
	m.mu.Lock()
	ac, known := m.registry.remoteAircraft(callsign)
	if !known {
		ac = &aviation.RemoteAircraft{
			Callsign:    callsign,
			Pilot:       aviation.User{Callsign: callsign},
			Situation:   situation,
			Transponder: transponder,
			DistanceNM:  own.DistanceNM(situation.Position),
			BearingDeg:  own.BearingTo(situation.Position),
			Enabled:     true,
		}
		if m.static != nil {
			m.static.UpdateAircraft(ac)
		}
		m.registry.aircraft[callsign] = ac
		m.registry.client(callsign)

		if connected {
			b.query(func() error { return m.network.SendFrequencyQuery(callsign) })
			b.query(func() error { return m.network.SendRealNameQuery(callsign) })
			b.query(func() error { return m.network.SendIcaoCodesQuery(callsign) })
			b.query(func() error { return m.network.SendCapabilitiesQuery(callsign) })
			b.query(func() error { return m.network.SendServerQuery(callsign) })
			b.query(func() error { return m.network.SendAircraftModelQuery(callsign) })
		}
		b.emit(events.RemoteAircraftAdded{Aircraft: *ac})
	} else {
		if isOutOfOrder(ac.Situation, situation) {
			m.mu.Unlock()
			m.logger.Debug("Dropping out of order situation",
				logger.String("callsign", callsign.String()),
				logger.Time("stored", ac.Situation.Timestamp),
				logger.Time("received", situation.Timestamp))
			return
		}
		ac.Situation = situation
		ac.Transponder = transponder
		ac.DistanceNM = own.DistanceNM(situation.Position)
		ac.BearingDeg = own.BearingTo(situation.Position)
		b.emit(events.RemoteAircraftSituationChanged{Aircraft: *ac})
	}
	b.emit(events.AircraftInRangeChanged{})
	m.mu.Unlock()

	m.flush(&b)
}

// isOutOfOrder reports whether next is older than stored; updates without timestamp always apply
func isOutOfOrder(stored, next aviation.Situation) bool {
	if stored.Timestamp.IsZero() || next.Timestamp.IsZero() {
		return false
	}
	return next.Timestamp.Before(stored.Timestamp)
}

// OnIcaoCodesReceived creates or updates a remote aircraft with its ICAO codes
func (m *Monitor) OnIcaoCodesReceived(callsign aviation.Callsign, icao aviation.AircraftIcao) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}
	if icao.AircraftDesignator == "" {
		if m.static == nil {
			return
		}
		fromFile, ok := m.static.IcaoForCallsign(callsign)
		if !ok || fromFile.AircraftDesignator == "" {
			return
		}
		icao = fromFile
	}
	connected := m.isConnected()
	own := m.ownPosition()

	var b batch
	m.mu.Lock()
	ac, known := m.registry.remoteAircraft(callsign)
	if !known {
		ac = &aviation.RemoteAircraft{
			Callsign:    callsign,
			Pilot:       aviation.User{Callsign: callsign},
			Icao:        icao,
			DistanceNM:  -1,
			Enabled:     true,
			ModelString: icao.AircraftDesignator,
		}
		if m.static != nil {
			m.static.UpdateAircraft(ac)
		}
		if !ac.Situation.Position.IsZero() {
			ac.DistanceNM = own.DistanceNM(ac.Situation.Position)
		}
		m.registry.aircraft[callsign] = ac
		m.registry.client(callsign)

		if connected {
			b.query(func() error { return m.network.SendFrequencyQuery(callsign) })
			b.query(func() error { return m.network.SendRealNameQuery(callsign) })
		}
		b.emit(events.RemoteAircraftAdded{Aircraft: *ac})
	} else {
		ac.Icao = icao
		if ac.ModelString == "" {
			ac.ModelString = icao.AircraftDesignator
			b.emit(events.RemoteAircraftModelChanged{Aircraft: *ac})
		}
	}
	b.emit(events.AircraftInRangeChanged{})
	m.mu.Unlock()

	m.flush(&b)
}

// OnFrequencyReceived sets COM1 of a known aircraft; unknown callsigns are ignored
func (m *Monitor) OnFrequencyReceived(callsign aviation.Callsign, frequency aviation.Frequency) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}

	var b batch
	m.mu.Lock()
	if ac, ok := m.registry.remoteAircraft(callsign); ok {
		ac.Com1 = frequency
		b.emit(events.AircraftInRangeChanged{})
	}
	m.mu.Unlock()

	m.flush(&b)
}

// OnPilotDisconnected removes an aircraft; removing an unknown callsign is a no-op
func (m *Monitor) OnPilotDisconnected(callsign aviation.Callsign) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}

	var b batch
	m.mu.Lock()
	delete(m.registry.clients, callsign)
	if _, ok := m.registry.aircraft[callsign]; ok {
		delete(m.registry.aircraft, callsign)
		b.emit(events.RemoteAircraftRemoved{Callsign: callsign})
		b.emit(events.AircraftInRangeChanged{})
	}
	m.mu.Unlock()
	m.flightPlans.remove(callsign.String())

	m.flush(&b)
}

// OnAtcPositionUpdate creates or patches an online ATC station
func (m *Monitor) OnAtcPositionUpdate(callsign aviation.Callsign, frequency aviation.Frequency, position aviation.Position, rangeNM float64) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}
	own := m.ownPosition()
	connected := m.isConnected()

	var b batch
	m.mu.Lock()
	if station, ok := m.registry.onlineStation(callsign); ok {
		station.Frequency = frequency
		station.Position = position
		station.RangeNM = rangeNM
		station.DistanceNM = own.DistanceNM(position)
	} else {
		station = &aviation.AtcStation{
			Callsign:   callsign,
			Controller: aviation.User{Callsign: callsign},
			Frequency:  frequency,
			Position:   position,
			RangeNM:    rangeNM,
			Online:     true,
			DistanceNM: own.DistanceNM(position),
		}
		if m.static != nil {
			m.static.UpdateStation(station)
		}
		if booking, ok := m.registry.bookedStation(callsign); ok {
			station.Booked = true
			station.BookedFrom = booking.BookedFrom
			station.BookedUntil = booking.BookedUntil
			if station.Controller.RealName == "" {
				station.Controller.RealName = booking.Controller.RealName
			}
		}
		m.registry.online[callsign] = station
		m.registry.client(callsign)

		if connected {
			b.query(func() error { return m.network.SendRealNameQuery(callsign) })
			b.query(func() error { return m.network.SendAtisQuery(callsign) })
			b.query(func() error { return m.network.SendServerQuery(callsign) })
		}
	}
	b.emit(events.AtcStationsOnlineChanged{})
	m.mu.Unlock()

	m.flush(&b)
}

// OnAtcDisconnected removes the online station and flags the booking offline
func (m *Monitor) OnAtcDisconnected(callsign aviation.Callsign) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}

	var b batch
	m.mu.Lock()
	delete(m.registry.clients, callsign)
	if station, ok := m.registry.onlineStation(callsign); ok {
		removed := *station
		delete(m.registry.online, callsign)
		b.emit(events.AtcStationsOnlineChanged{})
		b.emit(events.AtcStationConnectionChanged{Station: removed, Connected: false})
	}
	if booking, ok := m.registry.bookedStation(callsign); ok && booking.Online {
		booking.Online = false
		b.emit(events.AtcStationsBookedChanged{})
	}
	m.mu.Unlock()

	m.flush(&b)
}

// patchStation applies fn to the online and booked entries of callsign.
// Booked entries are marked online; a hit on the online list makes the station live.
func (m *Monitor) patchStation(callsign aviation.Callsign, fn func(s *aviation.AtcStation)) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}

	var b batch
	m.mu.Lock()
	hitOnline, hitBooked := m.registry.applyStation(callsign, func(s *aviation.AtcStation, booked bool) {
		fn(s)
		if booked {
			s.Online = true
		}
	})
	if hitOnline {
		station := *m.registry.online[callsign]
		b.emit(events.AtcStationsOnlineChanged{})
		b.emit(events.AtcStationConnectionChanged{Station: station, Connected: true})
	}
	if hitBooked {
		b.emit(events.AtcStationsBookedChanged{})
	}
	m.mu.Unlock()

	m.flush(&b)
}

// OnAtisReceived stores the ATIS of a station
func (m *Monitor) OnAtisReceived(callsign aviation.Callsign, atis aviation.InformationMessage) {
	atis.Type = aviation.InformationATIS
	if atis.ReceivedAt.IsZero() {
		atis.ReceivedAt = m.now()
	}
	m.patchStation(callsign, func(s *aviation.AtcStation) { s.Atis = atis })
}

// OnAtisVoiceRoomReceived stores the voice room URL of a station and marks the client voice capable
func (m *Monitor) OnAtisVoiceRoomReceived(callsign aviation.Callsign, url string) {
	url = strings.TrimSpace(url)
	if cs := aviation.NewCallsign(string(callsign)); url != "" && !cs.IsEmpty() {
		m.mu.Lock()
		if c, ok := m.registry.clients[cs]; ok {
			c.VoiceCapable = true
		}
		m.mu.Unlock()
	}
	m.patchStation(callsign, func(s *aviation.AtcStation) { s.VoiceRoom.URL = url })
}

// OnAtisLogoffTimeReceived stores a zulu HHMM logoff time as today's booked-until
func (m *Monitor) OnAtisLogoffTimeReceived(callsign aviation.Callsign, zuluHHMM string) {
	until, ok := parseLogoffTime(zuluHHMM, m.now())
	if !ok {
		m.logger.Debug("Ignoring invalid logoff time",
			logger.String("callsign", callsign.String()),
			logger.String("time", zuluHHMM))
		return
	}
	m.patchStation(callsign, func(s *aviation.AtcStation) { s.BookedUntil = until })
}

func parseLogoffTime(hhmm string, now time.Time) (time.Time, bool) {
	hhmm = strings.TrimSpace(hhmm)
	if len(hhmm) != 4 {
		return time.Time{}, false
	}
	h, err := strconv.Atoi(hhmm[:2])
	if err != nil || h < 0 || h > 23 {
		return time.Time{}, false
	}
	mi, err := strconv.Atoi(hhmm[2:])
	if err != nil || mi < 0 || mi > 59 {
		return time.Time{}, false
	}
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), h, mi, 0, 0, time.UTC), true
}

// OnBookingsReceived replaces the booked list, merging in online data
func (m *Monitor) OnBookingsReceived(bookings []aviation.AtcStation) {
	own := m.ownPosition()

	m.mu.Lock()
	booked := make(map[aviation.Callsign]*aviation.AtcStation, len(bookings))
	for _, in := range bookings {
		station := in
		station.Callsign = aviation.NewCallsign(string(station.Callsign))
		if station.Callsign.IsEmpty() {
			continue
		}
		station.Booked = true
		station.Online = false
		if m.static != nil {
			m.static.UpdateStation(&station)
		}
		if online, ok := m.registry.onlineStation(station.Callsign); ok {
			mergeOnlineIntoBooking(&station, online)
		}
		station.DistanceNM = own.DistanceNM(station.Position)
		booked[station.Callsign] = &station
	}
	m.registry.booked = booked
	count := len(booked)
	m.mu.Unlock()

	m.logger.Debug("Bookings replaced", logger.Int("count", count))
	m.bus.Publish(events.AtcStationsBookedChanged{})
}

func mergeOnlineIntoBooking(booking *aviation.AtcStation, online *aviation.AtcStation) {
	booking.Online = true
	booking.Frequency = online.Frequency
	booking.Position = online.Position
	booking.RangeNM = online.RangeNM
	booking.Atis = online.Atis
	booking.Metar = online.Metar
	booking.VoiceRoom = online.VoiceRoom
	if online.Controller.RealName != "" {
		booking.Controller.RealName = online.Controller.RealName
	}
}

// OnRealNameReceived patches the real name into stations and aircraft
func (m *Monitor) OnRealNameReceived(callsign aviation.Callsign, realName string) {
	callsign = aviation.NewCallsign(string(callsign))
	realName = strings.TrimSpace(realName)
	if callsign.IsEmpty() || realName == "" {
		return
	}

	var b batch
	m.mu.Lock()
	hitOnline, hitBooked := m.registry.applyStation(callsign, func(s *aviation.AtcStation, _ bool) {
		s.Controller.RealName = realName
	})
	if hitOnline {
		b.emit(events.AtcStationsOnlineChanged{})
	}
	if hitBooked {
		b.emit(events.AtcStationsBookedChanged{})
	}
	if ac, ok := m.registry.remoteAircraft(callsign); ok {
		ac.Pilot.RealName = realName
		b.emit(events.AircraftInRangeChanged{})
	}
	if c, ok := m.registry.clients[callsign]; ok {
		c.User.RealName = realName
	}
	m.mu.Unlock()

	m.flush(&b)
}

// OnServerReplyReceived records which server a known client is connected to
func (m *Monitor) OnServerReplyReceived(callsign aviation.Callsign, server string) {
	callsign = aviation.NewCallsign(string(callsign))
	server = strings.TrimSpace(server)
	if callsign.IsEmpty() || server == "" {
		return
	}

	m.mu.Lock()
	if c, ok := m.registry.clients[callsign]; ok {
		c.Server = server
	}
	m.mu.Unlock()
}

// OnCapabilitiesReplyReceived stores the capabilities a known client announced
func (m *Monitor) OnCapabilitiesReplyReceived(callsign aviation.Callsign, capabilities []aviation.Capability) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}

	m.mu.Lock()
	if c, ok := m.registry.clients[callsign]; ok {
		c.Capabilities = aviation.NormalizeCapabilities(capabilities)
	}
	m.mu.Unlock()
}

// OnAircraftModelReceived stores the model string another client reported.
// The reply can arrive before any position, so the client is created on demand.
func (m *Monitor) OnAircraftModelReceived(callsign aviation.Callsign, model string) {
	callsign = aviation.NewCallsign(string(callsign))
	model = strings.TrimSpace(model)
	if callsign.IsEmpty() || model == "" {
		return
	}

	m.mu.Lock()
	m.registry.client(callsign).QueriedModelString = model
	m.mu.Unlock()
}

// OnAircraftPartsReceived stores the parts of a known aircraft; older parts are dropped
func (m *Monitor) OnAircraftPartsReceived(callsign aviation.Callsign, parts aviation.AircraftParts) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}

	var b batch
	m.mu.Lock()
	ac, ok := m.registry.remoteAircraft(callsign)
	if !ok {
		m.mu.Unlock()
		return
	}
	if ac.PartsSynchronized && !ac.Parts.Timestamp.IsZero() && !parts.Timestamp.IsZero() && parts.Timestamp.Before(ac.Parts.Timestamp) {
		m.mu.Unlock()
		m.logger.Debug("Dropping out of order parts", logger.String("callsign", callsign.String()))
		return
	}
	ac.Parts = parts.Normalized()
	ac.PartsSynchronized = true
	b.emit(events.RemoteAircraftPartsChanged{Aircraft: *ac})
	m.mu.Unlock()

	m.flush(&b)
}

// OnFlightPlanReceived caches a flight plan and completes the futures waiting on it
func (m *Monitor) OnFlightPlanReceived(callsign aviation.Callsign, fp aviation.FlightPlan) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return
	}
	fp.Callsign = callsign
	if fp.ReceivedAt.IsZero() {
		fp.ReceivedAt = m.now()
	}
	m.flightPlans.store(callsign.String(), fp)
	m.bus.Publish(events.FlightPlanReceived{FlightPlan: fp})
}

// OnMetarReceived caches a METAR and attaches it to the airport's tower
func (m *Monitor) OnMetarReceived(message string) {
	message = strings.TrimSpace(message)
	if len(message) < 10 {
		return
	}
	icao := strings.ToUpper(message[:4])
	metar := aviation.InformationMessage{
		Type:       aviation.InformationMETAR,
		Message:    message,
		ReceivedAt: m.now(),
	}
	m.metars.Store(icao, metar)

	var b batch
	m.mu.Lock()
	hitOnline, hitBooked := m.registry.applyStation(aviation.Callsign(icao+"_TWR"), func(s *aviation.AtcStation, _ bool) {
		s.Metar = metar
	})
	if hitOnline {
		b.emit(events.AtcStationsOnlineChanged{})
	}
	if hitBooked {
		b.emit(events.AtcStationsBookedChanged{})
	}
	b.emit(events.MetarReceived{Icao: icao, Metar: metar})
	m.mu.Unlock()

	m.flush(&b)
}

// OnTextMessagesReceived republishes incoming text messages
func (m *Monitor) OnTextMessagesReceived(messages []aviation.TextMessage) {
	if len(messages) == 0 {
		return
	}
	m.bus.Publish(events.TextMessagesReceived{Messages: messages})
}

// RequestMetar returns a future for the METAR of icao.
// A cached message younger than the staleness window resolves immediately;
// otherwise a query is sent (when connected) and the future completes on reply.
func (m *Monitor) RequestMetar(icao string) *MetarFuture {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if len(icao) != 4 {
		return unavailableFuture(icao)
	}

	future, send := m.metars.request(icao, m.now())
	if send && m.isConnected() {
		if err := m.network.SendMetarQuery(icao); err != nil {
			m.logger.Warn("Failed to send METAR query", logger.String("icao", icao), logger.Error(err))
		}
	}
	return future
}

// RequestFlightPlan returns a future for the flight plan filed by callsign.
// It resolves like RequestMetar, with its own staleness window.
func (m *Monitor) RequestFlightPlan(callsign aviation.Callsign) *FlightPlanFuture {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return &FlightPlanFuture{reply: neverAnswered[aviation.FlightPlan]()}
	}

	reply, send := m.flightPlans.request(callsign.String(), m.now())
	if send && m.isConnected() {
		if err := m.network.SendFlightPlanQuery(callsign); err != nil {
			m.logger.Warn("Failed to send flight plan query", logger.String("callsign", callsign.String()), logger.Error(err))
		}
	}
	return &FlightPlanFuture{callsign: callsign, reply: reply}
}

// RequestDataUpdates asks for frequency and ICAO codes of every aircraft
func (m *Monitor) RequestDataUpdates() {
	if !m.isConnected() {
		return
	}
	m.mu.RLock()
	callsigns := make([]aviation.Callsign, 0, len(m.registry.aircraft))
	for cs := range m.registry.aircraft {
		callsigns = append(callsigns, cs)
	}
	m.mu.RUnlock()

	for _, cs := range callsigns {
		if err := m.network.SendFrequencyQuery(cs); err != nil {
			m.logger.Debug("Frequency query failed", logger.String("callsign", cs.String()), logger.Error(err))
		}
		if err := m.network.SendIcaoCodesQuery(cs); err != nil {
			m.logger.Debug("ICAO query failed", logger.String("callsign", cs.String()), logger.Error(err))
		}
	}
}

// RequestAtisUpdates asks every online station for its ATIS
func (m *Monitor) RequestAtisUpdates() {
	if !m.isConnected() {
		return
	}
	m.mu.RLock()
	callsigns := make([]aviation.Callsign, 0, len(m.registry.online))
	for cs := range m.registry.online {
		callsigns = append(callsigns, cs)
	}
	m.mu.RUnlock()

	for _, cs := range callsigns {
		if err := m.network.SendAtisQuery(cs); err != nil {
			m.logger.Debug("ATIS query failed", logger.String("callsign", cs.String()), logger.Error(err))
		}
	}
}

// RecalculateDistances refreshes distances after the own position changed
func (m *Monitor) RecalculateDistances() {
	own := m.ownPosition()
	if own.IsZero() {
		return
	}

	var b batch
	m.mu.Lock()
	for _, s := range m.registry.online {
		s.DistanceNM = own.DistanceNM(s.Position)
	}
	for _, s := range m.registry.booked {
		s.DistanceNM = own.DistanceNM(s.Position)
	}
	for _, a := range m.registry.aircraft {
		a.DistanceNM = own.DistanceNM(a.Situation.Position)
		a.BearingDeg = own.BearingTo(a.Situation.Position)
	}
	if len(m.registry.online) > 0 {
		b.emit(events.AtcStationsOnlineChanged{})
	}
	if len(m.registry.aircraft) > 0 {
		b.emit(events.AircraftInRangeChanged{})
	}
	m.mu.Unlock()

	m.flush(&b)
}

// SetAircraftEnabled toggles whether an aircraft may be rendered
func (m *Monitor) SetAircraftEnabled(callsign aviation.Callsign, enabled bool) (aviation.RemoteAircraft, error) {
	return m.updateAircraft(callsign, func(ac *aviation.RemoteAircraft) events.Event {
		if ac.Enabled == enabled {
			return nil
		}
		ac.Enabled = enabled
		return events.RemoteAircraftEnabledChanged{Aircraft: *ac}
	})
}

// SetAircraftModel sets the model string used for rendering
func (m *Monitor) SetAircraftModel(callsign aviation.Callsign, model string) (aviation.RemoteAircraft, error) {
	model = strings.TrimSpace(model)
	return m.updateAircraft(callsign, func(ac *aviation.RemoteAircraft) events.Event {
		if ac.ModelString == model {
			return nil
		}
		ac.ModelString = model
		return events.RemoteAircraftModelChanged{Aircraft: *ac}
	})
}

// SetAircraftRendered records the rendering state reported by the simulator side
func (m *Monitor) SetAircraftRendered(callsign aviation.Callsign, rendered bool) {
	_, _ = m.updateAircraft(callsign, func(ac *aviation.RemoteAircraft) events.Event {
		ac.Rendered = rendered
		return nil
	})
}

func (m *Monitor) updateAircraft(callsign aviation.Callsign, fn func(ac *aviation.RemoteAircraft) events.Event) (aviation.RemoteAircraft, error) {
	callsign = aviation.NewCallsign(string(callsign))
	if callsign.IsEmpty() {
		return aviation.RemoteAircraft{}, ErrEmptyCallsign
	}

	m.mu.Lock()
	ac, ok := m.registry.remoteAircraft(callsign)
	if !ok {
		m.mu.Unlock()
		return aviation.RemoteAircraft{}, ErrUnknownAircraft
	}
	e := fn(ac)
	snapshot := *ac
	m.mu.Unlock()

	if e != nil {
		m.bus.Publish(e)
	}
	return snapshot, nil
}

// Clear drops online stations and aircraft; bookings are kept
func (m *Monitor) Clear() {
	var b batch
	m.mu.Lock()
	m.registry.clearOnline()
	m.registry.clearClients()
	for _, cs := range m.registry.clearAircraft() {
		b.emit(events.RemoteAircraftRemoved{Callsign: cs})
	}
	for _, s := range m.registry.booked {
		s.Online = false
	}
	b.emit(events.AtcStationsOnlineChanged{})
	b.emit(events.AircraftInRangeChanged{})
	m.mu.Unlock()

	m.flightPlans.purge()
	m.logger.Info("Airspace cleared")
	m.flush(&b)
}
