package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/yegors/airspace-monitor/internal/airspace"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/config"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/internal/network"
	"github.com/yegors/airspace-monitor/internal/ownaircraft"
	"github.com/yegors/airspace-monitor/internal/simulator"
	"github.com/yegors/airspace-monitor/internal/storage/sqlite"
	"github.com/yegors/airspace-monitor/internal/voice"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// fakeDriver stands in for the relay in both the airspace and the network context
type fakeDriver struct {
	status events.ConnectionStatus
	sent   []aviation.TextMessage
}

func (d *fakeDriver) IsConnected() bool                              { return d.status.IsConnected() }
func (d *fakeDriver) SendFrequencyQuery(aviation.Callsign) error     { return nil }
func (d *fakeDriver) SendRealNameQuery(aviation.Callsign) error      { return nil }
func (d *fakeDriver) SendIcaoCodesQuery(aviation.Callsign) error     { return nil }
func (d *fakeDriver) SendAtisQuery(aviation.Callsign) error          { return nil }
func (d *fakeDriver) SendServerQuery(aviation.Callsign) error        { return nil }
func (d *fakeDriver) SendCapabilitiesQuery(aviation.Callsign) error  { return nil }
func (d *fakeDriver) SendAircraftModelQuery(aviation.Callsign) error { return nil }
func (d *fakeDriver) SendFlightPlanQuery(aviation.Callsign) error    { return nil }
func (d *fakeDriver) SendMetarQuery(string) error                    { return nil }
func (d *fakeDriver) PresetServer(network.Server)                    {}
func (d *fakeDriver) PresetLoginMode(network.LoginMode)              {}
func (d *fakeDriver) PresetCallsign(aviation.Callsign)               {}
func (d *fakeDriver) PresetIcaoCodes(aviation.AircraftIcao)          {}
func (d *fakeDriver) Status() events.ConnectionStatus                { return d.status }
func (d *fakeDriver) TerminateConnection() error                     { d.status = events.Disconnecting; return nil }

func (d *fakeDriver) InitiateConnection(context.Context) error {
	d.status = events.Connecting
	return nil
}

func (d *fakeDriver) SendTextMessages(msgs []aviation.TextMessage) error {
	if !d.status.IsConnected() {
		return network.ErrNotConnected
	}
	d.sent = append(d.sent, msgs...)
	return nil
}

type nopSimulator struct{}

func (nopSimulator) PhysicallyAddRemoteAircraft(aviation.RemoteAircraft) error   { return nil }
func (nopSimulator) PhysicallyRemoveRemoteAircraft(aviation.Callsign) error      { return nil }
func (nopSimulator) UpdateRemoteAircraftSituation(aviation.RemoteAircraft) error { return nil }
func (nopSimulator) UpdateRemoteAircraftParts(aviation.RemoteAircraft) error     { return nil }

type testEnv struct {
	handler http.Handler
	monitor *airspace.Monitor
	own     *ownaircraft.Provider
	driver  *fakeDriver
	storage *sqlite.Storage
	bus     *events.Bus
}

var frankfurt = aviation.Position{Lat: 50.0333, Lon: 8.5706}

func newTestEnv(t *testing.T, withNetwork bool) *testEnv {
	t.Helper()
	log := logger.NewNop()
	bus := events.NewBus(log)
	driver := &fakeDriver{status: events.Disconnected}

	own := ownaircraft.NewProvider(aviation.OwnAircraft{
		Callsign:  "DLH1",
		Icao:      aviation.AircraftIcao{AircraftDesignator: "A320"},
		Situation: aviation.Situation{Position: frankfurt},
		Com1:      aviation.ComSystem{Active: aviation.FrequencyFromMHz(119.9)},
		Com2:      aviation.ComSystem{Active: aviation.FrequencyFromMHz(121.5)},
	}, bus, log)

	monitor, err := airspace.NewMonitor(driver, own, nil, bus, airspace.Options{MetarWait: 20 * time.Millisecond}, log)
	if err != nil {
		t.Fatal(err)
	}

	storage, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"), log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { storage.Close() })
	storage.Subscribe(bus)

	gate := simulator.NewGate(nopSimulator{}, monitor, 0, log)
	gate.Subscribe(bus)

	services := Services{
		Monitor:   monitor,
		Own:       own,
		Voice:     voice.NewResolver(monitor, own, bus, true, log),
		Gate:      gate,
		Rendering: simulator.NewService(gate, time.Second, log),
		Storage:   storage,
	}
	if withNetwork {
		services.Network = network.NewContext(driver, monitor, own, bus, network.Options{ConnectTimeout: time.Second}, log)
	}

	cfg := &config.Config{
		Network: config.NetworkConfig{
			LoginMode:     "pilot",
			DefaultServer: "GERMANY",
			Servers: []config.ServerEntry{
				{Name: "GERMANY", Address: "de.example.net", Port: 6809, UserID: "1234567", Password: "secret"},
			},
		},
		Rendering: config.RenderingConfig{HighlightSecs: 5},
	}

	return &testEnv{
		handler: NewRouter(services, cfg, log).Routes(),
		monitor: monitor,
		own:     own,
		driver:  driver,
		storage: storage,
		bus:     bus,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	got := decode[map[string]interface{}](t, rec)
	if got["status"] != "ok" || got["network_status"] != "unavailable" {
		t.Errorf("health = %v", got)
	}
}

func TestNetworkUnavailable(t *testing.T) {
	env := newTestEnv(t, false)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/network/status"},
		{http.MethodPost, "/api/v1/network/connect"},
		{http.MethodPost, "/api/v1/network/disconnect"},
		{http.MethodPost, "/api/v1/messages"},
	} {
		if rec := env.do(t, tc.method, tc.path, map[string]string{}); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s = %d, want 503", tc.method, tc.path, rec.Code)
		}
	}
}

func TestConnectAndDisconnect(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/v1/network/connect", connectRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("connect status %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[commandResponse](t, rec)
	want := aviation.StatusMessageList{aviation.NewInfo("Connection pending de.example.net 6809")}
	if diff := cmp.Diff(want, resp.Messages); diff != "" || !resp.Success {
		t.Errorf("connect response (-want +got):\n%s", diff)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/network/connect", connectRequest{Server: "GERMANY"})
	if rec.Code != http.StatusConflict {
		t.Errorf("second connect = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/network/connect", connectRequest{Server: "NOWHERE"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown server = %d, want 400", rec.Code)
	}

	env.driver.status = events.Connected
	rec = env.do(t, http.MethodPost, "/api/v1/network/disconnect", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect status %d", rec.Code)
	}
	if resp := decode[commandResponse](t, rec); resp.Messages[0].Message != "Connection terminating" {
		t.Errorf("disconnect = %+v", resp)
	}

	status := decode[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/v1/network/status", nil))
	if status["status"] != string(events.Disconnecting) {
		t.Errorf("status = %v", status)
	}
}

func TestResolveServerCredentialsFromRequest(t *testing.T) {
	h := NewHandler(Services{}, &config.Config{Network: config.NetworkConfig{
		Servers: []config.ServerEntry{{Name: "TEST", Address: "fsd.example.net", Port: 6809}},
	}}, logger.NewNop())

	server, ok := h.resolveServer(connectRequest{Server: "TEST", UserID: "42", Password: "pw"})
	if !ok {
		t.Fatal("server not resolved")
	}
	if !server.HasValidCredentials() || server.Address != "fsd.example.net" {
		t.Errorf("server = %+v", server)
	}

	direct, ok := h.resolveServer(connectRequest{Address: "10.0.0.1"})
	if !ok || direct.Port != defaultFsdPort {
		t.Errorf("direct = %+v %v", direct, ok)
	}
}

func TestStationsAndAircraft(t *testing.T) {
	env := newTestEnv(t, false)
	// EDDM_CTR has no position yet, so its distance is unknown
	env.monitor.OnAtcPositionUpdate("EDDM_CTR", aviation.FrequencyFromMHz(129.1), aviation.Position{}, 150)
	env.monitor.OnAtcPositionUpdate("EDDF_TWR", aviation.FrequencyFromMHz(119.9), frankfurt, 30)
	env.monitor.OnAircraftPositionUpdate("BAW22", aviation.Situation{Position: aviation.Position{Lat: 50.1, Lon: 8.6}}, aviation.Transponder{})
	env.monitor.OnAircraftPositionUpdate("KLM7", aviation.Situation{Position: aviation.Position{Lat: 50.5, Lon: 8.6}}, aviation.Transponder{})

	stations := decode[[]aviation.AtcStation](t, env.do(t, http.MethodGet, "/api/v1/stations/online", nil))
	var order []aviation.Callsign
	for _, s := range stations {
		order = append(order, s.Callsign)
	}
	if diff := cmp.Diff([]aviation.Callsign{"EDDF_TWR", "EDDM_CTR"}, order); diff != "" {
		t.Errorf("unknown distances must come last (-want +got):\n%s", diff)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/stations/online/eddf_twr", nil); rec.Code != http.StatusOK {
		t.Errorf("station by callsign = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/stations/online/EDDM_GND", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing station = %d", rec.Code)
	}

	aircraft := decode[[]aviation.RemoteAircraft](t, env.do(t, http.MethodGet, "/api/v1/aircraft/", nil))
	if len(aircraft) != 2 || aircraft[0].Callsign != "BAW22" {
		t.Errorf("aircraft not sorted by distance: %+v", aircraft)
	}
	filtered := decode[[]aviation.RemoteAircraft](t, env.do(t, http.MethodGet, "/api/v1/aircraft/?callsign=klm", nil))
	if len(filtered) != 1 || filtered[0].Callsign != "KLM7" {
		t.Errorf("filtered = %+v", filtered)
	}

	rec := env.do(t, http.MethodPut, "/api/v1/aircraft/BAW22/model", map[string]string{"model": "A320 BAW"})
	if rec.Code != http.StatusOK || decode[aviation.RemoteAircraft](t, rec).ModelString != "A320 BAW" {
		t.Errorf("set model = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPut, "/api/v1/aircraft/GHOST/enabled", map[string]bool{"enabled": false}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown aircraft = %d", rec.Code)
	}
}

func TestOwnAircraftAndVoice(t *testing.T) {
	env := newTestEnv(t, false)
	env.monitor.OnAtcPositionUpdate("EDDF_TWR", aviation.FrequencyFromMHz(119.9), frankfurt, 30)
	env.monitor.OnAtisVoiceRoomReceived("EDDF_TWR", "voice.example.net/eddf_twr")

	state := decode[voiceState](t, env.do(t, http.MethodGet, "/api/v1/voice/selected", nil))
	if state.Rooms[0].URL != "voice.example.net/eddf_twr" || state.Stations[0].Callsign != "EDDF_TWR" {
		t.Errorf("voice state = %+v", state)
	}

	rec := env.do(t, http.MethodPut, "/api/v1/own-aircraft/cockpit", cockpitRequest{
		Com1:            comRequest{ActiveMHz: 121.5},
		Com2:            comRequest{ActiveMHz: 121.5},
		TransponderCode: 7000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cockpit = %d %s", rec.Code, rec.Body.String())
	}
	if own := env.own.Get(); own.Transponder.Code != 7000 || own.Transponder.Mode != aviation.TransponderStandby {
		t.Errorf("transponder = %+v", own.Transponder)
	}
	state = decode[voiceState](t, env.do(t, http.MethodGet, "/api/v1/voice/selected", nil))
	if state.Rooms[0].URL != "" {
		t.Errorf("retuned COM1 kept room %q", state.Rooms[0].URL)
	}

	if rec := env.do(t, http.MethodPut, "/api/v1/own-aircraft/cockpit", cockpitRequest{TransponderCode: 9999}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad squawk = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/api/v1/own-aircraft/situation", situationRequest{Lat: 95}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad latitude = %d", rec.Code)
	}

	if rec := env.do(t, http.MethodPut, "/api/v1/voice/overrides", map[string][]string{"overrides": {"only-one"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("one override = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPut, "/api/v1/voice/overrides", map[string][]string{"overrides": {"room/a", ""}})
	if state := decode[voiceState](t, rec); state.Rooms[0].URL != "room/a" {
		t.Errorf("override not applied: %+v", state)
	}
	if rec := env.do(t, http.MethodPut, "/api/v1/voice/rooms/1/connected", map[string]bool{"connected": true}); rec.Code != http.StatusOK {
		t.Errorf("connect room = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPut, "/api/v1/voice/rooms/2/connected", map[string]bool{"connected": true}); rec.Code != http.StatusConflict {
		t.Errorf("connect empty room = %d", rec.Code)
	}
}

func TestMetar(t *testing.T) {
	env := newTestEnv(t, false)

	if rec := env.do(t, http.MethodGet, "/api/v1/metar/EDD", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("short code = %d", rec.Code)
	}

	got := decode[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/v1/metar/eddf?wait_ms=10", nil))
	if got["status"] != "unavailable" || got["icao"] != "EDDF" {
		t.Errorf("metar without reply = %v", got)
	}

	env.monitor.OnMetarReceived("EDDF 011220Z 25010KT CAVOK 18/09 Q1015")
	got = decode[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/v1/metar/EDDF", nil))
	if got["status"] != "fresh" {
		t.Errorf("metar after reply = %v", got)
	}
}

func TestClientsAndFlightPlans(t *testing.T) {
	env := newTestEnv(t, false)
	env.monitor.OnAircraftPositionUpdate("DLH400", aviation.Situation{Position: aviation.Position{Lat: 50.1, Lon: 8.6}}, aviation.Transponder{})
	env.monitor.OnCapabilitiesReplyReceived("DLH400", []aviation.Capability{aviation.CapabilityAircraftConfig})
	env.monitor.OnServerReplyReceived("DLH400", "GERMANY")

	clients := decode[[]aviation.Client](t, env.do(t, http.MethodGet, "/api/v1/clients", nil))
	if len(clients) != 1 || clients[0].Server != "GERMANY" || !clients[0].HasCapability(aviation.CapabilityAircraftConfig) {
		t.Errorf("clients = %+v", clients)
	}

	got := decode[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/v1/flightplans/DLH400?wait_ms=10", nil))
	if got["status"] != "unavailable" {
		t.Errorf("flight plan without reply = %v", got)
	}

	env.monitor.OnFlightPlanReceived("DLH400", aviation.FlightPlan{Departure: "EDDF", Destination: "KJFK"})
	got = decode[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/v1/flightplans/dlh400", nil))
	plan, _ := got["flight_plan"].(map[string]interface{})
	if got["status"] != "fresh" || plan["destination"] != "KJFK" {
		t.Errorf("flight plan after reply = %v", got)
	}
}

func TestMessages(t *testing.T) {
	env := newTestEnv(t, true)

	if rec := env.do(t, http.MethodPost, "/api/v1/messages", sendMessageRequest{To: "EDDF_TWR", Message: "hello"}); rec.Code != http.StatusConflict {
		t.Errorf("send while disconnected = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/messages", sendMessageRequest{Message: "nobody"}); rec.Code != http.StatusBadRequest {
		t.Errorf("no recipient = %d", rec.Code)
	}

	env.driver.status = events.Connected
	if rec := env.do(t, http.MethodPost, "/api/v1/messages", sendMessageRequest{FrequencyMHz: 119.9, Message: "radio check"}); rec.Code != http.StatusAccepted {
		t.Fatalf("send = %d %s", rec.Code, rec.Body.String())
	}
	env.bus.Publish(events.TextMessagesReceived{Messages: []aviation.TextMessage{
		{From: "EDDF_TWR", To: "DLH1", Message: "loud and clear", SentAt: time.Now().UTC().Add(time.Second)},
	}})

	msgs := decode[[]aviation.TextMessage](t, env.do(t, http.MethodGet, "/api/v1/messages?limit=10", nil))
	if len(msgs) != 2 {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].From != "DLH1" || !msgs[0].Outgoing || msgs[1].Message != "loud and clear" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestRendering(t *testing.T) {
	env := newTestEnv(t, false)
	env.monitor.OnAircraftPositionUpdate("BAW22", aviation.Situation{Position: aviation.Position{Lat: 50.1, Lon: 8.6}}, aviation.Transponder{})

	rec := env.do(t, http.MethodPut, "/api/v1/rendering/", map[string]interface{}{"max_aircraft": 5, "max_distance_nm": 10.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("set rendering = %d", rec.Code)
	}
	r := decode[simulator.Restrictions](t, rec)
	if !r.Restricted || r.MaxAircraft != 5 || r.MaxDistanceNM != 10 || !r.RenderingEnabled {
		t.Errorf("restrictions = %+v", r)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/rendering/", map[string]interface{}{"unrestricted": true})
	if r := decode[simulator.Restrictions](t, rec); r.Restricted {
		t.Errorf("restrictions after reset = %+v", r)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/rendering/highlight", map[string]interface{}{"callsign": "baw22"})
	if rec.Code != http.StatusOK {
		t.Fatalf("highlight = %d", rec.Code)
	}
	hl := decode[map[string][]aviation.Callsign](t, rec)
	if diff := cmp.Diff([]aviation.Callsign{"BAW22"}, hl["highlighted"]); diff != "" {
		t.Errorf("highlighted (-want +got):\n%s", diff)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/rendering/highlight", map[string]interface{}{"callsign": "NOPE"}); rec.Code != http.StatusNotFound {
		t.Errorf("highlight unknown = %d", rec.Code)
	}

	stats := decode[simulator.Stats](t, env.do(t, http.MethodGet, "/api/v1/rendering/stats", nil))
	if stats.Highlighted != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCORS(t *testing.T) {
	rt := &Router{handler: NewHandler(Services{}, nil, logger.NewNop()), origins: []string{"http://ui.local"}, logger: logger.NewNop()}
	h := rt.Routes()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://ui.local" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin allowed")
	}
}
