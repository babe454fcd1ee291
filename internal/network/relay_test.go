package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/yegors/airspace-monitor/internal/airspace"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

type relayCallbacks struct {
	AirspaceCallbacks
	calls chan string
}

func newRelayCallbacks() *relayCallbacks {
	return &relayCallbacks{calls: make(chan string, 32)}
}

func (r *relayCallbacks) OnConnectionStatusChanged(_, current events.ConnectionStatus) {
	r.calls <- "status:" + string(current)
}

func (r *relayCallbacks) OnAircraftPositionUpdate(cs aviation.Callsign, s aviation.Situation, _ aviation.Transponder) {
	r.calls <- "position:" + cs.String()
}

func (r *relayCallbacks) OnMetarReceived(message string) {
	r.calls <- "metar:" + message[:4]
}

func (r *relayCallbacks) OnAircraftPartsReceived(cs aviation.Callsign, p aviation.AircraftParts) {
	r.calls <- fmt.Sprintf("parts:%s gear=%v flaps=%d engines=%d", cs, p.GearDown, p.FlapsPercent, p.EnginesOn())
}

func (r *relayCallbacks) OnCapabilitiesReplyReceived(cs aviation.Callsign, caps []aviation.Capability) {
	r.calls <- fmt.Sprintf("caps:%s %v", cs, caps)
}

func (r *relayCallbacks) OnAircraftModelReceived(cs aviation.Callsign, model string) {
	r.calls <- "model:" + cs.String() + " " + model
}

func (r *relayCallbacks) OnFlightPlanReceived(cs aviation.Callsign, fp aviation.FlightPlan) {
	r.calls <- fmt.Sprintf("flightplan:%s %s %s-%s %s", cs, fp.FlightRules, fp.Departure, fp.Destination, fp.Route)
}

func (r *relayCallbacks) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.calls:
		if got != want {
			t.Fatalf("callback %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// fakeRelay accepts one session, confirms the login and pushes some traffic
func fakeRelay(t *testing.T, received chan<- frame) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			received <- f
			switch f.Type {
			case frameConnect:
				conn.WriteJSON(mustFrame(t, frameConnectionStatus, statusPayload{Status: events.Connected}))
				conn.WriteJSON(mustFrame(t, frameAircraftPosition, aircraftPositionPayload{Callsign: "baw12", Lat: 51.47, Lon: -0.45}))
				conn.WriteJSON(mustFrame(t, frameMetarReply, callsignPayload{Message: "EGLL 121250Z 24012KT 9999 FEW030 15/08 Q1015"}))
			case frameDisconnect:
				conn.WriteJSON(mustFrame(t, frameConnectionStatus, statusPayload{Status: events.Disconnecting}))
				return
			}
		}
	}))
}

func mustFrame(t *testing.T, frameType string, payload any) frame {
	t.Helper()
	f, err := newFrame(frameType, payload)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestRelaySession(t *testing.T) {
	received := make(chan frame, 16)
	srv := fakeRelay(t, received)
	defer srv.Close()

	d := NewRelayDriver(RelayOptions{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, logger.NewNop())
	cb := newRelayCallbacks()
	d.SetCallbacks(cb)
	d.PresetServer(validServer())
	d.PresetCallsign("DLH4AB")
	d.PresetIcaoCodes(aviation.AircraftIcao{AircraftDesignator: "A320"})

	if err := d.InitiateConnection(context.Background()); err != nil {
		t.Fatalf("InitiateConnection: %v", err)
	}
	cb.expect(t, "status:connecting")

	login := <-received
	if login.Type != frameConnect {
		t.Fatalf("first frame %q, want %q", login.Type, frameConnect)
	}
	var p connectPayload
	if err := json.Unmarshal(login.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Callsign != "DLH4AB" || p.UserID != "1234567" || p.Aircraft != "A320" {
		t.Errorf("unexpected login payload %+v", p)
	}

	cb.expect(t, "status:connected")
	cb.expect(t, "position:BAW12")
	cb.expect(t, "metar:EGLL")

	if err := d.SendAtisQuery("EGLL_ATIS"); err != nil {
		t.Fatalf("SendAtisQuery: %v", err)
	}
	query := <-received
	var q queryPayload
	if err := json.Unmarshal(query.Data, &q); err != nil {
		t.Fatal(err)
	}
	if query.Type != frameQuery || q.Kind != queryAtis || q.Callsign != "EGLL_ATIS" {
		t.Errorf("unexpected query %s %+v", query.Type, q)
	}

	if err := d.TerminateConnection(); err != nil {
		t.Fatalf("TerminateConnection: %v", err)
	}
	cb.expect(t, "status:disconnecting")
	cb.expect(t, "status:disconnected")
	d.Wait()

	if d.IsConnected() {
		t.Error("driver should be disconnected")
	}
}

func TestRelayDialFailure(t *testing.T) {
	d := NewRelayDriver(RelayOptions{URL: "ws://127.0.0.1:1/relay", DialTimeout: time.Second}, logger.NewNop())
	cb := newRelayCallbacks()
	d.SetCallbacks(cb)

	if err := d.InitiateConnection(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	cb.expect(t, "status:connecting")
	cb.expect(t, "status:failed")
	cb.expect(t, "status:disconnected")
}

func TestQueriesRequireConnection(t *testing.T) {
	d := NewRelayDriver(RelayOptions{URL: "ws://unused"}, logger.NewNop())
	if err := d.SendFrequencyQuery("DLH1"); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestDispatchUnknownFrame(t *testing.T) {
	err := dispatch(frame{Type: "bogus"}, newRelayCallbacks(), time.Now())
	if err == nil {
		t.Fatal("expected error for unknown frame type")
	}
}

func (o staticOwn) Position() aviation.Position { return o.Situation.Position }

func connectRelay(t *testing.T, d *RelayDriver) {
	t.Helper()
	if err := d.InitiateConnection(context.Background()); err != nil {
		t.Fatalf("InitiateConnection: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !d.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatal("relay never confirmed the login")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFollowUpQueriesBeyondBurstAreDelivered(t *testing.T) {
	received := make(chan frame, 128)
	srv := fakeRelay(t, received)
	defer srv.Close()

	d := NewRelayDriver(RelayOptions{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), QueriesPerSec: 20}, logger.NewNop())
	d.PresetServer(validServer())
	d.PresetCallsign("DLH4AB")
	connectRelay(t, d)
	defer func() {
		d.TerminateConnection()
		d.Wait()
	}()

	monitor, err := airspace.NewMonitor(d, validOwn(), nil, events.NewBus(logger.NewNop()), airspace.Options{}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	// 10 new aircraft need 60 follow-up queries, three times the limiter burst
	const newAircraft = 10
	for i := 0; i < newAircraft; i++ {
		monitor.OnAircraftPositionUpdate(aviation.Callsign(fmt.Sprintf("DLH%d", i)), aviation.Situation{
			Position: aviation.Position{Lat: 50, Lon: 8},
		}, aviation.Transponder{})
	}

	got := map[string]int{}
	timeout := time.After(5 * time.Second)
	for total := 0; total < 6*newAircraft; {
		select {
		case f := <-received:
			if f.Type != frameQuery {
				continue
			}
			var q queryPayload
			if err := json.Unmarshal(f.Data, &q); err != nil {
				t.Fatal(err)
			}
			got[q.Kind]++
			total++
		case <-timeout:
			t.Fatalf("only received %v", got)
		}
	}

	want := map[string]int{
		queryFrequency:     newAircraft,
		queryRealName:      newAircraft,
		queryIcaoCodes:     newAircraft,
		queryCapabilities:  newAircraft,
		queryServer:        newAircraft,
		queryAircraftModel: newAircraft,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("queries per kind mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryQueueFull(t *testing.T) {
	received := make(chan frame, 16)
	srv := fakeRelay(t, received)
	defer srv.Close()

	d := NewRelayDriver(RelayOptions{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		QueriesPerSec:  1,
		QueryQueueSize: 1,
	}, logger.NewNop())
	d.PresetServer(validServer())
	connectRelay(t, d)
	defer func() {
		d.TerminateConnection()
		d.Wait()
	}()

	var full bool
	for i := 0; i < 5 && !full; i++ {
		full = d.SendRealNameQuery("DLH1") == ErrQueryQueueFull
	}
	if !full {
		t.Error("expected ErrQueryQueueFull once the queue is saturated")
	}
}

func TestDispatchClientFrames(t *testing.T) {
	cb := newRelayCallbacks()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	frames := []struct {
		frame frame
		want  string
	}{
		{
			frame: mustFrame(t, frameAircraftParts, aircraftPartsPayload{
				Callsign:     "dlh1",
				GearDown:     true,
				FlapsPercent: 25,
				Engines:      []aviation.AircraftEngine{{Number: 1, On: true}, {Number: 2}},
			}),
			want: "parts:DLH1 gear=true flaps=25 engines=1",
		},
		{
			frame: mustFrame(t, frameCapabilities, capabilitiesPayload{Callsign: "DLH1", Capabilities: []string{" ATIS_RESPONSES", "aircraft_config"}}),
			want:  "caps:DLH1 [atis_responses aircraft_config]",
		},
		{
			frame: mustFrame(t, frameModelReply, callsignPayload{Callsign: "DLH1", Model: "A320 Lufthansa"}),
			want:  "model:DLH1 A320 Lufthansa",
		},
		{
			frame: mustFrame(t, frameFlightPlanReply, flightPlanPayload{
				Callsign:    "DLH1",
				FlightRules: "v",
				Departure:   "eddf",
				Destination: "eddm",
				Route:       "ANEKI.Y163..NATOR",
			}),
			want: "flightplan:DLH1 IFR EDDF-EDDM ANEKI Y163 NATOR",
		},
	}

	for _, tc := range frames {
		if err := dispatch(tc.frame, cb, now); err != nil {
			t.Fatalf("dispatch %s: %v", tc.frame.Type, err)
		}
		cb.expect(t, tc.want)
	}
}
