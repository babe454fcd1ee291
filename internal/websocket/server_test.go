package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	httpSrv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(func() {
		httpSrv.Close()
		cancel()
	})
	return s, "ws" + strings.TrimPrefix(httpSrv.URL, "http")
}

func dial(t *testing.T, s *Server, url string) *websocket.Conn {
	t.Helper()
	before := s.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	waitFor(t, func() bool { return s.ClientCount() > before })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func TestBroadcastReachesClients(t *testing.T) {
	s, url := startServer(t)
	a := dial(t, s, url)
	b := dial(t, s, url)

	s.Broadcast(&Message{Type: "hello", Data: map[string]any{"n": 1}})

	for _, conn := range []*websocket.Conn{a, b} {
		m := readMessage(t, conn)
		if m.Type != "hello" || m.Data["n"] != float64(1) {
			t.Errorf("got %+v", m)
		}
	}
}

func TestSubscribeFiltersTypes(t *testing.T) {
	s, url := startServer(t)
	conn := dial(t, s, url)

	if err := conn.WriteJSON(Message{Type: MessageTypeSubscribe, Data: map[string]any{"types": []string{"wanted"}}}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for c := range s.clients {
			if c.wants("other") {
				return false
			}
		}
		return true
	})

	s.Broadcast(&Message{Type: "other", Data: map[string]any{}})
	s.Broadcast(&Message{Type: "wanted", Data: map[string]any{}})

	if m := readMessage(t, conn); m.Type != "wanted" {
		t.Errorf("first message type = %q, want wanted", m.Type)
	}
}

func TestSubscribeEmptyListMeansAll(t *testing.T) {
	c := &Client{}
	c.subscribe(map[string]any{"types": []any{"a"}})
	if c.wants("b") {
		t.Fatal("filtered client wants b")
	}
	c.subscribe(map[string]any{"types": []any{}})
	if !c.wants("b") {
		t.Error("empty subscription should restore all types")
	}
}

type recordingHandler struct {
	got chan string
}

func (h *recordingHandler) HandleMessage(_ *Client, messageType string, _ map[string]any) error {
	h.got <- messageType
	return nil
}

func TestIncomingMessagesReachHandler(t *testing.T) {
	s, url := startServer(t)
	h := &recordingHandler{got: make(chan string, 1)}
	s.SetMessageHandler(h)
	conn := dial(t, s, url)

	if err := conn.WriteJSON(Message{Type: "own_situation", Data: map[string]any{"lat": 50.0}}); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-h.got:
		if got != "own_situation" {
			t.Errorf("handler got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestForwardEvents(t *testing.T) {
	s, url := startServer(t)
	bus := events.NewBus(logger.NewNop())
	s.ForwardEvents(bus)
	conn := dial(t, s, url)

	bus.Publish(events.RemoteAircraftRemoved{Callsign: aviation.Callsign("DLH123")})

	m := readMessage(t, conn)
	if m.Type != "remote_aircraft_removed" {
		t.Errorf("type = %q", m.Type)
	}
	if _, ok := m.Data["event"]; !ok {
		t.Errorf("missing event payload: %+v", m.Data)
	}
}
