package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

func TestOnFiltersByType(t *testing.T) {
	bus := NewBus(logger.NewNop())

	var got []ConnectionStatusChanged
	On(bus, func(e ConnectionStatusChanged) { got = append(got, e) })

	bus.Publish(AtcStationsOnlineChanged{})
	bus.Publish(ConnectionStatusChanged{Previous: Disconnected, Current: Connected})

	want := []ConnectionStatusChanged{{Previous: Disconnected, Current: Connected}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestNestedPublishIsQueuedInOrder(t *testing.T) {
	bus := NewBus(logger.NewNop())

	var order []string
	bus.Subscribe(func(e Event) {
		order = append(order, "a:"+Name(e))
		if _, ok := e.(AtcStationsOnlineChanged); ok {
			bus.Publish(AircraftInRangeChanged{})
		}
	})
	bus.Subscribe(func(e Event) {
		order = append(order, "b:"+Name(e))
	})

	bus.Publish(AtcStationsOnlineChanged{})

	want := []string{
		"a:atc_stations_online_changed",
		"b:atc_stations_online_changed",
		"a:aircraft_in_range_changed",
		"b:aircraft_in_range_changed",
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("unexpected dispatch order (-want +got):\n%s", diff)
	}
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	bus := NewBus(logger.NewNop())

	delivered := 0
	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { delivered++ })

	bus.Publish(AtcStationsBookedChanged{})
	bus.Publish(AtcStationsBookedChanged{})

	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(AtcStationsOnlineChanged{})
}
