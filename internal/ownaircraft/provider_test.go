package ownaircraft

import (
	"testing"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/events"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

func TestUpdateCockpitPublishesOnlyOnChange(t *testing.T) {
	bus := events.NewBus(logger.NewNop())
	p := NewProvider(aviation.OwnAircraft{}, bus, logger.NewNop())

	count := 0
	events.On(bus, func(events.CockpitChanged) { count++ })

	com1 := aviation.ComSystem{Active: aviation.FrequencyFromMHz(121.5)}
	if !p.UpdateCockpit(com1, aviation.ComSystem{}, aviation.Transponder{Code: 2000}) {
		t.Fatal("first update must report a change")
	}
	if p.UpdateCockpit(com1, aviation.ComSystem{}, aviation.Transponder{Code: 2000}) {
		t.Fatal("identical update must not report a change")
	}
	if count != 1 {
		t.Fatalf("expected 1 cockpit event, got %d", count)
	}
	if got := p.ComSystems()[0].Active; got != com1.Active {
		t.Fatalf("com1 = %v", got)
	}
}

func TestUpdateSituationDerivesMagneticHeading(t *testing.T) {
	bus := events.NewBus(logger.NewNop())
	p := NewProvider(aviation.OwnAircraft{}, bus, logger.NewNop())

	moved := 0
	events.On(bus, func(events.OwnPositionChanged) { moved++ })

	s := aviation.Situation{
		Position:   aviation.Position{Lat: 50.03, Lon: 8.57, AltitudeFt: 364},
		HeadingDeg: 250,
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	p.UpdateSituation(s)
	p.UpdateSituation(s)

	if moved != 1 {
		t.Fatalf("expected 1 position event, got %d", moved)
	}
	got := p.Get()
	if got.MagneticHeadingDeg < 0 || got.MagneticHeadingDeg >= 360 {
		t.Fatalf("magnetic heading out of range: %f", got.MagneticHeadingDeg)
	}
	if got.Situation.Position != s.Position {
		t.Fatalf("position not stored: %+v", got.Situation.Position)
	}
}

func TestUpdateCallsignAlsoSetsPilot(t *testing.T) {
	p := NewProvider(aviation.OwnAircraft{}, events.NewBus(logger.NewNop()), logger.NewNop())
	p.UpdateCallsign("DLH123")
	if p.Get().Pilot.Callsign != "DLH123" {
		t.Fatal("pilot callsign not updated")
	}
}
