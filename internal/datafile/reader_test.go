package datafile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/feeds"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

const sampleFile = `{
  "general": {"version": 3, "update_timestamp": "2024-05-01T12:00:00Z", "connected_clients": 3},
  "pilots": [
    {"cid": 1234567, "name": "Jane Pilot", "callsign": "DLH123", "server": "GERMANY",
     "latitude": 50.03, "longitude": 8.56, "altitude": 3500, "groundspeed": 180,
     "flight_plan": {"aircraft": "H/B744/L", "aircraft_short": ""}},
    {"cid": 7654321, "name": "No Plan", "callsign": "N123AB", "server": "USA-EAST"}
  ],
  "controllers": [
    {"cid": 1000001, "name": "Anna Tower ", "callsign": "EDDF_TWR", "frequency": "119.900",
     "server": "GERMANY", "visual_range": 50, "text_atis": ["Frankfurt Tower", "Monitor 121.9"]}
  ],
  "atis": [
    {"cid": 1000002, "name": "Atis Bot", "callsign": "EDDF_ATIS", "frequency": "118.025",
     "server": "GERMANY", "text_atis": ["INFO A"]}
  ],
  "servers": [
    {"ident": "USA-EAST", "hostname_or_ip": "usa-e.example.net", "location": "New York", "name": "USA-EAST"},
    {"ident": "GERMANY", "hostname_or_ip": "de.example.net", "location": "Frankfurt", "name": "GERMANY"}
  ]
}`

func loadedReader(t *testing.T) *Reader {
	t.Helper()
	r := NewReader("http://unused", time.Minute, feeds.NewClient(feeds.ClientConfig{}, logger.NewNop()), logger.NewNop())
	if err := r.Load([]byte(sampleFile)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func TestUpdateStationFillsMissingFields(t *testing.T) {
	r := loadedReader(t)

	station := aviation.AtcStation{Callsign: "EDDF_TWR", Online: true}
	r.UpdateStation(&station)

	want := aviation.AtcStation{
		Callsign:   "EDDF_TWR",
		Online:     true,
		Controller: aviation.User{ID: "1000001", RealName: "Anna Tower", Callsign: "EDDF_TWR"},
		Frequency:  aviation.FrequencyFromMHz(119.9),
		RangeNM:    50,
		Atis: aviation.InformationMessage{
			Type:    aviation.InformationATIS,
			Message: "Frankfurt Tower\nMonitor 121.9",
		},
		Server: "GERMANY",
	}
	if diff := cmp.Diff(want, station); diff != "" {
		t.Errorf("station mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateStationKeepsNetworkData(t *testing.T) {
	r := loadedReader(t)

	station := aviation.AtcStation{
		Callsign:   "EDDF_TWR",
		Controller: aviation.User{RealName: "From Network"},
		Frequency:  aviation.FrequencyFromMHz(120.8),
	}
	r.UpdateStation(&station)

	if station.Controller.RealName != "From Network" {
		t.Errorf("real name overwritten: %q", station.Controller.RealName)
	}
	if station.Frequency != aviation.FrequencyFromMHz(120.8) {
		t.Errorf("frequency overwritten: %s", station.Frequency)
	}
	if station.Controller.ID != "1000001" {
		t.Errorf("missing ID filled as %q", station.Controller.ID)
	}
}

func TestUpdateAircraft(t *testing.T) {
	r := loadedReader(t)

	ac := aviation.RemoteAircraft{Callsign: "DLH123"}
	r.UpdateAircraft(&ac)

	if ac.Pilot.ID != "1234567" || ac.Pilot.RealName != "Jane Pilot" {
		t.Errorf("pilot = %+v", ac.Pilot)
	}
	if ac.Icao.AircraftDesignator != "B744" {
		t.Errorf("designator = %q", ac.Icao.AircraftDesignator)
	}
	if ac.Server != "GERMANY" {
		t.Errorf("server = %q", ac.Server)
	}

	unknown := aviation.RemoteAircraft{Callsign: "GHOST1"}
	r.UpdateAircraft(&unknown)
	if diff := cmp.Diff(aviation.RemoteAircraft{Callsign: "GHOST1"}, unknown); diff != "" {
		t.Errorf("unknown aircraft changed:\n%s", diff)
	}
}

func TestIcaoForCallsign(t *testing.T) {
	r := loadedReader(t)

	icao, ok := r.IcaoForCallsign("DLH123")
	if !ok {
		t.Fatal("expected ICAO for DLH123")
	}
	if diff := cmp.Diff(aviation.AircraftIcao{AircraftDesignator: "B744", AirlineDesignator: "DLH"}, icao); diff != "" {
		t.Errorf("icao mismatch:\n%s", diff)
	}

	if _, ok := r.IcaoForCallsign("N123AB"); ok {
		t.Error("pilot without flight plan should have no ICAO")
	}
}

func TestUsersForCallsign(t *testing.T) {
	r := loadedReader(t)

	got := r.UsersForCallsign("EDDF_ATIS")
	want := []aviation.User{{ID: "1000002", RealName: "Atis Bot", Callsign: "EDDF_ATIS"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("users mismatch:\n%s", diff)
	}
	if users := r.UsersForCallsign("NOBODY"); len(users) != 0 {
		t.Errorf("unexpected users %+v", users)
	}
}

func TestServersSortedByName(t *testing.T) {
	r := loadedReader(t)

	servers := r.Servers()
	if len(servers) != 2 || servers[0].Name != "GERMANY" || servers[1].Name != "USA-EAST" {
		t.Errorf("servers = %+v", servers)
	}
}

func TestOlderFileIsIgnored(t *testing.T) {
	r := loadedReader(t)

	older := `{"general": {"update_timestamp": "2024-05-01T11:59:00Z"}, "pilots": []}`
	if err := r.Load([]byte(older)); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.IcaoForCallsign("DLH123"); !ok {
		t.Error("older file replaced newer data")
	}
	if want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC); !r.UpdateTimestamp().Equal(want) {
		t.Errorf("UpdateTimestamp = %v", r.UpdateTimestamp())
	}
}

func TestDesignatorFromEquipment(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"H/B744/L", "B744"},
		{"B738/M", "B738"},
		{"A320", "A320"},
		{"a20n-sdfgiry/lb1", "A20N"},
		{"", ""},
		{"T/1234/X", ""},
		{"TOOLONG", ""},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := designatorFromEquipment(tt.code); got != tt.want {
				t.Errorf("designatorFromEquipment(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestRefreshFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleFile))
	}))
	defer srv.Close()

	r := NewReader(srv.URL, time.Minute, feeds.NewClient(feeds.ClientConfig{}, logger.NewNop()), logger.NewNop())
	res, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !res.Changed {
		t.Error("first refresh should report a change")
	}
	if users := r.UsersForCallsign("DLH123"); len(users) != 1 {
		t.Errorf("users after refresh: %+v", users)
	}
}
