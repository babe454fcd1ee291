package bookings

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

const sampleBookings = `<?xml version="1.0" encoding="utf-8"?>
<bookings>
  <atcs>
    <booking>
      <callsign>EDDF_TWR</callsign>
      <name>Anna Tower</name>
      <cid>1000001</cid>
      <time_start>2024-05-01 14:00:00</time_start>
      <time_end>2024-05-01 16:00:00</time_end>
    </booking>
    <booking>
      <callsign>eddf_app</callsign>
      <name>Ben Approach</name>
      <cid>1000002</cid>
      <time_start>2024-05-01 11:00:00</time_start>
      <time_end>2024-05-01 13:00:00</time_end>
    </booking>
    <booking>
      <callsign>EDDM_GND</callsign>
      <name>Ending Soon</name>
      <cid>1000003</cid>
      <time_start>2024-05-01 10:00:00</time_start>
      <time_end>2024-05-01 12:10:00</time_end>
    </booking>
    <booking>
      <callsign>EGLL_TWR</callsign>
      <name>Far Future</name>
      <cid>1000004</cid>
      <time_start>2024-05-03 12:00:00</time_start>
      <time_end>2024-05-03 14:00:00</time_end>
    </booking>
    <booking>
      <callsign></callsign>
      <time_start>2024-05-01 12:00:00</time_start>
      <time_end>2024-05-01 14:00:00</time_end>
    </booking>
    <booking>
      <callsign>LOWW_CTR</callsign>
      <time_start>tomorrow</time_start>
      <time_end>2024-05-01 14:00:00</time_end>
    </booking>
  </atcs>
</bookings>`

var sampleNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestParseFiltersAndSorts(t *testing.T) {
	got, err := Parse([]byte(sampleBookings), sampleNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []aviation.AtcStation{
		{
			Callsign:    "EDDF_APP",
			Controller:  aviation.User{ID: "1000002", RealName: "Ben Approach", Callsign: "EDDF_APP"},
			Booked:      true,
			BookedFrom:  time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
			BookedUntil: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
		},
		{
			Callsign:    "EDDF_TWR",
			Controller:  aviation.User{ID: "1000001", RealName: "Anna Tower", Callsign: "EDDF_TWR"},
			Booked:      true,
			BookedFrom:  time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC),
			BookedUntil: time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bookings mismatch (-want +got):\n%s", diff)
	}
}

type recordingSink struct {
	received [][]aviation.AtcStation
}

func (s *recordingSink) OnBookingsReceived(b []aviation.AtcStation) {
	s.received = append(s.received, b)
}

func TestReaderDeliversToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sampleBookings))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	r := NewReader(srv.URL, time.Minute, feeds.NewClient(feeds.ClientConfig{}, logger.NewNop()), sink, logger.NewNop())
	r.now = func() time.Time { return sampleNow }

	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(sink.received) != 1 || len(sink.received[0]) != 2 {
		t.Fatalf("sink received %+v", sink.received)
	}
	if len(r.Bookings()) != 2 {
		t.Errorf("Bookings() = %d entries", len(r.Bookings()))
	}

	// the same file is filtered again against the later time
	r.now = func() time.Time { return sampleNow.Add(50 * time.Minute) }
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sink.received) != 2 {
		t.Fatalf("sink received %d deliveries, want 2", len(sink.received))
	}
	var got []aviation.Callsign
	for _, st := range sink.received[1] {
		got = append(got, st.Callsign)
	}
	if diff := cmp.Diff([]aviation.Callsign{"EDDF_TWR"}, got); diff != "" {
		t.Errorf("bookings after refilter mismatch (-want +got):\n%s", diff)
	}
}
