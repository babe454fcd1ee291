package bookings

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/yegors/airspace-monitor/internal/aviation"
	"github.com/yegors/airspace-monitor/internal/feeds"
	"github.com/yegors/airspace-monitor/pkg/logger"
)

// TimeLayout is the timestamp format of the bookings file, always UTC
const TimeLayout = "2006-01-02 15:04:05"

const (
	// endingSoon drops bookings that are about to end
	endingSoon = 15 * time.Minute
	// lookAhead drops bookings starting too far in the future
	lookAhead = 24 * time.Hour
)

// Sink receives the parsed bookings
type Sink interface {
	OnBookingsReceived(bookings []aviation.AtcStation)
}

// Reader periodically reads ATC bookings
type Reader struct {
	poller *feeds.Poller
	sink   Sink
	logger *logger.Logger
	now    func() time.Time

	mu       sync.RWMutex
	bookings []aviation.AtcStation
}

// NewReader creates a bookings reader for url
func NewReader(url string, interval time.Duration, client *feeds.Client, sink Sink, log *logger.Logger) *Reader {
	r := &Reader{
		sink:   sink,
		logger: log.Named("bookings"),
		now:    time.Now,
	}
	r.poller = feeds.NewPoller("bookings-feed", url, interval, client, r.handle, log)
	// bookings are filtered against the current time
	r.poller.ReparseUnchanged()
	return r
}

func (r *Reader) Start() error { return r.poller.Start() }
func (r *Reader) Stop() error  { return r.poller.Stop() }

// Refresh reads the bookings now
func (r *Reader) Refresh(ctx context.Context) (feeds.Result, error) {
	return r.poller.Refresh(ctx)
}

// Bookings returns the last parsed bookings
func (r *Reader) Bookings() []aviation.AtcStation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]aviation.AtcStation(nil), r.bookings...)
}

func (r *Reader) handle(body []byte) error {
	stations, err := Parse(body, r.now().UTC())
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.bookings = stations
	r.mu.Unlock()

	r.logger.Info("Read bookings", logger.Int("count", len(stations)))
	if r.sink != nil {
		r.sink.OnBookingsReceived(stations)
	}
	return nil
}

// Parse reads the bookings XML. Bookings ending within 15 minutes or starting
// more than 24 hours from now are skipped, as are entries without a callsign.
func Parse(body []byte, now time.Time) ([]aviation.AtcStation, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse bookings: %w", err)
	}
	nodes, err := xmlquery.QueryAll(doc, "//atcs/booking")
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}

	stations := make([]aviation.AtcStation, 0, len(nodes))
	for _, n := range nodes {
		callsign := aviation.NewCallsign(childText(n, "callsign"))
		if callsign.IsEmpty() {
			continue
		}
		from, errFrom := time.ParseInLocation(TimeLayout, childText(n, "time_start"), time.UTC)
		until, errUntil := time.ParseInLocation(TimeLayout, childText(n, "time_end"), time.UTC)
		if errFrom != nil || errUntil != nil {
			continue
		}
		if until.Sub(now) < endingSoon || from.Sub(now) > lookAhead {
			continue
		}

		stations = append(stations, aviation.AtcStation{
			Callsign: callsign,
			Controller: aviation.User{
				ID:       childText(n, "cid"),
				RealName: childText(n, "name"),
				Callsign: callsign,
			},
			Booked:      true,
			BookedFrom:  from,
			BookedUntil: until,
		})
	}
	sort.SliceStable(stations, func(i, j int) bool {
		if !stations[i].BookedFrom.Equal(stations[j].BookedFrom) {
			return stations[i].BookedFrom.Before(stations[j].BookedFrom)
		}
		return stations[i].Callsign < stations[j].Callsign
	})
	return stations, nil
}

func childText(n *xmlquery.Node, name string) string {
	child := n.SelectElement(name)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}
