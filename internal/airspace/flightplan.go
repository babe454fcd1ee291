package airspace

import (
	"context"
	"fmt"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
)

const (
	DefaultFlightPlanStaleAfter = 30 * time.Second
	DefaultFlightPlanWait       = 1000 * time.Millisecond
	flightPlanCacheSize         = 512
)

// FlightPlanResult is what a FlightPlanFuture resolves to
type FlightPlanResult struct {
	Callsign   aviation.Callsign   `json:"callsign"`
	Status     ReplyStatus         `json:"status"`
	FlightPlan aviation.FlightPlan `json:"flight_plan"`
}

// FlightPlanFuture is the asynchronous answer to RequestFlightPlan
type FlightPlanFuture struct {
	callsign aviation.Callsign
	reply    *replyFuture[aviation.FlightPlan]
}

// Done is closed once a fresh flight plan is available
func (f *FlightPlanFuture) Done() <-chan struct{} { return f.reply.req.done }

func (f *FlightPlanFuture) Poll() FlightPlanResult {
	fp, status := f.reply.poll()
	return FlightPlanResult{Callsign: f.callsign, Status: status, FlightPlan: fp}
}

// Wait behaves like MetarFuture.Wait
func (f *FlightPlanFuture) Wait(ctx context.Context, timeout time.Duration) FlightPlanResult {
	fp, status := f.reply.wait(ctx, timeout)
	return FlightPlanResult{Callsign: f.callsign, Status: status, FlightPlan: fp}
}

func newFlightPlanCache(staleAfter, wait time.Duration) (*replyCache[aviation.FlightPlan], error) {
	if staleAfter <= 0 {
		staleAfter = DefaultFlightPlanStaleAfter
	}
	if wait <= 0 {
		wait = DefaultFlightPlanWait
	}
	cache, err := newReplyCache(flightPlanCacheSize, staleAfter, wait, func(fp aviation.FlightPlan) time.Time { return fp.ReceivedAt })
	if err != nil {
		return nil, fmt.Errorf("failed to create flight plan cache: %w", err)
	}
	return cache, nil
}
