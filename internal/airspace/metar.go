package airspace

import (
	"context"
	"fmt"
	"time"

	"github.com/yegors/airspace-monitor/internal/aviation"
)

const (
	DefaultMetarStaleAfter = 10 * time.Second
	DefaultMetarWait       = 1000 * time.Millisecond
	DefaultMetarCacheSize  = 256
)

// MetarResult is what a MetarFuture resolves to
type MetarResult struct {
	Icao    string                      `json:"icao"`
	Status  ReplyStatus                 `json:"status"`
	Message aviation.InformationMessage `json:"metar"`
}

// MetarFuture is the asynchronous answer to RequestMetar
type MetarFuture struct {
	icao  string
	reply *replyFuture[aviation.InformationMessage]
}

// Done is closed once a fresh METAR is available
func (f *MetarFuture) Done() <-chan struct{} { return f.reply.req.done }

// Poll returns the current state without blocking
func (f *MetarFuture) Poll() MetarResult {
	msg, status := f.reply.poll()
	return MetarResult{Icao: f.icao, Status: status, Message: msg}
}

// Wait blocks until a fresh METAR arrives, the timeout expires or ctx is done.
// On expiry it falls back to the stale cached message, or reports unavailable.
// A non-positive timeout uses the default wait.
func (f *MetarFuture) Wait(ctx context.Context, timeout time.Duration) MetarResult {
	msg, status := f.reply.wait(ctx, timeout)
	return MetarResult{Icao: f.icao, Status: status, Message: msg}
}

// MetarCache is a bounded airport -> METAR cache with pending request tracking
type MetarCache struct {
	cache *replyCache[aviation.InformationMessage]
}

// NewMetarCache creates a cache holding at most size airports
func NewMetarCache(size int, staleAfter, wait time.Duration) (*MetarCache, error) {
	if size <= 0 {
		size = DefaultMetarCacheSize
	}
	if staleAfter <= 0 {
		staleAfter = DefaultMetarStaleAfter
	}
	if wait <= 0 {
		wait = DefaultMetarWait
	}
	cache, err := newReplyCache(size, staleAfter, wait, func(m aviation.InformationMessage) time.Time { return m.ReceivedAt })
	if err != nil {
		return nil, fmt.Errorf("failed to create METAR cache: %w", err)
	}
	return &MetarCache{cache: cache}, nil
}

// Get returns the cached METAR regardless of age
func (c *MetarCache) Get(icao string) (aviation.InformationMessage, bool) {
	return c.cache.get(icao)
}

func (c *MetarCache) Len() int {
	return c.cache.len()
}

// Store caches msg and completes all futures waiting on icao
func (c *MetarCache) Store(icao string, msg aviation.InformationMessage) {
	c.cache.store(icao, msg)
}

// request returns a future for icao and whether a network query must be sent
func (c *MetarCache) request(icao string, now time.Time) (*MetarFuture, bool) {
	reply, send := c.cache.request(icao, now)
	return &MetarFuture{icao: icao, reply: reply}, send
}

// unavailableFuture resolves to ReplyUnavailable on the first Wait
func unavailableFuture(icao string) *MetarFuture {
	return &MetarFuture{icao: icao, reply: neverAnswered[aviation.InformationMessage]()}
}
