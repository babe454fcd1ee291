package simulator

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketIntervals are the refill intervals a limiter may use, shortest first
var bucketIntervals = []time.Duration{
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
}

// UpdateLimiter caps how many situation and parts updates per second reach the simulator.
// Updates over the limit are dropped and counted, never queued.
type UpdateLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	perSecond int
	interval  time.Duration
	tokens    int
	accepted  int64
	limited   int64
}

// NewUpdateLimiter creates a limiter for perSecond updates; zero or less disables limiting
func NewUpdateLimiter(perSecond int) *UpdateLimiter {
	l := &UpdateLimiter{}
	l.SetRate(perSecond)
	return l
}

// bucketFor picks the shortest interval that refills at least one whole token
func bucketFor(perSecond int) (time.Duration, int) {
	for _, iv := range bucketIntervals {
		tokens := int(math.Floor(float64(perSecond)*iv.Seconds() + 1e-9))
		if tokens >= 1 {
			return iv, tokens
		}
	}
	return bucketIntervals[len(bucketIntervals)-1], 1
}

// SetRate reconfigures the limiter
func (l *UpdateLimiter) SetRate(perSecond int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.perSecond = perSecond
	if perSecond <= 0 {
		l.limiter = nil
		l.interval, l.tokens = 0, 0
		return
	}
	l.interval, l.tokens = bucketFor(perSecond)
	l.limiter = rate.NewLimiter(rate.Limit(perSecond), l.tokens)
}

// Allow reports whether an update may be sent now
func (l *UpdateLimiter) Allow() bool {
	return l.AllowAt(time.Now())
}

func (l *UpdateLimiter) AllowAt(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limiter == nil || l.limiter.AllowN(now, 1) {
		l.accepted++
		return true
	}
	l.limited++
	return false
}

// LimiterStats describes the limiter configuration and counters
type LimiterStats struct {
	PerSecond  int           `json:"per_second"`
	Interval   time.Duration `json:"interval"`
	Tokens     int           `json:"tokens"`
	Accepted   int64         `json:"accepted"`
	Limited    int64         `json:"limited"`
	IsLimiting bool          `json:"is_limiting"`
}

func (l *UpdateLimiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterStats{
		PerSecond:  l.perSecond,
		Interval:   l.interval,
		Tokens:     l.tokens,
		Accepted:   l.accepted,
		Limited:    l.limited,
		IsLimiting: l.limiter != nil,
	}
}
