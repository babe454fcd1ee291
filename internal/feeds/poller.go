package feeds

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/yegors/airspace-monitor/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// ParseFunc consumes one downloaded document
type ParseFunc func(body []byte) error

// Result describes the outcome of one refresh
type Result struct {
	Changed   bool      `json:"changed"`
	Bytes     int       `json:"bytes"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Poller downloads a URL periodically and hands changed content to a parser.
// Concurrent refreshes collapse into one download.
type Poller struct {
	name     string
	url      string
	interval time.Duration
	client   *Client
	parse    ParseFunc
	logger   *logger.Logger
	group    singleflight.Group

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	// time-dependent parsers see unchanged documents too
	reparseUnchanged bool

	lastHash  uint64
	lastFetch time.Time
	lastErr   error
}

// NewPoller creates a poller for url, refreshed every interval
func NewPoller(name, url string, interval time.Duration, client *Client, parse ParseFunc, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		name:     name,
		url:      url,
		interval: interval,
		client:   client,
		parse:    parse,
		logger:   log.Named(name),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ReparseUnchanged makes every refresh call the parser, even when the content did not change.
// Result.Changed still reports whether the content changed.
func (p *Poller) ReparseUnchanged() {
	p.mu.Lock()
	p.reparseUnchanged = true
	p.mu.Unlock()
}

// Start performs an initial refresh and then refreshes on the interval
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	p.logger.Info("Starting feed poller",
		logger.String("url", p.url),
		logger.Duration("interval", p.interval))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop()
	}()
	p.started = true
	return nil
}

// Stop ends the refresh loop
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()

	p.logger.Info("Stopping feed poller")
	p.cancel()
	p.wg.Wait()
	return nil
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refreshAndLog()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.refreshAndLog()
		}
	}
}

func (p *Poller) refreshAndLog() {
	res, err := p.Refresh(p.ctx)
	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn("Feed refresh failed", logger.Error(err))
		}
		return
	}
	if !res.Changed {
		p.logger.Debug("Feed content unchanged, skipped", logger.Int("bytes", res.Bytes))
		return
	}
	p.logger.Info("Feed refreshed", logger.Int("bytes", res.Bytes))
}

// Refresh downloads and parses the feed now. Callers arriving during a running
// refresh share its result.
func (p *Poller) Refresh(ctx context.Context) (Result, error) {
	v, err, _ := p.group.Do(p.url, func() (any, error) {
		return p.refresh(ctx)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (p *Poller) refresh(ctx context.Context) (Result, error) {
	body, err := p.client.Fetch(ctx, p.url)
	now := time.Now().UTC()
	if err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return Result{}, err
	}

	h := fnv.New64a()
	h.Write(body)
	sum := h.Sum64()

	p.mu.Lock()
	unchanged := sum == p.lastHash && !p.lastFetch.IsZero()
	reparse := p.reparseUnchanged
	p.lastFetch = now
	p.mu.Unlock()
	if unchanged && !reparse {
		return Result{Bytes: len(body), FetchedAt: now}, nil
	}

	if err := p.parse(body); err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return Result{}, err
	}

	p.mu.Lock()
	p.lastHash = sum
	p.lastErr = nil
	p.mu.Unlock()
	return Result{Changed: !unchanged, Bytes: len(body), FetchedAt: now}, nil
}

// Status reports the last fetch time and error
func (p *Poller) Status() (time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastFetch, p.lastErr
}
