package airspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ReplyStatus is the outcome of a cached network query
type ReplyStatus int

const (
	ReplyPending ReplyStatus = iota
	ReplyFresh
	ReplyStale
	ReplyUnavailable
)

func (s ReplyStatus) String() string {
	switch s {
	case ReplyPending:
		return "pending"
	case ReplyFresh:
		return "fresh"
	case ReplyStale:
		return "stale"
	case ReplyUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("ReplyStatus(%d)", int(s))
	}
}

func (s ReplyStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// replyRequest is one outstanding network query, shared by everyone waiting on the same key
type replyRequest[V any] struct {
	done   chan struct{}
	value  V
	sentAt time.Time
}

func completedRequest[V any](v V) *replyRequest[V] {
	r := &replyRequest[V]{done: make(chan struct{}), value: v}
	close(r.done)
	return r
}

// replyFuture waits on a replyRequest and falls back to the last cached value
type replyFuture[V any] struct {
	req         *replyRequest[V]
	stale       V
	hasStale    bool
	defaultWait time.Duration
}

// neverAnswered resolves to ReplyUnavailable on the first wait
func neverAnswered[V any]() *replyFuture[V] {
	return &replyFuture[V]{req: &replyRequest[V]{done: make(chan struct{})}}
}

func (f *replyFuture[V]) poll() (V, ReplyStatus) {
	select {
	case <-f.req.done:
		return f.req.value, ReplyFresh
	default:
		var zero V
		return zero, ReplyPending
	}
}

// wait blocks until the reply arrives, the timeout expires or ctx is done.
// A non-positive timeout uses the default wait.
func (f *replyFuture[V]) wait(ctx context.Context, timeout time.Duration) (V, ReplyStatus) {
	if timeout <= 0 {
		timeout = f.defaultWait
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.req.done:
	case <-timer.C:
	case <-ctx.Done():
	}

	if v, status := f.poll(); status == ReplyFresh {
		return v, status
	}
	if f.hasStale {
		return f.stale, ReplyStale
	}
	var zero V
	return zero, ReplyUnavailable
}

// replyCache is a bounded key -> reply cache with pending request tracking
type replyCache[V any] struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, V]
	pending    map[string]*replyRequest[V]
	staleAfter time.Duration
	wait       time.Duration
	receivedAt func(V) time.Time
}

func newReplyCache[V any](size int, staleAfter, wait time.Duration, receivedAt func(V) time.Time) (*replyCache[V], error) {
	entries, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &replyCache[V]{
		entries:    entries,
		pending:    make(map[string]*replyRequest[V]),
		staleAfter: staleAfter,
		wait:       wait,
		receivedAt: receivedAt,
	}, nil
}

func (c *replyCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Peek(key)
}

func (c *replyCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// store caches v and completes everyone waiting on key
func (c *replyCache[V]) store(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(key, v)
	if req, ok := c.pending[key]; ok {
		req.value = v
		close(req.done)
		delete(c.pending, key)
	}
}

func (c *replyCache[V]) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

func (c *replyCache[V]) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// request returns a future for key and whether a network query must be sent.
// Fresh entries resolve immediately; a query already in flight within the
// staleness window is shared instead of sent again.
func (c *replyCache[V]) request(key string, now time.Time) (*replyFuture[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries.Get(key)
	f := &replyFuture[V]{stale: cached, hasStale: ok, defaultWait: c.wait}

	if ok && now.Sub(c.receivedAt(cached)) <= c.staleAfter {
		f.req = completedRequest(cached)
		return f, false
	}

	if req, inFlight := c.pending[key]; inFlight && now.Sub(req.sentAt) <= c.staleAfter {
		f.req = req
		return f, false
	}

	req := &replyRequest[V]{done: make(chan struct{}), sentAt: now}
	c.pending[key] = req
	f.req = req
	return f, true
}
