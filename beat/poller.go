package beat

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/livepages/chartbeat"
)

// DefaultInterval is the delay between the end of one tick and the start of the next.
const DefaultInterval = 5 * time.Second

// Fetcher performs a single request for the top pages.
type Fetcher interface {
	Fetch(ctx context.Context) chartbeat.Result
}

// Logger is the subset of the echo logger the poller writes to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// Status describes the poller's recent activity.
type Status struct {
	Ticks       int       `json:"ticks"`
	Successes   int       `json:"successes"`
	Failures    int       `json:"failures"`
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	FreshPages  int       `json:"fresh_pages"`
	Interval    string    `json:"interval"`
}

// Poller refreshes a Cache from a Fetcher. Ticks run strictly in series:
// the next fetch is issued only after the previous one has resolved and
// the interval has elapsed.
type Poller struct {
	cache    *Cache
	fetcher  Fetcher
	interval time.Duration
	log      Logger
	now      func() time.Time

	mu     sync.RWMutex
	status Status
}

// NewPoller creates a Poller writing into cache.
func NewPoller(cache *Cache, f Fetcher, interval time.Duration, log Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		cache:    cache,
		fetcher:  f,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Cache returns the cache the poller writes to.
func (p *Poller) Cache() *Cache {
	return p.cache
}

// PageInfo returns the record cached at rank.
func (p *Poller) PageInfo(rank int) (PageInfo, bool) {
	return p.cache.PageInfo(rank)
}

// Start polls until ctx is cancelled. onUpdated runs after every successful
// tick, on the polling goroutine. Failed ticks are skipped without calling it.
func (p *Poller) Start(ctx context.Context, onUpdated func()) error {
	if p.log != nil {
		p.log.Infof("polling initiated (every %s)", p.interval)
	}
	for {
		p.Tick(ctx, onUpdated)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// Tick runs one fetch-and-apply cycle and reports whether the cache was updated.
func (p *Poller) Tick(ctx context.Context, onUpdated func()) bool {
	started := p.now()
	res := p.fetcher.Fetch(ctx)

	if !res.OK() {
		p.record(started, 0, res.Err)
		if p.log != nil {
			p.log.Debugf("poll skipped: %v", res.Err)
		}
		return false
	}

	pages := make([]PageInfo, len(res.Pages))
	for i, pg := range res.Pages {
		pages[i] = FromPage(pg)
	}
	n := p.cache.Apply(pages)
	p.record(started, n, nil)
	if onUpdated != nil {
		onUpdated()
	}
	return true
}

func (p *Poller) record(at time.Time, fresh int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Ticks++
	p.status.LastAttempt = at
	if err != nil {
		p.status.Failures++
		p.status.LastError = err.Error()
		return
	}
	p.status.Successes++
	p.status.LastSuccess = at
	p.status.LastError = ""
	p.status.FreshPages = fresh
}

// Status returns a snapshot of the poller's counters.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.status
	s.Interval = p.interval.String()
	return s
}
