package views

import (
	"errors"
	"sync"
	"time"

	"github.com/eringen/livepages/beat"
)

// ErrNoPage is returned when a rank has no cached page to show.
var ErrNoPage = errors.New("views: no page at rank")

// LastUpdatedLayout formats the detail panel's "Last updated" time.
const LastUpdatedLayout = "1/2/2006, 3:04:05 PM"

// PageSource gives read access to cached pages by rank.
type PageSource interface {
	PageInfo(rank int) (beat.PageInfo, bool)
}

// Renderer owns the list slots shown on the page and builds the detail panel.
type Renderer struct {
	source PageSource
	limit  int
	now    func() time.Time

	mu    sync.RWMutex
	built bool
	items []ListItem
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithClock replaces the wall clock used for "Last updated".
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) {
		r.now = now
	}
}

// NewRenderer creates a Renderer with limit list slots reading from src.
func NewRenderer(src PageSource, limit int, opts ...RendererOption) *Renderer {
	if limit <= 0 {
		limit = beat.DefaultPageLimit
	}
	r := &Renderer{
		source: src,
		limit:  limit,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetupTemplate builds the empty list slots, once, then calls onDone.
func (r *Renderer) SetupTemplate(onDone func()) {
	r.mu.Lock()
	if !r.built {
		r.items = make([]ListItem, r.limit)
		for i := range r.items {
			r.items[i] = ListItem{Rank: i}
		}
		r.built = true
	}
	r.mu.Unlock()

	if onDone != nil {
		onDone()
	}
}

// UpdateList copies title and visits from the cache into each slot.
// Slots whose rank was never populated are left as they are.
func (r *Renderer) UpdateList() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.items {
		info, ok := r.source.PageInfo(r.items[i].Rank)
		if !ok {
			continue
		}
		r.items[i].Title = info.Title
		r.items[i].Visits = info.Visits
		r.items[i].Filled = true
	}
}

// Items returns a copy of the list slots.
func (r *Renderer) Items() []ListItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ListItem, len(r.items))
	copy(out, r.items)
	return out
}

// Limit returns the number of list slots.
func (r *Renderer) Limit() int {
	return r.limit
}

// ShowDetails builds the detail panel for rank from the page currently cached there.
// The timestamp is the time of the call, not of the poll.
func (r *Renderer) ShowDetails(rank int) (Details, error) {
	if rank < 0 || rank >= r.limit {
		return Details{}, ErrNoPage
	}
	info, ok := r.source.PageInfo(rank)
	if !ok {
		return Details{}, ErrNoPage
	}

	refs := make([]Referrer, 0, len(info.Referrers))
	for _, ref := range info.Referrers {
		refs = append(refs, Referrer{Domain: ref.Domain, Visitors: ref.Visitors})
	}
	return Details{
		Rank:        rank,
		Title:       info.Title,
		LastUpdated: "Last updated: " + r.now().Format(LastUpdatedLayout),
		Referrers:   refs,
	}, nil
}
