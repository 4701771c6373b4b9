// Package beat keeps the latest live top-pages data in memory and refreshes it on a fixed interval.
package beat

import (
	"sync"

	"github.com/eringen/livepages/chartbeat"
)

// DefaultPageLimit is the number of ranks kept and displayed.
const DefaultPageLimit = 10

// Referrer is a referring domain and how many current visitors it sent.
type Referrer struct {
	Domain   string `json:"domain"`
	Visitors int    `json:"visitors"`
}

// PageInfo is the cached record for one rank.
type PageInfo struct {
	Title     string     `json:"title"`
	Path      string     `json:"path,omitempty"`
	Visits    int        `json:"visits"`
	Referrers []Referrer `json:"toprefs"`
}

func (p PageInfo) clone() PageInfo {
	if p.Referrers != nil {
		refs := make([]Referrer, len(p.Referrers))
		copy(refs, p.Referrers)
		p.Referrers = refs
	}
	return p
}

// FromPage converts an API page into a PageInfo.
func FromPage(pg chartbeat.Page) PageInfo {
	refs := make([]Referrer, len(pg.Stats.Toprefs))
	for i, r := range pg.Stats.Toprefs {
		refs[i] = Referrer{Domain: r.Domain, Visitors: r.Visitors}
	}
	return PageInfo{
		Title:     pg.Title,
		Path:      pg.Path,
		Visits:    pg.Stats.Visits,
		Referrers: refs,
	}
}

// Cache holds PageInfo records addressed only by rank. Ranks that the latest
// poll did not cover keep whatever an earlier poll wrote there.
type Cache struct {
	mu    sync.RWMutex
	pages []PageInfo
	set   []bool
	fresh int
}

// NewCache creates a Cache with room for limit ranks.
func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &Cache{
		pages: make([]PageInfo, limit),
		set:   make([]bool, limit),
	}
}

// Cap returns the number of ranks the cache can hold.
func (c *Cache) Cap() int {
	return len(c.pages)
}

// Apply overwrites ranks [0, len(pages)) and returns how many were written.
// Pages past the cache capacity are dropped.
func (c *Cache) Apply(pages []PageInfo) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(pages)
	if n > len(c.pages) {
		n = len(c.pages)
	}
	for i := 0; i < n; i++ {
		c.pages[i] = pages[i].clone()
		c.set[i] = true
	}
	c.fresh = n
	return n
}

// PageInfo returns the record cached at rank, or false if rank was never populated.
func (c *Cache) PageInfo(rank int) (PageInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if rank < 0 || rank >= len(c.pages) || !c.set[rank] {
		return PageInfo{}, false
	}
	return c.pages[rank].clone(), true
}

// Latest returns the records written by the most recent Apply.
func (c *Cache) Latest() []PageInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]PageInfo, c.fresh)
	for i := range out {
		out[i] = c.pages[i].clone()
	}
	return out
}
