package views

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/livepages/beat"
)

var fixedClock = func() time.Time {
	return time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)
}

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func scenarioCache() *beat.Cache {
	c := beat.NewCache(10)
	c.Apply([]beat.PageInfo{{
		Title:     "A",
		Visits:    100,
		Referrers: []beat.Referrer{{Domain: "x.com", Visitors: 5}},
	}})
	return c
}

func TestSetupTemplateCreatesLimitSlots(t *testing.T) {
	r := NewRenderer(beat.NewCache(10), 10)
	done := false
	r.SetupTemplate(func() { done = true })
	if !done {
		t.Fatal("onDone not called")
	}
	items := r.Items()
	if len(items) != 10 {
		t.Fatalf("got %d items, want 10", len(items))
	}
	for i, item := range items {
		if item.Rank != i || item.Title != "" || item.Filled {
			t.Errorf("item %d = %+v, want empty slot with rank %d", i, item, i)
		}
	}

	r.SetupTemplate(nil)
	if n := len(r.Items()); n != 10 {
		t.Errorf("second SetupTemplate left %d items, want 10", n)
	}
}

func TestUpdateListDoesNotGrowPastLimit(t *testing.T) {
	cache := beat.NewCache(20)
	pages := make([]beat.PageInfo, 15)
	for i := range pages {
		pages[i] = beat.PageInfo{Title: "p", Visits: i}
	}
	cache.Apply(pages)

	r := NewRenderer(cache, 10)
	r.SetupTemplate(nil)
	r.UpdateList()
	if n := len(r.Items()); n != 10 {
		t.Errorf("got %d items, want 10", n)
	}
}

func TestUpdateListCopiesCachedFields(t *testing.T) {
	r := NewRenderer(scenarioCache(), 10)
	r.SetupTemplate(nil)
	r.UpdateList()

	items := r.Items()
	if items[0].Title != "A" || items[0].Visits != 100 || !items[0].Filled {
		t.Errorf("item 0 = %+v, want A / 100", items[0])
	}
	if items[1].Filled || items[1].Title != "" {
		t.Errorf("item 1 = %+v, want empty slot", items[1])
	}

	html := renderString(t, TopPagesList(items))
	if !strings.Contains(html, `<div class="top-page-title">A</div>`) {
		t.Errorf("list missing title A: %s", html)
	}
	if !strings.Contains(html, `<div class="top-page-visits">100</div>`) {
		t.Errorf("list missing visits 100: %s", html)
	}
	if got := strings.Count(html, "<li "); got != 10 {
		t.Errorf("list has %d items, want 10", got)
	}
}

func TestUpdateListKeepsStaleSlots(t *testing.T) {
	cache := beat.NewCache(10)
	cache.Apply([]beat.PageInfo{{Title: "a"}, {Title: "b"}})
	r := NewRenderer(cache, 10)
	r.SetupTemplate(nil)
	r.UpdateList()

	cache.Apply([]beat.PageInfo{{Title: "z"}})
	r.UpdateList()

	items := r.Items()
	if items[0].Title != "z" || items[1].Title != "b" {
		t.Errorf("titles = %q, %q; want z, b", items[0].Title, items[1].Title)
	}
}

func TestListItemsTargetOwnRank(t *testing.T) {
	r := NewRenderer(beat.NewCache(3), 3)
	r.SetupTemplate(nil)
	html := renderString(t, TopPagesList(r.Items()))
	for _, want := range []string{`data-href="/pages/0/"`, `data-href="/pages/1/"`, `data-href="/pages/2/"`} {
		if !strings.Contains(html, want) {
			t.Errorf("list missing %s", want)
		}
	}
}

func TestShowDetailsScenario(t *testing.T) {
	r := NewRenderer(scenarioCache(), 10, WithClock(fixedClock))
	d, err := r.ShowDetails(0)
	if err != nil {
		t.Fatalf("ShowDetails failed: %v", err)
	}
	if d.Title != "A" {
		t.Errorf("Title = %q, want %q", d.Title, "A")
	}
	if d.LastUpdated != "Last updated: 10/19/2026, 3:04:05 PM" {
		t.Errorf("LastUpdated = %q", d.LastUpdated)
	}
	if len(d.Referrers) != 1 || d.Referrers[0] != (Referrer{Domain: "x.com", Visitors: 5}) {
		t.Errorf("Referrers = %+v, want [{x.com 5}]", d.Referrers)
	}

	html := renderString(t, PageDetails(&d))
	want := `<h2 id="page-details-title">A</h2>` +
		`<p id="page-details-last-updated">Last updated: 10/19/2026, 3:04:05 PM</p>` +
		`<ul id="top-referrers-list"><li><div class="referrer-wrap">` +
		`<div class="top-referrer-name">x.com</div><div class="top-referrer-visitors">5</div>` +
		`</div></li></ul>`
	if html != want {
		t.Errorf("details markup =\n%s\nwant\n%s", html, want)
	}
}

func TestShowDetailsIsIdempotent(t *testing.T) {
	r := NewRenderer(scenarioCache(), 10, WithClock(fixedClock))
	first, _ := r.ShowDetails(0)
	second, _ := r.ShowDetails(0)
	a := renderString(t, PageDetails(&first))
	b := renderString(t, PageDetails(&second))
	if a != b {
		t.Errorf("markup changed between calls:\n%s\n%s", a, b)
	}
	if n := strings.Count(b, `class="referrer-wrap"`); n != 1 {
		t.Errorf("got %d referrer rows, want 1", n)
	}
}

func TestShowDetailsUsesCallTime(t *testing.T) {
	now := fixedClock()
	r := NewRenderer(scenarioCache(), 10, WithClock(func() time.Time { return now }))
	first, _ := r.ShowDetails(0)
	now = now.Add(time.Minute)
	second, _ := r.ShowDetails(0)
	if first.LastUpdated == second.LastUpdated {
		t.Errorf("LastUpdated did not follow the clock: %q", second.LastUpdated)
	}
}

func TestShowDetailsUnknownRank(t *testing.T) {
	r := NewRenderer(scenarioCache(), 10)
	for _, rank := range []int{-1, 1, 10, 99} {
		if _, err := r.ShowDetails(rank); !errors.Is(err, ErrNoPage) {
			t.Errorf("ShowDetails(%d) err = %v, want ErrNoPage", rank, err)
		}
	}
}

func TestPageEscapesContent(t *testing.T) {
	items := []ListItem{{Rank: 0, Title: `<script>alert(1)</script>`, Filled: true}}
	d := &Details{Title: `"quoted" & <b>`}
	html := renderString(t, Page(SiteConfig{Name: "Top Pages", Host: "example.com", RefreshMS: 5000}, items, d))
	if strings.Contains(html, "<script>alert") {
		t.Error("list title was not escaped")
	}
	if strings.Contains(html, "<b>") {
		t.Error("detail title was not escaped")
	}
	for _, want := range []string{`id="top-pages"`, `id="page-details"`, `data-refresh-ms="5000"`, "example.com"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %s", want)
		}
	}
}

func TestPageDetailsNil(t *testing.T) {
	html := renderString(t, PageDetails(nil))
	for _, id := range []string{DetailsTitleID, LastUpdatedID, ReferrerListID} {
		if !strings.Contains(html, `id="`+id+`"`) {
			t.Errorf("empty panel missing #%s", id)
		}
	}
}

func TestTopPagesListMarkup(t *testing.T) {
	items := []ListItem{
		{Rank: 0, Title: "A", Visits: 100, Filled: true},
		{Rank: 1},
	}
	html := renderString(t, TopPagesList(items))
	want := `<ul id="top-pages" data-src="/fragments/top-pages">` +
		`<li data-rank="0" data-href="/pages/0/"><div class="page-wrap"><div class="page-title-container">` +
		`<div class="top-page-title">A</div></div><div class="page-visits-container">` +
		`<div class="top-page-visits">100</div></div></div></li>` +
		`<li data-rank="1" data-href="/pages/1/"><div class="page-wrap"><div class="page-title-container">` +
		`<div class="top-page-title"></div></div><div class="page-visits-container">` +
		`<div class="top-page-visits"></div></div></div></li>` +
		`</ul>`
	if html != want {
		t.Errorf("list markup =\n%s\nwant\n%s", html, want)
	}
}

func TestFragmentsHonorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if err := NotFound().Render(ctx, &buf); !errors.Is(err, context.Canceled) {
		t.Errorf("Render err = %v, want context.Canceled", err)
	}
}
