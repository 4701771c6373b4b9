package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/eringen/livepages/beat"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRankHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	first := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Second)

	if err := s.Save(ctx, first, []beat.PageInfo{
		{Title: "A", Visits: 100, Referrers: []beat.Referrer{{Domain: "x.com", Visitors: 5}}},
		{Title: "B", Visits: 50},
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, second, []beat.PageInfo{{Title: "B", Visits: 120}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.RankHistory(ctx, 0, 10)
	if err != nil {
		t.Fatalf("RankHistory failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Title != "B" || !got[0].PolledAt.Equal(second) {
		t.Errorf("newest = %+v, want B at %v", got[0], second)
	}
	if got[1].Title != "A" || got[1].Visits != 100 {
		t.Errorf("oldest = %+v, want A with 100 visits", got[1])
	}
	if len(got[1].Referrers) != 1 || got[1].Referrers[0] != (beat.Referrer{Domain: "x.com", Visitors: 5}) {
		t.Errorf("Referrers = %+v, want [{x.com 5}]", got[1].Referrers)
	}
	if got[0].Referrers == nil || len(got[0].Referrers) != 0 {
		t.Errorf("Referrers = %#v, want empty slice", got[0].Referrers)
	}

	rank1, err := s.RankHistory(ctx, 1, 10)
	if err != nil {
		t.Fatalf("RankHistory failed: %v", err)
	}
	if len(rank1) != 1 || rank1[0].Title != "B" {
		t.Errorf("rank 1 history = %+v, want single B entry", rank1)
	}
}

func TestRankHistoryOrdersSubSecondTimestamps(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 5, 0, time.UTC)

	s.Save(ctx, base, []beat.PageInfo{{Title: "whole"}})
	s.Save(ctx, base.Add(500*time.Millisecond), []beat.PageInfo{{Title: "half"}})

	got, err := s.RankHistory(ctx, 0, 1)
	if err != nil {
		t.Fatalf("RankHistory failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "half" {
		t.Errorf("newest = %+v, want half", got)
	}
}

func TestRankHistoryEmpty(t *testing.T) {
	s := setupTestStore(t)
	got, err := s.RankHistory(context.Background(), 3, 0)
	if err != nil {
		t.Fatalf("RankHistory failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty slice", got)
	}
}

func TestCleanup(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	s.Save(ctx, old, []beat.PageInfo{{Title: "old"}, {Title: "older"}})
	s.Save(ctx, time.Now(), []beat.PageInfo{{Title: "new"}})

	n, err := s.Cleanup(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d rows, want 2", n)
	}
	got, _ := s.RankHistory(ctx, 0, 10)
	if len(got) != 1 || got[0].Title != "new" {
		t.Errorf("remaining = %+v, want only new", got)
	}
}

func TestSaveNothing(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Save(context.Background(), time.Now(), nil); err != nil {
		t.Fatalf("Save(nil) failed: %v", err)
	}
}
