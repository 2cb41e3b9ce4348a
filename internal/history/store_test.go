package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/joacominatel/sqlbridge/internal/state"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := state.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewStore(db.DB())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestAddAndRecent(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	three := int64(3)

	first, err := s.Add(Entry{Alias: "pg", Query: "SELECT 1", ExecutedAt: base, Duration: 15 * time.Millisecond, Success: true})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if first.ID == "" {
		t.Error("Expected an ID to be assigned")
	}
	_, _ = s.Add(Entry{Alias: "pg", Query: "DELETE FROM t", ExecutedAt: base.Add(time.Minute), RowsAffected: &three, Success: true})
	_, _ = s.Add(Entry{Alias: "my", Query: "SELEC 1", ExecutedAt: base.Add(2 * time.Minute), ErrorMessage: "syntax error"})

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Query != "SELEC 1" || entries[0].Success || entries[0].ErrorMessage != "syntax error" {
		t.Errorf("Unexpected newest entry %+v", entries[0])
	}
	if entries[1].RowsAffected == nil || *entries[1].RowsAffected != 3 {
		t.Errorf("Expected rows affected 3, got %v", entries[1].RowsAffected)
	}
	if entries[2].RowsAffected != nil {
		t.Errorf("Expected nil rows affected, got %d", *entries[2].RowsAffected)
	}
	if entries[2].Duration != 15*time.Millisecond || !entries[2].ExecutedAt.Equal(base) {
		t.Errorf("Unexpected timing %+v", entries[2])
	}

	limited, _ := s.Recent(1)
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(limited))
	}
}

func TestSearch(t *testing.T) {
	s := openTestStore(t)
	for _, q := range []string{"SELECT * FROM users", "SELECT * FROM orders", "select 100%"} {
		if _, err := s.Add(Entry{Alias: "pg", Query: q, Success: true}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	got, err := s.Search("users", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Query != "SELECT * FROM users" {
		t.Errorf("Unexpected results %v", got)
	}

	got, _ = s.Search("%", 10)
	if len(got) != 1 {
		t.Errorf("Expected percent sign to match literally, got %d results", len(got))
	}
}
