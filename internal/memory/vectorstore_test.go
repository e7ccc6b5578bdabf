package memory

import (
	"context"
	"testing"
)

func TestSearchOnEmptyStoreReturnsNoResults(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	facts, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("expected no facts on an empty store, got %d", len(facts))
	}
}

func TestIndexAndSearchFact(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := s.IndexFact(ctx, "fact-1", "the garage code is 4471"); err != nil {
		t.Fatalf("IndexFact: %v", err)
	}
	if err := s.IndexFact(ctx, "fact-2", "dentist appointment is next tuesday"); err != nil {
		t.Fatalf("IndexFact: %v", err)
	}

	if got := s.Count(); got != 2 {
		t.Fatalf("expected 2 indexed facts, got %d", got)
	}

	facts, err := s.Search(ctx, "garage code", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected 1 result, got %d", len(facts))
	}
	if facts[0].ID != "fact-1" {
		t.Errorf("expected fact-1 to rank first for a garage-code query, got %q", facts[0].ID)
	}
}
