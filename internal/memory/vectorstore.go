package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/philippgille/chromem-go"
)

// Fact is one consolidated memory returned by a semantic search.
type Fact struct {
	ID        string
	Content   string
	Score     float32
	Timestamp string
}

// Store wraps a single persistent chromem-go collection of consolidated
// facts (email-digest lines and facts synced from peer agents).
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// Open initializes (or reopens) a persistent vector store under
// stateDir/memory/vectors.
func Open(stateDir string) (*Store, error) {
	dbPath := filepath.Join(stateDir, "memory", "vectors")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("memory: create dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("memory: open db: %w", err)
	}
	coll, err := db.GetOrCreateCollection("facts", nil, HashEmbeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("memory: open collection: %w", err)
	}
	return &Store{db: db, collection: coll}, nil
}

// IndexFact stores one consolidated fact, keyed by a caller-chosen id so
// re-running consolidation over the same digest window is idempotent.
func (s *Store) IndexFact(ctx context.Context, id, content string) error {
	doc := chromem.Document{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			"indexed_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("memory: index fact: %w", err)
	}
	return nil
}

// Search returns the topK facts most similar to query.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Fact, error) {
	if topK <= 0 {
		topK = 5
	}
	if s.collection.Count() == 0 {
		return nil, nil
	}
	if topK > s.collection.Count() {
		topK = s.collection.Count()
	}
	results, err := s.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	facts := make([]Fact, 0, len(results))
	for _, r := range results {
		facts = append(facts, Fact{
			ID:        r.ID,
			Content:   r.Content,
			Score:     r.Similarity,
			Timestamp: r.Metadata["indexed_at"],
		})
	}
	return facts, nil
}

// Count returns the number of indexed facts.
func (s *Store) Count() int {
	return s.collection.Count()
}
