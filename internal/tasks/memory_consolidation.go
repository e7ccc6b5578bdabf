package tasks

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/memory"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const memoryComponent = "tasks.memory"

// minFactLen is the shortest trimmed digest line worth indexing as a fact;
// shorter lines are skipped.
const minFactLen = 40

// NewMemoryConsolidationTask reads the email digest file
// (email-digest.jsonl under the project directory), takes every line of at
// least minFactLen characters as a candidate fact, and indexes it into the
// memory store keyed by its content hash. It reads the whole file on each
// run and does not read the transcript. It never
// calls the LLM; "extraction" here is a line-length heuristic over
// already-captured text (spec.md §2 Non-goals: kernel does not interpret
// natural language).
func NewMemoryConsolidationTask(d Deps, store *memory.Store) scheduler.Task {
	return scheduler.Task{
		Name:            "memory-consolidation",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			digestPath := filepath.Join(d.ProjectDir, "email-digest.jsonl")
			facts, err := extractDigestFacts(digestPath)
			if err != nil {
				return fmt.Errorf("tasks: read digest for consolidation: %w", err)
			}

			indexed := 0
			for _, fact := range facts {
				id := factID(fact)
				if err := store.IndexFact(ctx, id, fact); err != nil {
					logger.WarnCF(memoryComponent, "failed to index fact", map[string]interface{}{"error": err.Error()})
					continue
				}
				indexed++
			}
			logger.InfoCF(memoryComponent, "consolidation pass complete", map[string]interface{}{
				"candidates": len(facts), "indexed": indexed, "total": store.Count(),
			})
			return nil
		},
	}
}

func factID(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func extractDigestFacts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var facts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) >= minFactLen {
			facts = append(facts, line)
		}
	}
	return facts, scanner.Err()
}
