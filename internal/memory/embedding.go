// Package memory indexes consolidated facts (email-digest lines and facts
// synced from peer agents) into a local vector store searchable through
// Store.Search (spec.md C10 memory
// consolidation, SPEC_FULL.md supplemented feature). Adapted from the
// teacher's pkg/memory/vectorstore.go, trimmed to a single collection and
// backed by a local embedding function rather than a provider API call —
// the kernel never calls an LLM API directly (spec.md §1 scope), so the
// teacher's OpenAI/Anthropic embedding wiring has no home here.
package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/philippgille/chromem-go"
)

// embeddingDims is small on purpose: this is a bag-of-hashed-tokens
// embedding, not a learned one, so extra dimensions wouldn't add fidelity.
const embeddingDims = 256

// HashEmbeddingFunc returns a chromem.EmbeddingFunc that hashes whitespace
// tokens into a fixed-width vector and L2-normalizes it. It has no
// network dependency, which matters because embedding consolidation runs
// as a background scheduled task, not a user-initiated LLM call.
func HashEmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec := make([]float32, embeddingDims)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			idx := h.Sum32() % embeddingDims
			vec[idx]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			return vec, nil
		}
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
		return vec, nil
	}
}
