package memory

import (
	"context"
	"math"
	"testing"
)

func vecNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashEmbeddingFuncIsNormalized(t *testing.T) {
	fn := HashEmbeddingFunc()
	vec, err := fn(context.Background(), "the quick brown fox jumps over the lazy dog")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != embeddingDims {
		t.Fatalf("expected %d dims, got %d", embeddingDims, len(vec))
	}
	if n := vecNorm(vec); math.Abs(n-1) > 1e-6 {
		t.Errorf("expected unit norm, got %f", n)
	}
}

func TestHashEmbeddingFuncEmptyTextIsZeroVector(t *testing.T) {
	fn := HashEmbeddingFunc()
	vec, err := fn(context.Background(), "")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if n := vecNorm(vec); n != 0 {
		t.Errorf("expected zero vector for empty text, got norm %f", n)
	}
}

func TestHashEmbeddingFuncIsDeterministic(t *testing.T) {
	fn := HashEmbeddingFunc()
	v1, err := fn(context.Background(), "remember to water the plants")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	v2, err := fn(context.Background(), "remember to water the plants")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected deterministic embedding, differed at index %d: %f vs %f", i, v1[i], v2[i])
		}
	}
}

func TestHashEmbeddingFuncIsCaseInsensitive(t *testing.T) {
	fn := HashEmbeddingFunc()
	v1, err := fn(context.Background(), "Hello World")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	v2, err := fn(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected case-insensitive embedding, differed at index %d", i)
		}
	}
}
