package embedding

import (
	"context"
	"testing"
)

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e := NewLocalEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"golang kubernetes docker"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := e.Embed(ctx, []string{"golang kubernetes docker"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("embedding not deterministic at dim %d", i)
		}
	}
}

func TestLocalEmbedder_SimilarityOrdering(t *testing.T) {
	e := NewLocalEmbedder(128)
	vecs, err := e.Embed(context.Background(), []string{
		"golang kubernetes grpc backend",
		"golang kubernetes grpc services",
		"french pastry recipes butter",
	})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	related := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	if related <= unrelated {
		t.Fatalf("expected overlapping texts to score higher: related=%f unrelated=%f", related, unrelated)
	}
}

func cosine(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot // 向量已归一化
}
