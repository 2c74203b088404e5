package embedder

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func BenchmarkComputeHash(b *testing.B) {
	texts := []string{
		"short",
		"medium length text for hashing",
		strings.Repeat("a longer passage of prose that resembles a typical chunk of a chapter ", 40),
	}

	for _, text := range texts {
		b.Run(fmt.Sprintf("len=%d", len(text)), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = ComputeHash(text)
			}
		})
	}
}

func BenchmarkLocalProvider(b *testing.B) {
	p := NewLocalProvider(LocalDimension)
	text := strings.Repeat("it was the best of times it was the worst of times ", 50)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
	}
}

func BenchmarkClientCached(b *testing.B) {
	c := NewClient(NewLocalProvider(LocalDimension), ClientConfig{})
	texts := []string{"alpha", "beta", "gamma", "delta"}
	ctx := context.Background()
	_, _ = c.EmbedBatch(ctx, texts)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.EmbedBatch(ctx, texts)
	}
}
