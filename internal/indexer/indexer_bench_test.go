package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/dshills/whycontext-mcp/internal/embedder"
	"github.com/dshills/whycontext-mcp/internal/vectorindex"
)

func benchGenerator(b *testing.B) *embedder.Generator {
	b.Helper()
	backend, err := embedder.NewLocalProviderWithDimension(testDim, nil)
	if err != nil {
		b.Fatalf("NewLocalProviderWithDimension() error = %v", err)
	}
	cfg := embedder.DefaultConfig()
	cfg.Dimension = testDim
	cfg.Logger = quietLogger()
	return embedder.NewGeneratorWithBackend(cfg, backend)
}

func BenchmarkIndexHistory(b *testing.B) {
	if !vectorindex.VectorIndexAvailable {
		b.Skip("vector index backend compiled out")
	}
	ctx := context.Background()

	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			gen := benchGenerator(b)
			h := makeHistory(500)
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				x, err := vectorindex.New(vectorindex.Config{Logger: quietLogger()})
				if err != nil {
					b.Fatal(err)
				}
				idx := New(gen, x, &Config{Workers: workers, BatchSize: 32, Logger: quietLogger()})
				b.StartTimer()

				if _, err := idx.IndexHistory(ctx, h); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkIndexHistory_AlreadyIndexed(b *testing.B) {
	if !vectorindex.VectorIndexAvailable {
		b.Skip("vector index backend compiled out")
	}
	ctx := context.Background()
	gen := benchGenerator(b)
	x, err := vectorindex.New(vectorindex.Config{Logger: quietLogger()})
	if err != nil {
		b.Fatal(err)
	}
	idx := New(gen, x, &Config{Workers: 4, BatchSize: 32, Logger: quietLogger()})
	h := makeHistory(500)
	if _, err := idx.IndexHistory(ctx, h); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.IndexHistory(ctx, h); err != nil {
			b.Fatal(err)
		}
	}
}
