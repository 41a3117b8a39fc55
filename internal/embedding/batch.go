package embedding

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultBatchSize is used when BatchGetEmbeddings receives a non-positive size.
const DefaultBatchSize = 100

// BatchGetEmbeddings embeds texts in chunks of batchSize. A failed chunk is
// retried one text at a time, and a text that still fails becomes a zero vector
// of p.Dimensions(). The result always has len(texts) entries.
func BatchGetEmbeddings(ctx context.Context, p Provider, texts []string, batchSize int) [][]float32 {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		chunk := texts[start:end]

		vectors, err := embedExactly(ctx, p, chunk)
		if err == nil {
			out = append(out, vectors...)
			continue
		}

		slog.Warn("embedding batch failed, falling back to per-item processing",
			slog.String("provider", p.Name()),
			slog.Int("batch_start", start),
			slog.Int("batch_size", len(chunk)),
			slog.Any("error", err))

		for i, text := range chunk {
			vectors, err := embedExactly(ctx, p, []string{text})
			if err != nil {
				slog.Warn("embedding item failed, using zero vector",
					slog.String("provider", p.Name()),
					slog.Int("index", start+i),
					slog.Any("error", err))
				out = append(out, make([]float32, p.Dimensions()))
				continue
			}
			out = append(out, vectors[0])
		}
	}

	return out
}

// embedExactly calls p and treats a reply with the wrong vector count as a failure.
func embedExactly(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	vectors, err := p.GetEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("provider %s returned %d vectors for %d texts", p.Name(), len(vectors), len(texts))
	}
	return vectors, nil
}
