package embedding

import (
	"context"

	"github.com/m-mizutani/evrag/pkg/adapter"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize         = 100
	DefaultRequestsPerSecond = 5.0
)

// Gemini encodes texts with the Gemini embedding API. Requests are split into batches and
// paced by a token bucket.
type Gemini struct {
	client    adapter.Gemini
	batchSize int
	limiter   *rate.Limiter
}

type GeminiOption func(*Gemini)

func WithBatchSize(size int) GeminiOption {
	return func(g *Gemini) {
		if size > 0 {
			g.batchSize = size
		}
	}
}

// WithRequestsPerSecond sets the sustained request rate. Zero or negative disables pacing.
func WithRequestsPerSecond(rps float64) GeminiOption {
	return func(g *Gemini) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func NewGemini(client adapter.Gemini, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		client:    client,
		batchSize: DefaultBatchSize,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BatchSize is the maximum number of texts sent in one request
func (g *Gemini) BatchSize() int {
	return g.batchSize
}

func (g *Gemini) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		batch := texts[start:end]

		if err := g.limiter.Wait(ctx); err != nil {
			return nil, goerr.Wrap(err, "interrupted while waiting for embedding quota")
		}

		logging.From(ctx).Debug("embedding batch", "offset", start, "size", len(batch))

		resp, err := g.client.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed texts", goerr.V("offset", start))
		}
		if resp == nil || len(resp.Embeddings) != len(batch) {
			got := 0
			if resp != nil {
				got = len(resp.Embeddings)
			}
			return nil, goerr.Wrap(ErrInvalidResponse, "embedding count does not match input",
				goerr.V("expected", len(batch)),
				goerr.V("actual", got))
		}

		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, goerr.Wrap(ErrInvalidResponse, "empty embedding", goerr.V("position", start+i))
			}
			vectors = append(vectors, emb.Values)
		}
	}

	return vectors, nil
}
