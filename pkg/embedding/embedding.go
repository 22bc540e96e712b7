// Package embedding maps texts to fixed-width vectors.
package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidResponse = goerr.New("invalid embedding response")

// Provider encodes texts into vectors. The result has one vector per input text, in input
// order, and is deterministic for a given model.
type Provider interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}
