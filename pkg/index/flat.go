// Package index provides exact nearest-neighbour search over embedding vectors.
package index

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrEmptyIndex        = goerr.New("index has no vectors")
	ErrDimensionMismatch = goerr.New("vector dimension mismatch")
)

// Hit is one search result. Position is the insertion position of the matched vector.
type Hit struct {
	Distance float32
	Position int
}

// FlatL2 compares a query against every stored vector by squared Euclidean distance.
// Vectors are stored as given, without normalization. Read-only after Build.
type FlatL2 struct {
	dimension int
	vectors   [][]float32
}

// Build copies vectors into a new index. All vectors must share one non-zero dimension.
func Build(vectors [][]float32) (*FlatL2, error) {
	if len(vectors) == 0 {
		return nil, goerr.Wrap(ErrEmptyIndex, "cannot build index")
	}

	dimension := len(vectors[0])
	if dimension == 0 {
		return nil, goerr.Wrap(ErrDimensionMismatch, "vector has zero dimension", goerr.V("position", 0))
	}

	stored := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if len(vec) != dimension {
			return nil, goerr.Wrap(ErrDimensionMismatch, "vector dimension differs from the first vector",
				goerr.V("position", i),
				goerr.V("expected", dimension),
				goerr.V("actual", len(vec)))
		}
		stored[i] = slices.Clone(vec)
	}

	return &FlatL2{
		dimension: dimension,
		vectors:   stored,
	}, nil
}

func (x *FlatL2) Dimension() int {
	return x.dimension
}

func (x *FlatL2) Len() int {
	return len(x.vectors)
}

// Search returns the min(k, Len()) nearest vectors ordered by ascending distance.
// Equal distances keep insertion order.
func (x *FlatL2) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dimension {
		return nil, goerr.Wrap(ErrDimensionMismatch, "query dimension differs from index",
			goerr.V("expected", x.dimension),
			goerr.V("actual", len(query)))
	}
	if k < 1 {
		return nil, nil
	}

	hits := make([]Hit, len(x.vectors))
	for i, vec := range x.vectors {
		hits[i] = Hit{
			Distance: squaredL2(query, vec),
			Position: i,
		}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
