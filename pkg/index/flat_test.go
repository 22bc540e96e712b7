package index_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/m-mizutani/evrag/pkg/index"
	"github.com/m-mizutani/gt"
)

func TestBuild(t *testing.T) {
	idx, err := index.Build([][]float32{{0, 0}, {1, 1}, {2, 2}})
	gt.NoError(t, err)
	gt.Equal(t, idx.Dimension(), 2)
	gt.Equal(t, idx.Len(), 3)
}

func TestBuildEmpty(t *testing.T) {
	_, err := index.Build(nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, index.ErrEmptyIndex))
}

func TestBuildDimensionMismatch(t *testing.T) {
	_, err := index.Build([][]float32{{0, 0}, {1, 1, 1}})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, index.ErrDimensionMismatch))
}

func TestBuildZeroDimension(t *testing.T) {
	_, err := index.Build([][]float32{{}})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, index.ErrDimensionMismatch))
}

func TestBuildCopiesVectors(t *testing.T) {
	vectors := [][]float32{{0, 0}, {5, 5}}
	idx, err := index.Build(vectors)
	gt.NoError(t, err)

	vectors[0][0] = 100

	hits, err := idx.Search([]float32{0, 0}, 1)
	gt.NoError(t, err)
	gt.Equal(t, hits[0].Position, 0)
	gt.Equal(t, hits[0].Distance, float32(0))
}

func TestSearchOrder(t *testing.T) {
	idx, err := index.Build([][]float32{
		{10, 0},
		{1, 0},
		{3, 4},
		{0, 0},
	})
	gt.NoError(t, err)

	hits, err := idx.Search([]float32{0, 0}, 3)
	gt.NoError(t, err)
	gt.Equal(t, hits, []index.Hit{
		{Distance: 0, Position: 3},
		{Distance: 1, Position: 1},
		{Distance: 25, Position: 2},
	})
}

func TestSearchSquaredDistanceWithoutNormalization(t *testing.T) {
	// cosine similarity would rank {10, 0} first, L2 prefers the short vector
	idx, err := index.Build([][]float32{{10, 0}, {0, 1}})
	gt.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0}, 2)
	gt.NoError(t, err)
	gt.Equal(t, hits[0].Position, 1)
	gt.Equal(t, hits[0].Distance, float32(2))
	gt.Equal(t, hits[1].Distance, float32(81))
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	idx, err := index.Build([][]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}})
	gt.NoError(t, err)

	hits, err := idx.Search([]float32{0, 0}, 4)
	gt.NoError(t, err)
	for i, hit := range hits {
		gt.Equal(t, hit.Position, i)
		gt.Equal(t, hit.Distance, float32(1))
	}
}

func TestSearchFewerThanK(t *testing.T) {
	idx, err := index.Build([][]float32{{1, 2, 3}})
	gt.NoError(t, err)

	hits, err := idx.Search([]float32{0, 0, 0}, 3)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].Distance, float32(14))
}

func TestSearchNonPositiveK(t *testing.T) {
	idx, err := index.Build([][]float32{{1}})
	gt.NoError(t, err)

	hits, err := idx.Search([]float32{1}, 0)
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	idx, err := index.Build([][]float32{{1, 2}})
	gt.NoError(t, err)

	_, err = idx.Search([]float32{1}, 1)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, index.ErrDimensionMismatch))
}

func TestSearchRandomSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vectors := make([][]float32, 200)
	for i := range vectors {
		vectors[i] = make([]float32, 16)
		for j := range vectors[i] {
			vectors[i][j] = rng.Float32()*2 - 1
		}
	}
	idx, err := index.Build(vectors)
	gt.NoError(t, err)

	query := make([]float32, 16)
	for j := range query {
		query[j] = rng.Float32()*2 - 1
	}

	hits, err := idx.Search(query, 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(10)

	for i := 1; i < len(hits); i++ {
		if hits[i-1].Distance > hits[i].Distance {
			t.Errorf("hits not sorted at %d: %v > %v", i, hits[i-1].Distance, hits[i].Distance)
		}
	}

	// nothing outside the result is nearer than the last hit
	inResult := map[int]bool{}
	for _, hit := range hits {
		inResult[hit.Position] = true
	}
	last := hits[len(hits)-1].Distance
	all, err := idx.Search(query, len(vectors))
	gt.NoError(t, err)
	for _, hit := range all {
		if !inResult[hit.Position] && hit.Distance < last {
			t.Errorf("position %d at distance %v is nearer than last hit %v", hit.Position, hit.Distance, last)
		}
	}
}
