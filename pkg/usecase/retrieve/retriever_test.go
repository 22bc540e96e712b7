package retrieve_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/evrag/pkg/embedding"
	"github.com/m-mizutani/evrag/pkg/index"
	"github.com/m-mizutani/evrag/pkg/knowledge"
	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/evrag/pkg/usecase/retrieve"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// mockProvider maps known texts to fixed vectors
type mockProvider struct {
	vectors    map[string][]float32
	encodeFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls      int
}

func (m *mockProvider) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.encodeFunc != nil {
		return m.encodeFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := m.vectors[text]
		if !ok {
			return nil, goerr.New("unknown text", goerr.V("text", text))
		}
		out[i] = vec
	}
	return out, nil
}

func buildKB(t *testing.T, rows ...[3]string) model.KnowledgeBase {
	t.Helper()
	records := make([]*model.VehicleRecord, len(rows))
	for i, row := range rows {
		records[i] = &model.VehicleRecord{
			Columns: []string{"Make", "Model", "Electric Range"},
			Values: map[string]string{
				"Make":           row[0],
				"Model":          row[1],
				"Electric Range": row[2],
			},
		}
	}
	kb, err := knowledge.Build(records)
	gt.NoError(t, err)
	return kb
}

const (
	teslaText  = "The Tesla Model 3 has an electric range of 250 miles"
	nissanText = "The Nissan Leaf has an electric range of 84 miles"
	kiaText    = "The Kia Niro has an electric range of 239 miles"
	bmwText    = "The BMW i3 has an electric range of 153 miles"
	question   = "What is the range of a Tesla Model 3?"
)

func newProvider() *mockProvider {
	return &mockProvider{
		vectors: map[string][]float32{
			teslaText:  {1, 0},
			nissanText: {0, 5},
			kiaText:    {3, 0},
			bmwText:    {0, 2},
			question:   {1, 1},
		},
	}
}

func TestRetrieveSingleEntry(t *testing.T) {
	ctx := context.Background()
	kb := buildKB(t, [3]string{"Tesla", "Model 3", "250"})

	r, err := retrieve.New(ctx, newProvider(), kb)
	gt.NoError(t, err)

	entries, err := r.Retrieve(ctx, question, retrieve.DefaultTopK)
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)
	gt.Equal(t, entries[0].Text, teslaText)
}

func TestRetrieveNearestFirst(t *testing.T) {
	ctx := context.Background()
	kb := buildKB(t,
		[3]string{"Tesla", "Model 3", "250"},
		[3]string{"Nissan", "Leaf", "84"},
		[3]string{"Kia", "Niro", "239"},
		[3]string{"BMW", "i3", "153"},
	)

	r, err := retrieve.New(ctx, newProvider(), kb)
	gt.NoError(t, err)

	results, err := r.Search(ctx, question, 3)
	gt.NoError(t, err)
	gt.A(t, results).Length(3)

	// distances from {1,1}: tesla 1, bmw 2, kia 5, nissan 17
	gt.Equal(t, results[0].Entry.Text, teslaText)
	gt.Equal(t, results[0].Distance, float32(1))
	gt.Equal(t, results[1].Entry.Text, bmwText)
	gt.Equal(t, results[1].Distance, float32(2))
	gt.Equal(t, results[2].Entry.Text, kiaText)
	gt.Equal(t, results[2].Distance, float32(5))

	// entries are the knowledge base entries themselves
	gt.Equal(t, results[0].Entry, kb[0])
}

func TestRetrieveIdempotent(t *testing.T) {
	ctx := context.Background()
	kb := buildKB(t,
		[3]string{"Tesla", "Model 3", "250"},
		[3]string{"Nissan", "Leaf", "84"},
		[3]string{"Kia", "Niro", "239"},
	)

	r, err := retrieve.New(ctx, newProvider(), kb)
	gt.NoError(t, err)

	first, err := r.Retrieve(ctx, question, 2)
	gt.NoError(t, err)
	second, err := r.Retrieve(ctx, question, 2)
	gt.NoError(t, err)
	gt.Equal(t, first, second)
}

func TestRetrieveEmbedsKnowledgeBaseOnce(t *testing.T) {
	ctx := context.Background()
	provider := newProvider()
	kb := buildKB(t, [3]string{"Tesla", "Model 3", "250"}, [3]string{"Kia", "Niro", "239"})

	r, err := retrieve.New(ctx, provider, kb)
	gt.NoError(t, err)
	gt.Equal(t, provider.calls, 1)

	for i := 0; i < 3; i++ {
		_, err := r.Retrieve(ctx, question, 1)
		gt.NoError(t, err)
	}
	gt.Equal(t, provider.calls, 4)
}

func TestNewEmptyKnowledgeBase(t *testing.T) {
	_, err := retrieve.New(context.Background(), newProvider(), nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, index.ErrEmptyIndex))
}

func TestNewDimensionMismatch(t *testing.T) {
	provider := &mockProvider{
		encodeFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 2}, {1, 2, 3}}, nil
		},
	}
	kb := buildKB(t, [3]string{"Tesla", "Model 3", "250"}, [3]string{"Kia", "Niro", "239"})

	_, err := retrieve.New(context.Background(), provider, kb)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, index.ErrDimensionMismatch))
}

func TestNewVectorCountMismatch(t *testing.T) {
	provider := &mockProvider{
		encodeFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 2}}, nil
		},
	}
	kb := buildKB(t, [3]string{"Tesla", "Model 3", "250"}, [3]string{"Kia", "Niro", "239"})

	_, err := retrieve.New(context.Background(), provider, kb)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, embedding.ErrInvalidResponse))
}

func TestRetrieveQuestionEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	kb := buildKB(t, [3]string{"Tesla", "Model 3", "250"})

	r, err := retrieve.New(ctx, newProvider(), kb)
	gt.NoError(t, err)

	_, err = r.Retrieve(ctx, "unknown question", 3)
	gt.Error(t, err)
}

func TestRetrieveWithHashProvider(t *testing.T) {
	ctx := context.Background()
	kb := buildKB(t,
		[3]string{"Tesla", "Model 3", "250"},
		[3]string{"Nissan", "Leaf", "84"},
		[3]string{"Chevrolet", "Bolt EV", "259"},
		[3]string{"Kia", "Niro", "239"},
	)

	provider, err := embedding.NewHash(4096)
	gt.NoError(t, err)

	r, err := retrieve.New(ctx, provider, kb)
	gt.NoError(t, err)

	results, err := r.Search(ctx, question, 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(4)
	gt.Equal(t, results[0].Entry.Text, teslaText)

	for i := 1; i < len(results); i++ {
		if results[i-1].Distance > results[i].Distance {
			t.Errorf("results not sorted at %d", i)
		}
	}
}
