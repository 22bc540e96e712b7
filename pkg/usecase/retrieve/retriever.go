package retrieve

import (
	"context"
	"time"

	"github.com/m-mizutani/evrag/pkg/embedding"
	"github.com/m-mizutani/evrag/pkg/index"
	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const DefaultTopK = 3

// Retriever answers questions with the knowledge entries nearest to the question embedding.
// The knowledge base and its index are built once by New and only read afterwards.
type Retriever struct {
	provider embedding.Provider
	kb       model.KnowledgeBase
	index    *index.FlatL2
}

// Result is a retrieved entry with its squared L2 distance from the question
type Result struct {
	Entry    *model.KnowledgeEntry
	Distance float32
}

// New embeds every entry of kb and builds the similarity index
func New(ctx context.Context, provider embedding.Provider, kb model.KnowledgeBase) (*Retriever, error) {
	if len(kb) == 0 {
		return nil, goerr.Wrap(index.ErrEmptyIndex, "knowledge base is empty")
	}

	started := time.Now()
	vectors, err := provider.Encode(ctx, kb.Texts())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed knowledge base", goerr.V("entries", len(kb)))
	}
	if len(vectors) != len(kb) {
		return nil, goerr.Wrap(embedding.ErrInvalidResponse, "embedding count does not match knowledge base",
			goerr.V("entries", len(kb)),
			goerr.V("vectors", len(vectors)))
	}

	idx, err := index.Build(vectors)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build similarity index")
	}

	logging.From(ctx).Debug("similarity index built",
		"entries", idx.Len(),
		"dimension", idx.Dimension(),
		"elapsed", time.Since(started))

	return &Retriever{
		provider: provider,
		kb:       kb,
		index:    idx,
	}, nil
}

// Entries returns the knowledge base in index order
func (r *Retriever) Entries() model.KnowledgeBase {
	return r.kb
}

// Search returns the min(k, size of knowledge base) entries nearest to question, nearest first
func (r *Retriever) Search(ctx context.Context, question string, k int) ([]*Result, error) {
	vectors, err := r.provider.Encode(ctx, []string{question})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed question")
	}
	if len(vectors) != 1 {
		return nil, goerr.Wrap(embedding.ErrInvalidResponse, "expected one question embedding",
			goerr.V("vectors", len(vectors)))
	}

	hits, err := r.index.Search(vectors[0], k)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search index")
	}

	results := make([]*Result, len(hits))
	for i, hit := range hits {
		results[i] = &Result{
			Entry:    r.kb[hit.Position],
			Distance: hit.Distance,
		}
	}

	logging.From(ctx).Debug("retrieved entries", "question", question, "k", k, "hits", len(results))

	return results, nil
}

// Retrieve returns the entries of Search without distances
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]*model.KnowledgeEntry, error) {
	results, err := r.Search(ctx, question, k)
	if err != nil {
		return nil, err
	}

	entries := make([]*model.KnowledgeEntry, len(results))
	for i, result := range results {
		entries[i] = result.Entry
	}
	return entries, nil
}
