package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
)

const DefaultHashDimensions = 384

// Hash is a local bag-of-words embedder using signed feature hashing. It needs no model or
// network, which makes it useful offline and in tests.
type Hash struct {
	dimensions int
}

func NewHash(dimensions int) (*Hash, error) {
	if dimensions < 1 {
		return nil, goerr.New("hash dimensions must be positive", goerr.V("dimensions", dimensions))
	}
	return &Hash{dimensions: dimensions}, nil
}

func (h *Hash) Dimensions() int {
	return h.dimensions
}

func (h *Hash) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.encode(text)
	}
	return vectors, nil
}

func (h *Hash) encode(text string) []float32 {
	vec := make([]float32, h.dimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, token := range tokens {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(token))
		sum := hasher.Sum64()

		bucket := int(sum % uint64(h.dimensions))
		if sum>>63 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	return vec
}
