package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is the interface for the Gemini embedding API
type Gemini interface {
	// EmbedTexts returns one embedding per text, in input order
	EmbedTexts(ctx context.Context, texts []string) (*genai.EmbedContentResponse, error)
}

type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	taskType       string
	dimensions     int32
}

type GeminiOption func(*GeminiClient)

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

// WithDimensions sets the output dimensionality of embeddings. Zero keeps the model default.
func WithDimensions(dimensions int32) GeminiOption {
	return func(g *GeminiClient) {
		g.dimensions = dimensions
	}
}

// WithTaskType sets the embedding task type hint, e.g. "SEMANTIC_SIMILARITY". Empty keeps the
// model default.
func WithTaskType(taskType string) GeminiOption {
	return func(g *GeminiClient) {
		g.taskType = taskType
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:         client,
		embeddingModel: "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) EmbedTexts(ctx context.Context, texts []string) (*genai.EmbedContentResponse, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, g.embedConfig())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content",
			goerr.V("model", g.embeddingModel),
			goerr.V("count", len(texts)))
	}

	return resp, nil
}

// embedConfig is shared by every request so documents and questions get the same treatment
func (g *GeminiClient) embedConfig() *genai.EmbedContentConfig {
	config := &genai.EmbedContentConfig{
		TaskType: g.taskType,
	}
	if g.dimensions > 0 {
		dimensions := g.dimensions
		config.OutputDimensionality = &dimensions
	}
	return config
}
