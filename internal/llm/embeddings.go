package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/smart-directory/referral-service/pkg/metrics"
)

// Embedder turns text into a fixed-length vector. Partner embeddings are
// produced by the same model during onboarding, so query and partner vectors
// share one space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder computes embeddings through the OpenAI embeddings API.
// Anthropic exposes no embedding endpoint, so embeddings are OpenAI-only
// regardless of the completion provider.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates a new embedding client.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}, nil
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		metrics.RecordLLM("openai", "embed", "error")
		return nil, err
	}
	if len(resp.Data) == 0 {
		metrics.RecordLLM("openai", "embed", "error")
		return nil, errors.New("embedding response contained no data")
	}
	metrics.RecordLLM("openai", "embed", "success")

	return resp.Data[0].Embedding, nil
}
