package ml

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider computes text embeddings using the OpenAI API.
// Image embeddings are not available through this provider.
type OpenAIProvider struct {
	client openai.Client
	dim    int
}

// NewOpenAIProvider creates an OpenAI backed embedding provider.
func NewOpenAIProvider(token string, dim int) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(token))
	return &OpenAIProvider{
		client: client,
		dim:    dim,
	}
}

func (p *OpenAIProvider) Name() string {
	return string(openai.EmbeddingModelTextEmbedding3Small)
}

func (p *OpenAIProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model:      openai.EmbeddingModelTextEmbedding3Small,
		Dimensions: openai.Int(int64(p.dim)),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned from OpenAI")
	}

	embedding := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

func (p *OpenAIProvider) EmbedImage(ctx context.Context, imageData []byte) ([]float32, error) {
	return nil, fmt.Errorf("image embeddings are not supported by the OpenAI provider")
}

// Verify interface compliance
var _ Provider = (*OpenAIProvider)(nil)
