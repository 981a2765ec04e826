package ml

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const geminiEmbeddingModel = "gemini-embedding-001"

// GeminiProvider computes text embeddings using the Gemini API.
// Image embeddings are not available through this provider.
type GeminiProvider struct {
	client *genai.Client
	dim    int
}

// NewGeminiProvider creates a Gemini backed embedding provider.
func NewGeminiProvider(ctx context.Context, apiKey string, dim int) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		dim:    dim,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return geminiEmbeddingModel
}

func (p *GeminiProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Models.EmbedContent(ctx, geminiEmbeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(p.dim)),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned from Gemini")
	}
	return resp.Embeddings[0].Values, nil
}

func (p *GeminiProvider) EmbedImage(ctx context.Context, imageData []byte) ([]float32, error) {
	return nil, fmt.Errorf("image embeddings are not supported by the Gemini provider")
}

// Verify interface compliance
var _ Provider = (*GeminiProvider)(nil)
