package ml

import (
	"context"
	"fmt"

	"github.com/mhrabal/photovault/internal/config"
)

// Provider computes embeddings for smart search and duplicate detection.
// Text and image embeddings must live in the same vector space for text
// queries to match images (CLIP-style models).
type Provider interface {
	Name() string
	// EmbedText computes an embedding for a text query.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedImage computes an embedding for raw image bytes.
	EmbedImage(ctx context.Context, imageData []byte) ([]float32, error)
}

// NewProvider builds the configured embedding provider.
// Defaults to the CLIP embedding service when no provider is set.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.ML.Provider {
	case "", "clip":
		return NewClipClient(cfg.ML.URL, cfg.ML.Model), nil
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, fmt.Errorf("OPENAI_TOKEN is required for the openai provider")
		}
		return NewOpenAIProvider(cfg.OpenAI.Token, cfg.ML.Dim), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.ML.Dim)
	default:
		return nil, fmt.Errorf("unknown ML provider %q", cfg.ML.Provider)
	}
}
