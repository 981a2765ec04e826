package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/ml"
)

// ErrSmartSearchDisabled is returned when a smart search is requested but
// the feature flag is off.
var ErrSmartSearchDisabled = errors.New("smart search is disabled")

// ErrEmptyQuery is returned when a smart search is requested without a query.
var ErrEmptyQuery = errors.New("search query is required")

// Result is one page of search results. NextPage is nil on the last page.
type Result struct {
	Assets   []database.Asset
	Page     int
	NextPage *int
}

// Service runs metadata and smart searches over a user's assets.
type Service struct {
	assets   database.AssetReader
	embs     database.EmbeddingReader
	provider ml.Provider
	cfg      *config.Config
}

func NewService(assets database.AssetReader, embs database.EmbeddingReader, provider ml.Provider, cfg *config.Config) *Service {
	return &Service{
		assets:   assets,
		embs:     embs,
		provider: provider,
		cfg:      cfg,
	}
}

// clampPage normalizes page and size to sane values using the configured
// defaults and maximum.
func (s *Service) clampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = s.cfg.Search.DefaultPageSize
	}
	if size > s.cfg.Search.MaxPageSize {
		size = s.cfg.Search.MaxPageSize
	}
	return page, size
}

// Metadata searches assets by their metadata fields with pagination.
func (s *Service) Metadata(ctx context.Context, filter database.AssetFilter) (*Result, error) {
	filter.Page, filter.Size = s.clampPage(filter.Page, filter.Size)
	filter.Query = NormalizeQuery(filter.Query)

	assets, hasMore, err := s.assets.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("metadata search failed: %w", err)
	}

	result := &Result{
		Assets: assets,
		Page:   filter.Page,
	}
	if hasMore {
		next := filter.Page + 1
		result.NextPage = &next
	}
	return result, nil
}

// Smart searches assets by semantic similarity to a text query. The query is
// embedded with the configured provider and matched against stored image
// embeddings within the configured distance cutoff.
func (s *Service) Smart(ctx context.Context, ownerID, query string, page, size int) (*Result, error) {
	if !s.cfg.Features.SmartSearch {
		return nil, ErrSmartSearchDisabled
	}
	query = NormalizeQuery(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	page, size = s.clampPage(page, size)

	embedding, err := s.provider.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Fetch one row past the requested page to detect whether more exist.
	limit := page*size + 1
	neighbors, _, err := s.embs.FindSimilarWithDistance(ctx, ownerID, embedding, limit, s.cfg.Search.SmartMaxDistance)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	offset := (page - 1) * size
	result := &Result{Assets: []database.Asset{}, Page: page}
	if offset >= len(neighbors) {
		return result, nil
	}

	end := offset + size
	hasMore := len(neighbors) > end
	if end > len(neighbors) {
		end = len(neighbors)
	}

	ids := make([]string, 0, end-offset)
	for _, n := range neighbors[offset:end] {
		ids = append(ids, n.AssetID)
	}

	assets, err := s.assets.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load result assets: %w", err)
	}

	result.Assets = assets
	if hasMore {
		next := page + 1
		result.NextPage = &next
	}
	return result, nil
}

// Suggestions lists distinct metadata values of one type for autocomplete.
func (s *Service) Suggestions(ctx context.Context, ownerID string, t database.SuggestionType) ([]string, error) {
	if !database.ValidSuggestionType(t) {
		return nil, fmt.Errorf("unknown suggestion type %q", t)
	}
	return s.assets.Suggestions(ctx, ownerID, t, s.cfg.Search.SuggestionLimit)
}
