package search

import (
	"context"
	"errors"
	"testing"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database"
)

type fakeAssets struct {
	byID       map[string]database.Asset
	searched   []database.Asset
	hasMore    bool
	lastFilter database.AssetFilter
}

func (f *fakeAssets) Get(ctx context.Context, id string) (*database.Asset, error) {
	if a, ok := f.byID[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (f *fakeAssets) GetBatch(ctx context.Context, ids []string) ([]database.Asset, error) {
	var out []database.Asset
	for _, id := range ids {
		if a, ok := f.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssets) Search(ctx context.Context, filter database.AssetFilter) ([]database.Asset, bool, error) {
	f.lastFilter = filter
	return f.searched, f.hasMore, nil
}

func (f *fakeAssets) Count(ctx context.Context, ownerID string) (int, error) {
	return len(f.byID), nil
}

func (f *fakeAssets) Suggestions(ctx context.Context, ownerID string, t database.SuggestionType, limit int) ([]string, error) {
	return []string{"Czech Republic", "Germany"}, nil
}

type fakeEmbeddings struct {
	neighbors []database.StoredEmbedding
	distances []float64
	lastLimit int
}

func (f *fakeEmbeddings) Get(ctx context.Context, assetID string) (*database.StoredEmbedding, error) {
	return nil, nil
}

func (f *fakeEmbeddings) Has(ctx context.Context, assetID string) (bool, error) {
	return false, nil
}

func (f *fakeEmbeddings) Count(ctx context.Context) (int, error) {
	return len(f.neighbors), nil
}

func (f *fakeEmbeddings) FindSimilar(ctx context.Context, ownerID string, embedding []float32, limit int) ([]database.StoredEmbedding, error) {
	return f.neighbors, nil
}

func (f *fakeEmbeddings) FindSimilarWithDistance(ctx context.Context, ownerID string, embedding []float32, limit int, maxDistance float64) ([]database.StoredEmbedding, []float64, error) {
	f.lastLimit = limit
	if limit < len(f.neighbors) {
		return f.neighbors[:limit], f.distances[:limit], nil
	}
	return f.neighbors, f.distances, nil
}

type fakeProvider struct {
	embedErr error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeProvider) EmbedImage(ctx context.Context, imageData []byte) ([]float32, error) {
	return []float32{0, 1, 0}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Features: config.FeaturesConfig{SmartSearch: true, DuplicateDetection: true},
		Search: config.SearchConfig{
			DefaultPageSize:  100,
			MaxPageSize:      1000,
			SmartMaxDistance: 0.6,
			SuggestionLimit:  50,
		},
	}
}

func TestMetadata_NextPage(t *testing.T) {
	assets := &fakeAssets{
		searched: []database.Asset{{ID: "a1"}, {ID: "a2"}},
		hasMore:  true,
	}
	svc := NewService(assets, &fakeEmbeddings{}, &fakeProvider{}, testConfig())

	result, err := svc.Metadata(context.Background(), database.AssetFilter{OwnerID: "u1", Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if len(result.Assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(result.Assets))
	}
	if result.NextPage == nil || *result.NextPage != 2 {
		t.Errorf("expected next page 2, got %v", result.NextPage)
	}
}

func TestMetadata_LastPage(t *testing.T) {
	assets := &fakeAssets{searched: []database.Asset{{ID: "a1"}}, hasMore: false}
	svc := NewService(assets, &fakeEmbeddings{}, &fakeProvider{}, testConfig())

	result, err := svc.Metadata(context.Background(), database.AssetFilter{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if result.NextPage != nil {
		t.Errorf("expected no next page, got %d", *result.NextPage)
	}
}

func TestMetadata_ClampsPagination(t *testing.T) {
	assets := &fakeAssets{}
	svc := NewService(assets, &fakeEmbeddings{}, &fakeProvider{}, testConfig())

	_, err := svc.Metadata(context.Background(), database.AssetFilter{OwnerID: "u1", Page: -3, Size: 50000})
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if assets.lastFilter.Page != 1 {
		t.Errorf("expected page clamped to 1, got %d", assets.lastFilter.Page)
	}
	if assets.lastFilter.Size != 1000 {
		t.Errorf("expected size clamped to 1000, got %d", assets.lastFilter.Size)
	}
}

func TestMetadata_NormalizesQuery(t *testing.T) {
	assets := &fakeAssets{}
	svc := NewService(assets, &fakeEmbeddings{}, &fakeProvider{}, testConfig())

	_, err := svc.Metadata(context.Background(), database.AssetFilter{OwnerID: "u1", Query: "  Jiří   HRAD  "})
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if assets.lastFilter.Query != "jiri hrad" {
		t.Errorf("expected normalized query, got %q", assets.lastFilter.Query)
	}
}

func TestSmart_EmptyQuery(t *testing.T) {
	svc := NewService(&fakeAssets{}, &fakeEmbeddings{}, &fakeProvider{}, testConfig())

	_, err := svc.Smart(context.Background(), "u1", "   ", 1, 10)
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSmart_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features.SmartSearch = false
	svc := NewService(&fakeAssets{}, &fakeEmbeddings{}, &fakeProvider{}, cfg)

	_, err := svc.Smart(context.Background(), "u1", "sunset", 1, 10)
	if !errors.Is(err, ErrSmartSearchDisabled) {
		t.Fatalf("expected ErrSmartSearchDisabled, got %v", err)
	}
}

func TestSmart_Pagination(t *testing.T) {
	assets := &fakeAssets{byID: map[string]database.Asset{
		"a1": {ID: "a1"}, "a2": {ID: "a2"}, "a3": {ID: "a3"},
	}}
	embs := &fakeEmbeddings{
		neighbors: []database.StoredEmbedding{
			{AssetID: "a1"}, {AssetID: "a2"}, {AssetID: "a3"},
		},
		distances: []float64{0.1, 0.2, 0.3},
	}
	svc := NewService(assets, embs, &fakeProvider{}, testConfig())

	// Page 1 of size 2 should return the two closest and point to page 2.
	result, err := svc.Smart(context.Background(), "u1", "sunset", 1, 2)
	if err != nil {
		t.Fatalf("Smart failed: %v", err)
	}
	if len(result.Assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(result.Assets))
	}
	if result.Assets[0].ID != "a1" || result.Assets[1].ID != "a2" {
		t.Errorf("unexpected order: %s, %s", result.Assets[0].ID, result.Assets[1].ID)
	}
	if result.NextPage == nil || *result.NextPage != 2 {
		t.Errorf("expected next page 2, got %v", result.NextPage)
	}
	if embs.lastLimit != 3 {
		t.Errorf("expected over-fetch limit 3, got %d", embs.lastLimit)
	}

	// Page 2 holds the remainder with no further page.
	result, err = svc.Smart(context.Background(), "u1", "sunset", 2, 2)
	if err != nil {
		t.Fatalf("Smart failed: %v", err)
	}
	if len(result.Assets) != 1 || result.Assets[0].ID != "a3" {
		t.Fatalf("expected a3 on page 2, got %v", result.Assets)
	}
	if result.NextPage != nil {
		t.Errorf("expected no next page, got %d", *result.NextPage)
	}
}

func TestSmart_PageBeyondResults(t *testing.T) {
	embs := &fakeEmbeddings{
		neighbors: []database.StoredEmbedding{{AssetID: "a1"}},
		distances: []float64{0.1},
	}
	svc := NewService(&fakeAssets{}, embs, &fakeProvider{}, testConfig())

	result, err := svc.Smart(context.Background(), "u1", "sunset", 5, 10)
	if err != nil {
		t.Fatalf("Smart failed: %v", err)
	}
	if len(result.Assets) != 0 {
		t.Errorf("expected empty page, got %d assets", len(result.Assets))
	}
	if result.NextPage != nil {
		t.Errorf("expected no next page")
	}
}

func TestSmart_EmbedError(t *testing.T) {
	provider := &fakeProvider{embedErr: errors.New("service down")}
	svc := NewService(&fakeAssets{}, &fakeEmbeddings{}, provider, testConfig())

	_, err := svc.Smart(context.Background(), "u1", "sunset", 1, 10)
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestSuggestions_InvalidType(t *testing.T) {
	svc := NewService(&fakeAssets{}, &fakeEmbeddings{}, &fakeProvider{}, testConfig())

	_, err := svc.Suggestions(context.Background(), "u1", "lens")
	if err == nil {
		t.Fatal("expected error for unknown suggestion type")
	}

	values, err := svc.Suggestions(context.Background(), "u1", database.SuggestionCountry)
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if len(values) != 2 {
		t.Errorf("expected 2 suggestions, got %d", len(values))
	}
}

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří", "Jiri"},
		{"Šárka", "Sarka"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RemoveDiacritics(tt.input); got != tt.expected {
			t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
