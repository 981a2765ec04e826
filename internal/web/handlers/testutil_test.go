package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/web/middleware"
)

// memStore is an in-memory implementation of the repository interfaces for
// handler tests.
type memStore struct {
	users      map[string]database.User
	assets     map[string]database.Asset
	albums     map[string]database.Album
	albumLinks map[string]map[string]bool // album ID -> asset IDs
	embeddings map[string]database.StoredEmbedding
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]database.User),
		assets:     make(map[string]database.Asset),
		albums:     make(map[string]database.Album),
		albumLinks: make(map[string]map[string]bool),
		embeddings: make(map[string]database.StoredEmbedding),
	}
}

// UserStore

func (s *memStore) Get(ctx context.Context, id string) (*database.User, error) {
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*database.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// assetStore implements database.AssetWriter over memStore.
type assetStore struct{ *memStore }

func (s assetStore) Get(ctx context.Context, id string) (*database.Asset, error) {
	if a, ok := s.assets[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (s assetStore) GetBatch(ctx context.Context, ids []string) ([]database.Asset, error) {
	var out []database.Asset
	for _, id := range ids {
		if a, ok := s.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s assetStore) Search(ctx context.Context, filter database.AssetFilter) ([]database.Asset, bool, error) {
	var out []database.Asset
	for _, a := range s.assets {
		if filter.OwnerID != "" && a.OwnerID != filter.OwnerID {
			continue
		}
		if !filter.IncludeArchived && a.IsArchived {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.IsFavorite != nil && a.IsFavorite != *filter.IsFavorite {
			continue
		}
		if filter.AlbumID != "" && !s.albumLinks[filter.AlbumID][a.ID] {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, false, nil
}

func (s assetStore) Count(ctx context.Context, ownerID string) (int, error) {
	n := 0
	for _, a := range s.assets {
		if a.OwnerID == ownerID && !a.IsArchived {
			n++
		}
	}
	return n, nil
}

func (s assetStore) Suggestions(ctx context.Context, ownerID string, t database.SuggestionType, limit int) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.assets {
		if a.OwnerID != ownerID {
			continue
		}
		var v string
		switch t {
		case database.SuggestionCountry:
			v = a.Country
		case database.SuggestionCity:
			v = a.City
		case database.SuggestionCameraMake:
			v = a.CameraMake
		}
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s assetStore) Create(ctx context.Context, asset *database.Asset) error {
	s.assets[asset.ID] = *asset
	return nil
}

func (s assetStore) CreateBatch(ctx context.Context, assets []database.Asset) (int, error) {
	for _, a := range assets {
		s.assets[a.ID] = a
	}
	return len(assets), nil
}

func (s assetStore) SetFavorite(ctx context.Context, id string, favorite bool) error {
	a := s.assets[id]
	a.IsFavorite = favorite
	s.assets[id] = a
	return nil
}

func (s assetStore) SetArchived(ctx context.Context, id string, archived bool) error {
	a := s.assets[id]
	a.IsArchived = archived
	s.assets[id] = a
	return nil
}

func (s assetStore) Delete(ctx context.Context, id string) error {
	delete(s.assets, id)
	return nil
}

// albumStore implements database.AlbumWriter over memStore.
type albumStore struct{ *memStore }

func (s albumStore) Get(ctx context.Context, id string) (*database.Album, error) {
	if a, ok := s.albums[id]; ok {
		a.AssetCount = len(s.albumLinks[id])
		return &a, nil
	}
	return nil, nil
}

func (s albumStore) ListForUser(ctx context.Context, userID string) ([]database.Album, error) {
	var out []database.Album
	for id, a := range s.albums {
		if a.OwnerID == userID || contains(a.SharedUserIDs, userID) {
			a.AssetCount = len(s.albumLinks[id])
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s albumStore) GetByAssetID(ctx context.Context, userID, assetID string) ([]database.Album, error) {
	var out []database.Album
	for id, a := range s.albums {
		if !s.albumLinks[id][assetID] {
			continue
		}
		if a.OwnerID == userID || contains(a.SharedUserIDs, userID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s albumStore) Metadata(ctx context.Context, albumIDs []string) ([]database.AlbumMetadata, error) {
	var out []database.AlbumMetadata
	for _, id := range albumIDs {
		out = append(out, database.AlbumMetadata{AlbumID: id, AssetCount: len(s.albumLinks[id])})
	}
	return out, nil
}

func (s albumStore) HasAccess(ctx context.Context, albumID, userID string) (bool, error) {
	a, ok := s.albums[albumID]
	if !ok {
		return false, nil
	}
	return a.OwnerID == userID || contains(a.SharedUserIDs, userID), nil
}

func (s albumStore) Create(ctx context.Context, album *database.Album) error {
	album.CreatedAt = time.Now()
	album.UpdatedAt = album.CreatedAt
	s.albums[album.ID] = *album
	return nil
}

func (s albumStore) Update(ctx context.Context, id, name, description string) error {
	a := s.albums[id]
	a.Name = name
	a.Description = description
	s.albums[id] = a
	return nil
}

func (s albumStore) Delete(ctx context.Context, id string) error {
	delete(s.albums, id)
	delete(s.albumLinks, id)
	return nil
}

func (s albumStore) AddAssets(ctx context.Context, albumID string, assetIDs []string, ownerID string) (int, error) {
	links := s.albumLinks[albumID]
	if links == nil {
		links = make(map[string]bool)
		s.albumLinks[albumID] = links
	}
	added := 0
	for _, id := range assetIDs {
		asset, exists := s.assets[id]
		if !exists || asset.OwnerID != ownerID {
			continue
		}
		if !links[id] {
			links[id] = true
			added++
		}
	}
	return added, nil
}

func (s albumStore) RemoveAssets(ctx context.Context, albumID string, assetIDs []string, ownerID string) (int, error) {
	links := s.albumLinks[albumID]
	removed := 0
	for _, id := range assetIDs {
		if ownerID != "" && s.assets[id].OwnerID != ownerID {
			continue
		}
		if links[id] {
			delete(links, id)
			removed++
		}
	}
	return removed, nil
}

func (s albumStore) ClearAssets(ctx context.Context, albumID string) (int, error) {
	removed := len(s.albumLinks[albumID])
	delete(s.albumLinks, albumID)
	return removed, nil
}

func (s albumStore) Share(ctx context.Context, albumID, userID string) error {
	a := s.albums[albumID]
	if !contains(a.SharedUserIDs, userID) {
		a.SharedUserIDs = append(a.SharedUserIDs, userID)
	}
	s.albums[albumID] = a
	return nil
}

func (s albumStore) Unshare(ctx context.Context, albumID, userID string) error {
	a := s.albums[albumID]
	var kept []string
	for _, id := range a.SharedUserIDs {
		if id != userID {
			kept = append(kept, id)
		}
	}
	a.SharedUserIDs = kept
	s.albums[albumID] = a
	return nil
}

// embStore implements database.EmbeddingWriter over memStore.
type embStore struct{ *memStore }

func (s embStore) Get(ctx context.Context, assetID string) (*database.StoredEmbedding, error) {
	if e, ok := s.embeddings[assetID]; ok {
		return &e, nil
	}
	return nil, nil
}

func (s embStore) Has(ctx context.Context, assetID string) (bool, error) {
	_, ok := s.embeddings[assetID]
	return ok, nil
}

func (s embStore) Count(ctx context.Context) (int, error) {
	return len(s.embeddings), nil
}

func (s embStore) FindSimilar(ctx context.Context, ownerID string, embedding []float32, limit int) ([]database.StoredEmbedding, error) {
	out, _, err := s.FindSimilarWithDistance(ctx, ownerID, embedding, limit, 2)
	return out, err
}

func (s embStore) FindSimilarWithDistance(ctx context.Context, ownerID string, embedding []float32, limit int, maxDistance float64) ([]database.StoredEmbedding, []float64, error) {
	var out []database.StoredEmbedding
	for _, e := range s.embeddings {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, make([]float64, len(out)), nil
}

func (s embStore) Save(ctx context.Context, emb *database.StoredEmbedding) error {
	s.embeddings[emb.AssetID] = *emb
	return nil
}

func (s embStore) SaveBatch(ctx context.Context, embeddings []database.StoredEmbedding) error {
	for _, e := range embeddings {
		s.embeddings[e.AssetID] = e
	}
	return nil
}

func (s embStore) Delete(ctx context.Context, assetID string) error {
	delete(s.embeddings, assetID)
	return nil
}

func (s embStore) MissingAssetIDs(ctx context.Context, limit int) ([]string, error) {
	var out []string
	for id, a := range s.assets {
		if a.Type != database.AssetTypeImage || a.IsArchived {
			continue
		}
		if _, ok := s.embeddings[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// dupStore implements database.DuplicateWriter over memStore.
type dupStore struct{ *memStore }

func (s dupStore) Groups(ctx context.Context, ownerID string) ([]database.DuplicateGroup, error) {
	byGroup := make(map[string][]database.Asset)
	for _, a := range s.assets {
		if a.OwnerID == ownerID && a.DuplicateID != "" && !a.IsArchived {
			byGroup[a.DuplicateID] = append(byGroup[a.DuplicateID], a)
		}
	}
	var out []database.DuplicateGroup
	for id, assets := range byGroup {
		if len(assets) < 2 {
			continue
		}
		sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
		out = append(out, database.DuplicateGroup{DuplicateID: id, Assets: assets})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DuplicateID < out[j].DuplicateID })
	return out, nil
}

func (s dupStore) UncheckedAssetIDs(ctx context.Context, limit int) ([]string, error) {
	var out []string
	for id, a := range s.assets {
		if a.DedupeCheckedAt == nil && !a.IsArchived {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s dupStore) AssignGroup(ctx context.Context, duplicateID string, assetIDs []string) error {
	now := time.Now()
	for _, id := range assetIDs {
		a := s.assets[id]
		a.DuplicateID = duplicateID
		a.DedupeCheckedAt = &now
		s.assets[id] = a
	}
	return nil
}

func (s dupStore) ClearGroup(ctx context.Context, duplicateID string) error {
	for id, a := range s.assets {
		if a.DuplicateID == duplicateID {
			a.DuplicateID = ""
			s.assets[id] = a
		}
	}
	return nil
}

func (s dupStore) MarkChecked(ctx context.Context, assetID string) error {
	now := time.Now()
	a := s.assets[assetID]
	a.DedupeCheckedAt = &now
	s.assets[assetID] = a
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// withUser adds an authenticated session to an existing request
func withUser(r *http.Request, userID string) *http.Request {
	session := &middleware.Session{ID: "test-session", UserID: userID}
	return r.WithContext(middleware.SetSessionInContext(r.Context(), session))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
