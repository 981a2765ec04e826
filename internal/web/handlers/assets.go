package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/web/middleware"
)

// AssetsHandler handles asset endpoints
type AssetsHandler struct {
	assets database.AssetWriter
	albums database.AlbumReader
	embs   database.EmbeddingWriter
}

// NewAssetsHandler creates a new assets handler
func NewAssetsHandler(assets database.AssetWriter, albums database.AlbumReader, embs database.EmbeddingWriter) *AssetsHandler {
	return &AssetsHandler{
		assets: assets,
		albums: albums,
		embs:   embs,
	}
}

// loadOwned fetches an asset and verifies the requester owns it. Writes an
// error response and returns nil when the asset is missing or foreign.
func (h *AssetsHandler) loadOwned(w http.ResponseWriter, r *http.Request) *database.Asset {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing asset ID")
		return nil
	}

	asset, err := h.assets.Get(r.Context(), id)
	if err != nil {
		log.Printf("asset lookup failed for %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to load asset")
		return nil
	}
	if asset == nil || asset.OwnerID != middleware.UserIDFromContext(r.Context()) {
		respondError(w, http.StatusNotFound, "asset not found")
		return nil
	}
	return asset
}

// Get returns a single asset with the albums it appears in.
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	asset := h.loadOwned(w, r)
	if asset == nil {
		return
	}

	albums, err := h.albums.GetByAssetID(r.Context(), asset.OwnerID, asset.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load albums")
		return
	}

	type assetDetail struct {
		AssetResponse
		Albums []AlbumResponse `json:"albums"`
	}
	respondJSON(w, http.StatusOK, assetDetail{
		AssetResponse: toAssetResponse(*asset),
		Albums:        toAlbumResponses(albums),
	})
}

// List returns a page of the user's assets filtered by query parameters.
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := database.AssetFilter{
		OwnerID:         middleware.UserIDFromContext(r.Context()),
		Type:            r.URL.Query().Get("type"),
		IncludeArchived: r.URL.Query().Get("archived") == "true",
		Page:            queryInt(r, "page"),
		Size:            queryInt(r, "size"),
	}
	if r.URL.Query().Get("favorite") == "true" {
		fav := true
		filter.IsFavorite = &fav
	}

	assets, hasMore, err := h.assets.Search(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}

	resp := map[string]any{
		"assets":   toAssetResponses(assets),
		"has_more": hasMore,
	}
	respondJSON(w, http.StatusOK, resp)
}

type flagRequest struct {
	Value bool `json:"value"`
}

// Favorite toggles the favorite flag on an asset.
func (h *AssetsHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	asset := h.loadOwned(w, r)
	if asset == nil {
		return
	}

	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := h.assets.SetFavorite(r.Context(), asset.ID, req.Value); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update asset")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"is_favorite": req.Value})
}

// Archive toggles the archived flag on an asset.
func (h *AssetsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	asset := h.loadOwned(w, r)
	if asset == nil {
		return
	}

	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := h.assets.SetArchived(r.Context(), asset.ID, req.Value); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update asset")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"is_archived": req.Value})
}

// Delete removes an asset along with its embedding.
func (h *AssetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	asset := h.loadOwned(w, r)
	if asset == nil {
		return
	}

	if err := h.embs.Delete(r.Context(), asset.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete embedding")
		return
	}
	if err := h.assets.Delete(r.Context(), asset.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete asset")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
