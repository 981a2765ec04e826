package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/web/middleware"
)

// AlbumsHandler handles album endpoints
type AlbumsHandler struct {
	albums database.AlbumWriter
	assets database.AssetReader
}

// NewAlbumsHandler creates a new albums handler
func NewAlbumsHandler(albums database.AlbumWriter, assets database.AssetReader) *AlbumsHandler {
	return &AlbumsHandler{
		albums: albums,
		assets: assets,
	}
}

// AlbumResponse is the JSON shape of an album.
type AlbumResponse struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	AssetCount    int        `json:"asset_count"`
	SharedUserIDs []string   `json:"shared_user_ids,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toAlbumResponse(a database.Album) AlbumResponse {
	return AlbumResponse{
		ID:            a.ID,
		OwnerID:       a.OwnerID,
		Name:          a.Name,
		Description:   a.Description,
		AssetCount:    a.AssetCount,
		SharedUserIDs: a.SharedUserIDs,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toAlbumResponses(albums []database.Album) []AlbumResponse {
	out := make([]AlbumResponse, len(albums))
	for i, a := range albums {
		out[i] = toAlbumResponse(a)
	}
	return out
}

// loadAccessible fetches an album and verifies the requester can access it.
// When ownerOnly is set, shared users are rejected too. Writes an error
// response and returns nil on failure.
func (h *AlbumsHandler) loadAccessible(w http.ResponseWriter, r *http.Request, ownerOnly bool) *database.Album {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing album ID")
		return nil
	}

	album, err := h.albums.Get(r.Context(), id)
	if err != nil {
		log.Printf("album lookup failed for %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to load album")
		return nil
	}
	if album == nil {
		respondError(w, http.StatusNotFound, "album not found")
		return nil
	}

	userID := middleware.UserIDFromContext(r.Context())
	if album.OwnerID == userID {
		return album
	}
	if ownerOnly {
		respondError(w, http.StatusForbidden, "only the album owner may do this")
		return nil
	}
	for _, shared := range album.SharedUserIDs {
		if shared == userID {
			return album
		}
	}
	respondError(w, http.StatusNotFound, "album not found")
	return nil
}

// List returns albums owned by or shared with the user, enriched with
// asset counts and date ranges.
func (h *AlbumsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	albums, err := h.albums.ListForUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list albums")
		return
	}

	responses := toAlbumResponses(albums)
	if len(albums) > 0 {
		ids := make([]string, len(albums))
		for i, a := range albums {
			ids[i] = a.ID
		}
		metadata, err := h.albums.Metadata(r.Context(), ids)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load album metadata")
			return
		}
		byID := make(map[string]database.AlbumMetadata, len(metadata))
		for _, m := range metadata {
			byID[m.AlbumID] = m
		}
		for i := range responses {
			if m, ok := byID[responses[i].ID]; ok {
				responses[i].StartDate = m.StartDate
				responses[i].EndDate = m.EndDate
			}
		}
	}

	respondJSON(w, http.StatusOK, responses)
}

// Get returns a single album.
func (h *AlbumsHandler) Get(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, false)
	if album == nil {
		return
	}
	respondJSON(w, http.StatusOK, toAlbumResponse(*album))
}

type albumRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create creates a new album owned by the requester.
func (h *AlbumsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req albumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	album := &database.Album{
		ID:          uuid.NewString(),
		OwnerID:     middleware.UserIDFromContext(r.Context()),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.albums.Create(r.Context(), album); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create album")
		return
	}
	respondJSON(w, http.StatusCreated, toAlbumResponse(*album))
}

// Update changes the album name and description. Owner only.
func (h *AlbumsHandler) Update(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, true)
	if album == nil {
		return
	}

	var req albumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.albums.Update(r.Context(), album.ID, req.Name, req.Description); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update album")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// Delete removes an album. Owner only. Assets stay in the library.
func (h *AlbumsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, true)
	if album == nil {
		return
	}

	if err := h.albums.Delete(r.Context(), album.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete album")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// GetAssets returns a page of the album's assets.
func (h *AlbumsHandler) GetAssets(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, false)
	if album == nil {
		return
	}

	filter := database.AssetFilter{
		AlbumID:         album.ID,
		IncludeArchived: true,
		Page:            queryInt(r, "page"),
		Size:            queryInt(r, "size"),
	}
	assets, hasMore, err := h.assets.Search(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list album assets")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"assets":   toAssetResponses(assets),
		"has_more": hasMore,
	})
}

type assetIDsRequest struct {
	AssetIDs []string `json:"asset_ids"`
}

// AddAssets links assets to the album, skipping ones already present.
// Only assets the requester owns can be linked, so shared users cannot
// attach third-party assets to the album.
func (h *AlbumsHandler) AddAssets(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, false)
	if album == nil {
		return
	}

	var req assetIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.AssetIDs) == 0 {
		respondError(w, http.StatusBadRequest, "asset_ids is required")
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	added, err := h.albums.AddAssets(r.Context(), album.ID, req.AssetIDs, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to add assets")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"added": added})
}

// RemoveAssets unlinks assets from the album. The album owner can remove
// anything; shared users can only remove their own assets.
func (h *AlbumsHandler) RemoveAssets(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, false)
	if album == nil {
		return
	}

	var req assetIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.AssetIDs) == 0 {
		respondError(w, http.StatusBadRequest, "asset_ids is required")
		return
	}

	ownerScope := middleware.UserIDFromContext(r.Context())
	if album.OwnerID == ownerScope {
		ownerScope = ""
	}
	removed, err := h.albums.RemoveAssets(r.Context(), album.ID, req.AssetIDs, ownerScope)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to remove assets")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ClearAssets unlinks every asset from the album. Owner only.
func (h *AlbumsHandler) ClearAssets(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, true)
	if album == nil {
		return
	}

	removed, err := h.albums.ClearAssets(r.Context(), album.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear assets")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

type shareRequest struct {
	UserID string `json:"user_id"`
}

// Share grants another user access to the album. Owner only.
func (h *AlbumsHandler) Share(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, true)
	if album == nil {
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.UserID == album.OwnerID {
		respondError(w, http.StatusBadRequest, "cannot share an album with its owner")
		return
	}

	if err := h.albums.Share(r.Context(), album.ID, req.UserID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to share album")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"shared": true})
}

// Unshare revokes a user's access to the album. Owner only.
func (h *AlbumsHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	album := h.loadAccessible(w, r, true)
	if album == nil {
		return
	}

	userID := chi.URLParam(r, "userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing user ID")
		return
	}

	if err := h.albums.Unshare(r.Context(), album.ID, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to unshare album")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"unshared": true})
}
