package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/search"
	"github.com/mhrabal/photovault/internal/web/middleware"
)

// SearchHandler handles search endpoints
type SearchHandler struct {
	svc *search.Service
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(svc *search.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// MetadataSearchRequest represents a metadata search request
type MetadataSearchRequest struct {
	Query           string     `json:"query,omitempty"`
	TakenAfter      *time.Time `json:"taken_after,omitempty"`
	TakenBefore     *time.Time `json:"taken_before,omitempty"`
	City            string     `json:"city,omitempty"`
	State           string     `json:"state,omitempty"`
	Country         string     `json:"country,omitempty"`
	CameraMake      string     `json:"camera_make,omitempty"`
	CameraModel     string     `json:"camera_model,omitempty"`
	Type            string     `json:"type,omitempty"`
	IsFavorite      *bool      `json:"is_favorite,omitempty"`
	IncludeArchived bool       `json:"include_archived,omitempty"`
	AlbumID         string     `json:"album_id,omitempty"`
	Page            int        `json:"page,omitempty"`
	Size            int        `json:"size,omitempty"`
}

// SmartSearchRequest represents a smart search request
type SmartSearchRequest struct {
	Query string `json:"query"`
	Page  int    `json:"page,omitempty"`
	Size  int    `json:"size,omitempty"`
}

// SearchResponse is one page of search results
type SearchResponse struct {
	Assets   []AssetResponse `json:"assets"`
	Page     int             `json:"page"`
	NextPage *int            `json:"next_page,omitempty"`
}

func toSearchResponse(result *search.Result) SearchResponse {
	return SearchResponse{
		Assets:   toAssetResponses(result.Assets),
		Page:     result.Page,
		NextPage: result.NextPage,
	}
}

// Metadata searches assets by metadata fields.
func (h *SearchHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	filter := database.AssetFilter{
		OwnerID:         middleware.UserIDFromContext(r.Context()),
		Query:           req.Query,
		TakenAfter:      req.TakenAfter,
		TakenBefore:     req.TakenBefore,
		City:            req.City,
		State:           req.State,
		Country:         req.Country,
		CameraMake:      req.CameraMake,
		CameraModel:     req.CameraModel,
		Type:            req.Type,
		IsFavorite:      req.IsFavorite,
		IncludeArchived: req.IncludeArchived,
		AlbumID:         req.AlbumID,
		Page:            req.Page,
		Size:            req.Size,
	}

	result, err := h.svc.Metadata(r.Context(), filter)
	if err != nil {
		log.Printf("metadata search failed: %v", err)
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	respondJSON(w, http.StatusOK, toSearchResponse(result))
}

// Smart searches assets by semantic similarity to a text query.
func (h *SearchHandler) Smart(w http.ResponseWriter, r *http.Request) {
	var req SmartSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	result, err := h.svc.Smart(r.Context(), userID, req.Query, req.Page, req.Size)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			respondError(w, http.StatusBadRequest, "search query is required")
		case errors.Is(err, search.ErrSmartSearchDisabled):
			respondError(w, http.StatusBadRequest, "smart search is disabled")
		default:
			log.Printf("smart search failed: %v", err)
			respondError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, toSearchResponse(result))
}

// Suggestions lists distinct metadata values for autocomplete.
// The type query parameter selects the column (country, state, city,
// camera-make, camera-model).
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	t := database.SuggestionType(r.URL.Query().Get("type"))
	if !database.ValidSuggestionType(t) {
		respondError(w, http.StatusBadRequest, "unknown suggestion type")
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	values, err := h.svc.Suggestions(r.Context(), userID, t)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load suggestions")
		return
	}
	if values == nil {
		values = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"type":        string(t),
		"suggestions": values,
	})
}
