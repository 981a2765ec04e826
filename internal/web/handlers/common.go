package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mhrabal/photovault/internal/database"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// queryInt parses an integer query parameter, returning 0 when absent or invalid.
func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// AssetResponse is the JSON shape of an asset.
type AssetResponse struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	OriginalFileName string     `json:"original_file_name"`
	Checksum         string     `json:"checksum"`
	Type             string     `json:"type"`
	TakenAt          *time.Time `json:"taken_at,omitempty"`
	City             string     `json:"city,omitempty"`
	State            string     `json:"state,omitempty"`
	Country          string     `json:"country,omitempty"`
	CameraMake       string     `json:"camera_make,omitempty"`
	CameraModel      string     `json:"camera_model,omitempty"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	IsFavorite       bool       `json:"is_favorite"`
	IsArchived       bool       `json:"is_archived"`
	DuplicateID      string     `json:"duplicate_id,omitempty"`
}

func toAssetResponse(a database.Asset) AssetResponse {
	return AssetResponse{
		ID:               a.ID,
		OwnerID:          a.OwnerID,
		OriginalFileName: a.OriginalFileName,
		Checksum:         a.Checksum,
		Type:             a.Type,
		TakenAt:          a.TakenAt,
		City:             a.City,
		State:            a.State,
		Country:          a.Country,
		CameraMake:       a.CameraMake,
		CameraModel:      a.CameraModel,
		Width:            a.Width,
		Height:           a.Height,
		IsFavorite:       a.IsFavorite,
		IsArchived:       a.IsArchived,
		DuplicateID:      a.DuplicateID,
	}
}

func toAssetResponses(assets []database.Asset) []AssetResponse {
	out := make([]AssetResponse, len(assets))
	for i, a := range assets {
		out[i] = toAssetResponse(a)
	}
	return out
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
