package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/web/middleware"
)

const statsCacheTTL = 10 * time.Minute

// StatsResponse represents library statistics for one user
type StatsResponse struct {
	Assets          int `json:"assets"`
	Albums          int `json:"albums"`
	Embeddings      int `json:"embeddings"`
	DuplicateGroups int `json:"duplicate_groups"`
}

// statsCache holds cached per-user stats with expiry
type statsCache struct {
	mu      sync.RWMutex
	entries map[string]statsCacheEntry
}

type statsCacheEntry struct {
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get(userID string) (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[userID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *statsCache) set(userID string, data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]statsCacheEntry)
	}
	c.entries[userID] = statsCacheEntry{data: data, expiresAt: time.Now().Add(statsCacheTTL)}
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	assets database.AssetReader
	albums database.AlbumReader
	embs   database.EmbeddingReader
	dups   database.DuplicateReader
	cache  statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(assets database.AssetReader, albums database.AlbumReader, embs database.EmbeddingReader, dups database.DuplicateReader) *StatsHandler {
	return &StatsHandler{
		assets: assets,
		albums: albums,
		embs:   embs,
		dups:   dups,
	}
}

// Get returns library statistics for the logged-in user.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	if cached, ok := h.cache.get(userID); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	assetCount, err := h.assets.Count(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count assets")
		return
	}

	albums, err := h.albums.ListForUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count albums")
		return
	}

	embCount, err := h.embs.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count embeddings")
		return
	}

	groups, err := h.dups.Groups(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count duplicate groups")
		return
	}

	stats := &StatsResponse{
		Assets:          assetCount,
		Albums:          len(albums),
		Embeddings:      embCount,
		DuplicateGroups: len(groups),
	}
	h.cache.set(userID, stats)
	respondJSON(w, http.StatusOK, stats)
}
