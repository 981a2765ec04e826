package database

import (
	"context"
)

// AssetReader provides read-only access to assets
type AssetReader interface {
	// Get retrieves an asset by ID, returns nil if not found
	Get(ctx context.Context, id string) (*Asset, error)
	// GetBatch retrieves multiple assets by ID, preserving input order for found assets
	GetBatch(ctx context.Context, ids []string) ([]Asset, error)
	// Search lists assets matching the filter. hasMore reports whether another
	// page exists (the repository fetches size+1 rows internally).
	Search(ctx context.Context, filter AssetFilter) (assets []Asset, hasMore bool, err error)
	// Count returns the number of non-archived assets for an owner
	Count(ctx context.Context, ownerID string) (int, error)
	// Suggestions returns distinct non-empty values of one metadata column
	// for the owner's assets, ordered alphabetically
	Suggestions(ctx context.Context, ownerID string, t SuggestionType, limit int) ([]string, error)
}

// AssetWriter provides write access to assets
type AssetWriter interface {
	AssetReader

	// Create inserts a new asset
	Create(ctx context.Context, asset *Asset) error
	// CreateBatch inserts multiple assets in one transaction, skipping
	// checksum conflicts. Returns the number of rows inserted.
	CreateBatch(ctx context.Context, assets []Asset) (int, error)
	// SetFavorite toggles the favorite flag
	SetFavorite(ctx context.Context, id string, favorite bool) error
	// SetArchived toggles the archived flag
	SetArchived(ctx context.Context, id string, archived bool) error
	// Delete removes an asset and its relations
	Delete(ctx context.Context, id string) error
}

// AlbumReader provides read-only access to albums
type AlbumReader interface {
	// Get retrieves an album with asset count and shared user IDs, nil if not found
	Get(ctx context.Context, id string) (*Album, error)
	// ListForUser returns albums the user owns or that are shared with them
	ListForUser(ctx context.Context, userID string) ([]Album, error)
	// GetByAssetID returns albums containing the asset that the user can access
	GetByAssetID(ctx context.Context, userID, assetID string) ([]Album, error)
	// Metadata returns per-album asset counts and taken-at date ranges
	Metadata(ctx context.Context, albumIDs []string) ([]AlbumMetadata, error)
	// HasAccess reports whether the user owns the album or it is shared with them
	HasAccess(ctx context.Context, albumID, userID string) (bool, error)
}

// AlbumWriter provides write access to albums
type AlbumWriter interface {
	AlbumReader

	// Create inserts a new album
	Create(ctx context.Context, album *Album) error
	// Update changes name and description
	Update(ctx context.Context, id, name, description string) error
	// Delete removes an album and its relations
	Delete(ctx context.Context, id string) error
	// AddAssets links assets owned by ownerID to an album, ignoring
	// already-present rows and assets belonging to anyone else. Returns the
	// number of assets actually added.
	AddAssets(ctx context.Context, albumID string, assetIDs []string, ownerID string) (int, error)
	// RemoveAssets unlinks assets from an album. A non-empty ownerID limits
	// removal to that owner's assets; empty removes regardless of owner.
	// Returns the number removed.
	RemoveAssets(ctx context.Context, albumID string, assetIDs []string, ownerID string) (int, error)
	// ClearAssets unlinks every asset from an album. Returns the number removed.
	ClearAssets(ctx context.Context, albumID string) (int, error)
	// Share grants a user access to the album
	Share(ctx context.Context, albumID, userID string) error
	// Unshare revokes a user's access
	Unshare(ctx context.Context, albumID, userID string) error
}

// EmbeddingReader provides read-only access to image embeddings
type EmbeddingReader interface {
	// Get retrieves an embedding by asset ID, returns nil if not found
	Get(ctx context.Context, assetID string) (*StoredEmbedding, error)
	// Has checks if an embedding exists for the given asset ID
	Has(ctx context.Context, assetID string) (bool, error)
	// Count returns the total number of embeddings stored
	Count(ctx context.Context) (int, error)
	// FindSimilar finds the owner's most similar embeddings using cosine distance
	FindSimilar(ctx context.Context, ownerID string, embedding []float32, limit int) ([]StoredEmbedding, error)
	// FindSimilarWithDistance finds similar embeddings within maxDistance and returns distances
	FindSimilarWithDistance(ctx context.Context, ownerID string, embedding []float32, limit int, maxDistance float64) ([]StoredEmbedding, []float64, error)
}

// EmbeddingWriter provides write access to image embeddings
type EmbeddingWriter interface {
	EmbeddingReader

	// Save stores an embedding (upsert)
	Save(ctx context.Context, emb *StoredEmbedding) error
	// SaveBatch saves multiple embeddings in a single transaction
	SaveBatch(ctx context.Context, embeddings []StoredEmbedding) error
	// Delete removes the embedding for an asset
	Delete(ctx context.Context, assetID string) error
	// MissingAssetIDs returns IDs of visible image assets without an embedding
	MissingAssetIDs(ctx context.Context, limit int) ([]string, error)
}

// DuplicateReader provides read-only access to duplicate groups
type DuplicateReader interface {
	// Groups returns all duplicate groups for an owner, each with its member assets
	Groups(ctx context.Context, ownerID string) ([]DuplicateGroup, error)
	// UncheckedAssetIDs returns visible assets not yet examined by duplicate detection
	UncheckedAssetIDs(ctx context.Context, limit int) ([]string, error)
}

// DuplicateWriter provides write access to duplicate groups
type DuplicateWriter interface {
	DuplicateReader

	// AssignGroup sets the duplicate id on all given assets and marks them checked
	AssignGroup(ctx context.Context, duplicateID string, assetIDs []string) error
	// ClearGroup removes the duplicate id from all assets in a group
	ClearGroup(ctx context.Context, duplicateID string) error
	// MarkChecked records that duplicate detection ran for an asset
	MarkChecked(ctx context.Context, assetID string) error
}

// HNSWRebuilder is implemented by repositories carrying an in-memory HNSW
// index that can be rebuilt from database state and persisted to disk.
type HNSWRebuilder interface {
	RebuildHNSW(ctx context.Context) error
	SaveHNSWIndex() error
	HNSWCount() int
}
