package database

import (
	"time"
)

// AssetTypeImage and AssetTypeVideo are the supported asset media types.
const (
	AssetTypeImage = "image"
	AssetTypeVideo = "video"
)

// User represents an account that owns assets and albums.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Asset represents a single photo or video in the library.
type Asset struct {
	ID               string
	OwnerID          string
	OriginalFileName string
	FilePath         string
	Checksum         string // SHA-1 of the original file, hex encoded
	Type             string // AssetTypeImage or AssetTypeVideo
	TakenAt          *time.Time
	City             string
	State            string
	Country          string
	CameraMake       string
	CameraModel      string
	Width            int
	Height           int
	IsFavorite       bool
	IsArchived       bool
	DuplicateID      string // duplicate group id, empty when the asset is not in a group
	PHash            string // 64-bit perceptual hash as hex string, empty when not computed
	DedupeCheckedAt  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Album represents a collection of assets owned by one user and optionally
// shared with others.
type Album struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Populated on reads that join relations.
	AssetCount    int
	SharedUserIDs []string
}

// AlbumMetadata summarizes the assets of one album.
type AlbumMetadata struct {
	AlbumID    string
	AssetCount int
	StartDate  *time.Time // earliest taken_at among assets
	EndDate    *time.Time // latest taken_at among assets
}

// StoredEmbedding represents an image embedding stored in the database.
type StoredEmbedding struct {
	AssetID   string
	OwnerID   string
	Embedding []float32
	Model     string
	Dim       int
	CreatedAt time.Time
}

// DuplicateGroup is a set of assets sharing one duplicate id.
type DuplicateGroup struct {
	DuplicateID string
	Assets      []Asset
}

// AssetFilter describes a metadata search. Zero values mean "no constraint".
type AssetFilter struct {
	OwnerID         string
	Query           string // matched against original file name and description
	TakenAfter      *time.Time
	TakenBefore     *time.Time
	City            string
	State           string
	Country         string
	CameraMake      string
	CameraModel     string
	Type            string
	IsFavorite      *bool
	IncludeArchived bool
	AlbumID         string

	// Pagination, 1-based. Size 0 falls back to the repository default.
	Page int
	Size int
}

// SuggestionType selects which distinct metadata column to list.
type SuggestionType string

const (
	SuggestionCountry     SuggestionType = "country"
	SuggestionState       SuggestionType = "state"
	SuggestionCity        SuggestionType = "city"
	SuggestionCameraMake  SuggestionType = "camera-make"
	SuggestionCameraModel SuggestionType = "camera-model"
)

// ValidSuggestionType reports whether t is a known suggestion type.
func ValidSuggestionType(t SuggestionType) bool {
	switch t {
	case SuggestionCountry, SuggestionState, SuggestionCity, SuggestionCameraMake, SuggestionCameraModel:
		return true
	}
	return false
}
