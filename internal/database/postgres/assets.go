package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mhrabal/photovault/internal/database"
)

// AssetRepository provides PostgreSQL-backed asset storage
type AssetRepository struct {
	pool *Pool
}

// NewAssetRepository creates a new PostgreSQL asset repository
func NewAssetRepository(pool *Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

const assetColumns = `
	id, owner_id, original_file_name, file_path, checksum, type, taken_at,
	city, state, country, camera_make, camera_model, width, height,
	is_favorite, is_archived, COALESCE(duplicate_id::text, ''), phash,
	dedupe_checked_at, created_at, updated_at
`

func scanAsset(row interface{ Scan(...any) error }) (*database.Asset, error) {
	var a database.Asset
	var takenAt, checkedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.OwnerID, &a.OriginalFileName, &a.FilePath, &a.Checksum, &a.Type, &takenAt,
		&a.City, &a.State, &a.Country, &a.CameraMake, &a.CameraModel, &a.Width, &a.Height,
		&a.IsFavorite, &a.IsArchived, &a.DuplicateID, &a.PHash,
		&checkedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if takenAt.Valid {
		t := takenAt.Time
		a.TakenAt = &t
	}
	if checkedAt.Valid {
		t := checkedAt.Time
		a.DedupeCheckedAt = &t
	}
	return &a, nil
}

func scanAssets(rows *sql.Rows) ([]database.Asset, error) {
	var assets []database.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

// Get retrieves an asset by ID, returns nil if not found
func (r *AssetRepository) Get(ctx context.Context, id string) (*database.Asset, error) {
	query := "SELECT " + assetColumns + " FROM assets WHERE id = $1"

	a, err := scanAsset(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query asset: %w", err)
	}
	return a, nil
}

// GetBatch retrieves multiple assets by ID
func (r *AssetRepository) GetBatch(ctx context.Context, ids []string) ([]database.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + assetColumns + " FROM assets WHERE id::text = ANY($1) ORDER BY array_position($1, id::text)"
	rows, err := r.pool.Query(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// buildSearchConditions translates a filter into WHERE clauses and arguments.
// An empty OwnerID means no owner scoping: album listings span every owner
// whose assets are in the album.
func buildSearchConditions(filter database.AssetFilter) ([]string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.OwnerID != "" {
		add("a.owner_id = $%d", filter.OwnerID)
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "a.is_archived = FALSE")
	}
	if filter.Query != "" {
		add("a.original_file_name ILIKE '%%' || $%d || '%%'", filter.Query)
	}
	if filter.TakenAfter != nil {
		add("a.taken_at >= $%d", *filter.TakenAfter)
	}
	if filter.TakenBefore != nil {
		add("a.taken_at <= $%d", *filter.TakenBefore)
	}
	if filter.City != "" {
		add("a.city = $%d", filter.City)
	}
	if filter.State != "" {
		add("a.state = $%d", filter.State)
	}
	if filter.Country != "" {
		add("a.country = $%d", filter.Country)
	}
	if filter.CameraMake != "" {
		add("a.camera_make = $%d", filter.CameraMake)
	}
	if filter.CameraModel != "" {
		add("a.camera_model = $%d", filter.CameraModel)
	}
	if filter.Type != "" {
		add("a.type = $%d", filter.Type)
	}
	if filter.IsFavorite != nil {
		add("a.is_favorite = $%d", *filter.IsFavorite)
	}
	if filter.AlbumID != "" {
		add("EXISTS (SELECT 1 FROM album_assets aa WHERE aa.asset_id = a.id AND aa.album_id = $%d)", filter.AlbumID)
	}

	if len(conditions) == 0 {
		conditions = append(conditions, "TRUE")
	}
	return conditions, args
}

// Search lists assets matching the filter, newest first. It fetches one row
// beyond the page size so callers learn whether another page exists.
func (r *AssetRepository) Search(ctx context.Context, filter database.AssetFilter) ([]database.Asset, bool, error) {
	size := filter.Size
	if size <= 0 {
		size = database.DefaultSearchLimit
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * size

	conditions, args := buildSearchConditions(filter)
	args = append(args, size+1, offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM assets a
		WHERE %s
		ORDER BY a.taken_at DESC NULLS LAST, a.id
		LIMIT $%d OFFSET $%d
	`, assetColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("search assets: %w", err)
	}
	defer rows.Close()

	assets, err := scanAssets(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(assets) > size
	if hasMore {
		assets = assets[:size]
	}
	return assets, hasMore, nil
}

// Count returns the number of non-archived assets for an owner
func (r *AssetRepository) Count(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM assets WHERE owner_id = $1 AND is_archived = FALSE", ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return count, nil
}

// suggestionColumns maps suggestion types to asset columns. Keeping the map
// closed prevents column injection from user input.
var suggestionColumns = map[database.SuggestionType]string{
	database.SuggestionCountry:     "country",
	database.SuggestionState:       "state",
	database.SuggestionCity:        "city",
	database.SuggestionCameraMake:  "camera_make",
	database.SuggestionCameraModel: "camera_model",
}

// Suggestions returns distinct non-empty values of one metadata column
func (r *AssetRepository) Suggestions(ctx context.Context, ownerID string, t database.SuggestionType, limit int) ([]string, error) {
	column, ok := suggestionColumns[t]
	if !ok {
		return nil, fmt.Errorf("unknown suggestion type %q", t)
	}
	if limit <= 0 {
		limit = database.DefaultSearchLimit
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM assets
		WHERE owner_id = $1 AND %s <> '' AND is_archived = FALSE
		ORDER BY %s
		LIMIT $2
	`, column, column, column)

	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return values, nil
}

const insertAssetQuery = `
	INSERT INTO assets (
		id, owner_id, original_file_name, file_path, checksum, type, taken_at,
		city, state, country, camera_make, camera_model, width, height,
		is_favorite, is_archived, phash
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (owner_id, checksum) DO NOTHING
`

func assetInsertArgs(a *database.Asset) []any {
	var takenAt any
	if a.TakenAt != nil {
		takenAt = *a.TakenAt
	}
	return []any{
		a.ID, a.OwnerID, a.OriginalFileName, a.FilePath, a.Checksum, a.Type, takenAt,
		a.City, a.State, a.Country, a.CameraMake, a.CameraModel, a.Width, a.Height,
		a.IsFavorite, a.IsArchived, a.PHash,
	}
}

// Create inserts a new asset
func (r *AssetRepository) Create(ctx context.Context, asset *database.Asset) error {
	result, err := r.pool.Exec(ctx, insertAssetQuery, assetInsertArgs(asset)...)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("asset with checksum %s already exists for owner", asset.Checksum)
	}
	return nil
}

// CreateBatch inserts multiple assets in one transaction, skipping checksum
// conflicts. Returns the number of rows inserted.
func (r *AssetRepository) CreateBatch(ctx context.Context, assets []database.Asset) (int, error) {
	if len(assets) == 0 {
		return 0, nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertAssetQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range assets {
		result, err := stmt.ExecContext(ctx, assetInsertArgs(&assets[i])...)
		if err != nil {
			return 0, fmt.Errorf("insert asset %s: %w", assets[i].OriginalFileName, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("getting rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return inserted, nil
}

// SetFavorite toggles the favorite flag
func (r *AssetRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE assets SET is_favorite = $2, updated_at = NOW() WHERE id = $1", id, favorite)
	if err != nil {
		return fmt.Errorf("update favorite: %w", err)
	}
	return nil
}

// SetArchived toggles the archived flag
func (r *AssetRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE assets SET is_archived = $2, updated_at = NOW() WHERE id = $1", id, archived)
	if err != nil {
		return fmt.Errorf("update archived: %w", err)
	}
	return nil
}

// Delete removes an asset and its relations
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM assets WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ database.AssetReader = (*AssetRepository)(nil)
var _ database.AssetWriter = (*AssetRepository)(nil)
