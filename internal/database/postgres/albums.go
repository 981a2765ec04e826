package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mhrabal/photovault/internal/database"
)

// AlbumRepository provides PostgreSQL-backed album storage
type AlbumRepository struct {
	pool *Pool
}

// NewAlbumRepository creates a new PostgreSQL album repository
func NewAlbumRepository(pool *Pool) *AlbumRepository {
	return &AlbumRepository{pool: pool}
}

const albumSelect = `
	SELECT al.id, al.owner_id, al.name, al.description, al.created_at, al.updated_at,
	       (SELECT COUNT(*) FROM album_assets aa WHERE aa.album_id = al.id) AS asset_count,
	       COALESCE(
	           (SELECT array_agg(au.user_id::text ORDER BY au.created_at) FROM album_users au WHERE au.album_id = al.id),
	           '{}'
	       ) AS shared_user_ids
	FROM albums al
`

func scanAlbums(rows *sql.Rows) ([]database.Album, error) {
	var albums []database.Album
	for rows.Next() {
		var a database.Album
		var shared pq.StringArray
		if err := rows.Scan(
			&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.CreatedAt, &a.UpdatedAt,
			&a.AssetCount, &shared,
		); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		a.SharedUserIDs = shared
		albums = append(albums, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}
	return albums, nil
}

// Get retrieves an album with asset count and shared user IDs, nil if not found
func (r *AlbumRepository) Get(ctx context.Context, id string) (*database.Album, error) {
	var a database.Album
	var shared pq.StringArray

	err := r.pool.QueryRow(ctx, albumSelect+" WHERE al.id = $1", id).Scan(
		&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.CreatedAt, &a.UpdatedAt,
		&a.AssetCount, &shared,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query album: %w", err)
	}

	a.SharedUserIDs = shared
	return &a, nil
}

// ListForUser returns albums the user owns or that are shared with them,
// most recently updated first.
func (r *AlbumRepository) ListForUser(ctx context.Context, userID string) ([]database.Album, error) {
	query := albumSelect + `
		WHERE al.owner_id = $1
		   OR EXISTS (SELECT 1 FROM album_users au WHERE au.album_id = al.id AND au.user_id = $1)
		ORDER BY al.updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query albums: %w", err)
	}
	defer rows.Close()

	return scanAlbums(rows)
}

// GetByAssetID returns albums containing the asset that the user can access
func (r *AlbumRepository) GetByAssetID(ctx context.Context, userID, assetID string) ([]database.Album, error) {
	query := albumSelect + `
		WHERE EXISTS (SELECT 1 FROM album_assets aa WHERE aa.album_id = al.id AND aa.asset_id = $2)
		  AND (al.owner_id = $1
		       OR EXISTS (SELECT 1 FROM album_users au WHERE au.album_id = al.id AND au.user_id = $1))
		ORDER BY al.updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, assetID)
	if err != nil {
		return nil, fmt.Errorf("query albums by asset: %w", err)
	}
	defer rows.Close()

	return scanAlbums(rows)
}

// Metadata returns per-album asset counts and taken-at date ranges
func (r *AlbumRepository) Metadata(ctx context.Context, albumIDs []string) ([]database.AlbumMetadata, error) {
	if len(albumIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT aa.album_id, COUNT(a.id), MIN(a.taken_at), MAX(a.taken_at)
		FROM album_assets aa
		JOIN assets a ON a.id = aa.asset_id
		WHERE aa.album_id::text = ANY($1)
		GROUP BY aa.album_id
	`

	rows, err := r.pool.Query(ctx, query, pq.Array(albumIDs))
	if err != nil {
		return nil, fmt.Errorf("query album metadata: %w", err)
	}
	defer rows.Close()

	var metas []database.AlbumMetadata
	for rows.Next() {
		var m database.AlbumMetadata
		var start, end sql.NullTime
		if err := rows.Scan(&m.AlbumID, &m.AssetCount, &start, &end); err != nil {
			return nil, fmt.Errorf("scan album metadata: %w", err)
		}
		if start.Valid {
			t := start.Time
			m.StartDate = &t
		}
		if end.Valid {
			t := end.Time
			m.EndDate = &t
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate album metadata: %w", err)
	}
	return metas, nil
}

// HasAccess reports whether the user owns the album or it is shared with them
func (r *AlbumRepository) HasAccess(ctx context.Context, albumID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM albums al
			WHERE al.id = $1
			  AND (al.owner_id = $2
			       OR EXISTS (SELECT 1 FROM album_users au WHERE au.album_id = al.id AND au.user_id = $2))
		)
	`, albumID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check album access: %w", err)
	}
	return ok, nil
}

// Create inserts a new album
func (r *AlbumRepository) Create(ctx context.Context, album *database.Album) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO albums (id, owner_id, name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, album.ID, album.OwnerID, album.Name, album.Description).Scan(&album.CreatedAt, &album.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert album: %w", err)
	}
	return nil
}

// Update changes name and description
func (r *AlbumRepository) Update(ctx context.Context, id, name, description string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE albums SET name = $2, description = $3, updated_at = NOW() WHERE id = $1",
		id, name, description)
	if err != nil {
		return fmt.Errorf("update album: %w", err)
	}
	return nil
}

// Delete removes an album and its relations
func (r *AlbumRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM albums WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	return nil
}

// AddAssets links assets to an album, ignoring already-present rows and
// assets the given owner does not own. Returns the number actually added.
func (r *AlbumRepository) AddAssets(ctx context.Context, albumID string, assetIDs []string, ownerID string) (int, error) {
	if len(assetIDs) == 0 {
		return 0, nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO album_assets (album_id, asset_id)
		SELECT $1, a.id FROM assets a
		WHERE a.id::text = ANY($2) AND a.owner_id::text = $3
		ON CONFLICT (album_id, asset_id) DO NOTHING
	`, albumID, pq.Array(assetIDs), ownerID)
	if err != nil {
		return 0, fmt.Errorf("insert album assets: %w", err)
	}

	added, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE albums SET updated_at = NOW() WHERE id = $1", albumID); err != nil {
		return 0, fmt.Errorf("touch album: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return int(added), nil
}

// RemoveAssets unlinks assets from an album. A non-empty ownerID limits
// removal to that owner's assets. Returns the number removed.
func (r *AlbumRepository) RemoveAssets(ctx context.Context, albumID string, assetIDs []string, ownerID string) (int, error) {
	if len(assetIDs) == 0 {
		return 0, nil
	}

	result, err := r.pool.Exec(ctx, `
		DELETE FROM album_assets
		WHERE album_id = $1 AND asset_id::text = ANY($2)
		  AND ($3 = '' OR EXISTS (
			SELECT 1 FROM assets a
			WHERE a.id = album_assets.asset_id AND a.owner_id::text = $3
		  ))
	`, albumID, pq.Array(assetIDs), ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete album assets: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return int(removed), nil
}

// ClearAssets unlinks every asset from an album. Returns the number removed.
func (r *AlbumRepository) ClearAssets(ctx context.Context, albumID string) (int, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM album_assets WHERE album_id = $1", albumID)
	if err != nil {
		return 0, fmt.Errorf("clear album assets: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return int(removed), nil
}

// Share grants a user access to the album
func (r *AlbumRepository) Share(ctx context.Context, albumID, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO album_users (album_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (album_id, user_id) DO NOTHING
	`, albumID, userID)
	if err != nil {
		return fmt.Errorf("share album: %w", err)
	}
	return nil
}

// Unshare revokes a user's access
func (r *AlbumRepository) Unshare(ctx context.Context, albumID, userID string) error {
	_, err := r.pool.Exec(ctx,
		"DELETE FROM album_users WHERE album_id = $1 AND user_id = $2", albumID, userID)
	if err != nil {
		return fmt.Errorf("unshare album: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ database.AlbumReader = (*AlbumRepository)(nil)
var _ database.AlbumWriter = (*AlbumRepository)(nil)
