package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LegacyPhoto is one photo row read from a PhotoPrism MariaDB database,
// joined with its primary file and place metadata.
type LegacyPhoto struct {
	UID         string
	Type        string // "image", "video", "raw", ...
	TakenAt     *time.Time
	FileName    string
	FileHash    string // SHA-1 of the original file
	Width       int
	Height      int
	City        string
	State       string
	Country     string
	CameraMake  string
	CameraModel string
	Favorite    bool
}

// CountPhotos returns the number of importable photos (not deleted, with a
// primary file).
func (p *Pool) CountPhotos(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM photos ph
		JOIN files f ON f.photo_id = ph.id AND f.file_primary = 1
		WHERE ph.deleted_at IS NULL
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// FetchPhotos reads a page of photos ordered by id. Pass the id returned as
// nextAfter to continue; a zero nextAfter means the listing is exhausted.
func (p *Pool) FetchPhotos(ctx context.Context, afterID int64, limit int) ([]LegacyPhoto, int64, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT ph.id, ph.photo_uid, ph.photo_type, ph.taken_at, ph.photo_favorite,
		       f.file_name, f.file_hash, f.file_width, f.file_height,
		       COALESCE(pl.place_city, ''), COALESCE(pl.place_state, ''), COALESCE(pl.place_country, ''),
		       COALESCE(c.camera_make, ''), COALESCE(c.camera_model, '')
		FROM photos ph
		JOIN files f ON f.photo_id = ph.id AND f.file_primary = 1
		LEFT JOIN places pl ON pl.id = ph.place_id
		LEFT JOIN cameras c ON c.id = ph.camera_id
		WHERE ph.deleted_at IS NULL AND ph.id > ?
		ORDER BY ph.id
		LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var photos []LegacyPhoto
	var lastID int64
	for rows.Next() {
		var ph LegacyPhoto
		var id int64
		var takenAt sql.NullTime
		if err := rows.Scan(
			&id, &ph.UID, &ph.Type, &takenAt, &ph.Favorite,
			&ph.FileName, &ph.FileHash, &ph.Width, &ph.Height,
			&ph.City, &ph.State, &ph.Country,
			&ph.CameraMake, &ph.CameraModel,
		); err != nil {
			return nil, 0, fmt.Errorf("scan photo: %w", err)
		}
		if takenAt.Valid {
			t := takenAt.Time
			ph.TakenAt = &t
		}
		photos = append(photos, ph)
		lastID = id
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate photos: %w", err)
	}

	if len(photos) < limit {
		lastID = 0 // exhausted
	}
	return photos, lastID, nil
}
