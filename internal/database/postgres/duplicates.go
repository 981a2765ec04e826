package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/mhrabal/photovault/internal/database"
)

// DuplicateRepository manages duplicate group assignment on assets
type DuplicateRepository struct {
	pool *Pool
}

// NewDuplicateRepository creates a new PostgreSQL duplicate repository
func NewDuplicateRepository(pool *Pool) *DuplicateRepository {
	return &DuplicateRepository{pool: pool}
}

// Groups returns all duplicate groups for an owner, each with its member
// assets ordered oldest first.
func (r *DuplicateRepository) Groups(ctx context.Context, ownerID string) ([]database.DuplicateGroup, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE owner_id = $1 AND duplicate_id IS NOT NULL AND is_archived = FALSE
		ORDER BY duplicate_id, created_at
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query duplicate assets: %w", err)
	}
	defer rows.Close()

	assets, err := scanAssets(rows)
	if err != nil {
		return nil, err
	}

	var groups []database.DuplicateGroup
	for _, a := range assets {
		if len(groups) == 0 || groups[len(groups)-1].DuplicateID != a.DuplicateID {
			groups = append(groups, database.DuplicateGroup{DuplicateID: a.DuplicateID})
		}
		g := &groups[len(groups)-1]
		g.Assets = append(g.Assets, a)
	}

	// A group with a single visible member is not a duplicate anymore
	// (its siblings may have been archived or deleted).
	filtered := groups[:0]
	for _, g := range groups {
		if len(g.Assets) > 1 {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

// UncheckedAssetIDs returns visible assets not yet examined by duplicate detection
func (r *DuplicateRepository) UncheckedAssetIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = database.DefaultSearchLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id FROM assets
		WHERE dedupe_checked_at IS NULL AND is_archived = FALSE
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unchecked assets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan asset ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset IDs: %w", err)
	}
	return ids, nil
}

// AssignGroup sets the duplicate id on all given assets and marks them checked
func (r *DuplicateRepository) AssignGroup(ctx context.Context, duplicateID string, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE assets
		SET duplicate_id = $1, dedupe_checked_at = NOW(), updated_at = NOW()
		WHERE id::text = ANY($2)
	`, duplicateID, pq.Array(assetIDs))
	if err != nil {
		return fmt.Errorf("assign duplicate group: %w", err)
	}
	return nil
}

// ClearGroup removes the duplicate id from all assets in a group
func (r *DuplicateRepository) ClearGroup(ctx context.Context, duplicateID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE assets
		SET duplicate_id = NULL, updated_at = NOW()
		WHERE duplicate_id = $1
	`, duplicateID)
	if err != nil {
		return fmt.Errorf("clear duplicate group: %w", err)
	}
	return nil
}

// MarkChecked records that duplicate detection ran for an asset
func (r *DuplicateRepository) MarkChecked(ctx context.Context, assetID string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE assets SET dedupe_checked_at = NOW() WHERE id = $1", assetID)
	if err != nil {
		return fmt.Errorf("mark asset checked: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ database.DuplicateReader = (*DuplicateRepository)(nil)
var _ database.DuplicateWriter = (*DuplicateRepository)(nil)
