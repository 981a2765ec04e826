package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/mhrabal/photovault/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository provides PostgreSQL-backed embedding storage with an
// optional in-memory HNSW index over it.
type EmbeddingRepository struct {
	pool          *Pool
	hnswIndex     *database.HNSWIndex
	hnswEnabled   bool
	hnswIndexPath string
	hnswMu        sync.RWMutex
}

// NewEmbeddingRepository creates a new PostgreSQL embedding repository
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

const embeddingColumns = "e.asset_id, a.owner_id, e.embedding, e.model, e.dim, e.created_at"

func scanEmbedding(row interface{ Scan(...any) error }) (*database.StoredEmbedding, error) {
	var emb database.StoredEmbedding
	var vec pgvector.Vector
	if err := row.Scan(&emb.AssetID, &emb.OwnerID, &vec, &emb.Model, &emb.Dim, &emb.CreatedAt); err != nil {
		return nil, err
	}
	emb.Embedding = vec.Slice()
	return &emb, nil
}

func scanEmbeddings(rows *sql.Rows) ([]database.StoredEmbedding, error) {
	var embeddings []database.StoredEmbedding
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		embeddings = append(embeddings, *emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return embeddings, nil
}

// Get retrieves an embedding by asset ID, returns nil if not found
func (r *EmbeddingRepository) Get(ctx context.Context, assetID string) (*database.StoredEmbedding, error) {
	query := `
		SELECT ` + embeddingColumns + `
		FROM embeddings e
		JOIN assets a ON a.id = e.asset_id
		WHERE e.asset_id = $1
	`

	emb, err := scanEmbedding(r.pool.QueryRow(ctx, query, assetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	return emb, nil
}

// Has checks if an embedding exists for the given asset ID
func (r *EmbeddingRepository) Has(ctx context.Context, assetID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM embeddings WHERE asset_id = $1)", assetID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check embedding exists: %w", err)
	}
	return exists, nil
}

// Count returns the total number of embeddings stored
func (r *EmbeddingRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// FindSimilar finds the owner's most similar embeddings using cosine distance.
// Uses the in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *EmbeddingRepository) FindSimilar(ctx context.Context, ownerID string, embedding []float32, limit int) ([]database.StoredEmbedding, error) {
	results, _, err := r.FindSimilarWithDistance(ctx, ownerID, embedding, limit, 2.0)
	return results, err
}

// FindSimilarWithDistance finds similar embeddings within maxDistance and returns distances.
// Uses the in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *EmbeddingRepository) FindSimilarWithDistance(ctx context.Context, ownerID string, embedding []float32, limit int, maxDistance float64) ([]database.StoredEmbedding, []float64, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findSimilarHNSW(ctx, ownerID, embedding, limit, maxDistance)
	}
	return r.findSimilarPostgres(ctx, ownerID, embedding, limit, maxDistance)
}

// findSimilarHNSW uses the in-memory HNSW index. The index spans all owners
// and keeps entries for archived assets, so candidates are over-fetched,
// filtered by owner, and then confirmed visible against the assets table.
func (r *EmbeddingRepository) findSimilarHNSW(ctx context.Context, ownerID string, embedding []float32, limit int, maxDistance float64) ([]database.StoredEmbedding, []float64, error) {
	r.hnswMu.RLock()
	if r.hnswIndex == nil {
		r.hnswMu.RUnlock()
		return nil, nil, errors.New("HNSW index not initialized")
	}

	searchK := limit * database.HNSWSearchMultiplier
	searchK = max(searchK, 100) // Minimum search size for better recall

	ids, distances, err := r.hnswIndex.SearchWithDistance(embedding, searchK, maxDistance)
	if err != nil {
		r.hnswMu.RUnlock()
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	var candidates []database.StoredEmbedding
	var candidateDistances []float64
	for i, id := range ids {
		emb := r.hnswIndex.GetEmbedding(id)
		if emb == nil || emb.OwnerID != ownerID {
			continue
		}
		candidates = append(candidates, *emb)
		candidateDistances = append(candidateDistances, distances[i])
	}
	r.hnswMu.RUnlock()

	if len(candidates) == 0 {
		return nil, nil, nil
	}

	candidateIDs := make([]string, len(candidates))
	for i := range candidates {
		candidateIDs[i] = candidates[i].AssetID
	}
	visible, err := r.visibleAssetIDs(ctx, candidateIDs)
	if err != nil {
		return nil, nil, err
	}

	results := make([]database.StoredEmbedding, 0, limit)
	distancesOut := make([]float64, 0, limit)
	for i := range candidates {
		if !visible[candidates[i].AssetID] {
			continue
		}
		results = append(results, candidates[i])
		distancesOut = append(distancesOut, candidateDistances[i])
		if len(results) >= limit {
			break
		}
	}

	return results, distancesOut, nil
}

// visibleAssetIDs returns the subset of ids whose assets are not archived.
func (r *EmbeddingRepository) visibleAssetIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id FROM assets WHERE id::text = ANY($1) AND is_archived = FALSE", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query visible assets: %w", err)
	}
	defer rows.Close()

	visible := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan asset ID: %w", err)
		}
		visible[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visible assets: %w", err)
	}
	return visible, nil
}

// findSimilarPostgres queries pgvector with ef_search raised for better recall.
func (r *EmbeddingRepository) findSimilarPostgres(ctx context.Context, ownerID string, embedding []float32, limit int, maxDistance float64) ([]database.StoredEmbedding, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT ` + embeddingColumns + `,
		       e.embedding <=> $2::vector AS distance
		FROM embeddings e
		JOIN assets a ON a.id = e.asset_id
		WHERE a.owner_id = $1
		  AND a.is_archived = FALSE
		  AND e.embedding <=> $2::vector < $3
		ORDER BY distance
		LIMIT $4
	`

	vec := pgvector.NewVector(embedding)
	rows, err := tx.QueryContext(ctx, query, ownerID, vec, maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []database.StoredEmbedding
	var distances []float64
	for rows.Next() {
		var emb database.StoredEmbedding
		var vecOut pgvector.Vector
		var dist float64
		if err := rows.Scan(&emb.AssetID, &emb.OwnerID, &vecOut, &emb.Model, &emb.Dim, &emb.CreatedAt, &dist); err != nil {
			return nil, nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Embedding = vecOut.Slice()
		embeddings = append(embeddings, emb)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	return embeddings, distances, nil
}

const upsertEmbeddingQuery = `
	INSERT INTO embeddings (asset_id, embedding, model, dim)
	VALUES ($1, $2::vector, $3, $4)
	ON CONFLICT (asset_id) DO UPDATE SET
		embedding = EXCLUDED.embedding,
		model = EXCLUDED.model,
		dim = EXCLUDED.dim,
		created_at = NOW()
`

// Save stores an embedding (upsert)
func (r *EmbeddingRepository) Save(ctx context.Context, emb *database.StoredEmbedding) error {
	vec := pgvector.NewVector(emb.Embedding)
	if _, err := r.pool.Exec(ctx, upsertEmbeddingQuery, emb.AssetID, vec, emb.Model, emb.Dim); err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Add(emb)
	}
	r.hnswMu.RUnlock()

	return nil
}

// SaveBatch saves multiple embeddings in a single transaction
func (r *EmbeddingRepository) SaveBatch(ctx context.Context, embeddings []database.StoredEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertEmbeddingQuery)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range embeddings {
		emb := &embeddings[i]
		vec := pgvector.NewVector(emb.Embedding)
		if _, err := stmt.ExecContext(ctx, emb.AssetID, vec, emb.Model, emb.Dim); err != nil {
			return fmt.Errorf("insert embedding %s: %w", emb.AssetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		for i := range embeddings {
			r.hnswIndex.Add(&embeddings[i])
		}
	}
	r.hnswMu.RUnlock()

	return nil
}

// Delete removes the embedding for an asset
func (r *EmbeddingRepository) Delete(ctx context.Context, assetID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM embeddings WHERE asset_id = $1", assetID); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Delete(assetID)
	}
	r.hnswMu.RUnlock()

	return nil
}

// MissingAssetIDs returns IDs of visible image assets without an embedding
func (r *EmbeddingRepository) MissingAssetIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = database.DefaultSearchLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT a.id FROM assets a
		LEFT JOIN embeddings e ON e.asset_id = a.id
		WHERE e.asset_id IS NULL AND a.is_archived = FALSE AND a.type = 'image'
		ORDER BY a.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query assets without embeddings: %w", err)
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

// GetAll retrieves all embeddings with their owners, used for index builds
func (r *EmbeddingRepository) GetAll(ctx context.Context) ([]database.StoredEmbedding, error) {
	query := `
		SELECT ` + embeddingColumns + `
		FROM embeddings e
		JOIN assets a ON a.id = e.asset_id
		ORDER BY e.asset_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all embeddings: %w", err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// EnableHNSW loads or builds the in-memory HNSW index for O(log N) similarity
// search. If indexPath is set, a fresh on-disk copy is preferred over a
// rebuild. This should be called once at startup.
func (r *EmbeddingRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	r.hnswIndexPath = indexPath

	var dbCount int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&dbCount); err != nil {
		return fmt.Errorf("failed to get embedding count: %w", err)
	}

	if indexPath != "" && r.tryLoadIndex(indexPath, dbCount) {
		r.hnswEnabled = true
		return nil
	}

	embeddings, err := r.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}

	r.hnswIndex = database.NewHNSWIndex()
	if err := r.hnswIndex.BuildFromEmbeddings(embeddings); err != nil {
		return fmt.Errorf("failed to build HNSW index: %w", err)
	}

	if indexPath != "" && len(embeddings) > 0 {
		metadata := database.HNSWIndexMetadata{EmbeddingCount: dbCount}
		if err := r.hnswIndex.SaveWithMetadata(indexPath, metadata); err != nil {
			fmt.Printf("Warning: failed to save HNSW index to disk: %v\n", err)
		}
	}

	r.hnswEnabled = true
	return nil
}

// tryLoadIndex attempts to load a fresh index from disk.
// Returns true when the on-disk copy matches the database state.
func (r *EmbeddingRepository) tryLoadIndex(indexPath string, dbCount int64) bool {
	metadata, err := database.LoadHNSWMetadata(indexPath)
	if err != nil {
		fmt.Printf("Embedding index: metadata file error: %v (will rebuild)\n", err)
		return false
	}
	if metadata.EmbeddingCount != dbCount {
		fmt.Printf("Embedding index: stale (db count=%d, cached count=%d) (will rebuild)\n",
			dbCount, metadata.EmbeddingCount)
		return false
	}

	r.hnswIndex = database.NewHNSWIndex()
	if err := r.hnswIndex.LoadWithMetadata(indexPath); err != nil {
		fmt.Printf("Embedding index: failed to load: %v (will rebuild)\n", err)
		return false
	}
	if r.hnswIndex.IsEmpty() {
		fmt.Printf("Embedding index: loaded graph is empty (will rebuild)\n")
		return false
	}

	fmt.Printf("Embedding index: loaded from disk (fresh)\n")
	return true
}

// DisableHNSW disables the in-memory HNSW index, falling back to PostgreSQL queries
func (r *EmbeddingRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// IsHNSWEnabled returns whether the in-memory HNSW index is enabled
func (r *EmbeddingRepository) IsHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// HNSWCount returns the number of embeddings in the HNSW index
func (r *EmbeddingRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// RebuildHNSW rebuilds the HNSW index from PostgreSQL data
func (r *EmbeddingRepository) RebuildHNSW(ctx context.Context) error {
	r.hnswMu.RLock()
	indexPath := r.hnswIndexPath
	r.hnswMu.RUnlock()
	return r.EnableHNSW(ctx, indexPath)
}

// SaveHNSWIndex saves the current HNSW index to disk (if a path is configured)
func (r *EmbeddingRepository) SaveHNSWIndex() error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndexPath == "" || r.hnswIndex == nil {
		return nil // Nothing to save
	}

	var dbCount int64
	if err := r.pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM embeddings").Scan(&dbCount); err != nil {
		return fmt.Errorf("failed to get embedding count: %w", err)
	}

	metadata := database.HNSWIndexMetadata{EmbeddingCount: dbCount}
	if err := r.hnswIndex.SaveWithMetadata(r.hnswIndexPath, metadata); err != nil {
		return fmt.Errorf("saving HNSW index: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ database.EmbeddingReader = (*EmbeddingRepository)(nil)
var _ database.EmbeddingWriter = (*EmbeddingRepository)(nil)
var _ database.HNSWRebuilder = (*EmbeddingRepository)(nil)
