package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/fingerprint"
)

// ErrDisabled is returned when duplicate detection is requested but the
// feature flag is off.
var ErrDisabled = errors.New("duplicate detection is disabled")

// Outcome reports what happened to a single asset during detection.
type Outcome int

const (
	// OutcomeSkipped means the asset was not eligible (archived, video,
	// or the feature is off).
	OutcomeSkipped Outcome = iota
	// OutcomeFailed means the asset could not be checked (missing asset
	// or missing embedding).
	OutcomeFailed
	// OutcomeSuccess means the check ran, whether or not duplicates were found.
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Service finds near-duplicate assets by embedding similarity, confirmed by
// perceptual hash distance when both assets carry one.
type Service struct {
	assets database.AssetReader
	embs   database.EmbeddingReader
	dups   database.DuplicateWriter
	cfg    *config.Config
}

func NewService(assets database.AssetReader, embs database.EmbeddingReader, dups database.DuplicateWriter, cfg *config.Config) *Service {
	return &Service{
		assets: assets,
		embs:   embs,
		dups:   dups,
		cfg:    cfg,
	}
}

// CheckAsset runs duplicate detection for a single asset. When duplicates are
// found, the asset and its matches are assigned to a shared group. The group
// id is reused from the first match already in a group; otherwise a new group
// is created.
func (s *Service) CheckAsset(ctx context.Context, assetID string) (Outcome, error) {
	if !s.cfg.Features.DuplicateDetection {
		return OutcomeSkipped, nil
	}

	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to load asset %s: %w", assetID, err)
	}
	if asset == nil {
		return OutcomeFailed, fmt.Errorf("asset %s not found", assetID)
	}
	if asset.IsArchived || asset.Type != database.AssetTypeImage {
		return OutcomeSkipped, nil
	}

	emb, err := s.embs.Get(ctx, assetID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to load embedding for %s: %w", assetID, err)
	}
	if emb == nil {
		return OutcomeFailed, fmt.Errorf("asset %s has no embedding", assetID)
	}

	neighbors, _, err := s.embs.FindSimilarWithDistance(ctx, asset.OwnerID, emb.Embedding,
		s.cfg.Search.DedupeNeighborK, s.cfg.Search.DedupeMaxDistance)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("similarity search failed for %s: %w", assetID, err)
	}

	matches, err := s.confirmMatches(ctx, asset, neighbors)
	if err != nil {
		return OutcomeFailed, err
	}

	if len(matches) == 0 {
		if err := s.dups.MarkChecked(ctx, assetID); err != nil {
			return OutcomeFailed, fmt.Errorf("failed to mark %s checked: %w", assetID, err)
		}
		return OutcomeSuccess, nil
	}

	groupID := s.pickGroupID(asset, matches)

	ids := make([]string, 0, len(matches)+1)
	ids = append(ids, asset.ID)
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	if err := s.dups.AssignGroup(ctx, groupID, ids); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to assign duplicate group: %w", err)
	}
	return OutcomeSuccess, nil
}

// confirmMatches filters similarity neighbors down to actual duplicates.
// Self-matches are dropped, and when both assets carry a perceptual hash the
// match must also pass the Hamming distance threshold.
func (s *Service) confirmMatches(ctx context.Context, asset *database.Asset, neighbors []database.StoredEmbedding) ([]database.Asset, error) {
	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if n.AssetID == asset.ID {
			continue
		}
		ids = append(ids, n.AssetID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	candidates, err := s.assets.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load duplicate candidates: %w", err)
	}

	var matches []database.Asset
	for _, c := range candidates {
		if c.IsArchived {
			continue
		}
		if asset.PHash != "" && c.PHash != "" {
			d, err := fingerprint.HexDistance(asset.PHash, c.PHash)
			if err != nil {
				// A corrupt stored hash should not sink the whole check.
				continue
			}
			if d > s.cfg.Search.DedupeHashHamming {
				continue
			}
		}
		matches = append(matches, c)
	}
	return matches, nil
}

// pickGroupID reuses the first existing group id among the asset and its
// matches so groups grow instead of splitting.
func (s *Service) pickGroupID(asset *database.Asset, matches []database.Asset) string {
	if asset.DuplicateID != "" {
		return asset.DuplicateID
	}
	for _, m := range matches {
		if m.DuplicateID != "" {
			return m.DuplicateID
		}
	}
	return uuid.NewString()
}

// RunStats summarizes a batch detection run.
type RunStats struct {
	Checked int
	Skipped int
	Failed  int
}

const runBatchSize = 500

// Run checks every unchecked asset using a worker pool. Assets are fetched in
// batches until none remain. The progress callback is invoked once per asset
// and may be nil.
func (s *Service) Run(ctx context.Context, progress func(assetID string, outcome Outcome)) (*RunStats, error) {
	if !s.cfg.Features.DuplicateDetection {
		return nil, ErrDisabled
	}

	workers := s.cfg.Search.DedupeWorkerCount
	if workers < 1 {
		workers = 1
	}

	stats := &RunStats{}
	seen := make(map[string]bool)

	for {
		ids, err := s.dups.UncheckedAssetIDs(ctx, runBatchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to list unchecked assets: %w", err)
		}

		// Failed assets stay unchecked in the database, so drop anything
		// already attempted to guarantee the loop terminates.
		batch := ids[:0]
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			return stats, nil
		}

		if err := s.runBatch(ctx, batch, workers, stats, progress); err != nil {
			return stats, err
		}
	}
}

func (s *Service) runBatch(ctx context.Context, ids []string, workers int, stats *RunStats, progress func(string, Outcome)) error {
	var mu sync.Mutex
	jobs := make(chan string)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcome, err := s.CheckAsset(ctx, id)
				if err != nil {
					fmt.Printf("dedupe: %s: %v\n", id, err)
				}
				mu.Lock()
				switch outcome {
				case OutcomeSuccess:
					stats.Checked++
				case OutcomeSkipped:
					stats.Skipped++
				case OutcomeFailed:
					stats.Failed++
				}
				mu.Unlock()
				if progress != nil {
					progress(id, outcome)
				}
			}
		}()
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()
	return nil
}
