package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/database/postgres"
	"github.com/mhrabal/photovault/internal/fingerprint"
	"github.com/mhrabal/photovault/internal/ml"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Compute embeddings for all assets",
	Long: `Compute and store image embeddings for assets that do not have one yet.
Embeddings are stored in PostgreSQL with pgvector and power smart search
and duplicate detection.

The process can be stopped and resumed - already processed assets are skipped.
Original image files are read from LIBRARY_ORIGINALS_PATH.

Examples:
  # Compute embeddings for all assets
  photovault embed

  # Use different concurrency
  photovault embed --concurrency 3

  # Limit number of assets to process
  photovault embed --limit 100`,
	RunE: runEmbed,
}

// embedBatchSize is how many missing assets are fetched per round.
const embedBatchSize = 500

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().Int("concurrency", 0, "Number of parallel workers (0 = use configured default)")
	embedCmd.Flags().Int("limit", 0, "Limit number of assets to process (0 = no limit)")
}

// embedAsset reads the original file, resizes it and stores the embedding.
func embedAsset(ctx context.Context, asset database.Asset, originalsPath string, provider ml.Provider, embRepo *postgres.EmbeddingRepository) error {
	data, err := os.ReadFile(filepath.Join(originalsPath, asset.FilePath))
	if err != nil {
		return fmt.Errorf("read original: %w", err)
	}

	resized, err := fingerprint.ResizeImage(data, 1920)
	if err != nil {
		return fmt.Errorf("resize image: %w", err)
	}

	embedding, err := provider.EmbedImage(ctx, resized)
	if err != nil {
		return fmt.Errorf("compute embedding: %w", err)
	}

	return embRepo.Save(ctx, &database.StoredEmbedding{
		AssetID:   asset.ID,
		OwnerID:   asset.OwnerID,
		Embedding: embedding,
		Model:     provider.Name(),
		Dim:       len(embedding),
	})
}

func runEmbed(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	limit := mustGetInt(cmd, "limit")

	ctx := context.Background()
	cfg := config.Load()

	if concurrency <= 0 {
		concurrency = cfg.Search.EmbedWorkerCount
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if cfg.Library.OriginalsPath == "" {
		return fmt.Errorf("LIBRARY_ORIGINALS_PATH environment variable is required")
	}

	fmt.Println("Connecting to PostgreSQL...")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	embRepo := postgres.NewEmbeddingRepository(pool)
	assetRepo := postgres.NewAssetRepository(pool)

	dbCount, _ := embRepo.Count(ctx)
	fmt.Printf("Embeddings in database: %d\n", dbCount)

	provider, err := ml.NewProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	fmt.Printf("Embedding provider: %s\n", provider.Name())

	barTotal := limit
	if barTotal <= 0 {
		barTotal = -1 // unknown until the listing is exhausted
	}
	bar := progressbar.NewOptions(barTotal,
		progressbar.OptionSetDescription("Computing embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("assets"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var successCount, errorCount int
	var mu sync.Mutex

	// Assets whose embedding failed stay in the missing listing, so track
	// what was already attempted to guarantee the loop terminates.
	seen := make(map[string]bool)

	for limit <= 0 || successCount+errorCount < limit {
		batchLimit := embedBatchSize
		if limit > 0 && limit-successCount-errorCount < batchLimit {
			batchLimit = limit - successCount - errorCount
		}

		missing, err := embRepo.MissingAssetIDs(ctx, batchLimit)
		if err != nil {
			return fmt.Errorf("failed to list assets without embeddings: %w", err)
		}

		var fresh []string
		for _, id := range missing {
			if !seen[id] {
				seen[id] = true
				fresh = append(fresh, id)
			}
		}
		if len(fresh) == 0 {
			break
		}

		assets, err := assetRepo.GetBatch(ctx, fresh)
		if err != nil {
			return fmt.Errorf("failed to load assets: %w", err)
		}

		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup

		for _, asset := range assets {
			wg.Add(1)
			go func(a database.Asset) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				err := embedAsset(ctx, a, cfg.Library.OriginalsPath, provider, embRepo)

				mu.Lock()
				if err != nil {
					errorCount++
				} else {
					successCount++
				}
				mu.Unlock()
				bar.Add(1)
			}(asset)
		}

		wg.Wait()
	}
	fmt.Println()

	if successCount+errorCount == 0 {
		fmt.Println("All assets already have embeddings!")
		return nil
	}

	finalCount, _ := embRepo.Count(ctx)
	fmt.Printf("\nCompleted: %d successful, %d errors\n", successCount, errorCount)
	fmt.Printf("Total embeddings in database: %d\n", finalCount)

	return nil
}
