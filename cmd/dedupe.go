package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database/postgres"
	"github.com/mhrabal/photovault/internal/dedupe"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Run duplicate detection over all unchecked assets",
	Long: `Run duplicate detection over every asset that has not been examined yet.
Candidates are found by embedding similarity and confirmed by comparing
perceptual hashes. Confirmed duplicates are assigned to shared groups
which can be reviewed in the API under /api/v1/duplicates.

The process can be stopped and resumed - already checked assets are skipped.

Examples:
  photovault dedupe`,
	RunE: runDedupe,
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

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
	initEmbeddingHNSW(ctx, embRepo, cfg.Database.HNSWIndexPath)

	assetRepo := postgres.NewAssetRepository(pool)
	dupRepo := postgres.NewDuplicateRepository(pool)
	svc := dedupe.NewService(assetRepo, embRepo, dupRepo, cfg)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Checking assets"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("assets"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	stats, err := svc.Run(ctx, func(assetID string, outcome dedupe.Outcome) {
		bar.Add(1)
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("duplicate detection failed: %w", err)
	}

	fmt.Printf("\nChecked %d assets: %d skipped, %d failed\n", stats.Checked+stats.Skipped+stats.Failed, stats.Skipped, stats.Failed)
	return nil
}
