package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/database/mariadb"
	"github.com/mhrabal/photovault/internal/database/postgres"
	"github.com/mhrabal/photovault/internal/fingerprint"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import photos from a PhotoPrism database",
	Long: `Import photo metadata from a PhotoPrism MariaDB database into PhotoVault.
Photos already imported (matched by checksum) are skipped, so the command
can be re-run safely.

Set PHOTOPRISM_DATABASE_URL to the MariaDB DSN. The DSN must include
parseTime=true so taken-at timestamps scan correctly, e.g.

  photoprism:secret@tcp(localhost:3306)/photoprism?parseTime=true

When LIBRARY_ORIGINALS_PATH points at the PhotoPrism originals directory,
perceptual hashes are computed from the image files during import. These
are used to confirm duplicate candidates later.

Examples:
  # Import all photos for a user
  photovault import --owner anna@example.com

  # Import without computing perceptual hashes
  photovault import --owner anna@example.com --skip-hashes`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("owner", "", "Email of the user who will own the imported assets (required)")
	importCmd.Flags().Int("batch-size", 500, "Number of photos to fetch per batch")
	importCmd.Flags().Bool("skip-hashes", false, "Skip computing perceptual hashes from original files")
}

// legacyAssetType maps a PhotoPrism photo type to an asset type. Unsupported
// types (live, animated, ...) return an empty string.
func legacyAssetType(t string) string {
	switch t {
	case "image", "raw":
		return database.AssetTypeImage
	case "video":
		return database.AssetTypeVideo
	}
	return ""
}

// legacyToAsset converts one PhotoPrism row to an asset owned by ownerID.
func legacyToAsset(ph mariadb.LegacyPhoto, ownerID, assetType string) database.Asset {
	return database.Asset{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		OriginalFileName: filepath.Base(ph.FileName),
		FilePath:         ph.FileName,
		Checksum:         ph.FileHash,
		Type:             assetType,
		TakenAt:          ph.TakenAt,
		City:             ph.City,
		State:            ph.State,
		Country:          ph.Country,
		CameraMake:       ph.CameraMake,
		CameraModel:      ph.CameraModel,
		Width:            ph.Width,
		Height:           ph.Height,
		IsFavorite:       ph.Favorite,
	}
}

// computePHash reads the original image file and computes its perceptual hash.
// Returns an empty string when the file is missing or not decodable.
func computePHash(originalsPath, filePath string) string {
	data, err := os.ReadFile(filepath.Join(originalsPath, filePath))
	if err != nil {
		return ""
	}
	hashes, err := fingerprint.Compute(data)
	if err != nil {
		return ""
	}
	return hashes.PHash
}

func runImport(cmd *cobra.Command, args []string) error {
	ownerEmail := mustGetString(cmd, "owner")
	batchSize := mustGetInt(cmd, "batch-size")
	skipHashes := mustGetBool(cmd, "skip-hashes")

	if ownerEmail == "" {
		return fmt.Errorf("--owner is required")
	}

	ctx := context.Background()
	cfg := config.Load()

	if cfg.Legacy.PhotoPrismDSN == "" {
		return fmt.Errorf("PHOTOPRISM_DATABASE_URL environment variable is required")
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

	owner, err := postgres.NewUserRepository(pool).GetByEmail(ctx, ownerEmail)
	if err != nil {
		return fmt.Errorf("failed to look up owner: %w", err)
	}
	if owner == nil {
		return fmt.Errorf("no user with email %s, create one with 'photovault user create'", ownerEmail)
	}

	fmt.Println("Connecting to PhotoPrism database...")
	legacy, err := mariadb.NewPool(ctx, cfg.Legacy.PhotoPrismDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to PhotoPrism database: %w", err)
	}
	defer legacy.Close()

	total, err := legacy.CountPhotos(ctx)
	if err != nil {
		return fmt.Errorf("failed to count photos: %w", err)
	}
	fmt.Printf("Photos in PhotoPrism: %d\n\n", total)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Importing photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	assetRepo := postgres.NewAssetRepository(pool)
	hashOriginals := !skipHashes && cfg.Library.OriginalsPath != ""

	var imported, skipped int
	var afterID int64
	for {
		photos, nextAfter, err := legacy.FetchPhotos(ctx, afterID, batchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch photos: %w", err)
		}

		batch := make([]database.Asset, 0, len(photos))
		for _, ph := range photos {
			assetType := legacyAssetType(ph.Type)
			if assetType == "" {
				skipped++
				bar.Add(1)
				continue
			}

			asset := legacyToAsset(ph, owner.ID, assetType)
			if hashOriginals && assetType == database.AssetTypeImage {
				asset.PHash = computePHash(cfg.Library.OriginalsPath, ph.FileName)
			}
			batch = append(batch, asset)
			bar.Add(1)
		}

		inserted, err := assetRepo.CreateBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to insert assets: %w", err)
		}
		imported += inserted
		skipped += len(batch) - inserted

		if nextAfter == 0 {
			break
		}
		afterID = nextAfter
	}
	fmt.Println()

	fmt.Printf("\nImported %d assets, skipped %d (duplicates or unsupported types)\n", imported, skipped)
	if hashOriginals {
		fmt.Println("Perceptual hashes computed from original files")
	}
	fmt.Println("Run 'photovault embed' to compute embeddings for smart search")
	return nil
}
