package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database/postgres"
	"github.com/mhrabal/photovault/internal/ml"
	"github.com/mhrabal/photovault/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search assets by semantic similarity",
	Long: `Search a user's assets by semantic similarity to a text query.
The query is embedded with the configured provider and matched against
stored image embeddings.

Examples:
  photovault search "sunset over a lake" --owner anna@example.com
  photovault search "dog in the snow" --owner anna@example.com --size 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("owner", "", "Email of the user whose library is searched (required)")
	searchCmd.Flags().Int("page", 1, "Result page")
	searchCmd.Flags().Int("size", 20, "Results per page")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	ownerEmail := mustGetString(cmd, "owner")
	page := mustGetInt(cmd, "page")
	size := mustGetInt(cmd, "size")

	if ownerEmail == "" {
		return fmt.Errorf("--owner is required")
	}

	ctx := context.Background()
	cfg := config.Load()

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	owner, err := postgres.NewUserRepository(pool).GetByEmail(ctx, ownerEmail)
	if err != nil {
		return fmt.Errorf("failed to look up owner: %w", err)
	}
	if owner == nil {
		return fmt.Errorf("no user with email %s", ownerEmail)
	}

	provider, err := ml.NewProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	assetRepo := postgres.NewAssetRepository(pool)
	embRepo := postgres.NewEmbeddingRepository(pool)
	svc := search.NewService(assetRepo, embRepo, provider, cfg)

	result, err := svc.Smart(ctx, owner.ID, query, page, size)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(result.Assets) == 0 {
		fmt.Println("No results")
		return nil
	}

	fmt.Printf("Results for %q (page %d):\n\n", query, result.Page)
	for i, a := range result.Assets {
		taken := "unknown date"
		if a.TakenAt != nil {
			taken = a.TakenAt.Format("2006-01-02")
		}
		fmt.Printf("%3d. %s (%s)\n", (result.Page-1)*size+i+1, a.OriginalFileName, taken)
	}
	if result.NextPage != nil {
		fmt.Printf("\nMore results on page %d\n", *result.NextPage)
	}
	return nil
}
