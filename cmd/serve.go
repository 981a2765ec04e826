package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database/postgres"
	"github.com/mhrabal/photovault/internal/dedupe"
	"github.com/mhrabal/photovault/internal/ml"
	"github.com/mhrabal/photovault/internal/search"
	"github.com/mhrabal/photovault/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the PhotoVault API server.
The server exposes the JSON API for assets, albums, search and
duplicate detection under /api/v1.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies")
}

// initEmbeddingHNSW builds or loads the embedding HNSW index for fast similarity search.
func initEmbeddingHNSW(ctx context.Context, embRepo *postgres.EmbeddingRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading embedding HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for image embeddings...\n")
	}
	if err := embRepo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build embedding HNSW index: %v\n", err)
		fmt.Printf("Smart search will use PostgreSQL queries (slower)\n")
	} else if indexPath != "" {
		fmt.Printf("Embedding HNSW index ready with %d embeddings (persisted to %s)\n", embRepo.HNSWCount(), indexPath)
	} else {
		fmt.Printf("Embedding HNSW index built with %d embeddings (in-memory only)\n", embRepo.HNSWCount())
	}
}

// resolveServeHostPort resolves port, host and session secret from flags and
// environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	sessionSecret := mustGetString(cmd, "session-secret")

	if sessionSecret == "" {
		sessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host, sessionSecret
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	fmt.Printf("Connecting to PostgreSQL database...\n")
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

	provider, err := ml.NewProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	fmt.Printf("Embedding provider: %s\n", provider.Name())

	deps := web.Dependencies{
		Users:      postgres.NewUserRepository(pool),
		Assets:     assetRepo,
		Albums:     postgres.NewAlbumRepository(pool),
		Embeddings: embRepo,
		Duplicates: dupRepo,
		Search:     search.NewService(assetRepo, embRepo, provider, cfg),
		Dedupe:     dedupe.NewService(assetRepo, embRepo, dupRepo, cfg),
		Sessions:   postgres.NewSessionRepository(pool),
	}

	port, host, sessionSecret := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, deps, port, host, sessionSecret)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		if embRepo.IsHNSWEnabled() {
			if err := embRepo.SaveHNSWIndex(); err != nil {
				fmt.Printf("Warning: failed to save embedding HNSW index: %v\n", err)
			} else {
				fmt.Println("Embedding HNSW index saved to disk")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting PhotoVault API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
