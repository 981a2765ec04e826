package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photovault",
	Short: "A self-hosted photo library with semantic search",
	Long: `PhotoVault is a photo management backend with metadata and semantic
search, shared albums and embedding-based duplicate detection.
Photos are stored in PostgreSQL with pgvector; image embeddings come
from a CLIP-compatible service or a hosted provider (OpenAI, Gemini).`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
