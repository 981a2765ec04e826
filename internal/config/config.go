package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed search.yaml
var searchYAML []byte

type Config struct {
	Library  LibraryConfig
	Database DatabaseConfig
	Legacy   LegacyConfig
	ML       MLConfig
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
	Features FeaturesConfig
	Search   SearchConfig
}

type LibraryConfig struct {
	OriginalsPath string // directory holding original image files
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the embedding HNSW index (optional, rebuilt on startup if empty)
}

type LegacyConfig struct {
	PhotoPrismDSN string // MariaDB DSN of a PhotoPrism instance to import from
}

type MLConfig struct {
	URL      string // embedding service base URL, defaults to http://localhost:3003
	Model    string // model name reported by the service (reference only)
	Dim      int    // embedding dimensionality, defaults to 512
	Provider string // "clip" (default), "openai" or "gemini"
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

// FeaturesConfig holds runtime feature flags. Both default to enabled and
// can be switched off with SMART_SEARCH_ENABLED=false / DEDUPE_ENABLED=false.
type FeaturesConfig struct {
	SmartSearch        bool
	DuplicateDetection bool
}

// SearchConfig carries tuning defaults loaded from the embedded search.yaml.
type SearchConfig struct {
	DefaultPageSize   int     `yaml:"default_page_size"`
	MaxPageSize       int     `yaml:"max_page_size"`
	SmartMaxDistance  float64 `yaml:"smart_max_distance"`
	DedupeMaxDistance float64 `yaml:"dedupe_max_distance"`
	DedupeHashHamming int     `yaml:"dedupe_hash_hamming"`
	SuggestionLimit   int     `yaml:"suggestion_limit"`
	DedupeNeighborK   int     `yaml:"dedupe_neighbor_k"`
	DedupeWorkerCount int     `yaml:"dedupe_worker_count"`
	EmbedWorkerCount  int     `yaml:"embed_worker_count"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean flag.
// Returns the default value if the env var is unset or unparseable.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func Load() *Config {
	var search SearchConfig
	if err := yaml.Unmarshal(searchYAML, &search); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded search.yaml: " + err.Error())
	}

	return &Config{
		Library: LibraryConfig{
			OriginalsPath: os.Getenv("LIBRARY_ORIGINALS_PATH"),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Legacy: LegacyConfig{
			PhotoPrismDSN: os.Getenv("PHOTOPRISM_DATABASE_URL"),
		},
		ML: MLConfig{
			URL:      os.Getenv("ML_URL"),
			Model:    os.Getenv("ML_MODEL"),
			Dim:      envInt("ML_EMBEDDING_DIM", 512),
			Provider: os.Getenv("ML_PROVIDER"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Features: FeaturesConfig{
			SmartSearch:        envBool("SMART_SEARCH_ENABLED", true),
			DuplicateDetection: envBool("DEDUPE_ENABLED", true),
		},
		Search: search,
	}
}
