package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/imtdakar/imtbot/internal/cache"
	"github.com/imtdakar/imtbot/internal/config"
	"github.com/imtdakar/imtbot/internal/database"
	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/openai"
	"github.com/imtdakar/imtbot/internal/repository"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/imtdakar/imtbot/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// IndexStore persists the index and reports when the stored copy changed.
type IndexStore interface {
	service.IndexRepository
	Fingerprint(ctx context.Context) (string, error)
}

// ChunkConfig maps the environment onto chunking parameters.
func ChunkConfig(cfg *config.Config) service.ChunkConfig {
	return service.ChunkConfig{
		Strategy: domain.ChunkStrategy(cfg.ChunkStrategy),
		Window:   cfg.ChunkWindow,
		Overlap:  cfg.ChunkOverlap,
		MinChars: cfg.ChunkMinChars,
	}
}

// SearchConfig maps the environment onto retrieval parameters, scorer
// weights included. Routes come from IMTBOT_ROUTES_FILE when set.
func SearchConfig(cfg *config.Config) (service.SearchConfig, error) {
	sc := service.DefaultSearchConfig()
	sc.TopK = cfg.TopK
	sc.RoutingTopN = cfg.RoutingTopN
	sc.SemanticThreshold = cfg.SemanticThreshold
	sc.Lexical.TokenWeight = cfg.TokenWeight
	sc.Lexical.SynonymWeight = cfg.SynonymWeight
	sc.Lexical.MultiMatchBonus = cfg.MultiMatchBonus
	sc.Lexical.MarkerBonus = cfg.MarkerBonus
	sc.Lexical.InstitutionBonus = cfg.InstitutionBonus
	sc.Lexical.PositionBonus = cfg.PositionBonus
	sc.Lexical.PositionWindow = cfg.PositionWindow
	sc.Lexical.PrimarySourceBonus = cfg.PrimarySourceBonus
	sc.Lexical.ShortPenalty = cfg.ShortPenalty
	sc.Lexical.MinParagraphRunes = cfg.MinParagraphRunes
	sc.Lexical.TestimonialPenalty = cfg.TestimonialPenalty
	sc.Lexical.Floor = cfg.LexicalFloor
	sc.Lexical.SnippetLines = cfg.SnippetLines
	sc.Lexical.SnippetMaxRunes = cfg.SnippetMaxRunes

	if cfg.RoutesFile != "" {
		routes, err := service.LoadRoutes(cfg.RoutesFile)
		if err != nil {
			return sc, err
		}
		sc.Routes = routes
	}
	return sc, nil
}

// NewEmbedder returns the cached embedding client, or nil when no endpoint
// is configured. The returned close func releases the cache.
func NewEmbedder(ctx context.Context, cfg *config.Config) (service.EmbeddingClient, func(), error) {
	if !cfg.HasOpenAI() {
		return nil, func() {}, nil
	}

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.EmbeddingBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		RequestsPerSecond:   cfg.EmbeddingRPS,
	})
	vectors := cache.New(ctx, cache.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		TTL:           cfg.CacheTTL,
	})
	closer := func() {
		if err := vectors.Close(); err != nil {
			log.Printf("cache: close failed: %v", err)
		}
	}
	return cache.NewCachedEmbedder(client, vectors), closer, nil
}

// OpenDatabase connects to Postgres and applies pending migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config, migrate bool) (*pgxpool.Pool, error) {
	if migrate {
		if err := database.Migrate(cfg.DatabaseURL, database.DefaultMigrationsDir); err != nil {
			return nil, err
		}
	}
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	log.Println("connected to database")
	return pool, nil
}

// OpenIndexStore selects the index backend named by IMTBOT_INDEX_BACKEND.
// pool is only used by the postgres backend and may be nil otherwise.
func OpenIndexStore(cfg *config.Config, pool *pgxpool.Pool) (IndexStore, error) {
	switch cfg.IndexBackend {
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("postgres index backend requires a database connection")
		}
		return repository.NewPgIndexRepository(pool), nil
	default:
		return repository.NewFileIndexRepository(cfg.IndexPath), nil
	}
}

// NewS3Client builds the artifact store client from the environment.
func NewS3Client(ctx context.Context, cfg *config.Config) (*storage.S3Client, error) {
	if !cfg.HasS3() {
		return nil, fmt.Errorf("S3 is not configured (set IMTBOT_S3_ENDPOINT, IMTBOT_S3_ACCESS_KEY_ID and IMTBOT_S3_SECRET_ACCESS_KEY)")
	}
	return storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
}

// IndexKey is the object key of the index artifact.
func IndexKey(cfg *config.Config) string {
	if cfg.S3IndexKey != "" {
		return cfg.S3IndexKey
	}
	return storage.DefaultIndexKey
}

// AddIndexFlags registers the flags that override where the index lives.
func AddIndexFlags(cmd *cobra.Command) {
	cmd.Flags().String("index", "", "Index file path (overrides IMTBOT_INDEX_PATH)")
	cmd.Flags().String("backend", "", "Index backend: file or postgres (overrides IMTBOT_INDEX_BACKEND)")
}

// AddRetrievalFlags registers the flags that tune retrieval.
func AddRetrievalFlags(cmd *cobra.Command) {
	cmd.Flags().Int("top-k", 0, "Number of passages to return (overrides IMTBOT_TOP_K)")
	cmd.Flags().Float64("threshold", 0, "Semantic similarity threshold (overrides IMTBOT_SEMANTIC_THRESHOLD)")
	cmd.Flags().String("routes", "", "Routing table JSON file (overrides IMTBOT_ROUTES_FILE)")
}

// ApplyFlags copies every flag the user set onto cfg and re-validates it.
// Flags that were not registered on cmd are ignored.
func ApplyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("index") {
		cfg.IndexPath, _ = flags.GetString("index")
	}
	if flags.Changed("backend") {
		cfg.IndexBackend, _ = flags.GetString("backend")
	}
	if flags.Changed("top-k") {
		cfg.TopK, _ = flags.GetInt("top-k")
	}
	if flags.Changed("threshold") {
		cfg.SemanticThreshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("routes") {
		cfg.RoutesFile, _ = flags.GetString("routes")
	}
	return cfg.Validate()
}
