package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "IMTBOT"

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Optional bearer keys for the HTTP API, as "client:key" entries
	APIKeys []string `envconfig:"API_KEYS"`

	// Corpus and artifact locations
	DataDir      string `envconfig:"DATA_DIR" default:"data"`
	IndexPath    string `envconfig:"INDEX_PATH" default:"index/index.json"`
	IndexBackend string `envconfig:"INDEX_BACKEND" default:"file"`
	RoutesFile   string `envconfig:"ROUTES_FILE"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	// Chunking
	ChunkStrategy string `envconfig:"CHUNK_STRATEGY" default:"paragraph"`
	ChunkWindow   int    `envconfig:"CHUNK_WINDOW" default:"500"`
	ChunkOverlap  int    `envconfig:"CHUNK_OVERLAP" default:"50"`
	ChunkMinChars int    `envconfig:"CHUNK_MIN_CHARS" default:"30"`

	// Retrieval
	TopK              int           `envconfig:"TOP_K" default:"3"`
	RoutingTopN       int           `envconfig:"ROUTING_TOP_N" default:"3"`
	LexicalFloor      float64       `envconfig:"LEXICAL_FLOOR" default:"1.0"`
	SemanticThreshold float64       `envconfig:"SEMANTIC_THRESHOLD" default:"0.3"`
	SnippetLines      int           `envconfig:"SNIPPET_LINES" default:"3"`
	ReloadInterval    time.Duration `envconfig:"RELOAD_INTERVAL" default:"0s"`

	// Lexical scorer weights
	TokenWeight        float64 `envconfig:"LEXICAL_TOKEN_WEIGHT" default:"1.0"`
	SynonymWeight      float64 `envconfig:"LEXICAL_SYNONYM_WEIGHT" default:"0.6"`
	MultiMatchBonus    float64 `envconfig:"LEXICAL_MULTI_MATCH_BONUS" default:"0.5"`
	MarkerBonus        float64 `envconfig:"LEXICAL_MARKER_BONUS" default:"1.5"`
	InstitutionBonus   float64 `envconfig:"LEXICAL_INSTITUTION_BONUS" default:"0.3"`
	PositionBonus      float64 `envconfig:"LEXICAL_POSITION_BONUS" default:"0.3"`
	PositionWindow     int     `envconfig:"LEXICAL_POSITION_WINDOW" default:"5"`
	PrimarySourceBonus float64 `envconfig:"LEXICAL_PRIMARY_SOURCE_BONUS" default:"2.0"`
	ShortPenalty       float64 `envconfig:"LEXICAL_SHORT_PENALTY" default:"0.5"`
	MinParagraphRunes  int     `envconfig:"LEXICAL_MIN_PARAGRAPH_RUNES" default:"60"`
	TestimonialPenalty float64 `envconfig:"LEXICAL_TESTIMONIAL_PENALTY" default:"1.0"`
	SnippetMaxRunes    int     `envconfig:"SNIPPET_MAX_RUNES" default:"600"`

	// Embeddings (any OpenAI-compatible endpoint)
	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	EmbeddingBaseURL    string  `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingRPS        float64 `envconfig:"EMBEDDING_RPS" default:"5"`

	// Embedding cache
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"168h"`

	// Artifact distribution
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"imtbot-index"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3IndexKey  string `envconfig:"S3_INDEX_KEY" default:"index/index.json"`

	// Scraper
	ScrapeBaseURL string        `envconfig:"SCRAPE_BASE_URL" default:"https://www.imt.sn"`
	ScrapeTimeout time.Duration `envconfig:"SCRAPE_TIMEOUT" default:"15s"`
	ScrapeRPS     float64       `envconfig:"SCRAPE_RPS" default:"1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks enum values and numeric ranges.
func (c *Config) Validate() error {
	switch c.IndexBackend {
	case "file", "postgres":
	default:
		return fmt.Errorf("invalid %s_INDEX_BACKEND %q (expected file or postgres)", envPrefix, c.IndexBackend)
	}
	if c.IndexBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("%s_DATABASE_URL is required when index backend is postgres", envPrefix)
	}
	switch c.ChunkStrategy {
	case "paragraph", "window":
	default:
		return fmt.Errorf("invalid %s_CHUNK_STRATEGY %q (expected paragraph or window)", envPrefix, c.ChunkStrategy)
	}
	if c.ChunkWindow <= 0 {
		return fmt.Errorf("%s_CHUNK_WINDOW must be positive", envPrefix)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkWindow {
		return fmt.Errorf("%s_CHUNK_OVERLAP must be in [0, CHUNK_WINDOW)", envPrefix)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%s_TOP_K must be positive", envPrefix)
	}
	if c.RoutingTopN <= 0 {
		return fmt.Errorf("%s_ROUTING_TOP_N must be positive", envPrefix)
	}
	if c.SemanticThreshold < -1 || c.SemanticThreshold > 1 {
		return fmt.Errorf("%s_SEMANTIC_THRESHOLD must be within [-1, 1]", envPrefix)
	}
	for name, v := range map[string]float64{
		"LEXICAL_TOKEN_WEIGHT":         c.TokenWeight,
		"LEXICAL_SYNONYM_WEIGHT":       c.SynonymWeight,
		"LEXICAL_MULTI_MATCH_BONUS":    c.MultiMatchBonus,
		"LEXICAL_MARKER_BONUS":         c.MarkerBonus,
		"LEXICAL_INSTITUTION_BONUS":    c.InstitutionBonus,
		"LEXICAL_POSITION_BONUS":       c.PositionBonus,
		"LEXICAL_POSITION_WINDOW":      float64(c.PositionWindow),
		"LEXICAL_PRIMARY_SOURCE_BONUS": c.PrimarySourceBonus,
		"LEXICAL_SHORT_PENALTY":        c.ShortPenalty,
		"LEXICAL_MIN_PARAGRAPH_RUNES":  float64(c.MinParagraphRunes),
		"LEXICAL_TESTIMONIAL_PENALTY":  c.TestimonialPenalty,
		"SNIPPET_MAX_RUNES":            float64(c.SnippetMaxRunes),
	} {
		if v < 0 {
			return fmt.Errorf("%s_%s must not be negative", envPrefix, name)
		}
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// HasOpenAI reports whether an embedding endpoint is configured. A custom
// base URL (e.g. a local Ollama) does not need an API key.
func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != "" || c.EmbeddingBaseURL != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
