package config

import (
	"fmt"
	"log"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// Prefix is the environment variable prefix for every setting.
const Prefix = "RAG"

const (
	EmbeddingProviderLocal  = "local"
	EmbeddingProviderOpenAI = "openai"

	IndexBackendFile     = "file"
	IndexBackendS3       = "s3"
	IndexBackendPostgres = "postgres"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	APIPrefix   string `envconfig:"API_PREFIX" default:"/api/v1"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN" secret:"true"`

	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"5242880"`

	DataDir string `envconfig:"DATA_DIR" default:"data/raw"`

	ChunkSize          int     `envconfig:"CHUNK_SIZE" default:"300"`
	ChunkOverlap       int     `envconfig:"CHUNK_OVERLAP" default:"50"`
	ChunkSnapTolerance float64 `envconfig:"CHUNK_SNAP_TOLERANCE" default:"0.10"`

	EmbeddingProvider  string        `envconfig:"EMBEDDING_PROVIDER" default:"local"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimension int           `envconfig:"EMBEDDING_DIMENSION" default:"384"`
	EmbeddingBatchSize int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"32"`
	EmbeddingWorkers   int           `envconfig:"EMBEDDING_WORKERS" default:"4"`
	EmbeddingTimeout   time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`
	EmbeddingRateLimit float64       `envconfig:"EMBEDDING_RATE_LIMIT" default:"0"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" secret:"true"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	TopK             int     `envconfig:"TOP_K" default:"5"`
	MaxTopK          int     `envconfig:"MAX_TOP_K" default:"20"`
	MinScore         float64 `envconfig:"MIN_SCORE" default:"0.65"`
	HighThreshold    float64 `envconfig:"HIGH_THRESHOLD" default:"0.80"`
	MediumThreshold  float64 `envconfig:"MEDIUM_THRESHOLD" default:"0.65"`
	EvalMinScore     float64 `envconfig:"EVAL_MIN_SCORE" default:"0.0"`
	MaxContextLength int     `envconfig:"MAX_CONTEXT_LENGTH" default:"2000"`

	IndexBackend string `envconfig:"INDEX_BACKEND" default:"file"`
	IndexPath    string `envconfig:"INDEX_PATH" default:"data/processed/index.ragx"`

	DatabaseURL string `envconfig:"DATABASE_URL" secret:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID" secret:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY" secret:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"ragcore-index"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	IngestPollInterval time.Duration `envconfig:"INGEST_POLL_INTERVAL" default:"2s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
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

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.ChunkSize <= 0 {
		add("CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		add("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.ChunkSnapTolerance < 0 || c.ChunkSnapTolerance >= 1 {
		add("CHUNK_SNAP_TOLERANCE must be in [0, 1)")
	}
	if c.EmbeddingDimension <= 0 {
		add("EMBEDDING_DIMENSION must be positive")
	}
	if c.TopK <= 0 || c.MaxTopK < c.TopK {
		add("TOP_K must be positive and not exceed MAX_TOP_K")
	}
	for name, v := range map[string]float64{
		"MIN_SCORE":        c.MinScore,
		"HIGH_THRESHOLD":   c.HighThreshold,
		"MEDIUM_THRESHOLD": c.MediumThreshold,
		"EVAL_MIN_SCORE":   c.EvalMinScore,
	} {
		if v < 0 || v > 1 {
			add("%s must be in [0, 1]", name)
		}
	}
	if c.MediumThreshold > c.HighThreshold {
		add("MEDIUM_THRESHOLD must not exceed HIGH_THRESHOLD")
	}
	if c.MaxContextLength <= 0 {
		add("MAX_CONTEXT_LENGTH must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		add("MAX_BODY_BYTES must be positive")
	}

	switch c.EmbeddingProvider {
	case EmbeddingProviderLocal:
	case EmbeddingProviderOpenAI:
		if !c.HasOpenAI() {
			add("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
	default:
		add("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}

	switch c.IndexBackend {
	case IndexBackendFile:
	case IndexBackendS3:
		if !c.HasS3() {
			add("S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when INDEX_BACKEND=s3")
		}
	case IndexBackendPostgres:
		if !c.HasDatabase() {
			add("DATABASE_URL is required when INDEX_BACKEND=postgres")
		}
	default:
		add("unknown INDEX_BACKEND %q", c.IndexBackend)
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return domain.ConfigurationError("%s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Variable describes one setting read from the environment.
type Variable struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
	Secret  bool   `json:"secret,omitempty"`
}

// Variables lists every setting Load reads, in declaration order.
func Variables() []Variable {
	t := reflect.TypeOf(Config{})
	vars := make([]Variable, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key, ok := f.Tag.Lookup("envconfig")
		if !ok {
			continue
		}
		vars = append(vars, Variable{
			Name:    Prefix + "_" + key,
			Type:    f.Type.String(),
			Default: f.Tag.Get("default"),
			Secret:  f.Tag.Get("secret") == "true",
		})
	}
	return vars
}
