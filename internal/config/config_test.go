package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("RAG_PORT", "9090")
	t.Setenv("RAG_DEBUG", "true")
	t.Setenv("RAG_LOG_FORMAT", "text")
	t.Setenv("RAG_CHUNK_SIZE", "200")
	t.Setenv("RAG_CHUNK_OVERLAP", "20")
	t.Setenv("RAG_EMBEDDING_PROVIDER", "openai")
	t.Setenv("RAG_OPENAI_API_KEY", "sk-test")
	t.Setenv("RAG_EMBEDDING_TIMEOUT", "5s")
	t.Setenv("RAG_INDEX_BACKEND", "s3")
	t.Setenv("RAG_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("RAG_S3_ACCESS_KEY_ID", "key")
	t.Setenv("RAG_S3_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 200, cfg.ChunkSize)
	assert.Equal(t, 20, cfg.ChunkOverlap)
	assert.Equal(t, EmbeddingProviderOpenAI, cfg.EmbeddingProvider)
	assert.Equal(t, 5*time.Second, cfg.EmbeddingTimeout)
	assert.Equal(t, IndexBackendS3, cfg.IndexBackend)
	assert.True(t, cfg.HasS3())
	assert.True(t, cfg.HasOpenAI())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, int64(5<<20), cfg.MaxBodyBytes)
	assert.Equal(t, "data/raw", cfg.DataDir)
	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.InDelta(t, 0.10, cfg.ChunkSnapTolerance, 1e-9)
	assert.Equal(t, EmbeddingProviderLocal, cfg.EmbeddingProvider)
	assert.Empty(t, cfg.EmbeddingModel)
	assert.Equal(t, 384, cfg.EmbeddingDimension)
	assert.Equal(t, 32, cfg.EmbeddingBatchSize)
	assert.Equal(t, 4, cfg.EmbeddingWorkers)
	assert.Equal(t, 30*time.Second, cfg.EmbeddingTimeout)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 20, cfg.MaxTopK)
	assert.InDelta(t, 0.65, cfg.MinScore, 1e-9)
	assert.InDelta(t, 0.80, cfg.HighThreshold, 1e-9)
	assert.InDelta(t, 0.65, cfg.MediumThreshold, 1e-9)
	assert.Zero(t, cfg.EvalMinScore)
	assert.Equal(t, 2000, cfg.MaxContextLength)
	assert.Equal(t, IndexBackendFile, cfg.IndexBackend)
	assert.Equal(t, "data/processed/index.ragx", cfg.IndexPath)
	assert.Equal(t, "ragcore-index", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, 2*time.Second, cfg.IngestPollInterval)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("RAG_CHUNK_SIZE", "lots")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_SIZE")
}

func TestLoad_BackendRequirements(t *testing.T) {
	t.Setenv("RAG_INDEX_BACKEND", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func validConfig() *Config {
	return &Config{
		ChunkSize:          300,
		ChunkOverlap:       50,
		ChunkSnapTolerance: 0.1,
		EmbeddingProvider:  EmbeddingProviderLocal,
		EmbeddingDimension: 384,
		TopK:               5,
		MaxTopK:            20,
		MinScore:           0.65,
		HighThreshold:      0.8,
		MediumThreshold:    0.65,
		MaxContextLength:   2000,
		MaxBodyBytes:       1 << 20,
		IndexBackend:       IndexBackendFile,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = 300 }, "CHUNK_OVERLAP"},
		{"tolerance of one", func(c *Config) { c.ChunkSnapTolerance = 1 }, "CHUNK_SNAP_TOLERANCE"},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }, "EMBEDDING_DIMENSION"},
		{"top k above max", func(c *Config) { c.TopK = 30 }, "TOP_K"},
		{"min score above one", func(c *Config) { c.MinScore = 1.5 }, "MIN_SCORE"},
		{"zero body limit", func(c *Config) { c.MaxBodyBytes = 0 }, "MAX_BODY_BYTES"},
		{"thresholds inverted", func(c *Config) { c.MediumThreshold = 0.9 }, "MEDIUM_THRESHOLD"},
		{"openai without key", func(c *Config) { c.EmbeddingProvider = EmbeddingProviderOpenAI }, "OPENAI_API_KEY"},
		{"unknown provider", func(c *Config) { c.EmbeddingProvider = "onnx" }, "EMBEDDING_PROVIDER"},
		{"unknown backend", func(c *Config) { c.IndexBackend = "redis" }, "INDEX_BACKEND"},
		{"s3 without credentials", func(c *Config) { c.IndexBackend = IndexBackendS3 }, "S3_ENDPOINT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHasS3(t *testing.T) {
	cfg := &Config{
		S3Endpoint:  "http://localhost:9000",
		S3AccessKey: "key",
		S3SecretKey: "secret",
	}
	assert.True(t, cfg.HasS3())

	cfg.S3Endpoint = ""
	assert.False(t, cfg.HasS3())
}

func TestHasOpenAI(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "sk-test"}
	assert.True(t, cfg.HasOpenAI())

	cfg.OpenAIAPIKey = ""
	assert.False(t, cfg.HasOpenAI())
}

func TestHasDatabase(t *testing.T) {
	assert.True(t, (&Config{DatabaseURL: "postgres://x"}).HasDatabase())
	assert.False(t, (&Config{}).HasDatabase())
}

func TestVariables(t *testing.T) {
	vars := Variables()
	byName := make(map[string]Variable, len(vars))
	for _, v := range vars {
		byName[v.Name] = v
	}

	assert.Equal(t, "RAG_PORT", vars[0].Name)
	assert.Equal(t, Variable{Name: "RAG_CHUNK_SIZE", Type: "int", Default: "300"}, byName["RAG_CHUNK_SIZE"])
	assert.Equal(t, "time.Duration", byName["RAG_INGEST_POLL_INTERVAL"].Type)
	assert.Equal(t, "2s", byName["RAG_INGEST_POLL_INTERVAL"].Default)
	assert.True(t, byName["RAG_OPENAI_API_KEY"].Secret)
	assert.False(t, byName["RAG_INDEX_PATH"].Secret)
	assert.Len(t, vars, reflect.TypeOf(Config{}).NumField())
}
