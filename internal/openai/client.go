package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/cloo-solutions/ragcore/internal/domain"
	"github.com/cloo-solutions/ragcore/internal/embedding"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions matches the local index default so that
	// text-embedding-3 models can be truncated to it server side.
	DefaultEmbeddingDimensions = 384
	// DefaultTimeout bounds a single embeddings request.
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrNoData is returned when the API answers without embeddings
	ErrNoData = errors.New("no embedding data returned")
)

// EmbeddingAPI defines the interface for embedding generation. Results must
// be in input order.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Client is an embedding provider backed by an OpenAI-compatible API.
type Client struct {
	api        EmbeddingAPI
	model      string
	dimensions int
	timeout    time.Duration
	limiter    *rate.Limiter
}

type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIAdapter builds an adapter. A non-empty baseURL targets any
// OpenAI-compatible server. dimensions > 0 is forwarded as the request's
// dimensions field.
func NewOpenAIAdapter(apiKey, baseURL string, model openai.EmbeddingModel, dimensions int) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      a.model,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrNoData, len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	// SendDimensions forwards EmbeddingDimensions to the API. Only
	// text-embedding-3 models accept it.
	SendDimensions bool
	Timeout        time.Duration
	// RequestsPerSecond throttles outgoing requests. Zero disables throttling.
	RequestsPerSecond float64
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey, SendDimensions: true})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = string(DefaultEmbeddingModel)
	}
	requestDims := 0
	if cfg.SendDimensions {
		requestDims = dimensions
	}
	return newClient(NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, openai.EmbeddingModel(model), requestDims),
		model, dimensions, cfg.Timeout, cfg.RequestsPerSecond)
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

func newClient(api EmbeddingAPI, model string, dimensions int, timeout time.Duration, rps float64) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		api:        api,
		model:      model,
		dimensions: dimensions,
		timeout:    timeout,
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

func (c *Client) Dimension() int    { return c.dimensions }
func (c *Client) ModelName() string { return c.model }

// Embed generates a normalized embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates normalized embeddings for texts in one request. The
// output is aligned with the input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, domain.InvalidParameterError("text %d cannot be empty", i)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, domain.EmbeddingError("rate limiter wait", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vecs, err := c.api.CreateEmbeddings(callCtx, texts)
	if err != nil {
		return nil, domain.EmbeddingError("failed to create embedding", err)
	}
	if len(vecs) != len(texts) {
		return nil, domain.EmbeddingError("provider returned wrong number of embeddings",
			fmt.Errorf("%w: got %d for %d inputs", ErrNoData, len(vecs), len(texts)))
	}

	for i, v := range vecs {
		if len(v) != c.dimensions {
			return nil, domain.EmbeddingError("provider returned wrong dimensions",
				domain.DimensionMismatchError(c.dimensions, len(v)))
		}
		vecs[i] = embedding.Normalize(v)
	}

	return vecs, nil
}
