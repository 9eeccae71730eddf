package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIURL    = "RAG_API_URL"
	envAPIPrefix = "RAG_API_PREFIX"

	defaultAPIURL    = "http://localhost:8080"
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 60 * time.Second
)

type APIClient struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
}

// NewAPIClientWithCmd creates an APIClient with config cascade: flag → env → global config → default
// If cmd is nil, skips flag checking
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	var flagURL string
	if cmd != nil {
		flagURL, _ = cmd.Flags().GetString("api-url")
	}
	_, baseURL := ResolveAPIURL(flagURL)
	if !IsValidAPIURL(baseURL) {
		return nil, fmt.Errorf("invalid API URL %q", baseURL)
	}

	prefix := os.Getenv(envAPIPrefix)
	if prefix == "" {
		globalConfig, err := LoadGlobalConfig()
		if err != nil {
			return nil, err
		}
		if globalConfig != nil {
			prefix = globalConfig.APIPrefix
		}
	}
	if prefix == "" {
		prefix = defaultAPIPrefix
	}

	return NewAPIClientWithConfig(baseURL, prefix), nil
}

func NewAPIClient(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()
	return NewAPIClientWithCmd(cmd)
}

// NewAPIClientWithConfig creates an APIClient with an explicit base URL and
// route prefix.
func NewAPIClientWithConfig(baseURL, prefix string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "/" + strings.Trim(prefix, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// BaseURL returns the server address requests are sent to.
func (c *APIClient) BaseURL() string { return c.baseURL }

// APIResponse represents the standard API response format. Endpoints that
// answer without the envelope keep their body in Raw.
type APIResponse struct {
	StatusCode int             `json:"-"`
	Location   string          `json:"-"`
	Raw        json.RawMessage `json:"-"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Decode unmarshals the envelope's data, or the whole body when there is no
// envelope.
func (r *APIResponse) Decode(v any) error {
	body := r.Data
	if len(body) == 0 {
		body = r.Raw
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Get performs a GET request against a path under the API prefix.
func (c *APIClient) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.do(ctx, http.MethodGet, c.prefix+path, nil)
}

// Post performs a POST request with JSON body against a path under the API
// prefix.
func (c *APIClient) Post(ctx context.Context, path string, body any) (*APIResponse, error) {
	return c.do(ctx, http.MethodPost, c.prefix+path, body)
}

// Health calls the unprefixed health endpoint.
func (c *APIClient) Health(ctx context.Context) (*APIResponse, error) {
	return c.do(ctx, http.MethodGet, "/health", nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body any) (*APIResponse, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
		Code  string          `json:"code"`
	}
	parseErr := json.Unmarshal(respBody, &envelope)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: envelope.Code, Message: envelope.Error}
		if parseErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
		Raw:        respBody,
		Data:       envelope.Data,
		Error:      envelope.Error,
	}, nil
}
