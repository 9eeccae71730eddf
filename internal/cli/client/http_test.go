package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_PostDecodesEnvelope(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"query":"q","total_found":3}}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL+"/", "api/v1/")
	resp, err := api.Post(context.Background(), "/search", map[string]string{"query": "q"})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/search", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "q", gotBody["query"])

	var out struct {
		Query      string `json:"query"`
		TotalFound int    `json:"total_found"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, 3, out.TotalFound)
}

func TestAPIClient_HealthWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","total_chunks":12}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL, "/api/v1")
	resp, err := api.Health(context.Background())
	require.NoError(t, err)

	var out struct {
		Status      string `json:"status"`
		TotalChunks int    `json:"total_chunks"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, 12, out.TotalChunks)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"k must be between 1 and 100","code":"VALIDATION_ERROR"}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL, "/api/v1")
	_, err := api.Post(context.Background(), "/search", map[string]int{"k": 0})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "k must be between 1 and 100", apiErr.Message)
}

func TestAPIClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL, "/api/v1")
	_, err := api.Get(context.Background(), "/stats")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestAPIClient_LocationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/api/v1/ingest/job-1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"data":{"id":"job-1","status":"pending"}}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig(srv.URL, "/api/v1")
	resp, err := api.Post(context.Background(), "/ingest", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "/api/v1/ingest/job-1", resp.Location)
}

func TestNewAPIClientWithCmd_RejectsInvalidURL(t *testing.T) {
	t.Setenv(envAPIURL, "not-a-url")
	useConfigPath(t)

	_, err := NewAPIClientWithCmd(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API URL")
}

func TestNewAPIClientWithCmd_PrefixFromGlobalConfig(t *testing.T) {
	t.Setenv(envAPIURL, "")
	t.Setenv(envAPIPrefix, "")
	writeConfig(t, useConfigPath(t), GlobalConfig{APIURL: "http://global:8080", APIPrefix: "/v2"})

	api, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://global:8080", api.BaseURL())
	assert.Equal(t, "/v2", api.prefix)
}
