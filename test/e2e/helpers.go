//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/ragcore/internal/api/handlers"
	"github.com/cloo-solutions/ragcore/internal/cli/admin"
	"github.com/cloo-solutions/ragcore/internal/config"
	"github.com/cloo-solutions/ragcore/internal/jobs"
	"github.com/cloo-solutions/ragcore/internal/logging"
)

// Corpus is a small document set whose topics barely overlap.
var Corpus = map[string]string{
	"ops/keys.md": `# Key rotation

Rotate signing keys every ninety days. The rotation job generates a new key
pair, publishes the public key, and retires the previous key after a grace
period so that tokens signed with the old key remain verifiable.`,
	"ops/backups.md": `# Backups

Nightly backups snapshot the primary database to object storage. Restores
are rehearsed monthly and a restore drill must finish within one hour.`,
	"guide/onboarding.txt": `New engineers receive laptop hardware on day one, pair with a buddy during
the first week, and complete the security awareness course before getting
production access.`,
}

// E2ETestEnv holds a running server and the runtime behind it
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Config     *config.Config
	Runtime    *admin.Runtime
	Worker     *jobs.Worker
	Server     *httptest.Server
	ServerURL  string
	BinaryDir  string
	HTTPClient *http.Client

	cancel context.CancelFunc
}

// WriteCorpus writes documents under a fresh directory and returns it.
func WriteCorpus(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range docs {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return dir
}

// BaseEnv returns settings shared by every scenario: the local hashing
// embedder, a small chunk size and a fast worker.
func BaseEnv(dataDir string) map[string]string {
	return map[string]string{
		"RAG_DATA_DIR":             dataDir,
		"RAG_EMBEDDING_PROVIDER":   config.EmbeddingProviderLocal,
		"RAG_EMBEDDING_DIMENSION":  "256",
		"RAG_CHUNK_SIZE":           "200",
		"RAG_CHUNK_OVERLAP":        "20",
		"RAG_MIN_SCORE":            "0.05",
		"RAG_INGEST_POLL_INTERVAL": "50ms",
		"RAG_LOG_FORMAT":           "text",
	}
}

// SetupE2EEnv loads configuration from env, builds the runtime and serves it.
func SetupE2EEnv(t *testing.T, env map[string]string) *E2ETestEnv {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt, err := admin.NewRuntime(ctx, cfg, logging.Discard(), admin.Options{})
	if err != nil {
		cancel()
		t.Fatalf("failed to build runtime: %v", err)
	}

	handler, worker := rt.Server(true)
	go worker.Start(ctx)
	srv := httptest.NewServer(handler)

	e := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Config:     cfg,
		Runtime:    rt,
		Worker:     worker,
		Server:     srv,
		ServerURL:  srv.URL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		cancel:     cancel,
	}
	t.Cleanup(e.Cleanup)
	return e
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
		e.Server = nil
	}
	if e.Worker != nil {
		e.Worker.Stop()
		e.Worker = nil
	}
	if e.Runtime != nil {
		e.Runtime.Close()
		e.Runtime = nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// HTTPError is returned for 4xx and 5xx responses.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Raw        []byte
	Data       json.RawMessage `json:"data"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

// Decode unmarshals the envelope's data into v, failing the test on error.
func (e *E2ETestEnv) Decode(resp *APIResponse, v any) {
	e.T.Helper()
	body := resp.Data
	if len(body) == 0 {
		body = resp.Raw
	}
	if err := json.Unmarshal(body, v); err != nil {
		e.T.Fatalf("failed to decode response: %v\n%s", err, resp.Raw)
	}
}

func (e *E2ETestEnv) doRequest(method, path string, body any) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error, Code: apiErr.Code}
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode, Raw: respBody}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, err
	}
	return apiResp, nil
}

// Ingest submits a job and waits for it to finish.
func (e *E2ETestEnv) Ingest(req handlers.IngestRequest) *handlers.IngestJobResponse {
	e.T.Helper()
	resp, err := e.Post(e.Config.APIPrefix+"/ingest", req)
	if err != nil {
		e.T.Fatalf("failed to submit ingest: %v", err)
	}
	var job handlers.IngestJobResponse
	e.Decode(resp, &job)
	return e.WaitForJob(job.ID, 30*time.Second)
}

// WaitForJob polls the job until it completes or fails.
func (e *E2ETestEnv) WaitForJob(id string, timeout time.Duration) *handlers.IngestJobResponse {
	e.T.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get(e.Config.APIPrefix + "/ingest/" + id)
		if err != nil {
			e.T.Fatalf("failed to get job %s: %v", id, err)
		}
		var job handlers.IngestJobResponse
		e.Decode(resp, &job)
		if job.Status == "completed" || job.Status == "failed" {
			return &job
		}
		time.Sleep(50 * time.Millisecond)
	}
	e.T.Fatalf("ingest job %s did not finish within %v", id, timeout)
	return nil
}

// Search runs a search and returns the decoded response.
func (e *E2ETestEnv) Search(query string, k int) *handlers.SearchResponse {
	e.T.Helper()
	resp, err := e.Post(e.Config.APIPrefix+"/search", handlers.SearchRequest{Query: query, K: &k})
	if err != nil {
		e.T.Fatalf("search %q failed: %v", query, err)
	}
	var out handlers.SearchResponse
	e.Decode(resp, &out)
	return &out
}

// Health fetches the unenveloped health document.
func (e *E2ETestEnv) Health() *handlers.HealthResponse {
	e.T.Helper()
	resp, err := e.Get("/health")
	if err != nil {
		e.T.Fatalf("health failed: %v", err)
	}
	var out handlers.HealthResponse
	e.Decode(resp, &out)
	return &out
}

// BuildBinaries builds the ragcore and ragcored binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "ragcore-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"ragcore", "ragcored"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunCLI runs the ragcore client against the test server
func (e *E2ETestEnv) RunCLI(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ragcore"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"RAG_API_URL="+e.ServerURL,
		"RAG_API_PREFIX="+e.Config.APIPrefix,
		"XDG_CONFIG_HOME="+workDir,
		"HOME="+workDir,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunDaemon runs a ragcored subcommand with the environment's settings
func (e *E2ETestEnv) RunDaemon(workDir string, env map[string]string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ragcored"), args...)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}
