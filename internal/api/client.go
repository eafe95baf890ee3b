// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ligant-ai/ligant-client/internal/model"
)

// Configuration constants for the backend API.
const (
	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 32 * 1024 * 1024 // raw PDB files can be large

	// artifactRatePerSec limits artifact content fetches per second.
	artifactRatePerSec = 10

	// artifactBurst is the artifact fetch burst size.
	artifactBurst = 5
)

// Error variables for common backend errors.
var (
	// ErrSessionExpired indicates a 401 from any endpoint. The stored
	// credential is no longer valid and the auth layer must re-login.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoToken indicates the client has no credential configured.
	ErrNoToken = errors.New("API token not configured")
)

// APIError represents a non-success response from the backend.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is an authenticated HTTP client for the Ligant backend.
type Client struct {
	baseURL string

	mu    sync.RWMutex
	token string

	// httpClient serves request/response endpoints with a timeout.
	httpClient *http.Client

	// streamClient serves streaming endpoints; lifetime is context-controlled.
	streamClient *http.Client

	// limiter throttles artifact content fetches.
	limiter *rate.Limiter

	// breaker trips when the artifact endpoint fails repeatedly, so a dead
	// storage backend does not stall history hydration.
	breaker *gobreaker.CircuitBreaker[string]

	// onSessionExpired is invoked on every 401 response.
	onSessionExpired func()
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL, token string) *Client {
	settings := gobreaker.Settings{
		Name:    "artifact-content",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		token:        strings.TrimSpace(token),
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		streamClient: &http.Client{},
		limiter:      rate.NewLimiter(rate.Limit(artifactRatePerSec), artifactBurst),
		breaker:      gobreaker.NewCircuitBreaker[string](settings),
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithArtifactRate overrides the artifact fetch rate limit. Non-positive
// values keep the defaults.
func (c *Client) WithArtifactRate(perSec float64, burst int) *Client {
	if perSec > 0 && burst > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return c
}

// WithSessionExpiredHandler sets the callback fired on any 401 response.
func (c *Client) WithSessionExpiredHandler(fn func()) *Client {
	c.onSessionExpired = fn
	return c
}

// SetToken replaces the bearer credential.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// ClearToken discards the bearer credential.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Token returns the current bearer credential.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// IsConfigured returns true if the client has a credential.
func (c *Client) IsConfigured() bool {
	return c.Token() != ""
}

// setHeaders sets the required headers for backend requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ligant-client/0.1.0")
}

// checkStatus converts a non-success response into an error and fires the
// session-expired signal on 401.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := readResponse(resp)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		c.signalSessionExpired()
		return ErrSessionExpired
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Request.URL.Path)
	default:
		return &APIError{Status: resp.StatusCode, Message: errorDetail(body)}
	}
}

// signalSessionExpired fires the process-wide session-expired callback.
func (c *Client) signalSessionExpired() {
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

// errorDetail extracts the backend's error message from a response body.
func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(body))
}

// readResponse reads a response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// getJSON performs an authenticated GET and decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	log.Printf("API Response: %d %s (%v)", resp.StatusCode, req.URL.Path, time.Since(start))

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// =============================================================================
// CONVERSATIONS AND HISTORY
// =============================================================================

// HistoryItem is one persisted message from the history endpoint.
// Visualization references carry artifact ids only; raw structure text is
// fetched separately per message during hydration.
type HistoryItem struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ModelUsed string           `json:"model_used,omitempty"`
	CreatedAt string           `json:"created_at"`
	Metadata  *HistoryMetadata `json:"metadata,omitempty"`
}

// HistoryMetadata carries the structured extras of a persisted message.
type HistoryMetadata struct {
	ToolCalls      []ToolCallMeta `json:"tool_calls,omitempty"`
	Visualizations []string       `json:"visualizations,omitempty"`
}

// ToolCallMeta is a persisted tool invocation.
type ToolCallMeta struct {
	Name   string                 `json:"name"`
	Input  map[string]interface{} `json:"input,omitempty"`
	Result interface{}            `json:"result,omitempty"`
}

// Conversations lists the user's conversations, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var conversations []model.Conversation
	if err := c.getJSON(ctx, "/api/chat/conversations", &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// History returns the ordered message history of a conversation.
func (c *Client) History(ctx context.Context, conversationID string) ([]HistoryItem, error) {
	var items []HistoryItem
	path := "/api/chat/" + url.PathEscape(conversationID) + "/history"
	if err := c.getJSON(ctx, path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// =============================================================================
// ARTIFACT CONTENT
// =============================================================================

// ArtifactContent fetches the raw structure text for one artifact id.
// Fetches are rate limited and routed through the circuit breaker.
func (c *Client) ArtifactContent(ctx context.Context, artifactID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	return c.breaker.Execute(func() (string, error) {
		path := "/api/pdb/" + url.PathEscape(artifactID) + "/content"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("request failed: %w", err)
		}
		if err := c.checkStatus(resp); err != nil {
			return "", err
		}
		defer resp.Body.Close()

		body, err := readResponse(resp)
		if err != nil {
			return "", err
		}
		return string(body), nil
	})
}

// FetchArtifacts fetches many artifacts by id, silently omitting any that
// fail. The returned map holds only the ids that succeeded.
func (c *Client) FetchArtifacts(ctx context.Context, artifactIDs []string) map[string]string {
	contents := make(map[string]string, len(artifactIDs))
	for _, id := range artifactIDs {
		text, err := c.ArtifactContent(ctx, id)
		if err != nil {
			log.Printf("artifact fetch failed for %s: %v", id, err)
			continue
		}
		contents[id] = text
	}
	return contents
}

// StructureInfo is structural metadata for an uploaded or generated PDB.
type StructureInfo struct {
	FileID        string                   `json:"file_id"`
	Filename      string                   `json:"filename"`
	NumChains     int                      `json:"num_chains"`
	Chains        []map[string]interface{} `json:"chains"`
	TotalResidues int                      `json:"total_residues"`
	TotalAtoms    int                      `json:"total_atoms"`
}

// ArtifactInfo returns structural metadata for an artifact.
func (c *Client) ArtifactInfo(ctx context.Context, artifactID string) (*StructureInfo, error) {
	var info StructureInfo
	path := "/api/pdb/" + url.PathEscape(artifactID) + "/info"
	if err := c.getJSON(ctx, path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// =============================================================================
// DESIGN JOBS
// =============================================================================

// DesignJobRequest launches a structure generation job.
type DesignJobRequest struct {
	InputPDBID  string   `json:"input_pdb_id"`
	Contigs     string   `json:"contigs"`
	NumDesigns  int      `json:"num_designs,omitempty"`
	DiffuserT   int      `json:"diffuser_T,omitempty"`
	HotspotRes  []string `json:"hotspot_res,omitempty"`
}

// DesignJobResponse is the backend's acknowledgement of a launched job.
type DesignJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobStatusInfo is a point-in-time job status snapshot.
type JobStatusInfo struct {
	JobID       string   `json:"job_id"`
	Status      string   `json:"status"`
	Progress    *float64 `json:"progress,omitempty"`
	Message     string   `json:"message,omitempty"`
	StartedAt   string   `json:"started_at,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
}

// JobResultsInfo lists the outputs of a completed job.
type JobResultsInfo struct {
	JobID        string   `json:"job_id"`
	OutputPDBIDs []string `json:"output_pdb_ids"`
	NumDesigns   int      `json:"num_designs"`
}

// JobSummary is one entry in the user's job list.
type JobSummary struct {
	JobID        string                 `json:"job_id"`
	Status       string                 `json:"status"`
	Contigs      string                 `json:"contigs,omitempty"`
	NumDesigns   int                    `json:"num_designs,omitempty"`
	Params       map[string]interface{} `json:"params,omitempty"`
	StartedAt    string                 `json:"started_at,omitempty"`
	CompletedAt  string                 `json:"completed_at,omitempty"`
	DurationSecs float64                `json:"duration_secs,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    string                 `json:"created_at"`
}

// StartDesignJob launches a structure generation job.
func (c *Client) StartDesignJob(ctx context.Context, reqBody DesignJobRequest) (*DesignJobResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/run-rfdiffusion", strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	var jobResp DesignJobResponse
	if err := json.Unmarshal(body, &jobResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &jobResp, nil
}

// JobStatus returns a point-in-time status snapshot of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatusInfo, error) {
	var status JobStatusInfo
	path := "/api/job/" + url.PathEscape(jobID) + "/status"
	if err := c.getJSON(ctx, path, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// JobResults returns the output artifact ids of a completed job.
func (c *Client) JobResults(ctx context.Context, jobID string) (*JobResultsInfo, error) {
	var results JobResultsInfo
	path := "/api/job/" + url.PathEscape(jobID) + "/results"
	if err := c.getJSON(ctx, path, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// ListJobs returns the user's jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]JobSummary, error) {
	var jobs []JobSummary
	if err := c.getJSON(ctx, "/api/jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthStatus is the backend health probe response.
type HealthStatus struct {
	Status       string `json:"status"`
	GPUAvailable bool   `json:"gpu_available"`
	GPUName      string `json:"gpu_name,omitempty"`
}

// Health probes the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var health HealthStatus
	if err := c.getJSON(ctx, "/api/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}
