// Package ocrapi is the client for the external document OCR service.
package ocrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// DefaultBaseURL is the service's API root.
	DefaultBaseURL = "http://localhost:8080/api/v1"

	// DefaultAuthHeader carries the credential.
	DefaultAuthHeader = "Authorization"

	// RequestIDHeader is set on every outgoing request.
	RequestIDHeader = "X-Request-ID"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the service API root, including the /api/v1 prefix.
	BaseURL string
	// Credential is sent in AuthHeader on authenticated calls.
	Credential Credential
	// AuthHeader defaults to Authorization.
	AuthHeader string
	// Timeout bounds a single request. Synchronous uploads run the whole
	// OCR pipeline, so this is long by default.
	Timeout time.Duration
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client issues requests to the OCR service. It never retries data calls.
type Client struct {
	baseURL    string
	credential Credential
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new OCR service client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultAuthHeader
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		credential: cfg.Credential,
		authHeader: cfg.AuthHeader,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// CredentialPresent reports whether authenticated calls can be attempted.
func (c *Client) CredentialPresent() bool {
	return c.credential.Present()
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitUpload uploads a document and waits for the service to process it.
func (c *Client) SubmitUpload(ctx context.Context, up UploadRequest) (*JobResult, error) {
	body, contentType, err := encodeUpload(up, false)
	if err != nil {
		return nil, err
	}
	var result JobResult
	if err := c.do(ctx, http.MethodPost, "/get", body, contentType, true, jobResultSchema, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitUploadAsync uploads a document and returns as soon as the job is queued.
func (c *Client) SubmitUploadAsync(ctx context.Context, up UploadRequest) (*JobAccepted, error) {
	body, contentType, err := encodeUpload(up, true)
	if err != nil {
		return nil, err
	}
	var accepted JobAccepted
	if err := c.do(ctx, http.MethodPost, "/get", body, contentType, true, nil, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

// ListJobs returns the service's job records, newest first.
func (c *Client) ListJobs(ctx context.Context, filter ListFilter) ([]Job, error) {
	path := "/jobs"
	params := url.Values{}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Status != "" {
		params.Set("status", string(filter.Status))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var jobs []Job
	if err := c.do(ctx, http.MethodGet, path, nil, "", true, jobListSchema, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return jobs, nil
}

// GetStats returns the aggregate job counters.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, "", true, statsSchema, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetResult fetches the full result of a job. A job that is still running
// yields an *InProgressError.
func (c *Client) GetResult(ctx context.Context, jobID string) (*JobResult, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, &ValidationError{Field: "job_id", Message: fmt.Sprintf("잘못된 작업 ID입니다: %q", jobID)}
	}

	var result JobResult
	err = c.do(ctx, http.MethodGet, "/result/"+id.String(), nil, "", true, jobResultSchema, &result)
	if err != nil {
		if progErr, ok := err.(*InProgressError); ok {
			progErr.JobID = jobID
		}
		return nil, err
	}
	return &result, nil
}

// Health checks the service's liveness endpoint. It needs no credential.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, "", false, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unhealthy status: %q", resp.Status)
	}
	return nil
}

// Version returns the service name and version. It needs no credential.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := c.do(ctx, http.MethodGet, "/version", nil, "", false, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// WaitReady polls Health about once per second until it succeeds or the
// timeout elapses.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	attempts := uint(timeout.Seconds())
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		func() error {
			return c.Health(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("OCR service not ready", "attempt", n+1, "error", err)
		}),
	)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, auth bool, schema *jsonschema.Schema, result any) error {
	var token string
	if auth {
		t, ok := c.credential.Token()
		if !ok {
			return missingCredential()
		}
		token = t
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &RequestError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.Header.Set(c.authHeader, token)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("OCR request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return &RequestError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("OCR request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	return c.handleResponse(resp, schema, result)
}

func (c *Client) handleResponse(resp *http.Response, schema *jsonschema.Schema, result any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusAccepted {
		return &InProgressError{Detail: parseDetail(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{Status: resp.StatusCode, Detail: parseDetail(body)}
	}

	if result == nil {
		return nil
	}
	if err := validateBody(schema, body); err != nil {
		return &RequestError{Status: resp.StatusCode, Err: err}
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &RequestError{Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// errorBody covers both error shapes the service emits.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

// parseDetail extracts a human-readable message. Structured details
// (validation arrays) are ignored so callers fall back to their own text.
func parseDetail(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil {
		return ""
	}
	if len(eb.Detail) > 0 {
		var s string
		if json.Unmarshal(eb.Detail, &s) == nil && s != "" {
			return s
		}
	}
	return eb.Error
}

func encodeUpload(up UploadRequest, async bool) ([]byte, string, error) {
	if up.Filename == "" || up.Data == nil {
		return nil, "", &ValidationError{Field: "file", Message: MsgNoFile}
	}
	lang := up.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(up.Filename))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(up.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.WriteField("lang", string(lang)); err != nil {
		return nil, "", fmt.Errorf("failed to write lang field: %w", err)
	}
	if async {
		if err := w.WriteField("async_mode", "true"); err != nil {
			return nil, "", fmt.Errorf("failed to write async_mode field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
