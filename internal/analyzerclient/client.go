// Package analyzerclient is the JSON-over-HTTP client for the external
// Analyzer service: a readiness probe, and the per-commit analyze request
// that returns PMD-style findings for a batch of file contents.
package analyzerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
)

// FileInput is one file's content submitted for analysis.
type FileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// AnalyzeRequest is the body of a POST /analyze call.
type AnalyzeRequest struct {
	RulesetPath string      `json:"ruleset_path"`
	AuxJars     []string    `json:"aux_jars,omitempty"`
	Files       []FileInput `json:"files"`
}

// AnalyzeResponse is the body of a successful /analyze response.
type AnalyzeResponse struct {
	Findings []mining.Finding `json:"findings"`
}

// Client calls a single Analyzer instance over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
}

// New builds a Client targeting baseURL, with analyzeTimeout applied to
// each individual /analyze call and maxRetries transport-error retries
// per call.
func New(baseURL string, analyzeTimeout time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: analyzeTimeout},
		baseURL:    baseURL,
		maxRetries: maxRetries,
	}
}

// WaitReady polls the Analyzer's health endpoint with exponential backoff
// until it answers 200 OK or timeout elapses.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 200 * time.Millisecond
	boff.MaxInterval = 5 * time.Second

	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("probe analyzer: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("analyzer not ready: status %d", resp.StatusCode)
		}

		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(boff), backoff.WithMaxElapsedTime(timeout))
	if err != nil {
		return fmt.Errorf("%w: %w", mining.ErrAnalyzerUnreachable, err)
	}

	return nil
}

// Analyze submits req and returns the findings. Transport-level failures
// (connection refused, timeout) are retried up to maxRetries times, waiting
// 500ms before the first retry and 2s before each later one; an HTTP 5xx
// response is not retried, since the
// Analyzer is expected to be deterministic for a given request and a
// repeated call would fail identically.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("%w: encode request: %w", mining.ErrAnalyzerProtocol, err)
	}

	operation := func() (AnalyzeResponse, error) {
		return c.doAnalyze(ctx, body)
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 500 * time.Millisecond
	boff.Multiplier = 4
	boff.RandomizationFactor = 0
	boff.MaxInterval = 2 * time.Second

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(boff),
		backoff.WithMaxTries(uint(c.maxRetries+1)), //nolint:gosec
	)
	if err != nil {
		return AnalyzeResponse{}, err
	}

	return result, nil
}

func (c *Client) doAnalyze(ctx context.Context, body []byte) (AnalyzeResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return AnalyzeResponse{}, backoff.Permanent(fmt.Errorf("%w: build request: %w", mining.ErrAnalyzerProtocol, err))
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("%w: %w", mining.ErrAnalyzerUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return AnalyzeResponse{}, backoff.Permanent(fmt.Errorf("%w: read response: %w", mining.ErrAnalyzerProtocol, readErr))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return AnalyzeResponse{}, backoff.Permanent(
			fmt.Errorf("%w: status %d: %s", mining.ErrAnalyzerInternal, resp.StatusCode, string(respBody)))
	}

	if resp.StatusCode != http.StatusOK {
		return AnalyzeResponse{}, backoff.Permanent(
			fmt.Errorf("%w: unexpected status %d: %s", mining.ErrAnalyzerProtocol, resp.StatusCode, string(respBody)))
	}

	var parsed AnalyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return AnalyzeResponse{}, backoff.Permanent(fmt.Errorf("%w: decode response: %w", mining.ErrAnalyzerProtocol, err))
	}

	return parsed, nil
}
