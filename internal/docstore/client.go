// Package docstore talks to the Elasticsearch document store over its REST API.
//
// One index exists per workspace. Documents are code fragments with a dense
// vector; similarity queries are a linear script_score scan.
package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

const (
	// DefaultURL is the default Elasticsearch endpoint.
	DefaultURL = "http://localhost:9200"

	// DefaultDimensions matches the default embedding size.
	DefaultDimensions = 2048

	// DefaultRequestTimeout bounds schema and bulk requests.
	DefaultRequestTimeout = 8 * time.Second

	// SearchTimeout bounds a single similarity request.
	SearchTimeout = 4 * time.Second

	// SearchRetries is the number of retries after a failed similarity request.
	SearchRetries = 1

	// SearchBackoff is multiplied by the attempt number between retries.
	SearchBackoff = 120 * time.Millisecond
)

// Config configures the client.
type Config struct {
	URL        string
	Dimensions int
	Timeout    time.Duration

	// CircuitBreaker guards similarity requests when non-nil.
	CircuitBreaker *apperrors.CircuitBreaker

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client is an Elasticsearch REST client scoped to what indexing and search need.
type Client struct {
	baseURL string
	dims    int
	timeout time.Duration
	breaker *apperrors.CircuitBreaker
	http    *http.Client
}

// New creates a client. It performs no network calls.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		dims:    cfg.Dimensions,
		timeout: cfg.Timeout,
		breaker: cfg.CircuitBreaker,
		http:    hc,
	}
}

// Dimensions returns the configured vector size.
func (c *Client) Dimensions() int { return c.dims }

// URL returns the base endpoint.
func (c *Client) URL() string { return c.baseURL }

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// do sends one request with its own timeout and reads the whole body.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path, contentType string, body []byte) (response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return response{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("failed to read response: %w", err)
	}
	return response{status: resp.StatusCode, body: data}, nil
}

// requestError wraps a transport failure with the action and endpoint.
func (c *Client) requestError(action, index string, err error) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeStoreRequest,
		fmt.Sprintf("elasticsearch request failed action=%s index=%s", action, index), err).
		WithDetail("url", c.baseURL).
		WithSuggestion("Check elasticsearch.url in .codeagent.yaml or CODEAGENT_ES_URL")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
