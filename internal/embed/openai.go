package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

// OpenAIConfig configures an OpenAI-compatible /embeddings endpoint
// (DashScope compatible mode, OpenAI, vLLM and similar).
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

type openAIRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Dimension int      `json:"dimension,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// OpenAIEmbedder calls a remote embeddings API.
type OpenAIEmbedder struct {
	client *http.Client
	cfg    OpenAIConfig
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates the remote embedder. It performs no network calls.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIEmbedder{client: client, cfg: cfg}
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request and orders results by index.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(openAIRequest{Model: e.cfg.Model, Input: texts, Dimension: e.cfg.Dimensions})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	retry := apperrors.RetryConfig{MaxRetries: e.cfg.MaxRetries, InitialDelay: 200 * time.Millisecond, Multiplier: 2}
	vecs, err := apperrors.RetryWithResult(ctx, retry, func() ([][]float32, error) {
		return e.do(ctx, body, len(texts))
	})
	if err != nil {
		slog.Warn("embed_remote_failed",
			slog.String("model", e.cfg.Model),
			slog.Duration("took", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, apperrors.New(apperrors.ErrCodeEmbeddingFailed, "remote embedding failed", err)
	}
	slog.Debug("embed_remote_ok",
		slog.String("model", e.cfg.Model),
		slog.Int("texts", len(texts)),
		slog.Duration("took", time.Since(start)))
	return vecs, nil
}

func (e *OpenAIEmbedder) do(ctx context.Context, body []byte, n int) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("embedding http %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Data) != n {
		return nil, fmt.Errorf("embedding response has %d items, want %d", len(parsed.Data), n)
	}

	out := make([][]float32, n)
	for i, d := range parsed.Data {
		idx := d.Index
		if idx < 0 || idx >= n {
			idx = i
		}
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, fmt.Errorf("embedding dims mismatch expected=%d actual=%d", e.cfg.Dimensions, len(d.Embedding))
		}
		v := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			v[j] = float32(f)
		}
		out[idx] = v
	}
	return out, nil
}

func (e *OpenAIEmbedder) Dimensions() int                  { return e.cfg.Dimensions }
func (e *OpenAIEmbedder) ModelName() string                { return e.cfg.Model }
func (e *OpenAIEmbedder) Available(_ context.Context) bool { return e.cfg.APIKey != "" }

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
