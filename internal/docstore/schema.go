package docstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

//go:embed mapping.json
var mappingTemplate []byte

// existsTimeout bounds the HEAD existence check.
const existsTimeout = 5 * time.Second

// IndexBody returns the index creation body with the vector dims set.
func IndexBody(dims int) ([]byte, error) {
	var body map[string]any
	if err := json.Unmarshal(mappingTemplate, &body); err != nil {
		return nil, fmt.Errorf("failed to parse mapping template: %w", err)
	}
	mappings, _ := body["mappings"].(map[string]any)
	props, _ := mappings["properties"].(map[string]any)
	vec, _ := props["contentVector"].(map[string]any)
	if vec == nil {
		return nil, fmt.Errorf("mapping template has no contentVector property")
	}
	vec["dims"] = dims
	return json.Marshal(body)
}

// IndexExists reports whether index exists. Any status other than 200 or 404 is an error.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	resp, err := c.do(ctx, existsTimeout, http.MethodHead, "/"+index, "", nil)
	if err != nil {
		return false, c.requestError("indexExists", index, err)
	}
	switch resp.status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, c.requestError("indexExists", index,
			fmt.Errorf("unexpected status %d", resp.status))
	}
}

// VectorDims reads the contentVector dims from the index mapping.
// It returns 0 when the mapping cannot be read or has no dims.
func (c *Client) VectorDims(ctx context.Context, index string) int {
	resp, err := c.do(ctx, c.timeout, http.MethodGet, "/"+index+"/_mapping", "", nil)
	if err != nil || !resp.ok() {
		return 0
	}

	var root map[string]struct {
		Mappings struct {
			Properties struct {
				ContentVector struct {
					Dims int `json:"dims"`
				} `json:"contentVector"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(resp.body, &root); err != nil {
		return 0
	}
	if idx, ok := root[index]; ok {
		return idx.Mappings.Properties.ContentVector.Dims
	}
	// Aliased indexes answer under the concrete name.
	for _, idx := range root {
		return idx.Mappings.Properties.ContentVector.Dims
	}
	return 0
}

// CreateIndex creates index with the mapping template at dims.
func (c *Client) CreateIndex(ctx context.Context, index string, dims int) error {
	body, err := IndexBody(dims)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, err)
	}
	slog.Info("index_create_start",
		slog.String("index", index),
		slog.Int("dims", dims),
		slog.Int("body_bytes", len(body)))

	resp, err := c.do(ctx, c.timeout, http.MethodPut, "/"+index, "application/json", body)
	if err != nil {
		return c.requestError("createIndex", index, err)
	}
	if !resp.ok() {
		return c.requestError("createIndex", index,
			fmt.Errorf("status %d: %s", resp.status, truncate(string(resp.body), 512)))
	}
	return nil
}

// DeleteIndex drops index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	slog.Info("index_delete_start", slog.String("index", index))

	resp, err := c.do(ctx, c.timeout, http.MethodDelete, "/"+index, "", nil)
	if err != nil {
		return c.requestError("deleteIndex", index, err)
	}
	if resp.status == http.StatusNotFound || resp.ok() {
		return nil
	}
	return c.requestError("deleteIndex", index,
		fmt.Errorf("status %d: %s", resp.status, truncate(string(resp.body), 512)))
}

// EnsureSchema creates index when absent and rebuilds it when the stored
// vector dims differ from the configured dims. Matching dims are a no-op.
func (c *Client) EnsureSchema(ctx context.Context, index string) error {
	start := time.Now()

	exists, err := c.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		existing := c.VectorDims(ctx, index)
		if existing == 0 || existing == c.dims {
			slog.Info("index_ensure_skip",
				slog.String("index", index),
				slog.Int("existing_dims", existing),
				slog.Int("desired_dims", c.dims))
			return nil
		}
		return c.ReindexWithDimensions(ctx, index, existing, c.dims)
	}

	if err := c.CreateIndex(ctx, index, c.dims); err != nil {
		return err
	}
	slog.Info("index_ensure_ok",
		slog.String("index", index),
		slog.Int("dims", c.dims),
		slog.Duration("took", time.Since(start)))
	return nil
}

// ReindexWithDimensions drops index and recreates it at dims.
// Every document in the index is lost and must be re-ingested.
func (c *Client) ReindexWithDimensions(ctx context.Context, index string, existing, dims int) error {
	slog.Warn("index_recreate_data_loss",
		slog.String("index", index),
		slog.Int("existing_dims", existing),
		slog.Int("desired_dims", dims))

	if err := c.DeleteIndex(ctx, index); err != nil {
		return err
	}
	return c.CreateIndex(ctx, index, dims)
}
