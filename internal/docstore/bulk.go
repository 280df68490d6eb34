package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

// Document is one indexed code fragment.
type Document struct {
	ID            string    `json:"-"`
	Repo          string    `json:"repo"`
	Language      string    `json:"language"`
	FilePath      string    `json:"filePath"`
	SymbolKind    string    `json:"symbolKind"`
	SymbolName    string    `json:"symbolName"`
	Signature     string    `json:"signature"`
	StartLine     int       `json:"startLine"`
	EndLine       int       `json:"endLine"`
	Content       string    `json:"content"`
	Generation    string    `json:"generation,omitempty"`
	ContentVector []float32 `json:"contentVector"`
}

type bulkAction struct {
	Index bulkTarget `json:"index"`
}

type bulkTarget struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

// EncodeBulk renders docs as an NDJSON bulk body: one action line and one
// source line per document.
func EncodeBulk(index string, docs []Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i := range docs {
		if err := enc.Encode(bulkAction{Index: bulkTarget{Index: index, ID: docs[i].ID}}); err != nil {
			return nil, err
		}
		doc := docs[i]
		if doc.ContentVector == nil {
			doc.ContentVector = []float32{}
		}
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// BulkIndex writes docs to index in one request. Transport failures and
// non-2xx statuses are errors. Per-item failures are logged and tolerated.
func (c *Client) BulkIndex(ctx context.Context, index string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	start := time.Now()

	body, err := EncodeBulk(index, docs)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeIndexFailed, "failed to encode bulk body", err)
	}
	slog.Debug("bulk_start",
		slog.String("index", index),
		slog.Int("docs", len(docs)),
		slog.Int("bytes", len(body)),
		slog.Int("vec_dims", len(docs[0].ContentVector)))

	resp, err := c.do(ctx, c.timeout, http.MethodPost, "/_bulk", "application/x-ndjson", body)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeIndexFailed, "bulk request failed", err).
			WithDetail("index", index)
	}
	if !resp.ok() {
		return apperrors.New(apperrors.ErrCodeIndexFailed,
			fmt.Sprintf("bulk request failed status=%d body=%s", resp.status, truncate(string(resp.body), 512)), nil).
			WithDetail("index", index)
	}

	if bytes.Contains(resp.body, []byte(`"errors":true`)) {
		slog.Warn("bulk_partial_errors",
			slog.String("index", index),
			slog.Int("docs", len(docs)),
			slog.String("response", truncate(string(resp.body), 800)))
	}
	slog.Info("bulk_ok",
		slog.String("index", index),
		slog.Int("docs", len(docs)),
		slog.Duration("took", time.Since(start)))
	return nil
}

type termQuery struct {
	Term map[string]string `json:"term"`
}

type deleteByQuery struct {
	Query struct {
		Bool struct {
			Filter  []termQuery `json:"filter"`
			MustNot []termQuery `json:"must_not,omitempty"`
		} `json:"bool"`
	} `json:"query"`
}

// DeleteStale removes filePath's documents whose generation is not generation.
func (c *Client) DeleteStale(ctx context.Context, index, filePath, generation string) (int, error) {
	var q deleteByQuery
	q.Query.Bool.Filter = []termQuery{{Term: map[string]string{"filePath": filePath}}}
	q.Query.Bool.MustNot = []termQuery{{Term: map[string]string{"generation": generation}}}
	return c.deleteByQuery(ctx, index, q)
}

// DeleteByFile removes every document for filePath.
func (c *Client) DeleteByFile(ctx context.Context, index, filePath string) (int, error) {
	var q deleteByQuery
	q.Query.Bool.Filter = []termQuery{{Term: map[string]string{"filePath": filePath}}}
	return c.deleteByQuery(ctx, index, q)
}

func (c *Client) deleteByQuery(ctx context.Context, index string, q deleteByQuery) (int, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, c.timeout, http.MethodPost, "/"+index+"/_delete_by_query?conflicts=proceed", "application/json", body)
	if err != nil {
		return 0, c.requestError("deleteByQuery", index, err)
	}
	if resp.status == http.StatusNotFound {
		return 0, nil
	}
	if !resp.ok() {
		return 0, c.requestError("deleteByQuery", index,
			fmt.Errorf("status %d: %s", resp.status, truncate(string(resp.body), 512)))
	}

	var result struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return 0, fmt.Errorf("failed to decode delete_by_query response: %w", err)
	}
	return result.Deleted, nil
}
