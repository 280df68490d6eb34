// Package ingest turns one changed file into indexed documents.
//
// The flow is gate check, read, chunk, embed, one bulk write, stale cleanup
// and finally the gate commit. The gate only advances after the bulk write
// succeeded, so a failed file is retried on its next event.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Creeper5261/Rikki-sub002/internal/chunk"
	"github.com/Creeper5261/Rikki-sub002/internal/docstore"
	"github.com/Creeper5261/Rikki-sub002/internal/embed"
	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
	"github.com/Creeper5261/Rikki-sub002/internal/event"
	"github.com/Creeper5261/Rikki-sub002/internal/hashgate"
	"github.com/Creeper5261/Rikki-sub002/internal/workspace"
)

// DefaultMaxFileBytes caps the size of an ingested file.
const DefaultMaxFileBytes = 10 * 1024 * 1024

// sampleChunks is how many chunks per file are logged individually.
const sampleChunks = 3

// Store is the subset of the document store the pipeline writes to.
type Store interface {
	BulkIndex(ctx context.Context, index string, docs []docstore.Document) error
	DeleteStale(ctx context.Context, index, filePath, generation string) (int, error)
	DeleteByFile(ctx context.Context, index, filePath string) (int, error)
}

// Result describes one IngestOne call.
type Result struct {
	Skipped       bool
	ChunkCount    int
	EmbedDuration time.Duration
}

// Options configures a Pipeline.
type Options struct {
	// Repo is stored on every document.
	Repo string

	MaxFileBytes int64
}

// Pipeline ingests files one at a time. It is safe to share between
// goroutines as long as its dependencies are.
type Pipeline struct {
	gate     hashgate.Gate
	chunker  chunk.Chunker
	embedder embed.Embedder
	store    Store
	repo     string
	maxBytes int64
}

// NewPipeline wires a pipeline.
func NewPipeline(gate hashgate.Gate, chunker chunk.Chunker, embedder embed.Embedder, store Store, opts Options) *Pipeline {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if opts.Repo == "" {
		opts.Repo = "code-agent"
	}
	return &Pipeline{
		gate:     gate,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		repo:     opts.Repo,
		maxBytes: opts.MaxFileBytes,
	}
}

// IngestOne indexes root/path unless the gate already holds expectedHash.
// An empty expectedHash is replaced by the hash of the content read.
func (p *Pipeline) IngestOne(ctx context.Context, root, path, expectedHash string) (Result, error) {
	start := time.Now()

	rel, err := validate(root, path)
	if err != nil {
		return Result{}, err
	}

	skip, err := p.gate.ShouldSkip(ctx, root, rel, expectedHash)
	if err != nil {
		return Result{}, err
	}
	if skip {
		slog.Info("ingest_skipped", slog.String("path", rel), slog.String("reason", "unchanged"))
		return Result{Skipped: true}, nil
	}

	index := workspace.IndexName(root)
	slog.Info("ingest_start",
		slog.String("index", index),
		slog.String("repo", p.repo),
		slog.String("path", rel),
		slog.String("hash", expectedHash))

	content, err := p.read(root, rel)
	if err != nil {
		return Result{}, err
	}
	generation := expectedHash
	if generation == "" {
		generation = event.HashBytes(content)
	}

	chunkStart := time.Now()
	chunks, err := p.chunker.Chunk(ctx, &chunk.FileInput{Path: rel, Content: content})
	if err != nil {
		return Result{}, apperrors.New(apperrors.ErrCodeChunkingFailed, "failed to chunk "+rel, err)
	}
	slog.Debug("ingest_chunked",
		slog.String("path", rel),
		slog.Int("chunks", len(chunks)),
		slog.Duration("took", time.Since(chunkStart)))

	docs, embedTook, err := p.embed(ctx, rel, chunks, generation)
	if err != nil {
		return Result{}, err
	}

	if err := p.store.BulkIndex(ctx, index, docs); err != nil {
		slog.Warn("ingest_failed", slog.String("path", rel), slog.String("error", err.Error()))
		return Result{}, err
	}

	// The fresh fragments are written; leftovers from older versions are
	// only a cleanup concern.
	if deleted, err := p.store.DeleteStale(ctx, index, rel, generation); err != nil {
		slog.Warn("ingest_stale_cleanup_failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
	} else if deleted > 0 {
		slog.Info("ingest_stale_deleted", slog.String("path", rel), slog.Int("deleted", deleted))
	}

	if err := p.gate.Commit(ctx, root, rel, generation); err != nil {
		return Result{}, err
	}

	slog.Info("ingest_ok",
		slog.String("path", rel),
		slog.Int("chunks", len(chunks)),
		slog.Duration("embed", embedTook),
		slog.Duration("took", time.Since(start)))
	return Result{ChunkCount: len(chunks), EmbedDuration: embedTook}, nil
}

// Remove deletes every document for root/path and clears its gate entry.
func (p *Pipeline) Remove(ctx context.Context, root, path string) error {
	rel, err := validate(root, path)
	if err != nil {
		return err
	}
	index := workspace.IndexName(root)

	deleted, err := p.store.DeleteByFile(ctx, index, rel)
	if err != nil {
		return err
	}
	if err := p.gate.Forget(ctx, root, rel); err != nil {
		return err
	}
	slog.Info("ingest_removed",
		slog.String("index", index),
		slog.String("path", rel),
		slog.Int("deleted", deleted))
	return nil
}

func (p *Pipeline) read(root, rel string) ([]byte, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.ErrCodeFileNotFound, "file not found: "+rel, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, err)
	}
	if info.Size() > p.maxBytes {
		return nil, apperrors.New(apperrors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s is %d bytes, limit is %d", rel, info.Size(), p.maxBytes), nil)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, err)
	}
	return content, nil
}

func (p *Pipeline) embed(ctx context.Context, rel string, chunks []*chunk.Chunk, generation string) ([]docstore.Document, time.Duration, error) {
	if len(chunks) == 0 {
		return nil, 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embedStart := time.Now()
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	took := time.Since(embedStart)
	if err != nil {
		return nil, took, apperrors.New(apperrors.ErrCodeEmbeddingFailed, "failed to embed "+rel, err)
	}
	if len(vecs) != len(chunks) {
		return nil, took, apperrors.New(apperrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("got %d vectors for %d chunks", len(vecs), len(chunks)), nil)
	}

	docs := make([]docstore.Document, len(chunks))
	for i, c := range chunks {
		if i < sampleChunks {
			slog.Debug("ingest_embed_sample",
				slog.String("path", rel),
				slog.String("chunk_id", c.ID),
				slog.String("kind", c.Kind),
				slog.String("name", c.Name),
				slog.Int("start_line", c.StartLine),
				slog.Int("end_line", c.EndLine),
				slog.Int("vec_dims", len(vecs[i])))
		}
		docs[i] = docstore.Document{
			ID:            c.ID,
			Repo:          p.repo,
			Language:      c.Language,
			FilePath:      c.FilePath,
			SymbolKind:    c.Kind,
			SymbolName:    c.Name,
			Signature:     c.Signature,
			StartLine:     c.StartLine,
			EndLine:       c.EndLine,
			Content:       c.Content,
			Generation:    generation,
			ContentVector: vecs[i],
		}
	}
	return docs, took, nil
}

// validate checks root and path and returns path in slash form relative to root.
func validate(root, path string) (string, error) {
	if strings.TrimSpace(root) == "" || strings.TrimSpace(path) == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "root and path are required", nil)
	}
	rel := strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(path), "\\", "/"), "./")
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", apperrors.New(apperrors.ErrCodeInvalidPath, "path escapes the workspace root: "+path, nil)
	}
	return rel, nil
}
