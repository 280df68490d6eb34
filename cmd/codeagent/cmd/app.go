package cmd

import (
	"errors"
	"strings"

	"github.com/Creeper5261/Rikki-sub002/internal/broker"
	"github.com/Creeper5261/Rikki-sub002/internal/chunk"
	"github.com/Creeper5261/Rikki-sub002/internal/config"
	"github.com/Creeper5261/Rikki-sub002/internal/docstore"
	"github.com/Creeper5261/Rikki-sub002/internal/embed"
	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
	"github.com/Creeper5261/Rikki-sub002/internal/hashgate"
	"github.com/Creeper5261/Rikki-sub002/internal/ingest"
	"github.com/Creeper5261/Rikki-sub002/internal/lookup"
	"github.com/Creeper5261/Rikki-sub002/internal/scanner"
	"github.com/Creeper5261/Rikki-sub002/internal/search"
)

// app holds the components built from configuration. Parts that open
// connections or files are built on first use.
type app struct {
	cfg      *config.Config
	store    *docstore.Client
	embedder embed.Embedder

	gate      hashgate.Gate
	pipeline  *ingest.Pipeline
	transport *broker.Transport

	symbols  *lookup.SymbolIndex
	files    *lookup.FileIndex
	keywords *lookup.KeywordIndex
}

func newApp(cfg *config.Config) (*app, error) {
	embedder, err := embed.New(embed.Options{
		Provider:   embed.ParseProvider(cfg.Embeddings.Provider),
		Dimensions: cfg.Embeddings.Dimensions,
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.Host,
		APIKey:     cfg.Embeddings.APIKey,
		Timeout:    cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "failed to create embedder", err)
	}

	var breaker *apperrors.CircuitBreaker
	if cb := cfg.Elasticsearch.CircuitBreaker; cb.Enabled {
		breaker = apperrors.NewCircuitBreaker("elasticsearch",
			apperrors.WithMaxFailures(cb.MaxFailures),
			apperrors.WithResetTimeout(cb.Timeout))
	}

	return &app{
		cfg: cfg,
		store: docstore.New(docstore.Config{
			URL:            cfg.Elasticsearch.URL,
			Dimensions:     cfg.Elasticsearch.Dimensions,
			Timeout:        cfg.Elasticsearch.RequestTimeout,
			CircuitBreaker: breaker,
		}),
		embedder: embedder,
		symbols:  lookup.NewSymbolIndex(),
		files:    lookup.NewFileIndex(),
		keywords: lookup.NewKeywordIndex(),
	}, nil
}

// searcher builds the hybrid searcher. Query embeddings go through an LRU.
func (a *app) searcher() *search.Orchestrator {
	s := a.cfg.Search
	var keywords search.KeywordSearcher
	if s.KeywordFallback {
		keywords = a.keywords
	}
	query := embed.NewCachedEmbedder(a.embedder, a.cfg.Embeddings.CacheSize)
	return search.NewHybrid(search.Config{
		SourceTimeout:  s.SourceTimeout,
		OverallTimeout: s.OverallTimeout,
		SourceRetries:  s.Retries,
		RetryBackoff:   s.RetryBackoff,
		CancelMode:     strings.ToLower(s.CancelMode),
		CacheSize:      s.CacheSize,
		SnippetChars:   s.SnippetChars,
	}, a.symbols, a.files, docstore.NewVectorSearcher(a.store, query), keywords)
}

// ingestPipeline opens the hash gate and builds the pipeline.
func (a *app) ingestPipeline() (*ingest.Pipeline, error) {
	if a.pipeline != nil {
		return a.pipeline, nil
	}
	gate, err := hashgate.New(hashgate.Options{
		Backend:    a.cfg.HashGate.Backend,
		SQLitePath: a.cfg.HashGate.SQLitePath,
		Redis: hashgate.RedisConfig{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			Timeout:  a.cfg.Redis.Timeout,
		},
	})
	if err != nil {
		return nil, err
	}
	a.gate = gate
	chunker := chunk.NewCodeChunkerWithOptions(chunk.CodeChunkerOptions{
		MaxLines: a.cfg.Ingest.TextMaxLines,
		MaxChars: a.cfg.Ingest.TextMaxChars,
	})
	a.pipeline = ingest.NewPipeline(gate, chunker, a.embedder, a.store, ingest.Options{
		Repo:         a.cfg.Ingest.Repo,
		MaxFileBytes: a.cfg.Ingest.MaxFileBytes,
	})
	return a.pipeline, nil
}

// broker opens the Kafka or in-process transport.
func (a *app) broker() (*broker.Transport, error) {
	if a.transport != nil {
		return a.transport, nil
	}
	t, err := broker.NewTransport(broker.KafkaConfig{
		Brokers: a.cfg.Kafka.Brokers,
		GroupID: a.cfg.Kafka.GroupID,
	})
	if err != nil {
		return nil, err
	}
	a.transport = t
	return t, nil
}

func (a *app) scanner() *scanner.Scanner {
	return scanner.New(scanner.Options{
		MaxFileSize: a.cfg.Ingest.MaxFileBytes,
		Workers:     a.cfg.Ingest.ScanWorkers,
	})
}

func (a *app) Close() error {
	var errs []error
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	if a.gate != nil {
		errs = append(errs, a.gate.Close())
	}
	errs = append(errs, a.embedder.Close())
	return errors.Join(errs...)
}
