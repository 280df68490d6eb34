package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider names an embedding backend.
type Provider string

const (
	ProviderSHA256 Provider = "sha256"
	ProviderStatic Provider = "static"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// ParseProvider maps a config string to a Provider. Unknown values become ProviderSHA256.
func ParseProvider(s string) Provider {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderStatic:
		return ProviderStatic
	case ProviderOllama:
		return ProviderOllama
	case ProviderOpenAI, "dashscope":
		return ProviderOpenAI
	default:
		return ProviderSHA256
	}
}

// Options selects and configures a provider.
type Options struct {
	Provider   Provider
	Dimensions int
	Model      string
	Host       string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// New builds the embedder for opts. A remote provider without credentials
// falls back to the hash embedder; a remote provider with credentials is
// wrapped so runtime failures also fall back to it.
func New(opts Options) (Embedder, error) {
	dims := opts.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	switch opts.Provider {
	case ProviderSHA256, "":
		slog.Info("embed_provider_selected", slog.String("provider", "sha256"), slog.Int("dims", dims))
		return NewHashEmbedder(dims), nil
	case ProviderStatic:
		slog.Info("embed_provider_selected", slog.String("provider", "static"), slog.Int("dims", dims))
		return NewStaticEmbedder(dims), nil
	case ProviderOllama:
		slog.Info("embed_provider_selected", slog.String("provider", "ollama"), slog.String("model", opts.Model))
		return NewOllamaEmbedder(OllamaConfig{
			Host:       opts.Host,
			Model:      opts.Model,
			Dimensions: dims,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		}), nil
	case ProviderOpenAI:
		if strings.TrimSpace(opts.APIKey) == "" {
			slog.Info("embed_provider_selected", slog.String("provider", "sha256"), slog.String("reason", "no_api_key"))
			return NewHashEmbedder(dims), nil
		}
		primary := NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    opts.Host,
			APIKey:     strings.TrimSpace(opts.APIKey),
			Model:      opts.Model,
			Dimensions: dims,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		})
		slog.Info("embed_provider_selected", slog.String("provider", "openai"), slog.String("model", opts.Model), slog.Int("dims", dims))
		return NewFallbackEmbedder(primary, NewHashEmbedder(dims)), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}

// FallbackEmbedder answers from secondary whenever primary fails.
type FallbackEmbedder struct {
	primary   Embedder
	secondary Embedder
}

var _ Embedder = (*FallbackEmbedder)(nil)

// NewFallbackEmbedder pairs two embedders of the same dimension.
func NewFallbackEmbedder(primary, secondary Embedder) *FallbackEmbedder {
	return &FallbackEmbedder{primary: primary, secondary: secondary}
}

func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.primary.Embed(ctx, text)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Warn("embed_fallback",
		slog.String("to", f.secondary.ModelName()),
		slog.String("error", err.Error()))
	return f.secondary.Embed(ctx, text)
}

func (f *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := f.primary.EmbedBatch(ctx, texts)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Warn("embed_fallback",
		slog.String("to", f.secondary.ModelName()),
		slog.Int("texts", len(texts)),
		slog.String("error", err.Error()))
	return f.secondary.EmbedBatch(ctx, texts)
}

func (f *FallbackEmbedder) Dimensions() int   { return f.primary.Dimensions() }
func (f *FallbackEmbedder) ModelName() string { return f.primary.ModelName() }

func (f *FallbackEmbedder) Available(ctx context.Context) bool {
	return f.primary.Available(ctx) || f.secondary.Available(ctx)
}

func (f *FallbackEmbedder) Close() error {
	err := f.primary.Close()
	if serr := f.secondary.Close(); err == nil {
		err = serr
	}
	return err
}
