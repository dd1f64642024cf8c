package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses the Ollama HTTP API.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings and needs no server.
	ProviderStatic ProviderType = "static"
)

// ParseProvider maps a config string to a ProviderType.
func ParseProvider(s string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderStatic, "":
		return ProviderStatic, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (want ollama or static)", s)
	}
}

// Config selects and configures an embedder.
type Config struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Host       string

	// Strict disables the static fallback when Ollama is unreachable.
	Strict bool
}

// NewEmbedder creates the embedder for cfg. An unreachable Ollama server
// falls back to the static embedder unless cfg.Strict is set.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	switch cfg.Provider {
	case ProviderOllama:
		return newOllamaWithFallback(ctx, cfg)
	case ProviderStatic, "":
		return NewStaticEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewQueryEmbedder wraps NewEmbedder's result in a CachedEmbedder when
// cacheSize is positive.
func NewQueryEmbedder(ctx context.Context, cfg Config, cacheSize int) (Embedder, error) {
	e, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		return e, nil
	}
	return NewCachedEmbedder(e, cacheSize), nil
}

func newOllamaWithFallback(ctx context.Context, cfg Config) (Embedder, error) {
	ollama := NewOllamaEmbedder(OllamaConfig{
		Host:       cfg.Host,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	})
	if ollama.Available(ctx) {
		slog.Info("embedder_selected",
			slog.String("provider", string(ProviderOllama)),
			slog.String("model", ollama.ModelName()))
		return ollama, nil
	}
	_ = ollama.Close()

	if cfg.Strict {
		return nil, fmt.Errorf("ollama is not available at %s with model %s", ollama.config.Host, ollama.config.Model)
	}
	slog.Warn("embedder_fallback",
		slog.String("requested", string(ProviderOllama)),
		slog.String("using", string(ProviderStatic)))
	return NewStaticEmbedder(cfg.Dimensions), nil
}
