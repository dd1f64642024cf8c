package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fttf/internal/backend"
	"github.com/Aman-CERP/fttf/internal/config"
	"github.com/Aman-CERP/fttf/internal/embed"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/output"
	"github.com/Aman-CERP/fttf/internal/search"
)

// cliBackend owns the embedders it was opened with.
type cliBackend struct {
	*backend.Backend
	embedder embed.Embedder
}

// Close closes the backend, then the embedders.
func (c *cliBackend) Close() error {
	err := c.Backend.Close()
	if c.embedder != nil {
		_ = c.embedder.Close()
	}
	return err
}

// backendConfig translates cfg into a backend.Config. runQueue overrides
// cfg.Queue.Enabled: one-shot commands never start the drain loop.
func backendConfig(ctx context.Context, cfg *config.Config, runQueue bool) (backend.Config, embed.Embedder, error) {
	embedCfg, err := embedConfig(cfg)
	if err != nil {
		return backend.Config{}, nil, err
	}
	order, err := search.ParseOrderBy(cfg.Search.OrderBy)
	if err != nil {
		return backend.Config{}, nil, apperrors.ConfigError("invalid search.order_by", err)
	}

	embedder, err := embed.NewEmbedder(ctx, embedCfg)
	if err != nil {
		return backend.Config{}, nil, apperrors.EmbeddingError("failed to create embedder", err)
	}
	// The cache wraps the same embedder, so closing it closes both.
	query := embedder
	if cfg.Embeddings.CacheSize > 0 {
		query = embed.NewCachedEmbedder(embedder, cfg.Embeddings.CacheSize)
	}

	return backend.Config{
		DBPath:            cfg.DatabasePath(),
		Embedder:          embedder,
		QueryEmbedder:     query,
		QueueEnabled:      runQueue && cfg.Queue.Enabled,
		QueueInterval:     cfg.QueueInterval(),
		HNSW:              cfg.Index.HNSW,
		DefaultLimit:      cfg.Search.DefaultLimit,
		OrderBy:           order,
		SemanticThreshold: cfg.Search.SemanticThreshold,
		Logger:            slog.Default(),
	}, query, nil
}

func embedConfig(cfg *config.Config) (embed.Config, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return embed.Config{}, apperrors.ConfigError("invalid embeddings.provider", err)
	}
	return embed.Config{
		Provider:   provider,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		Host:       cfg.Embeddings.OllamaHost,
	}, nil
}

// openBackend opens the history database described by the loaded config.
// On failure the returned backend is still usable for Status.
func (o *globalOptions) openBackend(ctx context.Context, runQueue bool) (*cliBackend, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	bcfg, embedder, err := backendConfig(ctx, cfg, runQueue)
	if err != nil {
		return nil, err
	}
	b, err := backend.Open(ctx, bcfg)
	return &cliBackend{Backend: b, embedder: embedder}, err
}

// withBackend opens the backend, runs fn and closes it.
func (o *globalOptions) withBackend(ctx context.Context, fn func(b *cliBackend) error) error {
	b, err := o.openBackend(ctx, false)
	if b != nil {
		defer func() { _ = b.Close() }()
	}
	if err != nil {
		return err
	}
	return fn(b)
}

func (o *globalOptions) writer(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.OutOrStdout(), o.noColor)
}

func printError(cmd *cobra.Command, err error) {
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), apperrors.FormatForCLI(err))
}

func writeJSON(w io.Writer, v any) error {
	return output.New(w, true).JSON(v)
}
