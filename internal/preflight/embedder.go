package preflight

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/fttf/internal/embed"
)

// CheckEmbedder probes the configured embedding provider. Ollama being
// unreachable is a warning: vectors then come from the static fallback.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name: "embedder",
	}

	switch c.embedder.Provider {
	case embed.ProviderStatic, "":
		result.Status = StatusPass
		result.Message = "static (no server needed)"
		return result
	case embed.ProviderOllama:
	default:
		result.Status = StatusFail
		result.Required = true
		result.Message = fmt.Sprintf("unknown provider %q", c.embedder.Provider)
		return result
	}

	ollama := embed.NewOllamaEmbedder(embed.OllamaConfig{
		Host:       c.embedder.Host,
		Model:      c.embedder.Model,
		Dimensions: c.embedder.Dimensions,
	})
	defer func() { _ = ollama.Close() }()
	result.Details = fmt.Sprintf("host %s, model %s", c.hostOrDefault(), ollama.ModelName())

	if c.offline {
		result.Status = StatusWarn
		result.Message = "ollama not probed (offline)"
		return result
	}
	if !ollama.Available(ctx) {
		result.Status = StatusWarn
		result.Message = "ollama unreachable or model missing; static fallback in use"
		return result
	}
	result.Status = StatusPass
	result.Message = "ollama " + ollama.ModelName()
	return result
}

func (c *Checker) hostOrDefault() string {
	if c.embedder.Host == "" {
		return embed.DefaultOllamaHost
	}
	return c.embedder.Host
}
