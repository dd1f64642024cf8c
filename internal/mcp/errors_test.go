package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not ready", apperrors.NotReadyError("database not ready", nil), ErrCodeNotReady},
		{"not found", apperrors.NotFoundError("document", "4"), ErrCodeNotFound},
		{"embedding", apperrors.EmbeddingError("model offline", nil), ErrCodeEmbeddingFailed},
		{"dimension", apperrors.New(apperrors.ErrCodeDimensionMismatch, "want 384", nil), ErrCodeEmbeddingFailed},
		{"validation", apperrors.ValidationError("bad input", nil), ErrCodeInvalidParams},
		{"invalid url", apperrors.New(apperrors.ErrCodeInvalidURL, "invalid URL: ::", nil), ErrCodeInvalidParams},
		{"network", apperrors.NetworkError("ollama down", nil), ErrCodeTimeout},
		{"wrapped", fmt.Errorf("outer: %w", apperrors.NotReadyError("x", nil)), ErrCodeNotReady},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"plain", errors.New("boom"), ErrCodeInternalError},
		{"already mapped", NewInvalidParamsError("nope"), ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}

	assert.Nil(t, MapError(nil))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := apperrors.ValidationError("bad level", nil).WithSuggestion("Use no_index.")
	mapped := MapError(err)
	assert.Equal(t, "bad level Use no_index.", mapped.Message)
	assert.Equal(t, "MCP error -32602: bad level Use no_index.", mapped.Error())
}

func TestFormatHistoryResults(t *testing.T) {
	assert.Equal(t, `No pages found for "nothing"`, FormatHistoryResults(SearchHistoryOutput{Query: "nothing"}))

	out := SearchHistoryOutput{
		Query: "wal",
		Mode:  ModeFullText,
		Total: 1,
		Results: []HistoryHit{
			{URL: "https://example.com/wal", Attribute: "url", Text: "line one\nline two", Score: 1},
		},
	}
	md := FormatHistoryResults(out)
	assert.Contains(t, md, "Showing 1 result\n")
	assert.Contains(t, md, "### 1. https://example.com/wal")
	assert.Contains(t, md, "> line one line two")
}
