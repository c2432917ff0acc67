package research

import (
	"context"
	"encoding/json"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/transport/websearch"
)

// LLM is the language-model capability the pipeline needs: structured
// object generation for the planning stages and token streaming for
// synthesis.
type LLM interface {
	GenerateObject(
		ctx context.Context,
		model, system, prompt string,
		schemaName string, schema json.RawMessage,
		out any,
	) (domain.TokenUsage, error)

	StreamText(
		ctx context.Context,
		model, system, prompt string,
		onDelta func(delta string) error,
	) (domain.TokenUsage, error)
}

// Searcher runs web searches for decomposed sub-queries.
type Searcher interface {
	Name() string
	Search(ctx context.Context, q websearch.Query) ([]websearch.Result, error)
}

// Fetcher downloads the text content of a retained source.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Emitter receives pipeline events in emission order. A non-nil error
// aborts the run; implementations are called from a single goroutine.
type Emitter interface {
	Emit(event domain.Event) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event domain.Event) error

// Emit implements Emitter.
func (f EmitterFunc) Emit(event domain.Event) error { return f(event) }
