// Package chat answers follow-up questions about a finished research
// report, streaming the answer token by token.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/modelrouter"
	runrepo "github.com/profundo-ai/profundo/internal/repository/runs"
)

const chatSystem = "You are a research assistant answering follow-up questions about a " +
	"research report. Ground your answers in the report; say so when the report does not " +
	"cover the question. Always respond in the same language as the question."

// Streamer is the token-streaming capability chat needs.
type Streamer interface {
	StreamText(
		ctx context.Context,
		model, system, prompt string,
		onDelta func(delta string) error,
	) (domain.TokenUsage, error)
}

// RunReader loads stored run records for report context.
type RunReader interface {
	Get(ctx context.Context, id string) (runrepo.Record, error)
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// Request is an inbound chat submission.
type Request struct {
	RunID      string            `json:"runId,omitempty"`
	Messages   []Message         `json:"messages"`
	Preference domain.Preference `json:"modelPreference,omitempty"`
}

// Service streams chat completions with optional report context.
type Service struct {
	llm    Streamer
	runs   RunReader
	logger *zap.Logger
}

// New creates the chat service.
func New(llm Streamer, runs RunReader, logger *zap.Logger) *Service {
	return &Service{llm: llm, runs: runs, logger: logger}
}

// Stream answers the last user message, forwarding deltas to onDelta.
// When req.RunID names a stored run its report is injected as context.
func (s *Service) Stream(ctx context.Context, req Request, onDelta func(delta string) error) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", domain.ErrValidation)
	}
	pref := req.Preference
	if pref == "" {
		pref = domain.PreferenceAuto
	}
	if !domain.ValidPreference(pref) {
		return fmt.Errorf("%w: unknown model preference %q", domain.ErrValidation, pref)
	}

	var report string
	if req.RunID != "" {
		rec, err := s.runs.Get(ctx, req.RunID)
		if err != nil {
			return fmt.Errorf("load run context: %w", err)
		}
		report = rec.Response.ReportText
	}

	// Chat rides the synthesis ranking; it is the same kind of
	// long-form grounded generation.
	sel, err := modelrouter.Select(domain.StageSynthesize, pref, domain.DepthNormal, nil, nil)
	if err != nil {
		return err
	}

	prompt := buildPrompt(report, req.Messages)
	delivered := false
	wrapped := func(delta string) error {
		delivered = true
		return onDelta(delta)
	}
	_, err = s.llm.StreamText(ctx, sel.ModelID, chatSystem, prompt, wrapped)
	// Retry on the fallback only if the primary failed before the
	// first delta, otherwise the client would see duplicated text.
	if err != nil && domain.IsTransient(err) && !delivered {
		fallback := sel.FallbackChain[0]
		s.logger.Warn("chat model failed, trying fallback",
			zap.String("model", sel.ModelID),
			zap.String("fallback", fallback),
			zap.Error(err),
		)
		_, err = s.llm.StreamText(ctx, fallback, chatSystem, prompt, onDelta)
	}
	return err
}

func buildPrompt(report string, messages []Message) string {
	var b strings.Builder
	if report != "" {
		b.WriteString("Research report under discussion:\n\n")
		b.WriteString(report)
		b.WriteString("\n\n---\n\n")
	}
	b.WriteString("Conversation so far:\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("\nAnswer the last user message.")
	return b.String()
}
