// Package openai adapts the OpenAI-compatible chat API to the
// pipeline's two LLM capabilities: structured object generation and
// token streaming.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/metrics"
)

// Client is an LLM provider over the OpenAI-compatible API.
type Client struct {
	client *openai.Client
	logger *zap.Logger
}

// Config holds the LLM provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Logger  *zap.Logger
}

// NewClient creates an OpenAI-compatible LLM client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger,
	}
}

// GenerateObject runs a chat completion constrained to the given JSON
// schema and decodes the result into out. A response that fails to
// decode against out is a domain.ErrSchemaViolation.
func (c *Client) GenerateObject(
	ctx context.Context,
	model, system, prompt string,
	schemaName string, schema json.RawMessage,
	out any,
) (domain.TokenUsage, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(model, "error").Inc()
		return domain.TokenUsage{}, classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(model, "error").Inc()
		return domain.TokenUsage{}, fmt.Errorf("empty completion response: %w", domain.ErrTransientProvider)
	}

	usage := domain.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	recordSuccess(model, usage)

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return usage, fmt.Errorf("%w: decode %s output: %v", domain.ErrSchemaViolation, schemaName, err)
	}

	c.logger.Debug("structured generation completed",
		zap.String("model", model),
		zap.String("schema", schemaName),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return usage, nil
}

// StreamText runs a streaming chat completion, invoking onDelta for
// each content chunk as it arrives. A non-nil error from onDelta
// aborts the stream and is returned as-is.
func (c *Client) StreamText(
	ctx context.Context,
	model, system, prompt string,
	onDelta func(delta string) error,
) (domain.TokenUsage, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(model, "error").Inc()
		return domain.TokenUsage{}, classifyAPIError(err)
	}
	defer stream.Close()

	var usage domain.TokenUsage
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			metrics.LLMRequestsTotal.WithLabelValues(model, "error").Inc()
			return usage, classifyAPIError(recvErr)
		}
		// The usage-only final chunk has no choices.
		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return usage, err
			}
		}
	}

	recordSuccess(model, usage)
	return usage, nil
}

func recordSuccess(model string, usage domain.TokenUsage) {
	metrics.LLMRequestsTotal.WithLabelValues(model, "success").Inc()
	if usage.InputTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(model, "input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(model, "output").Add(float64(usage.OutputTokens))
	}
}

// classifyAPIError maps provider failures onto the pipeline error
// taxonomy. Timeouts, rate limits, and server-side errors are
// transient and eligible for the one-shot fallback retry.
func classifyAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransientProvider, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if transientStatus(apiErr.HTTPStatusCode) {
			return fmt.Errorf("%w: API error %d: %s", domain.ErrTransientProvider, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return fmt.Errorf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if transientStatus(reqErr.HTTPStatusCode) {
			return fmt.Errorf("%w: request error %d: %s", domain.ErrTransientProvider, reqErr.HTTPStatusCode, string(reqErr.Body))
		}
		return fmt.Errorf("request error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	// Network-level failures (connection reset, DNS) are retryable.
	return fmt.Errorf("%w: %v", domain.ErrTransientProvider, err)
}

func transientStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}
