// Package image generates illustrative images for reports.
package image

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/transport/openai"
)

// Generator is the image generation capability.
type Generator interface {
	CreateImage(ctx context.Context, model, prompt, size string) (openai.GeneratedImage, error)
}

// Request is an inbound image generation submission.
type Request struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

// Result carries the generated image by URL or inline base64,
// whichever the provider returned.
type Result struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64Json,omitempty"`
}

// Service generates images with a fixed model from configuration.
type Service struct {
	gen    Generator
	model  string
	logger *zap.Logger
}

// New creates the image service.
func New(gen Generator, model string, logger *zap.Logger) *Service {
	return &Service{gen: gen, model: model, logger: logger}
}

var allowedSizes = map[string]bool{
	"1024x1024": true,
	"1536x1024": true,
	"1024x1536": true,
}

// Generate creates one image for req.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return Result{}, fmt.Errorf("%w: prompt must not be empty", domain.ErrValidation)
	}
	if req.Size != "" && !allowedSizes[req.Size] {
		return Result{}, fmt.Errorf("%w: unsupported size %q", domain.ErrValidation, req.Size)
	}

	img, err := s.gen.CreateImage(ctx, s.model, req.Prompt, req.Size)
	if err != nil {
		return Result{}, fmt.Errorf("generate image: %w", err)
	}
	s.logger.Debug("image generated", zap.String("model", s.model))
	return Result{URL: img.URL, B64JSON: img.B64JSON}, nil
}
