package openai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/profundo-ai/profundo/internal/domain"
)

// GeneratedImage is the result of one image generation call.
type GeneratedImage struct {
	URL     string
	B64JSON string
}

// CreateImage generates one image for the prompt.
func (c *Client) CreateImage(ctx context.Context, model, prompt, size string) (GeneratedImage, error) {
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Model:  model,
		Prompt: prompt,
		N:      1,
		Size:   size,
	})
	if err != nil {
		return GeneratedImage{}, classifyAPIError(err)
	}
	if len(resp.Data) == 0 {
		return GeneratedImage{}, domain.ErrTransientProvider
	}
	return GeneratedImage{
		URL:     resp.Data[0].URL,
		B64JSON: resp.Data[0].B64JSON,
	}, nil
}
