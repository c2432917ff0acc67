package profundo

import (
	"context"
	"fmt"
	"net/http"
)

// Chat streams the answer to a follow-up question, invoking onDelta
// for each text chunk. Set RunID to ground the answer in a saved
// report.
func (c *Client) Chat(ctx context.Context, req ChatRequest, onDelta func(delta string) error) error {
	return c.stream(ctx, "/api/chat", req, func(ev Event) error {
		switch e := ev.(type) {
		case TextDeltaEvent:
			return onDelta(e.Delta)
		case ErrorEvent:
			return fmt.Errorf("profundo: chat failed: %s", e.Message)
		}
		return nil
	})
}

// GenerateImage creates a report illustration. Size is one of
// 1024x1024, 1536x1024 or 1024x1536; empty picks the default.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (Image, error) {
	body := struct {
		Prompt string `json:"prompt"`
		Size   string `json:"size,omitempty"`
	}{Prompt: prompt, Size: size}

	var img Image
	err := c.doJSON(ctx, http.MethodPost, "/api/images", body, &img)
	return img, err
}
