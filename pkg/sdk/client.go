package profundo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultUserAgent = "profundo-go-sdk/1.0"

// Client is the profundo API client entry point. Safe for concurrent
// use.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	httpc     *http.Client
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("profundo: base URL required")
	}

	cfg := &clientConfig{userAgent: defaultUserAgent}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.httpc == nil {
		// No Timeout: SSE streams outlive any sane fixed timeout.
		// Callers bound individual calls with a context.
		cfg.httpc = &http.Client{}
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		httpc:     cfg.httpc,
	}, nil
}

// Health checks service and database availability.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// newRequest builds a request with auth and agent headers set. A nil
// body means no payload; otherwise body is JSON-encoded.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("profundo: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("profundo: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// doJSON performs a request and decodes a JSON response into out when
// out is non-nil. Non-2xx responses become *APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("profundo: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("profundo: decode response: %w", err)
	}
	return nil
}

// decodeAPIError turns a non-2xx response into an *APIError. Bodies
// that are not the server's JSON error shape still produce a usable
// error with the HTTP status.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var wire struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &wire) == nil && wire.Code != "" {
			apiErr.Code = wire.Code
			apiErr.Message = wire.Message
			return apiErr
		}
	}

	apiErr.Message = http.StatusText(resp.StatusCode)
	return apiErr
}
