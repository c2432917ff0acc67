package profundo

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// maxEventSize bounds a single SSE frame; the done event carries the
// whole report.
const maxEventSize = 8 << 20

// Research starts a research run and streams its events to handler in
// order. It blocks until the run finishes and returns the final
// response from the done event. A non-recoverable error event ends the
// run with an error; recoverable ones are only passed to handler.
// Cancel ctx to abort the run server-side mid-stream.
func (c *Client) Research(ctx context.Context, req ResearchRequest, handler EventHandler) (*ResearchResponse, error) {
	var (
		done   *ResearchResponse
		runErr error
	)

	err := c.stream(ctx, "/api/research", req, func(ev Event) error {
		switch e := ev.(type) {
		case DoneEvent:
			resp := e.Response
			done = &resp
		case ErrorEvent:
			if !e.Recoverable {
				runErr = fmt.Errorf("profundo: run failed: %s", e.Message)
			}
		}
		if handler != nil {
			return handler(ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}
	if done == nil {
		return nil, fmt.Errorf("profundo: stream ended without done event")
	}
	return done, nil
}

// Estimate projects the cost of a run without executing anything.
// Empty preference or depth fall back to the server defaults.
func (c *Client) Estimate(ctx context.Context, pref Preference, depth Depth) (Estimate, error) {
	q := url.Values{}
	if pref != "" {
		q.Set("preference", string(pref))
	}
	if depth != "" {
		q.Set("depth", string(depth))
	}
	path := "/api/research/estimate"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var est Estimate
	err := c.doJSON(ctx, http.MethodGet, path, nil, &est)
	return est, err
}

// ActiveRuns lists runs currently executing on the server.
func (c *Client) ActiveRuns(ctx context.Context) ([]RunStatus, error) {
	var out struct {
		Runs []RunStatus `json:"runs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/runs", nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// CancelRun aborts an active run. Returns ErrNotFound when no run with
// that id is executing.
func (c *Client) CancelRun(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/runs/"+url.PathEscape(id), nil, nil)
}

// stream POSTs body and feeds each SSE event to handle until the
// terminal [DONE] marker.
func (c *Client) stream(ctx context.Context, path string, body any, handle func(Event) error) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("profundo: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue // blank frame separators
		}
		if payload == "[DONE]" {
			return nil
		}

		ev, err := decodeEvent([]byte(payload))
		if err != nil {
			return err
		}
		if err := handle(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("profundo: read stream: %w", err)
	}
	return fmt.Errorf("profundo: stream ended without [DONE]")
}
