package profundo

import (
	"context"
	"net/http"
	"net/url"
)

// Runs lists saved runs, newest first.
func (c *Client) Runs(ctx context.Context) ([]RunRecord, error) {
	var out struct {
		Runs []RunRecord `json:"runs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/library", nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Run fetches one saved run by id.
func (c *Client) Run(ctx context.Context, id string) (RunRecord, error) {
	var rec RunRecord
	err := c.doJSON(ctx, http.MethodGet, "/api/library/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// DeleteRun removes a saved run from the library.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/library/"+url.PathEscape(id), nil, nil)
}

// Preferences fetches the user's saved configuration overlay.
func (c *Client) Preferences(ctx context.Context) (map[string]any, error) {
	var prefs map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/api/preferences", nil, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// PutPreferences replaces the user's configuration overlay. The server
// rejects overlays that do not resolve into a valid run configuration.
func (c *Client) PutPreferences(ctx context.Context, overlay map[string]any) error {
	return c.doJSON(ctx, http.MethodPut, "/api/preferences", overlay, nil)
}
