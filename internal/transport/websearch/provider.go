// Package websearch implements the pluggable web-search providers
// consumed by the search stage.
package websearch

import "context"

// Query is one provider search request.
type Query struct {
	Text        string
	MaxResults  int
	RecencyDays int
}

// Result is a single provider hit.
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Provider is the web-search capability. Implementations must be safe
// for concurrent use across fanned-out sub-queries.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Result, error)
}
