// Package fetch retrieves page content for retained sources and
// reduces HTML to plain text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "profundo-research/1.0 (+https://github.com/profundo-ai/profundo)"

// Fetcher downloads source content over HTTP.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// New creates a fetcher. maxBytes caps how much of a page is read.
func New(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 512 * 1024
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads url and returns its text content. HTML responses
// are reduced to plain text; other content types are returned as-is.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return HTMLToText(string(body)), nil
	}
	return string(body), nil
}

// HTMLToText strips tags and collapses whitespace. Script and style
// bodies are dropped entirely.
func HTMLToText(html string) string {
	var out strings.Builder
	out.Grow(len(html) / 2)

	inTag := false
	skipUntil := "" // closing tag whose body we drop

	for i := 0; i < len(html); i++ {
		c := html[i]
		switch {
		case c == '<':
			rest := strings.ToLower(html[i:])
			if skipUntil != "" {
				if strings.HasPrefix(rest, skipUntil) {
					skipUntil = ""
				}
			} else if strings.HasPrefix(rest, "<script") {
				skipUntil = "</script"
			} else if strings.HasPrefix(rest, "<style") {
				skipUntil = "</style"
			}
			inTag = true
		case c == '>':
			inTag = false
			out.WriteByte(' ')
		case !inTag && skipUntil == "":
			out.WriteByte(c)
		}
	}

	return collapseWhitespace(decodeEntities(out.String()))
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
