package websearch

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"
)

// retryBaseDelay is the base duration for exponential backoff on HTTP
// 429 responses. Tests override this to avoid real sleeps.
var retryBaseDelay = 500 * time.Millisecond

const defaultMaxRetries = 3

// doWithRetry executes an HTTP request and retries on HTTP 429 with
// exponential backoff. On each 429 the response body is drained and
// closed before sleeping; if the context is cancelled during a backoff
// wait the context error is returned. After exhausting retries the
// last 429 response is returned so the caller can inspect it.
func doWithRetry(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if attempt >= defaultMaxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * retryBaseDelay

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
