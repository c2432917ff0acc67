package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
)

// extract fetches content for every kept source under the configured
// concurrency cap. Fetch failures degrade: the source keeps an empty
// Content and synthesis falls back to its snippet. Each failure is
// surfaced to the stream as a recoverable error after the fan-in.
func (r *run) extract(ctx context.Context, sources []domain.EvaluatedSource) error {
	cfg := r.cfg.Extraction
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for i := range sources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			content, err := r.svc.fetch.Fetch(fctx, sources[i].URL)
			if err != nil {
				errs[i] = err
				return
			}
			if cfg.MaxContentSize > 0 && len(content) > cfg.MaxContentSize {
				content = content[:cfg.MaxContentSize]
			}
			sources[i].Content = content
		}(i)
	}
	wg.Wait()

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		r.logger.Warn("source extraction failed",
			zap.String("url", sources[i].URL),
			zap.Error(err),
		)
		emitErr := r.emit(domain.ErrorEvent{
			Message:     fmt.Sprintf("could not fetch %s: %v", sources[i].URL, err),
			Recoverable: true,
		})
		if emitErr != nil {
			return emitErr
		}
	}

	r.logger.Info("extraction stage finished",
		zap.Int("sources", len(sources)),
		zap.Int("failed", failed),
	)
	return nil
}
