package api

import (
	"context"
	"fmt"
	"time"

	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
)

// RetryPolicy controls per-file fetch retries. Attempt n that fails is
// followed by a pause of n * BackoffUnit.
type RetryPolicy struct {
	RetryCount  int           `json:"retryCount"`
	BackoffUnit time.Duration `json:"backoffUnit"`
}

// DefaultRetryPolicy returns two extra attempts with a two second unit
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RetryCount:  utils.DefaultFetchRetries,
		BackoffUnit: time.Duration(utils.DefaultBackoffUnitMs) * time.Millisecond,
	}
}

// Attempts returns the total number of tries, never less than one
func (p RetryPolicy) Attempts() int {
	if p.RetryCount < 0 {
		return 1
	}
	return p.RetryCount + 1
}

// Backoff returns the pause after the given failed attempt (1-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * p.BackoffUnit
}

// FetchFunc downloads the full content of one object
type FetchFunc func(ctx context.Context) ([]byte, error)

// FetchWithRetry runs fn under policy and folds the outcome into a
// FetchResult. Errors and panics from fn never escape.
func FetchWithRetry(ctx context.Context, client *Client, reqCtx *types.RequestContext, name string, policy RetryPolicy, fn FetchFunc) types.FetchResult {
	logger := client.logger.WithTraceID(reqCtx.TraceID).With(logging.F("file", name))
	attempts := policy.Attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return types.FetchFailure(abortedError(lastErr, err))
		}

		payload, err := callFetch(ctx, fn)
		if err == nil {
			if attempt > 1 {
				logger.Info("Fetch succeeded after retry", logging.F("attempt", attempt))
			}
			return types.FetchSuccess(payload)
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		delay := policy.Backoff(attempt)
		logger.Warn("Fetch failed, retrying",
			logging.F("attempt", attempt),
			logging.F("maxAttempts", attempts),
			logging.F("delay_ms", delay.Milliseconds()),
			logging.F("error", err.Error()),
		)
		if err := client.sleep(ctx, delay); err != nil {
			return types.FetchFailure(abortedError(lastErr, err))
		}
	}

	logger.Error("Fetch failed after max retries",
		logging.F("attempts", attempts),
		logging.F("error", lastErr.Error()),
	)
	return types.FetchFailure(lastErr)
}

func callFetch(ctx context.Context, fn FetchFunc) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func abortedError(lastErr, ctxErr error) error {
	if lastErr == nil {
		return fmt.Errorf("fetch aborted: %w", ctxErr)
	}
	return fmt.Errorf("%v (retries aborted: %w)", lastErr, ctxErr)
}
