package api

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strconv"
	"time"

	apierrors "github.com/dl-alexandre/docloader/internal/errors"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client carries the retry settings and logger shared by every backend call
type Client struct {
	maxRetries int
	retryDelay time.Duration
	logger     logging.Logger
	sleep      Sleeper
}

// NewClient creates a client whose listing calls retry maxRetries times with
// exponential backoff starting at retryDelayMs
func NewClient(maxRetries int, retryDelayMs int, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Client{
		maxRetries: maxRetries,
		retryDelay: time.Duration(retryDelayMs) * time.Millisecond,
		logger:     logger,
		sleep:      contextSleep,
	}
}

// WithSleeper replaces the wait used between retries
func (c *Client) WithSleeper(sleep Sleeper) *Client {
	clone := *c
	clone.sleep = sleep
	return &clone
}

// Logger returns the client's logger
func (c *Client) Logger() logging.Logger {
	return c.logger
}

// NewRequestContext creates a new request context with trace ID
func NewRequestContext(backend string, requestType types.RequestType) *types.RequestContext {
	return &types.RequestContext{
		Backend:         backend,
		InvolvedFileIDs: []string{},
		RequestType:     requestType,
		TraceID:         uuid.New().String(),
	}
}

// RequestContextFromContext creates a request context that reuses the run's trace ID when ctx carries one
func RequestContextFromContext(ctx context.Context, backend string, requestType types.RequestType, fileIDs ...string) *types.RequestContext {
	reqCtx := NewRequestContext(backend, requestType)
	if traceID := logging.TraceIDFromContext(ctx); traceID != "" {
		reqCtx.TraceID = traceID
	}
	if len(fileIDs) > 0 {
		reqCtx.InvolvedFileIDs = fileIDs
	}
	return reqCtx
}

// ExecuteWithRetry executes a Google API call, retrying 429 and 5xx responses
func ExecuteWithRetry[T any](ctx context.Context, client *Client, reqCtx *types.RequestContext, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	logger := client.logger.WithTraceID(reqCtx.TraceID)
	logger.Debug("API operation starting",
		logging.F("requestType", reqCtx.RequestType),
		logging.F("backend", reqCtx.Backend),
		logging.F("fileIds", reqCtx.InvolvedFileIDs),
	)

	start := time.Now()

	for attempt := 0; attempt <= client.maxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			logger.Debug("API operation completed",
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("attempts", attempt+1),
			)
			return result, nil
		}

		if !isRetryable(lastErr) {
			logger.Debug("API operation failed (non-retryable)",
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("error", lastErr.Error()),
				logging.F("attempts", attempt+1),
			)
			return result, classifyError(lastErr, reqCtx, client.logger)
		}

		if attempt < client.maxRetries {
			delay := calculateBackoff(client.retryDelay, attempt, lastErr)
			logger.Warn("API operation failed (retryable)",
				logging.F("attempt", attempt+1),
				logging.F("delay_ms", delay.Milliseconds()),
				logging.F("error", lastErr.Error()),
			)
			if err := client.sleep(ctx, delay); err != nil {
				return result, err
			}
		}
	}

	logger.Error("API operation failed after max retries",
		logging.F("duration_ms", time.Since(start).Milliseconds()),
		logging.F("attempts", client.maxRetries+1),
		logging.F("error", lastErr.Error()),
	)

	return result, classifyError(lastErr, reqCtx, client.logger)
}

func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

// calculateBackoff honors Retry-After, otherwise base * 2^attempt with jitter
func calculateBackoff(baseDelay time.Duration, attempt int, err error) time.Duration {
	maxDelay := time.Duration(utils.MaxRetryDelayMs) * time.Millisecond

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Header != nil {
		if seconds, convErr := strconv.Atoi(apiErr.Header.Get("Retry-After")); convErr == nil {
			return min(time.Duration(seconds)*time.Second, maxDelay)
		}
	}

	delay := min(baseDelay*time.Duration(math.Pow(2, float64(attempt))), maxDelay)

	// ±25% jitter
	if jitterRange := delay / 4; jitterRange > 0 {
		delay += time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
	}
	if delay < 0 {
		delay = baseDelay
	}

	return delay
}

func classifyError(err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	return apierrors.ClassifyGoogleAPIError(reqCtx.Backend, err, reqCtx, logger)
}
