package werror

import (
	"context"
	"time"
)

// WithRetry runs op up to maxRetries+1 times with linear-growing backoff
// (baseDelay * attempt). The final failure is routed through Handle and then
// returned.
func (h *Handler) WithRetry(ctx context.Context, op func() error, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt > maxRetries {
			break
		}

		h.log.Debugf("operation failed (attempt %d/%d), retrying: %v", attempt, maxRetries+1, lastErr)
		select {
		case <-time.After(baseDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return h.Handle(ctx.Err(), nil)
		}
	}

	return h.Handle(lastErr, map[string]interface{}{"retries": maxRetries})
}

// Wrap applies error handling at the call site: op runs once and any failure
// is routed through the handler with the given context before being returned.
func Wrap(h *Handler, context map[string]interface{}, op func() error) error {
	if err := op(); err != nil {
		return h.Handle(err, context)
	}
	return nil
}
