package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/realenhance/restage/internal/ctxutil"
	resterrors "github.com/realenhance/restage/internal/errors"
)

// Transport-level retry bounds. This retry absorbs transient network noise
// only; the validation retry ladder is the orchestrator's concern and
// never overlaps with it.
const (
	defaultMaxAttempts  = 3
	initialRetryBackoff = 500 * time.Millisecond
)

// timeSleep wraps time.After so tests can replace the backoff clock.
//
//nolint:gochecknoglobals // Required for test mocking
var timeSleep = func(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// statusError carries a non-200 HTTP status so retry classification can
// inspect the code instead of matching message text.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("vision service request failed: status %d", e.code)
	}
	return fmt.Sprintf("vision service request failed: status %d: %s", e.code, e.body)
}

// Unwrap lets errors.Is(err, ErrVisionService) hold for HTTP-level
// failures too.
func (e *statusError) Unwrap() error {
	return resterrors.ErrVisionService
}

// isRetryable determines whether an error should be retried.
// Returns false for context errors, auth/bad-request style client errors,
// and response format errors. Returns true for transient errors (network,
// rate limits, server-side failures).
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Malformed or empty responses will not improve on resend.
	if errors.Is(err, resterrors.ErrVisionEmptyResponse) || errors.Is(err, resterrors.ErrVisionInvalidFormat) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusTooManyRequests:
			return true
		case se.code >= 500:
			return true
		default:
			// 4xx other than 429: auth, bad request, not found.
			return false
		}
	}

	// Anything else is treated as transient network noise.
	return true
}

// doWithRetry performs the request with bounded retries and exponential
// backoff, honoring context cancellation between attempts.
func (c *Client) doWithRetry(ctx context.Context, body []byte) ([]byte, error) {
	log := zerolog.Ctx(ctx)
	backoff := initialRetryBackoff

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctxutil.Canceled(ctx); err != nil {
			return nil, err
		}

		raw, err := c.doRequest(ctx, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == c.maxAttempts {
			break
		}

		log.Warn().
			Str("component", "vision").
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("transient vision failure, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeSleep(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}
