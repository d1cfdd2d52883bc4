package crm

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// transport wraps resty with the CRM's rate-limit and transient
// failure policy: 409/429 honor a Retry-After header (seconds) when
// present, otherwise back off 2^attempt seconds, up to maxRetries
// attempts total. Transport-level errors retry on the same schedule.
type transport struct {
	maxRetries int
	// swapped out by tests to observe delays
	sleep func(ctx context.Context, d time.Duration) error
}

func newTransport(maxRetries int) *transport {
	return &transport{
		maxRetries: maxRetries,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func isRateLimited(status int) bool {
	return status == 409 || status == 429
}

func retryAfterDelay(res *resty.Response, attempt int) time.Duration {
	header := res.Header().Get("Retry-After")
	if header != "" {
		seconds, err := strconv.Atoi(header)
		if err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return backoffDelay(attempt)
}

// fetchWithRetry runs send until it produces a non-rate-limited
// response or the attempt budget runs out.
func (t *transport) fetchWithRetry(ctx context.Context, send func() (*resty.Response, error)) (*resty.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		res, err := send()
		if err != nil {
			lastErr = err
			if attempt == t.maxRetries {
				return nil, &NetworkError{Err: err}
			}
			delay := backoffDelay(attempt)
			slog.WarnContext(
				ctx, "request failed, retrying",
				"delay", delay,
				"attempt", attempt,
				"max_retries", t.maxRetries,
				"err", err,
			)
			if err := t.sleep(ctx, delay); err != nil {
				return nil, &NetworkError{Err: err}
			}
			continue
		}

		if isRateLimited(res.StatusCode()) {
			if attempt == t.maxRetries {
				return nil, &RateLimitError{
					Status: res.StatusCode(),
					Body:   res.String(),
				}
			}
			delay := retryAfterDelay(res, attempt)
			slog.WarnContext(
				ctx, "rate limited, retrying",
				"status", res.StatusCode(),
				"delay", delay,
				"attempt", attempt,
				"max_retries", t.maxRetries,
			)
			if err := t.sleep(ctx, delay); err != nil {
				return nil, &NetworkError{Err: err}
			}
			continue
		}

		return res, nil
	}
	// unreachable with maxRetries >= 1
	return nil, &NetworkError{Err: lastErr}
}
