package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxRetryAfter caps how long a Retry-After header can make us wait.
const maxRetryAfter = 30 * time.Second

// doWithRetry runs do up to MaxRetries+1 times.
// - Retries only on transient network errors, 408, 429 and 5xx statuses.
// - Honours Retry-After on retryable responses.
// - Otherwise waits with exponential backoff and full jitter.
// - Stops as soon as ctx is done.
func (c *client) doWithRetry(
	ctx context.Context,
	op string,
	do func(ctx context.Context) (*http.Response, error),
) (*http.Response, error) {
	var lastErr error
	maxAttempts := c.cfg.MaxRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := do(ctx)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		c.logger.Debug("catalog upstream request",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		var wait time.Duration
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if !isTransientNetError(err) {
				return nil, err
			}
			lastErr = err
		case !shouldRetryStatus(status):
			return resp, nil
		default:
			lastErr = fmt.Errorf("upstream status %d", status)
			wait = parseRetryAfter(resp)
			// close body before retrying so the connection can be reused
			resp.Body.Close()
		}

		if attempt == maxAttempts-1 {
			break
		}

		if wait <= 0 {
			wait = computeBackoff(c.cfg.BaseBackoff, attempt)
		}
		c.logger.Debug("backing off before retry",
			zap.String("operation", op),
			zap.Duration("backoff", wait),
			zap.Int("next_attempt", attempt+2),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.Warn("catalog request exhausted all retries",
		zap.String("operation", op),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)

	if lastErr == nil {
		lastErr = errors.New("unknown upstream error")
	}
	return nil, fmt.Errorf("catalog: %s: max retries (%d) exceeded: %w", op, maxAttempts, lastErr)
}

// isTransientNetError reports whether a network error is worth retrying.
func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial", "read", "write":
			return true
		}
	}

	// wrapped errors sometimes lose their type
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporary failure",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// shouldRetryStatus reports whether an HTTP status is worth retrying.
func shouldRetryStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}

// parseRetryAfter reads a Retry-After header given either as seconds or
// as an HTTP date. Returns 0 if missing or invalid.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}

	var d time.Duration
	if seconds, err := strconv.Atoi(v); err == nil {
		d = time.Duration(seconds) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	}

	if d <= 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}

// computeBackoff returns a random wait in [0, base*2^attempt), capped at 10s.
//
//	base=100ms: attempt 0 → 0-100ms, attempt 1 → 0-200ms, attempt 2 → 0-400ms
func computeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	const maxExponent = 10
	attempt = min(attempt, maxExponent)

	const maxAllowed = 10 * time.Second
	ceiling := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	ceiling = min(ceiling, maxAllowed)

	return time.Duration(rand.Float64() * float64(ceiling))
}
