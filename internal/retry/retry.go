// Package retry wraps fallible operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryableStatuses are the HTTP statuses worth another attempt.
var DefaultRetryableStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

const jitterRatio = 0.3

// DefaultMaxRetries is the retry count the provider clients run with.
const DefaultMaxRetries = 3

// Options tunes Do. Zero delays and statuses fall back to the defaults.
type Options struct {
	// MaxRetries is the number of attempts after the first one. Zero or
	// less runs op exactly once.
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	Multiplier        float64
	RetryableStatuses []int
	// OnRetry fires before each wait. attempt starts at 1.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep waits for delay; defaults to a timer that honours ctx.
	Sleep func(ctx context.Context, delay time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2
	}
	if o.RetryableStatuses == nil {
		o.RetryableStatuses = DefaultRetryableStatuses
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	return o
}

// HTTPError is a non-2xx response from a provider.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	if body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, body)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

func IsAuthError(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }

func IsRateLimited(err error) bool { return StatusOf(err) == http.StatusTooManyRequests }

// IsRetryable classifies err against the given status set. Errors without a
// status (network failures) are retryable, context cancellation is not.
func IsRetryable(err error, statuses []int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	s := StatusOf(err)
	if s == 0 {
		return true
	}
	if IsAuthError(err) || IsNotFound(err) {
		return false
	}
	return slices.Contains(statuses, s)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, fails with a non-retryable error or runs out
// of attempts. On exhaustion the last error from op is returned as is.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	opts = opts.withDefaults()
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if attempt > opts.MaxRetries || !IsRetryable(err, opts.RetryableStatuses) {
			var perm *permanentError
			if errors.As(err, &perm) {
				return zero, perm.err
			}
			return zero, err
		}
		delay := Delay(opts, attempt, err)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, delay)
		}
		if sleepErr := opts.Sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}

// Delay computes the wait before retry number attempt (1-based).
func Delay(opts Options, attempt int, err error) time.Duration {
	opts = opts.withDefaults()
	base := float64(opts.InitialDelay) * math.Pow(opts.Multiplier, float64(attempt-1))
	delay := time.Duration(base + base*jitterRatio*rand.Float64())
	var he *HTTPError
	if errors.As(err, &he) && he.RetryAfter > delay {
		delay = he.RetryAfter
	}
	if delay > opts.MaxDelay {
		delay = opts.MaxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
