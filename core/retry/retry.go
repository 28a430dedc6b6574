// Package retry runs an operation with bounded exponential backoff.
//
// The loop itself is github.com/sethvargo/go-retry; this package decides
// which failures are retryable (by apierror class), computes the delay
// schedule and enforces the elapsed-time budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/xagent-cli/xagent/core/apierror"
)

var (
	// ErrRetryExhausted wraps the last failure once every attempt has failed.
	ErrRetryExhausted = errors.New("retries exhausted")

	// ErrBudgetExceeded wraps the last failure when the next delay would push
	// the total elapsed time past Config.MaxElapsed.
	ErrBudgetExceeded = errors.New("retry time budget exceeded")
)

// DefaultRetryOn lists the classes retried when Config.RetryOn is nil.
var DefaultRetryOn = []apierror.Class{
	apierror.ClassTimeout,
	apierror.ClassNetwork,
	apierror.ClassServer,
	apierror.ClassRateLimit,
}

// Config is the retry policy. MaxRetries counts retries, so the operation
// runs at most MaxRetries+1 times.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration // zero disables the cap
	MaxElapsed time.Duration // zero disables the budget
	Jitter     bool
	Multiplier float64 // values <= 0 select 2

	// RetryOn lists the retryable classes. Nil selects DefaultRetryOn; an
	// empty non-nil slice retries nothing.
	RetryOn []apierror.Class

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(Event)
}

// Event describes one scheduled retry.
type Event struct {
	Attempt int           // attempt that just failed, starting at 1
	Delay   time.Duration // sleep before the next attempt
	Err     error         // failure of the attempt
}

// DefaultConfig returns the stock policy: 3 retries, 1s doubling to at most
// 30s with jitter, within a 2 minute budget.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		MaxElapsed: 2 * time.Minute,
		Jitter:     true,
		Multiplier: 2,
	}
}

// Retryable reports whether failures of class are retried under cfg.
func (cfg Config) Retryable(class apierror.Class) bool {
	if class == apierror.ClassCancelled || class == "" {
		return false
	}
	retryOn := cfg.RetryOn
	if retryOn == nil {
		retryOn = DefaultRetryOn
	}
	return slices.Contains(retryOn, class)
}

// Delay returns the un-jittered sleep after the failed attempt with
// zero-based index k: min(BaseDelay * Multiplier^k, MaxDelay).
func Delay(cfg Config, k int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	delay := float64(cfg.BaseDelay) * math.Pow(multiplier, float64(k))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// jitterFactor returns a factor in [0.5, 1.5).
var jitterFactor = func() float64 {
	return 0.5 + rand.Float64()
}

// Result is the outcome of Run.
type Result[T any] struct {
	Success  bool
	Value    T
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// Run calls op until it succeeds, fails with a non-retryable error, runs out
// of attempts or exceeds the time budget. op receives the one-based attempt
// number. Cancelling ctx stops the loop at once with a cancelled error.
func Run[T any](ctx context.Context, cfg Config, op func(ctx context.Context, attempt int) (T, error)) Result[T] {
	var (
		start     = time.Now()
		result    Result[T]
		lastErr   error
		exhausted bool
		overspent bool
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if result.Attempts > cfg.MaxRetries {
			exhausted = true
			return 0, true
		}
		delay := Delay(cfg, result.Attempts-1)
		if cfg.Jitter {
			delay = time.Duration(float64(delay) * jitterFactor())
		}
		var apiErr *apierror.Error
		if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > delay {
			delay = apiErr.RetryAfter
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
		if cfg.MaxElapsed > 0 && time.Since(start)+delay > cfg.MaxElapsed {
			overspent = true
			return 0, true
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(Event{Attempt: result.Attempts, Delay: delay, Err: lastErr})
		}
		return delay, false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		result.Attempts++
		value, err := op(ctx, result.Attempts)
		if err == nil {
			result.Value = value
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !cfg.Retryable(apierror.ClassOf(err)) {
			return err
		}
		return goretry.RetryableError(err)
	})

	result.Elapsed = time.Since(start)
	switch {
	case err == nil:
		result.Success = true
	case ctx.Err() != nil:
		result.Err = apierror.FromContext(ctx)
	case overspent:
		result.Err = fmt.Errorf("%w after %d attempts: %w", ErrBudgetExceeded, result.Attempts, lastErr)
	case exhausted:
		result.Err = fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, result.Attempts, lastErr)
	default:
		result.Err = err
	}
	return result
}
