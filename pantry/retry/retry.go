// retry/retry.go
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts counts the first call. Default: 3.
	MaxAttempts int

	// InitialDelay is the wait before the first retry. Default: 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the wait between retries. Default: 30s.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry. Default: 2.0.
	Multiplier float64

	// Jitter spreads each delay by +/- this fraction (0.0 to 1.0).
	Jitter float64

	// RetryIf reports whether err is worth another attempt. Nil retries
	// every error except Permanent ones.
	RetryIf func(error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns 3 attempts starting at 100ms with 10% jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Do calls fn until it succeeds, returns an error RetryIf rejects, runs out
// of attempts or ctx ends. The last error from fn is returned.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := DoWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = withDefaults(cfg)

	var (
		zero    T
		lastErr error
		delay   = cfg.InitialDelay
	)
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) || attempt == cfg.MaxAttempts {
			break
		}

		wait := addJitter(delay, cfg.Jitter)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, lastErr
		case <-t.C:
		}

		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}
	return zero, lastErr
}

func withDefaults(cfg Config) Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = SkipPermanent
	}
	return cfg
}

func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	return time.Duration(float64(d) - delta + rand.Float64()*2*delta)
}

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string {
	if p.Err == nil {
		return "permanent error"
	}
	return p.Err.Error()
}

func (p *Permanent) Unwrap() error {
	return p.Err
}

// PermanentError marks err as not retryable. nil stays nil.
func PermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// IsPermanent reports whether err carries a Permanent marker.
func IsPermanent(err error) bool {
	var p *Permanent
	return errors.As(err, &p)
}

// SkipPermanent is a RetryIf that retries everything not marked Permanent.
func SkipPermanent(err error) bool {
	return !IsPermanent(err)
}
