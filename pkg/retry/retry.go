package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "recipecards/pkg/errors"
	"recipecards/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// ErrExhausted is wrapped into the error returned once every retry is used up.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config holds retry configuration
type Config struct {
	// MaxRetries is the number of additional attempts after the first one
	MaxRetries int
	// Backoff strategy to use between attempts
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry delay
	OnRetry func(attempt int, err error, delay time.Duration)
	// Context bounds the delays; a done context stops further attempts
	Context context.Context
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig retries connection-reset class failures three times with a
// uniformly random 1-6s pause.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: 3,
		Backoff:    NewUniformJitter(1*time.Second, 6*time.Second),
		RetryIf:    errs.IsTransient,
		Context:    context.Background(),
	}
}

// Do executes an operation with retry logic. It returns the number of
// attempts made alongside the final error.
func Do(op Operation, cfg *Config) (int, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = errs.IsTransient
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return attempt, nil
		}

		if !retryIf(err) {
			return attempt, err
		}

		if attempt > cfg.MaxRetries {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt,
					"last_error": err.Error(),
				})
			}
			return attempt, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		var delay time.Duration
		if cfg.Backoff != nil {
			delay = cfg.Backoff.NextDelay(attempt)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":     attempt,
				"error":       err.Error(),
				"delay_ms":    delay.Milliseconds(),
				"max_retries": cfg.MaxRetries,
			})
		}

		if werr := Wait(ctx, delay); werr != nil {
			return attempt, fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, int, error) {
	var result T

	attempts, err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, attempts, err
}
