package retry

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the retry that follows attempt
	NextDelay(attempt int) time.Duration
}

// UniformJitter picks every delay uniformly at random from [Min, Max].
type UniformJitter struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformJitter returns a jitter backoff over [min, max].
func NewUniformJitter(min, max time.Duration) *UniformJitter {
	return NewUniformJitterWithSource(min, max, rand.NewSource(time.Now().UnixNano()))
}

// NewUniformJitterWithSource is NewUniformJitter with a caller-provided
// random source, for reproducible delays.
func NewUniformJitterWithSource(min, max time.Duration, src rand.Source) *UniformJitter {
	if max < min {
		min, max = max, min
	}
	return &UniformJitter{Min: min, Max: max, rng: rand.New(src)}
}

// NextDelay returns a random delay in [Min, Max]; the attempt number does not
// grow the range.
func (u *UniformJitter) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	span := u.Max - u.Min
	if span <= 0 {
		return u.Min
	}

	u.mu.Lock()
	n := u.rng.Int63n(int64(span) + 1)
	u.mu.Unlock()

	return u.Min + time.Duration(n)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
