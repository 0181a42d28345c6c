package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
}

// PerMinute returns a limiter admitting n requests a minute on average, with
// bursts of up to n. A non-positive n disables limiting.
func PerMinute(n int) Limiter {
	if n <= 0 {
		return Unlimited{}
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
