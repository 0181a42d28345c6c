// Package ratelimit throttles outbound requests to the recipe site.
//
// PerMinute is a token bucket from golang.org/x/time/rate. Wait blocks until
// a token is available, or returns early when ctx is done or its deadline
// would pass first:
//
//	limiter := ratelimit.PerMinute(60)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
//	// Proceed with request
//
// PerMinute(0) yields Unlimited, which never blocks.
package ratelimit
