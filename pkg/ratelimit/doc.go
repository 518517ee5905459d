// Package ratelimit keeps request rates to each museum API polite.
//
// TokenBucket holds a fixed number of tokens that refill all at once after
// the refill period. Each adapter owns its own bucket, so a slow source
// never throttles another. Wait honours context cancellation.
//
//	limiter := ratelimit.PerMinute(60)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
