// Package retry provides exponential backoff and retry logic for transient
// failures of museum search requests.
//
// Only search calls are retried. Image downloads are never retried within a
// run: a failed fetch makes the session move on to the next candidate.
//
// Basic usage:
//
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.SearchBackoff(),
//		RetryIf:     retry.DefaultRetryIf,
//		Context:     ctx,
//		Logger:      log,
//	}
//	page, err := retry.DoWithResult(func() ([]byte, error) {
//		return client.GetJSON(ctx, url)
//	}, cfg)
//
// DefaultRetryIf retries errors of kind transient (network failures,
// timeouts, 408, 429 and 5xx responses) and never retries a cancelled or
// expired context.
package retry
