// Package retry provides exponential backoff and retry logic for handling
// transient failures when talking to the archive API.
//
// Features:
//   - Exponential and constant backoff strategies
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Configurable retry predicates
//   - Integration with the typed errors of pkg/errors
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return client.GetJSON(ctx, url, &out)
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(operation, cfg)
//
// The default predicate retries network, timeout, rate-limit and server
// errors; auth, not-found and decode errors propagate immediately.
package retry
