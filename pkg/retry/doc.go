// Package retry provides configurable retry logic for transient failures:
// the store connection at daemon startup and provider HTTP calls inside
// processors.
//
// The job queue's own retry bookkeeping (attempts, run_after, backoff) is a
// separate mechanism that lives in the queue itself; this package is for
// in-process operations only.
//
// Basic usage:
//
//	err := retry.Do(func() error {
//	    return db.PingContext(ctx)
//	}, retry.WithMaxAttempts(5))
//
// With a context and custom backoff:
//
//	err := retry.DoWithContext(ctx, connect,
//	    retry.WithBackoffStrategy(retry.NewExponentialBackoff(
//	        retry.WithInitialDelay(time.Second),
//	    )),
//	)
package retry
