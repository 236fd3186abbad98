// Package httputil provides HTTP helpers shared by the registry and
// download clients.
//
// # Retry
//
// [Policy] wraps a request with retry for transient failures:
//
//   - Network errors
//   - 5xx server errors
//
// Only errors wrapped with [RetryableError] are retried, with exponential
// backoff between attempts:
//
//	p := httputil.Policy{Attempts: 3, Delay: time.Second}
//	err := p.Do(ctx, func() error {
//	    return fetch(ctx)
//	})
//
// The zero Policy makes exactly one attempt. chocorepack treats a failed
// download as fatal by default, so retries are opt-in (--retries).
package httputil
