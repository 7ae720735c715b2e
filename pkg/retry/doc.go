// Package retry runs operations with bounded exponential backoff.
//
// Remote document downloads, asset fetches and uploads all go through Do so
// that a transient failure is retried a few times before it is recorded as a
// per-item failure. Typed errors from marsfeed/pkg/errors decide what is
// transient; context cancellation is never retried.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return client.Download(ctx, url, w)
//	}, retry.FromConfig(cfg.Retry, log))
package retry
