// Package ratelimit holds the two throttles used by marsfeed.
//
// RequestLimiter wraps golang.org/x/time/rate and paces every HTTP request
// made against the remote catalog and trajectory hosts. Batch is the coarse
// issuance throttle of the asset fetcher: after every N newly submitted
// downloads it pauses for a fixed duration.
//
//	batch := ratelimit.NewBatch(20, 2*time.Second)
//	for _, job := range jobs {
//		pool.Submit(job)
//		if err := batch.Issued(ctx); err != nil {
//			return err
//		}
//	}
package ratelimit
