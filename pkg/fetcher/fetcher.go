// Package fetcher downloads the frames of one instrument into the day-keyed
// asset tree with bounded concurrency. Frames already on disk are skipped,
// so a second run over the same index issues no work.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"marsfeed/internal/downloader"
	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/models"
	"marsfeed/pkg/ratelimit"
	"marsfeed/pkg/retry"
)

// Store is what the fetcher needs from the asset tree
type Store interface {
	downloader.AssetStore
}

// Options configures a Fetcher
type Options struct {
	Workers    int
	BatchSize  int
	BatchPause time.Duration
	Retry      *retry.Config
}

// Summary counts the outcome of one FetchAll call
type Summary struct {
	Issued     int
	Skipped    int
	Downloaded int
	Failed     int
	Bytes      int64
	Failures   []errs.ItemFailure
	// Incomplete holds the days with at least one failed frame
	Incomplete map[models.Day]bool
}

// Fetcher issues download jobs for missing frames
type Fetcher struct {
	source downloader.AssetFetcher
	store  Store
	opts   Options
	logger logger.Logger
}

// New creates a Fetcher
func New(source downloader.AssetFetcher, store Store, opts Options, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{source: source, store: store, opts: opts, logger: log}
}

// FetchAll walks the index in ascending day order and fetches every frame of
// family/instrument not yet on disk. It returns once every issued job has
// finished. Per-frame failures are reported in the summary, not as an error.
func (f *Fetcher) FetchAll(ctx context.Context, index models.Index, family, instrument string) (*Summary, error) {
	summary := &Summary{}
	outcome := &Summary{}
	pool := downloader.NewWorkerPool(ctx, f.opts.Workers, f.source, f.store, f.opts.Retry, f.logger)
	batch := ratelimit.NewBatch(f.opts.BatchSize, f.opts.BatchPause)

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for result := range pool.Results() {
			f.record(outcome, result)
		}
	}()

	pool.Start()
	submitErr := f.submit(ctx, pool, batch, index, family, instrument, summary)
	pool.Stop()
	<-collected
	summary.merge(outcome)

	f.logger.InfoWithFields("Fetch finished", map[string]interface{}{
		"family":     family,
		"instrument": instrument,
		"issued":     summary.Issued,
		"skipped":    summary.Skipped,
		"downloaded": summary.Downloaded,
		"failed":     summary.Failed,
	})

	if submitErr != nil {
		return summary, submitErr
	}
	return summary, ctx.Err()
}

func (f *Fetcher) submit(
	ctx context.Context,
	pool *downloader.WorkerPool,
	batch *ratelimit.Batch,
	index models.Index,
	family, instrument string,
	summary *Summary,
) error {
	for _, day := range index.Days() {
		for _, ref := range index[day.Key()][family][instrument] {
			filename := ref.Filename()
			if filename == "" {
				continue
			}
			if f.store.Exists(day, filename) {
				summary.Skipped++
				continue
			}

			job := downloader.Job{Day: day, Reference: ref, Filename: filename}
			if err := pool.Submit(job); err != nil {
				return fmt.Errorf("submit %s: %w", filename, err)
			}
			summary.Issued++

			if err := batch.Issued(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Summary) merge(o *Summary) {
	s.Skipped += o.Skipped
	s.Downloaded += o.Downloaded
	s.Failed += o.Failed
	s.Bytes += o.Bytes
	s.Failures = append(s.Failures, o.Failures...)
	for day := range o.Incomplete {
		if s.Incomplete == nil {
			s.Incomplete = make(map[models.Day]bool)
		}
		s.Incomplete[day] = true
	}
}

// record runs on the single collector goroutine only
func (f *Fetcher) record(summary *Summary, result downloader.Result) {
	logger.LogFetch(f.logger, result.Job.Day.Key(), result.Job.Filename, string(result.Status), result.Err)

	switch result.Status {
	case downloader.StatusDownloaded:
		summary.Downloaded++
		summary.Bytes += result.Bytes
	case downloader.StatusSkipped:
		summary.Skipped++
	case downloader.StatusFailed:
		summary.Failed++
		if summary.Incomplete == nil {
			summary.Incomplete = make(map[models.Day]bool)
		}
		summary.Incomplete[result.Job.Day] = true
		summary.Failures = append(summary.Failures, errs.ItemFailure{
			Stage: "fetch",
			Item:  result.Job.Day.Key() + "/" + result.Job.Filename,
			Error: result.Err.Error(),
		})
	}
}
