package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"marsfeed/pkg/logger"
	"marsfeed/pkg/models"
	"marsfeed/pkg/retry"
)

// Status is the outcome of one fetch job
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// Job is a single asset to fetch into a day directory
type Job struct {
	Day       models.Day
	Reference models.Reference
	Filename  string
}

// Result represents the result of a fetch job
type Result struct {
	Job      Job
	Status   Status
	Err      error
	Bytes    int64
	Duration time.Duration
}

// AssetFetcher streams a remote asset into w
type AssetFetcher interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// AssetStore persists fetched assets
type AssetStore interface {
	Exists(day models.Day, filename string) bool
	Save(day models.Day, filename string, write func(w io.Writer) error) error
}

// WorkerPool runs a fixed number of fetch workers over a job queue
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     AssetFetcher
	store       AssetStore
	retry       *retry.Config
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx. Cancelling ctx stops workers
// after their current job.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher AssetFetcher,
	store AssetStore,
	retryCfg *retry.Config,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		store:       store,
		retry:       retryCfg,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for every worker to finish and then closes
// the result channel. No job may be submitted after Stop.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel. It must be drained concurrently with
// Submit, and it is closed by Stop.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			return
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if wp.store.Exists(job.Day, job.Filename) {
		result.Status = StatusSkipped
		result.Duration = time.Since(start)
		return result
	}

	err := retry.Do(wp.ctx, func(ctx context.Context) error {
		return wp.store.Save(job.Day, job.Filename, func(w io.Writer) error {
			n, err := wp.fetcher.Download(ctx, string(job.Reference), w)
			result.Bytes = n
			return err
		})
	}, wp.retry)
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		wp.logger.WarnWithFields("Worker failed to fetch asset", map[string]interface{}{
			"worker_id": workerID,
			"day":       job.Day.Key(),
			"filename":  job.Filename,
			"error":     err.Error(),
		})
		return result
	}

	result.Status = StatusDownloaded
	wp.logger.DebugWithFields("Worker fetched asset", map[string]interface{}{
		"worker_id": workerID,
		"day":       job.Day.Key(),
		"filename":  job.Filename,
		"bytes":     result.Bytes,
		"duration":  result.Duration,
	})
	return result
}

// Workers returns the pool size
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}
