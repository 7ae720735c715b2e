package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"marsfeed/internal/downloader"
	"marsfeed/pkg/checkpoint"
	"marsfeed/pkg/config"
	"marsfeed/pkg/crawler"
	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/models"
	"marsfeed/pkg/retry"
	"marsfeed/pkg/storage"
	"marsfeed/pkg/trajectory"
	"marsfeed/pkg/transfer"
)

// Stage names a pipeline step
type Stage string

const (
	StageCrawl     Stage = "crawl"
	StageClassify  Stage = "classify"
	StageCorrelate Stage = "correlate"
	StageFetch     Stage = "fetch"
	StageAssemble  Stage = "assemble"
	StageUpload    Stage = "upload"
)

// Stages in execution order
var Stages = []Stage{StageCrawl, StageClassify, StageCorrelate, StageFetch, StageAssemble, StageUpload}

// ParseStage accepts a stage name
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", name)
}

// HTTPClient is what the network stages need from the HTTP layer
type HTTPClient interface {
	trajectory.JSONGetter
	downloader.AssetFetcher
}

// SessionOpener starts a catalog session. The returned func releases it.
type SessionOpener func(ctx context.Context) (crawler.Session, func(), error)

// UploaderDialer connects to the publishing host
type UploaderDialer func(ctx context.Context) (transfer.Uploader, error)

// Dependencies are the external collaborators of a pipeline
type Dependencies struct {
	HTTP         HTTPClient
	OpenSession  SessionOpener
	DialUploader UploaderDialer
}

// RunOptions control checkpoint handling and stage selection
type RunOptions struct {
	Resume       bool
	ForceRestart bool
	// Only runs the listed stages without a checkpoint. Empty means all.
	Only []Stage
}

// StageResult summarises one stage
type StageResult struct {
	Stage   Stage
	Items   int
	Skipped int
	Failed  int
	Elapsed time.Duration
	Note    string
	Resumed bool
}

// Report is the outcome of a run
type Report struct {
	RunID    string
	Stages   []StageResult
	Failures []errs.ItemFailure
}

// Pipeline runs the catalog stages against one data directory
type Pipeline struct {
	cfg    *config.Config
	deps   Dependencies
	docs   *storage.Documents
	assets *storage.Manager
	retry  *retry.Config
	logger logger.Logger
}

// New prepares the data directory tree
func New(cfg *config.Config, deps Dependencies, log logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	docs, err := storage.NewDocuments(cfg.Data.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	assets, err := storage.NewManager(cfg.Data.AssetsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		docs:   docs,
		assets: assets,
		retry:  retry.FromConfig(cfg.Retry, log),
		logger: log,
	}, nil
}

// Run executes the selected stages under the data directory lock. A full
// run is checkpointed after every stage; a stage error leaves the
// checkpoint and every persisted document in place.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	lock, err := storage.AcquireRunLock(p.cfg.Data.Directory)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if len(opts.Only) > 0 {
		return p.runStages(ctx, opts.Only, nil, nil)
	}

	cpMgr, err := checkpoint.NewManager(p.cfg.Data.Directory, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	var cp *checkpoint.Checkpoint
	switch {
	case opts.ForceRestart && cpMgr.Exists():
		if err := cpMgr.Delete(); err != nil {
			p.logger.WithError(err).Warn("Failed to delete existing checkpoint")
		}
	case opts.Resume && cpMgr.Exists():
		cp, err = cpMgr.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
	case cpMgr.Exists():
		return nil, ErrCheckpointExists
	}
	if cp == nil {
		if cp, err = cpMgr.Create(); err != nil {
			return nil, err
		}
	}

	report, err := p.runStages(ctx, Stages, cp, cpMgr)
	if err != nil {
		return report, err
	}
	if err := cpMgr.Delete(); err != nil {
		p.logger.WithError(err).Warn("Failed to delete checkpoint after successful run")
	}
	return report, nil
}

// ErrCheckpointExists asks the caller to choose between resuming and
// starting over
var ErrCheckpointExists = stderrors.New("checkpoint exists - use --resume to continue or --force-restart to start fresh")

func (p *Pipeline) runStages(ctx context.Context, stages []Stage, cp *checkpoint.Checkpoint, cpMgr *checkpoint.Manager) (*Report, error) {
	report := &Report{}
	incomplete := map[models.Day]bool{}
	if cp != nil {
		report.RunID = cp.RunID
		report.Failures = append(report.Failures, cp.Failures...)
		incomplete = cp.IncompleteDays()
	}

	for _, stage := range stages {
		if cp != nil && cp.IsCompleted(string(stage)) {
			report.Stages = append(report.Stages, StageResult{Stage: stage, Resumed: true, Items: cp.Counts[string(stage)]})
			p.logger.InfoWithFields("Stage already completed, skipping", map[string]interface{}{"stage": stage})
			continue
		}

		logger.LogStageStart(p.logger, string(stage), nil)
		start := time.Now()

		out, err := p.runStage(ctx, stage, incomplete)
		if err != nil {
			p.logger.WithError(err).ErrorWithFields("Stage failed", map[string]interface{}{"stage": stage})
			return report, &errs.StageError{Stage: string(stage), Err: err}
		}
		out.result.Stage = stage
		out.result.Elapsed = time.Since(start)
		if out.incomplete != nil {
			incomplete = out.incomplete
		}

		logger.LogStageDone(p.logger, string(stage), out.result.Elapsed, map[string]interface{}{
			"items":   out.result.Items,
			"skipped": out.result.Skipped,
			"failed":  out.result.Failed,
		})
		report.Stages = append(report.Stages, out.result)
		report.Failures = append(report.Failures, out.failures...)

		if cp != nil {
			if out.incomplete != nil {
				cp.SetIncomplete(out.incomplete)
			}
			if err := cpMgr.CompleteStage(cp, string(stage), out.result.Items, out.failures); err != nil {
				return report, &errs.StageError{Stage: string(stage), Err: err}
			}
		}
	}
	return report, nil
}

type stageOutput struct {
	result     StageResult
	failures   []errs.ItemFailure
	incomplete map[models.Day]bool
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, incomplete map[models.Day]bool) (*stageOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch stage {
	case StageCrawl:
		return p.crawl(ctx)
	case StageClassify:
		return p.classify()
	case StageCorrelate:
		return p.correlate(ctx)
	case StageFetch:
		return p.fetch(ctx)
	case StageAssemble:
		return p.assemble(ctx, incomplete)
	case StageUpload:
		return p.upload(ctx)
	}
	return nil, fmt.Errorf("unknown stage %q", stage)
}

// documentPaths lists the persisted trajectory documents that exist
func (p *Pipeline) documentPaths() []string {
	var paths []string
	for _, doc := range p.cfg.Trajectory.Documents {
		path := p.docs.Path(trajectory.FileName(doc))
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}
	return paths
}
