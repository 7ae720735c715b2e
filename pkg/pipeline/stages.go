package pipeline

import (
	"context"
	"errors"
	"fmt"

	"marsfeed/pkg/catalog"
	"marsfeed/pkg/crawler"
	"marsfeed/pkg/fetcher"
	"marsfeed/pkg/models"
	"marsfeed/pkg/sequence"
	"marsfeed/pkg/storage"
	"marsfeed/pkg/trajectory"
	"marsfeed/pkg/transfer"
)

// ErrMissingInput is returned when a stage's persisted input is absent
var ErrMissingInput = errors.New("missing stage input")

func (p *Pipeline) crawl(ctx context.Context) (*stageOutput, error) {
	if p.deps.OpenSession == nil {
		return nil, errors.New("no catalog session configured")
	}
	var known []models.Reference
	if _, err := p.docs.LoadJSON(storage.ReferencesDocument, &known); err != nil {
		return nil, err
	}

	session, release, err := p.deps.OpenSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open catalog session: %w", err)
	}
	defer release()

	res, err := crawler.New(p.cfg.Crawl, p.logger).Crawl(ctx, session, known)
	if err != nil {
		return nil, err
	}
	// the known set is only written after the crawl completed
	if err := p.docs.SaveJSON(storage.ReferencesDocument, res.References); err != nil {
		return nil, err
	}

	return &stageOutput{result: StageResult{
		Items:   res.Discovered,
		Skipped: len(known),
		Note:    fmt.Sprintf("%d pages, stopped: %s", res.Pages, res.Reason),
	}}, nil
}

func (p *Pipeline) classify() (*stageOutput, error) {
	var refs []models.Reference
	found, err := p.docs.LoadJSON(storage.ReferencesDocument, &refs)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, storage.ReferencesDocument)
	}

	classifier := catalog.NewClassifier(models.DefaultTaxonomy(), p.cfg.Catalog.MinDay, p.cfg.Catalog.MaxDay)
	index := classifier.Classify(refs)
	if err := p.docs.SaveJSON(storage.IndexDocument, index); err != nil {
		return nil, err
	}

	classified := 0
	for _, images := range index {
		classified += images.Count()
	}
	return &stageOutput{result: StageResult{
		Items:   classified,
		Skipped: len(refs) - classified,
		Note:    fmt.Sprintf("%d days", len(index)),
	}}, nil
}

func (p *Pipeline) loadIndex() (models.Index, error) {
	index := models.Index{}
	found, err := p.docs.LoadJSON(storage.IndexDocument, &index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, storage.IndexDocument)
	}
	return index, nil
}

func (p *Pipeline) correlate(ctx context.Context) (*stageOutput, error) {
	if p.deps.HTTP == nil {
		return nil, errors.New("no http client configured")
	}
	index, err := p.loadIndex()
	if err != nil {
		return nil, err
	}

	docs := p.cfg.Trajectory.Documents
	fetched, err := trajectory.NewSource(p.deps.HTTP, docs, p.retry, p.logger).FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	report, err := trajectory.NewCorrelator(index, docs, p.cfg.Trajectory.Strict, p.logger).Correlate(fetched)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if err := p.docs.SaveJSON(trajectory.FileName(doc), report.Documents[doc.Name]); err != nil {
			return nil, err
		}
	}
	return &stageOutput{
		result: StageResult{
			Items:  report.Enriched,
			Failed: len(report.Failures),
			Note:   fmt.Sprintf("%d documents, %d unresolved segments", len(report.Documents), len(report.Unresolved)),
		},
		failures: report.Failures,
	}, nil
}

func (p *Pipeline) fetch(ctx context.Context) (*stageOutput, error) {
	if p.deps.HTTP == nil {
		return nil, errors.New("no http client configured")
	}
	index, err := p.loadIndex()
	if err != nil {
		return nil, err
	}

	f := p.cfg.Fetch
	summary, err := fetcher.New(p.deps.HTTP, p.assets, fetcher.Options{
		Workers:    f.Workers,
		BatchSize:  f.BatchSize,
		BatchPause: f.BatchPause,
		Retry:      p.retry,
	}, p.logger).FetchAll(ctx, index, f.Family, f.Instrument)
	if err != nil {
		return nil, err
	}

	incomplete := summary.Incomplete
	if incomplete == nil {
		incomplete = map[models.Day]bool{}
	}
	return &stageOutput{
		result: StageResult{
			Items:   summary.Downloaded,
			Skipped: summary.Skipped,
			Failed:  summary.Failed,
			Note:    fmt.Sprintf("%d issued, %d bytes", summary.Issued, summary.Bytes),
		},
		failures:   summary.Failures,
		incomplete: incomplete,
	}, nil
}

func (p *Pipeline) assemble(ctx context.Context, incomplete map[models.Day]bool) (*stageOutput, error) {
	summary, err := sequence.NewAssembler(p.assets, p.cfg.Data.SequencesPath(), p.cfg.Assemble.Dither, p.logger).
		Assemble(ctx, incomplete)
	if err != nil {
		return nil, err
	}
	return &stageOutput{
		result: StageResult{
			Items:   len(summary.Built),
			Skipped: summary.Existing,
			Failed:  summary.Failed,
			Note:    fmt.Sprintf("%d deferred", summary.Deferred),
		},
		failures: summary.Failures,
	}, nil
}

func (p *Pipeline) upload(ctx context.Context) (*stageOutput, error) {
	if p.deps.DialUploader == nil {
		return nil, errors.New("no uploader configured")
	}
	uploader, err := p.deps.DialUploader(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := uploader.Close(); err != nil {
			p.logger.WithError(err).Warn("Failed to close uploader")
		}
	}()

	summary, err := transfer.NewPublisher(uploader, p.documentPaths(), p.cfg.Data.SequencesPath(), p.cfg.Transfer, p.retry, p.logger).
		Publish(ctx)
	if err != nil {
		return nil, err
	}
	return &stageOutput{
		result: StageResult{
			Items:   summary.Documents + summary.Sequences,
			Skipped: summary.Existing,
			Failed:  summary.Failed,
			Note:    fmt.Sprintf("%d documents, %d animations", summary.Documents, summary.Sequences),
		},
		failures: summary.Failures,
	}, nil
}
