// Package transfer publishes the enriched trajectory documents and the day
// animations to the remote web host.
package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"marsfeed/pkg/config"
	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/retry"
)

// Uploader is a remote file store
type Uploader interface {
	Store(ctx context.Context, remotePath string, r io.Reader) error
	List(ctx context.Context, dir string) ([]string, error)
	Close() error
}

// Summary counts the outcome of one Publish call
type Summary struct {
	Documents int
	Sequences int
	Existing  int
	Failed    int
	Failures  []errs.ItemFailure
}

// Publisher uploads local outputs through an Uploader
type Publisher struct {
	uploader     Uploader
	documents    []string
	sequencesDir string
	cfg          config.TransferConfig
	retry        *retry.Config
	logger       logger.Logger
}

// NewPublisher uploads the given document files (full local paths) and
// every .gif in sequencesDir
func NewPublisher(uploader Uploader, documents []string, sequencesDir string, cfg config.TransferConfig, retryCfg *retry.Config, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Publisher{
		uploader:     uploader,
		documents:    documents,
		sequencesDir: sequencesDir,
		cfg:          cfg,
		retry:        retryCfg,
		logger:       log,
	}
}

// Publish always overwrites the documents and uploads only the animations
// missing from the remote listing. Item failures are collected; a failed
// remote listing fails the whole call.
func (p *Publisher) Publish(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	for _, local := range p.documents {
		remote := path.Join(p.cfg.DocumentsPrefix, filepath.Base(local))
		if err := p.upload(ctx, local, remote); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			p.fail(summary, local, err)
			continue
		}
		summary.Documents++
	}

	remote, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]string, error) {
		return p.uploader.List(ctx, p.cfg.SequencesPrefix)
	}, p.retry)
	if err != nil {
		return summary, fmt.Errorf("list remote sequences: %w", err)
	}
	present := make(map[string]bool, len(remote))
	for _, name := range remote {
		present[path.Base(name)] = true
	}

	local, err := p.localSequences()
	if err != nil {
		return summary, err
	}
	for _, name := range local {
		if present[name] {
			summary.Existing++
			continue
		}
		target := path.Join(p.cfg.SequencesPrefix, name)
		if err := p.upload(ctx, filepath.Join(p.sequencesDir, name), target); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			p.fail(summary, name, err)
			continue
		}
		summary.Sequences++
	}

	p.logger.InfoWithFields("Publish finished", map[string]interface{}{
		"documents": summary.Documents,
		"sequences": summary.Sequences,
		"existing":  summary.Existing,
		"failed":    summary.Failed,
	})
	return summary, nil
}

func (p *Publisher) upload(ctx context.Context, local, remote string) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		f, err := os.Open(local)
		if err != nil {
			return errs.New(errs.ErrorTypeStorage, 0, "open %s: %v", local, err)
		}
		defer f.Close()
		return p.uploader.Store(ctx, remote, f)
	}, p.retry)
}

func (p *Publisher) fail(summary *Summary, item string, err error) {
	p.logger.WithError(err).WarnWithFields("Upload failed", map[string]interface{}{
		"item": item,
	})
	summary.Failed++
	summary.Failures = append(summary.Failures, errs.ItemFailure{
		Stage: "upload",
		Item:  filepath.Base(item),
		Error: err.Error(),
	})
}

func (p *Publisher) localSequences() ([]string, error) {
	entries, err := os.ReadDir(p.sequencesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sequences: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".gif") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
