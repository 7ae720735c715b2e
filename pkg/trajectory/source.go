package trajectory

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"marsfeed/pkg/config"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/retry"
)

// JSONGetter fetches and decodes a remote JSON document
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, target interface{}) error
}

// Source downloads the configured trajectory documents
type Source struct {
	getter JSONGetter
	docs   []config.DocumentConfig
	retry  *retry.Config
	logger logger.Logger
}

// NewSource creates a Source for docs
func NewSource(getter JSONGetter, docs []config.DocumentConfig, retryCfg *retry.Config, log logger.Logger) *Source {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Source{getter: getter, docs: docs, retry: retryCfg, logger: log}
}

// FetchAll downloads every document concurrently. The first document that
// still fails after retries cancels the rest.
func (s *Source) FetchAll(ctx context.Context) (map[string]*FeatureCollection, error) {
	var mu sync.Mutex
	out := make(map[string]*FeatureCollection, len(s.docs))

	g, ctx := errgroup.WithContext(ctx)
	for _, doc := range s.docs {
		doc := doc
		g.Go(func() error {
			fc, err := retry.DoWithResult(ctx, func(ctx context.Context) (*FeatureCollection, error) {
				var fc FeatureCollection
				if err := s.getter.GetJSON(ctx, doc.URL, &fc); err != nil {
					return nil, err
				}
				return &fc, nil
			}, s.retry)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", doc.Name, err)
			}

			s.logger.DebugWithFields("Fetched trajectory document", map[string]interface{}{
				"document": doc.Name,
				"features": len(fc.Features),
			})
			mu.Lock()
			out[doc.Name] = fc
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FileName is the persisted name of an enriched document
func FileName(doc config.DocumentConfig) string {
	return doc.Name + ".json"
}
