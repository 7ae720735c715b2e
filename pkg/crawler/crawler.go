// Package crawler walks a paginated raw-image catalog and extends the set of
// known image references in discovery order.
package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marsfeed/pkg/config"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/models"
)

// Session is a rendered catalog page that can be advanced
type Session interface {
	Snapshot(ctx context.Context) (string, error)
	HasNextPage(ctx context.Context) (bool, error)
	NextPage(ctx context.Context) error
}

// StopReason says why a crawl ended
type StopReason string

const (
	StopLastPage StopReason = "last_page"
	StopStale    StopReason = "stale"
	StopMaxPages StopReason = "max_pages"
)

// Result of a completed crawl
type Result struct {
	References []models.Reference
	Discovered int
	Pages      int
	Reason     StopReason
}

// Crawler extends a known reference set from a Session
type Crawler struct {
	selector       string
	attr           string
	staleThreshold int
	maxPages       int
	settleDelay    time.Duration
	logger         logger.Logger
}

// New creates a crawler from the crawl configuration
func New(cfg config.CrawlConfig, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	c := &Crawler{
		selector:       cfg.ThumbnailSelector,
		attr:           cfg.ThumbnailAttr,
		staleThreshold: cfg.StaleThreshold,
		maxPages:       cfg.MaxPages,
		settleDelay:    cfg.SettleDelay,
		logger:         log,
	}
	if c.attr == "" {
		c.attr = "src"
	}
	if c.staleThreshold <= 0 {
		c.staleThreshold = 10
	}
	return c
}

// Crawl snapshots pages until the session runs out of pages, the stale
// counter reaches its threshold, or the page limit is hit. known is never
// modified; the returned set starts with it and only grows. On error the
// partial result is discarded.
func (c *Crawler) Crawl(ctx context.Context, session Session, known []models.Reference) (*Result, error) {
	res := &Result{References: make([]models.Reference, len(known), len(known)+64)}
	copy(res.References, known)

	seen := make(map[models.Reference]struct{}, len(known))
	for _, ref := range known {
		seen[ref] = struct{}{}
	}

	stale := 0
	for {
		html, err := session.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot page %d: %w", res.Pages+1, err)
		}
		refs, err := ParseThumbnails(html, c.selector, c.attr)
		if err != nil {
			return nil, fmt.Errorf("parse page %d: %w", res.Pages+1, err)
		}
		res.Pages++

		fresh := 0
		for _, ref := range refs {
			if _, ok := seen[ref]; ok {
				stale++
				continue
			}
			seen[ref] = struct{}{}
			res.References = append(res.References, ref)
			fresh++
			stale = 0
		}
		res.Discovered += fresh

		c.logger.DebugWithFields("Crawled page", map[string]interface{}{
			"page":       res.Pages,
			"thumbnails": len(refs),
			"new":        fresh,
			"stale":      stale,
		})

		if stale >= c.staleThreshold {
			res.Reason = StopStale
			return res, nil
		}
		if c.maxPages > 0 && res.Pages >= c.maxPages {
			res.Reason = StopMaxPages
			return res, nil
		}

		more, err := session.HasNextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("check next page: %w", err)
		}
		if !more {
			res.Reason = StopLastPage
			return res, nil
		}
		if err := session.NextPage(ctx); err != nil {
			return nil, fmt.Errorf("advance to page %d: %w", res.Pages+1, err)
		}
		if err := settle(ctx, c.settleDelay); err != nil {
			return nil, err
		}
	}
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseThumbnails returns the attr value of every element matching selector,
// in document order. Empty values are dropped.
func ParseThumbnails(html, selector, attr string) ([]models.Reference, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var refs []models.Reference
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				refs = append(refs, models.Reference(v))
			}
		}
	})
	return refs, nil
}
