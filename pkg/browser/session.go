// Package browser drives a headless Chrome instance over the catalog pages.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"marsfeed/pkg/config"
	"marsfeed/pkg/logger"
)

// Session renders the catalog in a browser tab. It satisfies crawler.Session.
type Session struct {
	ctx             context.Context
	cancelBrowser   context.CancelFunc
	cancelAllocator context.CancelFunc
	nextSelector    string
	timeout         time.Duration
	logger          logger.Logger
}

// Open starts the browser and loads the first catalog page
func Open(ctx context.Context, crawl config.CrawlConfig, userAgent string, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if crawl.StartURL == "" {
		return nil, fmt.Errorf("crawl start url is not configured")
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", crawl.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	allocCtx, cancelAllocator := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:             browserCtx,
		cancelBrowser:   cancelBrowser,
		cancelAllocator: cancelAllocator,
		nextSelector:    crawl.NextSelector,
		timeout:         crawl.PageTimeout,
		logger:          log.WithField("component", "browser"),
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}

	// the browser is bound to the context of the first Run, so start it
	// before any per-action timeout applies
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	start := time.Now()
	if err := s.run(ctx, chromedp.Navigate(crawl.StartURL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s: %w", crawl.StartURL, err)
	}
	s.logger.InfoWithFields("Catalog page loaded", map[string]interface{}{
		"url":      crawl.StartURL,
		"headless": crawl.Headless,
		"elapsed":  time.Since(start).String(),
	})
	return s, nil
}

// Snapshot returns the rendered document
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// HasNextPage reports false when the next control is absent or disabled
func (s *Session) HasNextPage(ctx context.Context) (bool, error) {
	var state controlState
	if err := s.run(ctx, chromedp.Evaluate(controlProbe(s.nextSelector), &state)); err != nil {
		return false, err
	}
	return state.enabled(), nil
}

// NextPage clicks the next control
func (s *Session) NextPage(ctx context.Context) error {
	return s.run(ctx, chromedp.Click(s.nextSelector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Close shuts the tab and the browser process
func (s *Session) Close() {
	s.cancelBrowser()
	s.cancelAllocator()
}

// run bounds each interaction by the page timeout and by the caller's context
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

type controlState struct {
	Found     bool   `json:"found"`
	ClassName string `json:"className"`
}

func (c controlState) enabled() bool {
	if !c.Found {
		return false
	}
	for _, class := range strings.Fields(c.ClassName) {
		if strings.Contains(class, "disabled") {
			return false
		}
	}
	return true
}

func controlProbe(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) { return {found: false, className: ""}; }
	return {found: true, className: String(el.className || "")};
})()`, quoted)
}
