package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marsfeed/pkg/config"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/models"
)

// pagedSession serves fixed pages of thumbnails
type pagedSession struct {
	pages     [][]string
	current   int
	snapshots int
	failOn    int
}

func (s *pagedSession) Snapshot(ctx context.Context) (string, error) {
	s.snapshots++
	if s.failOn > 0 && s.snapshots == s.failOn {
		return "", errors.New("renderer crashed")
	}
	var b strings.Builder
	b.WriteString(`<html><body><ul>`)
	for _, src := range s.pages[s.current] {
		fmt.Fprintf(&b, `<li class="raw_image_container"><img src="%s"></li>`, src)
	}
	b.WriteString(`<li class="other"><img src="ignored"></li></ul></body></html>`)
	return b.String(), nil
}

func (s *pagedSession) HasNextPage(ctx context.Context) (bool, error) {
	return s.current < len(s.pages)-1, nil
}

func (s *pagedSession) NextPage(ctx context.Context) error {
	s.current++
	return nil
}

func testCrawler(mut func(*config.CrawlConfig)) *Crawler {
	cfg := config.CrawlConfig{
		ThumbnailSelector: "li.raw_image_container img",
		ThumbnailAttr:     "src",
		StaleThreshold:    10,
	}
	if mut != nil {
		mut(&cfg)
	}
	return New(cfg, logger.NewNopLogger())
}

func refs(vals ...string) []models.Reference {
	out := make([]models.Reference, len(vals))
	for i, v := range vals {
		out[i] = models.Reference(v)
	}
	return out
}

func TestCrawlDeduplicatesInDiscoveryOrder(t *testing.T) {
	session := &pagedSession{pages: [][]string{{"A", "B"}, {"B", "C"}, {"C", "D"}}}

	res, err := testCrawler(nil).Crawl(context.Background(), session, nil)
	require.NoError(t, err)
	assert.Equal(t, refs("A", "B", "C", "D"), res.References)
	assert.Equal(t, 4, res.Discovered)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, StopLastPage, res.Reason)
}

func TestCrawlExtendsKnownWithoutMutatingIt(t *testing.T) {
	known := refs("X", "A")
	session := &pagedSession{pages: [][]string{{"A", "B"}}}

	res, err := testCrawler(nil).Crawl(context.Background(), session, known)
	require.NoError(t, err)
	assert.Equal(t, refs("X", "A", "B"), res.References)
	assert.Equal(t, refs("X", "A"), known)
}

func TestCrawlStopsAfterStaleThreshold(t *testing.T) {
	known := refs("K")
	pages := make([][]string, 30)
	for i := range pages {
		pages[i] = []string{"K"}
	}
	pages[29] = []string{"NEVER"}
	session := &pagedSession{pages: pages}

	res, err := testCrawler(nil).Crawl(context.Background(), session, known)
	require.NoError(t, err)
	assert.Equal(t, StopStale, res.Reason)
	assert.Equal(t, 10, res.Pages)
	assert.Equal(t, refs("K"), res.References)
}

func TestCrawlNewReferenceResetsStaleCounter(t *testing.T) {
	session := &pagedSession{pages: [][]string{
		{"K1", "K2", "K3"}, {"N1"}, {"K1", "K2", "K3"}, {"N2"},
	}}
	res, err := testCrawler(func(c *config.CrawlConfig) { c.StaleThreshold = 4 }).
		Crawl(context.Background(), session, refs("K1", "K2", "K3"))
	require.NoError(t, err)
	assert.Equal(t, StopLastPage, res.Reason)
	assert.Equal(t, refs("K1", "K2", "K3", "N1", "N2"), res.References)
}

func TestCrawlMaxPages(t *testing.T) {
	session := &pagedSession{pages: [][]string{{"A"}, {"B"}, {"C"}}}
	res, err := testCrawler(func(c *config.CrawlConfig) { c.MaxPages = 2 }).
		Crawl(context.Background(), session, nil)
	require.NoError(t, err)
	assert.Equal(t, StopMaxPages, res.Reason)
	assert.Equal(t, refs("A", "B"), res.References)
}

func TestCrawlSessionErrorAborts(t *testing.T) {
	session := &pagedSession{pages: [][]string{{"A"}, {"B"}}, failOn: 2}
	res, err := testCrawler(nil).Crawl(context.Background(), session, nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "renderer crashed")
}

func TestCrawlSettleDelayHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	session := &pagedSession{pages: [][]string{{"A"}, {"B"}}}
	_, err := testCrawler(func(c *config.CrawlConfig) { c.SettleDelay = time.Minute }).
		Crawl(ctx, session, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseThumbnails(t *testing.T) {
	html := `<ul>
		<li class="raw_image_container"><img src=" https://x/sol/00054/ids/a.png "></li>
		<li class="raw_image_container"><img alt="no source"></li>
		<li class="raw_image_container"><img src="https://x/sol/00055/ids/b.png"></li>
	</ul>`
	got, err := ParseThumbnails(html, "li.raw_image_container img", "src")
	require.NoError(t, err)
	assert.Equal(t, refs("https://x/sol/00054/ids/a.png", "https://x/sol/00055/ids/b.png"), got)
}
