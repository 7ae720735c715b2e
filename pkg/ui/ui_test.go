package ui

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/pipeline"
)

func TestPrinterWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	assert.False(t, p.Colored())

	p.Info("Data", "./data")
	p.Error("Run failed", errors.New("stage fetch failed"))

	assert.Equal(t, "Data: ./data\nRun failed: stage fetch failed\n", buf.String())
}

func TestPrinterQuietKeepsErrors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	p.Success("done")
	p.Warning("careful")
	p.Error("broken", nil)
	assert.Equal(t, "broken\n", buf.String())
}

func TestRenderReport(t *testing.T) {
	report := &pipeline.Report{
		RunID: "run-1",
		Stages: []pipeline.StageResult{
			{Stage: pipeline.StageCrawl, Items: 12, Resumed: true},
			{Stage: pipeline.StageFetch, Items: 7, Skipped: 3, Failed: 2, Elapsed: 1500 * time.Millisecond, Note: "9 issued"},
		},
	}
	out := RenderReport(report, false)

	assert.Contains(t, out, "crawl")
	assert.Contains(t, out, "completed in an earlier attempt")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "9 issued")
	assert.Contains(t, out, "run-1")
	assert.NotContains(t, out, "RUN-1")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "19")
	assert.NotContains(t, out, "\033[")
}

func TestRenderFailures(t *testing.T) {
	assert.Empty(t, RenderFailures(nil))

	var failures []errs.ItemFailure
	failures = append(failures, errs.ItemFailure{Stage: "upload", Item: "54.gif", Error: "550"})
	for i := 0; i < maxFailureRows+5; i++ {
		failures = append(failures, errs.ItemFailure{Stage: "fetch", Item: fmt.Sprintf("frame-%d.png", i), Error: "timeout"})
	}
	out := RenderFailures(failures)

	assert.Contains(t, out, "... 6 more")
	assert.NotContains(t, out, "54.gif", "upload failures sort after fetch and fall past the cap")
	assert.True(t, strings.Index(out, "frame-0.png") > 0)
}

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return errors.New("no display")
}

func TestNotifier(t *testing.T) {
	sender := &recordingSender{}
	NewNotifierWithSender(sender).Notify("marsfeed", "run finished")
	assert.Equal(t, []string{"marsfeed"}, sender.titles)

	(&Notifier{}).Notify("ignored", "no sender")
}
