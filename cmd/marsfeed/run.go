package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marsfeed/pkg/auth"
	"marsfeed/pkg/browser"
	"marsfeed/pkg/client"
	"marsfeed/pkg/config"
	"marsfeed/pkg/crawler"
	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/pipeline"
	"marsfeed/pkg/ratelimit"
	"marsfeed/pkg/transfer"
	"marsfeed/pkg/ui"
)

var (
	resume       bool
	forceRestart bool
	notify       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage once",
	Long: `Run crawl, classify, correlate, fetch, assemble and upload in order.

The run is checkpointed after each stage. If a stage fails, fix the cause and
continue with --resume, or start over with --force-restart. Item failures
(a frame that would not download, a segment without a unique day range) are
listed in the summary and do not fail the run.`,
	Example: `  # First run
  marsfeed run

  # Continue after a failed stage
  marsfeed run --resume`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, pipeline.RunOptions{Resume: resume, ForceRestart: forceRestart})
	},
}

func init() {
	runCmd.Flags().BoolVar(&resume, "resume", false, "continue from the last checkpoint")
	runCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard the checkpoint and start over")
	runCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
	addStageFlags(runCmd)
	rootCmd.AddCommand(runCmd)

	for _, stage := range pipeline.Stages {
		rootCmd.AddCommand(stageCommand(stage))
	}
}

var stageHelp = map[pipeline.Stage]string{
	pipeline.StageCrawl:     "Crawl the catalog and extend images-urls.json",
	pipeline.StageClassify:  "Classify images-urls.json into images.json",
	pipeline.StageCorrelate: "Download the trajectory documents and attach images to them",
	pipeline.StageFetch:     "Download the frames of the configured instrument",
	pipeline.StageAssemble:  "Build one animated GIF per complete day",
	pipeline.StageUpload:    "Upload trajectory documents and new animations",
}

func stageCommand(stage pipeline.Stage) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(stage),
		Short: stageHelp[stage],
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, pipeline.RunOptions{Only: []pipeline.Stage{stage}})
		},
	}
	addStageFlags(cmd)
	return cmd
}

func addStageFlags(cmd *cobra.Command) {
	switch cmd.Name() {
	case "run", string(pipeline.StageCrawl):
		cmd.Flags().Int("max-pages", 0, "stop crawling after this many pages (0 = no limit)")
	}
	switch cmd.Name() {
	case "run", string(pipeline.StageCorrelate):
		cmd.Flags().Bool("strict", false, "abort on the first unresolved path segment")
	}
	switch cmd.Name() {
	case "run", string(pipeline.StageFetch):
		cmd.Flags().Int("workers", 0, "number of concurrent downloads")
	}
}

func execute(cmd *cobra.Command, opts pipeline.RunOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	printer := newPrinter()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg, buildDependencies(cfg, log), log)
	if err != nil {
		return err
	}

	printer.Info("Data directory", cfg.Data.Directory)
	start := time.Now()
	report, runErr := p.Run(ctx, opts)

	if report != nil && len(report.Stages) > 0 {
		printer.Raw(ui.RenderReport(report, printer.Colored()) + "\n")
		if failures := ui.RenderFailures(report.Failures); failures != "" {
			printer.Warning(fmt.Sprintf("%d item failures", len(report.Failures)))
			printer.Raw(failures + "\n")
		}
	}

	if notify {
		n := ui.NewNotifier()
		if runErr != nil {
			n.Notify("marsfeed run failed", runErr.Error())
		} else {
			n.Notify("marsfeed run finished", fmt.Sprintf("completed in %s", time.Since(start).Round(time.Second)))
		}
	}

	if runErr != nil {
		if errors.Is(runErr, pipeline.ErrCheckpointExists) {
			printer.Warning("A previous run did not finish.")
			printer.Dim("  Use --resume to continue where it stopped")
			printer.Dim("  Use --force-restart to start fresh")
		}
		var stageErr *errs.StageError
		if errors.As(runErr, &stageErr) {
			log.WithError(stageErr.Err).WithField("stage", stageErr.Stage).Error("Run failed")
		}
		return runErr
	}
	printer.Success(fmt.Sprintf("Done in %s", time.Since(start).Round(time.Millisecond)))
	return nil
}

func buildDependencies(cfg *config.Config, log logger.Logger) pipeline.Dependencies {
	limiter := ratelimit.NewRequestLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	httpClient := client.NewClient(cfg.HTTP, limiter, log)

	return pipeline.Dependencies{
		HTTP: httpClient,
		OpenSession: func(ctx context.Context) (crawler.Session, func(), error) {
			s, err := browser.Open(ctx, cfg.Crawl, cfg.HTTP.UserAgent, log)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		},
		DialUploader: func(ctx context.Context) (transfer.Uploader, error) {
			manager, err := auth.NewManager("", true)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
			}
			creds, err := manager.Retrieve(cfg.Transfer.Host)
			if err != nil {
				return nil, fmt.Errorf("%w (run 'marsfeed auth login' or set FTP_HOSTNAME, FTP_USERNAME and FTP_PASSWORD)", err)
			}
			return transfer.DialFTP(ctx, creds, cfg.Transfer.Port, cfg.Transfer.Timeout)
		},
	}
}
