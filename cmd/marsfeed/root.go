package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"marsfeed/pkg/config"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string
	dataDir    string
	logLevel   string
	noColor    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "marsfeed",
	Short: "Mirror the Mars 2020 raw-image catalog and publish per-day animations",
	Long: `marsfeed crawls the Mars 2020 raw-image catalog, sorts every image by
day, family and instrument, attaches the images to the rover and helicopter
trajectory documents, downloads the helicopter navigation frames, builds one
animated GIF per day and uploads the results over FTP.

Every stage persists its output in the data directory, so stages can be run
on their own or resumed after a failure.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		newPrinter().Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.marsfeed.yaml or $HOME/.marsfeed.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "data directory (default ./data)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`marsfeed {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func newPrinter() *ui.Printer {
	p := ui.NewPrinter(os.Stdout, quiet)
	if noColor {
		p.DisableColor()
	}
	return p
}

// loadConfig merges file, environment and the flags the user actually set,
// then initialises the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	fs := cmd.Flags()
	if fs.Changed("data-dir") {
		flags["data-dir"] = dataDir
	}
	if fs.Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if f := fs.Lookup("workers"); f != nil && f.Changed {
		flags["workers"], _ = fs.GetInt("workers")
	}
	if f := fs.Lookup("max-pages"); f != nil && f.Changed {
		flags["max-pages"], _ = fs.GetInt("max-pages")
	}
	if f := fs.Lookup("strict"); f != nil && f.Changed {
		flags["strict"], _ = fs.GetBool("strict")
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if quiet && !fs.Changed("log-level") {
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialise logging: %w", err)
	}
	return cfg, nil
}
