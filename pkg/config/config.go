package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for a marsfeed run
type Config struct {
	Data       DataConfig       `yaml:"data" json:"data"`
	Crawl      CrawlConfig      `yaml:"crawl" json:"crawl"`
	Catalog    CatalogConfig    `yaml:"catalog" json:"catalog"`
	Trajectory TrajectoryConfig `yaml:"trajectory" json:"trajectory"`
	Fetch      FetchConfig      `yaml:"fetch" json:"fetch"`
	Assemble   AssembleConfig   `yaml:"assemble" json:"assemble"`
	Transfer   TransferConfig   `yaml:"transfer" json:"transfer"`
	HTTP       HTTPConfig       `yaml:"http" json:"http"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// DataConfig locates the persisted documents and asset trees
type DataConfig struct {
	Directory    string `yaml:"directory" json:"directory"`
	AssetsDir    string `yaml:"assets_dir" json:"assets_dir"`
	SequencesDir string `yaml:"sequences_dir" json:"sequences_dir"`
}

// AssetsPath returns the root of the day-keyed downloaded frames
func (d DataConfig) AssetsPath() string {
	return filepath.Join(d.Directory, d.AssetsDir)
}

// SequencesPath returns the directory holding one animation per day
func (d DataConfig) SequencesPath() string {
	return filepath.Join(d.Directory, d.SequencesDir)
}

// CrawlConfig drives the paginated catalog crawl
type CrawlConfig struct {
	StartURL          string        `yaml:"start_url" json:"start_url"`
	ThumbnailSelector string        `yaml:"thumbnail_selector" json:"thumbnail_selector"`
	ThumbnailAttr     string        `yaml:"thumbnail_attr" json:"thumbnail_attr"`
	NextSelector      string        `yaml:"next_selector" json:"next_selector"`
	StaleThreshold    int           `yaml:"stale_threshold" json:"stale_threshold"`
	MaxPages          int           `yaml:"max_pages" json:"max_pages"`
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay"`
	PageTimeout       time.Duration `yaml:"page_timeout" json:"page_timeout"`
	Headless          bool          `yaml:"headless" json:"headless"`
}

// CatalogConfig bounds the day range considered during classification
type CatalogConfig struct {
	MinDay int `yaml:"min_day" json:"min_day"`
	MaxDay int `yaml:"max_day" json:"max_day"`
}

// DocumentConfig names one remote trajectory document
type DocumentConfig struct {
	Name        string `yaml:"name" json:"name"`
	Vehicle     string `yaml:"vehicle" json:"vehicle"`
	Kind        string `yaml:"kind" json:"kind"`
	URL         string `yaml:"url" json:"url"`
	SkipDayZero bool   `yaml:"skip_day_zero,omitempty" json:"skip_day_zero,omitempty"`
	// Waypoints names the document whose RMC codes resolve a path's segments
	Waypoints string `yaml:"waypoints,omitempty" json:"waypoints,omitempty"`
}

// TrajectoryConfig configures correlation of trajectory documents
type TrajectoryConfig struct {
	Strict    bool             `yaml:"strict" json:"strict"`
	Documents []DocumentConfig `yaml:"documents" json:"documents"`
}

// FetchConfig controls the bounded asset fetcher
type FetchConfig struct {
	Family     string        `yaml:"family" json:"family"`
	Instrument string        `yaml:"instrument" json:"instrument"`
	Workers    int           `yaml:"workers" json:"workers"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	BatchPause time.Duration `yaml:"batch_pause" json:"batch_pause"`
}

// AssembleConfig controls animation output
type AssembleConfig struct {
	Dither bool `yaml:"dither" json:"dither"`
}

// TransferConfig holds the remote layout used for publishing
type TransferConfig struct {
	// Host selects stored credentials; empty uses the default entry
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	DocumentsPrefix string        `yaml:"documents_prefix" json:"documents_prefix"`
	SequencesPrefix string        `yaml:"sequences_prefix" json:"sequences_prefix"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

// HTTPConfig holds settings for outbound HTTP requests
type HTTPConfig struct {
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds request rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// RetryConfig holds backoff settings shared by fetch, correlate and upload
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

const mmgisLayers = "https://mars.nasa.gov/mmgis-maps/M20/Layers/json/"

// DefaultDocuments returns the six Mars 2020 trajectory documents
func DefaultDocuments() []DocumentConfig {
	return []DocumentConfig{
		{Name: "perseverance-current", Vehicle: "perseverance", Kind: "current", URL: mmgisLayers + "M20_waypoints_current.json"},
		{Name: "perseverance-waypoints", Vehicle: "perseverance", Kind: "waypoints", URL: mmgisLayers + "M20_waypoints.json", SkipDayZero: true},
		{Name: "perseverance-path", Vehicle: "perseverance", Kind: "path", URL: mmgisLayers + "M20_traverse.json", Waypoints: "perseverance-waypoints"},
		{Name: "ingenuity-current", Vehicle: "ingenuity", Kind: "current", URL: mmgisLayers + "m20_heli_waypoints_current.json"},
		{Name: "ingenuity-waypoints", Vehicle: "ingenuity", Kind: "waypoints", URL: mmgisLayers + "m20_heli_waypoints.json"},
		{Name: "ingenuity-path", Vehicle: "ingenuity", Kind: "flight", URL: mmgisLayers + "m20_heli_flight_path.json"},
	}
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Directory:    "./data",
			AssetsDir:    "gif-images",
			SequencesDir: "gifs",
		},
		Crawl: CrawlConfig{
			StartURL:          "https://mars.nasa.gov/mars2020/multimedia/raw-images/",
			ThumbnailSelector: "li.raw_image_container img",
			ThumbnailAttr:     "src",
			NextSelector:      "#image-gallery footer nav > span:nth-of-type(2)",
			StaleThreshold:    10,
			MaxPages:          0,
			SettleDelay:       5 * time.Second,
			PageTimeout:       60 * time.Second,
			Headless:          true,
		},
		Catalog: CatalogConfig{
			MinDay: 2,
			MaxDay: 998,
		},
		Trajectory: TrajectoryConfig{
			Strict:    false,
			Documents: DefaultDocuments(),
		},
		Fetch: FetchConfig{
			Family:     "helicopterCameras",
			Instrument: "navigationCamera",
			Workers:    4,
			BatchSize:  20,
			BatchPause: 2 * time.Second,
		},
		Assemble: AssembleConfig{
			Dither: true,
		},
		Transfer: TransferConfig{
			Port:            21,
			DocumentsPrefix: "mars-20/api/geojson",
			SequencesPrefix: "mars-20/api/gifs",
			Timeout:         30 * time.Second,
		},
		HTTP: HTTPConfig{
			UserAgent: "marsfeed/1.0 (+https://mars.nasa.gov)",
			Timeout:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from MARSFEED_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("MARSFEED_DATA_DIR"); v != "" {
		c.Data.Directory = v
	}
	if v := os.Getenv("MARSFEED_START_URL"); v != "" {
		c.Crawl.StartURL = v
	}
	if v := os.Getenv("MARSFEED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MARSFEED_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("MARSFEED_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MARSFEED_WORKERS: %w", err))
		} else {
			c.Fetch.Workers = n
		}
	}
	if v := os.Getenv("MARSFEED_MAX_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MARSFEED_MAX_PAGES: %w", err))
		} else {
			c.Crawl.MaxPages = n
		}
	}
	if v := os.Getenv("MARSFEED_STRICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MARSFEED_STRICT: %w", err))
		} else {
			c.Trajectory.Strict = b
		}
	}
	if v := os.Getenv("MARSFEED_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MARSFEED_HEADLESS: %w", err))
		} else {
			c.Crawl.Headless = b
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".marsfeed.yaml",
		".marsfeed.yml",
		filepath.Join(home, ".config", "marsfeed", "config.yaml"),
		filepath.Join(home, ".marsfeed.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Data.Directory == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if c.Crawl.StartURL == "" {
		errs = append(errs, errors.New("crawl start URL is required"))
	}
	if c.Crawl.ThumbnailSelector == "" {
		errs = append(errs, errors.New("thumbnail selector is required"))
	}
	if c.Crawl.StaleThreshold <= 0 {
		errs = append(errs, errors.New("stale threshold must be positive"))
	}
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Crawl.SettleDelay < 0 {
		errs = append(errs, errors.New("settle delay cannot be negative"))
	}
	if c.Catalog.MinDay < 0 || c.Catalog.MaxDay < c.Catalog.MinDay {
		errs = append(errs, fmt.Errorf("invalid day bounds [%d, %d]", c.Catalog.MinDay, c.Catalog.MaxDay))
	}

	names := make(map[string]bool)
	for _, doc := range c.Trajectory.Documents {
		if doc.Name == "" || doc.URL == "" {
			errs = append(errs, errors.New("trajectory documents need a name and a url"))
			continue
		}
		if names[doc.Name] {
			errs = append(errs, fmt.Errorf("duplicate trajectory document %q", doc.Name))
		}
		names[doc.Name] = true
		switch doc.Kind {
		case "current", "waypoints", "flight":
		case "path":
			if doc.Waypoints == "" {
				errs = append(errs, fmt.Errorf("path document %q needs a waypoints document", doc.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("document %q has unknown kind %q", doc.Name, doc.Kind))
		}
	}
	for _, doc := range c.Trajectory.Documents {
		if doc.Waypoints != "" && !names[doc.Waypoints] {
			errs = append(errs, fmt.Errorf("document %q references unknown waypoints %q", doc.Name, doc.Waypoints))
		}
	}

	if c.Fetch.Family == "" || c.Fetch.Instrument == "" {
		errs = append(errs, errors.New("fetch family and instrument are required"))
	}
	if c.Fetch.Workers <= 0 {
		errs = append(errs, errors.New("fetch workers must be positive"))
	}
	if c.Fetch.BatchSize <= 0 {
		errs = append(errs, errors.New("fetch batch size must be positive"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies explicitly set CLI flags
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["data-dir"].(string); ok && v != "" {
		c.Data.Directory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Fetch.Workers = v
	}
	if v, ok := flags["max-pages"].(int); ok && v >= 0 {
		c.Crawl.MaxPages = v
	}
	if v, ok := flags["strict"].(bool); ok {
		c.Trajectory.Strict = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".marsfeed.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}
