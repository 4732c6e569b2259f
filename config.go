package slidemine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/slidemine/internal/scorer"
)

// Config configures the slidemine service. Every field has a working
// default; an absent config file is not an error.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// AssetsRoot is the reference corpus directory (holds formats/).
	AssetsRoot string `yaml:"assets_root"`

	// OutputRoot is where export manifests land.
	OutputRoot string `yaml:"output_root"`

	Crawl CrawlConfig    `yaml:"crawl"`
	Match MatchConfig    `yaml:"match"`
	Score scorer.Weights `yaml:"score_weights"`
	Draft DraftConfig    `yaml:"draft"`
	Serve ServeConfig    `yaml:"serve"`
}

// CrawlConfig configures the browser-backed crawler. Timeouts are plain
// seconds so the YAML stays readable.
type CrawlConfig struct {
	Platform           string `yaml:"platform"`
	MaxPostsPerAccount int    `yaml:"max_posts_per_account"`
	RemoteBrowserURL   string `yaml:"remote_browser_url"`
	NavTimeoutSeconds  int    `yaml:"nav_timeout_seconds"`
	ScrollAttempts     int    `yaml:"scroll_attempts"`
	OCRTimeoutSeconds  int    `yaml:"ocr_timeout_seconds"`
}

// NavTimeout returns the navigation timeout as a duration.
func (c CrawlConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// OCRTimeout returns the OCR timeout as a duration.
func (c CrawlConfig) OCRTimeout() time.Duration {
	return time.Duration(c.OCRTimeoutSeconds) * time.Second
}

// MatchConfig configures the matcher.
type MatchConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// DraftConfig configures the draft generator.
type DraftConfig struct {
	ExploreRatio float64 `yaml:"explore_ratio"`
}

// ServeConfig configures the HTTP read surface.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "slidemine.db"
	}
	if c.AssetsRoot == "" {
		c.AssetsRoot = "assets"
	}
	if c.OutputRoot == "" {
		c.OutputRoot = "exports"
	}
	if c.Crawl.Platform == "" {
		c.Crawl.Platform = "tiktok"
	}
	if c.Crawl.MaxPostsPerAccount <= 0 {
		c.Crawl.MaxPostsPerAccount = 25
	}
	if c.Crawl.NavTimeoutSeconds <= 0 {
		c.Crawl.NavTimeoutSeconds = 30
	}
	if c.Crawl.ScrollAttempts <= 0 {
		c.Crawl.ScrollAttempts = 8
	}
	if c.Crawl.OCRTimeoutSeconds <= 0 {
		c.Crawl.OCRTimeoutSeconds = 20
	}
	if c.Match.Threshold <= 0 {
		c.Match.Threshold = 0.4
	}
	if c.Draft.ExploreRatio <= 0 {
		c.Draft.ExploreRatio = 0.2
	}
	if c.Score == (scorer.Weights{}) {
		c.Score = scorer.DefaultWeights()
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8790"
	}
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// LoadConfig reads a YAML config file and applies defaults. A missing file
// yields the defaults; a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.defaults()
			return c, nil
		}
		return nil, fmt.Errorf("slidemine: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("slidemine: parse config %s: %w", path, err)
	}
	c.defaults()
	return c, nil
}
