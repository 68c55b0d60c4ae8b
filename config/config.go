package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"sjsage522/storecrawler/pkg/errors"
)

// Stop policies for pagination after a fetch failure past the first page.
const (
	StopLenient = "lenient"
	StopStrict  = "strict"
)

// Render backends for interactive slider extraction.
const (
	BackendRod      = "rod"
	BackendChromedp = "chromedp"
)

// MaxPagesLimit is the largest page cap a caller may request.
const MaxPagesLimit = 100

// Config represents the application configuration
type Config struct {
	Environment string `envconfig:"STORECRAWLER_ENVIRONMENT" default:"development"`

	// HTTP fetching
	UserAgent      string        `envconfig:"USER_AGENT" default:"SmartCrawler/1.0"`
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	FetchAttempts  int           `envconfig:"FETCH_ATTEMPTS" default:"3"`
	FetchBackoff   time.Duration `envconfig:"FETCH_BACKOFF" default:"2s"`
	ProbeTimeout   time.Duration `envconfig:"PROBE_TIMEOUT" default:"5s"`
	RateLimitBlock time.Duration `envconfig:"RATE_LIMIT_BLOCK" default:"5m"`

	// Pagination
	MaxPages   int           `envconfig:"MAX_PAGES" default:"10"`
	PageDelay  time.Duration `envconfig:"PAGE_DELAY" default:"1s"`
	StopPolicy string        `envconfig:"STOP_POLICY" default:"lenient"`

	// Slider
	SlideDelay        time.Duration `envconfig:"SLIDE_DELAY" default:"1s"`
	MaxSliderCycles   int           `envconfig:"MAX_SLIDER_CYCLES" default:"200"`
	RenderBackend     string        `envconfig:"RENDER_BACKEND" default:"rod"`
	BrowserBin        string        `envconfig:"BROWSER_BIN"`
	BrowserHeadless   bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	BrowserNoSandbox  bool          `envconfig:"BROWSER_NO_SANDBOX" default:"false"`
	NavigationTimeout time.Duration `envconfig:"NAVIGATION_TIMEOUT" default:"150s"`

	// Memcache configuration, empty disables the rate-limit block
	MemcacheAddr string `envconfig:"MEMCACHE_ADDR"`

	// Redis configuration, empty disables publishing
	RedisAddr            string `envconfig:"REDIS_ADDR"`
	RedisDB              int    `envconfig:"REDIS_DB" default:"0"`
	RedisStream          string `envconfig:"REDIS_STREAM" default:"storecrawler"`
	RedisStreamCount     int    `envconfig:"REDIS_STREAM_COUNT" default:"1"`
	RedisStreamMaxLength int    `envconfig:"REDIS_STREAM_MAX_LENGTH" default:"1000"`

	// Results database, empty disables storage
	DatabasePath string `envconfig:"DATABASE_PATH"`

	// Site profile location, empty means the XDG default
	ProfilePath string `envconfig:"SITE_PROFILE"`

	// Catalog runs
	CrawlInterval time.Duration `envconfig:"CRAWL_INTERVAL" default:"0s"`
}

// LoadConfig loads the configuration from environment variables with defaults.
// Callers load .env files with godotenv before calling it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.NewConfiguration("failed to read environment", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the crawlers cannot work with
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return errors.NewConfiguration("USER_AGENT must not be empty", nil)
	}
	if c.FetchTimeout <= 0 {
		return errors.NewConfiguration("FETCH_TIMEOUT must be positive", nil)
	}
	if c.FetchAttempts < 1 {
		return errors.NewConfiguration("FETCH_ATTEMPTS must be at least 1", nil)
	}
	if c.FetchBackoff < 0 || c.PageDelay < 0 || c.SlideDelay < 0 {
		return errors.NewConfiguration("delays must not be negative", nil)
	}
	if c.MaxPages < 1 || c.MaxPages > MaxPagesLimit {
		return errors.NewConfiguration("MAX_PAGES must be between 1 and 100", nil)
	}
	if c.StopPolicy != StopLenient && c.StopPolicy != StopStrict {
		return errors.NewConfiguration("STOP_POLICY must be lenient or strict", nil)
	}
	if c.RenderBackend != BackendRod && c.RenderBackend != BackendChromedp {
		return errors.NewConfiguration("RENDER_BACKEND must be rod or chromedp", nil)
	}
	if c.MaxSliderCycles < 1 {
		return errors.NewConfiguration("MAX_SLIDER_CYCLES must be at least 1", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	if c.CrawlInterval < 0 {
		return errors.NewConfiguration("CRAWL_INTERVAL must not be negative", nil)
	}
	return nil
}

// IsProduction reports whether the crawler runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
