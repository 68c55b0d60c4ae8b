package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/storecrawler/config"
	"sjsage522/storecrawler/helpers"
	"sjsage522/storecrawler/internal/crawler"
	"sjsage522/storecrawler/internal/render"
	"sjsage522/storecrawler/internal/robots"
	"sjsage522/storecrawler/logger"
	"sjsage522/storecrawler/pkg/errors"
	"sjsage522/storecrawler/services/cache"
	"sjsage522/storecrawler/services/export"
	"sjsage522/storecrawler/services/publisher"
	"sjsage522/storecrawler/services/store"
)

// Flags shared by every command
type globalFlags struct {
	profile string
	csvDir  string
	publish bool
	db      string
}

// App holds the configuration and the services of one command invocation
type App struct {
	out   io.Writer
	flags globalFlags

	Config    *config.Config
	Profile   *config.SiteProfile
	Fetcher   *helpers.Fetcher
	Extractor *crawler.Extractor
	Oracle    *robots.Oracle

	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     *store.Store
}

// NewApp creates an app printing reports to out
func NewApp(out io.Writer) *App {
	return &App{out: out}
}

// Setup loads configuration and connects the optional services. robots.txt
// is loaded once here and shared by every command.
func (a *App) Setup(ctx context.Context) error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.Config = cfg

	profilePath := a.flags.profile
	if profilePath == "" {
		profilePath = cfg.ProfilePath
	}
	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		return err
	}
	a.Profile = profile

	a.Extractor, err = crawler.NewExtractor(profile.Listing, profile.Slider)
	if err != nil {
		return err
	}

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForComponent("app").Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, rate-limit blocking disabled")
		} else {
			a.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	a.Fetcher = helpers.NewFetcher(helpers.FetcherOptions{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.FetchTimeout,
		Attempts:     cfg.FetchAttempts,
		Backoff:      cfg.FetchBackoff,
		ProbeTimeout: cfg.ProbeTimeout,
		Cache:        a.Cache,
		BlockTime:    cfg.RateLimitBlock,
	})

	if a.flags.publish {
		if cfg.RedisAddr == "" {
			return errors.NewConfiguration("--publish needs REDIS_ADDR", nil)
		}
		rp := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
		if err := rp.Ping(ctx); err != nil {
			rp.Close()
			return err
		}
		a.Publisher = rp
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	dbPath := a.flags.db
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	if dbPath != "" {
		a.Store, err = store.Open(ctx, dbPath)
		if err != nil {
			return err
		}
	}

	a.Oracle, err = robots.Load(ctx, a.Fetcher, profile.RobotsTxtURL())
	if err != nil {
		return err
	}

	logger.ForComponent("app").Debug().
		Str("environment", cfg.Environment).
		Str("site", profile.Name).
		Str("user_agent", cfg.UserAgent).
		Bool("publish", a.Publisher != nil).
		Bool("store", a.Store != nil).
		Msg("Application ready")
	return nil
}

// Cleanup closes every opened service
func (a *App) Cleanup() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			logger.LogError("app", err, "Failed to close publisher")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.LogError("app", err, "Failed to close results database")
		}
	}
}

// Gate refuses URLs robots.txt does not allow for the configured user agent
func (a *App) Gate(rawURL string) error {
	if !a.Oracle.Allowed(rawURL, a.Config.UserAgent) {
		return errors.NewRobots(rawURL)
	}
	return nil
}

// PageDelay is the configured delay raised to the robots.txt Crawl-delay
func (a *App) PageDelay() time.Duration {
	return max(a.Config.PageDelay, a.Oracle.CrawlDelay(a.Config.UserAgent))
}

// ListingCrawler builds a pagination controller from the configuration
func (a *App) ListingCrawler(strict bool) *crawler.ListingCrawler {
	policy := crawler.StopPolicy(a.Config.StopPolicy)
	if strict {
		policy = crawler.StopStrict
	}
	return crawler.NewListingCrawler(a.Fetcher, a.Extractor, crawler.ListingOptions{
		PageParam:  a.Profile.PageParam,
		PageDelay:  a.PageDelay(),
		StopPolicy: policy,
	})
}

// SliderCrawler builds a slider controller, with a render backend when interactive
func (a *App) SliderCrawler(interactive bool) (*crawler.SliderCrawler, error) {
	var opener render.Opener
	if interactive {
		var err error
		opener, err = render.NewOpener(a.Config.RenderBackend, render.Options{
			Bin:               a.Config.BrowserBin,
			Headless:          a.Config.BrowserHeadless,
			NoSandbox:         a.Config.BrowserNoSandbox,
			NavigationTimeout: a.Config.NavigationTimeout,
		})
		if err != nil {
			return nil, errors.NewConfiguration("invalid render backend", err)
		}
	}
	return crawler.NewSliderCrawler(a.Fetcher, opener, a.Extractor, a.Profile.Slider, a.Config.MaxSliderCycles), nil
}

// Record runs fn as one run of the results database, when there is one
func (a *App) Record(ctx context.Context, command, target string, fn func(runID int64) error) error {
	if a.Store == nil {
		return fn(0)
	}

	runID, err := a.Store.StartRun(ctx, command, target)
	if err != nil {
		return err
	}
	runErr := fn(runID)
	// record the outcome even when the command was interrupted
	if err := a.Store.FinishRun(context.WithoutCancel(ctx), runID, runErr); err != nil {
		logger.LogError("app", err, "Failed to finish run %d", runID)
	}
	return runErr
}

// SaveProducts hands products to every configured output
func (a *App) SaveProducts(ctx context.Context, runID int64, source, csvPath string, products []crawler.ProductRecord) error {
	if csvPath == "" && a.flags.csvDir != "" {
		csvPath = filepath.Join(a.flags.csvDir, "products.csv")
	}
	if csvPath != "" {
		if err := export.WriteFile(csvPath, func(w io.Writer) error {
			return export.WriteProductsCSV(w, products)
		}); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Saved %d products to %s\n", len(products), csvPath)
	}
	if a.Store != nil {
		if err := a.Store.SaveProducts(ctx, runID, source, products); err != nil {
			return err
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.PublishProducts(ctx, source, products); err != nil {
			return err
		}
		return a.Publisher.TrimStreams(ctx)
	}
	return nil
}

// SaveSliderImages hands slider images to every configured output
func (a *App) SaveSliderImages(ctx context.Context, runID int64, source, csvPath string, images []string) error {
	if csvPath == "" && a.flags.csvDir != "" {
		csvPath = filepath.Join(a.flags.csvDir, "slider_images.csv")
	}
	if csvPath != "" {
		if err := export.WriteFile(csvPath, func(w io.Writer) error {
			return export.WriteSliderCSV(w, images)
		}); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Saved %d slider images to %s\n", len(images), csvPath)
	}
	if a.Store != nil {
		if err := a.Store.SaveSliderImages(ctx, runID, source, images); err != nil {
			return err
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.PublishSliderImages(ctx, source, images); err != nil {
			return err
		}
		return a.Publisher.TrimStreams(ctx)
	}
	return nil
}
