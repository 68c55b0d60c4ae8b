package worker

import (
	"context"
	"time"

	"sjsage522/storecrawler/internal/crawler"
	"sjsage522/storecrawler/logger"
	"sjsage522/storecrawler/pkg/errors"
)

// ListingCrawler crawls one paginated listing
type ListingCrawler interface {
	CrawlListing(ctx context.Context, baseURL string, maxPages int) ([]crawler.ProductRecord, error)
}

// Permission answers robots.txt questions
type Permission interface {
	Allowed(rawURL, userAgent string) bool
}

// Job is one listing to crawl
type Job struct {
	Name string
	URL  string
}

// Result is the outcome of one job. Products may be set together with Err
// when the crawl stopped part way.
type Result struct {
	Job      Job
	Products []crawler.ProductRecord
	Err      error
	Elapsed  time.Duration
}

// Options configures a Worker
type Options struct {
	MaxPages  int
	UserAgent string
	// Interval between catalog runs; zero runs once
	Interval time.Duration
	Oracle   Permission
	Sinks    []Sink
}

// Worker crawls a list of listings one after another and hands every
// result to the sinks.
type Worker struct {
	crawler ListingCrawler
	jobs    []Job
	opts    Options
	log     *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(c ListingCrawler, jobs []Job, opts Options) *Worker {
	return &Worker{
		crawler: c,
		jobs:    jobs,
		opts:    opts,
		log:     logger.ForComponent("worker"),
	}
}

// Start runs the catalog, then repeats it every Interval until ctx is done.
// With a zero Interval it returns after one run.
func (w *Worker) Start(ctx context.Context) ([]Result, error) {
	for {
		start := time.Now()
		results := w.RunOnce(ctx)
		w.log.Info().
			Dur("elapsed", time.Since(start)).
			Int("jobs", len(results)).
			Msg("Catalog run finished")

		if w.opts.Interval <= 0 {
			return results, ctx.Err()
		}

		t := time.NewTimer(w.opts.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return results, ctx.Err()
		case <-t.C:
		}
	}
}

// RunOnce crawls every job sequentially, stopping early only on cancellation
func (w *Worker) RunOnce(ctx context.Context) []Result {
	results := make([]Result, 0, len(w.jobs))
	for _, job := range w.jobs {
		if ctx.Err() != nil {
			break
		}
		results = append(results, w.crawlAndSink(ctx, job))
	}

	// sinks keep working after an interrupt so partial results are kept
	sinkCtx := context.WithoutCancel(ctx)
	for _, s := range w.opts.Sinks {
		if f, ok := s.(Finisher); ok {
			if err := f.Finish(sinkCtx); err != nil {
				logger.LogError("worker", err, "Failed to finish sink")
			}
		}
	}
	return results
}

// crawlAndSink crawls one job and sinks whatever it produced
func (w *Worker) crawlAndSink(ctx context.Context, job Job) Result {
	log := w.log.WithFields(logger.Fields{"job": job.Name, "url": job.URL})
	start := time.Now()

	if w.opts.Oracle != nil && !w.opts.Oracle.Allowed(job.URL, w.opts.UserAgent) {
		err := errors.NewRobots(job.URL)
		log.Warn().Err(err).Msg("Skipping listing")
		return Result{Job: job, Err: err}
	}

	products, err := w.crawler.CrawlListing(ctx, job.URL, w.opts.MaxPages)
	res := Result{Job: job, Products: products, Err: err, Elapsed: time.Since(start)}
	if err != nil {
		log.Error().Err(err).Int("products", len(products)).Msg("Listing crawl failed")
	} else {
		log.Info().Int("products", len(products)).Dur("elapsed", res.Elapsed).Msg("Listing crawled")
	}

	if len(products) == 0 {
		return res
	}
	sinkCtx := context.WithoutCancel(ctx)
	for _, s := range w.opts.Sinks {
		if serr := s.Save(sinkCtx, job, products); serr != nil {
			log.Error().Err(serr).Str("sink", s.Name()).Msg("Failed to sink products")
		}
	}
	return res
}
