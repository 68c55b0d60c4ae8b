package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sjsage522/storecrawler/config"
	"sjsage522/storecrawler/internal/crawler"
	"sjsage522/storecrawler/pkg/errors"
	"sjsage522/storecrawler/services/export"
	"sjsage522/storecrawler/services/worker"
)

func newProductsCmd(app *App) *cobra.Command {
	var (
		maxPages int
		csvPath  string
		category string
		strict   bool
	)

	cmd := &cobra.Command{
		Use:   "products [listing-url]",
		Short: "Crawl every page of one product listing",
		Long: `products walks the pages of a listing by setting the page query parameter,
stopping at the page limit, at an empty page or at a page repeating products
already seen. Give a listing URL or a category of the site profile.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target, err := app.listingTarget(args, category)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-pages") {
				maxPages = app.Config.MaxPages
			}
			if err := checkMaxPages(target, maxPages); err != nil {
				return err
			}
			if err := app.Gate(target); err != nil {
				return err
			}

			return app.Record(ctx, "products", target, func(runID int64) error {
				products, err := app.ListingCrawler(strict).CrawlListing(ctx, target, maxPages)
				if len(products) == 0 {
					if err == nil {
						fmt.Fprintln(app.out, "No products found.")
					}
					return err
				}

				export.RenderProducts(app.out, products)
				if serr := app.SaveProducts(context.WithoutCancel(ctx), runID, target, csvPath, products); serr != nil {
					return serr
				}
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&maxPages, "max-pages", "p", 0, "Maximum pages to crawl, 1 to 100 (default MAX_PAGES)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the products to this CSV file")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Crawl a category of the site profile instead of a URL")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a page after the first cannot be fetched")
	return cmd
}

func newCatalogCmd(app *App) *cobra.Command {
	var (
		maxPages   int
		categories []string
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Crawl the listings of every category in the site profile",
		Long: `catalog crawls the categories of the site profile one after another and
hands each result to the configured outputs. With --interval the whole
catalog is crawled again after each pause until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			jobs, err := app.catalogJobs(categories)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-pages") {
				maxPages = app.Config.MaxPages
			}
			if err := checkMaxPages("catalog", maxPages); err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = app.Config.CrawlInterval
			}

			return app.Record(ctx, "catalog", app.Profile.BaseURL, func(runID int64) error {
				var sinks []worker.Sink
				if app.Publisher != nil {
					sinks = append(sinks, worker.PublisherSink{Publisher: app.Publisher})
				}
				if app.Store != nil {
					sinks = append(sinks, worker.StoreSink{Store: app.Store, RunID: runID})
				}
				if app.flags.csvDir != "" {
					sinks = append(sinks, worker.CSVSink{Dir: app.flags.csvDir})
				}

				w := worker.NewWorker(app.ListingCrawler(false), jobs, worker.Options{
					MaxPages:  maxPages,
					UserAgent: app.Config.UserAgent,
					Interval:  interval,
					Oracle:    app.Oracle,
					Sinks:     sinks,
				})

				results, err := w.Start(ctx)
				rows := make([]export.CatalogRow, len(results))
				failed := 0
				for i, r := range results {
					rows[i] = export.CatalogRow{Name: r.Job.Name, URL: r.Job.URL, Products: len(r.Products), Err: r.Err}
					if r.Err != nil && !stderrors.Is(r.Err, context.Canceled) {
						failed++
					}
				}
				export.RenderCatalog(app.out, rows)

				// an interrupt is how a repeating catalog is stopped
				if err != nil && !(interval > 0 && stderrors.Is(err, context.Canceled)) {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d categories failed", failed, len(results))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&maxPages, "max-pages", "p", 0, "Maximum pages per category, 1 to 100 (default MAX_PAGES)")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "Only crawl these categories (default all)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the catalog after this pause (default CRAWL_INTERVAL)")
	return cmd
}

func newSliderCmd(app *App) *cobra.Command {
	var (
		interactive bool
		maxClicks   int
		slideDelay  time.Duration
		csvPath     string
	)

	cmd := &cobra.Command{
		Use:   "slider [url]",
		Short: "Collect the image URLs of the homepage slider",
		Long: `slider reads the slider images from the static HTML, or with --interactive
opens the page in a browser and clicks the next arrow until it disappears,
--max-clicks is reached or the cycle cap stops it. --max-clicks 0 reads the
first slide only.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target := app.Profile.HomeURL()
			if len(args) == 1 {
				target = args[0]
			}

			opts := crawler.SliderOptions{Interactive: interactive, SlideDelay: app.Config.SlideDelay}
			if cmd.Flags().Changed("max-clicks") {
				if maxClicks < 0 {
					return errors.NewValidation(target, "--max-clicks must not be negative")
				}
				opts.MaxClicks = crawler.Clicks(maxClicks)
			}
			if cmd.Flags().Changed("slide-delay") {
				opts.SlideDelay = slideDelay
			}

			if err := app.Gate(target); err != nil {
				return err
			}

			c, err := app.SliderCrawler(interactive)
			if err != nil {
				return err
			}

			return app.Record(ctx, "slider", target, func(runID int64) error {
				return app.runSlider(ctx, c, runID, target, csvPath, opts)
			})
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Drive the slider in a browser")
	cmd.Flags().IntVar(&maxClicks, "max-clicks", 0, "Stop after this many clicks (default unlimited)")
	cmd.Flags().DurationVar(&slideDelay, "slide-delay", 0, "Wait after loading and after each click (default SLIDE_DELAY)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the image URLs to this CSV file")
	return cmd
}

// sliderExtractor is the slider controller as seen by the slider command
type sliderExtractor interface {
	ExtractSliderImages(ctx context.Context, url string, opts crawler.SliderOptions) ([]string, error)
}

// runSlider extracts the slider images of target and saves them. Images
// collected before an interrupt or a failure are still shown and saved.
func (a *App) runSlider(ctx context.Context, c sliderExtractor, runID int64, target, csvPath string, opts crawler.SliderOptions) error {
	images, err := c.ExtractSliderImages(ctx, target, opts)
	if len(images) == 0 {
		if err == nil {
			fmt.Fprintln(a.out, "No slider images found.")
		}
		return err
	}

	export.RenderSlider(a.out, images)
	if serr := a.SaveSliderImages(context.WithoutCancel(ctx), runID, target, csvPath, images); serr != nil {
		return serr
	}
	return err
}

// listingTarget resolves the listing URL from the argument or a category name
func (a *App) listingTarget(args []string, category string) (string, error) {
	switch {
	case len(args) == 1 && category != "":
		return "", errors.NewValidation(args[0], "give either a listing URL or --category")
	case len(args) == 1:
		return args[0], nil
	case category != "":
		c, ok := a.Profile.FindCategory(category)
		if !ok {
			return "", errors.NewValidation(category, "unknown category, expected one of "+a.categoryNames())
		}
		return a.Profile.CategoryURL(c), nil
	default:
		return "", errors.NewValidation("", "a listing URL or --category is required")
	}
}

// catalogJobs turns the selected categories, all when names is empty, into worker jobs
func (a *App) catalogJobs(names []string) ([]worker.Job, error) {
	selected := a.Profile.Categories
	if len(names) > 0 {
		selected = nil
		for _, name := range names {
			c, ok := a.Profile.FindCategory(strings.TrimSpace(name))
			if !ok {
				return nil, errors.NewValidation(name, "unknown category, expected one of "+a.categoryNames())
			}
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return nil, errors.NewConfiguration("site profile has no categories", nil)
	}

	jobs := make([]worker.Job, len(selected))
	for i, c := range selected {
		jobs[i] = worker.Job{Name: c.Name, URL: a.Profile.CategoryURL(c)}
	}
	return jobs, nil
}

func (a *App) categoryNames() string {
	names := make([]string, len(a.Profile.Categories))
	for i, c := range a.Profile.Categories {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func checkMaxPages(target string, maxPages int) error {
	if maxPages < 1 || maxPages > config.MaxPagesLimit {
		return errors.NewValidation(target, fmt.Sprintf("max pages must be between 1 and %d", config.MaxPagesLimit))
	}
	return nil
}
