package crawler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"sjsage522/storecrawler/helpers"
	"sjsage522/storecrawler/logger"
	"sjsage522/storecrawler/pkg/errors"
)

// ListingOptions configures a ListingCrawler
type ListingOptions struct {
	// PageParam is the query parameter selecting the page, "p" when empty
	PageParam string
	// PageDelay is the minimum spacing between page requests
	PageDelay time.Duration
	// StopPolicy applies to fetch failures after the first page
	StopPolicy StopPolicy
	// OnIncomplete is told about records missing a title or link.
	// When nil they are logged as warnings.
	OnIncomplete IncompleteFunc
}

// ListingCrawler walks the pages of a product listing
type ListingCrawler struct {
	fetcher   PageFetcher
	extractor *Extractor
	opts      ListingOptions
}

// NewListingCrawler creates a listing crawler
func NewListingCrawler(fetcher PageFetcher, extractor *Extractor, opts ListingOptions) *ListingCrawler {
	if opts.PageParam == "" {
		opts.PageParam = "p"
	}
	if opts.StopPolicy == "" {
		opts.StopPolicy = StopLenient
	}
	return &ListingCrawler{
		fetcher:   fetcher,
		extractor: extractor,
		opts:      opts,
	}
}

// CrawlListing fetches pages 1..maxPages of baseURL and returns the products in
// first-seen order without duplicate links. It stops early on a page with no
// products or with nothing but already seen products. A failure on the first
// page is returned; later failures end the crawl under the lenient policy and
// are returned together with the gathered products under the strict one.
func (c *ListingCrawler) CrawlListing(ctx context.Context, baseURL string, maxPages int) ([]ProductRecord, error) {
	if maxPages < 1 {
		return nil, errors.NewValidation(baseURL, "maxPages must be at least 1")
	}

	log := logger.ForCrawl("pagination", baseURL)

	limit := rate.Inf
	if c.opts.PageDelay > 0 {
		limit = rate.Every(c.opts.PageDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var products []ProductRecord
	seen := make(map[string]struct{})

	for page := 1; page <= maxPages; page++ {
		pageURL, err := helpers.WithQueryParam(baseURL, c.opts.PageParam, strconv.Itoa(page))
		if err != nil {
			return nil, errors.NewValidation(baseURL, err.Error())
		}

		if err := limiter.Wait(ctx); err != nil {
			return products, err
		}

		log.Info().Int("page", page).Str("page_url", pageURL).Msg("Fetching page")

		items, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("crawl could not start: %w", err)
			}
			if ctx.Err() != nil {
				return products, ctx.Err()
			}
			if c.opts.StopPolicy == StopStrict {
				return products, fmt.Errorf("page %d: %w", page, err)
			}
			// a failed page is read as the end of the listing
			log.Warn().Err(err).Int("page", page).Msg("Page failed, treating it as the last page")
			break
		}

		if len(items) == 0 {
			log.Info().Int("page", page).Msg("No products on this page; stopping pagination")
			break
		}

		fresh := 0
		for _, item := range items {
			if _, dup := seen[item.Link]; dup {
				continue
			}
			seen[item.Link] = struct{}{}
			products = append(products, item)
			fresh++
			c.checkComplete(log, page, item)
		}

		if fresh == 0 {
			log.Info().Int("page", page).Msg("All products on this page were duplicates; stopping")
			break
		}

		log.Debug().
			Int("page", page).
			Int("extracted", len(items)).
			Int("new", fresh).
			Msg("Page processed")
	}

	log.Info().Int("products", len(products)).Msg("Listing crawl finished")
	return products, nil
}

func (c *ListingCrawler) fetchPage(ctx context.Context, pageURL string) ([]ProductRecord, error) {
	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return c.extractor.ExtractItems(body)
}

func (c *ListingCrawler) checkComplete(log *logger.Logger, page int, item ProductRecord) {
	if item.ImageURL == "" {
		log.Debug().Str("title", item.Title).Msg("No image found for product")
	}
	if !item.Incomplete() {
		return
	}
	if c.opts.OnIncomplete != nil {
		c.opts.OnIncomplete(page, item)
		return
	}
	log.Warn().
		Int("page", page).
		Str("title", item.Title).
		Str("link", item.Link).
		Msg("Incomplete product entry")
}
