package crawler

import (
	"context"
	"time"

	"sjsage522/storecrawler/config"
	"sjsage522/storecrawler/internal/render"
	"sjsage522/storecrawler/logger"
	"sjsage522/storecrawler/pkg/errors"
)

// DefaultMaxCycles bounds the interactive loop when the caller sets no click limit
const DefaultMaxCycles = 200

// SliderOptions selects how a slider is read
type SliderOptions struct {
	// Interactive drives a live browser session instead of reading static HTML
	Interactive bool
	// MaxClicks limits advance clicks; nil clicks until the control disappears
	MaxClicks *int
	// SlideDelay is waited after the page opens and after every click
	SlideDelay time.Duration
}

// Clicks is a convenience for building SliderOptions.MaxClicks
func Clicks(n int) *int {
	return &n
}

// SliderCrawler collects the images of a homepage slider
type SliderCrawler struct {
	fetcher   PageFetcher
	opener    render.Opener
	extractor *Extractor
	selectors config.SliderSelectors
	maxCycles int
}

// NewSliderCrawler creates a slider crawler. opener may be nil when only
// static extraction is used.
func NewSliderCrawler(fetcher PageFetcher, opener render.Opener, extractor *Extractor, selectors config.SliderSelectors, maxCycles int) *SliderCrawler {
	if maxCycles < 1 {
		maxCycles = DefaultMaxCycles
	}
	if selectors.ImageAttr == "" {
		selectors.ImageAttr = "src"
	}
	if selectors.BackgroundAttr == "" {
		selectors.BackgroundAttr = "data-lazyload"
	}
	return &SliderCrawler{
		fetcher:   fetcher,
		opener:    opener,
		extractor: extractor,
		selectors: selectors,
		maxCycles: maxCycles,
	}
}

// ExtractSliderImages returns the unique slider image URLs of url in the order
// they were first seen.
func (c *SliderCrawler) ExtractSliderImages(ctx context.Context, url string, opts SliderOptions) ([]string, error) {
	log := logger.ForCrawl("slider", url)

	var (
		images []string
		err    error
	)
	if opts.Interactive {
		images, err = c.interactive(ctx, log, url, opts)
	} else {
		images, err = c.static(ctx, log, url)
	}

	if err == nil && len(images) == 0 {
		log.Warn().Msg("No slider images found")
	}
	return images, err
}

func (c *SliderCrawler) static(ctx context.Context, log *logger.Logger, url string) ([]string, error) {
	log.Info().Msg("Fetching static HTML for slider images")

	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	found, err := c.extractor.ExtractSliderImages(body)
	if err != nil {
		return nil, err
	}

	var images []string
	seen := make(map[string]struct{})
	for _, src := range found {
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		images = append(images, src)
	}
	return images, nil
}

// crawlSession is the mutable state of one interactive extraction
type crawlSession struct {
	session render.Session
	seen    map[string]struct{}
	images  []string
	clicks  int
}

func (c *SliderCrawler) interactive(ctx context.Context, log *logger.Logger, url string, opts SliderOptions) ([]string, error) {
	if c.opener == nil {
		return nil, errors.NewValidation(url, "interactive slider extraction needs a render session")
	}

	log.Info().Msg("Opening render session for slider")

	session, err := c.opener.Open(ctx, url)
	if err != nil {
		return nil, errors.NewInteraction(url, "failed to open render session", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close render session")
		}
	}()

	s := &crawlSession{session: session, seen: make(map[string]struct{})}

	if err := sleep(ctx, opts.SlideDelay); err != nil {
		return s.images, err
	}

	for cycle := 1; ; cycle++ {
		if err := c.collect(ctx, s); err != nil {
			log.Debug().Err(errors.NewInteraction(url, "image query failed", err)).Msg("Stopping slider")
			break
		}

		if opts.MaxClicks != nil && s.clicks >= *opts.MaxClicks {
			log.Debug().Int("clicks", s.clicks).Msg("Click limit reached")
			break
		}
		if cycle >= c.maxCycles {
			log.Warn().Int("cycles", cycle).Msg("Slider cycle cap reached; stopping")
			break
		}

		next, found, err := s.session.QueryFirst(ctx, c.selectors.Next)
		if err != nil {
			log.Debug().Err(errors.NewInteraction(url, "next control query failed", err)).Msg("Stopping slider")
			break
		}
		if !found {
			log.Debug().Int("clicks", s.clicks).Msg("No next control; slider end reached")
			break
		}

		if err := s.session.Click(ctx, next); err != nil {
			log.Debug().Err(errors.NewInteraction(url, "arrow click failed", err)).Msg("Stopping slider")
			break
		}
		s.clicks++

		if err := sleep(ctx, opts.SlideDelay); err != nil {
			return s.images, err
		}
	}

	// an interaction cut short by cancellation is not the end of the slider
	if err := ctx.Err(); err != nil {
		return s.images, err
	}

	log.Info().
		Int("images", len(s.images)).
		Int("clicks", s.clicks).
		Msg("Slider extraction finished")
	return s.images, nil
}

// collect appends every unseen image currently in the DOM, slide images first
func (c *SliderCrawler) collect(ctx context.Context, s *crawlSession) error {
	patterns := []struct{ selector, attr string }{
		{c.selectors.Image, c.selectors.ImageAttr},
		{c.selectors.Background, c.selectors.BackgroundAttr},
	}

	for _, p := range patterns {
		els, err := s.session.QueryAll(ctx, p.selector)
		if err != nil {
			return err
		}
		for _, el := range els {
			src, ok, err := el.Attribute(ctx, p.attr)
			if err != nil {
				return err
			}
			if !ok || src == "" {
				continue
			}
			if _, dup := s.seen[src]; dup {
				continue
			}
			s.seen[src] = struct{}{}
			s.images = append(s.images, src)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
