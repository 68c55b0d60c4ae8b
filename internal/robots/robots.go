package robots

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"sjsage522/storecrawler/helpers"
	"sjsage522/storecrawler/logger"
)

// RawFetcher retrieves a URL whatever its status
type RawFetcher interface {
	FetchRaw(ctx context.Context, url string) (*helpers.Page, error)
}

// Oracle answers whether a user agent may crawl a URL of one site.
// It is built once from the site's robots.txt and never refreshed.
type Oracle struct {
	url       string
	data      *robotstxt.RobotsData
	body      []byte
	reachable bool
}

// Summary is the human readable digest of a robots.txt file
type Summary struct {
	Allowed    []string
	Disallowed []string
	CrawlDelay string
	Sitemaps   []string
}

// Load fetches robotsURL and builds an oracle from it. 4xx answers allow
// everything and 5xx answers forbid everything. When robots.txt cannot be
// reached at all the oracle allows everything and a warning is logged.
func Load(ctx context.Context, fetcher RawFetcher, robotsURL string) (*Oracle, error) {
	log := logger.ForCrawl("robots", robotsURL)

	page, err := fetcher.FetchRaw(ctx, robotsURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("robots.txt unreachable, allowing all")
		return &Oracle{url: robotsURL, data: allowAll()}, nil
	}

	o, err := FromBytes(robotsURL, page.StatusCode, page.Body)
	if err != nil {
		log.Warn().Err(err).Msg("robots.txt could not be parsed, allowing all")
		return &Oracle{url: robotsURL, data: allowAll()}, nil
	}

	log.Debug().
		Int("status", page.StatusCode).
		Int("bytes", len(page.Body)).
		Msg("robots.txt loaded")
	return o, nil
}

// FromBytes builds an oracle from an already fetched robots.txt answer.
func FromBytes(robotsURL string, statusCode int, body []byte) (*Oracle, error) {
	data, err := robotstxt.FromStatusAndBytes(statusCode, body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}

	o := &Oracle{url: robotsURL, data: data, reachable: true}
	if statusCode >= 200 && statusCode < 300 {
		o.body = body
	}
	return o, nil
}

func allowAll() *robotstxt.RobotsData {
	data, _ := robotstxt.FromStatusAndBytes(404, nil)
	return data
}

// URL returns where the rules were loaded from
func (o *Oracle) URL() string {
	return o.url
}

// Reachable reports whether robots.txt answered at all
func (o *Oracle) Reachable() bool {
	return o.reachable
}

// Allowed reports whether userAgent may fetch rawURL. Unparseable URLs are
// never allowed.
func (o *Oracle) Allowed(rawURL, userAgent string) bool {
	path, err := helpers.PathAndQuery(rawURL)
	if err != nil {
		return false
	}
	return o.data.TestAgent(path, userAgent)
}

// CrawlDelay returns the Crawl-delay of the group matching userAgent, zero when unset.
func (o *Oracle) CrawlDelay(userAgent string) time.Duration {
	group := o.data.FindGroup(userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// Summary lists every Allow, Disallow and Sitemap line of robots.txt and
// the last Crawl-delay, regardless of the group they belong to.
func (o *Oracle) Summary() Summary {
	var s Summary
	for _, line := range strings.Split(string(o.body), "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "allow":
			s.Allowed = append(s.Allowed, value)
		case "disallow":
			s.Disallowed = append(s.Disallowed, value)
		case "crawl-delay":
			s.CrawlDelay = value
		case "sitemap":
			s.Sitemaps = append(s.Sitemaps, value)
		}
	}
	return s
}

// String renders the summary as plain text
func (s Summary) String() string {
	delay := s.CrawlDelay
	if delay == "" {
		delay = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Allowed paths: %s\n", list(s.Allowed))
	fmt.Fprintf(&b, "Disallowed paths: %s\n", list(s.Disallowed))
	fmt.Fprintf(&b, "Crawl-delay: %s\n", delay)
	fmt.Fprintf(&b, "Sitemap links: %s\n", list(s.Sitemaps))
	return b.String()
}

func list(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
