package analysis

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"sjsage522/storecrawler/helpers"
	"sjsage522/storecrawler/logger"
)

// MinVisibleText is the amount of visible text, in characters, below which a
// page is assumed to be rendered by JavaScript.
const MinVisibleText = 100

// FeedPaths are the feed and API locations tried on a site
var FeedPaths = []string{"/feed", "/rss", "/feeds/posts/default", "/api"}

// Score penalties
const (
	PenaltyDisallowed = 50
	PenaltyJSHeavy    = 30
	PenaltyNoFeeds    = 20
)

// Fetcher is what the analysis needs from the HTTP layer
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Probe(ctx context.Context, url string) (*helpers.Page, error)
}

// Permission answers robots.txt questions
type Permission interface {
	Allowed(rawURL, userAgent string) bool
}

// Report is the crawlability assessment of one URL
type Report struct {
	URL             string
	Allowed         bool
	JavaScriptHeavy bool
	Feeds           []string
	Score           int
	Recommendations []string
}

// IsJavaScriptHeavy reports whether body carries less than MinVisibleText
// characters of visible text once scripts and styles are dropped.
func IsJavaScriptHeavy(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	doc.Find("script, style, noscript, template").Remove()

	text := strings.Join(strings.Fields(doc.Text()), "")
	return utf8.RuneCountInString(text) < MinVisibleText
}

// CheckJavaScriptHeavy fetches url and applies IsJavaScriptHeavy. A page that
// cannot be fetched counts as JavaScript heavy.
func CheckJavaScriptHeavy(ctx context.Context, fetcher Fetcher, url string) bool {
	body, err := fetcher.Fetch(ctx, url)
	if err != nil {
		logger.ForCrawl("analysis", url).Error().Err(err).Msg("JS-heavy check failed after retries")
		return true
	}
	return IsJavaScriptHeavy(body)
}

// ProbeFeeds tries every FeedPath under siteURL at once and returns the ones
// answering with an XML or JSON content type, in FeedPaths order.
func ProbeFeeds(ctx context.Context, fetcher Fetcher, siteURL string) []string {
	log := logger.ForCrawl("analysis", siteURL)
	found := make([]string, len(FeedPaths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range FeedPaths {
		candidate := helpers.JoinPath(siteURL, path)
		g.Go(func() error {
			page, err := fetcher.Probe(ctx, candidate)
			if err != nil {
				log.Debug().Err(err).Str("candidate", candidate).Msg("Feed probe failed")
				return nil
			}
			ct := strings.ToLower(page.ContentType)
			if strings.Contains(ct, "xml") || strings.Contains(ct, "json") {
				found[i] = candidate
			}
			return nil
		})
	}
	_ = g.Wait()

	var feeds []string
	for _, f := range found {
		if f != "" {
			feeds = append(feeds, f)
		}
	}
	return feeds
}

// Assess scores crawlability out of 100 and lists what to use for the site.
func Assess(allowed, jsHeavy bool, feeds []string) Report {
	r := Report{
		Allowed:         allowed,
		JavaScriptHeavy: jsHeavy,
		Feeds:           feeds,
		Score:           100,
	}

	if !allowed {
		r.Score -= PenaltyDisallowed
		r.Recommendations = append(r.Recommendations, "Respect robots.txt: crawl only the paths it allows")
	}
	if jsHeavy {
		r.Score -= PenaltyJSHeavy
		r.Recommendations = append(r.Recommendations, "Use a headless browser (render session) to read the pages")
	} else {
		r.Recommendations = append(r.Recommendations, "A static fetcher with an HTML parser is enough")
	}
	if len(feeds) == 0 {
		r.Score -= PenaltyNoFeeds
	} else {
		r.Recommendations = append(r.Recommendations, "You can also fetch RSS/API endpoints directly")
	}

	r.Score = max(r.Score, 0)
	return r
}

// Analyzer runs the full crawlability check of a URL
type Analyzer struct {
	fetcher   Fetcher
	oracle    Permission
	userAgent string
}

// NewAnalyzer creates an analyzer checking permissions for userAgent
func NewAnalyzer(fetcher Fetcher, oracle Permission, userAgent string) *Analyzer {
	return &Analyzer{fetcher: fetcher, oracle: oracle, userAgent: userAgent}
}

// Analyze checks robots permission, JavaScript weight and feeds of url.
// Only cancellation is reported as an error.
func (a *Analyzer) Analyze(ctx context.Context, url string) (Report, error) {
	log := logger.ForCrawl("analysis", url)

	allowed := a.oracle.Allowed(url, a.userAgent)
	jsHeavy := CheckJavaScriptHeavy(ctx, a.fetcher, url)
	feeds := ProbeFeeds(ctx, a.fetcher, url)
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	r := Assess(allowed, jsHeavy, feeds)
	r.URL = url

	log.Info().
		Bool("allowed", allowed).
		Bool("js_heavy", jsHeavy).
		Int("feeds", len(feeds)).
		Int("score", r.Score).
		Msg("Crawlability assessed")
	return r, nil
}
