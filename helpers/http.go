package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"sjsage522/storecrawler/logger"
	"sjsage522/storecrawler/pkg/errors"
	"sjsage522/storecrawler/services/cache"
)

// Fetcher defaults
const (
	DefaultUserAgent    = "SmartCrawler/1.0"
	DefaultTimeout      = 10 * time.Second
	DefaultAttempts     = 3
	DefaultBackoff      = 2 * time.Second
	DefaultProbeTimeout = 5 * time.Second
	DefaultBlockTime    = 5 * time.Minute
)

// FetcherOptions configures a Fetcher. Zero values fall back to the defaults above,
// except Backoff which may be zero.
type FetcherOptions struct {
	UserAgent    string
	Timeout      time.Duration
	Attempts     int
	Backoff      time.Duration
	ProbeTimeout time.Duration

	// Cache enables the per-host rate-limit block when set
	Cache     cache.CacheService
	BlockTime time.Duration
}

// Page is a raw HTTP response
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher performs GET requests with a fixed identity, a timeout and linear
// backoff retries.
type Fetcher struct {
	client *resty.Client
	probe  *resty.Client
	opts   FetcherOptions
	log    *logger.Logger
}

// NewFetcher creates a fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Attempts < 1 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.BlockTime <= 0 {
		opts.BlockTime = DefaultBlockTime
	}

	f := &Fetcher{
		opts: opts,
		log:  logger.ForComponent("fetcher"),
	}

	backoff := opts.Backoff
	f.client = resty.New().
		SetTimeout(opts.Timeout).
		SetLogger(restyLogger{f.log}).
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(opts.Attempts-1).
		SetRetryWaitTime(backoff).
		SetRetryMaxWaitTime(backoff*time.Duration(opts.Attempts)).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			// attempt n failed, wait backoff*n before the next one
			return backoff * time.Duration(resp.Request.Attempt), nil
		}).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if resp == nil {
				return false
			}
			if err != nil {
				return true
			}
			return resp.StatusCode() >= http.StatusInternalServerError
		}).
		AddRetryHook(func(resp *resty.Response, err error) {
			// the hook also runs after the last attempt, when no retry follows
			if resp == nil || resp.Request.Attempt >= opts.Attempts {
				return
			}
			event := f.log.Warn().
				Str("url", resp.Request.URL).
				Int("attempt", resp.Request.Attempt)
			if err != nil {
				event = event.Err(err)
			} else {
				event = event.Int("status", resp.StatusCode())
			}
			event.Msg("Fetch attempt failed, retrying")
		})

	f.probe = resty.New().
		SetTimeout(opts.ProbeTimeout).
		SetLogger(restyLogger{f.log}).
		SetHeader("User-Agent", opts.UserAgent)

	return f
}

// UserAgent returns the identity sent with every request
func (f *Fetcher) UserAgent() string {
	return f.opts.UserAgent
}

// Fetch retrieves rawURL and returns its body converted to UTF-8. Any terminal
// failure, including a non-2xx status after retries, is a FetchFailed error.
// A 429 is not retried: it blocks the host and returns a rate limit error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	page, err := f.FetchRaw(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if page.StatusCode == http.StatusTooManyRequests {
		f.block(rawURL)
		return nil, errors.NewRateLimit(rawURL, f.opts.BlockTime)
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		return nil, errors.NewFetch(rawURL, page.StatusCode, nil)
	}

	body, err := toUTF8(page.Body, page.ContentType)
	if err != nil {
		return nil, errors.NewParsing(rawURL, "failed to decode body", err)
	}
	return body, nil
}

// FetchRaw retrieves rawURL with retries and returns the response whatever its
// status. Only transport failures are errors.
func (f *Fetcher) FetchRaw(ctx context.Context, rawURL string) (*Page, error) {
	if f.blocked(rawURL) {
		return nil, errors.NewRateLimit(rawURL, f.opts.BlockTime)
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, errors.NewFetch(rawURL, 0, err)
	}

	return &Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// Probe performs one GET with the short probe timeout and no retries.
func (f *Fetcher) Probe(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := f.probe.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, errors.NewFetch(rawURL, 0, err)
	}
	return &Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

func (f *Fetcher) blocked(rawURL string) bool {
	if f.opts.Cache == nil {
		return false
	}
	_, err := f.opts.Cache.Get(rateLimitKey(rawURL))
	return err == nil
}

func (f *Fetcher) block(rawURL string) {
	if f.opts.Cache == nil {
		return
	}
	seconds := strconv.Itoa(int(f.opts.BlockTime / time.Second))
	if err := f.opts.Cache.Set(rateLimitKey(rawURL), []byte(seconds), f.opts.BlockTime); err != nil {
		f.log.Warn().
			Err(errors.NewCache(rawURL, "failed to store rate limit block", err)).
			Msg("Host not blocked")
		return
	}
	f.log.Warn().
		Str("url", rawURL).
		Dur("block", f.opts.BlockTime).
		Msg("Rate limited, blocking further requests to host")
}

// restyLogger routes resty's own diagnostics through the component logger
type restyLogger struct {
	log *logger.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug().Msgf(strings.TrimSpace(format), v...)
}

func rateLimitKey(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("%s_rate_limited", host)
}

// toUTF8 converts body to UTF-8 using the Content-Type header and the
// document's own charset hints.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.Bytes(), nil
}
