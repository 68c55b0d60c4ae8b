package publisher

import (
	"context"
	"time"

	"sjsage522/storecrawler/internal/crawler"
)

// Message kinds, also used as the stream field name prefix
const (
	KindProduct = "product"
	KindSlider  = "slider_image"
)

// Publisher represents a service for publishing crawl results
type Publisher interface {
	// PublishProducts publishes one message per product found on source
	PublishProducts(ctx context.Context, source string, products []crawler.ProductRecord) error

	// PublishSliderImages publishes one message per slider image found on source
	PublishSliderImages(ctx context.Context, source string, images []string) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// Envelope is the JSON body of every published message
type Envelope struct {
	Kind      string                 `json:"kind"`
	Source    string                 `json:"source"`
	Position  int                    `json:"position"`
	CrawledAt time.Time              `json:"crawled_at"`
	Product   *crawler.ProductRecord `json:"product,omitempty"`
	ImageURL  string                 `json:"image_url,omitempty"`
}
