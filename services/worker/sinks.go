package worker

import (
	"context"
	"io"
	"path/filepath"

	"sjsage522/storecrawler/internal/crawler"
	"sjsage522/storecrawler/services/export"
	"sjsage522/storecrawler/services/publisher"
	"sjsage522/storecrawler/services/store"
)

// Sink receives the products of one job
type Sink interface {
	Name() string
	Save(ctx context.Context, job Job, products []crawler.ProductRecord) error
}

// Finisher is implemented by sinks needing work after a catalog run
type Finisher interface {
	Finish(ctx context.Context) error
}

// PublisherSink publishes products to the result streams
type PublisherSink struct {
	Publisher publisher.Publisher
}

func (s PublisherSink) Name() string { return "publisher" }

func (s PublisherSink) Save(ctx context.Context, job Job, products []crawler.ProductRecord) error {
	return s.Publisher.PublishProducts(ctx, job.URL, products)
}

// Finish trims the streams once per run
func (s PublisherSink) Finish(ctx context.Context) error {
	return s.Publisher.TrimStreams(ctx)
}

// StoreSink records products under one run of the results database
type StoreSink struct {
	Store *store.Store
	RunID int64
}

func (s StoreSink) Name() string { return "store" }

func (s StoreSink) Save(ctx context.Context, job Job, products []crawler.ProductRecord) error {
	return s.Store.SaveProducts(ctx, s.RunID, job.URL, products)
}

// CSVSink writes <dir>/<job name>.csv per job
type CSVSink struct {
	Dir string
}

func (s CSVSink) Name() string { return "csv" }

func (s CSVSink) Save(_ context.Context, job Job, products []crawler.ProductRecord) error {
	return export.WriteFile(filepath.Join(s.Dir, job.Name+".csv"), func(w io.Writer) error {
		return export.WriteProductsCSV(w, products)
	})
}
