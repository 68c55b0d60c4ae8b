package crawler

import (
	"context"
)

// ProductRecord represents one product extracted from a listing page.
// Values are raw text and attribute values; Link is the identity key.
type ProductRecord struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Price    string `json:"price"`
	ImageURL string `json:"image_url"`
}

// Incomplete reports whether the record lacks a title or a link
func (p ProductRecord) Incomplete() bool {
	return p.Title == "" || p.Link == ""
}

// PageFetcher retrieves the body of a page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StopPolicy decides what a fetch failure after the first page means
type StopPolicy string

const (
	// StopLenient treats a failed page as the end of the listing
	StopLenient StopPolicy = "lenient"
	// StopStrict returns the failure along with the products gathered so far
	StopStrict StopPolicy = "strict"
)

// IncompleteFunc is called for every appended record missing a title or link
type IncompleteFunc func(page int, record ProductRecord)
