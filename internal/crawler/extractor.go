package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"sjsage522/storecrawler/config"
	"sjsage522/storecrawler/pkg/errors"
)

// Extractor pulls product records and slider images out of fetched HTML
type Extractor struct {
	container cascadia.Selector
	item      cascadia.Selector
	link      cascadia.Selector
	price     cascadia.Selector
	image     cascadia.Selector

	sliderImage      cascadia.Selector
	sliderImageAttr  string
	sliderBackground cascadia.Selector
	sliderBgAttr     string
}

// NewExtractor compiles the profile selectors. Price and image selectors are
// optional; all others are required.
func NewExtractor(listing config.ListingSelectors, slider config.SliderSelectors) (*Extractor, error) {
	e := &Extractor{
		sliderImageAttr: slider.ImageAttr,
		sliderBgAttr:    slider.BackgroundAttr,
	}
	if e.sliderImageAttr == "" {
		e.sliderImageAttr = "src"
	}
	if e.sliderBgAttr == "" {
		e.sliderBgAttr = "data-lazyload"
	}

	compiled := []struct {
		name     string
		sel      string
		required bool
		dst      *cascadia.Selector
	}{
		{"listing.container", listing.Container, true, &e.container},
		{"listing.item", listing.Item, true, &e.item},
		{"listing.link", listing.Link, true, &e.link},
		{"listing.price", listing.Price, false, &e.price},
		{"listing.image", listing.Image, false, &e.image},
		{"slider.image", slider.Image, true, &e.sliderImage},
		{"slider.background", slider.Background, true, &e.sliderBackground},
	}

	for _, c := range compiled {
		if c.sel == "" {
			if c.required {
				return nil, errors.NewValidation(c.name, "selector is required")
			}
			continue
		}
		sel, err := cascadia.Compile(c.sel)
		if err != nil {
			return nil, errors.New(errors.ErrorTypeValidation, c.name, fmt.Sprintf("invalid selector %q", c.sel), err)
		}
		*c.dst = sel
	}

	return e, nil
}

// ExtractItems returns the products of a listing page in document order. A page
// without the product list yields no records. Items without a product link
// element are skipped.
func (e *Extractor) ExtractItems(body []byte) ([]ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewParsing("", "failed to parse listing page", err)
	}

	list := doc.FindMatcher(e.container).First()
	if list.Length() == 0 {
		return nil, nil
	}

	var records []ProductRecord
	list.FindMatcher(e.item).Each(func(_ int, li *goquery.Selection) {
		a := li.FindMatcher(e.link).First()
		if a.Length() == 0 {
			return
		}

		href, _ := a.Attr("href")
		record := ProductRecord{
			Title: strings.TrimSpace(a.Text()),
			Link:  strings.TrimSpace(href),
		}

		if e.price != nil {
			if price := li.FindMatcher(e.price).First(); price.Length() > 0 {
				record.Price = strings.TrimSpace(price.Text())
			}
		}
		if e.image != nil {
			if img := li.FindMatcher(e.image).First(); img.Length() > 0 {
				src, _ := img.Attr("src")
				record.ImageURL = strings.TrimSpace(src)
			}
		}

		records = append(records, record)
	})

	return records, nil
}

// ExtractSliderImages returns slider image URLs of a static page: every slide
// image source first, then every lazy-loaded background, in document order.
// Values are trimmed, empty ones dropped, duplicates kept.
func (e *Extractor) ExtractSliderImages(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewParsing("", "failed to parse slider page", err)
	}

	var urls []string
	collect := func(m cascadia.Selector, attr string) {
		doc.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
			if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
				urls = append(urls, v)
			}
		})
	}
	collect(e.sliderImage, e.sliderImageAttr)
	collect(e.sliderBackground, e.sliderBgAttr)

	return urls, nil
}
