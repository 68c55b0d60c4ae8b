package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sjsage522/storecrawler/config"
	"sjsage522/storecrawler/internal/render"
	"sjsage522/storecrawler/pkg/errors"
)

// MockFetcher serves canned bodies by URL and records every request
type MockFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	called []string
	// onFetch runs before a request is answered
	onFetch func(url string)
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (m *MockFetcher) On(url, body string) *MockFetcher {
	m.pages[url] = body
	return m
}

func (m *MockFetcher) Fail(url string, err error) *MockFetcher {
	m.errs[url] = err
	return m
}

func (m *MockFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called = append(m.called, url)
	if m.onFetch != nil {
		m.onFetch(url)
	}

	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	if body, ok := m.pages[url]; ok {
		return []byte(body), nil
	}
	return nil, errors.NewFetch(url, 404, nil)
}

func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.called...)
}

// listingPage renders products the way the storefront lists them
func listingPage(products ...ProductRecord) string {
	var b strings.Builder
	b.WriteString(`<html><body><ol class="products list items product-items">`)
	for _, p := range products {
		fmt.Fprintf(&b, `<li class="item product product-item">
  <div class="product-item-info">
    <div class="product-grid__image-wrapper">
      <a href="%[2]s"><span class="product-image-container"><span class="product-image-wrapper">
        <img src="%[4]s"></span></span></a>
    </div>
    <strong class="product name"><a class="product-item-link" href="%[2]s"> %[1]s </a></strong>
    <span class="price-box"><span class="price">%[3]s</span></span>
  </div>
</li>`, p.Title, p.Link, p.Price, p.ImageURL)
	}
	b.WriteString(`</ol></body></html>`)
	return b.String()
}

func product(id string) ProductRecord {
	return ProductRecord{
		Title:    "Product " + id,
		Link:     "https://shop.example.com/product-" + id + ".html",
		Price:    "EGP 1,000.00",
		ImageURL: "https://shop.example.com/media/" + id + ".jpg",
	}
}

func testExtractor() *Extractor {
	p := config.DefaultProfile()
	e, err := NewExtractor(p.Listing, p.Slider)
	if err != nil {
		panic(err)
	}
	return e
}

// fakeElement is an element of a fakeSession
type fakeElement struct {
	attrs map[string]string
	err   error
	next  bool
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	if e.err != nil {
		return "", false, e.err
	}
	v, ok := e.attrs[name]
	return v, ok, nil
}

// slide is what the fake slider shows in one state
type slide struct {
	images      []string
	backgrounds []string
}

// fakeSession steps through slides on each click. The next control exists
// while there is a further slide, or always when loop is set.
type fakeSession struct {
	slides    []slide
	current   int
	loop      bool
	noNext    bool
	clickErr  error
	failAfter int
	queryErr  error
	// onClickErr runs when a click is about to fail
	onClickErr func()

	clicks  int
	queries int
	closed  int
}

func (s *fakeSession) QueryAll(_ context.Context, selector string) ([]render.Element, error) {
	s.queries++
	if s.queryErr != nil {
		return nil, s.queryErr
	}

	sl := s.slides[s.current]
	var els []render.Element
	switch selector {
	case "img.tp-rs-img":
		for _, src := range sl.images {
			els = append(els, &fakeElement{attrs: map[string]string{"src": src}})
		}
	case "rs-sbg[data-lazyload]":
		for _, src := range sl.backgrounds {
			els = append(els, &fakeElement{attrs: map[string]string{"data-lazyload": src}})
		}
	}
	return els, nil
}

func (s *fakeSession) QueryFirst(_ context.Context, selector string) (render.Element, bool, error) {
	if selector != "rs-arrow.tp-rightarrow.tparrows.hesperiden" || s.noNext {
		return nil, false, nil
	}
	if !s.loop && s.current >= len(s.slides)-1 {
		return nil, false, nil
	}
	return &fakeElement{next: true}, true, nil
}

func (s *fakeSession) Click(_ context.Context, el render.Element) error {
	if fe, ok := el.(*fakeElement); !ok || !fe.next {
		return fmt.Errorf("not a next control")
	}
	if s.clickErr != nil && s.clicks >= s.failAfter {
		if s.onClickErr != nil {
			s.onClickErr()
		}
		return s.clickErr
	}
	s.clicks++
	s.current = (s.current + 1) % len(s.slides)
	return nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

// fakeOpener hands out one prepared session
type fakeOpener struct {
	session *fakeSession
	err     error
	opened  []string
}

func (o *fakeOpener) Open(_ context.Context, url string) (render.Session, error) {
	o.opened = append(o.opened, url)
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}
