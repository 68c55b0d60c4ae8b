// Package render opens live browser sessions on dynamically rendered pages.
package render

import (
	"context"
	"fmt"
	"time"
)

// Element is a node in the live DOM of a session
type Element interface {
	// Attribute returns the attribute value and whether it is present
	Attribute(ctx context.Context, name string) (string, bool, error)
}

// Session is an open page in a browser
type Session interface {
	// QueryAll returns every element currently matching selector, possibly none
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// QueryFirst returns the first element matching selector, if any
	QueryFirst(ctx context.Context, selector string) (Element, bool, error)
	// Click invokes an element obtained from this session
	Click(ctx context.Context, el Element) error
	// Close releases the page and the browser behind it
	Close() error
}

// Opener creates sessions
type Opener interface {
	Open(ctx context.Context, url string) (Session, error)
}

// Options configures a browser backend
type Options struct {
	// Bin is the browser executable, empty lets the backend find or download one
	Bin               string
	Headless          bool
	NoSandbox         bool
	NavigationTimeout time.Duration
}

// DefaultNavigationTimeout bounds the initial page load
const DefaultNavigationTimeout = 150 * time.Second

// NewOpener returns the opener for a backend name, "rod" or "chromedp"
func NewOpener(backend string, opts Options) (Opener, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	switch backend {
	case "", "rod":
		return &RodOpener{opts: opts}, nil
	case "chromedp":
		return &ChromedpOpener{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown render backend %q", backend)
	}
}
