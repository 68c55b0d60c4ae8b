package render

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"sjsage522/storecrawler/logger"
)

// ChromedpOpener starts Chrome through chromedp for every session
type ChromedpOpener struct {
	opts Options
}

// Open allocates a browser, navigates to url and waits for the body to be ready.
func (o *ChromedpOpener) Open(ctx context.Context, url string) (Session, error) {
	log := logger.ForCrawl("render", url).WithField("backend", "chromedp")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.opts.Headless),
	)
	if o.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if o.opts.Bin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.opts.Bin))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		log.Debug().Msgf(format, v...)
	}))

	s := &chromedpSession{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		log:         log,
	}

	// the first Run starts the browser and must not carry a timeout
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	navCtx, cancel := context.WithTimeout(tabCtx, o.opts.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	log.Debug().Msg("Render session opened")
	return s, nil
}

type chromedpSession struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	log         *logger.Logger
	closed      bool
}

type chromedpElement struct {
	node *cdp.Node
}

func (e chromedpElement) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.node.Attribute(name)
	return v, ok, nil
}

// bind derives an operation context from the tab so that chromedp can find
// its browser, while honouring the caller's cancellation.
func (s *chromedpSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(s.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromedpSession) query(ctx context.Context, selector string, by chromedp.QueryOption) ([]*cdp.Node, error) {
	opCtx, cancel := s.bind(ctx)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(opCtx, chromedp.Nodes(selector, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *chromedpSession) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	nodes, err := s.query(ctx, selector, chromedp.ByQueryAll)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, chromedpElement{node: n})
	}
	return out, nil
}

func (s *chromedpSession) QueryFirst(ctx context.Context, selector string) (Element, bool, error) {
	nodes, err := s.query(ctx, selector, chromedp.ByQuery)
	if err != nil || len(nodes) == 0 {
		return nil, false, err
	}
	return chromedpElement{node: nodes[0]}, true, nil
}

func (s *chromedpSession) Click(ctx context.Context, el Element) error {
	ce, ok := el.(chromedpElement)
	if !ok {
		return fmt.Errorf("element %T does not belong to a chromedp session", el)
	}

	opCtx, cancel := s.bind(ctx)
	defer cancel()
	clickCtx, clickCancel := context.WithTimeout(opCtx, clickTimeout)
	defer clickCancel()

	return chromedp.Run(clickCtx, chromedp.MouseClickNode(ce.node))
}

// Close shuts the browser down gracefully and releases the allocator.
func (s *chromedpSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.tabCtx)
	s.tabCancel()
	s.allocCancel()

	s.log.Debug().Msg("Render session closed")
	return err
}
