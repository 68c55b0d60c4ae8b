package render

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"sjsage522/storecrawler/logger"
)

const clickTimeout = 10 * time.Second

// RodOpener launches a local Chromium through go-rod for every session
type RodOpener struct {
	opts Options
}

// Open launches a browser, navigates to url and waits for the load event.
// On error everything launched so far is torn down.
func (o *RodOpener) Open(ctx context.Context, url string) (Session, error) {
	log := logger.ForCrawl("render", url).WithField("backend", "rod")

	l := launcher.New().
		Headless(o.opts.Headless).
		NoSandbox(o.opts.NoSandbox).
		Leakless(true)
	if o.opts.Bin != "" {
		l = l.Bin(o.opts.Bin)
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	s := &rodSession{launcher: l, browser: browser, log: log}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	s.page = page

	navCtx, cancel := context.WithTimeout(ctx, o.opts.NavigationTimeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		s.Close()
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.Close()
		return nil, fmt.Errorf("waiting for %s to load failed: %w", url, err)
	}

	log.Debug().Str("control_url", controlURL).Msg("Render session opened")
	return s, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	log      *logger.Logger
	closed   bool
}

type rodElement struct {
	el *rod.Element
}

func (e rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (s *rodSession) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, rodElement{el: el})
	}
	return out, nil
}

func (s *rodSession) QueryFirst(ctx context.Context, selector string) (Element, bool, error) {
	found, el, err := s.page.Context(ctx).Has(selector)
	if err != nil || !found {
		return nil, false, err
	}
	return rodElement{el: el}, true, nil
}

func (s *rodSession) Click(ctx context.Context, el Element) error {
	re, ok := el.(rodElement)
	if !ok {
		return fmt.Errorf("element %T does not belong to a rod session", el)
	}
	clickCtx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()
	return re.el.Context(clickCtx).Click(proto.InputMouseButtonLeft, 1)
}

// Close closes the page and the browser, then removes the profile directory.
// It is safe to call more than once.
func (s *rodSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.page != nil {
		_ = s.page.Close()
	}
	err := s.browser.Close()
	if err != nil {
		s.launcher.Kill()
	}
	s.launcher.Cleanup()

	s.log.Debug().Msg("Render session closed")
	return err
}
